package enumerator

import (
	"errors"
	"fmt"
)

// Mode selects which paths a refresh covers
type Mode string

const (
	ModeFull       Mode = "full"
	ModeRecent     Mode = "recent"
	ModeNewsWindow Mode = "newsWindow"
)

var ErrUnknownMode = errors.New("unknown enumeration mode")

func (m Mode) String() string {
	return string(m)
}

// IsValid checks if the mode is supported
func (m Mode) IsValid() bool {
	switch m {
	case ModeFull, ModeRecent, ModeNewsWindow:
		return true
	}
	return false
}

// ParseMode converts a mode name into a Mode
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}
