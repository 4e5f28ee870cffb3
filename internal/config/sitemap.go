package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sitemap describes the parts of the site that are not derived from content rows
type Sitemap struct {
	StaticRoutes []string `yaml:"staticRoutes"`
	EntityLimit  int      `yaml:"entityLimit"`
	RecentWindow string   `yaml:"recentWindow"`
	NewsWindow   string   `yaml:"newsWindow"`

	// compiled
	recentDur time.Duration
	newsDur   time.Duration
}

const (
	defaultRecentWindow = 24 * time.Hour
	defaultNewsWindow   = 7 * 24 * time.Hour
)

// DefaultSitemap is used when no sitemap file is configured
func DefaultSitemap() Sitemap {
	return Sitemap{
		StaticRoutes: []string{"/", "/news", "/stories", "/volumes", "/wiki", "/about"},
		EntityLimit:  500,
		RecentWindow: "24h",
		NewsWindow:   "168h",
		recentDur:    defaultRecentWindow,
		newsDur:      defaultNewsWindow,
	}
}

// LoadSitemap reads a YAML sitemap, filling unset fields from DefaultSitemap
func LoadSitemap(path string) (Sitemap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Sitemap{}, err
	}
	return ParseSitemap(b)
}

// ParseSitemap parses and validates YAML sitemap bytes
func ParseSitemap(b []byte) (Sitemap, error) {
	def := DefaultSitemap()
	var sm Sitemap
	err := yaml.Unmarshal(b, &sm)
	if err != nil {
		return Sitemap{}, err
	}

	if len(sm.StaticRoutes) == 0 {
		sm.StaticRoutes = def.StaticRoutes
	}
	for i, r := range sm.StaticRoutes {
		r = strings.TrimSpace(r)
		if !strings.HasPrefix(r, "/") {
			return Sitemap{}, fmt.Errorf("staticRoutes[%d]: route %q must start with /", i, r)
		}
		sm.StaticRoutes[i] = r
	}
	if sm.EntityLimit <= 0 {
		sm.EntityLimit = def.EntityLimit
	}
	if sm.RecentWindow == "" {
		sm.RecentWindow = def.RecentWindow
	}
	if sm.NewsWindow == "" {
		sm.NewsWindow = def.NewsWindow
	}

	if sm.recentDur, err = parseWindow(sm.RecentWindow); err != nil {
		return Sitemap{}, fmt.Errorf("recentWindow: %w", err)
	}
	if sm.newsDur, err = parseWindow(sm.NewsWindow); err != nil {
		return Sitemap{}, fmt.Errorf("newsWindow: %w", err)
	}
	return sm, nil
}

func parseWindow(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("window must be positive, got %s", s)
	}
	return d, nil
}

// RecentDuration is the lookback for the recent refresh mode. A Sitemap that did
// not go through ParseSitemap falls back to the default window.
func (s Sitemap) RecentDuration() time.Duration {
	if s.recentDur <= 0 {
		return defaultRecentWindow
	}
	return s.recentDur
}

// NewsDuration is the lookback for the news window refresh mode
func (s Sitemap) NewsDuration() time.Duration {
	if s.newsDur <= 0 {
		return defaultNewsWindow
	}
	return s.newsDur
}
