package shared

import (
	"fmt"
	"strconv"
)

// DbType names a store provider implementation
type DbType string

const (
	DbTypeMemory   DbType = "memory"
	DbTypePostgres DbType = "postgres"
	DbTypeSQLite   DbType = "sqlite"
	DbTypeGorm     DbType = "gorm"
)

// DefaultPageCap is the per-call row limit of the observed deployment
const DefaultPageCap = 1000

func (t DbType) String() string {
	return string(t)
}

// IsValid checks if the database type is supported
func (t DbType) IsValid() bool {
	switch t {
	case DbTypeMemory, DbTypePostgres, DbTypeSQLite, DbTypeGorm:
		return true
	}
	return false
}

// DbProviderConfig is the JSON shape of DB_CONFIG
type DbProviderConfig struct {
	DbType       DbType                 `json:"db_type"`
	ExtraDetails map[string]interface{} `json:"extra_details"`
}

// ConnStr returns extra_details.conn_str
func (c DbProviderConfig) ConnStr() (string, error) {
	connStr, ok := c.ExtraDetails["conn_str"].(string)
	if !ok || connStr == "" {
		return "", fmt.Errorf("conn_str is required for %s provider", c.DbType)
	}
	return connStr, nil
}

// PageCap returns extra_details.page_cap, or DefaultPageCap when unset
func (c DbProviderConfig) PageCap() (int, error) {
	raw, ok := c.ExtraDetails["page_cap"]
	if !ok || raw == nil {
		return DefaultPageCap, nil
	}
	var n int
	switch v := raw.(type) {
	case float64:
		n = int(v)
	case int:
		n = v
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid page_cap %q: %w", v, err)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("invalid page_cap type %T", raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("page_cap must be positive, got %d", n)
	}
	return n, nil
}

// ClampRange bounds the inclusive range [from, to] to at most pageCap rows
func ClampRange(from, to, pageCap int) (offset, limit int) {
	if from < 0 {
		from = 0
	}
	limit = to - from + 1
	if limit > pageCap {
		limit = pageCap
	}
	if limit < 0 {
		limit = 0
	}
	return from, limit
}
