package db_model

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Op is a filter operator understood by every store provider
type Op string

const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
)

// IsValid checks if the operator is supported
func (o Op) IsValid() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIsNull, OpNotNull:
		return true
	}
	return false
}

// Unary reports whether the operator takes no value
func (o Op) Unary() bool {
	return o == OpIsNull || o == OpNotNull
}

// Filter restricts a query to rows where Column Op Value holds
type Filter struct {
	Column string
	Op     Op
	Value  interface{}
}

// OrderBy orders a query by one column
type OrderBy struct {
	Column string
	Desc   bool
}

// Query describes a read against one table
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	Order   []OrderBy
}

// Where returns a copy of q with an extra filter
func (q Query) Where(column string, op Op, value interface{}) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Column: column, Op: op, Value: value})
	return q
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate rejects identifiers that cannot be safely interpolated into SQL
func (q Query) Validate() error {
	if !identifierPattern.MatchString(q.Table) {
		return fmt.Errorf("invalid table name %q", q.Table)
	}
	for _, c := range q.Columns {
		if !identifierPattern.MatchString(c) {
			return fmt.Errorf("invalid column name %q", c)
		}
	}
	for _, f := range q.Filters {
		if !identifierPattern.MatchString(f.Column) {
			return fmt.Errorf("invalid filter column %q", f.Column)
		}
		if !f.Op.IsValid() {
			return fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	for _, o := range q.Order {
		if !identifierPattern.MatchString(o.Column) {
			return fmt.Errorf("invalid order column %q", o.Column)
		}
	}
	return nil
}

// Row is one result row keyed by column name
type Row map[string]interface{}

// String returns the column as a string, empty when null or missing
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// NullString returns nil when the column is null
func (r Row) NullString(col string) *string {
	if r[col] == nil {
		return nil
	}
	s := r.String(col)
	return &s
}

// Int returns the column as an int64, zero when null or unparseable
func (r Row) Int(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// timeLayouts covers what postgres, sqlite and JSON hand back for timestamp columns
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time returns the column as a time, zero when null or unparseable
func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	}
	return time.Time{}
}

// Date returns the column formatted as YYYY-MM-DD, empty when unparseable
func (r Row) Date(col string) string {
	t := r.Time(col)
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CachePageFromRow rebuilds a page from a row, tolerating a partial projection
func CachePageFromRow(r Row) CachePage {
	return CachePage{
		Path:             r.String("path"),
		HTML:             r.String("html"),
		Title:            r.NullString("title"),
		Description:      r.NullString("description"),
		CanonicalURL:     r.NullString("canonical_url"),
		GenerationTimeMs: r.Int("generation_time_ms"),
		HTMLSizeBytes:    r.Int("html_size_bytes"),
		ExpiresAt:        r.Time("expires_at"),
		UpdatedAt:        r.Time("updated_at"),
	}
}
