package store

import (
	"sort"
	"strings"
	"time"

	"github.com/shaibs3/pagecache/internal/db_model"
)

// matches evaluates filters with SQL null semantics: a comparison against NULL never holds
func matches(row db_model.Row, filters []db_model.Filter) bool {
	for _, f := range filters {
		v, present := row[f.Column]
		isNull := !present || v == nil
		switch f.Op {
		case db_model.OpIsNull:
			if !isNull {
				return false
			}
			continue
		case db_model.OpNotNull:
			if isNull {
				return false
			}
			continue
		}
		if isNull || f.Value == nil {
			return false
		}
		c, ok := compareValues(v, f.Value)
		if !ok {
			return false
		}
		var hold bool
		switch f.Op {
		case db_model.OpEq:
			hold = c == 0
		case db_model.OpNeq:
			hold = c != 0
		case db_model.OpGt:
			hold = c > 0
		case db_model.OpGte:
			hold = c >= 0
		case db_model.OpLt:
			hold = c < 0
		case db_model.OpLte:
			hold = c <= 0
		}
		if !hold {
			return false
		}
	}
	return true
}

// compareValues orders two column values; ok is false when they are not comparable
func compareValues(a, b interface{}) (int, bool) {
	a, b = normalize(a), normalize(b)
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case time.Time:
		bt, ok := asTime(b)
		if !ok {
			return 0, false
		}
		return av.Compare(bt), true
	case string:
		if bt, ok := b.(time.Time); ok {
			at, ok := asTime(av)
			if !ok {
				return 0, false
			}
			return at.Compare(bt), true
		}
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	}
	return 0, false
}

func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

func asTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t := db_model.Row{"t": x}.Time("t")
		return t, !t.IsZero()
	}
	return time.Time{}, false
}

// sortRows orders rows in place; NULLs sort last ascending and first descending, as in Postgres
func sortRows(rows []db_model.Row, order []db_model.OrderBy) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			a, b := rows[i][o.Column], rows[j][o.Column]
			if a == nil && b == nil {
				continue
			}
			if a == nil {
				return o.Desc
			}
			if b == nil {
				return !o.Desc
			}
			c, ok := compareValues(a, b)
			if !ok || c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// project keeps only the requested columns; an empty projection keeps all
func project(row db_model.Row, columns []string) db_model.Row {
	out := make(db_model.Row, len(row))
	if len(columns) == 0 {
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	for _, c := range columns {
		out[c] = row[c]
	}
	return out
}
