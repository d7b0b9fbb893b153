package filter

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/edgeflare/pgrestmock/pkg/httputil"
	"github.com/edgeflare/pgrestmock/pkg/store"
	"github.com/spf13/cast"
)

// timeLayouts are tried in order when interpreting operands as instants.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime interprets s as an instant using the wire timestamp layouts.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// compileOrdered builds gt/gte/lt/lte predicates. The literal is interpreted
// as a timestamp first, then as a number; a literal that is neither is
// rejected at compile time. A row value that cannot be interpreted the same
// way simply does not match.
func compileOrdered(op, value string) (Predicate, error) {
	if t, ok := ParseTime(value); ok {
		return func(v any) bool {
			if store.IsNull(v) {
				return false
			}
			rv, ok := ParseTime(store.Stringify(v))
			if !ok {
				return false
			}
			return orderedMatch(op, rv.Compare(t))
		}, nil
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return func(v any) bool {
			if store.IsNull(v) {
				return false
			}
			rf, err := cast.ToFloat64E(v)
			if err != nil {
				return false
			}
			switch {
			case rf < f:
				return orderedMatch(op, -1)
			case rf > f:
				return orderedMatch(op, 1)
			default:
				return orderedMatch(op, 0)
			}
		}, nil
	}
	return nil, httputil.Malformed("operator %s requires a timestamp or numeric value, got %q", op, value)
}

func orderedMatch(op string, cmp int) bool {
	switch op {
	case "gt":
		return cmp > 0
	case "gte":
		return cmp >= 0
	case "lt":
		return cmp < 0
	case "lte":
		return cmp <= 0
	}
	return false
}

// compileLike matches the stringified value against a pattern where % is a
// wildcard for any run of characters.
func compileLike(pattern string, caseInsensitive bool) Predicate {
	parts := strings.Split(pattern, "%")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	expr := "^" + strings.Join(quoted, ".*") + "$"
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	compiled := regexp.MustCompile(expr)

	return func(v any) bool {
		if store.IsNull(v) {
			return false
		}
		return compiled.MatchString(store.Stringify(v))
	}
}
