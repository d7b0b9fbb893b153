// Package filter compiles the PostgREST operator grammar into predicate
// trees. A wire filter like "eq.2", "not.like.A%" or "or=(id.eq.1,id.eq.2)"
// is compiled once per request and evaluated per row.
//
// Unknown operators are rejected at compile time. The emulated backend always
// knows its own operator set, so a typo in a test is a bug in the test; it
// must not degrade into an always-true predicate.
package filter

import (
	"encoding/json"
	"strings"

	"github.com/edgeflare/pgrestmock/pkg/httputil"
	"github.com/edgeflare/pgrestmock/pkg/store"
)

// Expr is a compiled filter expression evaluated against one row. Embedded
// relation elements are rows too, so the same tree evaluates nested data.
type Expr interface {
	Match(row store.Row) bool
}

// Predicate tests a single column value.
type Predicate func(v any) bool

type cond struct {
	column string
	pred   Predicate
}

func (c cond) Match(row store.Row) bool {
	return c.pred(row[c.column])
}

type andExpr struct{ exprs []Expr }

func (a andExpr) Match(row store.Row) bool {
	for _, e := range a.exprs {
		if !e.Match(row) {
			return false
		}
	}
	return true
}

type orExpr struct{ exprs []Expr }

func (o orExpr) Match(row store.Row) bool {
	for _, e := range o.exprs {
		if e.Match(row) {
			return true
		}
	}
	return false
}

// And combines expressions conjunctively.
func And(exprs ...Expr) Expr { return andExpr{exprs: exprs} }

// Or combines expressions disjunctively.
func Or(exprs ...Expr) Expr { return orExpr{exprs: exprs} }

// RowPredicate converts compiled expressions into a store predicate,
// combining them conjunctively. It returns nil for an empty set so callers
// can enforce their filter-required policies.
func RowPredicate(exprs []Expr) store.Predicate {
	if len(exprs) == 0 {
		return nil
	}
	all := And(exprs...)
	return func(row store.Row) bool { return all.Match(row) }
}

// Compile parses one "<operator>.<value>" filter, including the
// "not.<operator>.<value>" negation form, into an expression bound to column.
func Compile(column, raw string) (Expr, error) {
	op, value, found := strings.Cut(raw, ".")
	if !found {
		return nil, httputil.Malformed("filter on %q must be <operator>.<value>, got %q", column, raw)
	}
	if op == "not" {
		inner, err := Compile(column, value)
		if err != nil {
			return nil, err
		}
		return cond{column: column, pred: func(v any) bool {
			return !inner.Match(store.Row{column: v})
		}}, nil
	}
	pred, err := CompilePredicate(op, value)
	if err != nil {
		return nil, err
	}
	return cond{column: column, pred: pred}, nil
}

// CompileOr parses the disjunction form "(<expr>,<expr>,…)" where each
// sub-expression is "<column>.<operator>.<value>" or a nested and(...)/or(...)
// group, reusing the same grammar recursively.
func CompileOr(raw string) (Expr, error) {
	return compileGroup(raw, false)
}

func compileGroup(raw string, conjunctive bool) (Expr, error) {
	inner, ok := stripParens(raw)
	if !ok {
		return nil, httputil.Malformed("logical filter group must be parenthesized, got %q", raw)
	}

	var exprs []Expr
	for _, part := range splitTopLevel(inner) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		expr, err := compileGroupItem(part)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	if len(exprs) == 0 {
		return nil, httputil.Malformed("empty logical filter group %q", raw)
	}
	if conjunctive {
		return And(exprs...), nil
	}
	return Or(exprs...), nil
}

func compileGroupItem(part string) (Expr, error) {
	switch {
	case strings.HasPrefix(part, "and("):
		return compileGroup(strings.TrimPrefix(part, "and"), true)
	case strings.HasPrefix(part, "or("):
		return compileGroup(strings.TrimPrefix(part, "or"), false)
	}
	column, rest, found := strings.Cut(part, ".")
	if !found {
		return nil, httputil.Malformed("filter %q must be <column>.<operator>.<value>", part)
	}
	return Compile(column, rest)
}

// stripParens removes one balanced outer pair of parentheses.
func stripParens(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[1 : len(s)-1], true
}

// splitTopLevel splits on commas that are not nested inside parentheses,
// so in-lists and nested groups survive intact.
func splitTopLevel(s string) []string {
	var parts []string
	var current strings.Builder
	depth := 0

	for _, char := range s {
		switch char {
		case '(':
			depth++
			current.WriteRune(char)
		case ')':
			depth--
			current.WriteRune(char)
		case ',':
			if depth == 0 {
				parts = append(parts, current.String())
				current.Reset()
			} else {
				current.WriteRune(char)
			}
		default:
			current.WriteRune(char)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// CompilePredicate compiles a single operator and literal into a predicate.
func CompilePredicate(op, value string) (Predicate, error) {
	switch op {
	case "eq":
		return func(v any) bool { return !store.IsNull(v) && store.Stringify(v) == value }, nil
	case "neq":
		// null is neither equal nor unequal; neq excludes it like the
		// emulated backend does
		return func(v any) bool { return !store.IsNull(v) && store.Stringify(v) != value }, nil
	case "gt", "gte", "lt", "lte":
		return compileOrdered(op, value)
	case "like":
		return compileLike(value, false), nil
	case "ilike":
		return compileLike(value, true), nil
	case "is":
		if value != "null" {
			return nil, httputil.Malformed("is filter supports only null, got %q", value)
		}
		return store.IsNull, nil
	case "in":
		members, ok := parseList(value)
		if !ok {
			return nil, httputil.Malformed("in filter requires a parenthesized list, got %q", value)
		}
		return func(v any) bool {
			s := store.Stringify(v)
			for _, m := range members {
				if s == m {
					return true
				}
			}
			return false
		}, nil
	case "cs", "contains":
		members, ok := parseList(value)
		if !ok {
			return nil, httputil.Malformed("cs filter requires a list literal, got %q", value)
		}
		return func(v any) bool {
			have, ok := sliceMembers(v)
			return ok && containsAll(have, members)
		}, nil
	case "cd", "containedBy":
		members, ok := parseList(value)
		if !ok {
			return nil, httputil.Malformed("cd filter requires a list literal, got %q", value)
		}
		return func(v any) bool {
			have, ok := sliceMembers(v)
			return ok && containsAll(members, have)
		}, nil
	case "ov", "overlaps":
		members, ok := parseList(value)
		if !ok {
			return nil, httputil.Malformed("ov filter requires a list literal, got %q", value)
		}
		return func(v any) bool {
			have, ok := sliceMembers(v)
			if !ok {
				return false
			}
			for _, h := range have {
				for _, m := range members {
					if h == m {
						return true
					}
				}
			}
			return false
		}, nil
	case "fts":
		terms := strings.Fields(strings.ToLower(strings.ReplaceAll(value, "&", " ")))
		return func(v any) bool {
			doc := strings.ToLower(store.Stringify(v))
			for _, term := range terms {
				if !strings.Contains(doc, term) {
					return false
				}
			}
			return len(terms) > 0
		}, nil
	case "match":
		var want map[string]any
		if err := json.Unmarshal([]byte(value), &want); err != nil {
			return nil, httputil.Malformed("match filter requires a JSON object, got %q", value)
		}
		return func(v any) bool {
			have, ok := store.AsMap(v)
			if !ok {
				return false
			}
			for k, wantV := range want {
				haveV, exists := have[k]
				if !exists || store.Stringify(haveV) != store.Stringify(wantV) {
					return false
				}
			}
			return true
		}, nil
	default:
		return nil, httputil.Malformed("unknown filter operator %q", op)
	}
}

// parseList parses "(a,b,c)" and "{a,b,c}" literals into stringified members.
func parseList(value string) ([]string, bool) {
	value = strings.TrimSpace(value)
	var inner string
	switch {
	case strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")"):
		inner = value[1 : len(value)-1]
	case strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}"):
		inner = value[1 : len(value)-1]
	default:
		return nil, false
	}
	if strings.TrimSpace(inner) == "" {
		return nil, true
	}
	parts := strings.Split(inner, ",")
	members := make([]string, 0, len(parts))
	for _, p := range parts {
		members = append(members, strings.Trim(strings.TrimSpace(p), `"`))
	}
	return members, true
}

func sliceMembers(v any) ([]string, bool) {
	s, ok := store.AsSlice(v)
	if !ok {
		return nil, false
	}
	members := make([]string, len(s))
	for i, elem := range s {
		members[i] = store.Stringify(elem)
	}
	return members, true
}

func containsAll(haystack, needles []string) bool {
	for _, n := range needles {
		found := false
		for _, h := range haystack {
			if h == n {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
