package rest

import (
	"sort"
	"strings"

	"github.com/edgeflare/pgrestmock/pkg/filter"
	"github.com/edgeflare/pgrestmock/pkg/httputil"
	"github.com/edgeflare/pgrestmock/pkg/store"
	"github.com/spf13/cast"
)

// CountMeta carries the pre-pagination match count attached to a response
// when a count mode was requested.
type CountMeta struct {
	Total    int
	Offset   int
	Returned int
}

// Result is the resolved outcome of a read pipeline.
type Result struct {
	Rows   []store.Row
	Single store.Row // set when Shape resolved to exactly one row
	Shape  Shape
	Count  *CountMeta
}

// runPipeline evaluates a query spec over a table snapshot in the fixed
// protocol order: filter, count, order, paginate, project, resolve shape.
// Later stages depend on earlier ones, so the sequence must not be reordered:
// the count is pre-pagination, ordering precedes limit, projection is last
// so filters may reference unprojected columns.
func runPipeline(rows []store.Row, spec *QuerySpec) (*Result, error) {
	// 1. top-level and relation-scoped filters over the full snapshot
	filtered := make([]store.Row, 0, len(rows))
	for _, row := range rows {
		if !matchesAll(row, spec.Filters) {
			continue
		}
		applyRelationFilters(row, spec)
		filtered = append(filtered, row)
	}

	// 2. pre-pagination match count
	total := len(filtered)

	// 3. stable top-level ordering, numeric/date aware
	sortRows(filtered, spec.Order)

	// 4. relation ordering, each row's embedded sequence independently
	for _, row := range filtered {
		for relName, rel := range spec.Relations {
			if len(rel.Order) == 0 {
				continue
			}
			if seq, ok := store.AsSlice(row[relName]); ok {
				sortSeq(seq, rel.Order)
			}
		}
	}

	// 5. top-level pagination
	filtered = window(filtered, spec.Offset, spec.Limit)

	// 6. relation pagination
	for _, row := range filtered {
		for relName, rel := range spec.Relations {
			if rel.Offset == 0 && rel.Limit == nil {
				continue
			}
			if seq, ok := store.AsSlice(row[relName]); ok {
				row[relName] = windowSeq(seq, rel.Offset, rel.Limit)
			}
		}
	}

	// 7. projection
	for i, row := range filtered {
		filtered[i] = projectRow(row, spec)
	}

	// 8. shape resolution
	result := &Result{Rows: filtered, Shape: spec.Shape}
	switch spec.Shape {
	case ShapeSingle:
		if len(filtered) != 1 {
			return nil, httputil.SingleExpected(len(filtered))
		}
		result.Single = filtered[0]
	case ShapeMaybeSingle:
		switch len(filtered) {
		case 0:
			// empty result, not an error
		case 1:
			result.Single = filtered[0]
		default:
			return nil, httputil.MultipleRows(len(filtered))
		}
	}

	// 9. count metadata, independent of applied pagination
	if spec.Count != CountNone {
		result.Count = &CountMeta{Total: total, Offset: spec.Offset, Returned: len(filtered)}
	}

	return result, nil
}

func matchesAll(row store.Row, exprs []filter.Expr) bool {
	for _, e := range exprs {
		if !e.Match(row) {
			return false
		}
	}
	return true
}

// applyRelationFilters narrows embedded relation data in place on the
// snapshot copy: a to-one object failing its predicate is nulled out, a
// to-many sequence is reduced to matching elements. The parent row itself
// is never dropped.
func applyRelationFilters(row store.Row, spec *QuerySpec) {
	for relName, rel := range spec.Relations {
		if len(rel.Filters) == 0 {
			continue
		}
		switch v := row[relName].(type) {
		case map[string]any:
			if !matchesAll(v, rel.Filters) {
				row[relName] = nil
			}
		case []any:
			kept := make([]any, 0, len(v))
			for _, elem := range v {
				if m, ok := store.AsMap(elem); ok && matchesAll(m, rel.Filters) {
					kept = append(kept, elem)
				}
			}
			row[relName] = kept
		}
	}
}

func sortRows(rows []store.Row, order []OrderParam) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return lessByOrder(rows[i], rows[j], order)
	})
}

func sortSeq(seq []any, order []OrderParam) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(seq, func(i, j int) bool {
		a, aok := store.AsMap(seq[i])
		b, bok := store.AsMap(seq[j])
		if !aok || !bok {
			return false
		}
		return lessByOrder(a, b, order)
	})
}

func lessByOrder(a, b store.Row, order []OrderParam) bool {
	for _, o := range order {
		c := compareOrdered(a[o.Column], b[o.Column], o)
		if c != 0 {
			return c < 0
		}
	}
	return false
}

// compareOrdered compares two column values for ordering purposes: nulls by
// the declared nulls position, then timestamps by instant, then numbers by
// magnitude, then strings. Lexical comparison is the last resort only, never
// applied to values that parse as numbers or timestamps.
func compareOrdered(a, b any, o OrderParam) int {
	aNull, bNull := store.IsNull(a), store.IsNull(b)
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		if o.NullsFirst() {
			return -1
		}
		return 1
	case bNull:
		if o.NullsFirst() {
			return 1
		}
		return -1
	}

	c := compareValues(a, b)
	if o.Descending() {
		return -c
	}
	return c
}

func compareValues(a, b any) int {
	as, bs := store.Stringify(a), store.Stringify(b)

	if at, ok := filter.ParseTime(as); ok {
		if bt, ok := filter.ParseTime(bs); ok {
			return at.Compare(bt)
		}
	}
	if af, err := cast.ToFloat64E(a); err == nil {
		if bf, err := cast.ToFloat64E(b); err == nil {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(as, bs)
}

func window(rows []store.Row, offset int, limit *int) []store.Row {
	if offset >= len(rows) {
		return []store.Row{}
	}
	rows = rows[offset:]
	if limit != nil && *limit < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}

func windowSeq(seq []any, offset int, limit *int) []any {
	if offset >= len(seq) {
		return []any{}
	}
	seq = seq[offset:]
	if limit != nil && *limit < len(seq) {
		seq = seq[:*limit]
	}
	return seq
}

// projectRow restricts a row to the requested top-level columns and each
// relation's embedded data to its requested sub-columns. "*" or an absent
// select keeps everything.
func projectRow(row store.Row, spec *QuerySpec) store.Row {
	out := row
	if len(spec.Columns) > 0 && !wildcard(spec.Columns) {
		out = make(store.Row, len(spec.Columns))
		for _, col := range spec.Columns {
			if v, ok := row[col]; ok {
				out[col] = v
			}
		}
	}

	for relName, rel := range spec.Relations {
		if len(rel.Columns) == 0 || wildcard(rel.Columns) {
			continue
		}
		switch v := out[relName].(type) {
		case map[string]any:
			out[relName] = projectColumns(v, rel.Columns)
		case []any:
			projected := make([]any, len(v))
			for i, elem := range v {
				if m, ok := store.AsMap(elem); ok {
					projected[i] = projectColumns(m, rel.Columns)
				} else {
					projected[i] = elem
				}
			}
			out[relName] = projected
		}
	}
	return out
}

func projectColumns(m map[string]any, columns []string) map[string]any {
	out := make(map[string]any, len(columns))
	for _, col := range columns {
		if v, ok := m[col]; ok {
			out[col] = v
		}
	}
	return out
}

func wildcard(columns []string) bool {
	for _, c := range columns {
		if c == "*" {
			return true
		}
	}
	return false
}
