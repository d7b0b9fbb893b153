package rest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/edgeflare/pgrestmock/pkg/filter"
	"github.com/edgeflare/pgrestmock/pkg/httputil"
)

// QuerySpec is the decomposed intent of one request: compiled filters,
// ordering, pagination, projection and response shape, for the top level and
// for each embedded relation.
type QuerySpec struct {
	Filters   []filter.Expr // conjunctive; includes compiled or=(...) groups
	Relations map[string]*RelationSpec
	Order     []OrderParam
	Columns   []string // nil or "*" selects all columns
	Limit     *int
	Offset    int
	Shape     Shape
	Count     CountMode
}

// RelationSpec scopes filters, ordering, pagination and projection to one
// embedded relation field.
type RelationSpec struct {
	Filters []filter.Expr
	Order   []OrderParam
	Columns []string
	Limit   *int
	Offset  int
}

// HasFilters reports whether the request carried any filter criterion,
// which delete requires.
func (q *QuerySpec) HasFilters() bool {
	return len(q.Filters) > 0
}

func (q *QuerySpec) relation(name string) *RelationSpec {
	rel, ok := q.Relations[name]
	if !ok {
		rel = &RelationSpec{}
		q.Relations[name] = rel
	}
	return rel
}

// parseQuerySpec compiles the request's query parameters and headers into a
// QuerySpec. Filter expressions are compiled once here and evaluated per row
// by the pipeline.
func parseQuerySpec(r *http.Request, h *Headers) (*QuerySpec, error) {
	spec := &QuerySpec{
		Relations: make(map[string]*RelationSpec),
		Shape:     h.Shape,
		Count:     h.Prefer.CountMode(),
	}

	queryValues := r.URL.Query()

	if sel := queryValues.Get("select"); sel != "" {
		parseSelectParam(spec, sel)
	}
	if order := queryValues.Get("order"); order != "" {
		spec.Order = parseOrderParam(order)
	}
	if limit := queryValues.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return nil, httputil.Malformed("invalid limit %q", limit)
		}
		spec.Limit = &n
	}
	if offset := queryValues.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return nil, httputil.Malformed("invalid offset %q", offset)
		}
		spec.Offset = n
	}
	if err := parseRangeHeader(spec, r.Header.Get("Range")); err != nil {
		return nil, err
	}

	for key, values := range queryValues {
		if isReservedParam(key) || len(values) == 0 {
			continue
		}

		switch {
		case key == "or":
			for _, value := range values {
				expr, err := filter.CompileOr(value)
				if err != nil {
					return nil, err
				}
				spec.Filters = append(spec.Filters, expr)
			}
		case key == "and":
			for _, value := range values {
				expr, err := compileAnd(value)
				if err != nil {
					return nil, err
				}
				spec.Filters = append(spec.Filters, expr)
			}
		case strings.Contains(key, "."):
			if err := parseRelationParam(spec, key, values); err != nil {
				return nil, err
			}
		default:
			for _, value := range values {
				expr, err := filter.Compile(key, value)
				if err != nil {
					return nil, err
				}
				spec.Filters = append(spec.Filters, expr)
			}
		}
	}

	return spec, nil
}

func compileAnd(value string) (filter.Expr, error) {
	// and=(a.eq.1,b.eq.2) is the conjunctive group form; reuse the
	// disjunction compiler through a single nested and(...) item.
	return filter.CompileOr("(and" + value + ")")
}

// parseRelationParam handles <relation>.<column>=<op>.<value> filters and the
// <relation>.order/limit/offset scoped parameters.
func parseRelationParam(spec *QuerySpec, key string, values []string) error {
	relName, rest, _ := strings.Cut(key, ".")
	rel := spec.relation(relName)

	switch rest {
	case "order":
		rel.Order = parseOrderParam(values[0])
	case "limit":
		n, err := strconv.Atoi(values[0])
		if err != nil || n < 0 {
			return httputil.Malformed("invalid limit %q for relation %q", values[0], relName)
		}
		rel.Limit = &n
	case "offset":
		n, err := strconv.Atoi(values[0])
		if err != nil || n < 0 {
			return httputil.Malformed("invalid offset %q for relation %q", values[0], relName)
		}
		rel.Offset = n
	default:
		for _, value := range values {
			expr, err := filter.Compile(rest, value)
			if err != nil {
				return err
			}
			rel.Filters = append(rel.Filters, expr)
		}
	}
	return nil
}

// parseSelectParam parses select=col1,col2,rel(sub1,sub2). A parenthesized
// entry both projects the relation's embedded columns and includes the
// relation field itself in the top-level projection.
func parseSelectParam(spec *QuerySpec, sel string) {
	for _, part := range splitRespectingParens(sel) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if open := strings.IndexByte(part, '('); open > 0 && strings.HasSuffix(part, ")") {
			relName := part[:open]
			rel := spec.relation(relName)
			for _, sub := range splitRespectingParens(part[open+1 : len(part)-1]) {
				if sub = strings.TrimSpace(sub); sub != "" {
					rel.Columns = append(rel.Columns, sub)
				}
			}
			spec.Columns = append(spec.Columns, relName)
			continue
		}
		spec.Columns = append(spec.Columns, part)
	}
}

// parseRangeHeader honors the HTTP Range header ("items" unit): an inclusive
// 0-based window translated onto offset and limit.
func parseRangeHeader(spec *QuerySpec, header string) error {
	if header == "" {
		return nil
	}
	header = strings.TrimPrefix(header, "items=")
	from, to, found := strings.Cut(header, "-")
	if !found {
		return httputil.Malformed("invalid Range header %q", header)
	}
	start, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil || start < 0 {
		return httputil.Malformed("invalid Range start %q", from)
	}
	spec.Offset = start
	if to = strings.TrimSpace(to); to != "" {
		end, err := strconv.Atoi(to)
		if err != nil || end < start {
			return httputil.Malformed("invalid Range end %q", to)
		}
		n := end - start + 1
		spec.Limit = &n
	}
	return nil
}

// isReservedParam reports whether the parameter name is structural rather
// than a column filter.
func isReservedParam(name string) bool {
	switch name {
	case "select", "order", "limit", "offset":
		return true
	}
	return false
}
