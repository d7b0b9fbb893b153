package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edgeflare/pgrestmock/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specFor(t *testing.T, url string, headers map[string]string) *QuerySpec {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, url, nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	spec, err := parseQuerySpec(r, parseHeaders(r))
	require.NoError(t, err)
	return spec
}

func TestParseQuerySpecFilters(t *testing.T) {
	spec := specFor(t, "/rest/v1/todos?done=eq.false&priority=gte.2", nil)

	require.Len(t, spec.Filters, 2)
	assert.True(t, spec.HasFilters())

	row := store.Row{"done": false, "priority": float64(3)}
	for _, f := range spec.Filters {
		assert.True(t, f.Match(row))
	}
}

func TestParseQuerySpecOrGroup(t *testing.T) {
	spec := specFor(t, "/rest/v1/todos?or=(id.eq.1,id.eq.2)", nil)

	require.Len(t, spec.Filters, 1)
	assert.True(t, spec.Filters[0].Match(store.Row{"id": float64(2)}))
	assert.False(t, spec.Filters[0].Match(store.Row{"id": float64(3)}))
}

func TestParseQuerySpecAndGroup(t *testing.T) {
	spec := specFor(t, "/rest/v1/todos?and=(done.eq.false,priority.gte.2)", nil)

	require.Len(t, spec.Filters, 1)
	assert.True(t, spec.Filters[0].Match(store.Row{"done": false, "priority": float64(2)}))
	assert.False(t, spec.Filters[0].Match(store.Row{"done": true, "priority": float64(2)}))
}

func TestParseQuerySpecSelect(t *testing.T) {
	spec := specFor(t, "/rest/v1/todos?select=id,title,comments(id,body)", nil)

	assert.Equal(t, []string{"id", "title", "comments"}, spec.Columns)
	require.Contains(t, spec.Relations, "comments")
	assert.Equal(t, []string{"id", "body"}, spec.Relations["comments"].Columns)
}

func TestParseQuerySpecRelationParams(t *testing.T) {
	spec := specFor(t, "/rest/v1/todos?comments.likes=gt.0&comments.order=likes.desc&comments.limit=2&comments.offset=1", nil)

	rel, ok := spec.Relations["comments"]
	require.True(t, ok)
	require.Len(t, rel.Filters, 1)
	assert.True(t, rel.Filters[0].Match(store.Row{"likes": float64(3)}))
	require.Len(t, rel.Order, 1)
	assert.Equal(t, "likes", rel.Order[0].Column)
	assert.True(t, rel.Order[0].Descending())
	require.NotNil(t, rel.Limit)
	assert.Equal(t, 2, *rel.Limit)
	assert.Equal(t, 1, rel.Offset)

	// relation filters do not select parent rows
	assert.False(t, spec.HasFilters())
}

func TestParseQuerySpecPagination(t *testing.T) {
	spec := specFor(t, "/rest/v1/todos?limit=5&offset=10&order=due.desc", nil)

	require.NotNil(t, spec.Limit)
	assert.Equal(t, 5, *spec.Limit)
	assert.Equal(t, 10, spec.Offset)
	require.Len(t, spec.Order, 1)
	assert.Equal(t, "due", spec.Order[0].Column)
}

func TestParseQuerySpecRangeHeader(t *testing.T) {
	spec := specFor(t, "/rest/v1/todos", map[string]string{"Range": "items=2-4"})

	assert.Equal(t, 2, spec.Offset)
	require.NotNil(t, spec.Limit)
	assert.Equal(t, 3, *spec.Limit)
}

func TestParseQuerySpecOpenEndedRange(t *testing.T) {
	spec := specFor(t, "/rest/v1/todos", map[string]string{"Range": "5-"})

	assert.Equal(t, 5, spec.Offset)
	assert.Nil(t, spec.Limit)
}

func TestParseQuerySpecShapeAndCount(t *testing.T) {
	spec := specFor(t, "/rest/v1/todos", map[string]string{
		"Accept": "application/vnd.pgrst.object+json",
		"Prefer": "count=exact",
	})

	assert.Equal(t, ShapeSingle, spec.Shape)
	assert.Equal(t, CountExact, spec.Count)
}

func TestParseQuerySpecErrors(t *testing.T) {
	testCases := []struct {
		name    string
		url     string
		headers map[string]string
	}{
		{"negative limit", "/rest/v1/todos?limit=-1", nil},
		{"non-numeric offset", "/rest/v1/todos?offset=abc", nil},
		{"unknown operator", "/rest/v1/todos?id=resembles.1", nil},
		{"unknown operator in relation filter", "/rest/v1/todos?comments.likes=resembles.1", nil},
		{"unparenthesized or group", "/rest/v1/todos?or=id.eq.1", nil},
		{"backwards range", "/rest/v1/todos", map[string]string{"Range": "items=4-2"}},
		{"negative relation limit", "/rest/v1/todos?comments.limit=-1", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.url, nil)
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			_, err := parseQuerySpec(r, parseHeaders(r))
			assert.Error(t, err)
		})
	}
}
