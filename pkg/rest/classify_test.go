package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		want    Target
	}{
		{
			name:   "get is select",
			method: http.MethodGet,
			path:   "/rest/v1/todos",
			want:   Target{Op: OpSelect, Schema: "public", Name: "todos"},
		},
		{
			name:   "head is head",
			method: http.MethodHead,
			path:   "/rest/v1/todos",
			want:   Target{Op: OpHead, Schema: "public", Name: "todos"},
		},
		{
			name:   "post is insert",
			method: http.MethodPost,
			path:   "/rest/v1/todos",
			want:   Target{Op: OpInsert, Schema: "public", Name: "todos"},
		},
		{
			name:    "post with merge-duplicates is upsert",
			method:  http.MethodPost,
			path:    "/rest/v1/todos",
			headers: map[string]string{"Prefer": "resolution=merge-duplicates"},
			want:    Target{Op: OpUpsert, Schema: "public", Name: "todos"},
		},
		{
			name:   "patch is update",
			method: http.MethodPatch,
			path:   "/rest/v1/todos",
			want:   Target{Op: OpUpdate, Schema: "public", Name: "todos"},
		},
		{
			name:   "delete is delete",
			method: http.MethodDelete,
			path:   "/rest/v1/todos",
			want:   Target{Op: OpDelete, Schema: "public", Name: "todos"},
		},
		{
			name:   "rpc segment selects the function",
			method: http.MethodPost,
			path:   "/rest/v1/rpc/refresh_totals",
			want:   Target{Op: OpRPC, Schema: "public", Name: "refresh_totals"},
		},
		{
			name:    "accept-profile selects the read schema",
			method:  http.MethodGet,
			path:    "/rest/v1/todos",
			headers: map[string]string{"Accept-Profile": "audit"},
			want:    Target{Op: OpSelect, Schema: "audit", Name: "todos"},
		},
		{
			name:    "content-profile selects the write schema",
			method:  http.MethodPost,
			path:    "/rest/v1/todos",
			headers: map[string]string{"Content-Profile": "audit"},
			want:    Target{Op: OpInsert, Schema: "audit", Name: "todos"},
		},
		{
			name:    "content-profile does not affect reads",
			method:  http.MethodGet,
			path:    "/rest/v1/todos",
			headers: map[string]string{"Content-Profile": "audit"},
			want:    Target{Op: OpSelect, Schema: "public", Name: "todos"},
		},
		{
			name:   "version segment may sit deeper in the path",
			method: http.MethodGet,
			path:   "/anything/rest/v2/todos",
			want:   Target{Op: OpSelect, Schema: "public", Name: "todos"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(tc.method, tc.path, nil)
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			target, err := Classify(r, parseHeaders(r))
			require.NoError(t, err)
			assert.Equal(t, tc.want, *target)
		})
	}
}

func TestClassifyErrors(t *testing.T) {
	testCases := []struct {
		name   string
		method string
		path   string
	}{
		{"missing version segment", http.MethodGet, "/rest/todos"},
		{"version segment with nothing after it", http.MethodGet, "/rest/v1"},
		{"rpc without a function name", http.MethodPost, "/rest/v1/rpc"},
		{"unsupported method", http.MethodPut, "/rest/v1/todos"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(tc.method, tc.path, nil)
			_, err := Classify(r, parseHeaders(r))
			assert.Error(t, err)
		})
	}
}
