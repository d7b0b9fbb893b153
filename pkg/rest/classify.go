package rest

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/edgeflare/pgrestmock/pkg/httputil"
)

// Operation is the resolved kind of a wire request.
type Operation string

const (
	OpSelect Operation = "select"
	OpInsert Operation = "insert"
	OpUpsert Operation = "upsert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpHead   Operation = "head"
	OpRPC    Operation = "rpc"
	OpEdge   Operation = "edge"
)

// DefaultSchema is used when no profile header selects one.
const DefaultSchema = "public"

// Target is the classified intent of a request: what operation, against which
// schema, and which table or function.
type Target struct {
	Op     Operation
	Schema string
	Name   string // table name, or function name for rpc
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// Classify resolves the operation kind, schema and table/function name from
// method, path and headers. The path must carry an API version segment
// (for example /rest/v1/todos); requests without one are malformed.
func Classify(r *http.Request, h *Headers) (*Target, error) {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	marker := -1
	for i, seg := range segments {
		if versionSegment.MatchString(seg) {
			marker = i
			break
		}
	}
	if marker == -1 || marker+1 >= len(segments) {
		return nil, httputil.Malformed("path %q is missing the API version segment", r.URL.Path)
	}

	name := segments[marker+1]
	t := &Target{Name: name}

	if name == "rpc" {
		if marker+2 >= len(segments) {
			return nil, httputil.Malformed("rpc path %q is missing a function name", r.URL.Path)
		}
		t.Op = OpRPC
		t.Name = segments[marker+2]
		t.Schema = profileSchema(h.AcceptProfile)
		return t, nil
	}

	switch r.Method {
	case http.MethodGet:
		t.Op = OpSelect
		t.Schema = profileSchema(h.AcceptProfile)
	case http.MethodHead:
		t.Op = OpHead
		t.Schema = profileSchema(h.AcceptProfile)
	case http.MethodPost:
		t.Op = OpInsert
		if h.Prefer.WantsUpsert() {
			t.Op = OpUpsert
		}
		t.Schema = profileSchema(h.WriteProfile)
	case http.MethodPatch:
		t.Op = OpUpdate
		t.Schema = profileSchema(h.WriteProfile)
	case http.MethodDelete:
		t.Op = OpDelete
		t.Schema = profileSchema(h.WriteProfile)
	default:
		return nil, httputil.Malformed("method %s is not supported", r.Method)
	}

	return t, nil
}

func profileSchema(profile string) string {
	if profile == "" {
		return DefaultSchema
	}
	return profile
}
