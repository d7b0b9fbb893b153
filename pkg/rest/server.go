package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/edgeflare/pgrestmock/pkg/fn"
	"github.com/edgeflare/pgrestmock/pkg/httputil"
	"github.com/edgeflare/pgrestmock/pkg/metrics"
	"github.com/edgeflare/pgrestmock/pkg/rpc"
	"github.com/edgeflare/pgrestmock/pkg/store"
	"go.uber.org/zap"
)

// InjectFunc is the error-injection hook: it runs before every operation,
// including rpc, with the resolved schema, the table name (nil for rpc), the
// decoded request payload and the operation kind. A returned error aborts the
// operation before any store mutation and is surfaced verbatim.
type InjectFunc func(schema string, table *string, payload any, op Operation) error

// Server is one mock backend instance: an in-memory store plus the RPC and
// edge-function registries, exposed as an http.Handler speaking the
// PostgREST wire conventions. Each Server owns its state, so independent
// instances can coexist in one test run.
type Server struct {
	store   *store.Store
	rpc     *rpc.Dispatcher
	fns     *fn.Dispatcher
	logger  *zap.Logger
	mu      sync.RWMutex
	inject  InjectFunc
	metrics bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to a no-op logger, which is
// what a test suite usually wants.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics enables per-operation Prometheus counters.
func WithMetrics() Option {
	return func(s *Server) { s.metrics = true }
}

// NewServer creates a mock backend with an empty store and empty registries.
func NewServer(opts ...Option) *Server {
	s := &Server{
		store:  store.New(),
		rpc:    rpc.NewDispatcher(),
		fns:    fn.NewDispatcher(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the live store, for seeding fixtures and asserting state.
func (s *Server) Store() *store.Store { return s.store }

// RPC returns the remote-procedure registry.
func (s *Server) RPC() *rpc.Dispatcher { return s.rpc }

// Functions returns the edge-function registry.
func (s *Server) Functions() *fn.Dispatcher { return s.fns }

// InjectErr installs the error-injection hook; nil removes it.
func (s *Server) InjectErr(hook InjectFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inject = hook
}

// Reset clears the store, both handler registries and the injection hook.
// Used between test cases; not part of the wire protocol.
func (s *Server) Reset() {
	s.store.Reset()
	s.rpc.Reset()
	s.fns.Reset()
	s.InjectErr(nil)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if isEdgePath(r.URL.Path) {
		s.handleEdge(w, r)
		return
	}
	if isBannerPath(r.URL.Path) {
		httputil.JSON(w, http.StatusOK, map[string]any{"name": "pgrestmock", "status": "ok"})
		return
	}

	headers := parseHeaders(r)
	target, err := Classify(r, headers)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	err = s.dispatch(w, r, headers, target)
	if err != nil {
		s.fail(w, r, err)
	} else if s.metrics {
		metrics.Operations.WithLabelValues(target.Schema, target.Name, string(target.Op)).Inc()
		metrics.OperationDuration.WithLabelValues(string(target.Op)).Observe(time.Since(start).Seconds())
	}

	s.logger.Debug("request",
		zap.String("method", r.Method),
		zap.String("url", r.URL.String()),
		zap.String("operation", string(target.Op)),
		zap.Duration("latency", time.Since(start)),
		zap.Bool("failed", err != nil),
	)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, headers *Headers, target *Target) error {
	switch target.Op {
	case OpSelect, OpHead:
		return s.handleRead(w, r, headers, target)
	case OpInsert, OpUpsert:
		return s.handleWrite(w, r, headers, target)
	case OpUpdate:
		return s.handleUpdate(w, r, headers, target)
	case OpDelete:
		return s.handleDelete(w, r, headers, target)
	case OpRPC:
		return s.handleRPC(w, r, target)
	default:
		return httputil.Malformed("unsupported operation %q", target.Op)
	}
}

// runInject invokes the error-injection hook, if any, before the operation
// touches the store.
func (s *Server) runInject(schema string, table *string, payload any, op Operation) error {
	s.mu.RLock()
	hook := s.inject
	s.mu.RUnlock()
	if hook == nil {
		return nil
	}
	return hook(schema, table, payload, op)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request, headers *Headers, target *Target) error {
	if err := s.runInject(target.Schema, &target.Name, nil, target.Op); err != nil {
		return err
	}

	spec, err := parseQuerySpec(r, headers)
	if err != nil {
		return err
	}

	result, err := runPipeline(s.store.Snapshot(target.Schema, target.Name), spec)
	if err != nil {
		return err
	}

	writeCountHeaders(w, headers, result)
	if target.Op == OpHead {
		w.WriteHeader(http.StatusOK)
		return nil
	}

	switch {
	case result.Single != nil:
		httputil.JSON(w, http.StatusOK, result.Single)
	case result.Shape == ShapeMaybeSingle:
		httputil.JSON(w, http.StatusOK, nil)
	default:
		httputil.JSON(w, http.StatusOK, nonNilRows(result.Rows))
	}
	return nil
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request, headers *Headers, target *Target) error {
	rows, err := decodeRows(r.Body)
	if err != nil {
		return err
	}
	if err := s.runInject(target.Schema, &target.Name, rows, target.Op); err != nil {
		return err
	}

	var affected []store.Row
	if target.Op == OpUpsert {
		affected, err = s.store.Upsert(target.Schema, target.Name, rows)
	} else {
		affected, err = s.store.Insert(target.Schema, target.Name, rows)
	}
	if err != nil {
		return err
	}
	return writeMutation(w, headers, affected, http.StatusCreated)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, headers *Headers, target *Target) error {
	var patch store.Row
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		return httputil.Malformed("invalid JSON body: %v", err)
	}
	spec, err := parseQuerySpec(r, headers)
	if err != nil {
		return err
	}
	if err := s.runInject(target.Schema, &target.Name, patch, target.Op); err != nil {
		return err
	}

	affected, err := s.store.Update(target.Schema, target.Name, mutationPredicate(spec), patch)
	if err != nil {
		return err
	}
	return writeMutation(w, headers, affected, http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, headers *Headers, target *Target) error {
	spec, err := parseQuerySpec(r, headers)
	if err != nil {
		return err
	}
	if !spec.HasFilters() {
		return httputil.Validation("delete requires at least one filter")
	}
	if err := s.runInject(target.Schema, &target.Name, nil, target.Op); err != nil {
		return err
	}

	affected, err := s.store.Delete(target.Schema, target.Name, mutationPredicate(spec))
	if err != nil {
		return err
	}
	return writeMutation(w, headers, affected, http.StatusOK)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request, target *Target) error {
	params, err := decodeRPCParams(r)
	if err != nil {
		return err
	}
	if err := s.runInject(target.Schema, nil, params, OpRPC); err != nil {
		return err
	}

	if s.metrics {
		metrics.HandlerInvocations.WithLabelValues("rpc", target.Name).Inc()
	}
	result, err := s.rpc.Invoke(target.Name, params, s.store)
	if err != nil {
		return err
	}
	httputil.JSON(w, http.StatusOK, result)
	return nil
}

func (s *Server) handleEdge(w http.ResponseWriter, r *http.Request) {
	name, err := edgeFunctionName(r.URL.Path)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.fail(w, r, httputil.Malformed("unreadable request body: %v", err))
		return
	}
	if err := s.runInject(DefaultSchema, nil, body, OpEdge); err != nil {
		s.fail(w, r, err)
		return
	}

	if s.metrics {
		metrics.HandlerInvocations.WithLabelValues("edge", name).Inc()
	}
	resp, err := s.fns.Invoke(name, body, r.URL.Query(), r.Method, s.store)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp.Write(w)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if s.metrics {
		code := httputil.CodeInternal
		if apiErr, ok := err.(*httputil.APIError); ok {
			code = apiErr.Code
		}
		metrics.OperationErrors.WithLabelValues(code).Inc()
	}
	s.logger.Debug("request failed",
		zap.String("method", r.Method),
		zap.String("url", r.URL.String()),
		zap.Error(err),
	)
	httputil.WriteError(w, err)
}

// mutationPredicate folds the top-level compiled filters into a row
// predicate for update/delete. Relation-scoped filters never select parent
// rows, so they are not consulted here.
func mutationPredicate(spec *QuerySpec) store.Predicate {
	exprs := spec.Filters
	if len(exprs) == 0 {
		return nil
	}
	return func(row store.Row) bool { return matchesAll(row, exprs) }
}

// writeMutation encodes affected rows per the Prefer: return preference and
// the requested response shape. Representation is the default: the mock's
// callers almost always assert on returned rows.
func writeMutation(w http.ResponseWriter, headers *Headers, affected []store.Row, status int) error {
	if applied := headers.Prefer.Applied(); applied != "" {
		w.Header().Set("Preference-Applied", applied)
	}
	if headers.Prefer.WantsMinimal() {
		if status == http.StatusOK {
			status = http.StatusNoContent
		}
		w.WriteHeader(status)
		return nil
	}

	switch headers.Shape {
	case ShapeSingle:
		if len(affected) != 1 {
			return httputil.SingleExpected(len(affected))
		}
		httputil.JSON(w, status, affected[0])
	case ShapeMaybeSingle:
		switch len(affected) {
		case 0:
			httputil.JSON(w, status, nil)
		case 1:
			httputil.JSON(w, status, affected[0])
		default:
			return httputil.MultipleRows(len(affected))
		}
	default:
		httputil.JSON(w, status, nonNilRows(affected))
	}
	return nil
}

// writeCountHeaders attaches Content-Range and Preference-Applied metadata
// when a count mode was requested. The total is the pre-pagination match
// count, independent of any limit applied afterward.
func writeCountHeaders(w http.ResponseWriter, headers *Headers, result *Result) {
	if applied := headers.Prefer.Applied(); applied != "" {
		w.Header().Set("Preference-Applied", applied)
	}
	if result.Count == nil {
		return
	}
	c := result.Count
	if c.Returned == 0 {
		w.Header().Set("Content-Range", fmt.Sprintf("*/%d", c.Total))
		return
	}
	w.Header().Set("Content-Range", fmt.Sprintf("%d-%d/%d", c.Offset, c.Offset+c.Returned-1, c.Total))
}

// decodeRows accepts a single JSON object or an array of objects.
func decodeRows(body io.Reader) ([]store.Row, error) {
	var payload any
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, httputil.Malformed("invalid JSON body: %v", err)
	}
	switch v := payload.(type) {
	case map[string]any:
		return []store.Row{v}, nil
	case []any:
		rows := make([]store.Row, 0, len(v))
		for _, elem := range v {
			row, ok := elem.(map[string]any)
			if !ok {
				return nil, httputil.Malformed("array payload must contain objects")
			}
			rows = append(rows, row)
		}
		return rows, nil
	default:
		return nil, httputil.Malformed("payload must be an object or an array of objects")
	}
}

// decodeRPCParams reads invocation parameters from a POST body, or from the
// query string for parameterless GET-style calls.
func decodeRPCParams(r *http.Request) (map[string]any, error) {
	if r.Method == http.MethodGet || r.Body == nil {
		params := make(map[string]any)
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
		return params, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, httputil.Malformed("unreadable request body: %v", err)
	}
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal(body, &params); err != nil {
		return nil, httputil.Malformed("rpc parameters must be a JSON object: %v", err)
	}
	return params, nil
}

func nonNilRows(rows []store.Row) []store.Row {
	if rows == nil {
		return []store.Row{}
	}
	return rows
}

func isEdgePath(path string) bool {
	return strings.HasPrefix(strings.TrimPrefix(path, "/"), "functions/")
}

// isBannerPath reports whether the request targets the API root, at or before
// the version marker, which answers with a small identification banner.
func isBannerPath(path string) bool {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return true
	}
	segments := strings.Split(trimmed, "/")
	return versionSegment.MatchString(segments[len(segments)-1])
}

func edgeFunctionName(path string) (string, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if versionSegment.MatchString(seg) {
			if i+1 < len(segments) {
				return segments[i+1], nil
			}
			break
		}
	}
	return "", httputil.Malformed("edge function path %q is missing a function name", path)
}
