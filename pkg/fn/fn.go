// Package fn implements the edge-function registry of the mock backend.
// Edge functions live on their own path space (/functions/v1/<name>) and,
// unlike remote procedures, control their full response: status code and a
// structured, text or binary payload.
package fn

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/edgeflare/pgrestmock/pkg/httputil"
	"github.com/edgeflare/pgrestmock/pkg/store"
)

// Response is what an edge function returns. Exactly one of JSON, Text or
// Binary should be set; Status defaults to 200 when zero.
type Response struct {
	Status      int
	JSON        any
	Text        string
	Binary      []byte
	ContentType string // for Binary; defaults to application/octet-stream
}

// Handler is a registered edge function. It receives the raw request body,
// the query parameters, the HTTP method and the live store.
type Handler func(body []byte, query url.Values, method string, s *store.Store) (Response, error)

// Dispatcher is a name-keyed registry of edge functions.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates an empty registry.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register adds an edge function under name, replacing any previous handler.
func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

// Invoke runs the named edge function. An unregistered name fails with a
// fixed 404; handler errors and panics surface as handler failures.
func (d *Dispatcher) Invoke(name string, body []byte, query url.Values, method string, s *store.Store) (resp Response, err error) {
	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()
	if !ok {
		return Response{}, httputil.NotFound("edge function %s is not registered", name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = httputil.HandlerFailure(fmt.Errorf("edge function %s panicked: %v", name, r))
		}
	}()

	resp, err = h(body, query, method, s)
	if err != nil {
		if apiErr, ok := err.(*httputil.APIError); ok {
			return Response{}, apiErr
		}
		return Response{}, httputil.HandlerFailure(err)
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	return resp, nil
}

// Reset drops all registered edge functions.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[string]Handler)
}

// Write encodes the response onto w.
func (r Response) Write(w http.ResponseWriter) {
	switch {
	case r.Binary != nil:
		contentType := r.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		httputil.Blob(w, r.Status, r.Binary, contentType)
	case r.Text != "":
		httputil.Text(w, r.Status, r.Text)
	default:
		httputil.JSON(w, r.Status, r.JSON)
	}
}
