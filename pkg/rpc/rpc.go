// Package rpc implements the remote-procedure registry of the mock backend.
// Handlers are registered by name and invoked for /rest/v1/rpc/<name>
// requests with a live reference to the store, so custom procedures can read
// and write any schema.
package rpc

import (
	"fmt"
	"sync"

	"github.com/edgeflare/pgrestmock/pkg/httputil"
	"github.com/edgeflare/pgrestmock/pkg/store"
	"github.com/mitchellh/mapstructure"
)

// Handler is a registered remote procedure. params carries the JSON body of
// a POST invocation (or the query parameters of a GET one); the returned
// value is encoded as the JSON response.
type Handler func(params map[string]any, s *store.Store) (any, error)

// Dispatcher is a name-keyed registry of remote procedures.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates an empty registry.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register adds a remote procedure under name, replacing any previous handler.
func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

// Invoke runs the named procedure. An unregistered name is not found; a
// handler error or panic surfaces as a handler failure carrying the
// underlying message, unless the handler returned a structured APIError.
func (d *Dispatcher) Invoke(name string, params map[string]any, s *store.Store) (result any, err error) {
	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()
	if !ok {
		return nil, httputil.NotFound("function %s is not registered", name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = httputil.HandlerFailure(fmt.Errorf("rpc %s panicked: %v", name, r))
		}
	}()

	result, err = h(params, s)
	if err != nil {
		if apiErr, ok := err.(*httputil.APIError); ok {
			return nil, apiErr
		}
		return nil, httputil.HandlerFailure(err)
	}
	return result, nil
}

// Reset drops all registered procedures.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[string]Handler)
}

// DecodeParams binds an invocation's parameter map onto a tagged struct, so
// handlers do not have to pick values out of the map by hand.
func DecodeParams(params map[string]any, dst any) error {
	return mapstructure.Decode(params, dst)
}
