package httputil

import (
	"context"
	"net/http"
	"sync"
)

// Router is a thin wrapper around http.ServeMux that applies a middleware
// chain to every registered handler. It exists so the mock backend can be
// served standalone with the same request-id/logging middleware that library
// users get when they mount the handler themselves.
type Router struct {
	mux        *http.ServeMux
	server     *http.Server
	middleware []Middleware
	mu         sync.RWMutex
}

// NewRouter creates a new Router.
func NewRouter() *Router {
	return &Router{
		mux:    http.NewServeMux(),
		server: &http.Server{},
	}
}

// Use adds one or more middleware to the router. Middleware functions are
// applied in the order they are added.
func (r *Router) Use(mw Middleware, additional ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
	r.middleware = append(r.middleware, additional...)
}

// Handle registers a handler for the given ServeMux pattern.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.mux.Handle(pattern, handler)
}

// ListenAndServe starts the HTTP server on addr with the middleware chain applied.
func (r *Router) ListenAndServe(addr string) error {
	r.server.Addr = addr
	r.server.Handler = r.applyMiddleware()
	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (r *Router) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

func (r *Router) applyMiddleware() http.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var handler http.Handler = r.mux
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	return handler
}
