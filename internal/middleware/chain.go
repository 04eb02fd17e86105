// Package middleware provides the small set of cross-cutting HTTP
// concerns the orchestrator's handlers need: request logging, panic
// containment, and the inbound body-size cap.
package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// Middleware wraps a handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain represents an ordered composition of middleware.
type Chain struct {
	middlewares []Middleware
}

func New(middlewares ...Middleware) Chain {
	return Chain{middlewares: middlewares}
}

func (c Chain) Then(middlewares ...Middleware) Chain {
	return Chain{middlewares: append(c.middlewares, middlewares...)}
}

// Handler applies the chain, first-registered outermost.
func (c Chain) Handler(handler http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}
	return handler
}

// MiddlewareSet bundles the middleware every route in the proxy needs.
type MiddlewareSet struct {
	Recover Middleware
	Logging Middleware
	MaxBody Middleware
}

// NewMiddlewareSet builds the set. maxBodyBytes enforces spec.md §6's
// inbound body size cap (default 10 MiB, configurable).
func NewMiddlewareSet(logger *zap.Logger, maxBodyBytes int64) MiddlewareSet {
	return MiddlewareSet{
		Recover: NewRecoverMiddleware(logger),
		Logging: NewLoggingMiddleware(logger),
		MaxBody: NewMaxBodyMiddleware(maxBodyBytes),
	}
}

// DefaultChain is applied to every route: panic containment first (so a
// panic anywhere downstream is still logged and answered with 500 rather
// than killing the connection), then request logging, then the body cap.
func (ms MiddlewareSet) DefaultChain() Chain {
	return New(ms.Recover, ms.Logging, ms.MaxBody)
}
