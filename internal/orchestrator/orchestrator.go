// Package orchestrator implements the per-request pipeline: classify the
// inbound endpoint, force the upstream call to non-streaming, apply fixes,
// bridge/synthesize back into the client's grammar, and hand metrics off to
// exporters without blocking the response.
package orchestrator

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/llamabridge/llamabridge/internal/backend"
	"github.com/llamabridge/llamabridge/internal/config"
	"github.com/llamabridge/llamabridge/internal/exporters"
	"github.com/llamabridge/llamabridge/internal/fixes"
	"github.com/llamabridge/llamabridge/internal/observability"
)

// Orchestrator is the root http.Handler for the proxy's inbound surface.
type Orchestrator struct {
	cfg       *config.Manager
	client    *backend.Client
	fixes     *fixes.Registry
	exporters *exporters.Manager
	logger    *zap.Logger
}

func New(cfg *config.Manager, client *backend.Client, fixRegistry *fixes.Registry, exporterMgr *exporters.Manager, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		client:    client,
		fixes:     fixRegistry,
		exporters: exporterMgr,
		logger:    logger,
	}
}

// ServeHTTP classifies the request per spec.md §4.E step 1 and dispatches
// to the matching flow. Unknown paths fall through to opaque pass-through,
// matching "Unknown → proxy-pass-through".
func (o *Orchestrator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		o.handleLocalHealth(w)
	case r.Method == http.MethodPost && r.URL.Path == "/v1/chat/completions":
		o.handleOpenAI(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/v1/messages":
		o.handleAnthropic(w, r)
	default:
		o.handlePassthrough(w, r)
	}
}

func (o *Orchestrator) handleLocalHealth(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (o *Orchestrator) handlePassthrough(w http.ResponseWriter, r *http.Request) {
	if err := o.client.Passthrough(w, r); err != nil {
		o.logger.Warn("passthrough forward failed", zap.String("path", r.URL.Path), zap.Error(err))
		writePlainError(w, http.StatusBadGateway, "upstream unavailable")
	}
}

func obsLogger(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if l := observability.FromContext(r.Context()); l != nil {
		return l
	}
	return fallback
}
