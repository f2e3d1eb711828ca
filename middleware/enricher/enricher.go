package enricher

import (
	"time"

	"github.com/google/uuid"

	"github.com/sweetpotato0/wanderai/middleware"
)

// Metadata keys set by RequestMetadata.
const (
	KeyRequestID  = "request_id"
	KeyReceivedAt = "received_at"
	KeyClient     = "client"
)

// EnricherFunc enriches the context
type EnricherFunc func(*middleware.Context) error

// ContextEnricher adds additional data to the middleware context
type ContextEnricher struct {
	enricher EnricherFunc
}

// NewContextEnricher creates a context enriching middleware
func NewContextEnricher(enricher EnricherFunc) *ContextEnricher {
	return &ContextEnricher{enricher: enricher}
}

// Name returns the middleware name
func (m *ContextEnricher) Name() string {
	return "ContextEnricher"
}

// Execute enriches the context
func (m *ContextEnricher) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if m.enricher != nil {
		if ctx.Metadata == nil {
			ctx.Metadata = make(map[string]any)
		}
		if err := m.enricher(ctx); err != nil {
			return err
		}
	}
	return next(ctx)
}

// RequestMetadata stamps a request id, the receive time and the client
// identity when known, keeping an id the caller already set.
func RequestMetadata(ctx *middleware.Context) error {
	if _, ok := ctx.Metadata[KeyRequestID]; !ok {
		ctx.Metadata[KeyRequestID] = uuid.NewString()
	}
	ctx.Metadata[KeyReceivedAt] = time.Now().UTC()
	if client := ctx.Client(); client != "" {
		ctx.Metadata[KeyClient] = client
	}
	return nil
}
