// concurrency/handler.go
package concurrency

import (
	"context"
	"sync"
	"time"

	"github.com/deploymenttheory/go-api-http-session/logger"
	"github.com/google/uuid"
)

// ConcurrencyHandler controls the number of concurrent HTTP requests.
type ConcurrencyHandler struct {
	sem           chan struct{}
	logger        logger.Logger
	permitTimeout time.Duration
	lock          sync.Mutex
	Metrics       *ConcurrencyMetrics
}

// NewConcurrencyHandler initializes a ConcurrencyHandler that allows at most limit requests in
// flight. Limits outside [MinConcurrency, MaxConcurrency] are clamped. A non-positive
// permitTimeout uses DefaultPermitTimeout.
func NewConcurrencyHandler(limit int, log logger.Logger, permitTimeout time.Duration) *ConcurrencyHandler {
	limit = max(MinConcurrency, min(limit, MaxConcurrency))
	if permitTimeout <= 0 {
		permitTimeout = DefaultPermitTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ConcurrencyHandler{
		sem:           make(chan struct{}, limit),
		logger:        log,
		permitTimeout: permitTimeout,
		Metrics:       &ConcurrencyMetrics{},
	}
}

// Limit returns the number of permits.
func (ch *ConcurrencyHandler) Limit() int {
	return cap(ch.sem)
}

// InFlight returns the number of permits currently held.
func (ch *ConcurrencyHandler) InFlight() int {
	return len(ch.sem)
}

// RequestIDKey is the context key under which the permit's request ID is stored.
type RequestIDKey struct{}

// RequestIDFromContext returns the request ID stored by AcquireConcurrencyPermit, if any.
func RequestIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(RequestIDKey{}).(uuid.UUID)
	return id, ok
}
