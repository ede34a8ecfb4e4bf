// concurrency/semaphore.go
/* Package concurrency bounds the number of requests the client has in flight. Every dispatch
holds a permit from a channel semaphore for the duration of the round trip; the permit's
request ID travels in the request context and the X-Request-ID header. */
package concurrency

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AcquireConcurrencyPermit waits for a permit, giving up after the handler's permit timeout or
// when ctx is done. On success the returned context carries the permit's request ID and the
// caller must call ReleaseConcurrencyPermit.
//
// Example:
//
//	ctx, requestID, err := handler.AcquireConcurrencyPermit(ctx)
//	if err != nil {
//	    return err
//	}
//	defer handler.ReleaseConcurrencyPermit(requestID)
func (ch *ConcurrencyHandler) AcquireConcurrencyPermit(ctx context.Context) (context.Context, uuid.UUID, error) {
	log := ch.logger
	start := time.Now()
	requestID := uuid.New()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, ch.permitTimeout)
	defer cancel()

	select {
	case ch.sem <- struct{}{}:
		waited := time.Since(start)
		ch.Metrics.recordAcquire(waited)

		utilized := len(ch.sem)
		log.Debug("Acquired concurrency permit",
			zap.String("RequestID", requestID.String()),
			zap.Duration("AcquisitionTime", waited),
			zap.Int("UtilizedPermits", utilized),
			zap.Int("AvailablePermits", cap(ch.sem)-utilized),
		)
		return context.WithValue(ctx, RequestIDKey{}, requestID), requestID, nil

	case <-ctxWithTimeout.Done():
		ch.Metrics.recordTimeout()
		log.Warn("Failed to acquire concurrency permit",
			zap.String("RequestID", requestID.String()),
			zap.Error(ctxWithTimeout.Err()),
		)
		return ctx, requestID, ctxWithTimeout.Err()
	}
}

// ReleaseConcurrencyPermit returns a permit to the pool.
func (ch *ConcurrencyHandler) ReleaseConcurrencyPermit(requestID uuid.UUID) {
	<-ch.sem

	utilized := len(ch.sem)
	ch.logger.Debug("Released concurrency permit",
		zap.String("RequestID", requestID.String()),
		zap.Int("UtilizedPermits", utilized),
		zap.Int("AvailablePermits", cap(ch.sem)-utilized),
	)
}
