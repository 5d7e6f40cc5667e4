package event

import (
	"context"
	"sync/atomic"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// IdempotencyStats counts what an IdempotentHandler did with its deliveries
type IdempotencyStats struct {
	Processed int64
	Duplicate int64
	Failed    int64
}

// KeyFunc derives the deduplication key for an event
type KeyFunc func(shared.DomainEvent) string

// EventIDKey keys on the event ID, so only redeliveries of the same event are dropped
func EventIDKey(e shared.DomainEvent) string {
	return e.EventID().String()
}

// AggregateKey keys on event type plus aggregate ID, so a second event of the
// same type for the same aggregate is also dropped
func AggregateKey(e shared.DomainEvent) string {
	return e.EventType() + ":" + e.AggregateID().String()
}

// IdempotentHandler drops events whose key was already handled successfully.
// A failed delivery releases its key so a retry can run.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	keyFunc KeyFunc
	logger  *zap.Logger

	processed atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the TTL and on/off switch
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithKeyFunc sets how deduplication keys are derived. Defaults to EventIDKey.
func WithKeyFunc(fn KeyFunc) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.keyFunc = fn
	}
}

// NewIdempotentHandler wraps handler with a duplicate check against store
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	log *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		keyFunc: EventIDKey,
		logger:  log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle claims the event's key, runs the wrapped handler, and releases the
// key again if the handler fails. When the store is unreachable the event is
// processed anyway.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	key := h.keyFunc(event)
	log := logger.WithLogger(ctx, h.logger).With(
		zap.String("idempotency_key", key),
		zap.String("event_type", event.EventType()),
	)

	claimed := false
	isNew, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	switch {
	case err != nil:
		log.Warn("idempotency check failed, processing anyway", zap.Error(err))
	case !isNew:
		h.duplicate.Add(1)
		log.Debug("duplicate event skipped")
		return nil
	default:
		claimed = true
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		if claimed {
			if ferr := h.store.Forget(ctx, key); ferr != nil {
				log.Warn("failed to release idempotency key", zap.Error(ferr))
			}
		}
		return err
	}

	h.processed.Add(1)
	return nil
}

// Stats returns a snapshot of the handler's counters
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed: h.processed.Load(),
		Duplicate: h.duplicate.Load(),
		Failed:    h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
