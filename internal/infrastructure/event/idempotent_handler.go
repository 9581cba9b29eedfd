package event

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyConfig controls duplicate suppression for outbox consumers
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

// DefaultIdempotencyConfig enables suppression with the default TTL
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{Enabled: true, TTL: shared.DefaultIdempotencyTTL}
}

// IdempotencyMetrics counts delivery outcomes of one or more consumers
type IdempotencyMetrics struct {
	processed  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

// IdempotencyStats is a snapshot of IdempotencyMetrics
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: m.processed.Load(),
		EventsDuplicate: m.duplicates.Load(),
		EventsFailed:    m.failed.Load(),
	}
}

// IdempotentHandler makes an outbox consumer see each event once. Marks are
// scoped to the consumer name, so two consumers of the same event never
// suppress each other. A failed delivery drops its mark again so the
// outbox retry reaches the consumer.
type IdempotentHandler struct {
	next     shared.EventHandler
	store    shared.IdempotencyStore
	config   IdempotencyConfig
	consumer string
	logger   *zap.Logger
	metrics  *IdempotencyMetrics
}

type IdempotentHandlerOption func(*IdempotentHandler)

func WithIdempotencyConfig(config IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.config = config }
}

// WithIdempotencyMetrics shares one counter set between handlers
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.metrics = metrics }
}

// WithConsumerName overrides the mark scope, which defaults to the Go type
// of the wrapped handler
func WithConsumerName(name string) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if name != "" {
			h.consumer = name
		}
	}
}

func NewIdempotentHandler(next shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		next:     next,
		store:    store,
		config:   DefaultIdempotencyConfig(),
		consumer: fmt.Sprintf("%T", next),
		logger:   logger,
		metrics:  &IdempotencyMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string {
	return h.next.EventTypes()
}

// markKey is the store key of event for this consumer
func (h *IdempotentHandler) markKey(event shared.DomainEvent) string {
	return h.consumer + "/" + event.EventID().String()
}

// Handle delivers event unless this consumer already has it. When the store
// is unreachable the event is delivered anyway.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.next.Handle(ctx, event)
	}

	key := h.markKey(event)
	log := h.logger.With(
		zap.String("consumer", h.consumer),
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	)

	marked, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	if err != nil {
		log.Warn("Idempotency store unavailable, delivering event unchecked", zap.Error(err))
	} else if !marked {
		h.metrics.duplicates.Add(1)
		log.Debug("Duplicate event skipped")
		return nil
	}

	if err := h.next.Handle(ctx, event); err != nil {
		h.metrics.failed.Add(1)
		if marked {
			if uerr := h.store.Unmark(ctx, key); uerr != nil {
				log.Warn("Failed to clear mark of failed event, redelivery will be skipped", zap.Error(uerr))
			}
		}
		return err
	}
	h.metrics.processed.Add(1)
	return nil
}

func (h *IdempotentHandler) GetMetrics() *IdempotencyMetrics {
	return h.metrics
}

// Unwrap returns the wrapped handler
func (h *IdempotentHandler) Unwrap() shared.EventHandler {
	return h.next
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
