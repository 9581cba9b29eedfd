package event

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus delivers events to subscribed handlers in the caller's
// goroutine. The outbox processor is its only publisher: a returned error
// leaves the outbox entry for retry, so handlers must tolerate redelivery.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	running  atomic.Bool
}

func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{registry: NewHandlerRegistry(), logger: logger}
}

// Publish delivers each event to every matching handler. A failing handler
// does not stop the others; the result joins all failures.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	var errs []error
	for _, e := range events {
		errs = append(errs, b.deliver(ctx, e))
	}
	return errors.Join(errs...)
}

func (b *InMemoryEventBus) deliver(ctx context.Context, e shared.DomainEvent) error {
	var errs []error
	for _, h := range b.registry.GetHandlers(e.EventType()) {
		err := safeHandle(ctx, h, e)
		if err == nil {
			continue
		}
		b.logger.Error("Event handler failed",
			zap.String("event_type", e.EventType()),
			zap.String("event_id", e.EventID().String()),
			zap.String("tenant_id", e.TenantID().String()),
			zap.String("handler", fmt.Sprintf("%T", h)),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%T: %w", h, err))
	}
	return errors.Join(errs...)
}

// safeHandle turns a handler panic into an error
func safeHandle(ctx context.Context, h shared.EventHandler, e shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked on %s: %v", e.EventType(), r)
		}
	}()
	return h.Handle(ctx, e)
}

// Subscribe registers handler for eventTypes, or for its own EventTypes
// when none are given
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Event handler subscribed",
		zap.String("handler", fmt.Sprintf("%T", handler)),
		zap.Strings("event_types", eventTypes),
	)
}

func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

func (b *InMemoryEventBus) Start(context.Context) error {
	if b.running.CompareAndSwap(false, true) {
		b.logger.Info("Event bus started", zap.Int("handlers", len(b.registry.GetAllHandlers())))
	}
	return nil
}

func (b *InMemoryEventBus) Stop(context.Context) error {
	if b.running.CompareAndSwap(true, false) {
		b.logger.Info("Event bus stopped")
	}
	return nil
}

func (b *InMemoryEventBus) IsRunning() bool {
	return b.running.Load()
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
