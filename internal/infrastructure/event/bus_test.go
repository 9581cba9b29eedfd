package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string, tenantID uuid.UUID) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "StockLine", uuid.New(), tenantID),
		Data:            "payload",
	}
}

type testHandler struct {
	eventTypes []string
	mu         sync.Mutex
	handled    []shared.DomainEvent
	err        error
	panics     bool
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panics {
		panic("boom")
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to typed and wildcard handlers", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		typed := newTestHandler("StockIncreased")
		other := newTestHandler("StockDecreased")
		wildcard := newTestHandler()
		bus.Subscribe(typed)
		bus.Subscribe(other)
		bus.Subscribe(wildcard)

		require.NoError(t, bus.Publish(ctx,
			newTestEvent("StockIncreased", uuid.New()),
			newTestEvent("StockIncreased", uuid.New()),
		))

		assert.Equal(t, 2, typed.count())
		assert.Equal(t, 0, other.count())
		assert.Equal(t, 2, wildcard.count())
	})

	t.Run("explicit types override the handler's own", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		h := newTestHandler("StockIncreased")
		bus.Subscribe(h, "StockAdjusted")

		require.NoError(t, bus.Publish(ctx, newTestEvent("StockIncreased", uuid.New())))
		require.NoError(t, bus.Publish(ctx, newTestEvent("StockAdjusted", uuid.New())))

		assert.Equal(t, 1, h.count())
	})

	t.Run("failing handler does not stop the others and is reported", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := newTestHandler("StockReserved")
		failing.err = errors.New("downstream unavailable")
		ok := newTestHandler("StockReserved")
		bus.Subscribe(failing)
		bus.Subscribe(ok)

		err := bus.Publish(ctx, newTestEvent("StockReserved", uuid.New()))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "downstream unavailable")
		assert.Equal(t, 1, failing.count())
		assert.Equal(t, 1, ok.count())
	})

	t.Run("panicking handler becomes an error", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := newTestHandler("StockReleased")
		h.panics = true
		bus.Subscribe(h)

		err := bus.Publish(ctx, newTestEvent("StockReleased", uuid.New()))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "panicked")
	})

	t.Run("unsubscribed handler receives nothing", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := newTestHandler("StockIncreased")
		bus.Subscribe(h)
		require.NoError(t, bus.Publish(ctx, newTestEvent("StockIncreased", uuid.New())))

		bus.Unsubscribe(h)
		require.NoError(t, bus.Publish(ctx, newTestEvent("StockIncreased", uuid.New())))

		assert.Equal(t, 1, h.count())
	})
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, bus.Start(ctx))
	assert.True(t, bus.IsRunning())

	require.NoError(t, bus.Stop(ctx))
	assert.False(t, bus.IsRunning())
}
