package event

import (
	"github.com/erp/inventory-ledger/internal/domain/inventory"
)

// RegisterLedgerEvents registers every ledger event type with the serializer
// so the outbox processor can rebuild events from stored payloads
func RegisterLedgerEvents(serializer *EventSerializer) {
	// Stock line
	serializer.Register(inventory.EventTypeStockIncreased, &inventory.StockIncreasedEvent{})
	serializer.Register(inventory.EventTypeStockDecreased, &inventory.StockDecreasedEvent{})
	serializer.Register(inventory.EventTypeStockReserved, &inventory.StockReservedEvent{})
	serializer.Register(inventory.EventTypeStockReleased, &inventory.StockReleasedEvent{})
	serializer.Register(inventory.EventTypeStockAdjusted, &inventory.StockAdjustedEvent{})

	// Movement
	serializer.Register(inventory.EventTypeMovementCreated, &inventory.MovementCreatedEvent{})
	serializer.Register(inventory.EventTypeMovementReversed, &inventory.MovementReversedEvent{})

	// Reservation
	serializer.Register(inventory.EventTypeReservationCreated, &inventory.ReservationCreatedEvent{})
	serializer.Register(inventory.EventTypeReservationPartiallyFulfilled, &inventory.ReservationPartiallyFulfilledEvent{})
	serializer.Register(inventory.EventTypeReservationFulfilled, &inventory.ReservationFulfilledEvent{})
	serializer.Register(inventory.EventTypeReservationCancelled, &inventory.ReservationCancelledEvent{})
	serializer.Register(inventory.EventTypeReservationExpired, &inventory.ReservationExpiredEvent{})

	// Stock and cycle counts share the lifecycle payload
	for _, t := range []string{
		inventory.EventTypeStockCountCreated,
		inventory.EventTypeStockCountStarted,
		inventory.EventTypeStockCountCompleted,
		inventory.EventTypeStockCountApproved,
		inventory.EventTypeStockCountRejected,
		inventory.EventTypeStockCountCancelled,
		inventory.EventTypeStockCountProcessed,
		inventory.EventTypeStockCountAdjusted,
		inventory.EventTypeCycleCountCreated,
		inventory.EventTypeCycleCountStarted,
		inventory.EventTypeCycleCountCompleted,
		inventory.EventTypeCycleCountApproved,
		inventory.EventTypeCycleCountRejected,
		inventory.EventTypeCycleCountCancelled,
		inventory.EventTypeCycleCountProcessed,
		inventory.EventTypeCycleCountAdjusted,
	} {
		serializer.Register(t, &inventory.CountLifecycleEvent{})
	}
	serializer.Register(inventory.EventTypeStockCountItemCounted, &inventory.CountItemCountedEvent{})
	serializer.Register(inventory.EventTypeCycleCountItemCounted, &inventory.CountItemCountedEvent{})

	// Inventory adjustment
	for _, t := range []string{
		inventory.EventTypeAdjustmentCreated,
		inventory.EventTypeAdjustmentSubmitted,
		inventory.EventTypeAdjustmentApproved,
		inventory.EventTypeAdjustmentRejected,
		inventory.EventTypeAdjustmentCancelled,
		inventory.EventTypeAdjustmentProcessed,
	} {
		serializer.Register(t, &inventory.AdjustmentLifecycleEvent{})
	}
}

// NewLedgerSerializer returns a serializer with all ledger events registered
func NewLedgerSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterLedgerEvents(s)
	return s
}
