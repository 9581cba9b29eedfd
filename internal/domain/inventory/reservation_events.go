package inventory

import (
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeReservation is the aggregate type of reservations
const AggregateTypeReservation = "Reservation"

// Reservation event types
const (
	EventTypeReservationCreated            = "ReservationCreated"
	EventTypeReservationPartiallyFulfilled = "ReservationPartiallyFulfilled"
	EventTypeReservationFulfilled          = "ReservationFulfilled"
	EventTypeReservationCancelled          = "ReservationCancelled"
	EventTypeReservationExpired            = "ReservationExpired"
)

// ReservationSnapshot is the common payload of reservation events
type ReservationSnapshot struct {
	ReservationID     uuid.UUID         `json:"reservation_id"`
	ReservationNumber string            `json:"reservation_number"`
	ProductID         uuid.UUID         `json:"product_id"`
	WarehouseID       uuid.UUID         `json:"warehouse_id"`
	LocationID        *uuid.UUID        `json:"location_id,omitempty"`
	VariantID         *uuid.UUID        `json:"variant_id,omitempty"`
	Status            ReservationStatus `json:"status"`
	Quantity          decimal.Decimal   `json:"quantity"`
	FulfilledQuantity decimal.Decimal   `json:"fulfilled_quantity"`
	RemainingQuantity decimal.Decimal   `json:"remaining_quantity"`
}

func newReservationSnapshot(r *Reservation) ReservationSnapshot {
	return ReservationSnapshot{
		ReservationID:     r.ID,
		ReservationNumber: r.ReservationNumber,
		ProductID:         r.ProductID,
		WarehouseID:       r.WarehouseID,
		LocationID:        r.LocationID,
		VariantID:         r.VariantID,
		Status:            r.Status,
		Quantity:          r.Quantity,
		FulfilledQuantity: r.FulfilledQuantity,
		RemainingQuantity: r.RemainingQuantity(),
	}
}

// ReservationCreatedEvent is raised when a reservation is placed
type ReservationCreatedEvent struct {
	shared.BaseDomainEvent
	ReservationSnapshot
	ReservationType ReservationType `json:"reservation_type"`
}

// NewReservationCreatedEvent creates a new ReservationCreatedEvent
func NewReservationCreatedEvent(r *Reservation) *ReservationCreatedEvent {
	return &ReservationCreatedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeReservationCreated, AggregateTypeReservation, r.ID, r.TenantID),
		ReservationSnapshot: newReservationSnapshot(r),
		ReservationType:     r.ReservationType,
	}
}

// ReservationPartiallyFulfilledEvent is raised when part of a reservation is consumed
type ReservationPartiallyFulfilledEvent struct {
	shared.BaseDomainEvent
	ReservationSnapshot
	FulfilledNow decimal.Decimal `json:"fulfilled_now"`
}

// NewReservationPartiallyFulfilledEvent creates a new ReservationPartiallyFulfilledEvent
func NewReservationPartiallyFulfilledEvent(r *Reservation, qty decimal.Decimal) *ReservationPartiallyFulfilledEvent {
	return &ReservationPartiallyFulfilledEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeReservationPartiallyFulfilled, AggregateTypeReservation, r.ID, r.TenantID),
		ReservationSnapshot: newReservationSnapshot(r),
		FulfilledNow:        qty,
	}
}

// ReservationFulfilledEvent is raised when nothing remains to fulfil
type ReservationFulfilledEvent struct {
	shared.BaseDomainEvent
	ReservationSnapshot
	FulfilledNow decimal.Decimal `json:"fulfilled_now"`
}

// NewReservationFulfilledEvent creates a new ReservationFulfilledEvent
func NewReservationFulfilledEvent(r *Reservation, qty decimal.Decimal) *ReservationFulfilledEvent {
	return &ReservationFulfilledEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeReservationFulfilled, AggregateTypeReservation, r.ID, r.TenantID),
		ReservationSnapshot: newReservationSnapshot(r),
		FulfilledNow:        qty,
	}
}

// ReservationCancelledEvent is raised on cancellation
type ReservationCancelledEvent struct {
	shared.BaseDomainEvent
	ReservationSnapshot
	ReleasedQuantity decimal.Decimal `json:"released_quantity"`
	Reason           string          `json:"reason,omitempty"`
}

// NewReservationCancelledEvent creates a new ReservationCancelledEvent
func NewReservationCancelledEvent(r *Reservation, released decimal.Decimal) *ReservationCancelledEvent {
	return &ReservationCancelledEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeReservationCancelled, AggregateTypeReservation, r.ID, r.TenantID),
		ReservationSnapshot: newReservationSnapshot(r),
		ReleasedQuantity:    released,
		Reason:              r.CancelReason,
	}
}

// ReservationExpiredEvent is raised when an overdue reservation is expired
type ReservationExpiredEvent struct {
	shared.BaseDomainEvent
	ReservationSnapshot
	ReleasedQuantity decimal.Decimal `json:"released_quantity"`
}

// NewReservationExpiredEvent creates a new ReservationExpiredEvent
func NewReservationExpiredEvent(r *Reservation, released decimal.Decimal) *ReservationExpiredEvent {
	return &ReservationExpiredEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeReservationExpired, AggregateTypeReservation, r.ID, r.TenantID),
		ReservationSnapshot: newReservationSnapshot(r),
		ReleasedQuantity:    released,
	}
}
