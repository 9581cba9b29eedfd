package inventory

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationStatus represents the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationStatusActive             ReservationStatus = "ACTIVE"
	ReservationStatusPartiallyFulfilled ReservationStatus = "PARTIALLY_FULFILLED"
	ReservationStatusFulfilled          ReservationStatus = "FULFILLED"
	ReservationStatusCancelled          ReservationStatus = "CANCELLED"
	ReservationStatusExpired            ReservationStatus = "EXPIRED"
)

// String returns the string representation of ReservationStatus
func (s ReservationStatus) String() string {
	return string(s)
}

var reservationTransitions = shared.TransitionTable[ReservationStatus]{
	ReservationStatusActive: {
		ReservationStatusPartiallyFulfilled,
		ReservationStatusFulfilled,
		ReservationStatusCancelled,
		ReservationStatusExpired,
	},
	ReservationStatusPartiallyFulfilled: {
		ReservationStatusPartiallyFulfilled,
		ReservationStatusFulfilled,
		ReservationStatusCancelled,
		ReservationStatusExpired,
	},
}

// IsTerminal returns true for Fulfilled, Cancelled and Expired
func (s ReservationStatus) IsTerminal() bool {
	return reservationTransitions.IsTerminal(s)
}

// ReservationType describes what the stock is held for
type ReservationType string

const (
	ReservationTypeSalesOrder ReservationType = "SALES_ORDER"
	ReservationTypeTransfer   ReservationType = "TRANSFER"
	ReservationTypeProduction ReservationType = "PRODUCTION"
	ReservationTypeManual     ReservationType = "MANUAL"
)

// IsValid returns true if the reservation type is known
func (t ReservationType) IsValid() bool {
	switch t {
	case ReservationTypeSalesOrder, ReservationTypeTransfer, ReservationTypeProduction, ReservationTypeManual:
		return true
	}
	return false
}

// Reservation is a soft hold on ledger quantity for a pending sale, transfer
// or production order. It only reports quantities; moving them on the ledger
// is the caller's job.
type Reservation struct {
	shared.TenantAggregateRoot
	ReservationNumber string
	ProductID         uuid.UUID
	WarehouseID       uuid.UUID
	LocationID        *uuid.UUID
	VariantID         *uuid.UUID
	Quantity          decimal.Decimal
	FulfilledQuantity decimal.Decimal
	Status            ReservationStatus
	ReservationType   ReservationType
	Reference         ReferenceDocument
	ReservationDate   time.Time
	ExpirationDate    *time.Time
	FulfilledDate     *time.Time
	CancelledDate     *time.Time
	CancelReason      string
	Notes             string
}

// NewReservation creates an active reservation against the key
func NewReservation(
	tenantID uuid.UUID,
	key StockKey,
	reservationNumber string,
	quantity decimal.Decimal,
	reservationType ReservationType,
	expirationDate *time.Time,
) (*Reservation, []shared.DomainEvent, error) {
	if tenantID == uuid.Nil {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "tenant ID cannot be empty")
	}
	if err := key.Validate(); err != nil {
		return nil, nil, err
	}
	if err := requirePositive(quantity, "reservation quantity"); err != nil {
		return nil, nil, err
	}
	if reservationType == "" {
		reservationType = ReservationTypeManual
	}
	if !reservationType.IsValid() {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "unknown reservation type %q", reservationType)
	}
	now := time.Now()
	if expirationDate != nil && !expirationDate.After(now) {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "expiration date must be in the future")
	}

	r := &Reservation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ReservationNumber:   reservationNumber,
		ProductID:           key.ProductID,
		WarehouseID:         key.WarehouseID,
		LocationID:          key.LocationID,
		VariantID:           key.VariantID,
		Quantity:            quantity,
		FulfilledQuantity:   decimal.Zero,
		Status:              ReservationStatusActive,
		ReservationType:     reservationType,
		ReservationDate:     now,
		ExpirationDate:      expirationDate,
	}
	return r, []shared.DomainEvent{NewReservationCreatedEvent(r)}, nil
}

// StockKey returns the ledger row the reservation holds stock on
func (r *Reservation) StockKey() StockKey {
	return StockKey{ProductID: r.ProductID, WarehouseID: r.WarehouseID, LocationID: r.LocationID, VariantID: r.VariantID}
}

// RemainingQuantity is Quantity minus FulfilledQuantity
func (r *Reservation) RemainingQuantity() decimal.Decimal {
	return r.Quantity.Sub(r.FulfilledQuantity)
}

// IsOpen returns true while the reservation still holds stock
func (r *Reservation) IsOpen() bool {
	return !r.Status.IsTerminal()
}

// IsExpired compares ExpirationDate with now. It is evaluated lazily;
// nothing transitions the reservation until Expire is called.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.ExpirationDate != nil && now.After(*r.ExpirationDate)
}

// PartialFulfill consumes qty of the remaining quantity. Reaching zero
// remaining moves the reservation to Fulfilled.
func (r *Reservation) PartialFulfill(qty decimal.Decimal) ([]shared.DomainEvent, error) {
	if err := requirePositive(qty, "fulfil quantity"); err != nil {
		return nil, err
	}
	target := ReservationStatusPartiallyFulfilled
	if qty.Equal(r.RemainingQuantity()) {
		target = ReservationStatusFulfilled
	}
	if err := reservationTransitions.Check("reservation", r.Status, target); err != nil {
		return nil, err
	}
	if qty.GreaterThan(r.RemainingQuantity()) {
		return nil, shared.Errorf(shared.ErrExceedsRemaining,
			"cannot fulfil %s, remaining %s", qty.String(), r.RemainingQuantity().String())
	}

	r.FulfilledQuantity = r.FulfilledQuantity.Add(qty)
	now := r.touch()
	r.Status = target
	if target == ReservationStatusFulfilled {
		r.FulfilledDate = &now
		return []shared.DomainEvent{NewReservationFulfilledEvent(r, qty)}, nil
	}
	return []shared.DomainEvent{NewReservationPartiallyFulfilledEvent(r, qty)}, nil
}

// Fulfill consumes everything that remains and returns that quantity
func (r *Reservation) Fulfill() (decimal.Decimal, []shared.DomainEvent, error) {
	if err := reservationTransitions.Check("reservation", r.Status, ReservationStatusFulfilled); err != nil {
		return decimal.Zero, nil, err
	}
	remaining := r.RemainingQuantity()
	r.FulfilledQuantity = r.Quantity
	now := r.touch()
	r.Status = ReservationStatusFulfilled
	r.FulfilledDate = &now
	return remaining, []shared.DomainEvent{NewReservationFulfilledEvent(r, remaining)}, nil
}

// Cancel ends the reservation and returns the quantity to release on the ledger
func (r *Reservation) Cancel(reason string) (decimal.Decimal, []shared.DomainEvent, error) {
	if err := reservationTransitions.Check("reservation", r.Status, ReservationStatusCancelled); err != nil {
		return decimal.Zero, nil, err
	}
	release := r.RemainingQuantity()
	now := r.touch()
	r.Status = ReservationStatusCancelled
	r.CancelledDate = &now
	r.CancelReason = reason
	return release, []shared.DomainEvent{NewReservationCancelledEvent(r, release)}, nil
}

// Expire ends an overdue reservation and returns the quantity to release
func (r *Reservation) Expire(now time.Time) (decimal.Decimal, []shared.DomainEvent, error) {
	if err := reservationTransitions.Check("reservation", r.Status, ReservationStatusExpired); err != nil {
		return decimal.Zero, nil, err
	}
	if !r.IsExpired(now) {
		return decimal.Zero, nil, shared.Errorf(shared.ErrInvalidStateTransition,
			"reservation %s has not reached its expiration date", r.ReservationNumber)
	}
	release := r.RemainingQuantity()
	r.touch()
	r.Status = ReservationStatusExpired
	return release, []shared.DomainEvent{NewReservationExpiredEvent(r, release)}, nil
}

func (r *Reservation) touch() time.Time {
	now := time.Now()
	r.Touch(now)
	return now
}
