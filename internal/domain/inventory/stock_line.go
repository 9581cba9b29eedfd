package inventory

import (
	"fmt"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockKey identifies a ledger row.
// LocationID and VariantID are optional; nil means warehouse or product level.
type StockKey struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	LocationID  *uuid.UUID
	VariantID   *uuid.UUID
}

// Validate checks that the mandatory parts of the key are present
func (k StockKey) Validate() error {
	if k.ProductID == uuid.Nil {
		return shared.Errorf(shared.ErrInvalidArgument, "product ID cannot be empty")
	}
	if k.WarehouseID == uuid.Nil {
		return shared.Errorf(shared.ErrInvalidArgument, "warehouse ID cannot be empty")
	}
	return nil
}

// SequenceKey is the movement ordering scope: product + warehouse
func (k StockKey) SequenceKey() string {
	return fmt.Sprintf("%s:%s", k.ProductID, k.WarehouseID)
}

// String renders the full key, using "-" for absent parts
func (k StockKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.ProductID, k.WarehouseID, optionalID(k.LocationID), optionalID(k.VariantID))
}

// WithLocation returns a copy of the key at another location
func (k StockKey) WithLocation(locationID *uuid.UUID) StockKey {
	k.LocationID = locationID
	return k
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}

// StockLine is the ledger row: current physical and reserved quantity of a
// product at a warehouse, optionally narrowed to a location and a variant.
// Rows are never deleted; zero quantity rows stay for history.
type StockLine struct {
	shared.TenantAggregateRoot
	ProductID        uuid.UUID
	WarehouseID      uuid.UUID
	LocationID       *uuid.UUID
	VariantID        *uuid.UUID
	Quantity         decimal.Decimal
	ReservedQuantity decimal.Decimal
	LotNumber        string
	SerialNumber     string
	ExpiryDate       *time.Time
	LastMovementAt   *time.Time
	LastCountAt      *time.Time
}

// NewStockLine creates an empty ledger row for the key
func NewStockLine(tenantID uuid.UUID, key StockKey) (*StockLine, error) {
	if tenantID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "tenant ID cannot be empty")
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &StockLine{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           key.ProductID,
		WarehouseID:         key.WarehouseID,
		LocationID:          key.LocationID,
		VariantID:           key.VariantID,
		Quantity:            decimal.Zero,
		ReservedQuantity:    decimal.Zero,
	}, nil
}

// Key returns the identity of the row
func (s *StockLine) Key() StockKey {
	return StockKey{
		ProductID:   s.ProductID,
		WarehouseID: s.WarehouseID,
		LocationID:  s.LocationID,
		VariantID:   s.VariantID,
	}
}

// AvailableQuantity is Quantity minus ReservedQuantity. It is derived and never stored.
func (s *StockLine) AvailableQuantity() decimal.Decimal {
	return s.Quantity.Sub(s.ReservedQuantity)
}

// TrackingInfo carries optional lot/serial/expiry data for a receipt or issue
type TrackingInfo struct {
	LotNumber    string
	SerialNumber string
	ExpiryDate   *time.Time
}

// Increase adds physical stock. It is always legal for a positive quantity.
func (s *StockLine) Increase(qty decimal.Decimal, tracking *TrackingInfo) ([]shared.DomainEvent, error) {
	if err := requirePositive(qty, "quantity"); err != nil {
		return nil, err
	}

	before := s.snapshot()
	s.Quantity = s.Quantity.Add(qty)
	if tracking != nil {
		if tracking.LotNumber != "" {
			s.LotNumber = tracking.LotNumber
		}
		if tracking.SerialNumber != "" {
			s.SerialNumber = tracking.SerialNumber
		}
		if tracking.ExpiryDate != nil {
			s.ExpiryDate = tracking.ExpiryDate
		}
	}
	s.touchMovement()

	return []shared.DomainEvent{NewStockIncreasedEvent(s, qty, before)}, nil
}

// Decrease removes physical stock. Reserved stock cannot be taken, so the
// check is against AvailableQuantity rather than Quantity.
func (s *StockLine) Decrease(qty decimal.Decimal) ([]shared.DomainEvent, error) {
	if err := requirePositive(qty, "quantity"); err != nil {
		return nil, err
	}
	if qty.GreaterThan(s.AvailableQuantity()) {
		return nil, shared.Errorf(shared.ErrInsufficientStock,
			"insufficient stock: requested %s, available %s", qty.String(), s.AvailableQuantity().String())
	}

	before := s.snapshot()
	s.Quantity = s.Quantity.Sub(qty)
	s.touchMovement()

	return []shared.DomainEvent{NewStockDecreasedEvent(s, qty, before)}, nil
}

// Reserve carves qty out of the available stock without removing it
func (s *StockLine) Reserve(qty decimal.Decimal) ([]shared.DomainEvent, error) {
	if err := requirePositive(qty, "quantity"); err != nil {
		return nil, err
	}
	if qty.GreaterThan(s.AvailableQuantity()) {
		return nil, shared.Errorf(shared.ErrInsufficientAvailableStock,
			"cannot reserve %s, available %s", qty.String(), s.AvailableQuantity().String())
	}

	before := s.snapshot()
	s.ReservedQuantity = s.ReservedQuantity.Add(qty)
	s.touch()

	return []shared.DomainEvent{NewStockReservedEvent(s, qty, before)}, nil
}

// Release gives back previously reserved quantity
func (s *StockLine) Release(qty decimal.Decimal) ([]shared.DomainEvent, error) {
	if err := requirePositive(qty, "quantity"); err != nil {
		return nil, err
	}
	if qty.GreaterThan(s.ReservedQuantity) {
		return nil, shared.Errorf(shared.ErrOverRelease,
			"cannot release %s, reserved %s", qty.String(), s.ReservedQuantity.String())
	}

	before := s.snapshot()
	s.ReservedQuantity = s.ReservedQuantity.Sub(qty)
	s.touch()

	return []shared.DomainEvent{NewStockReleasedEvent(s, qty, before)}, nil
}

// Adjust overwrites Quantity with a counted value and records the variance.
// The new quantity may not drop below what is reserved; reservations have to
// be released first.
func (s *StockLine) Adjust(newQty decimal.Decimal, reason string) (decimal.Decimal, []shared.DomainEvent, error) {
	if newQty.IsNegative() {
		return decimal.Zero, nil, shared.Errorf(shared.ErrInvalidArgument, "adjusted quantity cannot be negative")
	}
	if newQty.LessThan(s.ReservedQuantity) {
		return decimal.Zero, nil, shared.Errorf(shared.ErrInvalidArgument,
			"adjusted quantity %s is below reserved quantity %s", newQty.String(), s.ReservedQuantity.String())
	}

	before := s.snapshot()
	variance := newQty.Sub(s.Quantity)
	s.Quantity = newQty
	now := s.touchMovement()
	s.LastCountAt = &now

	return variance, []shared.DomainEvent{NewStockAdjustedEvent(s, variance, reason, before)}, nil
}

// HasStock reports whether anything is physically present
func (s *StockLine) HasStock() bool {
	return s.Quantity.IsPositive()
}

// IsExpired reports whether the tracked expiry date has passed
func (s *StockLine) IsExpired(now time.Time) bool {
	return s.ExpiryDate != nil && now.After(*s.ExpiryDate)
}

// quantities captures the row before a mutation for event payloads
type quantities struct {
	quantity decimal.Decimal
	reserved decimal.Decimal
}

func (s *StockLine) snapshot() quantities {
	return quantities{quantity: s.Quantity, reserved: s.ReservedQuantity}
}

func (s *StockLine) touch() time.Time {
	now := time.Now()
	s.Touch(now)
	return now
}

func (s *StockLine) touchMovement() time.Time {
	now := s.touch()
	s.LastMovementAt = &now
	return now
}

func requirePositive(qty decimal.Decimal, field string) error {
	if !qty.IsPositive() {
		return shared.Errorf(shared.ErrInvalidArgument, "%s must be positive, got %s", field, qty.String())
	}
	return nil
}
