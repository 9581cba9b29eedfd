package inventory

import (
	"strings"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType represents the kind of ledger mutation a movement records
type MovementType string

const (
	MovementTypePurchase           MovementType = "PURCHASE"
	MovementTypeSale               MovementType = "SALE"
	MovementTypeTransfer           MovementType = "TRANSFER"
	MovementTypeProduction         MovementType = "PRODUCTION"
	MovementTypeConsumption        MovementType = "CONSUMPTION"
	MovementTypeAdjustmentIncrease MovementType = "ADJUSTMENT_INCREASE"
	MovementTypeAdjustmentDecrease MovementType = "ADJUSTMENT_DECREASE"
	MovementTypeDamage             MovementType = "DAMAGE"
	MovementTypeLoss               MovementType = "LOSS"
	MovementTypePurchaseReturn     MovementType = "PURCHASE_RETURN"
	MovementTypeSalesReturn        MovementType = "SALES_RETURN"
	// MovementTypeReservation and MovementTypeReservationRelease record
	// changes of ReservedQuantity. They move no physical stock.
	MovementTypeReservation        MovementType = "RESERVATION"
	MovementTypeReservationRelease MovementType = "RESERVATION_RELEASE"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is known
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypePurchase, MovementTypeSale, MovementTypeTransfer,
		MovementTypeProduction, MovementTypeConsumption,
		MovementTypeAdjustmentIncrease, MovementTypeAdjustmentDecrease,
		MovementTypeDamage, MovementTypeLoss,
		MovementTypePurchaseReturn, MovementTypeSalesReturn,
		MovementTypeReservation, MovementTypeReservationRelease:
		return true
	}
	return false
}

// IsReceipt returns true for types that always add physical stock
func (t MovementType) IsReceipt() bool {
	switch t {
	case MovementTypePurchase, MovementTypeProduction, MovementTypeAdjustmentIncrease, MovementTypeSalesReturn:
		return true
	}
	return false
}

// IsIssue returns true for types that always remove physical stock
func (t MovementType) IsIssue() bool {
	switch t {
	case MovementTypeSale, MovementTypeConsumption, MovementTypeAdjustmentDecrease,
		MovementTypeDamage, MovementTypeLoss, MovementTypePurchaseReturn:
		return true
	}
	return false
}

// ParseMovementType parses a movement type case-insensitively
func ParseMovementType(s string) (MovementType, error) {
	t := MovementType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.Errorf(shared.ErrInvalidArgument, "unknown movement type %q", s)
	}
	return t, nil
}

// ReferenceDocument points at the business document behind a movement or reservation
type ReferenceDocument struct {
	Type   string
	Number string
	ID     *uuid.UUID
}

// Movement is the immutable record of one ledger mutation.
// The only change allowed after creation is Reverse; corrections are new movements.
type Movement struct {
	shared.TenantAggregateRoot
	DocumentNumber     string
	MovementDate       time.Time // informational only, ordering uses SequenceNumber
	ProductID          uuid.UUID
	WarehouseID        uuid.UUID
	VariantID          *uuid.UUID
	FromLocationID     *uuid.UUID
	ToLocationID       *uuid.UUID
	MovementType       MovementType
	Quantity           decimal.Decimal
	UnitCost           decimal.Decimal
	SequenceNumber     int64
	LotNumber          string
	SerialNumber       string
	Reference          ReferenceDocument
	Description        string
	UserID             *uuid.UUID
	IsReversed         bool
	ReversedMovementID *uuid.UUID
	ReversedBy         *uuid.UUID
	ReversedAt         *time.Time
	ReversalReason     string
}

// MovementInput holds the fields needed to record a movement
type MovementInput struct {
	DocumentNumber string
	ProductID      uuid.UUID
	WarehouseID    uuid.UUID
	VariantID      *uuid.UUID
	FromLocationID *uuid.UUID
	ToLocationID   *uuid.UUID
	MovementType   MovementType
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	LotNumber      string
	SerialNumber   string
	Reference      ReferenceDocument
	Description    string
	UserID         *uuid.UUID
}

// NewMovement creates a movement without a sequence number
func NewMovement(tenantID uuid.UUID, in MovementInput) (*Movement, error) {
	if tenantID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "tenant ID cannot be empty")
	}
	if in.ProductID == uuid.Nil || in.WarehouseID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "movement requires product and warehouse")
	}
	if !in.MovementType.IsValid() {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "unknown movement type %q", in.MovementType)
	}
	if in.Quantity.IsNegative() {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "movement quantity cannot be negative")
	}
	if in.UnitCost.IsNegative() {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "unit cost cannot be negative")
	}
	if in.MovementType == MovementTypeTransfer && in.FromLocationID == nil && in.ToLocationID == nil {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "transfer requires a source or destination location")
	}

	return &Movement{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DocumentNumber:      in.DocumentNumber,
		MovementDate:        time.Now(),
		ProductID:           in.ProductID,
		WarehouseID:         in.WarehouseID,
		VariantID:           in.VariantID,
		FromLocationID:      in.FromLocationID,
		ToLocationID:        in.ToLocationID,
		MovementType:        in.MovementType,
		Quantity:            in.Quantity,
		UnitCost:            in.UnitCost,
		LotNumber:           in.LotNumber,
		SerialNumber:        in.SerialNumber,
		Reference:           in.Reference,
		Description:         in.Description,
		UserID:              in.UserID,
	}, nil
}

// SetSequenceNumber assigns the ordering number. It can be set exactly once.
func (m *Movement) SetSequenceNumber(seq int64) error {
	if seq <= 0 {
		return shared.Errorf(shared.ErrInvalidSequence, "sequence number must be positive, got %d", seq)
	}
	if m.SequenceNumber != 0 {
		return shared.Errorf(shared.ErrInvalidSequence, "sequence number already assigned (%d)", m.SequenceNumber)
	}
	m.SequenceNumber = seq
	return nil
}

// HasSequence reports whether a sequence number was assigned
func (m *Movement) HasSequence() bool {
	return m.SequenceNumber > 0
}

// IsIncoming reports whether the movement adds stock at its location.
// A transfer is incoming only when it has a destination.
func (m *Movement) IsIncoming() bool {
	return m.MovementType.IsReceipt() ||
		(m.MovementType == MovementTypeTransfer && m.ToLocationID != nil)
}

// IsOutgoing reports whether the movement removes stock from its location.
// A transfer is outgoing only when it has a source.
func (m *Movement) IsOutgoing() bool {
	return m.MovementType.IsIssue() ||
		(m.MovementType == MovementTypeTransfer && m.FromLocationID != nil)
}

// TotalCost returns Quantity * UnitCost
func (m *Movement) TotalCost() decimal.Decimal {
	return m.Quantity.Mul(m.UnitCost)
}

// Reverse marks the movement as reversed by a compensating movement.
// Quantity and SequenceNumber are untouched and the ledger is not changed here.
func (m *Movement) Reverse(reversalMovementID, reversedBy uuid.UUID, reason string) ([]shared.DomainEvent, error) {
	if m.IsReversed {
		return nil, shared.Errorf(shared.ErrAlreadyFinalized, "movement %s is already reversed", m.DocumentNumber)
	}
	if reversalMovementID == uuid.Nil || reversalMovementID == m.ID {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "a distinct reversal movement is required")
	}

	now := time.Now()
	m.IsReversed = true
	m.ReversedMovementID = &reversalMovementID
	if reversedBy != uuid.Nil {
		m.ReversedBy = &reversedBy
	}
	m.ReversedAt = &now
	m.ReversalReason = reason
	m.Touch(now)

	return []shared.DomainEvent{NewMovementReversedEvent(m)}, nil
}

// CompensatingInput builds the input of the movement that undoes m.
// Receipts are compensated by an adjustment decrease, issues by an
// adjustment increase, transfers by a transfer in the opposite direction
// and reservation movements by their counterpart.
func (m *Movement) CompensatingInput(documentNumber string, userID *uuid.UUID, reason string) (MovementInput, error) {
	if m.IsReversed {
		return MovementInput{}, shared.Errorf(shared.ErrAlreadyFinalized, "movement %s is already reversed", m.DocumentNumber)
	}
	in := MovementInput{
		DocumentNumber: documentNumber,
		ProductID:      m.ProductID,
		WarehouseID:    m.WarehouseID,
		VariantID:      m.VariantID,
		FromLocationID: m.ToLocationID,
		ToLocationID:   m.FromLocationID,
		Quantity:       m.Quantity,
		UnitCost:       m.UnitCost,
		LotNumber:      m.LotNumber,
		SerialNumber:   m.SerialNumber,
		Reference: ReferenceDocument{
			Type:   "MOVEMENT_REVERSAL",
			Number: m.DocumentNumber,
			ID:     &m.ID,
		},
		Description: reason,
		UserID:      userID,
	}
	switch {
	case m.MovementType == MovementTypeTransfer:
		in.MovementType = MovementTypeTransfer
	case m.MovementType == MovementTypeReservation:
		in.MovementType = MovementTypeReservationRelease
	case m.MovementType == MovementTypeReservationRelease:
		in.MovementType = MovementTypeReservation
	case m.MovementType.IsReceipt():
		in.MovementType = MovementTypeAdjustmentDecrease
	case m.MovementType.IsIssue():
		in.MovementType = MovementTypeAdjustmentIncrease
	default:
		return MovementInput{}, shared.Errorf(shared.ErrInvalidArgument, "movement type %s cannot be reversed", m.MovementType)
	}
	return in, nil
}

// StockKey returns the ledger key touched by a non-transfer movement.
// Such movements carry a single location on the To or From side.
func (m *Movement) StockKey() StockKey {
	loc := m.ToLocationID
	if loc == nil {
		loc = m.FromLocationID
	}
	return StockKey{ProductID: m.ProductID, WarehouseID: m.WarehouseID, LocationID: loc, VariantID: m.VariantID}
}
