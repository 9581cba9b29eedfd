package inventory

import (
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeStockLine is the aggregate type of ledger rows
const AggregateTypeStockLine = "StockLine"

// Ledger event types
const (
	EventTypeStockIncreased = "StockIncreased"
	EventTypeStockDecreased = "StockDecreased"
	EventTypeStockReserved  = "StockReserved"
	EventTypeStockReleased  = "StockReleased"
	EventTypeStockAdjusted  = "StockAdjusted"
)

// StockChange is the common payload of every ledger event. Consumers can
// maintain a read model from it without re-querying the ledger.
type StockChange struct {
	StockLineID            uuid.UUID       `json:"stock_line_id"`
	ProductID              uuid.UUID       `json:"product_id"`
	WarehouseID            uuid.UUID       `json:"warehouse_id"`
	LocationID             *uuid.UUID      `json:"location_id,omitempty"`
	VariantID              *uuid.UUID      `json:"variant_id,omitempty"`
	Quantity               decimal.Decimal `json:"quantity"`
	QuantityBefore         decimal.Decimal `json:"quantity_before"`
	QuantityAfter          decimal.Decimal `json:"quantity_after"`
	ReservedQuantityBefore decimal.Decimal `json:"reserved_quantity_before"`
	ReservedQuantityAfter  decimal.Decimal `json:"reserved_quantity_after"`
	SequenceNumber         int64           `json:"sequence_number"`
}

func newStockChange(s *StockLine, qty decimal.Decimal, before quantities) StockChange {
	return StockChange{
		StockLineID:            s.ID,
		ProductID:              s.ProductID,
		WarehouseID:            s.WarehouseID,
		LocationID:             s.LocationID,
		VariantID:              s.VariantID,
		Quantity:               qty,
		QuantityBefore:         before.quantity,
		QuantityAfter:          s.Quantity,
		ReservedQuantityBefore: before.reserved,
		ReservedQuantityAfter:  s.ReservedQuantity,
	}
}

// PartitionKey orders ledger events per product and warehouse
func (c *StockChange) PartitionKey() string {
	return c.ProductID.String() + ":" + c.WarehouseID.String()
}

// AssignSequence stamps the movement sequence number on the event
func (c *StockChange) AssignSequence(seq int64) {
	c.SequenceNumber = seq
}

// sequenced is implemented by events that carry a movement sequence number
type sequenced interface {
	AssignSequence(seq int64)
}

// StampSequence sets seq on every event that carries a sequence number
func StampSequence(events []shared.DomainEvent, seq int64) {
	for _, e := range events {
		if s, ok := e.(sequenced); ok {
			s.AssignSequence(seq)
		}
	}
}

// StockIncreasedEvent is raised when physical stock is added
type StockIncreasedEvent struct {
	shared.BaseDomainEvent
	StockChange
	LotNumber    string `json:"lot_number,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// NewStockIncreasedEvent creates a new StockIncreasedEvent
func NewStockIncreasedEvent(s *StockLine, qty decimal.Decimal, before quantities) *StockIncreasedEvent {
	return &StockIncreasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockIncreased, AggregateTypeStockLine, s.ID, s.TenantID),
		StockChange:     newStockChange(s, qty, before),
		LotNumber:       s.LotNumber,
		SerialNumber:    s.SerialNumber,
	}
}

// StockDecreasedEvent is raised when physical stock is removed
type StockDecreasedEvent struct {
	shared.BaseDomainEvent
	StockChange
}

// NewStockDecreasedEvent creates a new StockDecreasedEvent
func NewStockDecreasedEvent(s *StockLine, qty decimal.Decimal, before quantities) *StockDecreasedEvent {
	return &StockDecreasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockDecreased, AggregateTypeStockLine, s.ID, s.TenantID),
		StockChange:     newStockChange(s, qty, before),
	}
}

// StockReservedEvent is raised when available stock is reserved
type StockReservedEvent struct {
	shared.BaseDomainEvent
	StockChange
}

// NewStockReservedEvent creates a new StockReservedEvent
func NewStockReservedEvent(s *StockLine, qty decimal.Decimal, before quantities) *StockReservedEvent {
	return &StockReservedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReserved, AggregateTypeStockLine, s.ID, s.TenantID),
		StockChange:     newStockChange(s, qty, before),
	}
}

// StockReleasedEvent is raised when reserved stock is given back
type StockReleasedEvent struct {
	shared.BaseDomainEvent
	StockChange
}

// NewStockReleasedEvent creates a new StockReleasedEvent
func NewStockReleasedEvent(s *StockLine, qty decimal.Decimal, before quantities) *StockReleasedEvent {
	return &StockReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReleased, AggregateTypeStockLine, s.ID, s.TenantID),
		StockChange:     newStockChange(s, qty, before),
	}
}

// StockAdjustedEvent is raised when the quantity is overwritten by a count or correction
type StockAdjustedEvent struct {
	shared.BaseDomainEvent
	StockChange
	Variance decimal.Decimal `json:"variance"`
	Reason   string          `json:"reason,omitempty"`
}

// NewStockAdjustedEvent creates a new StockAdjustedEvent
func NewStockAdjustedEvent(s *StockLine, variance decimal.Decimal, reason string, before quantities) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockAdjusted, AggregateTypeStockLine, s.ID, s.TenantID),
		StockChange:     newStockChange(s, variance.Abs(), before),
		Variance:        variance,
		Reason:          reason,
	}
}
