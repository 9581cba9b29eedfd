package inventory

import (
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeMovement is the aggregate type of movements
const AggregateTypeMovement = "Movement"

// Movement event types
const (
	EventTypeMovementCreated  = "MovementCreated"
	EventTypeMovementReversed = "MovementReversed"
)

// MovementCreatedEvent is raised once a movement has its sequence number
type MovementCreatedEvent struct {
	shared.BaseDomainEvent
	MovementID     uuid.UUID       `json:"movement_id"`
	DocumentNumber string          `json:"document_number"`
	ProductID      uuid.UUID       `json:"product_id"`
	WarehouseID    uuid.UUID       `json:"warehouse_id"`
	VariantID      *uuid.UUID      `json:"variant_id,omitempty"`
	FromLocationID *uuid.UUID      `json:"from_location_id,omitempty"`
	ToLocationID   *uuid.UUID      `json:"to_location_id,omitempty"`
	MovementType   MovementType    `json:"movement_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	SequenceNumber int64           `json:"sequence_number"`
}

// NewMovementCreatedEvent creates a new MovementCreatedEvent
func NewMovementCreatedEvent(m *Movement) *MovementCreatedEvent {
	return &MovementCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMovementCreated, AggregateTypeMovement, m.ID, m.TenantID),
		MovementID:      m.ID,
		DocumentNumber:  m.DocumentNumber,
		ProductID:       m.ProductID,
		WarehouseID:     m.WarehouseID,
		VariantID:       m.VariantID,
		FromLocationID:  m.FromLocationID,
		ToLocationID:    m.ToLocationID,
		MovementType:    m.MovementType,
		Quantity:        m.Quantity,
		UnitCost:        m.UnitCost,
		SequenceNumber:  m.SequenceNumber,
	}
}

// PartitionKey orders movement events with the ledger events of the same key
func (e *MovementCreatedEvent) PartitionKey() string {
	return e.ProductID.String() + ":" + e.WarehouseID.String()
}

// MovementReversedEvent is raised when a movement is marked reversed
type MovementReversedEvent struct {
	shared.BaseDomainEvent
	MovementID         uuid.UUID  `json:"movement_id"`
	DocumentNumber     string     `json:"document_number"`
	ProductID          uuid.UUID  `json:"product_id"`
	WarehouseID        uuid.UUID  `json:"warehouse_id"`
	ReversedMovementID uuid.UUID  `json:"reversed_movement_id"`
	ReversedBy         *uuid.UUID `json:"reversed_by,omitempty"`
	Reason             string     `json:"reason,omitempty"`
}

// NewMovementReversedEvent creates a new MovementReversedEvent
func NewMovementReversedEvent(m *Movement) *MovementReversedEvent {
	e := &MovementReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMovementReversed, AggregateTypeMovement, m.ID, m.TenantID),
		MovementID:      m.ID,
		DocumentNumber:  m.DocumentNumber,
		ProductID:       m.ProductID,
		WarehouseID:     m.WarehouseID,
		ReversedBy:      m.ReversedBy,
		Reason:          m.ReversalReason,
	}
	if m.ReversedMovementID != nil {
		e.ReversedMovementID = *m.ReversedMovementID
	}
	return e
}

// PartitionKey orders movement events with the ledger events of the same key
func (e *MovementReversedEvent) PartitionKey() string {
	return e.ProductID.String() + ":" + e.WarehouseID.String()
}
