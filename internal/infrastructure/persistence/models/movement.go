package models

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementModel is the persistence model for the append-only movement history.
// Uniqueness of (tenant_id, product_id, warehouse_id, sequence_number) is
// enforced by the migration.
type MovementModel struct {
	TenantAggregateModel
	DocumentNumber     string                 `gorm:"type:varchar(50);not null;index"`
	MovementDate       time.Time              `gorm:"not null;index"`
	ProductID          uuid.UUID              `gorm:"type:uuid;not null;index:idx_movement_sequence,priority:1"`
	WarehouseID        uuid.UUID              `gorm:"type:uuid;not null;index:idx_movement_sequence,priority:2"`
	SequenceNumber     int64                  `gorm:"not null;index:idx_movement_sequence,priority:3"`
	VariantID          *uuid.UUID             `gorm:"type:uuid"`
	FromLocationID     *uuid.UUID             `gorm:"type:uuid"`
	ToLocationID       *uuid.UUID             `gorm:"type:uuid"`
	MovementType       inventory.MovementType `gorm:"type:varchar(30);not null;index"`
	Quantity           decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	UnitCost           decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	LotNumber          string                 `gorm:"type:varchar(100)"`
	SerialNumber       string                 `gorm:"type:varchar(100)"`
	ReferenceType      string                 `gorm:"type:varchar(50)"`
	ReferenceNumber    string                 `gorm:"type:varchar(100)"`
	ReferenceID        *uuid.UUID             `gorm:"type:uuid;index"`
	Description        string                 `gorm:"type:varchar(500)"`
	UserID             *uuid.UUID             `gorm:"type:uuid"`
	IsReversed         bool                   `gorm:"not null;default:false"`
	ReversedMovementID *uuid.UUID             `gorm:"type:uuid"`
	ReversedBy         *uuid.UUID             `gorm:"type:uuid"`
	ReversedAt         *time.Time
	ReversalReason     string `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (MovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the model to a domain Movement
func (m *MovementModel) ToDomain() *inventory.Movement {
	return &inventory.Movement{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		DocumentNumber:      m.DocumentNumber,
		MovementDate:        m.MovementDate,
		ProductID:           m.ProductID,
		WarehouseID:         m.WarehouseID,
		VariantID:           m.VariantID,
		FromLocationID:      m.FromLocationID,
		ToLocationID:        m.ToLocationID,
		MovementType:        m.MovementType,
		Quantity:            m.Quantity,
		UnitCost:            m.UnitCost,
		SequenceNumber:      m.SequenceNumber,
		LotNumber:           m.LotNumber,
		SerialNumber:        m.SerialNumber,
		Reference: inventory.ReferenceDocument{
			Type:   m.ReferenceType,
			Number: m.ReferenceNumber,
			ID:     m.ReferenceID,
		},
		Description:        m.Description,
		UserID:             m.UserID,
		IsReversed:         m.IsReversed,
		ReversedMovementID: m.ReversedMovementID,
		ReversedBy:         m.ReversedBy,
		ReversedAt:         m.ReversedAt,
		ReversalReason:     m.ReversalReason,
	}
}

// MovementModelFromDomain creates a model from a domain Movement
func MovementModelFromDomain(mv *inventory.Movement) *MovementModel {
	m := &MovementModel{
		DocumentNumber:     mv.DocumentNumber,
		MovementDate:       mv.MovementDate,
		ProductID:          mv.ProductID,
		WarehouseID:        mv.WarehouseID,
		SequenceNumber:     mv.SequenceNumber,
		VariantID:          mv.VariantID,
		FromLocationID:     mv.FromLocationID,
		ToLocationID:       mv.ToLocationID,
		MovementType:       mv.MovementType,
		Quantity:           mv.Quantity,
		UnitCost:           mv.UnitCost,
		LotNumber:          mv.LotNumber,
		SerialNumber:       mv.SerialNumber,
		ReferenceType:      mv.Reference.Type,
		ReferenceNumber:    mv.Reference.Number,
		ReferenceID:        mv.Reference.ID,
		Description:        mv.Description,
		UserID:             mv.UserID,
		IsReversed:         mv.IsReversed,
		ReversedMovementID: mv.ReversedMovementID,
		ReversedBy:         mv.ReversedBy,
		ReversedAt:         mv.ReversedAt,
		ReversalReason:     mv.ReversalReason,
	}
	m.FromDomainTenantAggregateRoot(mv.TenantAggregateRoot)
	return m
}

// SequenceModel holds the last number handed out per (tenant, key)
type SequenceModel struct {
	TenantID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	SequenceKey  string    `gorm:"type:varchar(160);primaryKey"`
	CurrentValue int64     `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceModel) TableName() string {
	return "ledger_sequences"
}
