package models

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLineModel is the persistence model for the StockLine aggregate.
// StockKey holds the rendered (product, warehouse, location, variant) key so
// that nullable location and variant still form a unique row per tenant.
type StockLineModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_line_tenant_key,priority:1"`
	Version          int             `gorm:"not null;default:1"`
	CreatedBy        *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
	StockKey         string          `gorm:"type:varchar(160);not null;uniqueIndex:idx_stock_line_tenant_key,priority:2"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_line_product_warehouse,priority:1"`
	WarehouseID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_line_product_warehouse,priority:2"`
	LocationID       *uuid.UUID      `gorm:"type:uuid"`
	VariantID        *uuid.UUID      `gorm:"type:uuid"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReservedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LotNumber        string          `gorm:"type:varchar(100)"`
	SerialNumber     string          `gorm:"type:varchar(100)"`
	ExpiryDate       *time.Time
	LastMovementAt   *time.Time
	LastCountAt      *time.Time
}

// TableName returns the table name for GORM
func (StockLineModel) TableName() string {
	return "stock_lines"
}

// ToDomain converts the model to a domain StockLine
func (m *StockLineModel) ToDomain() *inventory.StockLine {
	return &inventory.StockLine{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
				Version:    m.Version,
			},
			TenantID:  m.TenantID,
			CreatedBy: m.CreatedBy,
		},
		ProductID:        m.ProductID,
		WarehouseID:      m.WarehouseID,
		LocationID:       m.LocationID,
		VariantID:        m.VariantID,
		Quantity:         m.Quantity,
		ReservedQuantity: m.ReservedQuantity,
		LotNumber:        m.LotNumber,
		SerialNumber:     m.SerialNumber,
		ExpiryDate:       m.ExpiryDate,
		LastMovementAt:   m.LastMovementAt,
		LastCountAt:      m.LastCountAt,
	}
}

// StockLineModelFromDomain creates a model from a domain StockLine
func StockLineModelFromDomain(s *inventory.StockLine) *StockLineModel {
	m := &StockLineModel{
		StockKey:         s.Key().String(),
		ProductID:        s.ProductID,
		WarehouseID:      s.WarehouseID,
		LocationID:       s.LocationID,
		VariantID:        s.VariantID,
		Quantity:         s.Quantity,
		ReservedQuantity: s.ReservedQuantity,
		LotNumber:        s.LotNumber,
		SerialNumber:     s.SerialNumber,
		ExpiryDate:       s.ExpiryDate,
		LastMovementAt:   s.LastMovementAt,
		LastCountAt:      s.LastCountAt,
	}
	m.ID = s.ID
	m.TenantID = s.TenantID
	m.Version = s.Version
	m.CreatedBy = s.CreatedBy
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
	return m
}
