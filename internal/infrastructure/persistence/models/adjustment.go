package models

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryAdjustmentModel is the persistence model for the InventoryAdjustment aggregate
type InventoryAdjustmentModel struct {
	TenantAggregateModel
	AdjustmentNumber   string                     `gorm:"type:varchar(50);not null;index"`
	WarehouseID        uuid.UUID                  `gorm:"type:uuid;not null;index"`
	Reason             inventory.AdjustmentReason `gorm:"type:varchar(30);not null"`
	Description        string                     `gorm:"type:varchar(500)"`
	StockCountID       *uuid.UUID                 `gorm:"type:uuid;index"`
	Status             inventory.AdjustmentStatus `gorm:"type:varchar(30);not null;index"`
	TotalCostImpact    decimal.Decimal            `gorm:"type:decimal(18,4);not null;default:0"`
	SubmittedAt        *time.Time
	ApprovedAt         *time.Time
	ApprovedByUserID   *uuid.UUID `gorm:"type:uuid"`
	RejectedAt         *time.Time
	RejectionReason    string `gorm:"type:varchar(255)"`
	ProcessedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string                `gorm:"type:varchar(255)"`
	Items              []AdjustmentItemModel `gorm:"foreignKey:AdjustmentID;references:ID"`
}

// TableName returns the table name for GORM
func (InventoryAdjustmentModel) TableName() string {
	return "inventory_adjustments"
}

// AdjustmentItemModel is one line of an inventory adjustment
type AdjustmentItemModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AdjustmentID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo         int             `gorm:"not null;default:0"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	VariantID      *uuid.UUID      `gorm:"type:uuid"`
	LocationID     *uuid.UUID      `gorm:"type:uuid"`
	SystemQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ActualQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LotNumber      string          `gorm:"type:varchar(100)"`
	SerialNumber   string          `gorm:"type:varchar(100)"`
	Notes          string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (AdjustmentItemModel) TableName() string {
	return "inventory_adjustment_items"
}

// ToDomain converts the model to a domain InventoryAdjustment
func (m *InventoryAdjustmentModel) ToDomain() *inventory.InventoryAdjustment {
	items := make([]inventory.AdjustmentItem, len(m.Items))
	for i, it := range m.Items {
		items[i] = inventory.AdjustmentItem{
			ID:             it.ID,
			ProductID:      it.ProductID,
			VariantID:      it.VariantID,
			LocationID:     it.LocationID,
			SystemQuantity: it.SystemQuantity,
			ActualQuantity: it.ActualQuantity,
			UnitCost:       it.UnitCost,
			LotNumber:      it.LotNumber,
			SerialNumber:   it.SerialNumber,
			Notes:          it.Notes,
		}
	}
	return &inventory.InventoryAdjustment{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		AdjustmentNumber:    m.AdjustmentNumber,
		WarehouseID:         m.WarehouseID,
		Reason:              m.Reason,
		Description:         m.Description,
		StockCountID:        m.StockCountID,
		Status:              m.Status,
		Items:               items,
		TotalCostImpact:     m.TotalCostImpact,
		SubmittedAt:         m.SubmittedAt,
		ApprovedAt:          m.ApprovedAt,
		ApprovedByUserID:    m.ApprovedByUserID,
		RejectedAt:          m.RejectedAt,
		RejectionReason:     m.RejectionReason,
		ProcessedAt:         m.ProcessedAt,
		CancelledAt:         m.CancelledAt,
		CancellationReason:  m.CancellationReason,
	}
}

// InventoryAdjustmentModelFromDomain creates a model, items included, from a domain adjustment
func InventoryAdjustmentModelFromDomain(a *inventory.InventoryAdjustment) *InventoryAdjustmentModel {
	m := &InventoryAdjustmentModel{
		AdjustmentNumber:   a.AdjustmentNumber,
		WarehouseID:        a.WarehouseID,
		Reason:             a.Reason,
		Description:        a.Description,
		StockCountID:       a.StockCountID,
		Status:             a.Status,
		TotalCostImpact:    a.TotalCostImpact,
		SubmittedAt:        a.SubmittedAt,
		ApprovedAt:         a.ApprovedAt,
		ApprovedByUserID:   a.ApprovedByUserID,
		RejectedAt:         a.RejectedAt,
		RejectionReason:    a.RejectionReason,
		ProcessedAt:        a.ProcessedAt,
		CancelledAt:        a.CancelledAt,
		CancellationReason: a.CancellationReason,
		Items:              make([]AdjustmentItemModel, len(a.Items)),
	}
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	for i, it := range a.Items {
		m.Items[i] = AdjustmentItemModel{
			ID:             it.ID,
			AdjustmentID:   a.ID,
			LineNo:         i,
			ProductID:      it.ProductID,
			VariantID:      it.VariantID,
			LocationID:     it.LocationID,
			SystemQuantity: it.SystemQuantity,
			ActualQuantity: it.ActualQuantity,
			UnitCost:       it.UnitCost,
			LotNumber:      it.LotNumber,
			SerialNumber:   it.SerialNumber,
			Notes:          it.Notes,
		}
	}
	return m
}
