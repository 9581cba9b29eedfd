package models

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CountSheetColumns are the lifecycle columns shared by stock and cycle counts
type CountSheetColumns struct {
	Status             inventory.CountStatus `gorm:"type:varchar(20);not null;index"`
	AccuracyPercent    decimal.Decimal       `gorm:"type:decimal(7,2);not null;default:0"`
	StartedAt          *time.Time
	CompletedAt        *time.Time
	ApprovedAt         *time.Time
	RejectedAt         *time.Time
	CancelledAt        *time.Time
	ProcessedAt        *time.Time
	CountedByUserID    *uuid.UUID `gorm:"type:uuid"`
	ApprovedByUserID   *uuid.UUID `gorm:"type:uuid"`
	CancellationReason string     `gorm:"type:varchar(255)"`
	RejectionReason    string     `gorm:"type:varchar(255)"`
}

func countSheetColumnsFromDomain(c *inventory.CountSheet) CountSheetColumns {
	return CountSheetColumns{
		Status:             c.Status,
		AccuracyPercent:    c.AccuracyPercent,
		StartedAt:          c.StartedAt,
		CompletedAt:        c.CompletedAt,
		ApprovedAt:         c.ApprovedAt,
		RejectedAt:         c.RejectedAt,
		CancelledAt:        c.CancelledAt,
		ProcessedAt:        c.ProcessedAt,
		CountedByUserID:    c.CountedByUserID,
		ApprovedByUserID:   c.ApprovedByUserID,
		CancellationReason: c.CancellationReason,
		RejectionReason:    c.RejectionReason,
	}
}

func (c CountSheetColumns) toDomain(items []inventory.CountItem) inventory.CountSheet {
	return inventory.CountSheet{
		Status:             c.Status,
		Items:              items,
		AccuracyPercent:    c.AccuracyPercent,
		StartedAt:          c.StartedAt,
		CompletedAt:        c.CompletedAt,
		ApprovedAt:         c.ApprovedAt,
		RejectedAt:         c.RejectedAt,
		CancelledAt:        c.CancelledAt,
		ProcessedAt:        c.ProcessedAt,
		CountedByUserID:    c.CountedByUserID,
		ApprovedByUserID:   c.ApprovedByUserID,
		CancellationReason: c.CancellationReason,
		RejectionReason:    c.RejectionReason,
	}
}

// CountItemColumns are the columns of one count line
type CountItemColumns struct {
	LineNo          int              `gorm:"not null;default:0"`
	ProductID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	VariantID       *uuid.UUID       `gorm:"type:uuid"`
	LocationID      *uuid.UUID       `gorm:"type:uuid"`
	SystemQuantity  decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	CountedQuantity *decimal.Decimal `gorm:"type:decimal(18,4)"`
	UnitCost        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	LotNumber       string           `gorm:"type:varchar(100)"`
	SerialNumber    string           `gorm:"type:varchar(100)"`
	Notes           string           `gorm:"type:varchar(500)"`
	CountedAt       *time.Time
	CountedBy       *uuid.UUID `gorm:"type:uuid"`
	IsAdjusted      bool       `gorm:"not null;default:false"`
}

func countItemColumnsFromDomain(lineNo int, i *inventory.CountItem) CountItemColumns {
	return CountItemColumns{
		LineNo:          lineNo,
		ProductID:       i.ProductID,
		VariantID:       i.VariantID,
		LocationID:      i.LocationID,
		SystemQuantity:  i.SystemQuantity,
		CountedQuantity: i.CountedQuantity,
		UnitCost:        i.UnitCost,
		LotNumber:       i.LotNumber,
		SerialNumber:    i.SerialNumber,
		Notes:           i.Notes,
		CountedAt:       i.CountedAt,
		CountedBy:       i.CountedBy,
		IsAdjusted:      i.IsAdjusted,
	}
}

func (c CountItemColumns) toDomain(id uuid.UUID) inventory.CountItem {
	return inventory.CountItem{
		ID:              id,
		ProductID:       c.ProductID,
		VariantID:       c.VariantID,
		LocationID:      c.LocationID,
		SystemQuantity:  c.SystemQuantity,
		CountedQuantity: c.CountedQuantity,
		UnitCost:        c.UnitCost,
		LotNumber:       c.LotNumber,
		SerialNumber:    c.SerialNumber,
		Notes:           c.Notes,
		CountedAt:       c.CountedAt,
		CountedBy:       c.CountedBy,
		IsAdjusted:      c.IsAdjusted,
	}
}

// StockCountModel is the persistence model for the StockCount aggregate
type StockCountModel struct {
	TenantAggregateModel
	CountSheetColumns
	CountNumber  string                `gorm:"type:varchar(50);not null;index"`
	CountDate    time.Time             `gorm:"not null"`
	WarehouseID  uuid.UUID             `gorm:"type:uuid;not null;index"`
	LocationID   *uuid.UUID            `gorm:"type:uuid"`
	CountType    inventory.CountType   `gorm:"type:varchar(20);not null"`
	Description  string                `gorm:"type:varchar(500)"`
	Notes        string                `gorm:"type:text"`
	AutoAdjust   bool                  `gorm:"not null;default:false"`
	AdjustmentID *uuid.UUID            `gorm:"type:uuid"`
	Items        []StockCountItemModel `gorm:"foreignKey:StockCountID;references:ID"`
}

// TableName returns the table name for GORM
func (StockCountModel) TableName() string {
	return "stock_counts"
}

// StockCountItemModel is one line of a stock count
type StockCountItemModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	StockCountID uuid.UUID `gorm:"type:uuid;not null;index"`
	CountItemColumns
}

// TableName returns the table name for GORM
func (StockCountItemModel) TableName() string {
	return "stock_count_items"
}

// ToDomain converts the model to a domain StockCount
func (m *StockCountModel) ToDomain() *inventory.StockCount {
	items := make([]inventory.CountItem, len(m.Items))
	for i := range m.Items {
		items[i] = m.Items[i].toDomain(m.Items[i].ID)
	}
	return &inventory.StockCount{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		CountSheet:          m.CountSheetColumns.toDomain(items),
		CountNumber:         m.CountNumber,
		CountDate:           m.CountDate,
		WarehouseID:         m.WarehouseID,
		LocationID:          m.LocationID,
		CountType:           m.CountType,
		Description:         m.Description,
		Notes:               m.Notes,
		AutoAdjust:          m.AutoAdjust,
		AdjustmentID:        m.AdjustmentID,
	}
}

// StockCountModelFromDomain creates a model, items included, from a domain StockCount
func StockCountModelFromDomain(sc *inventory.StockCount) *StockCountModel {
	m := &StockCountModel{
		CountSheetColumns: countSheetColumnsFromDomain(&sc.CountSheet),
		CountNumber:       sc.CountNumber,
		CountDate:         sc.CountDate,
		WarehouseID:       sc.WarehouseID,
		LocationID:        sc.LocationID,
		CountType:         sc.CountType,
		Description:       sc.Description,
		Notes:             sc.Notes,
		AutoAdjust:        sc.AutoAdjust,
		AdjustmentID:      sc.AdjustmentID,
		Items:             make([]StockCountItemModel, len(sc.Items)),
	}
	m.FromDomainTenantAggregateRoot(sc.TenantAggregateRoot)
	for i := range sc.Items {
		m.Items[i] = StockCountItemModel{
			ID:               sc.Items[i].ID,
			StockCountID:     sc.ID,
			CountItemColumns: countItemColumnsFromDomain(i, &sc.Items[i]),
		}
	}
	return m
}

// CycleCountModel is the persistence model for the CycleCount aggregate
type CycleCountModel struct {
	TenantAggregateModel
	CountSheetColumns
	CountNumber       string                        `gorm:"type:varchar(50);not null;index"`
	Name              string                        `gorm:"type:varchar(200)"`
	WarehouseID       uuid.UUID                     `gorm:"type:uuid;not null;index"`
	LocationID        *uuid.UUID                    `gorm:"type:uuid"`
	ZoneID            *uuid.UUID                    `gorm:"type:uuid"`
	CategoryID        *uuid.UUID                    `gorm:"type:uuid"`
	ABCClass          *inventory.ABCClass           `gorm:"type:varchar(1)"`
	Frequency         inventory.RecurrenceFrequency `gorm:"type:varchar(20);not null"`
	ScheduledDate     time.Time                     `gorm:"not null;index"`
	NextScheduledDate *time.Time
	QuantityTolerance *decimal.Decimal      `gorm:"type:decimal(7,2)"`
	ValueTolerance    *decimal.Decimal      `gorm:"type:decimal(18,4)"`
	BlockAutoApprove  bool                  `gorm:"not null;default:false"`
	Description       string                `gorm:"type:varchar(500)"`
	Items             []CycleCountItemModel `gorm:"foreignKey:CycleCountID;references:ID"`
}

// TableName returns the table name for GORM
func (CycleCountModel) TableName() string {
	return "cycle_counts"
}

// CycleCountItemModel is one line of a cycle count
type CycleCountItemModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	CycleCountID uuid.UUID `gorm:"type:uuid;not null;index"`
	CountItemColumns
}

// TableName returns the table name for GORM
func (CycleCountItemModel) TableName() string {
	return "cycle_count_items"
}

// ToDomain converts the model to a domain CycleCount
func (m *CycleCountModel) ToDomain() *inventory.CycleCount {
	items := make([]inventory.CountItem, len(m.Items))
	for i := range m.Items {
		items[i] = m.Items[i].toDomain(m.Items[i].ID)
	}
	return &inventory.CycleCount{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		CountSheet:          m.CountSheetColumns.toDomain(items),
		CountNumber:         m.CountNumber,
		Name:                m.Name,
		WarehouseID:         m.WarehouseID,
		Scope: inventory.CycleCountScope{
			LocationID: m.LocationID,
			ZoneID:     m.ZoneID,
			CategoryID: m.CategoryID,
		},
		ABCClass:          m.ABCClass,
		Frequency:         m.Frequency,
		ScheduledDate:     m.ScheduledDate,
		NextScheduledDate: m.NextScheduledDate,
		Tolerance: inventory.TolerancePolicy{
			QuantityPercent:                     m.QuantityTolerance,
			Value:                               m.ValueTolerance,
			BlockAutoApproveOnToleranceExceeded: m.BlockAutoApprove,
		},
		Description: m.Description,
	}
}

// CycleCountModelFromDomain creates a model, items included, from a domain CycleCount
func CycleCountModelFromDomain(cc *inventory.CycleCount) *CycleCountModel {
	m := &CycleCountModel{
		CountSheetColumns: countSheetColumnsFromDomain(&cc.CountSheet),
		CountNumber:       cc.CountNumber,
		Name:              cc.Name,
		WarehouseID:       cc.WarehouseID,
		LocationID:        cc.Scope.LocationID,
		ZoneID:            cc.Scope.ZoneID,
		CategoryID:        cc.Scope.CategoryID,
		ABCClass:          cc.ABCClass,
		Frequency:         cc.Frequency,
		ScheduledDate:     cc.ScheduledDate,
		NextScheduledDate: cc.NextScheduledDate,
		QuantityTolerance: cc.Tolerance.QuantityPercent,
		ValueTolerance:    cc.Tolerance.Value,
		BlockAutoApprove:  cc.Tolerance.BlockAutoApproveOnToleranceExceeded,
		Description:       cc.Description,
		Items:             make([]CycleCountItemModel, len(cc.Items)),
	}
	m.FromDomainTenantAggregateRoot(cc.TenantAggregateRoot)
	for i := range cc.Items {
		m.Items[i] = CycleCountItemModel{
			ID:               cc.Items[i].ID,
			CycleCountID:     cc.ID,
			CountItemColumns: countItemColumnsFromDomain(i, &cc.Items[i]),
		}
	}
	return m
}
