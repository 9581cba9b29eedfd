package inventory

import (
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeInventoryAdjustment is the aggregate type of adjustments
const AggregateTypeInventoryAdjustment = "InventoryAdjustment"

// Adjustment event types
const (
	EventTypeAdjustmentCreated   = "InventoryAdjustmentCreated"
	EventTypeAdjustmentSubmitted = "InventoryAdjustmentSubmitted"
	EventTypeAdjustmentApproved  = "InventoryAdjustmentApproved"
	EventTypeAdjustmentRejected  = "InventoryAdjustmentRejected"
	EventTypeAdjustmentCancelled = "InventoryAdjustmentCancelled"
	EventTypeAdjustmentProcessed = "InventoryAdjustmentProcessed"
)

// AdjustmentLifecycleEvent is raised on every status change of an adjustment
type AdjustmentLifecycleEvent struct {
	shared.BaseDomainEvent
	AdjustmentID     uuid.UUID        `json:"adjustment_id"`
	AdjustmentNumber string           `json:"adjustment_number"`
	WarehouseID      uuid.UUID        `json:"warehouse_id"`
	StockCountID     *uuid.UUID       `json:"stock_count_id,omitempty"`
	Reason           AdjustmentReason `json:"reason"`
	FromStatus       AdjustmentStatus `json:"from_status,omitempty"`
	Status           AdjustmentStatus `json:"status"`
	ItemCount        int              `json:"item_count"`
	TotalVariance    decimal.Decimal  `json:"total_variance"`
	TotalCostImpact  decimal.Decimal  `json:"total_cost_impact"`
	Note             string           `json:"note,omitempty"`
}

func (a *InventoryAdjustment) lifecycleEvent(eventType string, from AdjustmentStatus, note string) *AdjustmentLifecycleEvent {
	return &AdjustmentLifecycleEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(eventType, AggregateTypeInventoryAdjustment, a.ID, a.TenantID),
		AdjustmentID:     a.ID,
		AdjustmentNumber: a.AdjustmentNumber,
		WarehouseID:      a.WarehouseID,
		StockCountID:     a.StockCountID,
		Reason:           a.Reason,
		FromStatus:       from,
		Status:           a.Status,
		ItemCount:        len(a.Items),
		TotalVariance:    a.TotalVarianceQuantity(),
		TotalCostImpact:  a.TotalCostImpact,
		Note:             note,
	}
}
