package inventory

import (
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate types of the two count documents
const (
	AggregateTypeStockCount = "StockCount"
	AggregateTypeCycleCount = "CycleCount"
)

// Count event suffixes; the full event type is aggregate type + suffix,
// e.g. StockCountStarted or CycleCountCompleted.
const (
	countEventCreated     = "Created"
	countEventStarted     = "Started"
	countEventItemCounted = "ItemCounted"
	countEventCompleted   = "Completed"
	countEventApproved    = "Approved"
	countEventRejected    = "Rejected"
	countEventCancelled   = "Cancelled"
	countEventProcessed   = "Processed"
	countEventAdjusted    = "Adjusted"
)

// Stock count event types
const (
	EventTypeStockCountCreated     = AggregateTypeStockCount + countEventCreated
	EventTypeStockCountStarted     = AggregateTypeStockCount + countEventStarted
	EventTypeStockCountItemCounted = AggregateTypeStockCount + countEventItemCounted
	EventTypeStockCountCompleted   = AggregateTypeStockCount + countEventCompleted
	EventTypeStockCountApproved    = AggregateTypeStockCount + countEventApproved
	EventTypeStockCountRejected    = AggregateTypeStockCount + countEventRejected
	EventTypeStockCountCancelled   = AggregateTypeStockCount + countEventCancelled
	EventTypeStockCountProcessed   = AggregateTypeStockCount + countEventProcessed
	EventTypeStockCountAdjusted    = AggregateTypeStockCount + countEventAdjusted
)

// Cycle count event types
const (
	EventTypeCycleCountCreated     = AggregateTypeCycleCount + countEventCreated
	EventTypeCycleCountStarted     = AggregateTypeCycleCount + countEventStarted
	EventTypeCycleCountItemCounted = AggregateTypeCycleCount + countEventItemCounted
	EventTypeCycleCountCompleted   = AggregateTypeCycleCount + countEventCompleted
	EventTypeCycleCountApproved    = AggregateTypeCycleCount + countEventApproved
	EventTypeCycleCountRejected    = AggregateTypeCycleCount + countEventRejected
	EventTypeCycleCountCancelled   = AggregateTypeCycleCount + countEventCancelled
	EventTypeCycleCountProcessed   = AggregateTypeCycleCount + countEventProcessed
	EventTypeCycleCountAdjusted    = AggregateTypeCycleCount + countEventAdjusted
)

// CountLifecycleEvent is raised on every status change of a stock or cycle count
type CountLifecycleEvent struct {
	shared.BaseDomainEvent
	CountID         uuid.UUID       `json:"count_id"`
	CountNumber     string          `json:"count_number"`
	WarehouseID     uuid.UUID       `json:"warehouse_id"`
	FromStatus      CountStatus     `json:"from_status,omitempty"`
	Status          CountStatus     `json:"status"`
	TotalItems      int             `json:"total_items"`
	CountedItems    int             `json:"counted_items"`
	VarianceItems   int             `json:"variance_items"`
	AccuracyPercent decimal.Decimal `json:"accuracy_percent"`
	VarianceValue   decimal.Decimal `json:"variance_value"`
	Reason          string          `json:"reason,omitempty"`
}

func newCountLifecycleEvent(aggType, suffix string, tenantID, countID uuid.UUID, number string, warehouseID uuid.UUID, sheet *CountSheet, from CountStatus, reason string) *CountLifecycleEvent {
	return &CountLifecycleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(aggType+suffix, aggType, countID, tenantID),
		CountID:         countID,
		CountNumber:     number,
		WarehouseID:     warehouseID,
		FromStatus:      from,
		Status:          sheet.Status,
		TotalItems:      sheet.ItemCount(),
		CountedItems:    sheet.CountedItemCount(),
		VarianceItems:   len(sheet.VarianceItems()),
		AccuracyPercent: sheet.AccuracyPercent,
		VarianceValue:   sheet.TotalVarianceValue(),
		Reason:          reason,
	}
}

// CountItemCountedEvent is raised each time a counted quantity is recorded
type CountItemCountedEvent struct {
	shared.BaseDomainEvent
	CountID         uuid.UUID       `json:"count_id"`
	ItemID          uuid.UUID       `json:"item_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	LocationID      *uuid.UUID      `json:"location_id,omitempty"`
	SystemQuantity  decimal.Decimal `json:"system_quantity"`
	CountedQuantity decimal.Decimal `json:"counted_quantity"`
	Difference      decimal.Decimal `json:"difference"`
	AccuracyPercent decimal.Decimal `json:"accuracy_percent"`
}

func newCountItemCountedEvent(aggType string, tenantID, countID uuid.UUID, item *CountItem, accuracy decimal.Decimal) *CountItemCountedEvent {
	e := &CountItemCountedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(aggType+countEventItemCounted, aggType, countID, tenantID),
		CountID:         countID,
		ItemID:          item.ID,
		ProductID:       item.ProductID,
		LocationID:      item.LocationID,
		SystemQuantity:  item.SystemQuantity,
		Difference:      item.Difference(),
		AccuracyPercent: accuracy,
	}
	if item.CountedQuantity != nil {
		e.CountedQuantity = *item.CountedQuantity
	}
	return e
}
