package inventory

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CountType is the scope of an ad hoc stock count
type CountType string

const (
	CountTypeFull  CountType = "FULL"
	CountTypeCycle CountType = "CYCLE"
	CountTypeSpot  CountType = "SPOT"
)

// IsValid returns true if the count type is known
func (t CountType) IsValid() bool {
	switch t {
	case CountTypeFull, CountTypeCycle, CountTypeSpot:
		return true
	}
	return false
}

// StockCount is an ad hoc physical count of a warehouse or a location.
// Items snapshot the ledger quantity when added; approval may feed an
// InventoryAdjustment.
type StockCount struct {
	shared.TenantAggregateRoot
	CountSheet
	CountNumber  string
	CountDate    time.Time
	WarehouseID  uuid.UUID
	LocationID   *uuid.UUID
	CountType    CountType
	Description  string
	Notes        string
	AutoAdjust   bool
	AdjustmentID *uuid.UUID
}

// NewStockCount creates a draft stock count
func NewStockCount(tenantID, warehouseID uuid.UUID, countNumber string, countType CountType, countDate time.Time, autoAdjust bool) (*StockCount, []shared.DomainEvent, error) {
	if tenantID == uuid.Nil {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "tenant ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "warehouse ID cannot be empty")
	}
	if countNumber == "" {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "count number cannot be empty")
	}
	if countType == "" {
		countType = CountTypeFull
	}
	if !countType.IsValid() {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "unknown count type %q", countType)
	}
	if countDate.IsZero() {
		countDate = time.Now()
	}

	sc := &StockCount{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CountSheet: CountSheet{
			Status:          CountStatusDraft,
			Items:           make([]CountItem, 0),
			AccuracyPercent: decimal.Zero,
		},
		CountNumber: countNumber,
		CountDate:   countDate,
		WarehouseID: warehouseID,
		CountType:   countType,
		AutoAdjust:  autoAdjust,
	}
	return sc, []shared.DomainEvent{sc.lifecycleEvent(countEventCreated, "", "")}, nil
}

// AddItem adds a product line with its current system quantity.
// Allowed in Draft and while counting is in progress.
func (sc *StockCount) AddItem(in CountItemInput) (*CountItem, error) {
	item, err := sc.addItem(in)
	if err != nil {
		return nil, err
	}
	sc.Touch(time.Now())
	return item, nil
}

// RemoveItem removes a line. Only allowed in Draft.
func (sc *StockCount) RemoveItem(itemID uuid.UUID) error {
	if err := sc.removeItem(itemID); err != nil {
		return err
	}
	sc.Touch(time.Now())
	return nil
}

// Start moves the count to InProgress; requires at least one item
func (sc *StockCount) Start() ([]shared.DomainEvent, error) {
	from := sc.Status
	if err := sc.start(AggregateTypeStockCount); err != nil {
		return nil, err
	}
	sc.Touch(time.Now())
	return []shared.DomainEvent{sc.lifecycleEvent(countEventStarted, from, "")}, nil
}

// RecordCount stores the counted quantity of an item. It may be repeated;
// the last value wins and accuracy is recomputed each time.
func (sc *StockCount) RecordCount(itemID uuid.UUID, qty decimal.Decimal, countedBy *uuid.UUID, notes string) ([]shared.DomainEvent, error) {
	item, err := sc.recordCount(itemID, qty, countedBy, notes)
	if err != nil {
		return nil, err
	}
	sc.Touch(time.Now())
	return []shared.DomainEvent{
		newCountItemCountedEvent(AggregateTypeStockCount, sc.TenantID, sc.ID, item, sc.AccuracyPercent),
	}, nil
}

// Complete closes counting. Fails with IncompleteCount while any item is uncounted.
func (sc *StockCount) Complete() ([]shared.DomainEvent, error) {
	from := sc.Status
	if err := sc.complete(AggregateTypeStockCount); err != nil {
		return nil, err
	}
	sc.Touch(time.Now())
	return []shared.DomainEvent{sc.lifecycleEvent(countEventCompleted, from, "")}, nil
}

// Approve accepts a completed count
func (sc *StockCount) Approve(approvedBy uuid.UUID) ([]shared.DomainEvent, error) {
	from := sc.Status
	if err := sc.approve(AggregateTypeStockCount, approvedBy); err != nil {
		return nil, err
	}
	sc.Touch(time.Now())
	return []shared.DomainEvent{sc.lifecycleEvent(countEventApproved, from, "")}, nil
}

// Reject refuses a completed count
func (sc *StockCount) Reject(rejectedBy uuid.UUID, reason string) ([]shared.DomainEvent, error) {
	from := sc.Status
	if err := sc.reject(AggregateTypeStockCount, rejectedBy, reason); err != nil {
		return nil, err
	}
	sc.Touch(time.Now())
	return []shared.DomainEvent{sc.lifecycleEvent(countEventRejected, from, reason)}, nil
}

// Cancel abandons the count. Not allowed once approved.
func (sc *StockCount) Cancel(reason string) ([]shared.DomainEvent, error) {
	from, err := sc.cancel(AggregateTypeStockCount, reason)
	if err != nil {
		return nil, err
	}
	sc.Touch(time.Now())
	return []shared.DomainEvent{sc.lifecycleEvent(countEventCancelled, from, reason)}, nil
}

// MarkAsProcessed closes an approved count without ledger adjustment
func (sc *StockCount) MarkAsProcessed() ([]shared.DomainEvent, error) {
	from := sc.Status
	if err := sc.finish(AggregateTypeStockCount, CountStatusProcessed); err != nil {
		return nil, err
	}
	sc.Touch(time.Now())
	return []shared.DomainEvent{sc.lifecycleEvent(countEventProcessed, from, "")}, nil
}

// LinkAdjustment records the one adjustment drafted from this approved count.
// A second draft is refused while the first is linked.
func (sc *StockCount) LinkAdjustment(adjustmentID uuid.UUID) error {
	if sc.Status != CountStatusApproved {
		return shared.Errorf(shared.ErrInvalidStateTransition, "stock count %s is %s, not approved", sc.CountNumber, sc.Status)
	}
	if sc.AdjustmentID != nil {
		return shared.Errorf(shared.ErrInvalidStateTransition, "stock count %s already has adjustment %s", sc.CountNumber, *sc.AdjustmentID)
	}
	sc.AdjustmentID = &adjustmentID
	sc.Touch(time.Now())
	return nil
}

// UnlinkAdjustment frees an approved count from a rejected or cancelled
// adjustment so a new one can be drafted. Reports whether the link was cleared.
func (sc *StockCount) UnlinkAdjustment(adjustmentID uuid.UUID) bool {
	if sc.Status != CountStatusApproved || sc.AdjustmentID == nil || *sc.AdjustmentID != adjustmentID {
		return false
	}
	sc.AdjustmentID = nil
	sc.Touch(time.Now())
	return true
}

// MarkAsAdjusted closes an approved count whose variances were posted
// through the given adjustment, which must be the linked one if any
func (sc *StockCount) MarkAsAdjusted(adjustmentID uuid.UUID) ([]shared.DomainEvent, error) {
	if sc.AdjustmentID != nil && *sc.AdjustmentID != adjustmentID {
		return nil, shared.Errorf(shared.ErrInvalidStateTransition, "stock count %s belongs to adjustment %s", sc.CountNumber, *sc.AdjustmentID)
	}
	from := sc.Status
	if err := sc.finish(AggregateTypeStockCount, CountStatusAdjusted); err != nil {
		return nil, err
	}
	if adjustmentID != uuid.Nil {
		sc.AdjustmentID = &adjustmentID
	}
	sc.Touch(time.Now())
	return []shared.DomainEvent{sc.lifecycleEvent(countEventAdjusted, from, "")}, nil
}

func (sc *StockCount) lifecycleEvent(suffix string, from CountStatus, reason string) *CountLifecycleEvent {
	return newCountLifecycleEvent(AggregateTypeStockCount, suffix, sc.TenantID, sc.ID, sc.CountNumber, sc.WarehouseID, &sc.CountSheet, from, reason)
}
