package inventory

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustmentStatus is the approval state of an inventory adjustment
type AdjustmentStatus string

const (
	AdjustmentStatusDraft           AdjustmentStatus = "DRAFT"
	AdjustmentStatusPendingApproval AdjustmentStatus = "PENDING_APPROVAL"
	AdjustmentStatusApproved        AdjustmentStatus = "APPROVED"
	AdjustmentStatusRejected        AdjustmentStatus = "REJECTED"
	AdjustmentStatusProcessed       AdjustmentStatus = "PROCESSED"
	AdjustmentStatusCancelled       AdjustmentStatus = "CANCELLED"
)

// String returns the string representation of AdjustmentStatus
func (s AdjustmentStatus) String() string {
	return string(s)
}

var adjustmentTransitions = shared.TransitionTable[AdjustmentStatus]{
	AdjustmentStatusDraft:           {AdjustmentStatusPendingApproval, AdjustmentStatusCancelled},
	AdjustmentStatusPendingApproval: {AdjustmentStatusApproved, AdjustmentStatusRejected, AdjustmentStatusCancelled},
	AdjustmentStatusApproved:        {AdjustmentStatusProcessed, AdjustmentStatusCancelled},
}

// AdjustmentReason classifies why stock is corrected
type AdjustmentReason string

const (
	AdjustmentReasonCountVariance AdjustmentReason = "COUNT_VARIANCE"
	AdjustmentReasonDamage        AdjustmentReason = "DAMAGE"
	AdjustmentReasonLoss          AdjustmentReason = "LOSS"
	AdjustmentReasonExpiry        AdjustmentReason = "EXPIRY"
	AdjustmentReasonCorrection    AdjustmentReason = "CORRECTION"
	AdjustmentReasonOther         AdjustmentReason = "OTHER"
)

// IsValid returns true if the reason is known
func (r AdjustmentReason) IsValid() bool {
	switch r {
	case AdjustmentReasonCountVariance, AdjustmentReasonDamage, AdjustmentReasonLoss,
		AdjustmentReasonExpiry, AdjustmentReasonCorrection, AdjustmentReasonOther:
		return true
	}
	return false
}

// AdjustmentItem is one corrected ledger row
type AdjustmentItem struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	LocationID     *uuid.UUID
	SystemQuantity decimal.Decimal
	ActualQuantity decimal.Decimal
	UnitCost       decimal.Decimal
	LotNumber      string
	SerialNumber   string
	Notes          string
}

// AdjustmentItemInput describes an item to add to an adjustment
type AdjustmentItemInput struct {
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	LocationID     *uuid.UUID
	SystemQuantity decimal.Decimal
	ActualQuantity decimal.Decimal
	UnitCost       decimal.Decimal
	LotNumber      string
	SerialNumber   string
	Notes          string
}

// VarianceQuantity is ActualQuantity - SystemQuantity
func (i *AdjustmentItem) VarianceQuantity() decimal.Decimal {
	return i.ActualQuantity.Sub(i.SystemQuantity)
}

// CostImpact is VarianceQuantity * UnitCost
func (i *AdjustmentItem) CostImpact() decimal.Decimal {
	return i.VarianceQuantity().Mul(i.UnitCost)
}

// StockKey returns the ledger row the item corrects
func (i *AdjustmentItem) StockKey(warehouseID uuid.UUID) StockKey {
	return StockKey{ProductID: i.ProductID, WarehouseID: warehouseID, LocationID: i.LocationID, VariantID: i.VariantID}
}

// InventoryAdjustment is an approval-gated correction of ledger quantities.
// It never touches the ledger; Process marks the point where the caller
// applies AdjustStock for every item.
type InventoryAdjustment struct {
	shared.TenantAggregateRoot
	AdjustmentNumber   string
	WarehouseID        uuid.UUID
	Reason             AdjustmentReason
	Description        string
	StockCountID       *uuid.UUID
	Status             AdjustmentStatus
	Items              []AdjustmentItem
	TotalCostImpact    decimal.Decimal
	SubmittedAt        *time.Time
	ApprovedAt         *time.Time
	ApprovedByUserID   *uuid.UUID
	RejectedAt         *time.Time
	RejectionReason    string
	ProcessedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
}

// NewInventoryAdjustment creates a draft adjustment
func NewInventoryAdjustment(tenantID, warehouseID uuid.UUID, adjustmentNumber string, reason AdjustmentReason, description string) (*InventoryAdjustment, []shared.DomainEvent, error) {
	if tenantID == uuid.Nil {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "tenant ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "warehouse ID cannot be empty")
	}
	if adjustmentNumber == "" {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "adjustment number cannot be empty")
	}
	if reason == "" {
		reason = AdjustmentReasonCorrection
	}
	if !reason.IsValid() {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "unknown adjustment reason %q", reason)
	}

	adj := &InventoryAdjustment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		AdjustmentNumber:    adjustmentNumber,
		WarehouseID:         warehouseID,
		Reason:              reason,
		Description:         description,
		Status:              AdjustmentStatusDraft,
		Items:               make([]AdjustmentItem, 0),
		TotalCostImpact:     decimal.Zero,
	}
	return adj, []shared.DomainEvent{adj.lifecycleEvent(EventTypeAdjustmentCreated, "", "")}, nil
}

// NewAdjustmentFromStockCount creates a draft adjustment holding one item per
// variance line of an approved count. The count and the adjustment reference
// each other; a count that already has an adjustment is refused.
func NewAdjustmentFromStockCount(sc *StockCount, adjustmentNumber string) (*InventoryAdjustment, []shared.DomainEvent, error) {
	if sc.Status != CountStatusApproved {
		return nil, nil, shared.Errorf(shared.ErrInvalidStateTransition, "stock count %s is %s, not approved", sc.CountNumber, sc.Status)
	}
	if sc.AdjustmentID != nil {
		return nil, nil, shared.Errorf(shared.ErrInvalidStateTransition, "stock count %s already has adjustment %s", sc.CountNumber, *sc.AdjustmentID)
	}
	adj, events, err := NewInventoryAdjustment(sc.TenantID, sc.WarehouseID, adjustmentNumber, AdjustmentReasonCountVariance,
		"Variance from stock count "+sc.CountNumber)
	if err != nil {
		return nil, nil, err
	}
	if err := sc.LinkAdjustment(adj.ID); err != nil {
		return nil, nil, err
	}
	countID := sc.ID
	adj.StockCountID = &countID
	for _, item := range sc.VarianceItems() {
		if err := adj.AddItem(AdjustmentItemInput{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			LocationID:     item.LocationID,
			SystemQuantity: item.SystemQuantity,
			ActualQuantity: *item.CountedQuantity,
			UnitCost:       item.UnitCost,
			LotNumber:      item.LotNumber,
			SerialNumber:   item.SerialNumber,
			Notes:          item.Notes,
		}); err != nil {
			return nil, nil, err
		}
	}
	return adj, events, nil
}

// AddItem adds a correction line. Only allowed in Draft.
func (a *InventoryAdjustment) AddItem(in AdjustmentItemInput) error {
	if a.Status != AdjustmentStatusDraft {
		return shared.Errorf(shared.ErrInvalidStateTransition, "items can only be added in DRAFT, status is %s", a.Status)
	}
	if in.ProductID == uuid.Nil {
		return shared.Errorf(shared.ErrInvalidArgument, "product ID cannot be empty")
	}
	if in.SystemQuantity.IsNegative() || in.ActualQuantity.IsNegative() {
		return shared.Errorf(shared.ErrInvalidArgument, "quantities cannot be negative")
	}
	if in.UnitCost.IsNegative() {
		return shared.Errorf(shared.ErrInvalidArgument, "unit cost cannot be negative")
	}
	for idx := range a.Items {
		it := &a.Items[idx]
		if it.ProductID == in.ProductID && sameOptionalID(it.VariantID, in.VariantID) &&
			sameOptionalID(it.LocationID, in.LocationID) && it.LotNumber == in.LotNumber {
			return shared.Errorf(shared.ErrAlreadyExists, "product %s is already on the adjustment", in.ProductID)
		}
	}

	a.Items = append(a.Items, AdjustmentItem{
		ID:             uuid.New(),
		ProductID:      in.ProductID,
		VariantID:      in.VariantID,
		LocationID:     in.LocationID,
		SystemQuantity: in.SystemQuantity,
		ActualQuantity: in.ActualQuantity,
		UnitCost:       in.UnitCost,
		LotNumber:      in.LotNumber,
		SerialNumber:   in.SerialNumber,
		Notes:          in.Notes,
	})
	a.recalculateTotal()
	a.Touch(time.Now())
	return nil
}

// RemoveItem removes a correction line. Only allowed in Draft.
func (a *InventoryAdjustment) RemoveItem(itemID uuid.UUID) error {
	if a.Status != AdjustmentStatusDraft {
		return shared.Errorf(shared.ErrInvalidStateTransition, "items can only be removed in DRAFT, status is %s", a.Status)
	}
	for idx := range a.Items {
		if a.Items[idx].ID == itemID {
			a.Items = append(a.Items[:idx], a.Items[idx+1:]...)
			a.recalculateTotal()
			a.Touch(time.Now())
			return nil
		}
	}
	return shared.ErrNotFound
}

// Submit sends the adjustment for approval
func (a *InventoryAdjustment) Submit() ([]shared.DomainEvent, error) {
	if err := adjustmentTransitions.Check("adjustment", a.Status, AdjustmentStatusPendingApproval); err != nil {
		return nil, err
	}
	if len(a.Items) == 0 {
		return nil, shared.Errorf(shared.ErrEmptyAdjustment, "adjustment %s has no items", a.AdjustmentNumber)
	}
	from := a.Status
	now := time.Now()
	a.Status = AdjustmentStatusPendingApproval
	a.SubmittedAt = &now
	a.Touch(now)
	return []shared.DomainEvent{a.lifecycleEvent(EventTypeAdjustmentSubmitted, from, "")}, nil
}

// Approve accepts a pending adjustment
func (a *InventoryAdjustment) Approve(approvedBy uuid.UUID) ([]shared.DomainEvent, error) {
	if err := adjustmentTransitions.Check("adjustment", a.Status, AdjustmentStatusApproved); err != nil {
		return nil, err
	}
	from := a.Status
	now := time.Now()
	a.Status = AdjustmentStatusApproved
	a.ApprovedAt = &now
	if approvedBy != uuid.Nil {
		a.ApprovedByUserID = &approvedBy
	}
	a.Touch(now)
	return []shared.DomainEvent{a.lifecycleEvent(EventTypeAdjustmentApproved, from, "")}, nil
}

// Reject refuses a pending adjustment
func (a *InventoryAdjustment) Reject(rejectedBy uuid.UUID, reason string) ([]shared.DomainEvent, error) {
	if err := adjustmentTransitions.Check("adjustment", a.Status, AdjustmentStatusRejected); err != nil {
		return nil, err
	}
	from := a.Status
	now := time.Now()
	a.Status = AdjustmentStatusRejected
	a.RejectedAt = &now
	a.RejectionReason = reason
	if rejectedBy != uuid.Nil {
		a.ApprovedByUserID = &rejectedBy
	}
	a.Touch(now)
	return []shared.DomainEvent{a.lifecycleEvent(EventTypeAdjustmentRejected, from, reason)}, nil
}

// Process marks an approved adjustment as applied. The caller applies the
// ledger adjustments in the same transaction.
func (a *InventoryAdjustment) Process() ([]shared.DomainEvent, error) {
	if err := adjustmentTransitions.Check("adjustment", a.Status, AdjustmentStatusProcessed); err != nil {
		return nil, err
	}
	from := a.Status
	now := time.Now()
	a.Status = AdjustmentStatusProcessed
	a.ProcessedAt = &now
	a.Touch(now)
	return []shared.DomainEvent{a.lifecycleEvent(EventTypeAdjustmentProcessed, from, "")}, nil
}

// Cancel abandons the adjustment. Not allowed after processing or rejection.
func (a *InventoryAdjustment) Cancel(reason string) ([]shared.DomainEvent, error) {
	if err := adjustmentTransitions.Check("adjustment", a.Status, AdjustmentStatusCancelled); err != nil {
		return nil, err
	}
	from := a.Status
	now := time.Now()
	a.Status = AdjustmentStatusCancelled
	a.CancelledAt = &now
	a.CancellationReason = reason
	a.Touch(now)
	return []shared.DomainEvent{a.lifecycleEvent(EventTypeAdjustmentCancelled, from, reason)}, nil
}

// TotalVarianceQuantity sums the item variances
func (a *InventoryAdjustment) TotalVarianceQuantity() decimal.Decimal {
	total := decimal.Zero
	for idx := range a.Items {
		total = total.Add(a.Items[idx].VarianceQuantity())
	}
	return total
}

func (a *InventoryAdjustment) recalculateTotal() {
	total := decimal.Zero
	for idx := range a.Items {
		total = total.Add(a.Items[idx].CostImpact())
	}
	a.TotalCostImpact = total
}
