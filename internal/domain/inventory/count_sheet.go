package inventory

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CountStatus is the lifecycle state shared by stock counts and cycle counts
type CountStatus string

const (
	CountStatusDraft      CountStatus = "DRAFT"
	CountStatusPlanned    CountStatus = "PLANNED"
	CountStatusInProgress CountStatus = "IN_PROGRESS"
	CountStatusCompleted  CountStatus = "COMPLETED"
	CountStatusApproved   CountStatus = "APPROVED"
	CountStatusRejected   CountStatus = "REJECTED"
	CountStatusProcessed  CountStatus = "PROCESSED"
	CountStatusAdjusted   CountStatus = "ADJUSTED"
	CountStatusCancelled  CountStatus = "CANCELLED"
)

// String returns the string representation of CountStatus
func (s CountStatus) String() string {
	return string(s)
}

var countTransitions = shared.TransitionTable[CountStatus]{
	CountStatusDraft:      {CountStatusInProgress, CountStatusCancelled},
	CountStatusPlanned:    {CountStatusInProgress, CountStatusCancelled},
	CountStatusInProgress: {CountStatusCompleted, CountStatusCancelled},
	CountStatusCompleted:  {CountStatusApproved, CountStatusRejected, CountStatusCancelled},
	CountStatusApproved:   {CountStatusProcessed, CountStatusAdjusted},
}

// IsTerminal returns true for Rejected, Processed, Adjusted and Cancelled
func (s CountStatus) IsTerminal() bool {
	return countTransitions.IsTerminal(s)
}

// IsPreStart returns true for the editable states before counting starts
func (s CountStatus) IsPreStart() bool {
	return s == CountStatusDraft || s == CountStatusPlanned
}

// CountItem is one line of a count: the system quantity captured when the
// item was added and the physically counted quantity once recorded.
type CountItem struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	VariantID       *uuid.UUID
	LocationID      *uuid.UUID
	SystemQuantity  decimal.Decimal
	CountedQuantity *decimal.Decimal
	UnitCost        decimal.Decimal
	LotNumber       string
	SerialNumber    string
	Notes           string
	CountedAt       *time.Time
	CountedBy       *uuid.UUID
	IsAdjusted      bool
}

// CountItemInput describes an item to add to a count
type CountItemInput struct {
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	LocationID     *uuid.UUID
	SystemQuantity decimal.Decimal
	UnitCost       decimal.Decimal
	LotNumber      string
	SerialNumber   string
}

// IsCounted reports whether a counted quantity has been recorded
func (i *CountItem) IsCounted() bool {
	return i.CountedQuantity != nil
}

// Difference is CountedQuantity - SystemQuantity, zero while uncounted
func (i *CountItem) Difference() decimal.Decimal {
	if i.CountedQuantity == nil {
		return decimal.Zero
	}
	return i.CountedQuantity.Sub(i.SystemQuantity)
}

// HasVariance reports whether the counted quantity differs from the system one
func (i *CountItem) HasVariance() bool {
	return i.IsCounted() && !i.Difference().IsZero()
}

// VariancePercent is |Difference| / SystemQuantity * 100.
// Any variance on a zero system quantity counts as 100%.
func (i *CountItem) VariancePercent() decimal.Decimal {
	diff := i.Difference().Abs()
	if diff.IsZero() {
		return decimal.Zero
	}
	if i.SystemQuantity.IsZero() {
		return decimal.NewFromInt(100)
	}
	return diff.Div(i.SystemQuantity).Mul(decimal.NewFromInt(100)).Round(2)
}

// VarianceValue is Difference * UnitCost
func (i *CountItem) VarianceValue() decimal.Decimal {
	return i.Difference().Mul(i.UnitCost)
}

func (i *CountItem) sameSlot(in CountItemInput) bool {
	return i.ProductID == in.ProductID &&
		sameOptionalID(i.VariantID, in.VariantID) &&
		sameOptionalID(i.LocationID, in.LocationID) &&
		i.LotNumber == in.LotNumber &&
		i.SerialNumber == in.SerialNumber
}

func sameOptionalID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CountSheet holds the items and lifecycle shared by StockCount and CycleCount
type CountSheet struct {
	Status             CountStatus
	Items              []CountItem
	AccuracyPercent    decimal.Decimal
	StartedAt          *time.Time
	CompletedAt        *time.Time
	ApprovedAt         *time.Time
	RejectedAt         *time.Time
	CancelledAt        *time.Time
	ProcessedAt        *time.Time
	CountedByUserID    *uuid.UUID
	ApprovedByUserID   *uuid.UUID
	CancellationReason string
	RejectionReason    string
}

// FindItem returns the item with the given ID
func (c *CountSheet) FindItem(itemID uuid.UUID) (*CountItem, bool) {
	for idx := range c.Items {
		if c.Items[idx].ID == itemID {
			return &c.Items[idx], true
		}
	}
	return nil, false
}

// ItemCount returns the number of items
func (c *CountSheet) ItemCount() int {
	return len(c.Items)
}

// CountedItemCount returns the number of items with a recorded count
func (c *CountSheet) CountedItemCount() int {
	n := 0
	for idx := range c.Items {
		if c.Items[idx].IsCounted() {
			n++
		}
	}
	return n
}

// VarianceItems returns the counted items whose count differs from the system
func (c *CountSheet) VarianceItems() []CountItem {
	var out []CountItem
	for _, item := range c.Items {
		if item.HasVariance() {
			out = append(out, item)
		}
	}
	return out
}

// AllCounted reports whether every item has a counted quantity
func (c *CountSheet) AllCounted() bool {
	return len(c.Items) > 0 && c.CountedItemCount() == len(c.Items)
}

// TotalVarianceValue sums VarianceValue over all items
func (c *CountSheet) TotalVarianceValue() decimal.Decimal {
	total := decimal.Zero
	for idx := range c.Items {
		total = total.Add(c.Items[idx].VarianceValue())
	}
	return total
}

// recalculateAccuracy sets AccuracyPercent to items without variance over counted items * 100
func (c *CountSheet) recalculateAccuracy() {
	counted := c.CountedItemCount()
	if counted == 0 {
		c.AccuracyPercent = decimal.Zero
		return
	}
	exact := counted - len(c.VarianceItems())
	c.AccuracyPercent = decimal.NewFromInt(int64(exact)).
		Div(decimal.NewFromInt(int64(counted))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

func (c *CountSheet) addItem(in CountItemInput) (*CountItem, error) {
	if !c.Status.IsPreStart() && c.Status != CountStatusInProgress {
		return nil, shared.Errorf(shared.ErrInvalidStateTransition, "items cannot be added in %s", c.Status)
	}
	if in.ProductID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "product ID cannot be empty")
	}
	if in.SystemQuantity.IsNegative() {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "system quantity cannot be negative")
	}
	if in.UnitCost.IsNegative() {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "unit cost cannot be negative")
	}
	for idx := range c.Items {
		if c.Items[idx].sameSlot(in) {
			return nil, shared.Errorf(shared.ErrAlreadyExists, "product %s is already on the count", in.ProductID)
		}
	}

	c.Items = append(c.Items, CountItem{
		ID:             uuid.New(),
		ProductID:      in.ProductID,
		VariantID:      in.VariantID,
		LocationID:     in.LocationID,
		SystemQuantity: in.SystemQuantity,
		UnitCost:       in.UnitCost,
		LotNumber:      in.LotNumber,
		SerialNumber:   in.SerialNumber,
	})
	return &c.Items[len(c.Items)-1], nil
}

func (c *CountSheet) removeItem(itemID uuid.UUID) error {
	if !c.Status.IsPreStart() {
		return shared.Errorf(shared.ErrInvalidStateTransition, "items can only be removed before counting starts, status is %s", c.Status)
	}
	for idx := range c.Items {
		if c.Items[idx].ID == itemID {
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			c.recalculateAccuracy()
			return nil
		}
	}
	return shared.ErrNotFound
}

func (c *CountSheet) start(entity string) error {
	if err := countTransitions.Check(entity, c.Status, CountStatusInProgress); err != nil {
		return err
	}
	if len(c.Items) == 0 {
		return shared.Errorf(shared.ErrInvalidStateTransition, "%s needs at least one item to start", entity)
	}
	now := time.Now()
	c.Status = CountStatusInProgress
	c.StartedAt = &now
	return nil
}

func (c *CountSheet) recordCount(itemID uuid.UUID, qty decimal.Decimal, countedBy *uuid.UUID, notes string) (*CountItem, error) {
	if c.Status != CountStatusInProgress {
		return nil, shared.Errorf(shared.ErrInvalidStateTransition, "counts can only be recorded in progress, status is %s", c.Status)
	}
	if qty.IsNegative() {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "counted quantity cannot be negative")
	}
	item, ok := c.FindItem(itemID)
	if !ok {
		return nil, shared.ErrNotFound
	}

	now := time.Now()
	counted := qty
	item.CountedQuantity = &counted
	item.CountedAt = &now
	item.CountedBy = countedBy
	if notes != "" {
		item.Notes = notes
	}
	if countedBy != nil {
		c.CountedByUserID = countedBy
	}
	c.recalculateAccuracy()
	return item, nil
}

func (c *CountSheet) complete(entity string) error {
	if err := countTransitions.Check(entity, c.Status, CountStatusCompleted); err != nil {
		return err
	}
	if !c.AllCounted() {
		return shared.Errorf(shared.ErrIncompleteCount, "%d of %d items are not counted",
			len(c.Items)-c.CountedItemCount(), len(c.Items))
	}
	now := time.Now()
	c.Status = CountStatusCompleted
	c.CompletedAt = &now
	c.recalculateAccuracy()
	return nil
}

func (c *CountSheet) approve(entity string, approvedBy uuid.UUID) error {
	if err := countTransitions.Check(entity, c.Status, CountStatusApproved); err != nil {
		return err
	}
	now := time.Now()
	c.Status = CountStatusApproved
	c.ApprovedAt = &now
	if approvedBy != uuid.Nil {
		c.ApprovedByUserID = &approvedBy
	}
	return nil
}

func (c *CountSheet) reject(entity string, rejectedBy uuid.UUID, reason string) error {
	if err := countTransitions.Check(entity, c.Status, CountStatusRejected); err != nil {
		return err
	}
	now := time.Now()
	c.Status = CountStatusRejected
	c.RejectedAt = &now
	c.RejectionReason = reason
	if rejectedBy != uuid.Nil {
		c.ApprovedByUserID = &rejectedBy
	}
	return nil
}

func (c *CountSheet) cancel(entity, reason string) (CountStatus, error) {
	from := c.Status
	if err := countTransitions.Check(entity, c.Status, CountStatusCancelled); err != nil {
		return from, err
	}
	now := time.Now()
	c.Status = CountStatusCancelled
	c.CancelledAt = &now
	c.CancellationReason = reason
	return from, nil
}

func (c *CountSheet) finish(entity string, target CountStatus) error {
	if err := countTransitions.Check(entity, c.Status, target); err != nil {
		return err
	}
	now := time.Now()
	c.Status = target
	c.ProcessedAt = &now
	if target == CountStatusAdjusted {
		for idx := range c.Items {
			if c.Items[idx].HasVariance() {
				c.Items[idx].IsAdjusted = true
			}
		}
	}
	return nil
}
