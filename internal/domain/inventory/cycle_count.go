package inventory

import (
	"strings"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ABCClass ranks items by value and turnover; A is the most important
type ABCClass string

const (
	ABCClassA ABCClass = "A"
	ABCClassB ABCClass = "B"
	ABCClassC ABCClass = "C"
)

// ParseABCClass parses "a", "B", ... into an ABCClass
func ParseABCClass(s string) (ABCClass, error) {
	c := ABCClass(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case ABCClassA, ABCClassB, ABCClassC:
		return c, nil
	}
	return "", shared.Errorf(shared.ErrInvalidArgument, "unknown ABC class %q", s)
}

// DefaultFrequency maps A to monthly, B to quarterly and C to annual counts
func (c ABCClass) DefaultFrequency() RecurrenceFrequency {
	switch c {
	case ABCClassA:
		return FrequencyMonthly
	case ABCClassB:
		return FrequencyQuarterly
	default:
		return FrequencyAnnually
	}
}

// RecurrenceFrequency is how often a cycle count repeats
type RecurrenceFrequency string

const (
	FrequencyDaily     RecurrenceFrequency = "DAILY"
	FrequencyWeekly    RecurrenceFrequency = "WEEKLY"
	FrequencyMonthly   RecurrenceFrequency = "MONTHLY"
	FrequencyQuarterly RecurrenceFrequency = "QUARTERLY"
	FrequencyAnnually  RecurrenceFrequency = "ANNUALLY"
)

// IsValid returns true if the frequency is known
func (f RecurrenceFrequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually:
		return true
	}
	return false
}

// Next returns the next occurrence after from
func (f RecurrenceFrequency) Next(from time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return from.AddDate(0, 3, 0)
	default:
		return from.AddDate(1, 0, 0)
	}
}

// CycleCountScope narrows a cycle count to part of a warehouse
type CycleCountScope struct {
	LocationID *uuid.UUID
	ZoneID     *uuid.UUID
	CategoryID *uuid.UUID
}

// TolerancePolicy describes acceptable variance. Nil limits are not checked.
// Approval tooling reads it; the count itself never blocks on it.
type TolerancePolicy struct {
	QuantityPercent                     *decimal.Decimal
	Value                               *decimal.Decimal
	BlockAutoApproveOnToleranceExceeded bool
}

// Validate rejects negative limits
func (p TolerancePolicy) Validate() error {
	if p.QuantityPercent != nil && p.QuantityPercent.IsNegative() {
		return shared.Errorf(shared.ErrInvalidArgument, "quantity tolerance percent cannot be negative")
	}
	if p.Value != nil && p.Value.IsNegative() {
		return shared.Errorf(shared.ErrInvalidArgument, "value tolerance cannot be negative")
	}
	return nil
}

// Exceeded reports whether the item's variance is outside the policy
func (p TolerancePolicy) Exceeded(item *CountItem) bool {
	if !item.HasVariance() {
		return false
	}
	if p.QuantityPercent != nil && item.VariancePercent().GreaterThan(*p.QuantityPercent) {
		return true
	}
	if p.Value != nil && item.VarianceValue().Abs().GreaterThan(*p.Value) {
		return true
	}
	return false
}

// CycleCount is a scheduled, recurring count of a slice of the warehouse,
// usually driven by ABC classification.
type CycleCount struct {
	shared.TenantAggregateRoot
	CountSheet
	CountNumber       string
	Name              string
	WarehouseID       uuid.UUID
	Scope             CycleCountScope
	ABCClass          *ABCClass
	Frequency         RecurrenceFrequency
	ScheduledDate     time.Time
	NextScheduledDate *time.Time
	Tolerance         TolerancePolicy
	Description       string
}

// NewCycleCount creates a planned cycle count. With an ABC class the
// frequency defaults from the class; otherwise it is monthly.
func NewCycleCount(
	tenantID, warehouseID uuid.UUID,
	countNumber, name string,
	abcClass *ABCClass,
	scheduledDate time.Time,
	scope CycleCountScope,
) (*CycleCount, []shared.DomainEvent, error) {
	if tenantID == uuid.Nil {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "tenant ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "warehouse ID cannot be empty")
	}
	if countNumber == "" {
		return nil, nil, shared.Errorf(shared.ErrInvalidArgument, "count number cannot be empty")
	}
	if scheduledDate.IsZero() {
		scheduledDate = time.Now()
	}
	frequency := FrequencyMonthly
	if abcClass != nil {
		if _, err := ParseABCClass(string(*abcClass)); err != nil {
			return nil, nil, err
		}
		frequency = abcClass.DefaultFrequency()
	}

	cc := &CycleCount{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CountSheet: CountSheet{
			Status:          CountStatusPlanned,
			Items:           make([]CountItem, 0),
			AccuracyPercent: decimal.Zero,
		},
		CountNumber:   countNumber,
		Name:          name,
		WarehouseID:   warehouseID,
		Scope:         scope,
		ABCClass:      abcClass,
		Frequency:     frequency,
		ScheduledDate: scheduledDate,
	}
	return cc, []shared.DomainEvent{cc.lifecycleEvent(countEventCreated, "", "")}, nil
}

// SetFrequency overrides the recurrence before counting starts
func (cc *CycleCount) SetFrequency(f RecurrenceFrequency) error {
	if !f.IsValid() {
		return shared.Errorf(shared.ErrInvalidArgument, "unknown frequency %q", f)
	}
	if !cc.Status.IsPreStart() {
		return shared.Errorf(shared.ErrInvalidStateTransition, "frequency can only change before counting starts")
	}
	cc.Frequency = f
	cc.Touch(time.Now())
	return nil
}

// SetTolerance replaces the tolerance policy
func (cc *CycleCount) SetTolerance(p TolerancePolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if cc.Status.IsTerminal() {
		return shared.Errorf(shared.ErrInvalidStateTransition, "tolerance cannot change in %s", cc.Status)
	}
	cc.Tolerance = p
	cc.Touch(time.Now())
	return nil
}

// ItemsExceedingTolerance returns the counted items outside the tolerance policy
func (cc *CycleCount) ItemsExceedingTolerance() []CountItem {
	var out []CountItem
	for idx := range cc.Items {
		if cc.Tolerance.Exceeded(&cc.Items[idx]) {
			out = append(out, cc.Items[idx])
		}
	}
	return out
}

// RequiresManualReview reports whether approval tooling should stop
// auto-approval: the block flag is set and some item exceeds tolerance.
func (cc *CycleCount) RequiresManualReview() bool {
	return cc.Tolerance.BlockAutoApproveOnToleranceExceeded && len(cc.ItemsExceedingTolerance()) > 0
}

// IsDue reports whether a planned count has reached its scheduled date
func (cc *CycleCount) IsDue(now time.Time) bool {
	return cc.Status == CountStatusPlanned && !now.Before(cc.ScheduledDate)
}

// AddItem adds a product line with its current system quantity
func (cc *CycleCount) AddItem(in CountItemInput) (*CountItem, error) {
	item, err := cc.addItem(in)
	if err != nil {
		return nil, err
	}
	cc.Touch(time.Now())
	return item, nil
}

// RemoveItem removes a line before counting starts
func (cc *CycleCount) RemoveItem(itemID uuid.UUID) error {
	if err := cc.removeItem(itemID); err != nil {
		return err
	}
	cc.Touch(time.Now())
	return nil
}

// Start moves the count to InProgress
func (cc *CycleCount) Start() ([]shared.DomainEvent, error) {
	from := cc.Status
	if err := cc.start(AggregateTypeCycleCount); err != nil {
		return nil, err
	}
	cc.Touch(time.Now())
	return []shared.DomainEvent{cc.lifecycleEvent(countEventStarted, from, "")}, nil
}

// RecordCount stores a counted quantity and recomputes accuracy
func (cc *CycleCount) RecordCount(itemID uuid.UUID, qty decimal.Decimal, countedBy *uuid.UUID, notes string) ([]shared.DomainEvent, error) {
	item, err := cc.recordCount(itemID, qty, countedBy, notes)
	if err != nil {
		return nil, err
	}
	cc.Touch(time.Now())
	return []shared.DomainEvent{
		newCountItemCountedEvent(AggregateTypeCycleCount, cc.TenantID, cc.ID, item, cc.AccuracyPercent),
	}, nil
}

// Complete closes counting and schedules the next occurrence
func (cc *CycleCount) Complete() ([]shared.DomainEvent, error) {
	from := cc.Status
	if err := cc.complete(AggregateTypeCycleCount); err != nil {
		return nil, err
	}
	next := cc.Frequency.Next(*cc.CompletedAt)
	cc.NextScheduledDate = &next
	cc.Touch(time.Now())
	return []shared.DomainEvent{cc.lifecycleEvent(countEventCompleted, from, "")}, nil
}

// Approve accepts a completed count. Tolerance is not checked here.
func (cc *CycleCount) Approve(approvedBy uuid.UUID) ([]shared.DomainEvent, error) {
	from := cc.Status
	if err := cc.approve(AggregateTypeCycleCount, approvedBy); err != nil {
		return nil, err
	}
	cc.Touch(time.Now())
	return []shared.DomainEvent{cc.lifecycleEvent(countEventApproved, from, "")}, nil
}

// Reject refuses a completed count
func (cc *CycleCount) Reject(rejectedBy uuid.UUID, reason string) ([]shared.DomainEvent, error) {
	from := cc.Status
	if err := cc.reject(AggregateTypeCycleCount, rejectedBy, reason); err != nil {
		return nil, err
	}
	cc.Touch(time.Now())
	return []shared.DomainEvent{cc.lifecycleEvent(countEventRejected, from, reason)}, nil
}

// Cancel abandons the count
func (cc *CycleCount) Cancel(reason string) ([]shared.DomainEvent, error) {
	from, err := cc.cancel(AggregateTypeCycleCount, reason)
	if err != nil {
		return nil, err
	}
	cc.Touch(time.Now())
	return []shared.DomainEvent{cc.lifecycleEvent(countEventCancelled, from, reason)}, nil
}

// MarkAsProcessed closes an approved cycle count
func (cc *CycleCount) MarkAsProcessed() ([]shared.DomainEvent, error) {
	from := cc.Status
	if err := cc.finish(AggregateTypeCycleCount, CountStatusProcessed); err != nil {
		return nil, err
	}
	cc.Touch(time.Now())
	return []shared.DomainEvent{cc.lifecycleEvent(countEventProcessed, from, "")}, nil
}

// MarkAsAdjusted closes an approved cycle count whose variances were posted
func (cc *CycleCount) MarkAsAdjusted() ([]shared.DomainEvent, error) {
	from := cc.Status
	if err := cc.finish(AggregateTypeCycleCount, CountStatusAdjusted); err != nil {
		return nil, err
	}
	cc.Touch(time.Now())
	return []shared.DomainEvent{cc.lifecycleEvent(countEventAdjusted, from, "")}, nil
}

// ScheduleNext creates the planned follow-up count for NextScheduledDate.
// Items are not copied; the caller snapshots the ledger again.
func (cc *CycleCount) ScheduleNext(countNumber string) (*CycleCount, []shared.DomainEvent, error) {
	if cc.NextScheduledDate == nil {
		return nil, nil, shared.Errorf(shared.ErrInvalidStateTransition, "cycle count %s has no next scheduled date", cc.CountNumber)
	}
	next, events, err := NewCycleCount(cc.TenantID, cc.WarehouseID, countNumber, cc.Name, cc.ABCClass, *cc.NextScheduledDate, cc.Scope)
	if err != nil {
		return nil, nil, err
	}
	next.Frequency = cc.Frequency
	next.Tolerance = cc.Tolerance
	next.Description = cc.Description
	return next, events, nil
}

func (cc *CycleCount) lifecycleEvent(suffix string, from CountStatus, reason string) *CountLifecycleEvent {
	return newCountLifecycleEvent(AggregateTypeCycleCount, suffix, cc.TenantID, cc.ID, cc.CountNumber, cc.WarehouseID, &cc.CountSheet, from, reason)
}
