package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCycleCount(t *testing.T, class *ABCClass) *CycleCount {
	t.Helper()
	cc, events, err := NewCycleCount(uuid.New(), uuid.New(), "CC-000001", "Fast movers", class, time.Now(), CycleCountScope{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeCycleCountCreated, events[0].EventType())
	return cc
}

func classPtr(c ABCClass) *ABCClass {
	return &c
}

func TestNewCycleCount_FrequencyFromClass(t *testing.T) {
	tests := []struct {
		name  string
		class *ABCClass
		want  RecurrenceFrequency
	}{
		{"class A", classPtr(ABCClassA), FrequencyMonthly},
		{"class B", classPtr(ABCClassB), FrequencyQuarterly},
		{"class C", classPtr(ABCClassC), FrequencyAnnually},
		{"no class", nil, FrequencyMonthly},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cc := newTestCycleCount(t, tc.class)
			assert.Equal(t, tc.want, cc.Frequency)
			assert.Equal(t, CountStatusPlanned, cc.Status)
		})
	}

	t.Run("unknown class", func(t *testing.T) {
		_, _, err := NewCycleCount(uuid.New(), uuid.New(), "CC-1", "", classPtr("D"), time.Now(), CycleCountScope{})
		assert.True(t, errors.Is(err, shared.ErrInvalidArgument))
	})
}

func TestCycleCount_CompleteSchedulesNext(t *testing.T) {
	cc := newTestCycleCount(t, classPtr(ABCClassA))
	item, err := cc.AddItem(CountItemInput{ProductID: uuid.New(), SystemQuantity: dec(10), UnitCost: dec(1)})
	require.NoError(t, err)
	itemID := item.ID
	_, err = cc.Start()
	require.NoError(t, err)
	_, err = cc.RecordCount(itemID, dec(10), nil, "")
	require.NoError(t, err)

	events, err := cc.Complete()

	require.NoError(t, err)
	assert.Equal(t, EventTypeCycleCountCompleted, events[0].EventType())
	require.NotNil(t, cc.NextScheduledDate)
	assert.Equal(t, cc.CompletedAt.AddDate(0, 1, 0), *cc.NextScheduledDate)
	assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), *cc.NextScheduledDate, 5*time.Second)

	next, _, err := cc.ScheduleNext("CC-000002")
	require.NoError(t, err)
	assert.Equal(t, *cc.NextScheduledDate, next.ScheduledDate)
	assert.Equal(t, FrequencyMonthly, next.Frequency)
	assert.Equal(t, CountStatusPlanned, next.Status)
	assert.Equal(t, 0, next.ItemCount())
}

func TestCycleCount_MarkAsAdjusted(t *testing.T) {
	cc := newTestCycleCount(t, nil)
	item, err := cc.AddItem(CountItemInput{ProductID: uuid.New(), SystemQuantity: dec(10), UnitCost: dec(1)})
	require.NoError(t, err)
	itemID := item.ID
	_, err = cc.Start()
	require.NoError(t, err)
	_, err = cc.RecordCount(itemID, dec(7), nil, "")
	require.NoError(t, err)
	_, err = cc.Complete()
	require.NoError(t, err)
	_, err = cc.Approve(uuid.New())
	require.NoError(t, err)

	events, err := cc.MarkAsAdjusted()

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeCycleCountAdjusted, events[0].EventType())
	assert.Equal(t, CountStatusAdjusted, cc.Status)
}

func TestCycleCount_ScheduleNextBeforeComplete(t *testing.T) {
	cc := newTestCycleCount(t, nil)
	_, _, err := cc.ScheduleNext("CC-2")
	assert.True(t, errors.Is(err, shared.ErrInvalidStateTransition))
}

func TestCycleCount_SetFrequency(t *testing.T) {
	cc := newTestCycleCount(t, classPtr(ABCClassC))
	require.NoError(t, cc.SetFrequency(FrequencyWeekly))
	assert.Equal(t, FrequencyWeekly, cc.Frequency)
	assert.True(t, errors.Is(cc.SetFrequency("HOURLY"), shared.ErrInvalidArgument))

	_, err := cc.AddItem(CountItemInput{ProductID: uuid.New()})
	require.NoError(t, err)
	_, err = cc.Start()
	require.NoError(t, err)
	assert.True(t, errors.Is(cc.SetFrequency(FrequencyDaily), shared.ErrInvalidStateTransition))
}

func TestCycleCount_Tolerance(t *testing.T) {
	pct := decimal.NewFromInt(5)
	cc := newTestCycleCount(t, classPtr(ABCClassA))
	require.NoError(t, cc.SetTolerance(TolerancePolicy{QuantityPercent: &pct, BlockAutoApproveOnToleranceExceeded: true}))

	within, err := cc.AddItem(CountItemInput{ProductID: uuid.New(), SystemQuantity: dec(100), UnitCost: dec(1)})
	require.NoError(t, err)
	withinID := within.ID
	outside, err := cc.AddItem(CountItemInput{ProductID: uuid.New(), SystemQuantity: dec(10), UnitCost: dec(1)})
	require.NoError(t, err)
	outsideID := outside.ID
	_, err = cc.Start()
	require.NoError(t, err)
	_, err = cc.RecordCount(withinID, dec(97), nil, "")
	require.NoError(t, err)
	_, err = cc.RecordCount(outsideID, dec(8), nil, "")
	require.NoError(t, err)
	_, err = cc.Complete()
	require.NoError(t, err)

	exceeding := cc.ItemsExceedingTolerance()
	require.Len(t, exceeding, 1)
	assert.Equal(t, outsideID, exceeding[0].ID)
	assert.True(t, cc.RequiresManualReview())

	// tolerance is advisory; approval still succeeds
	_, err = cc.Approve(uuid.New())
	assert.NoError(t, err)

	negative := decimal.NewFromInt(-1)
	assert.True(t, errors.Is(cc.SetTolerance(TolerancePolicy{Value: &negative}), shared.ErrInvalidArgument))
}

func TestCycleCount_IsDue(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	cc, _, err := NewCycleCount(uuid.New(), uuid.New(), "CC-1", "", nil, future, CycleCountScope{})
	require.NoError(t, err)

	assert.False(t, cc.IsDue(time.Now()))
	assert.True(t, cc.IsDue(future))

	_, err = cc.Cancel("not needed")
	require.NoError(t, err)
	assert.False(t, cc.IsDue(future))
}

func TestRecurrenceFrequency_Next(t *testing.T) {
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), FrequencyDaily.Next(base))
	assert.Equal(t, time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC), FrequencyWeekly.Next(base))
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), FrequencyMonthly.Next(base))
	assert.Equal(t, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), FrequencyQuarterly.Next(base))
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), FrequencyAnnually.Next(base))
}
