package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cycleCountFixture struct {
	*ledgerFixture
	service *CycleCountService
}

func newCycleCountFixture() *cycleCountFixture {
	lf := newLedgerFixture()
	return &cycleCountFixture{
		ledgerFixture: lf,
		service:       NewCycleCountService(lf.store.scope(), memCycleCounts{lf.store}, nil),
	}
}

// counted creates a one line count over seeded stock of 20, records counted
// and completes it
func (f *cycleCountFixture) counted(t *testing.T, req CreateCycleCountRequest, counted int64) *CycleCountCompletionResponse {
	t.Helper()
	ctx := context.Background()
	f.store.seed(f.tenantID, f.key(), 20, 0)
	req.WarehouseID = f.warehouseID
	req.Items = []CountItemRequest{{ProductID: f.productID, UnitCost: dec(4)}}

	cc, err := f.service.Create(ctx, f.tenantID, req)
	require.NoError(t, err)
	_, err = f.service.Start(ctx, f.tenantID, cc.ID)
	require.NoError(t, err)
	_, err = f.service.RecordCounts(ctx, f.tenantID, cc.ID, RecordCountsRequest{Counts: []RecordCountRequest{
		{ItemID: cc.Items[0].ID, CountedQuantity: dec(counted)},
	}})
	require.NoError(t, err)
	done, err := f.service.Complete(ctx, f.tenantID, cc.ID)
	require.NoError(t, err)
	return done
}

func TestCycleCountService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("frequency defaults from the ABC class", func(t *testing.T) {
		f := newCycleCountFixture()
		resp, err := f.service.Create(ctx, f.tenantID, CreateCycleCountRequest{
			WarehouseID: f.warehouseID,
			Name:        "Fast movers",
			ABCClass:    "b",
		})
		require.NoError(t, err)

		assert.Equal(t, "CC-000001", resp.CountNumber)
		assert.Equal(t, "B", resp.ABCClass)
		assert.Equal(t, string(inventory.FrequencyQuarterly), resp.Frequency)
		assert.Equal(t, string(inventory.CountStatusPlanned), resp.Status)
	})

	t.Run("explicit frequency and tolerance", func(t *testing.T) {
		f := newCycleCountFixture()
		pct := decimal.NewFromInt(5)
		resp, err := f.service.Create(ctx, f.tenantID, CreateCycleCountRequest{
			WarehouseID: f.warehouseID,
			ABCClass:    "A",
			Frequency:   string(inventory.FrequencyWeekly),
			Tolerance:   &ToleranceRequest{QuantityPercent: &pct, BlockAutoApproveOnToleranceExceeded: true},
		})
		require.NoError(t, err)

		assert.Equal(t, string(inventory.FrequencyWeekly), resp.Frequency)
		require.NotNil(t, resp.QuantityTolerance)
		assert.True(t, pct.Equal(*resp.QuantityTolerance))
		assert.True(t, resp.BlockAutoApprove)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		f := newCycleCountFixture()
		negative := decimal.NewFromInt(-1)
		tests := []struct {
			name string
			req  CreateCycleCountRequest
		}{
			{"abc class", CreateCycleCountRequest{WarehouseID: f.warehouseID, ABCClass: "D"}},
			{"frequency", CreateCycleCountRequest{WarehouseID: f.warehouseID, Frequency: "HOURLY"}},
			{"tolerance", CreateCycleCountRequest{WarehouseID: f.warehouseID, Tolerance: &ToleranceRequest{Value: &negative}}},
			{"warehouse", CreateCycleCountRequest{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.service.Create(ctx, f.tenantID, tt.req)
				assert.ErrorIs(t, err, shared.ErrInvalidArgument)
			})
		}
	})
}

func TestCycleCountService_Complete(t *testing.T) {
	t.Run("schedules the next count", func(t *testing.T) {
		f := newCycleCountFixture()
		before := time.Now()
		done := f.counted(t, CreateCycleCountRequest{Frequency: string(inventory.FrequencyWeekly), Name: "Aisle 3"}, 20)

		assert.Equal(t, string(inventory.CountStatusCompleted), done.CycleCount.Status)
		require.NotNil(t, done.CycleCount.NextScheduledDate)
		require.NotNil(t, done.Next)
		assert.Equal(t, "CC-000002", done.Next.CountNumber)
		assert.Equal(t, "Aisle 3", done.Next.Name)
		assert.Equal(t, string(inventory.CountStatusPlanned), done.Next.Status)
		assert.Equal(t, string(inventory.FrequencyWeekly), done.Next.Frequency)
		assert.Empty(t, done.Next.Items)
		assert.True(t, done.Next.ScheduledDate.Equal(*done.CycleCount.NextScheduledDate))
		assert.False(t, done.Next.ScheduledDate.Before(before.AddDate(0, 0, 7)))

		stored, err := f.service.GetByID(context.Background(), f.tenantID, done.Next.ID)
		require.NoError(t, err)
		assert.Equal(t, done.Next.CountNumber, stored.CountNumber)
		assert.Contains(t, f.store.eventTypes(), inventory.EventTypeCycleCountCompleted)
	})

	t.Run("flags items outside tolerance for review", func(t *testing.T) {
		f := newCycleCountFixture()
		pct := decimal.NewFromInt(10)
		done := f.counted(t, CreateCycleCountRequest{
			Tolerance: &ToleranceRequest{QuantityPercent: &pct, BlockAutoApproveOnToleranceExceeded: true},
		}, 15)

		assert.True(t, done.CycleCount.RequiresManualReview)
		require.Len(t, done.CycleCount.Items, 1)
		assert.True(t, done.CycleCount.Items[0].ExceedsTolerance)

		approved, err := f.service.Approve(context.Background(), f.tenantID, done.CycleCount.ID, ApproveCountRequest{ApprovedBy: uuid.New()})
		require.NoError(t, err)
		assert.Equal(t, string(inventory.CountStatusApproved), approved.Status)
	})

	t.Run("frequency is fixed once counting starts", func(t *testing.T) {
		f := newCycleCountFixture()
		done := f.counted(t, CreateCycleCountRequest{}, 20)

		_, err := f.service.UpdateSchedule(context.Background(), f.tenantID, done.CycleCount.ID, UpdateCycleCountScheduleRequest{
			Frequency: string(inventory.FrequencyDaily),
		})
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	})
}

func TestCycleCountService_Adjust(t *testing.T) {
	ctx := context.Background()

	t.Run("posts variances through an adjustment", func(t *testing.T) {
		f := newCycleCountFixture()
		done := f.counted(t, CreateCycleCountRequest{}, 17)
		approver := uuid.New()
		_, err := f.service.Approve(ctx, f.tenantID, done.CycleCount.ID, ApproveCountRequest{ApprovedBy: approver})
		require.NoError(t, err)

		resp, err := f.service.Adjust(ctx, f.tenantID, done.CycleCount.ID, ApproveCountRequest{ApprovedBy: approver})
		require.NoError(t, err)

		assert.Equal(t, string(inventory.CountStatusAdjusted), resp.CycleCount.Status)
		require.NotNil(t, resp.Adjustment)
		assert.Equal(t, string(inventory.AdjustmentStatusProcessed), resp.Adjustment.Status)
		assert.Equal(t, string(inventory.AdjustmentReasonCountVariance), resp.Adjustment.Reason)
		assert.True(t, dec(-12).Equal(resp.Adjustment.TotalCostImpact))
		assert.True(t, dec(17).Equal(f.store.line(f.tenantID, f.key()).Quantity))
		require.Len(t, f.store.movementsOfType(inventory.MovementTypeAdjustmentDecrease), 1)
	})

	t.Run("without variances the count is processed", func(t *testing.T) {
		f := newCycleCountFixture()
		done := f.counted(t, CreateCycleCountRequest{}, 20)
		_, err := f.service.Approve(ctx, f.tenantID, done.CycleCount.ID, ApproveCountRequest{ApprovedBy: uuid.New()})
		require.NoError(t, err)

		resp, err := f.service.Adjust(ctx, f.tenantID, done.CycleCount.ID, ApproveCountRequest{ApprovedBy: uuid.New()})
		require.NoError(t, err)

		assert.Equal(t, string(inventory.CountStatusProcessed), resp.CycleCount.Status)
		assert.Nil(t, resp.Adjustment)
		assert.Empty(t, f.store.movementsOfType(inventory.MovementTypeAdjustmentDecrease))
	})

	t.Run("requires approval", func(t *testing.T) {
		f := newCycleCountFixture()
		done := f.counted(t, CreateCycleCountRequest{}, 17)

		_, err := f.service.Adjust(ctx, f.tenantID, done.CycleCount.ID, ApproveCountRequest{ApprovedBy: uuid.New()})
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
		assert.True(t, dec(20).Equal(f.store.line(f.tenantID, f.key()).Quantity))
	})
}

func TestCycleCountService_FindDue(t *testing.T) {
	f := newCycleCountFixture()
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(48 * time.Hour)

	due, err := f.service.Create(ctx, f.tenantID, CreateCycleCountRequest{WarehouseID: f.warehouseID, ScheduledDate: &past})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, f.tenantID, CreateCycleCountRequest{WarehouseID: f.warehouseID, ScheduledDate: &future})
	require.NoError(t, err)
	cancelled, err := f.service.Create(ctx, f.tenantID, CreateCycleCountRequest{WarehouseID: f.warehouseID, ScheduledDate: &past})
	require.NoError(t, err)
	_, err = f.service.Cancel(ctx, f.tenantID, cancelled.ID, CancelRequest{Reason: "merged"})
	require.NoError(t, err)

	got, err := f.service.FindDue(ctx, f.tenantID, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)

	other, err := f.service.FindDue(ctx, uuid.New(), now)
	require.NoError(t, err)
	assert.Empty(t, other)
}
