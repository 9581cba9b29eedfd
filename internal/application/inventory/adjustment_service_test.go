package inventory

import (
	"context"
	"testing"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type adjustmentFixture struct {
	*ledgerFixture
	service *AdjustmentService
}

func newAdjustmentFixture(t *testing.T) *adjustmentFixture {
	lf := newLedgerFixture()
	svc := NewAdjustmentService(lf.store.scope(), memAdjustments{lf.store}, nil)
	metrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{Meter: noop.NewMeterProvider().Meter("test")})
	require.NoError(t, err)
	svc.SetLedgerMetrics(metrics)
	return &adjustmentFixture{ledgerFixture: lf, service: svc}
}

func (f *adjustmentFixture) approved(t *testing.T, items ...AdjustmentItemRequest) *AdjustmentResponse {
	t.Helper()
	ctx := context.Background()
	adj, err := f.service.Create(ctx, f.tenantID, CreateAdjustmentRequest{
		WarehouseID: f.warehouseID,
		Reason:      string(inventory.AdjustmentReasonDamage),
		Items:       items,
	})
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, f.tenantID, adj.ID)
	require.NoError(t, err)
	adj, err = f.service.Approve(ctx, f.tenantID, adj.ID, ApproveRequest{ApprovedBy: uuid.New()})
	require.NoError(t, err)
	return adj
}

func TestAdjustmentService_Create(t *testing.T) {
	t.Run("snapshots ledger quantities", func(t *testing.T) {
		f := newAdjustmentFixture(t)
		f.store.seed(f.tenantID, f.key(), 10, 0)
		other := uuid.New()

		resp, err := f.service.Create(context.Background(), f.tenantID, CreateAdjustmentRequest{
			WarehouseID: f.warehouseID,
			Items: []AdjustmentItemRequest{
				{ProductID: f.productID, ActualQuantity: dec(7), UnitCost: dec(2)},
				{ProductID: other, ActualQuantity: dec(3), UnitCost: dec(1)},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "ADJ-000001", resp.AdjustmentNumber)
		assert.Equal(t, string(inventory.AdjustmentReasonCorrection), resp.Reason)
		assert.Equal(t, string(inventory.AdjustmentStatusDraft), resp.Status)
		require.Len(t, resp.Items, 2)
		assert.True(t, dec(10).Equal(resp.Items[0].SystemQuantity))
		assert.True(t, dec(-3).Equal(resp.Items[0].VarianceQuantity))
		assert.True(t, resp.Items[1].SystemQuantity.IsZero())
		assert.True(t, dec(-3).Equal(resp.TotalCostImpact))
		assert.True(t, dec(0).Equal(resp.TotalVarianceQuantity))
	})

	t.Run("rejects duplicate rows", func(t *testing.T) {
		f := newAdjustmentFixture(t)
		_, err := f.service.Create(context.Background(), f.tenantID, CreateAdjustmentRequest{
			WarehouseID: f.warehouseID,
			Items: []AdjustmentItemRequest{
				{ProductID: f.productID, ActualQuantity: dec(1)},
				{ProductID: f.productID, ActualQuantity: dec(2)},
			},
		})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		assert.Empty(t, f.store.adjustments)
	})

	t.Run("rejects unknown reason", func(t *testing.T) {
		f := newAdjustmentFixture(t)
		_, err := f.service.Create(context.Background(), f.tenantID, CreateAdjustmentRequest{WarehouseID: f.warehouseID, Reason: "THEFT"})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})
}

func TestAdjustmentService_Workflow(t *testing.T) {
	t.Run("empty adjustment cannot be submitted", func(t *testing.T) {
		f := newAdjustmentFixture(t)
		adj, err := f.service.Create(context.Background(), f.tenantID, CreateAdjustmentRequest{WarehouseID: f.warehouseID})
		require.NoError(t, err)

		_, err = f.service.Submit(context.Background(), f.tenantID, adj.ID)
		assert.ErrorIs(t, err, shared.ErrEmptyAdjustment)
	})

	t.Run("items are editable only in draft", func(t *testing.T) {
		f := newAdjustmentFixture(t)
		ctx := context.Background()
		adj, err := f.service.Create(ctx, f.tenantID, CreateAdjustmentRequest{WarehouseID: f.warehouseID})
		require.NoError(t, err)

		adj, err = f.service.AddItem(ctx, f.tenantID, adj.ID, AdjustmentItemRequest{ProductID: f.productID, ActualQuantity: dec(1)})
		require.NoError(t, err)
		require.Len(t, adj.Items, 1)
		_, err = f.service.AddItem(ctx, f.tenantID, adj.ID, AdjustmentItemRequest{ProductID: uuid.New(), ActualQuantity: dec(1)})
		require.NoError(t, err)

		adj, err = f.service.RemoveItem(ctx, f.tenantID, adj.ID, adj.Items[0].ID)
		require.NoError(t, err)
		assert.Len(t, adj.Items, 1)

		_, err = f.service.Submit(ctx, f.tenantID, adj.ID)
		require.NoError(t, err)
		_, err = f.service.AddItem(ctx, f.tenantID, adj.ID, AdjustmentItemRequest{ProductID: uuid.New(), ActualQuantity: dec(1)})
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	})

	t.Run("rejected adjustment cannot be processed", func(t *testing.T) {
		f := newAdjustmentFixture(t)
		ctx := context.Background()
		adj, err := f.service.Create(ctx, f.tenantID, CreateAdjustmentRequest{
			WarehouseID: f.warehouseID,
			Items:       []AdjustmentItemRequest{{ProductID: f.productID, ActualQuantity: dec(1)}},
		})
		require.NoError(t, err)
		_, err = f.service.Submit(ctx, f.tenantID, adj.ID)
		require.NoError(t, err)

		resp, err := f.service.Reject(ctx, f.tenantID, adj.ID, RejectRequest{RejectedBy: uuid.New(), Reason: "not justified"})
		require.NoError(t, err)
		assert.Equal(t, string(inventory.AdjustmentStatusRejected), resp.Status)
		assert.Equal(t, "not justified", resp.RejectionReason)

		_, err = f.service.Process(ctx, f.tenantID, adj.ID, ProcessAdjustmentRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
		_, err = f.service.Cancel(ctx, f.tenantID, adj.ID, CancelRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
		assert.Empty(t, f.store.movementList())
	})

	t.Run("draft can be cancelled", func(t *testing.T) {
		f := newAdjustmentFixture(t)
		adj, err := f.service.Create(context.Background(), f.tenantID, CreateAdjustmentRequest{WarehouseID: f.warehouseID})
		require.NoError(t, err)

		resp, err := f.service.Cancel(context.Background(), f.tenantID, adj.ID, CancelRequest{Reason: "duplicate"})
		require.NoError(t, err)
		assert.Equal(t, string(inventory.AdjustmentStatusCancelled), resp.Status)
		assert.Equal(t, "duplicate", resp.CancellationReason)
	})
}

func TestAdjustmentService_Process(t *testing.T) {
	t.Run("applies every item to the ledger", func(t *testing.T) {
		f := newAdjustmentFixture(t)
		loc := uuid.New()
		locKey := f.key().WithLocation(&loc)
		f.store.seed(f.tenantID, f.key(), 10, 0)
		f.store.seed(f.tenantID, locKey, 2, 0)

		adj := f.approved(t,
			AdjustmentItemRequest{ProductID: f.productID, ActualQuantity: dec(8), UnitCost: dec(5)},
			AdjustmentItemRequest{ProductID: f.productID, LocationID: &loc, ActualQuantity: dec(6), UnitCost: dec(5)},
		)

		resp, err := f.service.Process(context.Background(), f.tenantID, adj.ID, ProcessAdjustmentRequest{OperatorID: idPtr(uuid.New())})
		require.NoError(t, err)
		assert.Equal(t, string(inventory.AdjustmentStatusProcessed), resp.Status)
		assert.NotNil(t, resp.ProcessedAt)

		assert.True(t, dec(8).Equal(f.store.line(f.tenantID, f.key()).Quantity))
		assert.True(t, dec(6).Equal(f.store.line(f.tenantID, locKey).Quantity))

		dec1 := f.store.movementsOfType(inventory.MovementTypeAdjustmentDecrease)
		inc := f.store.movementsOfType(inventory.MovementTypeAdjustmentIncrease)
		require.Len(t, dec1, 1)
		require.Len(t, inc, 1)
		assert.Equal(t, AdjustmentReferenceType, inc[0].Reference.Type)
		assert.Equal(t, adj.AdjustmentNumber, inc[0].DocumentNumber)
		assert.Equal(t, string(inventory.AdjustmentReasonDamage), dec1[0].Description)
		assert.Contains(t, f.store.eventTypes(), inventory.EventTypeAdjustmentProcessed)

		_, err = f.service.Process(context.Background(), f.tenantID, adj.ID, ProcessAdjustmentRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	})

	t.Run("fails when a row would drop below reserved", func(t *testing.T) {
		f := newAdjustmentFixture(t)
		f.store.seed(f.tenantID, f.key(), 10, 0)
		adj := f.approved(t, AdjustmentItemRequest{ProductID: f.productID, ActualQuantity: dec(2)})
		f.store.line(f.tenantID, f.key()).ReservedQuantity = dec(5)

		_, err := f.service.Process(context.Background(), f.tenantID, adj.ID, ProcessAdjustmentRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		assert.Empty(t, f.store.movementList())
	})
}

func TestAdjustmentService_Queries(t *testing.T) {
	f := newAdjustmentFixture(t)
	adj, err := f.service.Create(context.Background(), f.tenantID, CreateAdjustmentRequest{WarehouseID: f.warehouseID})
	require.NoError(t, err)

	got, err := f.service.GetByID(context.Background(), f.tenantID, adj.ID)
	require.NoError(t, err)
	assert.Equal(t, adj.AdjustmentNumber, got.AdjustmentNumber)

	_, err = f.service.GetByID(context.Background(), uuid.New(), adj.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	page, err := f.service.List(context.Background(), f.tenantID, AdjustmentListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}
