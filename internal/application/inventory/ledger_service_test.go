package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	store       *memLedger
	service     *LedgerService
	tenantID    uuid.UUID
	productID   uuid.UUID
	warehouseID uuid.UUID
}

func newLedgerFixture() *ledgerFixture {
	store := newMemLedger()
	repos := store.repositories()
	return &ledgerFixture{
		store:       store,
		service:     NewLedgerService(store.scope(), repos.StockLines, repos.Movements, nil),
		tenantID:    uuid.New(),
		productID:   uuid.New(),
		warehouseID: uuid.New(),
	}
}

func (f *ledgerFixture) keyRequest() StockKeyRequest {
	return StockKeyRequest{ProductID: f.productID, WarehouseID: f.warehouseID}
}

func (f *ledgerFixture) key() inventory.StockKey {
	return f.keyRequest().Key()
}

func TestLedgerService_IncreaseStock(t *testing.T) {
	t.Run("creates the row on first receipt", func(t *testing.T) {
		f := newLedgerFixture()

		resp, err := f.service.IncreaseStock(context.Background(), f.tenantID, IncreaseStockRequest{
			StockKeyRequest: f.keyRequest(),
			Quantity:        dec(10),
			UnitCost:        dec(3),
			LotNumber:       "LOT-1",
		})
		require.NoError(t, err)

		assert.True(t, dec(10).Equal(resp.StockLine.Quantity))
		assert.True(t, dec(10).Equal(resp.StockLine.AvailableQuantity))
		assert.Equal(t, "LOT-1", resp.StockLine.LotNumber)
		assert.Equal(t, string(inventory.MovementTypePurchase), resp.Movement.MovementType)
		assert.Equal(t, int64(1), resp.Movement.SequenceNumber)
		assert.True(t, resp.Movement.IsIncoming)
		assert.True(t, dec(30).Equal(resp.Movement.TotalCost))
		assert.Contains(t, resp.Movement.DocumentNumber, "MV-")
		assert.Nil(t, resp.Variance)

		assert.Equal(t, []string{inventory.EventTypeStockIncreased, inventory.EventTypeMovementCreated}, f.store.eventTypes())
	})

	t.Run("sequence increases per product and warehouse", func(t *testing.T) {
		f := newLedgerFixture()
		loc := uuid.New()
		ctx := context.Background()

		first, err := f.service.IncreaseStock(ctx, f.tenantID, IncreaseStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(1)})
		require.NoError(t, err)
		withLoc := f.keyRequest()
		withLoc.LocationID = &loc
		second, err := f.service.IncreaseStock(ctx, f.tenantID, IncreaseStockRequest{StockKeyRequest: withLoc, Quantity: dec(1)})
		require.NoError(t, err)

		assert.Equal(t, int64(1), first.Movement.SequenceNumber)
		assert.Equal(t, int64(2), second.Movement.SequenceNumber)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		f := newLedgerFixture()
		_, err := f.service.IncreaseStock(context.Background(), f.tenantID, IncreaseStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(0)})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		assert.Empty(t, f.store.movementList())
	})

	t.Run("rejects an issue movement type", func(t *testing.T) {
		f := newLedgerFixture()
		_, err := f.service.IncreaseStock(context.Background(), f.tenantID, IncreaseStockRequest{
			StockKeyRequest: f.keyRequest(),
			Quantity:        dec(1),
			MovementType:    string(inventory.MovementTypeSale),
		})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("rejects a missing product", func(t *testing.T) {
		f := newLedgerFixture()
		_, err := f.service.IncreaseStock(context.Background(), f.tenantID, IncreaseStockRequest{
			StockKeyRequest: StockKeyRequest{WarehouseID: f.warehouseID},
			Quantity:        dec(1),
		})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})
}

func TestLedgerService_DecreaseStock(t *testing.T) {
	t.Run("issues available stock", func(t *testing.T) {
		f := newLedgerFixture()
		f.store.seed(f.tenantID, f.key(), 10, 2)

		resp, err := f.service.DecreaseStock(context.Background(), f.tenantID, DecreaseStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(8)})
		require.NoError(t, err)
		assert.True(t, dec(2).Equal(resp.StockLine.Quantity))
		assert.True(t, resp.StockLine.AvailableQuantity.IsZero())
		assert.Equal(t, string(inventory.MovementTypeSale), resp.Movement.MovementType)
		assert.True(t, resp.Movement.IsOutgoing)
	})

	t.Run("reserved stock cannot be issued", func(t *testing.T) {
		f := newLedgerFixture()
		f.store.seed(f.tenantID, f.key(), 10, 5)

		_, err := f.service.DecreaseStock(context.Background(), f.tenantID, DecreaseStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(6)})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.True(t, dec(10).Equal(f.store.line(f.tenantID, f.key()).Quantity))
		assert.Empty(t, f.store.movementList())
	})

	t.Run("missing row is insufficient stock", func(t *testing.T) {
		f := newLedgerFixture()
		_, err := f.service.DecreaseStock(context.Background(), f.tenantID, DecreaseStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(1)})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Nil(t, f.store.line(f.tenantID, f.key()))
	})

	t.Run("tenants are isolated", func(t *testing.T) {
		f := newLedgerFixture()
		f.store.seed(uuid.New(), f.key(), 10, 0)

		_, err := f.service.DecreaseStock(context.Background(), f.tenantID, DecreaseStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(1)})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})
}

func TestLedgerService_ReserveAndRelease(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	f.store.seed(f.tenantID, f.key(), 10, 0)

	resp, err := f.service.ReserveStock(ctx, f.tenantID, ReserveStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(4)})
	require.NoError(t, err)
	assert.True(t, dec(4).Equal(resp.StockLine.ReservedQuantity))
	assert.True(t, dec(6).Equal(resp.StockLine.AvailableQuantity))
	assert.Equal(t, string(inventory.MovementTypeReservation), resp.Movement.MovementType)

	_, err = f.service.ReserveStock(ctx, f.tenantID, ReserveStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(7)})
	assert.ErrorIs(t, err, shared.ErrInsufficientAvailableStock)

	_, err = f.service.ReleaseReservation(ctx, f.tenantID, ReleaseStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(5)})
	assert.ErrorIs(t, err, shared.ErrOverRelease)

	resp, err = f.service.ReleaseReservation(ctx, f.tenantID, ReleaseStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(4)})
	require.NoError(t, err)
	assert.True(t, resp.StockLine.ReservedQuantity.IsZero())
	assert.Equal(t, string(inventory.MovementTypeReservationRelease), resp.Movement.MovementType)
	assert.Equal(t, int64(2), resp.Movement.SequenceNumber)
}

func TestLedgerService_AdjustStock(t *testing.T) {
	t.Run("records the variance", func(t *testing.T) {
		f := newLedgerFixture()
		f.store.seed(f.tenantID, f.key(), 10, 0)

		resp, err := f.service.AdjustStock(context.Background(), f.tenantID, AdjustStockRequest{
			StockKeyRequest: f.keyRequest(),
			NewQuantity:     dec(7),
			Reason:          "damaged in storage",
		})
		require.NoError(t, err)
		require.NotNil(t, resp.Variance)
		assert.True(t, dec(-3).Equal(*resp.Variance))
		assert.True(t, dec(7).Equal(resp.StockLine.Quantity))
		assert.NotNil(t, resp.StockLine.LastCountAt)
		assert.Equal(t, string(inventory.MovementTypeAdjustmentDecrease), resp.Movement.MovementType)
		assert.True(t, dec(3).Equal(resp.Movement.Quantity))
		assert.Equal(t, "damaged in storage", resp.Movement.Description)
	})

	t.Run("increase creates the row", func(t *testing.T) {
		f := newLedgerFixture()
		resp, err := f.service.AdjustStock(context.Background(), f.tenantID, AdjustStockRequest{
			StockKeyRequest: f.keyRequest(),
			NewQuantity:     dec(5),
			Reason:          "found",
		})
		require.NoError(t, err)
		assert.Equal(t, string(inventory.MovementTypeAdjustmentIncrease), resp.Movement.MovementType)
		assert.True(t, dec(5).Equal(*resp.Variance))
	})

	t.Run("cannot drop below reserved", func(t *testing.T) {
		f := newLedgerFixture()
		f.store.seed(f.tenantID, f.key(), 10, 6)

		_, err := f.service.AdjustStock(context.Background(), f.tenantID, AdjustStockRequest{
			StockKeyRequest: f.keyRequest(),
			NewQuantity:     dec(5),
			Reason:          "count",
		})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})
}

func TestLedgerService_TransferStock(t *testing.T) {
	t.Run("moves stock between locations", func(t *testing.T) {
		f := newLedgerFixture()
		from, to := uuid.New(), uuid.New()
		f.store.seed(f.tenantID, f.key().WithLocation(&from), 10, 0)

		resp, err := f.service.TransferStock(context.Background(), f.tenantID, TransferStockRequest{
			ProductID:      f.productID,
			WarehouseID:    f.warehouseID,
			FromLocationID: from,
			ToLocationID:   to,
			Quantity:       dec(4),
		})
		require.NoError(t, err)

		assert.True(t, dec(6).Equal(resp.Source.Quantity))
		assert.True(t, dec(4).Equal(resp.Destination.Quantity))
		assert.Equal(t, resp.DocumentNumber, resp.OutMovement.DocumentNumber)
		assert.Equal(t, resp.DocumentNumber, resp.InMovement.DocumentNumber)
		assert.Equal(t, string(inventory.MovementTypeTransfer), resp.OutMovement.MovementType)
		assert.Equal(t, &from, resp.OutMovement.FromLocationID)
		assert.Equal(t, &to, resp.InMovement.ToLocationID)
		assert.Less(t, resp.OutMovement.SequenceNumber, resp.InMovement.SequenceNumber)
	})

	t.Run("same location is rejected", func(t *testing.T) {
		f := newLedgerFixture()
		loc := uuid.New()
		_, err := f.service.TransferStock(context.Background(), f.tenantID, TransferStockRequest{
			ProductID:      f.productID,
			WarehouseID:    f.warehouseID,
			FromLocationID: loc,
			ToLocationID:   loc,
			Quantity:       dec(1),
		})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("insufficient source stock", func(t *testing.T) {
		f := newLedgerFixture()
		from, to := uuid.New(), uuid.New()
		f.store.seed(f.tenantID, f.key().WithLocation(&from), 2, 0)

		_, err := f.service.TransferStock(context.Background(), f.tenantID, TransferStockRequest{
			ProductID:      f.productID,
			WarehouseID:    f.warehouseID,
			FromLocationID: from,
			ToLocationID:   to,
			Quantity:       dec(3),
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Empty(t, f.store.movementList())
	})
}

func TestLedgerService_ReverseMovement(t *testing.T) {
	t.Run("receipt is compensated by an adjustment decrease", func(t *testing.T) {
		f := newLedgerFixture()
		ctx := context.Background()
		posted, err := f.service.IncreaseStock(ctx, f.tenantID, IncreaseStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(5)})
		require.NoError(t, err)

		operator := uuid.New()
		resp, err := f.service.ReverseMovement(ctx, f.tenantID, posted.Movement.ID, ReverseMovementRequest{Reason: "wrong receipt", OperatorID: operator})
		require.NoError(t, err)

		assert.True(t, resp.Reversed.IsReversed)
		assert.Equal(t, &resp.Compensation.ID, resp.Reversed.ReversedMovementID)
		assert.Equal(t, string(inventory.MovementTypeAdjustmentDecrease), resp.Compensation.MovementType)
		assert.True(t, resp.StockLine.Quantity.IsZero())
		assert.Equal(t, "MOVEMENT_REVERSAL", resp.Compensation.ReferenceType)
		assert.Contains(t, f.store.eventTypes(), inventory.EventTypeMovementReversed)

		_, err = f.service.ReverseMovement(ctx, f.tenantID, posted.Movement.ID, ReverseMovementRequest{OperatorID: operator})
		assert.ErrorIs(t, err, shared.ErrAlreadyFinalized)
	})

	t.Run("issue reversal fails when stock was consumed", func(t *testing.T) {
		f := newLedgerFixture()
		ctx := context.Background()
		posted, err := f.service.IncreaseStock(ctx, f.tenantID, IncreaseStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(5)})
		require.NoError(t, err)
		_, err = f.service.DecreaseStock(ctx, f.tenantID, DecreaseStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(4)})
		require.NoError(t, err)

		_, err = f.service.ReverseMovement(ctx, f.tenantID, posted.Movement.ID, ReverseMovementRequest{OperatorID: uuid.New()})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		mv, err := f.service.GetMovement(ctx, f.tenantID, posted.Movement.ID)
		require.NoError(t, err)
		assert.False(t, mv.IsReversed)
	})

	t.Run("unknown movement", func(t *testing.T) {
		f := newLedgerFixture()
		_, err := f.service.ReverseMovement(context.Background(), f.tenantID, uuid.New(), ReverseMovementRequest{OperatorID: uuid.New()})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("hold without a reservation document is reversible", func(t *testing.T) {
		f := newLedgerFixture()
		ctx := context.Background()
		f.store.seed(f.tenantID, f.key(), 10, 0)
		held, err := f.service.ReserveStock(ctx, f.tenantID, ReserveStockRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(4)})
		require.NoError(t, err)

		resp, err := f.service.ReverseMovement(ctx, f.tenantID, held.Movement.ID, ReverseMovementRequest{OperatorID: uuid.New()})
		require.NoError(t, err)
		assert.True(t, resp.StockLine.ReservedQuantity.IsZero())
	})
}

func TestLedgerService_ReverseReservationMovement(t *testing.T) {
	ctx := context.Background()

	t.Run("hold of an active reservation is refused", func(t *testing.T) {
		f := newReservationFixture(10)
		r := f.create(t, 4)
		holds := f.store.movementsOfType(inventory.MovementTypeReservation)
		require.Len(t, holds, 1)

		_, err := f.ledgerFixture.service.ReverseMovement(ctx, f.tenantID, holds[0].ID, ReverseMovementRequest{OperatorID: uuid.New()})
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)

		line := f.store.line(f.tenantID, f.key())
		assert.True(t, dec(4).Equal(line.ReservedQuantity))
		assert.False(t, holds[0].IsReversed)

		resp, err := f.service.Cancel(ctx, f.tenantID, r.ID, CancelReservationRequest{Reason: "order void"})
		require.NoError(t, err)
		assert.Equal(t, string(inventory.ReservationStatusCancelled), resp.Status)
		assert.True(t, f.store.line(f.tenantID, f.key()).ReservedQuantity.IsZero())
	})

	t.Run("release of a cancelled reservation is refused", func(t *testing.T) {
		f := newReservationFixture(10)
		r := f.create(t, 4)
		_, err := f.service.Cancel(ctx, f.tenantID, r.ID, CancelReservationRequest{})
		require.NoError(t, err)
		releases := f.store.movementsOfType(inventory.MovementTypeReservationRelease)
		require.Len(t, releases, 1)

		_, err = f.ledgerFixture.service.ReverseMovement(ctx, f.tenantID, releases[0].ID, ReverseMovementRequest{OperatorID: uuid.New()})
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
		assert.True(t, f.store.line(f.tenantID, f.key()).ReservedQuantity.IsZero())
	})
}

func TestLedgerService_SequenceFailure(t *testing.T) {
	store := newMemLedger()
	repos := store.repositories()
	seq := new(MockSequenceGenerator)
	repos.Sequences = seq
	svc := NewLedgerService(NewNoOpTransactionScope(repos), repos.StockLines, repos.Movements, nil)
	tenantID := uuid.New()

	seq.On("Next", mock.Anything, tenantID, mock.AnythingOfType("string")).Return(int64(0), errors.New("sequence table locked"))

	_, err := svc.IncreaseStock(context.Background(), tenantID, IncreaseStockRequest{
		StockKeyRequest: StockKeyRequest{ProductID: uuid.New(), WarehouseID: uuid.New()},
		Quantity:        dec(1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to allocate movement sequence")
	assert.Empty(t, store.movementList())
	seq.AssertExpectations(t)
}

func TestLedgerService_EventRecorderFailure(t *testing.T) {
	store := newMemLedger()
	repos := store.repositories()
	recorder := new(MockEventRecorder)
	repos.Events = recorder
	svc := NewLedgerService(NewNoOpTransactionScope(repos), repos.StockLines, repos.Movements, nil)

	recorder.On("Record", mock.Anything, mock.Anything).Return(errors.New("outbox unavailable"))

	_, err := svc.IncreaseStock(context.Background(), uuid.New(), IncreaseStockRequest{
		StockKeyRequest: StockKeyRequest{ProductID: uuid.New(), WarehouseID: uuid.New()},
		Quantity:        dec(1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record ledger events")
}

func TestLedgerService_Queries(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	line := f.store.seed(f.tenantID, f.key(), 3, 1)

	got, err := f.service.GetStockLine(ctx, f.tenantID, line.ID)
	require.NoError(t, err)
	assert.True(t, dec(2).Equal(got.AvailableQuantity))

	_, err = f.service.GetStockLine(ctx, uuid.New(), line.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	byKey, err := f.service.GetStockLineByKey(ctx, f.tenantID, f.key())
	require.NoError(t, err)
	assert.Equal(t, line.ID, byKey.ID)

	page, err := f.service.ListStockLines(ctx, f.tenantID, StockLineListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)

	_, err = f.service.ListMovements(ctx, f.tenantID, MovementListFilter{MovementType: "NOT_A_TYPE"})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestLedgerService_CheckVariantIntegrity(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	variant := uuid.New()

	resp, err := f.service.CheckVariantIntegrity(ctx, f.tenantID, f.productID, f.warehouseID)
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
	assert.False(t, resp.HasVariants)

	vk := f.key()
	vk.VariantID = &variant
	f.store.seed(f.tenantID, vk, 8, 0)
	f.store.seed(f.tenantID, f.key(), 2, 0)

	resp, err = f.service.CheckVariantIntegrity(ctx, f.tenantID, f.productID, f.warehouseID)
	require.NoError(t, err)
	assert.False(t, resp.IsValid)
	assert.True(t, resp.HasVariants)
	assert.True(t, dec(2).Equal(resp.Discrepancy))
	assert.True(t, dec(8).Equal(resp.ByVariant[variant]))
}
