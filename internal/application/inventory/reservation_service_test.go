package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type reservationFixture struct {
	*ledgerFixture
	service *ReservationService
}

func newReservationFixture(onHand int64) *reservationFixture {
	lf := newLedgerFixture()
	if onHand > 0 {
		lf.store.seed(lf.tenantID, lf.key(), onHand, 0)
	}
	return &reservationFixture{
		ledgerFixture: lf,
		service:       NewReservationService(lf.store.scope(), memReservations{lf.store}, nil),
	}
}

func (f *reservationFixture) create(t *testing.T, qty int64, opts ...func(*CreateReservationRequest)) *ReservationResponse {
	t.Helper()
	req := CreateReservationRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(qty)}
	for _, opt := range opts {
		opt(&req)
	}
	resp, err := f.service.Create(context.Background(), f.tenantID, req)
	require.NoError(t, err)
	return resp
}

func TestReservationService_Create(t *testing.T) {
	t.Run("reserves ledger stock and numbers the reservation", func(t *testing.T) {
		f := newReservationFixture(10)
		resp := f.create(t, 4, func(r *CreateReservationRequest) {
			r.ReservationType = string(inventory.ReservationTypeSalesOrder)
			r.Reference = ReferenceRequest{Type: "SALES_ORDER", Number: "SO-1"}
		})

		assert.Equal(t, "RS-000001", resp.ReservationNumber)
		assert.Equal(t, string(inventory.ReservationStatusActive), resp.Status)
		assert.True(t, dec(4).Equal(resp.RemainingQuantity))
		assert.Equal(t, "SO-1", resp.ReferenceNumber)

		line := f.store.line(f.tenantID, f.key())
		assert.True(t, dec(4).Equal(line.ReservedQuantity))

		moves := f.store.movementsOfType(inventory.MovementTypeReservation)
		require.Len(t, moves, 1)
		assert.Equal(t, ReservationReferenceType, moves[0].Reference.Type)
		assert.Equal(t, resp.ID, *moves[0].Reference.ID)
		assert.Contains(t, f.store.eventTypes(), inventory.EventTypeReservationCreated)
	})

	t.Run("keeps a caller supplied number", func(t *testing.T) {
		f := newReservationFixture(10)
		resp := f.create(t, 1, func(r *CreateReservationRequest) { r.ReservationNumber = "EXT-9" })
		assert.Equal(t, "EXT-9", resp.ReservationNumber)
	})

	t.Run("fails without available stock", func(t *testing.T) {
		f := newReservationFixture(3)
		_, err := f.service.Create(context.Background(), f.tenantID, CreateReservationRequest{StockKeyRequest: f.keyRequest(), Quantity: dec(4)})
		assert.ErrorIs(t, err, shared.ErrInsufficientAvailableStock)
		assert.Empty(t, f.store.reservations)
	})

	t.Run("applies the default lifetime", func(t *testing.T) {
		f := newReservationFixture(10)
		f.service.SetDefaultTTL(48 * time.Hour)
		resp := f.create(t, 1)
		require.NotNil(t, resp.ExpirationDate)
		assert.WithinDuration(t, time.Now().Add(48*time.Hour), *resp.ExpirationDate, time.Minute)

		explicit := time.Now().Add(time.Hour)
		resp = f.create(t, 1, func(r *CreateReservationRequest) { r.ExpirationDate = &explicit })
		assert.WithinDuration(t, explicit, *resp.ExpirationDate, time.Second)
	})

	t.Run("rejects a past expiration date", func(t *testing.T) {
		f := newReservationFixture(3)
		past := time.Now().Add(-time.Hour)
		_, err := f.service.Create(context.Background(), f.tenantID, CreateReservationRequest{
			StockKeyRequest: f.keyRequest(),
			Quantity:        dec(1),
			ExpirationDate:  &past,
		})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})
}

func TestReservationService_Fulfill(t *testing.T) {
	t.Run("partial then full fulfilment issues stock", func(t *testing.T) {
		f := newReservationFixture(10)
		ctx := context.Background()
		r := f.create(t, 6)

		resp, err := f.service.PartialFulfill(ctx, f.tenantID, r.ID, FulfillReservationRequest{Quantity: decPtr(2)})
		require.NoError(t, err)
		assert.Equal(t, string(inventory.ReservationStatusPartiallyFulfilled), resp.Status)
		line := f.store.line(f.tenantID, f.key())
		assert.True(t, dec(8).Equal(line.Quantity))
		assert.True(t, dec(4).Equal(line.ReservedQuantity))

		resp, err = f.service.Fulfill(ctx, f.tenantID, r.ID, FulfillReservationRequest{})
		require.NoError(t, err)
		assert.Equal(t, string(inventory.ReservationStatusFulfilled), resp.Status)
		assert.True(t, resp.RemainingQuantity.IsZero())
		assert.NotNil(t, resp.FulfilledDate)

		line = f.store.line(f.tenantID, f.key())
		assert.True(t, dec(4).Equal(line.Quantity))
		assert.True(t, line.ReservedQuantity.IsZero())
		assert.Len(t, f.store.movementsOfType(inventory.MovementTypeSale), 2)
		assert.Len(t, f.store.movementsOfType(inventory.MovementTypeReservationRelease), 2)
	})

	t.Run("production reservations consume stock", func(t *testing.T) {
		f := newReservationFixture(5)
		r := f.create(t, 5, func(r *CreateReservationRequest) {
			r.ReservationType = string(inventory.ReservationTypeProduction)
		})

		_, err := f.service.Fulfill(context.Background(), f.tenantID, r.ID, FulfillReservationRequest{})
		require.NoError(t, err)
		assert.Len(t, f.store.movementsOfType(inventory.MovementTypeConsumption), 1)
	})

	t.Run("cannot exceed the remaining quantity", func(t *testing.T) {
		f := newReservationFixture(10)
		r := f.create(t, 3)

		_, err := f.service.Fulfill(context.Background(), f.tenantID, r.ID, FulfillReservationRequest{Quantity: decPtr(4)})
		assert.ErrorIs(t, err, shared.ErrExceedsRemaining)
		assert.True(t, dec(3).Equal(f.store.line(f.tenantID, f.key()).ReservedQuantity))
	})

	t.Run("partial fulfilment needs a quantity", func(t *testing.T) {
		f := newReservationFixture(10)
		r := f.create(t, 3)
		_, err := f.service.PartialFulfill(context.Background(), f.tenantID, r.ID, FulfillReservationRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("terminal reservations cannot be fulfilled", func(t *testing.T) {
		f := newReservationFixture(10)
		ctx := context.Background()
		r := f.create(t, 3)
		_, err := f.service.Cancel(ctx, f.tenantID, r.ID, CancelReservationRequest{Reason: "order cancelled"})
		require.NoError(t, err)

		_, err = f.service.Fulfill(ctx, f.tenantID, r.ID, FulfillReservationRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	})
}

func TestReservationService_Cancel(t *testing.T) {
	f := newReservationFixture(10)
	ctx := context.Background()
	r := f.create(t, 5)
	_, err := f.service.PartialFulfill(ctx, f.tenantID, r.ID, FulfillReservationRequest{Quantity: decPtr(2)})
	require.NoError(t, err)

	resp, err := f.service.Cancel(ctx, f.tenantID, r.ID, CancelReservationRequest{Reason: "customer changed mind"})
	require.NoError(t, err)
	assert.Equal(t, string(inventory.ReservationStatusCancelled), resp.Status)
	assert.Equal(t, "customer changed mind", resp.CancelReason)

	line := f.store.line(f.tenantID, f.key())
	assert.True(t, line.ReservedQuantity.IsZero())
	assert.True(t, dec(8).Equal(line.Quantity))

	_, err = f.service.Cancel(ctx, f.tenantID, r.ID, CancelReservationRequest{})
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
}

func TestReservationService_Expire(t *testing.T) {
	t.Run("releases stock once overdue", func(t *testing.T) {
		f := newReservationFixture(10)
		ctx := context.Background()
		exp := time.Now().Add(time.Hour)
		r := f.create(t, 4, func(r *CreateReservationRequest) { r.ExpirationDate = &exp })

		_, err := f.service.Expire(ctx, f.tenantID, r.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)

		f.service.now = func() time.Time { return exp.Add(time.Minute) }
		resp, err := f.service.Expire(ctx, f.tenantID, r.ID)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.ReservationStatusExpired), resp.Status)
		assert.True(t, f.store.line(f.tenantID, f.key()).ReservedQuantity.IsZero())
		assert.Contains(t, f.store.eventTypes(), inventory.EventTypeReservationExpired)
	})

	t.Run("not found in another tenant", func(t *testing.T) {
		f := newReservationFixture(10)
		r := f.create(t, 1)
		_, err := f.service.Expire(context.Background(), uuid.New(), r.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestReservationService_Queries(t *testing.T) {
	repo := new(MockReservationRepository)
	svc := NewReservationService(NewNoOpTransactionScope(Repositories{}), repo, nil)
	tenantID := uuid.New()
	r, _, err := inventory.NewReservation(tenantID, inventory.StockKey{ProductID: uuid.New(), WarehouseID: uuid.New()},
		"RS-000007", dec(3), inventory.ReservationTypeManual, nil)
	require.NoError(t, err)

	repo.On("FindByID", mock.Anything, tenantID, r.ID).Return(r, nil)
	repo.On("List", mock.Anything, tenantID, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Filters["status"] == string(inventory.ReservationStatusActive) && f.Page == 1
	})).Return([]inventory.Reservation{*r}, int64(1), nil)

	got, err := svc.GetByID(context.Background(), tenantID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "RS-000007", got.ReservationNumber)

	page, err := svc.List(context.Background(), tenantID, ReservationListFilter{Status: string(inventory.ReservationStatusActive)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, r.ID, page.Items[0].ID)

	repo.AssertExpectations(t)
}

func TestReservationExpirationService_ExpireDue(t *testing.T) {
	t.Run("expires overdue reservations and sums released quantity", func(t *testing.T) {
		f := newReservationFixture(20)
		soon := time.Now().Add(time.Hour)
		later := time.Now().Add(48 * time.Hour)
		f.create(t, 3, func(r *CreateReservationRequest) { r.ExpirationDate = &soon })
		f.create(t, 4, func(r *CreateReservationRequest) { r.ExpirationDate = &soon })
		f.create(t, 5, func(r *CreateReservationRequest) { r.ExpirationDate = &later })

		asOf := soon.Add(time.Minute)
		f.service.now = func() time.Time { return asOf }
		sweeper := NewReservationExpirationService(memReservations{f.store}, f.service, 0, nil)

		stats, err := sweeper.ExpireDue(context.Background(), asOf)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalExpired)
		assert.Equal(t, 2, stats.SuccessReleased)
		assert.Equal(t, 0, stats.FailedReleases)
		assert.True(t, dec(7).Equal(stats.ReleasedQty))
		assert.True(t, dec(5).Equal(f.store.line(f.tenantID, f.key()).ReservedQuantity))
	})

	t.Run("nothing due", func(t *testing.T) {
		repo := new(MockReservationRepository)
		asOf := time.Now()
		repo.On("FindExpired", mock.Anything, asOf, DefaultExpiryBatchSize).Return([]inventory.Reservation{}, nil)

		sweeper := NewReservationExpirationService(repo, nil, 0, nil)
		stats, err := sweeper.ExpireDue(context.Background(), asOf)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalExpired)
		repo.AssertExpectations(t)
	})

	t.Run("lookup failure", func(t *testing.T) {
		repo := new(MockReservationRepository)
		repo.On("FindExpired", mock.Anything, mock.Anything, 10).Return(nil, errors.New("db down"))

		sweeper := NewReservationExpirationService(repo, nil, 10, nil)
		_, err := sweeper.ExpireDue(context.Background(), time.Now())
		assert.EqualError(t, err, "db down")
	})

	t.Run("counts failures and keeps going", func(t *testing.T) {
		f := newReservationFixture(10)
		exp := time.Now().Add(time.Hour)
		r := f.create(t, 2, func(r *CreateReservationRequest) { r.ExpirationDate = &exp })

		stale := *f.store.reservations[r.ID]
		stale.ID = uuid.New()
		repo := new(MockReservationRepository)
		asOf := exp.Add(time.Minute)
		repo.On("FindExpired", mock.Anything, asOf, DefaultExpiryBatchSize).
			Return([]inventory.Reservation{stale, *f.store.reservations[r.ID]}, nil)

		f.service.now = func() time.Time { return asOf }
		sweeper := NewReservationExpirationService(repo, f.service, 0, nil)
		stats, err := sweeper.ExpireDue(context.Background(), asOf)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.FailedReleases)
		assert.Equal(t, 1, stats.SuccessReleased)
		assert.True(t, dec(2).Equal(stats.ReleasedQty))
	})
}
