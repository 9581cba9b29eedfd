package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appinv "github.com/erp/inventory-ledger/internal/application/inventory"
	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/event"
	"github.com/erp/inventory-ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newLedgerService(t *testing.T, db *Database) *appinv.LedgerService {
	t.Helper()
	scope := NewGormTransactionScope(db.DB, event.NewLedgerSerializer())
	return appinv.NewLedgerService(
		scope,
		NewGormStockLineRepository(db.DB),
		NewGormMovementRepository(db.DB),
		zaptest.NewLogger(t),
	)
}

func countRows(t *testing.T, db *Database, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.DB.Model(model).Count(&n).Error)
	return n
}

func TestGormTransactionScope_PostingCommitsTogether(t *testing.T) {
	db := setupLedgerDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	tenantID := uuid.New()
	key := appinv.StockKeyRequest{ProductID: uuid.New(), WarehouseID: uuid.New()}

	first, err := svc.IncreaseStock(ctx, tenantID, appinv.IncreaseStockRequest{
		StockKeyRequest: key,
		Quantity:        decimal.NewFromInt(10),
		UnitCost:        decimal.NewFromInt(3),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Movement.SequenceNumber)
	assert.True(t, first.StockLine.Quantity.Equal(decimal.NewFromInt(10)))

	second, err := svc.DecreaseStock(ctx, tenantID, appinv.DecreaseStockRequest{
		StockKeyRequest: key,
		Quantity:        decimal.NewFromInt(4),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Movement.SequenceNumber)
	assert.True(t, second.StockLine.Quantity.Equal(decimal.NewFromInt(6)))

	assert.Equal(t, int64(1), countRows(t, db, &models.StockLineModel{}))
	assert.Equal(t, int64(2), countRows(t, db, &models.MovementModel{}))

	entries, err := event.NewGormOutboxRepository(db.DB).ClaimBatch(ctx, time.Now(), 50)
	require.NoError(t, err)
	types := make([]string, 0, len(entries))
	for _, e := range entries {
		types = append(types, e.EventType)
		assert.Equal(t, tenantID, e.TenantID)
	}
	assert.Contains(t, types, inventory.EventTypeStockIncreased)
	assert.Contains(t, types, inventory.EventTypeStockDecreased)
	assert.Contains(t, types, inventory.EventTypeMovementCreated)
}

func TestGormTransactionScope_FailedPostingWritesNothing(t *testing.T) {
	db := setupLedgerDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	tenantID := uuid.New()
	key := appinv.StockKeyRequest{ProductID: uuid.New(), WarehouseID: uuid.New()}

	_, err := svc.IncreaseStock(ctx, tenantID, appinv.IncreaseStockRequest{
		StockKeyRequest: key,
		Quantity:        decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	outboxBefore := countRows(t, db, &models.OutboxEntryModel{})

	_, err = svc.DecreaseStock(ctx, tenantID, appinv.DecreaseStockRequest{
		StockKeyRequest: key,
		Quantity:        decimal.NewFromInt(5),
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	assert.Equal(t, int64(1), countRows(t, db, &models.MovementModel{}))
	assert.Equal(t, outboxBefore, countRows(t, db, &models.OutboxEntryModel{}))

	line, err := NewGormStockLineRepository(db.DB).FindByKey(ctx, tenantID, key.Key())
	require.NoError(t, err)
	assert.True(t, line.Quantity.Equal(decimal.NewFromInt(2)))

	next, err := svc.IncreaseStock(ctx, tenantID, appinv.IncreaseStockRequest{
		StockKeyRequest: key,
		Quantity:        decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Movement.SequenceNumber, "a rolled back posting does not consume a sequence number")
}

func TestGormTransactionScope_ExecuteRollsBackOnError(t *testing.T) {
	db := setupLedgerDB(t)
	scope := NewGormTransactionScope(db.DB, event.NewLedgerSerializer())
	ctx := context.Background()
	tenantID := uuid.New()
	boom := errors.New("boom")

	err := scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		if _, err := repos.StockLines().GetOrCreateLocked(ctx, tenantID, newKey()); err != nil {
			return err
		}
		if _, err := repos.Sequences().Next(ctx, tenantID, "document:RS"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, countRows(t, db, &models.StockLineModel{}))
	assert.Zero(t, countRows(t, db, &models.SequenceModel{}))
}

func TestGormTransactionScope_LockTimeoutIgnoredOnSQLite(t *testing.T) {
	db := setupLedgerDB(t)
	scope := NewGormTransactionScope(db.DB, event.NewLedgerSerializer()).WithLockTimeout(2 * time.Second)

	err := scope.Execute(context.Background(), func(repos appinv.TransactionalRepositories) error {
		_, err := repos.Sequences().Next(context.Background(), uuid.New(), "k")
		return err
	})
	assert.NoError(t, err)
}

func TestTranslateLockError(t *testing.T) {
	for _, code := range []string{pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable} {
		err := translateLockError(&pgconn.PgError{Code: code, Message: "could not obtain lock"})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict, code)
	}

	unique := &pgconn.PgError{Code: "23505"}
	assert.Same(t, unique, translateLockError(unique))
	assert.NoError(t, translateLockError(nil))
	assert.ErrorIs(t, translateLockError(shared.ErrNotFound), shared.ErrNotFound)
}

func TestGormTransactionScope_ConcurrentDecreases(t *testing.T) {
	db := setupLedgerDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	tenantID := uuid.New()
	key := appinv.StockKeyRequest{ProductID: uuid.New(), WarehouseID: uuid.New()}

	_, err := svc.IncreaseStock(ctx, tenantID, appinv.IncreaseStockRequest{
		StockKeyRequest: key,
		Quantity:        decimal.NewFromInt(10),
		UnitCost:        decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	const workers = 20
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.DecreaseStock(ctx, tenantID, appinv.DecreaseStockRequest{
				StockKeyRequest: key,
				Quantity:        decimal.NewFromInt(1),
			})
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shared.ErrInsufficientStock):
			short++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, short)

	line, err := svc.GetStockLineByKey(ctx, tenantID, key.Key())
	require.NoError(t, err)
	assert.True(t, line.Quantity.IsZero(), "quantity %s", line.Quantity)

	var seqs []int64
	require.NoError(t, db.DB.Model(&models.MovementModel{}).
		Where("tenant_id = ?", tenantID).
		Order("sequence_number").
		Pluck("sequence_number", &seqs).Error)
	require.Len(t, seqs, 11)
	for i, seq := range seqs {
		assert.Equal(t, int64(i+1), seq)
	}
}
