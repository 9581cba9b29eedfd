package persistence

import (
	"context"
	"fmt"
	"time"

	appinv "github.com/erp/inventory-ledger/internal/application/inventory"
	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/event"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Ledger rows, movements, documents and outbox entries written through the
// repositories of one Execute call commit or roll back together.
type GormTransactionScope struct {
	db          *gorm.DB
	serializer  *event.EventSerializer
	lockTimeout time.Duration
}

// NewGormTransactionScope creates a new GormTransactionScope. The serializer
// encodes the events recorded into the outbox.
func NewGormTransactionScope(db *gorm.DB, serializer *event.EventSerializer) *GormTransactionScope {
	return &GormTransactionScope{db: db, serializer: serializer}
}

// WithLockTimeout bounds how long a transaction waits for a row lock.
// Only applied on PostgreSQL.
func (s *GormTransactionScope) WithLockTimeout(d time.Duration) *GormTransactionScope {
	s.lockTimeout = d
	return s
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back. Lock contention
// surfaces as shared.ErrConcurrencyConflict.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())).Error; err != nil {
				return err
			}
		}
		return fn(&gormTransactionalRepositories{tx: tx, serializer: s.serializer})
	})
	return translateLockError(err)
}

// gormTransactionalRepositories hands out repositories bound to one transaction
type gormTransactionalRepositories struct {
	tx         *gorm.DB
	serializer *event.EventSerializer
}

func (r *gormTransactionalRepositories) StockLines() inventory.StockLineRepository {
	return NewGormStockLineRepository(r.tx)
}

func (r *gormTransactionalRepositories) Movements() inventory.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

func (r *gormTransactionalRepositories) Sequences() inventory.SequenceGenerator {
	return NewGormSequenceGenerator(r.tx)
}

func (r *gormTransactionalRepositories) Reservations() inventory.ReservationRepository {
	return NewGormReservationRepository(r.tx)
}

func (r *gormTransactionalRepositories) StockCounts() inventory.StockCountRepository {
	return NewGormStockCountRepository(r.tx)
}

func (r *gormTransactionalRepositories) CycleCounts() inventory.CycleCountRepository {
	return NewGormCycleCountRepository(r.tx)
}

func (r *gormTransactionalRepositories) Adjustments() inventory.AdjustmentRepository {
	return NewGormAdjustmentRepository(r.tx)
}

// Events returns a recorder writing to the outbox of this transaction
func (r *gormTransactionalRepositories) Events() shared.EventRecorder {
	return event.NewOutboxRecorder(r.serializer, r.tx)
}

var (
	_ appinv.TransactionScope          = (*GormTransactionScope)(nil)
	_ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
