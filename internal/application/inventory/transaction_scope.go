package inventory

import (
	"context"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
)

// TransactionScope provides transactional access to ledger repositories.
// Every repository obtained inside fn shares one database transaction, which
// is committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories within a transaction.
//
// Aggregate boundary notes:
//   - StockLines is the only writer of quantities. Rows are locked with
//     LockByKey/GetOrCreateLocked before any mutation.
//   - Movements is append-only; MarkReversed is the single update.
//   - Sequences must run in the same transaction as the movement insert so a
//     rolled back posting only leaves a gap.
//   - Events stores the events returned by aggregate mutators in the outbox.
type TransactionalRepositories interface {
	StockLines() inventory.StockLineRepository
	Movements() inventory.MovementRepository
	Sequences() inventory.SequenceGenerator
	Reservations() inventory.ReservationRepository
	StockCounts() inventory.StockCountRepository
	CycleCounts() inventory.CycleCountRepository
	Adjustments() inventory.AdjustmentRepository
	Events() shared.EventRecorder
}

// Repositories bundles repository implementations for NoOpTransactionScope
type Repositories struct {
	StockLines   inventory.StockLineRepository
	Movements    inventory.MovementRepository
	Sequences    inventory.SequenceGenerator
	Reservations inventory.ReservationRepository
	StockCounts  inventory.StockCountRepository
	CycleCounts  inventory.CycleCountRepository
	Adjustments  inventory.AdjustmentRepository
	Events       shared.EventRecorder
}

// NoOpTransactionScope runs fn against fixed repositories without a real
// transaction. Used by tests.
type NoOpTransactionScope struct {
	repos Repositories
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(repos Repositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: repos}
}

// Execute runs fn without a transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) StockLines() inventory.StockLineRepository     { return s.repos.StockLines }
func (s *NoOpTransactionScope) Movements() inventory.MovementRepository       { return s.repos.Movements }
func (s *NoOpTransactionScope) Sequences() inventory.SequenceGenerator        { return s.repos.Sequences }
func (s *NoOpTransactionScope) Reservations() inventory.ReservationRepository { return s.repos.Reservations }
func (s *NoOpTransactionScope) StockCounts() inventory.StockCountRepository   { return s.repos.StockCounts }
func (s *NoOpTransactionScope) CycleCounts() inventory.CycleCountRepository   { return s.repos.CycleCounts }
func (s *NoOpTransactionScope) Adjustments() inventory.AdjustmentRepository   { return s.repos.Adjustments }
func (s *NoOpTransactionScope) Events() shared.EventRecorder                  { return s.repos.Events }

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
