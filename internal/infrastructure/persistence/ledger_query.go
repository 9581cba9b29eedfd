package persistence

import (
	"context"
	"errors"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate adds a row lock held until the surrounding transaction ends.
// SQLite ignores the clause; its writer lock already serializes transactions.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// notFound maps gorm.ErrRecordNotFound onto the domain error
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// PostgreSQL error codes raised when two postings contend for the same rows
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// translateLockError reports lock contention as a concurrency conflict so
// callers can retry the whole posting
func translateLockError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return shared.Errorf(shared.ErrConcurrencyConflict, "stock row contention: %s", pgErr.Message)
		}
	}
	return err
}

// paginate applies whitelisted ordering and paging to a list query
func paginate(query *gorm.DB, filter shared.Filter, sort sortColumns) *gorm.DB {
	filter = filter.Normalize()
	return query.
		Clauses(sort.orderBy(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize)
}

// findPage counts the rows matched by query, then loads the requested page
// into dest. scopes apply to the page query only (preloads).
func findPage(query *gorm.DB, filter shared.Filter, sort sortColumns, dest any, scopes ...func(*gorm.DB) *gorm.DB) (int64, error) {
	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	if err := paginate(query, filter, sort).Scopes(scopes...).Find(dest).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// updateVersioned writes every column of model when the stored version still
// equals expected. model must already carry the incremented version.
// Associations are left alone; callers replace child rows themselves.
func updateVersioned(ctx context.Context, db *gorm.DB, model any, tenantID uuid.UUID, expected int) error {
	result := db.WithContext(ctx).
		Model(model).
		Where("tenant_id = ? AND version = ?", tenantID, expected).
		Select("*").
		Omit(clause.Associations, "created_at", "created_by").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// orderItems preloads child lines in their original order
func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}
