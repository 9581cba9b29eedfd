package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMovementRepository implements inventory.MovementRepository using GORM
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Create appends a movement
func (r *GormMovementRepository) Create(ctx context.Context, m *inventory.Movement) error {
	if m.SequenceNumber <= 0 {
		return shared.Errorf(shared.ErrInvalidSequence, "movement %s has no sequence number", m.DocumentNumber)
	}
	err := r.db.WithContext(ctx).Create(models.MovementModelFromDomain(m)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.Errorf(shared.ErrInvalidSequence, "sequence %d already used for product %s in warehouse %s",
			m.SequenceNumber, m.ProductID, m.WarehouseID)
	}
	return err
}

// FindByID finds a movement by ID
func (r *GormMovementRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.Movement, error) {
	return r.findByID(r.db.WithContext(ctx), tenantID, id)
}

// LockByID finds a movement with SELECT ... FOR UPDATE
func (r *GormMovementRepository) LockByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.Movement, error) {
	return r.findByID(forUpdate(r.db.WithContext(ctx)), tenantID, id)
}

func (r *GormMovementRepository) findByID(db *gorm.DB, tenantID, id uuid.UUID) (*inventory.Movement, error) {
	var model models.MovementModel
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// MarkReversed persists the reversal columns. The update only matches a
// movement that is not reversed yet.
func (r *GormMovementRepository) MarkReversed(ctx context.Context, m *inventory.Movement) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.MovementModel{}).
		Where("tenant_id = ? AND id = ? AND is_reversed = ?", m.TenantID, m.ID, false).
		Updates(map[string]any{
			"is_reversed":          true,
			"reversed_movement_id": m.ReversedMovementID,
			"reversed_by":          m.ReversedBy,
			"reversed_at":          m.ReversedAt,
			"reversal_reason":      m.ReversalReason,
			"version":              gorm.Expr("version + 1"),
			"updated_at":           now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	m.Version++
	m.UpdatedAt = now
	return nil
}

// List returns movements ordered by sequence number, newest first
func (r *GormMovementRepository) List(ctx context.Context, tenantID uuid.UUID, filter inventory.MovementFilter) ([]inventory.Movement, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.MovementModel{}).Where("tenant_id = ?", tenantID)
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.LocationID != nil {
		query = query.Where("(from_location_id = ? OR to_location_id = ?)", *filter.LocationID, *filter.LocationID)
	}
	if filter.MovementType != nil {
		query = query.Where("movement_type = ?", *filter.MovementType)
	}
	if filter.From != nil {
		query = query.Where("movement_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("movement_date <= ?", *filter.To)
	}

	page := shared.Filter{Page: filter.Page, PageSize: filter.PageSize}.Normalize()
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.MovementModel
	if err := query.
		Order("sequence_number DESC").
		Order("movement_date DESC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	movements := make([]inventory.Movement, len(rows))
	for i := range rows {
		movements[i] = *rows[i].ToDomain()
	}
	return movements, total, nil
}

// Ensure GormMovementRepository implements MovementRepository
var _ inventory.MovementRepository = (*GormMovementRepository)(nil)
