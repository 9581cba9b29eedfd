package persistence

import (
	"context"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAdjustmentRepository implements inventory.AdjustmentRepository using GORM
type GormAdjustmentRepository struct {
	db *gorm.DB
}

// NewGormAdjustmentRepository creates a new GormAdjustmentRepository
func NewGormAdjustmentRepository(db *gorm.DB) *GormAdjustmentRepository {
	return &GormAdjustmentRepository{db: db}
}

// FindByID finds an adjustment with its items
func (r *GormAdjustmentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.InventoryAdjustment, error) {
	return r.findByID(r.db.WithContext(ctx), tenantID, id)
}

// LockByID finds an adjustment with its items, locking the header row
func (r *GormAdjustmentRepository) LockByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.InventoryAdjustment, error) {
	return r.findByID(forUpdate(r.db.WithContext(ctx)), tenantID, id)
}

func (r *GormAdjustmentRepository) findByID(db *gorm.DB, tenantID, id uuid.UUID) (*inventory.InventoryAdjustment, error) {
	var model models.InventoryAdjustmentModel
	if err := db.Preload("Items", orderItems).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// List returns adjustments matching the filter and the total match count
func (r *GormAdjustmentRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]inventory.InventoryAdjustment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InventoryAdjustmentModel{}).Where("tenant_id = ?", tenantID)
	for key, value := range filter.Filters {
		switch key {
		case "warehouse_id":
			query = query.Where("warehouse_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "stock_count_id":
			query = query.Where("stock_count_id = ?", value)
		}
	}

	var rows []models.InventoryAdjustmentModel
	total, err := findPage(query, filter, adjustmentSort, &rows, preloadItems)
	if err != nil {
		return nil, 0, err
	}
	out := make([]inventory.InventoryAdjustment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Create inserts an adjustment and its items
func (r *GormAdjustmentRepository) Create(ctx context.Context, a *inventory.InventoryAdjustment) error {
	model := models.InventoryAdjustmentModelFromDomain(a)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(model).Error; err != nil {
		return err
	}
	return insertItems(db, model.Items)
}

// Save updates the header with a version check and replaces the items
func (r *GormAdjustmentRepository) Save(ctx context.Context, a *inventory.InventoryAdjustment) error {
	model := models.InventoryAdjustmentModelFromDomain(a)
	model.Version = a.Version + 1
	model.UpdatedAt = time.Now()
	if err := updateVersioned(ctx, r.db, model, a.TenantID, a.Version); err != nil {
		return err
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("adjustment_id = ?", a.ID).Delete(&models.AdjustmentItemModel{}).Error; err != nil {
		return err
	}
	if err := insertItems(db, model.Items); err != nil {
		return err
	}
	a.Version = model.Version
	a.UpdatedAt = model.UpdatedAt
	return nil
}

// Ensure GormAdjustmentRepository implements AdjustmentRepository
var _ inventory.AdjustmentRepository = (*GormAdjustmentRepository)(nil)
