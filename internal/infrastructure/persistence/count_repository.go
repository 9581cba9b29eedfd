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

// GormStockCountRepository implements inventory.StockCountRepository using GORM
type GormStockCountRepository struct {
	db *gorm.DB
}

// NewGormStockCountRepository creates a new GormStockCountRepository
func NewGormStockCountRepository(db *gorm.DB) *GormStockCountRepository {
	return &GormStockCountRepository{db: db}
}

// FindByID finds a stock count with its items
func (r *GormStockCountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.StockCount, error) {
	return r.findByID(r.db.WithContext(ctx), tenantID, id)
}

// LockByID finds a stock count with its items, locking the header row
func (r *GormStockCountRepository) LockByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.StockCount, error) {
	return r.findByID(forUpdate(r.db.WithContext(ctx)), tenantID, id)
}

func (r *GormStockCountRepository) findByID(db *gorm.DB, tenantID, id uuid.UUID) (*inventory.StockCount, error) {
	var model models.StockCountModel
	if err := db.Preload("Items", orderItems).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// List returns stock counts matching the filter and the total match count
func (r *GormStockCountRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]inventory.StockCount, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StockCountModel{}).Where("tenant_id = ?", tenantID)
	for key, value := range filter.Filters {
		switch key {
		case "warehouse_id":
			query = query.Where("warehouse_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		}
	}

	var rows []models.StockCountModel
	total, err := findPage(query, filter, stockCountSort, &rows, preloadItems)
	if err != nil {
		return nil, 0, err
	}
	counts := make([]inventory.StockCount, len(rows))
	for i := range rows {
		counts[i] = *rows[i].ToDomain()
	}
	return counts, total, nil
}

// Create inserts a stock count and its items
func (r *GormStockCountRepository) Create(ctx context.Context, sc *inventory.StockCount) error {
	model := models.StockCountModelFromDomain(sc)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(model).Error; err != nil {
		return err
	}
	return insertItems(db, model.Items)
}

// Save updates the header with a version check and replaces the items
func (r *GormStockCountRepository) Save(ctx context.Context, sc *inventory.StockCount) error {
	model := models.StockCountModelFromDomain(sc)
	model.Version = sc.Version + 1
	model.UpdatedAt = time.Now()
	if err := updateVersioned(ctx, r.db, model, sc.TenantID, sc.Version); err != nil {
		return err
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("stock_count_id = ?", sc.ID).Delete(&models.StockCountItemModel{}).Error; err != nil {
		return err
	}
	if err := insertItems(db, model.Items); err != nil {
		return err
	}
	sc.Version = model.Version
	sc.UpdatedAt = model.UpdatedAt
	return nil
}

// GormCycleCountRepository implements inventory.CycleCountRepository using GORM
type GormCycleCountRepository struct {
	db *gorm.DB
}

// NewGormCycleCountRepository creates a new GormCycleCountRepository
func NewGormCycleCountRepository(db *gorm.DB) *GormCycleCountRepository {
	return &GormCycleCountRepository{db: db}
}

// FindByID finds a cycle count with its items
func (r *GormCycleCountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.CycleCount, error) {
	return r.findByID(r.db.WithContext(ctx), tenantID, id)
}

// LockByID finds a cycle count with its items, locking the header row
func (r *GormCycleCountRepository) LockByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.CycleCount, error) {
	return r.findByID(forUpdate(r.db.WithContext(ctx)), tenantID, id)
}

func (r *GormCycleCountRepository) findByID(db *gorm.DB, tenantID, id uuid.UUID) (*inventory.CycleCount, error) {
	var model models.CycleCountModel
	if err := db.Preload("Items", orderItems).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindDue returns planned cycle counts scheduled at or before asOf
func (r *GormCycleCountRepository) FindDue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]inventory.CycleCount, error) {
	var rows []models.CycleCountModel
	if err := r.db.WithContext(ctx).
		Preload("Items", orderItems).
		Where("tenant_id = ? AND status = ? AND scheduled_date <= ?", tenantID, inventory.CountStatusPlanned, asOf).
		Order("scheduled_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return cycleCountsToDomain(rows), nil
}

// List returns cycle counts matching the filter and the total match count
func (r *GormCycleCountRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]inventory.CycleCount, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CycleCountModel{}).Where("tenant_id = ?", tenantID)
	for key, value := range filter.Filters {
		switch key {
		case "warehouse_id":
			query = query.Where("warehouse_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "abc_class":
			query = query.Where("abc_class = ?", value)
		}
	}

	var rows []models.CycleCountModel
	total, err := findPage(query, filter, cycleCountSort, &rows, preloadItems)
	if err != nil {
		return nil, 0, err
	}
	return cycleCountsToDomain(rows), total, nil
}

// Create inserts a cycle count and its items
func (r *GormCycleCountRepository) Create(ctx context.Context, cc *inventory.CycleCount) error {
	model := models.CycleCountModelFromDomain(cc)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(model).Error; err != nil {
		return err
	}
	return insertItems(db, model.Items)
}

// Save updates the header with a version check and replaces the items
func (r *GormCycleCountRepository) Save(ctx context.Context, cc *inventory.CycleCount) error {
	model := models.CycleCountModelFromDomain(cc)
	model.Version = cc.Version + 1
	model.UpdatedAt = time.Now()
	if err := updateVersioned(ctx, r.db, model, cc.TenantID, cc.Version); err != nil {
		return err
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("cycle_count_id = ?", cc.ID).Delete(&models.CycleCountItemModel{}).Error; err != nil {
		return err
	}
	if err := insertItems(db, model.Items); err != nil {
		return err
	}
	cc.Version = model.Version
	cc.UpdatedAt = model.UpdatedAt
	return nil
}

func cycleCountsToDomain(rows []models.CycleCountModel) []inventory.CycleCount {
	out := make([]inventory.CycleCount, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", orderItems)
}

// insertItems bulk inserts child rows; an empty slice is a no-op
func insertItems[T any](db *gorm.DB, items []T) error {
	if len(items) == 0 {
		return nil
	}
	return db.Create(&items).Error
}

var (
	_ inventory.StockCountRepository = (*GormStockCountRepository)(nil)
	_ inventory.CycleCountRepository = (*GormCycleCountRepository)(nil)
)
