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

// GormStockLineRepository implements inventory.StockLineRepository using GORM
type GormStockLineRepository struct {
	db *gorm.DB
}

// NewGormStockLineRepository creates a new GormStockLineRepository
func NewGormStockLineRepository(db *gorm.DB) *GormStockLineRepository {
	return &GormStockLineRepository{db: db}
}

// FindByKey finds the ledger row for a key
func (r *GormStockLineRepository) FindByKey(ctx context.Context, tenantID uuid.UUID, key inventory.StockKey) (*inventory.StockLine, error) {
	return r.findByKey(r.db.WithContext(ctx), tenantID, key)
}

// LockByKey finds the ledger row for a key with SELECT ... FOR UPDATE
func (r *GormStockLineRepository) LockByKey(ctx context.Context, tenantID uuid.UUID, key inventory.StockKey) (*inventory.StockLine, error) {
	return r.findByKey(forUpdate(r.db.WithContext(ctx)), tenantID, key)
}

func (r *GormStockLineRepository) findByKey(db *gorm.DB, tenantID uuid.UUID, key inventory.StockKey) (*inventory.StockLine, error) {
	var model models.StockLineModel
	if err := db.
		Where("tenant_id = ? AND stock_key = ?", tenantID, key.String()).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// GetOrCreateLocked inserts an empty row for the key unless one exists, then
// locks and returns it. Concurrent callers race on the unique index and the
// loser's insert becomes a no-op.
func (r *GormStockLineRepository) GetOrCreateLocked(ctx context.Context, tenantID uuid.UUID, key inventory.StockKey) (*inventory.StockLine, error) {
	line, err := inventory.NewStockLine(tenantID, key)
	if err != nil {
		return nil, err
	}
	model := models.StockLineModelFromDomain(line)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "stock_key"}},
			DoNothing: true,
		}).
		Create(model).Error; err != nil {
		return nil, err
	}
	return r.LockByKey(ctx, tenantID, key)
}

// FindByID finds a ledger row by ID
func (r *GormStockLineRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.StockLine, error) {
	var model models.StockLineModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByProductAndWarehouse returns every row of a product in a warehouse
func (r *GormStockLineRepository) FindByProductAndWarehouse(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) ([]inventory.StockLine, error) {
	var rows []models.StockLineModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND warehouse_id = ?", tenantID, productID, warehouseID).
		Order("stock_key ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return stockLinesToDomain(rows), nil
}

// List returns ledger rows matching the filter and the total match count
func (r *GormStockLineRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]inventory.StockLine, int64, error) {
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.StockLineModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	var rows []models.StockLineModel
	total, err := findPage(query, filter, stockLineSort, &rows)
	if err != nil {
		return nil, 0, err
	}
	return stockLinesToDomain(rows), total, nil
}

func (r *GormStockLineRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "product_id":
			query = query.Where("product_id = ?", value)
		case "warehouse_id":
			query = query.Where("warehouse_id = ?", value)
		case "location_id":
			query = query.Where("location_id = ?", value)
		case "variant_id":
			query = query.Where("variant_id = ?", value)
		case "has_stock":
			if value == true {
				query = query.Where("quantity > 0")
			} else if value == false {
				query = query.Where("quantity = 0")
			}
		case "low_available":
			query = query.Where("(quantity - reserved_quantity) < ?", value)
		}
	}
	return query
}

// Save writes the row when its version still matches, then advances the
// in-memory version
func (r *GormStockLineRepository) Save(ctx context.Context, line *inventory.StockLine) error {
	model := models.StockLineModelFromDomain(line)
	model.Version = line.Version + 1
	model.UpdatedAt = time.Now()
	if err := updateVersioned(ctx, r.db, model, line.TenantID, line.Version); err != nil {
		return err
	}
	line.Version = model.Version
	line.UpdatedAt = model.UpdatedAt
	return nil
}

func stockLinesToDomain(rows []models.StockLineModel) []inventory.StockLine {
	lines := make([]inventory.StockLine, len(rows))
	for i := range rows {
		lines[i] = *rows[i].ToDomain()
	}
	return lines
}

// Ensure GormStockLineRepository implements StockLineRepository
var _ inventory.StockLineRepository = (*GormStockLineRepository)(nil)
