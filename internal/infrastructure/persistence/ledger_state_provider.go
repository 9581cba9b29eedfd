package persistence

import (
	"context"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/infrastructure/persistence/models"
	"github.com/erp/inventory-ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStateProvider reads aggregated ledger state for the metrics gauges
type LedgerStateProvider struct {
	db *Database
}

// NewLedgerStateProvider creates a new LedgerStateProvider
func NewLedgerStateProvider(db *Database) *LedgerStateProvider {
	return &LedgerStateProvider{db: db}
}

// GetActiveTenantIDs returns tenants that own at least one stock line
func (p *LedgerStateProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.DB.WithContext(ctx).
		Model(&models.StockLineModel{}).
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error
	return ids, err
}

// GetReservedQuantityByWarehouse sums reserved quantity per warehouse
func (p *LedgerStateProvider) GetReservedQuantityByWarehouse(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	type row struct {
		WarehouseID uuid.UUID
		Reserved    decimal.Decimal
	}
	var rows []row
	if err := p.db.WithTenant(tenantID).WithContext(ctx).
		Model(&models.StockLineModel{}).
		Select("warehouse_id, COALESCE(SUM(reserved_quantity), 0) AS reserved").
		Group("warehouse_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, r := range rows {
		result[r.WarehouseID] = r.Reserved
	}
	return result, nil
}

// GetOpenReservationCount counts active and partially fulfilled reservations
func (p *LedgerStateProvider) GetOpenReservationCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithTenant(tenantID).WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("status IN ?", []inventory.ReservationStatus{
			inventory.ReservationStatusActive,
			inventory.ReservationStatusPartiallyFulfilled,
		}).
		Count(&count).Error
	return count, err
}

// GetLowAvailableCount counts stock lines holding stock whose available
// quantity is below threshold
func (p *LedgerStateProvider) GetLowAvailableCount(ctx context.Context, tenantID uuid.UUID, threshold decimal.Decimal) (int64, error) {
	var count int64
	err := p.db.WithTenant(tenantID).WithContext(ctx).
		Model(&models.StockLineModel{}).
		Where("quantity > 0 AND (quantity - reserved_quantity) < ?", threshold).
		Count(&count).Error
	return count, err
}

var _ telemetry.LedgerStateProvider = (*LedgerStateProvider)(nil)
