package inventory

import (
	"context"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// StockLineRepository persists ledger rows. Every method is tenant scoped.
type StockLineRepository interface {
	// FindByKey finds the row for the key
	FindByKey(ctx context.Context, tenantID uuid.UUID, key StockKey) (*StockLine, error)

	// LockByKey finds the row for the key under a row lock held until the
	// surrounding transaction ends. Returns shared.ErrNotFound when absent.
	LockByKey(ctx context.Context, tenantID uuid.UUID, key StockKey) (*StockLine, error)

	// GetOrCreateLocked returns the locked row for the key, inserting an empty
	// row first when it does not exist yet
	GetOrCreateLocked(ctx context.Context, tenantID uuid.UUID, key StockKey) (*StockLine, error)

	// FindByID finds a row by ID
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*StockLine, error)

	// FindByProductAndWarehouse returns every row of a product in a warehouse
	// (all locations and variants)
	FindByProductAndWarehouse(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) ([]StockLine, error)

	// List returns rows matching the filter. Supported filter keys:
	// product_id, warehouse_id, location_id, variant_id, has_stock, low_available (decimal threshold)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]StockLine, int64, error)

	// Save updates a row with an optimistic version check
	Save(ctx context.Context, line *StockLine) error
}

// MovementFilter narrows movement history queries
type MovementFilter struct {
	ProductID    *uuid.UUID
	WarehouseID  *uuid.UUID
	LocationID   *uuid.UUID
	MovementType *MovementType
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// MovementRepository stores the append-only movement history
type MovementRepository interface {
	// Create appends a movement. The movement must carry a sequence number.
	Create(ctx context.Context, m *Movement) error

	// FindByID finds a movement by ID
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Movement, error)

	// LockByID finds a movement under a row lock
	LockByID(ctx context.Context, tenantID, id uuid.UUID) (*Movement, error)

	// MarkReversed persists the reversal fields of a movement; nothing else
	// on a movement is ever updated
	MarkReversed(ctx context.Context, m *Movement) error

	// List returns movements ordered by sequence number, newest first
	List(ctx context.Context, tenantID uuid.UUID, filter MovementFilter) ([]Movement, int64, error)
}

// SequenceGenerator hands out strictly increasing numbers per key. Gaps are
// allowed (rolled back transactions), duplicates are not.
type SequenceGenerator interface {
	Next(ctx context.Context, tenantID uuid.UUID, key string) (int64, error)
}

// ReservationRepository persists reservations
type ReservationRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Reservation, error)
	// LockByID finds a reservation under a row lock
	LockByID(ctx context.Context, tenantID, id uuid.UUID) (*Reservation, error)
	// FindExpired returns open reservations whose expiration date is before
	// asOf, across tenants, oldest first
	FindExpired(ctx context.Context, asOf time.Time, limit int) ([]Reservation, error)
	// List supports filter keys: product_id, warehouse_id, status
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Reservation, int64, error)
	Create(ctx context.Context, r *Reservation) error
	Save(ctx context.Context, r *Reservation) error
}

// StockCountRepository persists stock counts with their items
type StockCountRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*StockCount, error)
	LockByID(ctx context.Context, tenantID, id uuid.UUID) (*StockCount, error)
	// List supports filter keys: warehouse_id, status
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]StockCount, int64, error)
	Create(ctx context.Context, sc *StockCount) error
	// Save updates the header with a version check and replaces the items
	Save(ctx context.Context, sc *StockCount) error
}

// CycleCountRepository persists cycle counts with their items
type CycleCountRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*CycleCount, error)
	LockByID(ctx context.Context, tenantID, id uuid.UUID) (*CycleCount, error)
	// FindDue returns planned cycle counts scheduled at or before asOf
	FindDue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]CycleCount, error)
	// List supports filter keys: warehouse_id, status, abc_class
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]CycleCount, int64, error)
	Create(ctx context.Context, cc *CycleCount) error
	Save(ctx context.Context, cc *CycleCount) error
}

// AdjustmentRepository persists inventory adjustments with their items
type AdjustmentRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*InventoryAdjustment, error)
	LockByID(ctx context.Context, tenantID, id uuid.UUID) (*InventoryAdjustment, error)
	// List supports filter keys: warehouse_id, status, stock_count_id
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]InventoryAdjustment, int64, error)
	Create(ctx context.Context, a *InventoryAdjustment) error
	Save(ctx context.Context, a *InventoryAdjustment) error
}
