package persistence

import (
	"testing"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// setupLedgerDB opens an in-memory SQLite database holding every ledger table.
// One connection keeps the in-memory database alive across queries.
func setupLedgerDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(sqlite.Open(":memory:"), DatabaseOptions{})
	require.NoError(t, err)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.DB.AutoMigrate(
		&models.StockLineModel{},
		&models.MovementModel{},
		&models.SequenceModel{},
		&models.ReservationModel{},
		&models.StockCountModel{},
		&models.StockCountItemModel{},
		&models.CycleCountModel{},
		&models.CycleCountItemModel{},
		&models.InventoryAdjustmentModel{},
		&models.AdjustmentItemModel{},
		&models.OutboxEntryModel{},
	))
	require.NoError(t, db.DB.Exec(
		"CREATE UNIQUE INDEX uq_stock_movements_sequence ON stock_movements (tenant_id, product_id, warehouse_id, sequence_number)",
	).Error)
	return db
}

func newKey() inventory.StockKey {
	return inventory.StockKey{ProductID: uuid.New(), WarehouseID: uuid.New()}
}
