package persistence

import (
	"context"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const nextSequenceSQL = `INSERT INTO ledger_sequences (tenant_id, sequence_key, current_value, updated_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (tenant_id, sequence_key)
DO UPDATE SET current_value = ledger_sequences.current_value + 1, updated_at = excluded.updated_at
RETURNING current_value`

// GormSequenceGenerator implements inventory.SequenceGenerator with an upsert
// on ledger_sequences. The counter row stays locked until the surrounding
// transaction ends, so numbers for one key are handed out one at a time.
type GormSequenceGenerator struct {
	db *gorm.DB
}

// NewGormSequenceGenerator creates a new GormSequenceGenerator
func NewGormSequenceGenerator(db *gorm.DB) *GormSequenceGenerator {
	return &GormSequenceGenerator{db: db}
}

// Next returns the next number for the key, starting at 1
func (g *GormSequenceGenerator) Next(ctx context.Context, tenantID uuid.UUID, key string) (int64, error) {
	var value int64
	if err := g.db.WithContext(ctx).
		Raw(nextSequenceSQL, tenantID, key, time.Now()).
		Scan(&value).Error; err != nil {
		return 0, err
	}
	return value, nil
}

// Ensure GormSequenceGenerator implements SequenceGenerator
var _ inventory.SequenceGenerator = (*GormSequenceGenerator)(nil)
