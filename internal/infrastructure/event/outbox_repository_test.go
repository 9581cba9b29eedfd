package event

import (
	"context"
	"testing"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.OutboxEntryModel{}))
	return db
}

// outboxEntry builds a pending entry in partition created at base+offset
func outboxEntry(tenantID uuid.UUID, partition string, createdAt time.Time) *shared.OutboxEntry {
	entry := shared.NewOutboxEntry(tenantID, newTestEvent("StockIncreased", tenantID), []byte(`{"data":"payload"}`))
	entry.PartitionKey = partition
	entry.CreatedAt = createdAt
	entry.UpdatedAt = createdAt
	return entry
}

func TestGormOutboxRepository_SaveAndFind(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()

	entry := outboxEntry(uuid.New(), "p1", time.Now())
	require.NoError(t, repo.Save(ctx, entry))

	found, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.EventID, found.EventID)
	assert.Equal(t, "p1", found.PartitionKey)
	assert.Equal(t, shared.OutboxStatusPending, found.Status)
	assert.JSONEq(t, `{"data":"payload"}`, string(found.Payload))

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, repo.Save(ctx))
}

func TestGormOutboxRepository_ClaimBatch(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	base := time.Now().Add(-time.Hour)

	t.Run("claims pending entries oldest first", func(t *testing.T) {
		repo := NewGormOutboxRepository(setupOutboxDB(t))
		second := outboxEntry(tenantID, "p1", base.Add(2*time.Second))
		first := outboxEntry(tenantID, "p2", base.Add(time.Second))
		require.NoError(t, repo.Save(ctx, second, first))

		claimed, err := repo.ClaimBatch(ctx, time.Now(), 10)
		require.NoError(t, err)
		require.Len(t, claimed, 2)
		assert.Equal(t, first.ID, claimed[0].ID)
		assert.Equal(t, second.ID, claimed[1].ID)

		stored, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, shared.OutboxStatusProcessing, stored.Status)

		again, err := repo.ClaimBatch(ctx, time.Now(), 10)
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("respects the limit", func(t *testing.T) {
		repo := NewGormOutboxRepository(setupOutboxDB(t))
		for i := range 3 {
			require.NoError(t, repo.Save(ctx, outboxEntry(tenantID, uuid.NewString(), base.Add(time.Duration(i)*time.Second))))
		}

		claimed, err := repo.ClaimBatch(ctx, time.Now(), 2)
		require.NoError(t, err)
		assert.Len(t, claimed, 2)
	})

	t.Run("failed entry blocks later entries of its partition", func(t *testing.T) {
		repo := NewGormOutboxRepository(setupOutboxDB(t))
		failed := outboxEntry(tenantID, "p1", base.Add(time.Second))
		failed.MarkFailed("consumer unavailable")
		later := outboxEntry(tenantID, "p1", base.Add(2*time.Second))
		other := outboxEntry(tenantID, "p2", base.Add(3*time.Second))
		require.NoError(t, repo.Save(ctx, failed, later, other))

		claimed, err := repo.ClaimBatch(ctx, time.Now(), 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, other.ID, claimed[0].ID)
	})

	t.Run("failed entry is claimed once its retry is due", func(t *testing.T) {
		repo := NewGormOutboxRepository(setupOutboxDB(t))
		failed := outboxEntry(tenantID, "p1", base)
		failed.MarkFailed("consumer unavailable")
		require.NoError(t, repo.Save(ctx, failed))

		claimed, err := repo.ClaimBatch(ctx, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, failed.ID, claimed[0].ID)
		assert.Equal(t, 1, claimed[0].RetryCount)
	})
}

func TestGormOutboxRepository_Maintenance(t *testing.T) {
	ctx := context.Background()
	repo := NewGormOutboxRepository(setupOutboxDB(t))
	tenantID := uuid.New()
	base := time.Now().Add(-48 * time.Hour)

	oldSent := outboxEntry(tenantID, "p1", base)
	oldSent.MarkSent()
	oldProcessed := base
	oldSent.ProcessedAt = &oldProcessed

	recentSent := outboxEntry(tenantID, "p2", base)
	recentSent.MarkSent()

	dead := outboxEntry(tenantID, "p3", base)
	dead.MaxRetries = 1
	dead.MarkFailed("poison message")
	require.True(t, dead.IsDead())

	pending := outboxEntry(tenantID, "p4", base)
	require.NoError(t, repo.Save(ctx, oldSent, recentSent, dead, pending))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[shared.OutboxStatusSent])
	assert.Equal(t, int64(1), counts[shared.OutboxStatusDead])
	assert.Equal(t, int64(1), counts[shared.OutboxStatusPending])

	deadEntries, total, err := repo.FindDead(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, deadEntries, 1)
	assert.Equal(t, "poison message", deadEntries[0].LastError)

	deleted, err := repo.DeleteSentBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	require.NoError(t, dead.ResetForRetry())
	require.NoError(t, repo.Update(ctx, dead))
	reloaded, err := repo.FindByID(ctx, dead.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusPending, reloaded.Status)
	assert.Zero(t, reloaded.RetryCount)
}
