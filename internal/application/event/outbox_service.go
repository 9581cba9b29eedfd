package event

import (
	"context"
	"errors"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultOutboxPageSize = 20
	maxOutboxPageSize     = 100
)

// OutboxService exposes the ledger outbox for operators: dead letter
// inspection, manual retry and delivery statistics
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

// NewOutboxService creates a new outbox service
func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	return &OutboxService{
		repo:   repo,
		logger: logger,
	}
}

// OutboxEntryDTO is an outbox entry as shown to operators. The payload is
// left out; it can be large and is already covered by the event type.
type OutboxEntryDTO struct {
	ID            uuid.UUID         `json:"id"`
	TenantID      uuid.UUID         `json:"tenant_id"`
	EventID       uuid.UUID         `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   uuid.UUID         `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	PartitionKey  string            `json:"partition_key,omitempty"`
	Delivery      OutboxDeliveryDTO `json:"delivery"`
	CreatedAt     time.Time         `json:"created_at"`
}

// OutboxDeliveryDTO is the delivery state of one outbox entry
type OutboxDeliveryDTO struct {
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	LastError     string     `json:"last_error,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OutboxFilter pages through outbox entries
type OutboxFilter struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// OutboxStatsDTO counts outbox entries per delivery status. Backlog is
// everything not yet delivered or dead.
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Backlog    int64 `json:"backlog"`
	Total      int64 `json:"total"`
}

// GetDeadLetterEntries lists entries that exhausted their retries
func (s *OutboxService) GetDeadLetterEntries(ctx context.Context, filter OutboxFilter) (*shared.Paginated[OutboxEntryDTO], error) {
	page := max(filter.Page, 1)
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = defaultOutboxPageSize
	}
	pageSize = min(pageSize, maxOutboxPageSize)

	entries, total, err := s.repo.FindDead(ctx, page, pageSize)
	if err != nil {
		s.logger.Error("Failed to find dead letter entries", zap.Error(err))
		return nil, err
	}

	items := make([]OutboxEntryDTO, len(entries))
	for i, entry := range entries {
		items[i] = toOutboxEntryDTO(entry)
	}

	result := shared.NewPaginated(items, total, page, pageSize)
	return &result, nil
}

// GetEntry retrieves a single outbox entry by ID
func (s *OutboxService) GetEntry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryDeadEntry puts a dead entry back in the delivery queue
func (s *OutboxService) RetryDeadEntry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := entry.ResetForRetry(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, entry); err != nil {
		s.logger.Error("Failed to update outbox entry", zap.Error(err), zap.String("id", id.String()))
		return nil, err
	}

	s.logger.Info("Dead letter entry reset for retry",
		zap.String("id", id.String()),
		zap.String("event_type", entry.EventType),
		zap.String("partition_key", entry.PartitionKey),
	)

	dto := toOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryAllDeadEntries resets every dead entry. It returns how many were
// requeued; entries that fail to update are logged and skipped.
func (s *OutboxService) RetryAllDeadEntries(ctx context.Context) (int64, error) {
	var count int64

	// Requeued entries leave the dead set, so the first page is always the
	// next batch. Stop when a page yields no progress.
	for {
		entries, _, err := s.repo.FindDead(ctx, 1, maxOutboxPageSize)
		if err != nil {
			s.logger.Error("Failed to find dead letter entries", zap.Error(err))
			return count, err
		}
		if len(entries) == 0 {
			break
		}

		var progressed int64
		for _, entry := range entries {
			if err := entry.ResetForRetry(); err != nil {
				continue
			}
			if err := s.repo.Update(ctx, entry); err != nil {
				s.logger.Error("Failed to update outbox entry", zap.Error(err), zap.String("id", entry.ID.String()))
				continue
			}
			progressed++
		}
		count += progressed

		if progressed == 0 || len(entries) < maxOutboxPageSize {
			break
		}
	}

	s.logger.Info("Retried dead letter entries", zap.Int64("count", count))
	return count, nil
}

// GetStats returns outbox statistics
func (s *OutboxService) GetStats(ctx context.Context) (*OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("Failed to get outbox stats", zap.Error(err))
		return nil, err
	}

	stats := &OutboxStatsDTO{}
	for status, n := range counts {
		switch status {
		case shared.OutboxStatusPending:
			stats.Pending = n
		case shared.OutboxStatusProcessing:
			stats.Processing = n
		case shared.OutboxStatusSent:
			stats.Sent = n
		case shared.OutboxStatusFailed:
			stats.Failed = n
		case shared.OutboxStatusDead:
			stats.Dead = n
		}
		stats.Total += n
	}
	stats.Backlog = stats.Pending + stats.Processing + stats.Failed
	return stats, nil
}

func (s *OutboxService) find(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && entry == nil) {
		return nil, shared.Errorf(shared.ErrNotFound, "outbox entry %s not found", id)
	}
	if err != nil {
		s.logger.Error("Failed to find outbox entry", zap.Error(err), zap.String("id", id.String()))
		return nil, err
	}
	return entry, nil
}

func toOutboxEntryDTO(entry *shared.OutboxEntry) OutboxEntryDTO {
	dto := OutboxEntryDTO{
		ID:            entry.ID,
		TenantID:      entry.TenantID,
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID,
		AggregateType: entry.AggregateType,
		PartitionKey:  entry.PartitionKey,
		CreatedAt:     entry.CreatedAt,
	}
	dto.Delivery = OutboxDeliveryDTO{
		Status:        string(entry.Status),
		Attempts:      entry.RetryCount,
		MaxAttempts:   entry.MaxRetries,
		LastError:     entry.LastError,
		NextAttemptAt: entry.NextRetryAt,
		DeliveredAt:   entry.ProcessedAt,
		UpdatedAt:     entry.UpdatedAt,
	}
	return dto
}
