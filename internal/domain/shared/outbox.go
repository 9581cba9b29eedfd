package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
	MaxBackoff         = 5 * time.Minute
)

// Partitioned is implemented by events that must be delivered in order
// relative to other events with the same partition key.
type Partitioned interface {
	PartitionKey() string
}

// OutboxEntry is a domain event persisted in the same transaction as the
// state change that produced it.
type OutboxEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	PartitionKey  string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event for delivery
func NewOutboxEntry(tenantID uuid.UUID, event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now()
	entry := &OutboxEntry{
		ID:            uuid.New(),
		TenantID:      tenantID,
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		PartitionKey:  event.AggregateID().String(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p, ok := event.(Partitioned); ok && p.PartitionKey() != "" {
		entry.PartitionKey = p.PartitionKey()
	}
	return entry
}

// outboxTransitions is the delivery lifecycle of an entry. SENT is final;
// DEAD only leaves through an operator retry.
var outboxTransitions = TransitionTable[OutboxStatus]{
	OutboxStatusPending:    {OutboxStatusProcessing},
	OutboxStatusFailed:     {OutboxStatusProcessing},
	OutboxStatusProcessing: {OutboxStatusSent, OutboxStatusFailed, OutboxStatusDead},
	OutboxStatusDead:       {OutboxStatusPending},
}

func (e *OutboxEntry) moveTo(to OutboxStatus, now time.Time) error {
	if err := outboxTransitions.Check("outbox entry", e.Status, to); err != nil {
		return err
	}
	e.Status = to
	e.UpdatedAt = now
	return nil
}

// CanRetry reports whether a failed entry has attempts left
func (e *OutboxEntry) CanRetry() bool {
	return e.Status == OutboxStatusFailed && e.RetryCount < e.MaxRetries
}

// IsDead reports whether the entry ran out of attempts
func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// MarkProcessing claims a pending or failed entry for delivery
func (e *OutboxEntry) MarkProcessing() error {
	return e.moveTo(OutboxStatusProcessing, time.Now())
}

// MarkSent records successful delivery
func (e *OutboxEntry) MarkSent() {
	now := time.Now()
	e.Status = OutboxStatusSent
	e.UpdatedAt = now
	e.ProcessedAt = &now
}

// MarkFailed records a failed attempt. The entry is rescheduled with
// exponential backoff, or becomes DEAD once MaxRetries attempts failed.
func (e *OutboxEntry) MarkFailed(errMsg string) {
	now := time.Now()
	e.RetryCount++
	e.LastError = errMsg
	e.UpdatedAt = now

	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return
	}
	e.Status = OutboxStatusFailed
	next := now.Add(RetryBackoff(e.RetryCount))
	e.NextRetryAt = &next
}

// ResetForRetry requeues a dead entry with a fresh attempt budget
func (e *OutboxEntry) ResetForRetry() error {
	if err := e.moveTo(OutboxStatusPending, time.Now()); err != nil {
		return err
	}
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	return nil
}

// RetryBackoff is the delay before attempt n: 1s, 2s, 4s and so on up to
// MaxBackoff
func RetryBackoff(attempt int) time.Duration {
	attempt = max(attempt, 1)
	if attempt > 30 {
		return MaxBackoff
	}
	return min(DefaultBaseBackoff<<(attempt-1), MaxBackoff)
}

// OutboxRepository persists outbox entries
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// ClaimBatch locks up to limit deliverable entries (pending, or failed and
	// due before now), marks them PROCESSING and returns them.
	ClaimBatch(ctx context.Context, now time.Time, limit int) ([]*OutboxEntry, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	FindDead(ctx context.Context, page, pageSize int) ([]*OutboxEntry, int64, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
