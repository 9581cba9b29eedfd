package event

import (
	"context"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxRecorder implements shared.EventRecorder by writing events to the
// outbox table of the transaction it was created for. The entries commit or
// roll back together with the stock change that raised them.
type OutboxRecorder struct {
	serializer *EventSerializer
	repo       *GormOutboxRepository
}

// NewOutboxRecorder creates a recorder bound to tx
func NewOutboxRecorder(serializer *EventSerializer, tx *gorm.DB) *OutboxRecorder {
	return &OutboxRecorder{
		serializer: serializer,
		repo:       NewGormOutboxRepository(tx),
	}
}

// Record serializes the events and stores them as pending outbox entries
func (r *OutboxRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := r.serializer.Serialize(event)
		if err != nil {
			return err
		}
		entries = append(entries, shared.NewOutboxEntry(event.TenantID(), event, payload))
	}
	return r.repo.Save(ctx, entries...)
}

// Ensure OutboxRecorder implements EventRecorder
var _ shared.EventRecorder = (*OutboxRecorder)(nil)
