package inventory

import (
	"context"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CycleCountCompletionResponse is returned when a cycle count completes;
// Next is the planned follow-up count
type CycleCountCompletionResponse struct {
	CycleCount CycleCountResponse  `json:"cycle_count"`
	Next       *CycleCountResponse `json:"next,omitempty"`
}

// CycleCountAdjustmentResponse is returned when cycle count variances are posted
type CycleCountAdjustmentResponse struct {
	CycleCount CycleCountResponse  `json:"cycle_count"`
	Adjustment *AdjustmentResponse `json:"adjustment,omitempty"`
}

// UpdateCycleCountScheduleRequest changes the recurrence or tolerance of a cycle count
type UpdateCycleCountScheduleRequest struct {
	Frequency string            `json:"frequency" binding:"omitempty,oneof=DAILY WEEKLY MONTHLY QUARTERLY ANNUALLY"`
	Tolerance *ToleranceRequest `json:"tolerance"`
}

// CycleCountService schedules recurring counts and reconciles them with the ledger
type CycleCountService struct {
	txScope        TransactionScope
	cycleCountRepo inventory.CycleCountRepository
	logger         *zap.Logger
	metrics        *telemetry.LedgerMetrics
}

// NewCycleCountService creates a new CycleCountService
func NewCycleCountService(txScope TransactionScope, cycleCountRepo inventory.CycleCountRepository, logger *zap.Logger) *CycleCountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleCountService{
		txScope:        txScope,
		cycleCountRepo: cycleCountRepo,
		logger:         logger,
	}
}

// SetLedgerMetrics sets the business metrics recorder (optional)
func (s *CycleCountService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// Create creates a planned cycle count
func (s *CycleCountService) Create(ctx context.Context, tenantID uuid.UUID, req CreateCycleCountRequest) (*CycleCountResponse, error) {
	var cc *inventory.CycleCount
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var class *inventory.ABCClass
		if req.ABCClass != "" {
			c, err := inventory.ParseABCClass(req.ABCClass)
			if err != nil {
				return err
			}
			class = &c
		}
		number := req.CountNumber
		if number == "" {
			var err error
			if number, err = nextDocumentNumber(ctx, repos, tenantID, "CC"); err != nil {
				return err
			}
		}
		var scheduled time.Time
		if req.ScheduledDate != nil {
			scheduled = *req.ScheduledDate
		}
		c, events, err := inventory.NewCycleCount(tenantID, req.WarehouseID, number, req.Name, class, scheduled,
			inventory.CycleCountScope{LocationID: req.LocationID, ZoneID: req.ZoneID, CategoryID: req.CategoryID})
		if err != nil {
			return err
		}
		if req.Frequency != "" {
			if err := c.SetFrequency(inventory.RecurrenceFrequency(req.Frequency)); err != nil {
				return err
			}
		}
		if req.Tolerance != nil {
			if err := c.SetTolerance(req.Tolerance.toDomain()); err != nil {
				return err
			}
		}
		c.Description = req.Description
		if req.CreatedBy != nil {
			c.SetCreatedBy(*req.CreatedBy)
		}
		if err := addCountItems(ctx, repos, tenantID, c.WarehouseID, req.Items, c.AddItem); err != nil {
			return err
		}
		if err := repos.CycleCounts().Create(ctx, c); err != nil {
			return err
		}
		cc = c
		return repos.Events().Record(ctx, events...)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cycle count created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("cycle_count_id", cc.ID.String()),
		zap.String("count_number", cc.CountNumber),
		zap.String("frequency", string(cc.Frequency)),
		zap.Time("scheduled_date", cc.ScheduledDate),
	)
	resp := ToCycleCountResponse(cc)
	return &resp, nil
}

// UpdateSchedule changes frequency and/or tolerance
func (s *CycleCountService) UpdateSchedule(ctx context.Context, tenantID, id uuid.UUID, req UpdateCycleCountScheduleRequest) (*CycleCountResponse, error) {
	return s.update(ctx, tenantID, id, "update_schedule", func(_ TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error) {
		if req.Frequency != "" {
			if err := cc.SetFrequency(inventory.RecurrenceFrequency(req.Frequency)); err != nil {
				return nil, err
			}
		}
		if req.Tolerance != nil {
			if err := cc.SetTolerance(req.Tolerance.toDomain()); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
}

// AddItems adds lines, snapshotting their current ledger quantity
func (s *CycleCountService) AddItems(ctx context.Context, tenantID, id uuid.UUID, req AddCountItemsRequest) (*CycleCountResponse, error) {
	return s.update(ctx, tenantID, id, "add_items", func(repos TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error) {
		return nil, addCountItems(ctx, repos, tenantID, cc.WarehouseID, req.Items, cc.AddItem)
	})
}

// RemoveItem removes a line before counting starts
func (s *CycleCountService) RemoveItem(ctx context.Context, tenantID, id, itemID uuid.UUID) (*CycleCountResponse, error) {
	return s.update(ctx, tenantID, id, "remove_item", func(_ TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error) {
		return nil, cc.RemoveItem(itemID)
	})
}

// Start starts counting
func (s *CycleCountService) Start(ctx context.Context, tenantID, id uuid.UUID) (*CycleCountResponse, error) {
	return s.update(ctx, tenantID, id, "start", func(_ TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error) {
		return cc.Start()
	})
}

// RecordCounts records counted quantities
func (s *CycleCountService) RecordCounts(ctx context.Context, tenantID, id uuid.UUID, req RecordCountsRequest) (*CycleCountResponse, error) {
	return s.update(ctx, tenantID, id, "record_counts", func(_ TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error) {
		return recordCounts(req.Counts, cc.RecordCount)
	})
}

// Complete closes counting and plans the next occurrence in the same transaction
func (s *CycleCountService) Complete(ctx context.Context, tenantID, id uuid.UUID) (*CycleCountCompletionResponse, error) {
	var next *inventory.CycleCount
	resp, err := s.update(ctx, tenantID, id, "complete", func(repos TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error) {
		events, err := cc.Complete()
		if err != nil {
			return nil, err
		}
		number, err := nextDocumentNumber(ctx, repos, tenantID, "CC")
		if err != nil {
			return nil, err
		}
		n, nextEvents, err := cc.ScheduleNext(number)
		if err != nil {
			return nil, err
		}
		if err := repos.CycleCounts().Create(ctx, n); err != nil {
			return nil, err
		}
		next = n
		return append(events, nextEvents...), nil
	})
	if err != nil {
		return nil, err
	}

	nextResp := ToCycleCountResponse(next)
	s.logger.Info("Next cycle count scheduled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("cycle_count_id", next.ID.String()),
		zap.String("count_number", next.CountNumber),
		zap.Time("scheduled_date", next.ScheduledDate),
	)
	return &CycleCountCompletionResponse{CycleCount: *resp, Next: &nextResp}, nil
}

// Approve approves a completed count. Tolerance is reported in the response
// but never blocks approval.
func (s *CycleCountService) Approve(ctx context.Context, tenantID, id uuid.UUID, req ApproveCountRequest) (*CycleCountResponse, error) {
	return s.update(ctx, tenantID, id, "approve", func(_ TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error) {
		return cc.Approve(req.ApprovedBy)
	})
}

// Reject rejects a completed count
func (s *CycleCountService) Reject(ctx context.Context, tenantID, id uuid.UUID, req RejectRequest) (*CycleCountResponse, error) {
	return s.update(ctx, tenantID, id, "reject", func(_ TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error) {
		return cc.Reject(req.RejectedBy, req.Reason)
	})
}

// Cancel abandons a count that has not been approved
func (s *CycleCountService) Cancel(ctx context.Context, tenantID, id uuid.UUID, req CancelRequest) (*CycleCountResponse, error) {
	return s.update(ctx, tenantID, id, "cancel", func(_ TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error) {
		return cc.Cancel(req.Reason)
	})
}

// Process closes an approved count without touching the ledger
func (s *CycleCountService) Process(ctx context.Context, tenantID, id uuid.UUID) (*CycleCountResponse, error) {
	return s.update(ctx, tenantID, id, "process", func(_ TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error) {
		return cc.MarkAsProcessed()
	})
}

// Adjust posts the variances of an approved count to the ledger through an
// approved adjustment and marks the count Adjusted. A count without variances
// is marked Processed instead.
func (s *CycleCountService) Adjust(ctx context.Context, tenantID, id uuid.UUID, req ApproveCountRequest) (*CycleCountAdjustmentResponse, error) {
	var adj *inventory.InventoryAdjustment
	var results []*postingResult
	resp, err := s.update(ctx, tenantID, id, "adjust", func(repos TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error) {
		if cc.Status != inventory.CountStatusApproved {
			return nil, shared.Errorf(shared.ErrInvalidStateTransition, "cycle count %s is %s, not approved", cc.CountNumber, cc.Status)
		}
		if len(cc.VarianceItems()) == 0 {
			return cc.MarkAsProcessed()
		}

		number, err := nextDocumentNumber(ctx, repos, tenantID, "ADJ")
		if err != nil {
			return nil, err
		}
		a, events, err := adjustmentFromCycleCount(cc, number)
		if err != nil {
			return nil, err
		}
		a.SetCreatedBy(req.ApprovedBy)
		submitted, err := a.Submit()
		if err != nil {
			return nil, err
		}
		approved, err := a.Approve(req.ApprovedBy)
		if err != nil {
			return nil, err
		}
		events = append(events, submitted...)
		events = append(events, approved...)
		operator := req.OperatorID
		if operator == nil {
			operator = &req.ApprovedBy
		}
		res, processed, err := applyAdjustment(ctx, repos, tenantID, a, operator)
		if err != nil {
			return nil, err
		}
		if err := repos.Adjustments().Create(ctx, a); err != nil {
			return nil, err
		}
		events = append(events, processed...)

		adjusted, err := cc.MarkAsAdjusted()
		if err != nil {
			return nil, err
		}
		adj, results = a, res
		return append(events, adjusted...), nil
	})
	if err != nil {
		return nil, err
	}

	out := &CycleCountAdjustmentResponse{CycleCount: *resp}
	if adj != nil {
		if s.metrics != nil {
			recordAdjustmentMetrics(ctx, s.metrics, tenantID, string(adj.Reason), results)
		}
		adjResp := ToAdjustmentResponse(adj)
		out.Adjustment = &adjResp
	}
	return out, nil
}

// FindDue returns planned cycle counts whose scheduled date has been reached
func (s *CycleCountService) FindDue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]CycleCountResponse, error) {
	counts, err := s.cycleCountRepo.FindDue(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	out := make([]CycleCountResponse, 0, len(counts))
	for i := range counts {
		if counts[i].IsDue(asOf) {
			out = append(out, ToCycleCountResponse(&counts[i]))
		}
	}
	return out, nil
}

// GetByID retrieves a cycle count
func (s *CycleCountService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*CycleCountResponse, error) {
	cc, err := s.cycleCountRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToCycleCountResponse(cc)
	return &resp, nil
}

// List lists cycle counts with filtering and pagination
func (s *CycleCountService) List(ctx context.Context, tenantID uuid.UUID, filter CountListFilter) (*shared.Paginated[CycleCountResponse], error) {
	df := filter.toDomain()
	items, total, err := s.cycleCountRepo.List(ctx, tenantID, df)
	if err != nil {
		return nil, err
	}
	out := make([]CycleCountResponse, len(items))
	for i := range items {
		out[i] = ToCycleCountResponse(&items[i])
	}
	page := shared.NewPaginated(out, total, df.Page, df.PageSize)
	return &page, nil
}

type cycleCountStep func(repos TransactionalRepositories, cc *inventory.CycleCount) ([]shared.DomainEvent, error)

func (s *CycleCountService) update(ctx context.Context, tenantID, id uuid.UUID, action string, step cycleCountStep) (*CycleCountResponse, error) {
	var cc *inventory.CycleCount
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		c, err := repos.CycleCounts().LockByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		events, err := step(repos, c)
		if err != nil {
			return err
		}
		if err := repos.CycleCounts().Save(ctx, c); err != nil {
			return err
		}
		cc = c
		return repos.Events().Record(ctx, events...)
	})
	if err != nil {
		logRejected(s.logger, "Cycle count update rejected", tenantID, id, action, err)
		return nil, err
	}

	s.logger.Info("Cycle count updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("cycle_count_id", id.String()),
		zap.String("action", action),
		zap.String("status", string(cc.Status)),
		zap.String("accuracy_percent", cc.AccuracyPercent.String()),
		zap.Bool("requires_manual_review", cc.RequiresManualReview()),
	)
	resp := ToCycleCountResponse(cc)
	return &resp, nil
}

// adjustmentFromCycleCount drafts an adjustment holding one item per variance line
func adjustmentFromCycleCount(cc *inventory.CycleCount, number string) (*inventory.InventoryAdjustment, []shared.DomainEvent, error) {
	adj, events, err := inventory.NewInventoryAdjustment(cc.TenantID, cc.WarehouseID, number,
		inventory.AdjustmentReasonCountVariance, "Variance from cycle count "+cc.CountNumber)
	if err != nil {
		return nil, nil, err
	}
	for _, item := range cc.VarianceItems() {
		if err := adj.AddItem(inventory.AdjustmentItemInput{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			LocationID:     item.LocationID,
			SystemQuantity: item.SystemQuantity,
			ActualQuantity: *item.CountedQuantity,
			UnitCost:       item.UnitCost,
			LotNumber:      item.LotNumber,
			SerialNumber:   item.SerialNumber,
			Notes:          item.Notes,
		}); err != nil {
			return nil, nil, err
		}
	}
	return adj, events, nil
}
