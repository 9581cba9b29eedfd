package inventory

import (
	"context"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockCountService runs ad hoc physical counts and reconciles them with the
// ledger through inventory adjustments
type StockCountService struct {
	txScope        TransactionScope
	stockCountRepo inventory.StockCountRepository
	logger         *zap.Logger
	metrics        *telemetry.LedgerMetrics
}

// NewStockCountService creates a new StockCountService
func NewStockCountService(txScope TransactionScope, stockCountRepo inventory.StockCountRepository, logger *zap.Logger) *StockCountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockCountService{
		txScope:        txScope,
		stockCountRepo: stockCountRepo,
		logger:         logger,
	}
}

// SetLedgerMetrics sets the business metrics recorder (optional)
func (s *StockCountService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// Create creates a draft stock count with optional initial items
func (s *StockCountService) Create(ctx context.Context, tenantID uuid.UUID, req CreateStockCountRequest) (*StockCountResponse, error) {
	var sc *inventory.StockCount
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		number := req.CountNumber
		if number == "" {
			var err error
			if number, err = nextDocumentNumber(ctx, repos, tenantID, "SC"); err != nil {
				return err
			}
		}
		var countDate time.Time
		if req.CountDate != nil {
			countDate = *req.CountDate
		}
		countType := inventory.CountTypeFull
		if req.CountType != "" {
			countType = inventory.CountType(req.CountType)
		}
		c, events, err := inventory.NewStockCount(tenantID, req.WarehouseID, number, countType, countDate, req.AutoAdjust)
		if err != nil {
			return err
		}
		c.LocationID = req.LocationID
		c.Description = req.Description
		c.Notes = req.Notes
		if req.CreatedBy != nil {
			c.SetCreatedBy(*req.CreatedBy)
		}
		if err := addCountItems(ctx, repos, tenantID, c.WarehouseID, req.Items, c.AddItem); err != nil {
			return err
		}
		if err := repos.StockCounts().Create(ctx, c); err != nil {
			return err
		}
		sc = c
		return repos.Events().Record(ctx, events...)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock count created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("stock_count_id", sc.ID.String()),
		zap.String("count_number", sc.CountNumber),
		zap.Int("items", sc.ItemCount()),
	)
	resp := ToStockCountResponse(sc)
	return &resp, nil
}

// AddItems adds lines, snapshotting their current ledger quantity
func (s *StockCountService) AddItems(ctx context.Context, tenantID, id uuid.UUID, req AddCountItemsRequest) (*StockCountResponse, error) {
	return s.update(ctx, tenantID, id, "add_items", func(repos TransactionalRepositories, sc *inventory.StockCount) ([]shared.DomainEvent, error) {
		return nil, addCountItems(ctx, repos, tenantID, sc.WarehouseID, req.Items, sc.AddItem)
	})
}

// RemoveItem removes a line from a draft count
func (s *StockCountService) RemoveItem(ctx context.Context, tenantID, id, itemID uuid.UUID) (*StockCountResponse, error) {
	return s.update(ctx, tenantID, id, "remove_item", func(_ TransactionalRepositories, sc *inventory.StockCount) ([]shared.DomainEvent, error) {
		return nil, sc.RemoveItem(itemID)
	})
}

// Start starts counting
func (s *StockCountService) Start(ctx context.Context, tenantID, id uuid.UUID) (*StockCountResponse, error) {
	return s.update(ctx, tenantID, id, "start", func(_ TransactionalRepositories, sc *inventory.StockCount) ([]shared.DomainEvent, error) {
		return sc.Start()
	})
}

// RecordCounts records counted quantities; the last value per item wins
func (s *StockCountService) RecordCounts(ctx context.Context, tenantID, id uuid.UUID, req RecordCountsRequest) (*StockCountResponse, error) {
	return s.update(ctx, tenantID, id, "record_counts", func(_ TransactionalRepositories, sc *inventory.StockCount) ([]shared.DomainEvent, error) {
		return recordCounts(req.Counts, sc.RecordCount)
	})
}

// Complete closes counting
func (s *StockCountService) Complete(ctx context.Context, tenantID, id uuid.UUID) (*StockCountResponse, error) {
	return s.update(ctx, tenantID, id, "complete", func(_ TransactionalRepositories, sc *inventory.StockCount) ([]shared.DomainEvent, error) {
		return sc.Complete()
	})
}

// Approve approves a completed count. With AutoAdjust the variances are
// turned into an adjustment that is submitted, approved and applied to the
// ledger in the same transaction, and the count ends Adjusted. A count
// without variances ends Processed.
func (s *StockCountService) Approve(ctx context.Context, tenantID, id uuid.UUID, req ApproveCountRequest) (*StockCountApprovalResponse, error) {
	var adj *inventory.InventoryAdjustment
	var results []*postingResult
	resp, err := s.update(ctx, tenantID, id, "approve", func(repos TransactionalRepositories, sc *inventory.StockCount) ([]shared.DomainEvent, error) {
		events, err := sc.Approve(req.ApprovedBy)
		if err != nil || !sc.AutoAdjust {
			return events, err
		}

		if len(sc.VarianceItems()) == 0 {
			more, err := sc.MarkAsProcessed()
			return append(events, more...), err
		}

		var adjEvents []shared.DomainEvent
		adj, results, adjEvents, err = autoAdjust(ctx, repos, tenantID, sc, req)
		if err != nil {
			return nil, err
		}
		events = append(events, adjEvents...)
		more, err := sc.MarkAsAdjusted(adj.ID)
		return append(events, more...), err
	})
	if err != nil {
		return nil, err
	}

	out := &StockCountApprovalResponse{StockCount: *resp}
	if adj != nil {
		if s.metrics != nil {
			recordAdjustmentMetrics(ctx, s.metrics, tenantID, string(adj.Reason), results)
		}
		adjResp := ToAdjustmentResponse(adj)
		out.Adjustment = &adjResp
		s.logger.Info("Stock count auto-adjusted",
			zap.String("tenant_id", tenantID.String()),
			zap.String("stock_count_id", id.String()),
			zap.String("adjustment_id", adj.ID.String()),
			zap.String("total_cost_impact", adj.TotalCostImpact.String()),
		)
	}
	return out, nil
}

// Reject rejects a completed count
func (s *StockCountService) Reject(ctx context.Context, tenantID, id uuid.UUID, req RejectRequest) (*StockCountResponse, error) {
	return s.update(ctx, tenantID, id, "reject", func(_ TransactionalRepositories, sc *inventory.StockCount) ([]shared.DomainEvent, error) {
		return sc.Reject(req.RejectedBy, req.Reason)
	})
}

// Cancel abandons a count that has not been approved
func (s *StockCountService) Cancel(ctx context.Context, tenantID, id uuid.UUID, req CancelRequest) (*StockCountResponse, error) {
	return s.update(ctx, tenantID, id, "cancel", func(_ TransactionalRepositories, sc *inventory.StockCount) ([]shared.DomainEvent, error) {
		return sc.Cancel(req.Reason)
	})
}

// Process closes an approved count without touching the ledger
func (s *StockCountService) Process(ctx context.Context, tenantID, id uuid.UUID) (*StockCountResponse, error) {
	return s.update(ctx, tenantID, id, "process", func(_ TransactionalRepositories, sc *inventory.StockCount) ([]shared.DomainEvent, error) {
		return sc.MarkAsProcessed()
	})
}

// CreateAdjustment drafts the adjustment of an approved count from its
// variances. A count gets one adjustment; the count is marked Adjusted when
// that adjustment is processed, and freed again if it is rejected or cancelled.
func (s *StockCountService) CreateAdjustment(ctx context.Context, tenantID, id uuid.UUID) (*AdjustmentResponse, error) {
	var adj *inventory.InventoryAdjustment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		sc, err := repos.StockCounts().LockByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		number, err := nextDocumentNumber(ctx, repos, tenantID, "ADJ")
		if err != nil {
			return err
		}
		a, events, err := inventory.NewAdjustmentFromStockCount(sc, number)
		if err != nil {
			return err
		}
		if err := repos.Adjustments().Create(ctx, a); err != nil {
			return err
		}
		if err := repos.StockCounts().Save(ctx, sc); err != nil {
			return err
		}
		adj = a
		return repos.Events().Record(ctx, events...)
	})
	if err != nil {
		logRejected(s.logger, "Stock count adjustment rejected", tenantID, id, "create_adjustment", err)
		return nil, err
	}
	resp := ToAdjustmentResponse(adj)
	return &resp, nil
}

// GetByID retrieves a stock count
func (s *StockCountService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*StockCountResponse, error) {
	sc, err := s.stockCountRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToStockCountResponse(sc)
	return &resp, nil
}

// List lists stock counts with filtering and pagination
func (s *StockCountService) List(ctx context.Context, tenantID uuid.UUID, filter CountListFilter) (*shared.Paginated[StockCountResponse], error) {
	df := filter.toDomain()
	items, total, err := s.stockCountRepo.List(ctx, tenantID, df)
	if err != nil {
		return nil, err
	}
	out := make([]StockCountResponse, len(items))
	for i := range items {
		out[i] = ToStockCountResponse(&items[i])
	}
	page := shared.NewPaginated(out, total, df.Page, df.PageSize)
	return &page, nil
}

type stockCountStep func(repos TransactionalRepositories, sc *inventory.StockCount) ([]shared.DomainEvent, error)

func (s *StockCountService) update(ctx context.Context, tenantID, id uuid.UUID, action string, step stockCountStep) (*StockCountResponse, error) {
	var sc *inventory.StockCount
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		c, err := repos.StockCounts().LockByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		events, err := step(repos, c)
		if err != nil {
			return err
		}
		if err := repos.StockCounts().Save(ctx, c); err != nil {
			return err
		}
		sc = c
		return repos.Events().Record(ctx, events...)
	})
	if err != nil {
		logRejected(s.logger, "Stock count update rejected", tenantID, id, action, err)
		return nil, err
	}

	s.logger.Info("Stock count updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("stock_count_id", id.String()),
		zap.String("action", action),
		zap.String("status", string(sc.Status)),
		zap.String("accuracy_percent", sc.AccuracyPercent.String()),
	)
	resp := ToStockCountResponse(sc)
	return &resp, nil
}

// autoAdjust builds the adjustment for an approved count, walks it through
// its approval states and applies it
func autoAdjust(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, sc *inventory.StockCount, req ApproveCountRequest) (*inventory.InventoryAdjustment, []*postingResult, []shared.DomainEvent, error) {
	number, err := nextDocumentNumber(ctx, repos, tenantID, "ADJ")
	if err != nil {
		return nil, nil, nil, err
	}
	adj, events, err := inventory.NewAdjustmentFromStockCount(sc, number)
	if err != nil {
		return nil, nil, nil, err
	}
	adj.SetCreatedBy(req.ApprovedBy)

	submitted, err := adj.Submit()
	if err != nil {
		return nil, nil, nil, err
	}
	approved, err := adj.Approve(req.ApprovedBy)
	if err != nil {
		return nil, nil, nil, err
	}
	operator := req.OperatorID
	if operator == nil {
		operator = &req.ApprovedBy
	}
	results, processed, err := applyAdjustment(ctx, repos, tenantID, adj, operator)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := repos.Adjustments().Create(ctx, adj); err != nil {
		return nil, nil, nil, err
	}

	events = append(events, submitted...)
	events = append(events, approved...)
	events = append(events, processed...)
	return adj, results, events, nil
}

// addCountItems snapshots the ledger quantity of each requested line and adds it through add
func addCountItems(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID, warehouseID uuid.UUID,
	items []CountItemRequest,
	add func(inventory.CountItemInput) (*inventory.CountItem, error),
) error {
	for _, item := range items {
		key := inventory.StockKey{ProductID: item.ProductID, WarehouseID: warehouseID, LocationID: item.LocationID, VariantID: item.VariantID}
		system, err := ledgerQuantity(ctx, repos, tenantID, key)
		if err != nil {
			return err
		}
		if _, err := add(inventory.CountItemInput{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			LocationID:     item.LocationID,
			SystemQuantity: system,
			UnitCost:       item.UnitCost,
			LotNumber:      item.LotNumber,
			SerialNumber:   item.SerialNumber,
		}); err != nil {
			return err
		}
	}
	return nil
}

func recordCounts(
	counts []RecordCountRequest,
	record func(uuid.UUID, decimal.Decimal, *uuid.UUID, string) ([]shared.DomainEvent, error),
) ([]shared.DomainEvent, error) {
	var events []shared.DomainEvent
	for _, c := range counts {
		evs, err := record(c.ItemID, c.CountedQuantity, c.CountedBy, c.Notes)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	return events, nil
}
