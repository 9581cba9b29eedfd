package inventory

import (
	"context"
	"errors"
	"sort"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdjustmentReferenceType tags ledger movements posted by an inventory adjustment
const AdjustmentReferenceType = "INVENTORY_ADJUSTMENT"

// AdjustmentService runs the approval workflow of inventory adjustments and
// applies approved adjustments to the ledger
type AdjustmentService struct {
	txScope        TransactionScope
	adjustmentRepo inventory.AdjustmentRepository
	logger         *zap.Logger
	metrics        *telemetry.LedgerMetrics
}

// NewAdjustmentService creates a new AdjustmentService
func NewAdjustmentService(txScope TransactionScope, adjustmentRepo inventory.AdjustmentRepository, logger *zap.Logger) *AdjustmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdjustmentService{
		txScope:        txScope,
		adjustmentRepo: adjustmentRepo,
		logger:         logger,
	}
}

// SetLedgerMetrics sets the business metrics recorder (optional)
func (s *AdjustmentService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// Create creates a draft adjustment, snapshotting the ledger quantity of every item
func (s *AdjustmentService) Create(ctx context.Context, tenantID uuid.UUID, req CreateAdjustmentRequest) (*AdjustmentResponse, error) {
	var adj *inventory.InventoryAdjustment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		number := req.AdjustmentNumber
		if number == "" {
			var err error
			if number, err = nextDocumentNumber(ctx, repos, tenantID, "ADJ"); err != nil {
				return err
			}
		}
		a, events, err := inventory.NewInventoryAdjustment(tenantID, req.WarehouseID, number,
			inventory.AdjustmentReason(req.Reason), req.Description)
		if err != nil {
			return err
		}
		if req.CreatedBy != nil {
			a.SetCreatedBy(*req.CreatedBy)
		}
		for _, item := range req.Items {
			if err := addAdjustmentItem(ctx, repos, a, item); err != nil {
				return err
			}
		}
		if err := repos.Adjustments().Create(ctx, a); err != nil {
			return err
		}
		adj = a
		return repos.Events().Record(ctx, events...)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Inventory adjustment created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("adjustment_id", adj.ID.String()),
		zap.String("adjustment_number", adj.AdjustmentNumber),
		zap.Int("items", len(adj.Items)),
	)
	resp := ToAdjustmentResponse(adj)
	return &resp, nil
}

// AddItem adds a correction line to a draft adjustment
func (s *AdjustmentService) AddItem(ctx context.Context, tenantID, id uuid.UUID, req AdjustmentItemRequest) (*AdjustmentResponse, error) {
	return s.update(ctx, tenantID, id, "add_item", func(repos TransactionalRepositories, a *inventory.InventoryAdjustment) ([]shared.DomainEvent, error) {
		return nil, addAdjustmentItem(ctx, repos, a, req)
	})
}

// RemoveItem removes a correction line from a draft adjustment
func (s *AdjustmentService) RemoveItem(ctx context.Context, tenantID, id, itemID uuid.UUID) (*AdjustmentResponse, error) {
	return s.update(ctx, tenantID, id, "remove_item", func(_ TransactionalRepositories, a *inventory.InventoryAdjustment) ([]shared.DomainEvent, error) {
		return nil, a.RemoveItem(itemID)
	})
}

// Submit sends the adjustment for approval
func (s *AdjustmentService) Submit(ctx context.Context, tenantID, id uuid.UUID) (*AdjustmentResponse, error) {
	return s.update(ctx, tenantID, id, "submit", func(_ TransactionalRepositories, a *inventory.InventoryAdjustment) ([]shared.DomainEvent, error) {
		return a.Submit()
	})
}

// Approve approves a pending adjustment
func (s *AdjustmentService) Approve(ctx context.Context, tenantID, id uuid.UUID, req ApproveRequest) (*AdjustmentResponse, error) {
	return s.update(ctx, tenantID, id, "approve", func(_ TransactionalRepositories, a *inventory.InventoryAdjustment) ([]shared.DomainEvent, error) {
		return a.Approve(req.ApprovedBy)
	})
}

// Reject rejects a pending adjustment
func (s *AdjustmentService) Reject(ctx context.Context, tenantID, id uuid.UUID, req RejectRequest) (*AdjustmentResponse, error) {
	return s.update(ctx, tenantID, id, "reject", func(repos TransactionalRepositories, a *inventory.InventoryAdjustment) ([]shared.DomainEvent, error) {
		events, err := a.Reject(req.RejectedBy, req.Reason)
		if err != nil {
			return nil, err
		}
		return events, releaseSourceCount(ctx, repos, tenantID, a)
	})
}

// Cancel cancels an adjustment that has not been processed
func (s *AdjustmentService) Cancel(ctx context.Context, tenantID, id uuid.UUID, req CancelRequest) (*AdjustmentResponse, error) {
	return s.update(ctx, tenantID, id, "cancel", func(repos TransactionalRepositories, a *inventory.InventoryAdjustment) ([]shared.DomainEvent, error) {
		events, err := a.Cancel(req.Reason)
		if err != nil {
			return nil, err
		}
		return events, releaseSourceCount(ctx, repos, tenantID, a)
	})
}

// Process applies an approved adjustment: every item's ledger row is
// adjusted to its actual quantity in the same transaction that marks the
// adjustment processed. An adjustment drafted from a stock count is applied
// only while that count is still Approved, and closes it as Adjusted.
func (s *AdjustmentService) Process(ctx context.Context, tenantID, id uuid.UUID, req ProcessAdjustmentRequest) (*AdjustmentResponse, error) {
	var results []*postingResult
	resp, err := s.update(ctx, tenantID, id, "process", func(repos TransactionalRepositories, a *inventory.InventoryAdjustment) ([]shared.DomainEvent, error) {
		source, err := lockSourceCount(ctx, repos, tenantID, a)
		if err != nil {
			return nil, err
		}
		var events []shared.DomainEvent
		results, events, err = applyAdjustment(ctx, repos, tenantID, a, req.OperatorID)
		if err != nil || source == nil {
			return events, err
		}
		adjusted, err := source.MarkAsAdjusted(a.ID)
		if err != nil {
			return nil, err
		}
		if err := repos.StockCounts().Save(ctx, source); err != nil {
			return nil, err
		}
		return append(events, adjusted...), nil
	})
	if err != nil {
		return nil, err
	}
	s.recordApplied(ctx, tenantID, resp.Reason, results)
	return resp, nil
}

// GetByID retrieves an adjustment
func (s *AdjustmentService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*AdjustmentResponse, error) {
	a, err := s.adjustmentRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToAdjustmentResponse(a)
	return &resp, nil
}

// List lists adjustments with filtering and pagination
func (s *AdjustmentService) List(ctx context.Context, tenantID uuid.UUID, filter AdjustmentListFilter) (*shared.Paginated[AdjustmentResponse], error) {
	df := filter.toDomain()
	items, total, err := s.adjustmentRepo.List(ctx, tenantID, df)
	if err != nil {
		return nil, err
	}
	out := make([]AdjustmentResponse, len(items))
	for i := range items {
		out[i] = ToAdjustmentResponse(&items[i])
	}
	page := shared.NewPaginated(out, total, df.Page, df.PageSize)
	return &page, nil
}

type adjustmentStep func(repos TransactionalRepositories, a *inventory.InventoryAdjustment) ([]shared.DomainEvent, error)

func (s *AdjustmentService) update(ctx context.Context, tenantID, id uuid.UUID, action string, step adjustmentStep) (*AdjustmentResponse, error) {
	var adj *inventory.InventoryAdjustment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		a, err := repos.Adjustments().LockByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		events, err := step(repos, a)
		if err != nil {
			return err
		}
		if err := repos.Adjustments().Save(ctx, a); err != nil {
			return err
		}
		adj = a
		return repos.Events().Record(ctx, events...)
	})
	if err != nil {
		logRejected(s.logger, "Inventory adjustment update rejected", tenantID, id, action, err)
		return nil, err
	}

	s.logger.Info("Inventory adjustment updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("adjustment_id", id.String()),
		zap.String("action", action),
		zap.String("status", string(adj.Status)),
		zap.String("total_cost_impact", adj.TotalCostImpact.String()),
	)
	resp := ToAdjustmentResponse(adj)
	return &resp, nil
}

func (s *AdjustmentService) recordApplied(ctx context.Context, tenantID uuid.UUID, reason string, results []*postingResult) {
	if s.metrics == nil {
		return
	}
	recordAdjustmentMetrics(ctx, s.metrics, tenantID, reason, results)
}

// addAdjustmentItem snapshots the ledger quantity of the item's row and adds it
func addAdjustmentItem(ctx context.Context, repos TransactionalRepositories, a *inventory.InventoryAdjustment, req AdjustmentItemRequest) error {
	key := inventory.StockKey{ProductID: req.ProductID, WarehouseID: a.WarehouseID, LocationID: req.LocationID, VariantID: req.VariantID}
	system, err := ledgerQuantity(ctx, repos, a.TenantID, key)
	if err != nil {
		return err
	}
	return a.AddItem(inventory.AdjustmentItemInput{
		ProductID:      req.ProductID,
		VariantID:      req.VariantID,
		LocationID:     req.LocationID,
		SystemQuantity: system,
		ActualQuantity: req.ActualQuantity,
		UnitCost:       req.UnitCost,
		LotNumber:      req.LotNumber,
		SerialNumber:   req.SerialNumber,
		Notes:          req.Notes,
	})
}

// ledgerQuantity returns the physical quantity of a key, zero when the row does not exist
func ledgerQuantity(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, key inventory.StockKey) (decimal.Decimal, error) {
	line, err := repos.StockLines().FindByKey(ctx, tenantID, key)
	if errors.Is(err, shared.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return line.Quantity, nil
}

// applyAdjustment marks the adjustment processed and posts an Adjust for
// every item. Rows are locked in key order so concurrent adjustments over
// the same rows cannot deadlock.
func applyAdjustment(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, a *inventory.InventoryAdjustment, operator *uuid.UUID) ([]*postingResult, []shared.DomainEvent, error) {
	events, err := a.Process()
	if err != nil {
		return nil, nil, err
	}

	items := make([]*inventory.AdjustmentItem, len(a.Items))
	for i := range a.Items {
		items[i] = &a.Items[i]
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StockKey(a.WarehouseID).String() < items[j].StockKey(a.WarehouseID).String()
	})

	adjID := a.ID
	results := make([]*postingResult, 0, len(items))
	for _, item := range items {
		res, err := post(ctx, repos, tenantID, posting{
			op:       opAdjust,
			key:      item.StockKey(a.WarehouseID),
			quantity: item.ActualQuantity,
			reason:   string(a.Reason),
			movement: inventory.MovementInput{
				DocumentNumber: a.AdjustmentNumber,
				UnitCost:       item.UnitCost,
				LotNumber:      item.LotNumber,
				SerialNumber:   item.SerialNumber,
				Reference: inventory.ReferenceDocument{
					Type:   AdjustmentReferenceType,
					Number: a.AdjustmentNumber,
					ID:     &adjID,
				},
				Description: item.Notes,
				UserID:      operator,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		results = append(results, res)
	}
	return results, events, nil
}

// lockSourceCount returns the stock count an adjustment was drafted from, or
// nil for a manual adjustment. The count must still be Approved and linked to
// this adjustment; otherwise its quantities no longer describe the ledger.
func lockSourceCount(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, a *inventory.InventoryAdjustment) (*inventory.StockCount, error) {
	if a.StockCountID == nil {
		return nil, nil
	}
	sc, err := repos.StockCounts().LockByID(ctx, tenantID, *a.StockCountID)
	if err != nil {
		return nil, err
	}
	if sc.Status != inventory.CountStatusApproved {
		return nil, shared.Errorf(shared.ErrInvalidStateTransition,
			"stock count %s is %s; adjustment %s can no longer be applied", sc.CountNumber, sc.Status, a.AdjustmentNumber)
	}
	if sc.AdjustmentID != nil && *sc.AdjustmentID != a.ID {
		return nil, shared.Errorf(shared.ErrInvalidStateTransition,
			"stock count %s belongs to adjustment %s", sc.CountNumber, *sc.AdjustmentID)
	}
	return sc, nil
}

// releaseSourceCount unlinks a rejected or cancelled adjustment from the
// count it was drafted from
func releaseSourceCount(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, a *inventory.InventoryAdjustment) error {
	if a.StockCountID == nil {
		return nil
	}
	sc, err := repos.StockCounts().LockByID(ctx, tenantID, *a.StockCountID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sc.UnlinkAdjustment(a.ID) {
		return nil
	}
	return repos.StockCounts().Save(ctx, sc)
}

func recordAdjustmentMetrics(ctx context.Context, m *telemetry.LedgerMetrics, tenantID uuid.UUID, reason string, results []*postingResult) {
	for _, res := range results {
		m.RecordMovement(ctx, tenantID, string(res.movement.MovementType), res.movement.Quantity)
		m.RecordAdjustmentCost(ctx, tenantID, reason, res.variance.Mul(res.movement.UnitCost))
	}
}

func logRejected(logger *zap.Logger, msg string, tenantID, id uuid.UUID, action string, err error) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		logger.Info(msg,
			zap.String("tenant_id", tenantID.String()),
			zap.String("id", id.String()),
			zap.String("action", action),
			zap.String("code", domainErr.Code),
			zap.String("message", domainErr.Message),
		)
		return
	}
	logger.Error(msg,
		zap.String("tenant_id", tenantID.String()),
		zap.String("id", id.String()),
		zap.String("action", action),
		zap.Error(err),
	)
}
