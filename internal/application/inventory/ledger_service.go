package inventory

import (
	"context"
	"errors"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService handles stock ledger postings and ledger queries
type LedgerService struct {
	txScope       TransactionScope
	stockLineRepo inventory.StockLineRepository
	movementRepo  inventory.MovementRepository
	logger        *zap.Logger
	metrics       *telemetry.LedgerMetrics
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	txScope TransactionScope,
	stockLineRepo inventory.StockLineRepository,
	movementRepo inventory.MovementRepository,
	logger *zap.Logger,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		txScope:       txScope,
		stockLineRepo: stockLineRepo,
		movementRepo:  movementRepo,
		logger:        logger,
	}
}

// SetLedgerMetrics sets the business metrics recorder (optional)
func (s *LedgerService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// IncreaseStock receives stock into a ledger row, creating the row on first receipt
func (s *LedgerService) IncreaseStock(ctx context.Context, tenantID uuid.UUID, req IncreaseStockRequest) (*PostingResponse, error) {
	mt := inventory.MovementTypePurchase
	if req.MovementType != "" {
		mt = inventory.MovementType(req.MovementType)
	}
	p := posting{
		op:       opIncrease,
		key:      req.Key(),
		quantity: req.Quantity,
		movement: inventory.MovementInput{
			DocumentNumber: req.DocumentNumber,
			MovementType:   mt,
			UnitCost:       req.UnitCost,
			LotNumber:      req.LotNumber,
			SerialNumber:   req.SerialNumber,
			Reference:      req.Reference.toDomain(),
			Description:    req.Description,
			UserID:         req.OperatorID,
		},
	}
	if req.LotNumber != "" || req.SerialNumber != "" || req.ExpiryDate != nil {
		p.tracking = &inventory.TrackingInfo{
			LotNumber:    req.LotNumber,
			SerialNumber: req.SerialNumber,
			ExpiryDate:   req.ExpiryDate,
		}
	}
	return s.postOne(ctx, tenantID, p)
}

// DecreaseStock issues stock from a ledger row. Fails with InsufficientStock
// when the quantity exceeds the available quantity.
func (s *LedgerService) DecreaseStock(ctx context.Context, tenantID uuid.UUID, req DecreaseStockRequest) (*PostingResponse, error) {
	mt := inventory.MovementTypeSale
	if req.MovementType != "" {
		mt = inventory.MovementType(req.MovementType)
	}
	return s.postOne(ctx, tenantID, posting{
		op:       opDecrease,
		key:      req.Key(),
		quantity: req.Quantity,
		movement: inventory.MovementInput{
			DocumentNumber: req.DocumentNumber,
			MovementType:   mt,
			UnitCost:       req.UnitCost,
			LotNumber:      req.LotNumber,
			SerialNumber:   req.SerialNumber,
			Reference:      req.Reference.toDomain(),
			Description:    req.Description,
			UserID:         req.OperatorID,
		},
	})
}

// ReserveStock soft-holds available quantity
func (s *LedgerService) ReserveStock(ctx context.Context, tenantID uuid.UUID, req ReserveStockRequest) (*PostingResponse, error) {
	return s.postOne(ctx, tenantID, posting{
		op:       opReserve,
		key:      req.Key(),
		quantity: req.Quantity,
		movement: inventory.MovementInput{
			Reference:   req.Reference.toDomain(),
			Description: req.Description,
			UserID:      req.OperatorID,
		},
	})
}

// ReleaseReservation gives reserved quantity back to available
func (s *LedgerService) ReleaseReservation(ctx context.Context, tenantID uuid.UUID, req ReleaseStockRequest) (*PostingResponse, error) {
	return s.postOne(ctx, tenantID, posting{
		op:       opRelease,
		key:      req.Key(),
		quantity: req.Quantity,
		movement: inventory.MovementInput{
			Reference:   req.Reference.toDomain(),
			Description: req.Description,
			UserID:      req.OperatorID,
		},
	})
}

// AdjustStock overwrites the quantity of a ledger row and records the variance
func (s *LedgerService) AdjustStock(ctx context.Context, tenantID uuid.UUID, req AdjustStockRequest) (*PostingResponse, error) {
	return s.postOne(ctx, tenantID, posting{
		op:       opAdjust,
		key:      req.Key(),
		quantity: req.NewQuantity,
		reason:   req.Reason,
		movement: inventory.MovementInput{
			UnitCost:  req.UnitCost,
			Reference: req.Reference.toDomain(),
			UserID:    req.OperatorID,
		},
	})
}

// TransferStock moves stock between two locations of the same warehouse.
// Both legs are posted in one transaction and share a document number.
func (s *LedgerService) TransferStock(ctx context.Context, tenantID uuid.UUID, req TransferStockRequest) (*TransferResponse, error) {
	if req.FromLocationID == req.ToLocationID {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "source and destination location must differ")
	}
	from := req.FromLocationID
	to := req.ToLocationID
	base := inventory.StockKey{ProductID: req.ProductID, WarehouseID: req.WarehouseID, VariantID: req.VariantID}
	srcKey := base.WithLocation(&from)
	dstKey := base.WithLocation(&to)

	docNumber := req.DocumentNumber
	if docNumber == "" {
		docNumber = defaultDocumentNumber("TR", uuid.New())
	}
	mv := inventory.MovementInput{
		DocumentNumber: docNumber,
		MovementType:   inventory.MovementTypeTransfer,
		UnitCost:       req.UnitCost,
		Reference:      req.Reference.toDomain(),
		Description:    req.Description,
		UserID:         req.OperatorID,
	}

	var out, in *postingResult
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		// Lock both rows in key order so opposite transfers cannot deadlock
		first, second := srcKey, dstKey
		if second.String() < first.String() {
			first, second = second, first
		}
		for _, key := range []inventory.StockKey{first, second} {
			if _, err := lockLine(ctx, repos, tenantID, key, key.String() == dstKey.String()); err != nil {
				return err
			}
		}

		var err error
		out, err = post(ctx, repos, tenantID, posting{op: opDecrease, key: srcKey, quantity: req.Quantity, movement: mv})
		if err != nil {
			return err
		}
		in, err = post(ctx, repos, tenantID, posting{op: opIncrease, key: dstKey, quantity: req.Quantity, movement: mv})
		return err
	})
	if err != nil {
		s.recordFailure(ctx, tenantID, "transfer", err)
		return nil, err
	}

	s.recordPosting(ctx, tenantID, out)
	s.recordPosting(ctx, tenantID, in)
	s.logger.Info("Stock transferred",
		zap.String("tenant_id", tenantID.String()),
		zap.String("document_number", docNumber),
		zap.String("product_id", req.ProductID.String()),
		zap.String("from_location_id", from.String()),
		zap.String("to_location_id", to.String()),
		zap.String("quantity", req.Quantity.String()),
	)
	return &TransferResponse{
		DocumentNumber: docNumber,
		Source:         ToStockLineResponse(out.line),
		Destination:    ToStockLineResponse(in.line),
		OutMovement:    ToMovementResponse(out.movement),
		InMovement:     ToMovementResponse(in.movement),
	}, nil
}

// ReverseMovement marks a movement reversed and posts the compensating
// movement against the ledger in the same transaction. Reversing an already
// reversed movement fails with AlreadyFinalized. Reservation holds owned by a
// reservation are released through the reservation, not reversed here.
func (s *LedgerService) ReverseMovement(ctx context.Context, tenantID, movementID uuid.UUID, req ReverseMovementRequest) (*ReverseMovementResponse, error) {
	var original *inventory.Movement
	var comp *postingResult
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		original, err = repos.Movements().LockByID(ctx, tenantID, movementID)
		if err != nil {
			return err
		}
		if ownedByReservation(original) {
			return shared.Errorf(shared.ErrInvalidStateTransition,
				"movement %s belongs to reservation %s; cancel or fulfill the reservation instead", original.ID, original.Reference.Number)
		}
		operator := req.OperatorID
		in, err := original.CompensatingInput(defaultDocumentNumber("RV", uuid.New()), &operator, req.Reason)
		if err != nil {
			return err
		}
		p, err := compensatingPosting(in)
		if err != nil {
			return err
		}
		comp, err = post(ctx, repos, tenantID, p)
		if err != nil {
			return err
		}

		events, err := original.Reverse(comp.movement.ID, req.OperatorID, req.Reason)
		if err != nil {
			return err
		}
		if err := repos.Movements().MarkReversed(ctx, original); err != nil {
			return err
		}
		return repos.Events().Record(ctx, events...)
	})
	if err != nil {
		s.recordFailure(ctx, tenantID, "reverse", err)
		return nil, err
	}

	s.recordPosting(ctx, tenantID, comp)
	s.logger.Info("Movement reversed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("movement_id", movementID.String()),
		zap.String("compensation_id", comp.movement.ID.String()),
		zap.String("reason", req.Reason),
	)
	return &ReverseMovementResponse{
		Reversed:     ToMovementResponse(original),
		Compensation: ToMovementResponse(comp.movement),
		StockLine:    ToStockLineResponse(comp.line),
	}, nil
}

// GetStockLine retrieves a ledger row by ID
func (s *LedgerService) GetStockLine(ctx context.Context, tenantID, id uuid.UUID) (*StockLineResponse, error) {
	line, err := s.stockLineRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToStockLineResponse(line)
	return &resp, nil
}

// GetStockLineByKey retrieves the ledger row for a key
func (s *LedgerService) GetStockLineByKey(ctx context.Context, tenantID uuid.UUID, key inventory.StockKey) (*StockLineResponse, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	line, err := s.stockLineRepo.FindByKey(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	resp := ToStockLineResponse(line)
	return &resp, nil
}

// ListStockLines lists ledger rows with filtering and pagination
func (s *LedgerService) ListStockLines(ctx context.Context, tenantID uuid.UUID, filter StockLineListFilter) (*shared.Paginated[StockLineResponse], error) {
	df := filter.toDomain()
	lines, total, err := s.stockLineRepo.List(ctx, tenantID, df)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToStockLineResponses(lines), total, df.Page, df.PageSize)
	return &page, nil
}

// GetMovement retrieves a movement by ID
func (s *LedgerService) GetMovement(ctx context.Context, tenantID, id uuid.UUID) (*MovementResponse, error) {
	m, err := s.movementRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToMovementResponse(m)
	return &resp, nil
}

// ListMovements returns movement history, newest sequence first
func (s *LedgerService) ListMovements(ctx context.Context, tenantID uuid.UUID, filter MovementListFilter) (*shared.Paginated[MovementResponse], error) {
	df, err := filter.toDomain()
	if err != nil {
		return nil, err
	}
	movements, total, err := s.movementRepo.List(ctx, tenantID, df)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToMovementResponses(movements), total, df.Page, df.PageSize)
	return &page, nil
}

// CheckVariantIntegrity reports whether a product's stock in a warehouse is
// held at variant level only
func (s *LedgerService) CheckVariantIntegrity(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (*VariantIntegrityResponse, error) {
	lines, err := s.stockLineRepo.FindByProductAndWarehouse(ctx, tenantID, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	resp := ToVariantIntegrityResponse(inventory.CheckVariantIntegrity(productID, warehouseID, lines))
	if !resp.IsValid {
		s.logger.Warn("Variant integrity violated",
			zap.String("tenant_id", tenantID.String()),
			zap.String("product_id", productID.String()),
			zap.String("warehouse_id", warehouseID.String()),
			zap.String("discrepancy", resp.Discrepancy.String()),
		)
	}
	return &resp, nil
}

func (s *LedgerService) postOne(ctx context.Context, tenantID uuid.UUID, p posting) (*PostingResponse, error) {
	var res *postingResult
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		res, err = post(ctx, repos, tenantID, p)
		return err
	})
	if err != nil {
		s.recordFailure(ctx, tenantID, string(p.op), err)
		return nil, err
	}

	s.recordPosting(ctx, tenantID, res)
	s.logger.Info("Stock posted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("operation", string(p.op)),
		zap.String("stock_key", p.key.String()),
		zap.String("movement_type", string(res.movement.MovementType)),
		zap.Int64("sequence_number", res.movement.SequenceNumber),
		zap.String("quantity", res.line.Quantity.String()),
		zap.String("reserved_quantity", res.line.ReservedQuantity.String()),
	)
	return toPostingResponse(res), nil
}

func (s *LedgerService) recordPosting(ctx context.Context, tenantID uuid.UUID, res *postingResult) {
	if s.metrics == nil || res == nil || res.movement == nil {
		return
	}
	s.metrics.RecordMovement(ctx, tenantID, string(res.movement.MovementType), res.movement.Quantity)
}

func (s *LedgerService) recordFailure(ctx context.Context, tenantID uuid.UUID, operation string, err error) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		s.logger.Info("Ledger posting rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("operation", operation),
			zap.String("code", domainErr.Code),
			zap.String("message", domainErr.Message),
		)
		if s.metrics != nil {
			s.metrics.RecordRejectedPosting(ctx, tenantID, operation, domainErr.Code)
		}
		return
	}
	s.logger.Error("Ledger posting failed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("operation", operation),
		zap.Error(err),
	)
}

// ownedByReservation reports whether the movement is a hold or release posted
// for a reservation document
func ownedByReservation(m *inventory.Movement) bool {
	switch m.MovementType {
	case inventory.MovementTypeReservation, inventory.MovementTypeReservationRelease:
		return m.Reference.Type == ReservationReferenceType
	}
	return false
}
