package inventory

import (
	"context"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReservationReferenceType tags ledger movements posted on behalf of a reservation
const ReservationReferenceType = "RESERVATION"

// ReservationService keeps reservations and the reserved quantity of the
// ledger in step. Each call changes both in one transaction.
type ReservationService struct {
	txScope         TransactionScope
	reservationRepo inventory.ReservationRepository
	logger          *zap.Logger
	now             func() time.Time
	defaultTTL      time.Duration
}

// NewReservationService creates a new ReservationService
func NewReservationService(txScope TransactionScope, reservationRepo inventory.ReservationRepository, logger *zap.Logger) *ReservationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationService{
		txScope:         txScope,
		reservationRepo: reservationRepo,
		logger:          logger,
		now:             time.Now,
	}
}

// SetDefaultTTL sets the lifetime given to reservations created without an
// expiration date. Zero keeps them open until fulfilled or cancelled.
func (s *ReservationService) SetDefaultTTL(ttl time.Duration) {
	s.defaultTTL = ttl
}

// Create reserves ledger stock and records the reservation
func (s *ReservationService) Create(ctx context.Context, tenantID uuid.UUID, req CreateReservationRequest) (*ReservationResponse, error) {
	var res *inventory.Reservation
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		number := req.ReservationNumber
		if number == "" {
			var err error
			if number, err = nextDocumentNumber(ctx, repos, tenantID, "RS"); err != nil {
				return err
			}
		}

		expiresAt := req.ExpirationDate
		if expiresAt == nil && s.defaultTTL > 0 {
			t := s.now().Add(s.defaultTTL)
			expiresAt = &t
		}
		r, events, err := inventory.NewReservation(tenantID, req.Key(), number, req.Quantity,
			inventory.ReservationType(req.ReservationType), expiresAt)
		if err != nil {
			return err
		}
		r.Reference = req.Reference.toDomain()
		r.Notes = req.Notes
		if req.OperatorID != nil {
			r.SetCreatedBy(*req.OperatorID)
		}

		if _, err := post(ctx, repos, tenantID, posting{
			op:       opReserve,
			key:      r.StockKey(),
			quantity: r.Quantity,
			movement: reservationMovement(r, req.OperatorID, decimal.Zero),
		}); err != nil {
			return err
		}
		if err := repos.Reservations().Create(ctx, r); err != nil {
			return err
		}
		res = r
		return repos.Events().Record(ctx, events...)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reservation created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("reservation_id", res.ID.String()),
		zap.String("reservation_number", res.ReservationNumber),
		zap.String("quantity", res.Quantity.String()),
	)
	resp := ToReservationResponse(res)
	return &resp, nil
}

// Fulfill issues reserved stock: the fulfilled quantity is released from the
// reservation and decreased on the ledger. Without a quantity everything
// that remains is fulfilled.
func (s *ReservationService) Fulfill(ctx context.Context, tenantID, id uuid.UUID, req FulfillReservationRequest) (*ReservationResponse, error) {
	return s.transition(ctx, tenantID, id, "fulfil", func(repos TransactionalRepositories, r *inventory.Reservation) ([]shared.DomainEvent, error) {
		var qty decimal.Decimal
		var events []shared.DomainEvent
		var err error
		if req.Quantity != nil {
			qty = *req.Quantity
			events, err = r.PartialFulfill(qty)
		} else {
			qty, events, err = r.Fulfill()
		}
		if err != nil {
			return nil, err
		}

		mv := reservationMovement(r, req.OperatorID, req.UnitCost)
		if _, err := post(ctx, repos, tenantID, posting{op: opRelease, key: r.StockKey(), quantity: qty, movement: mv}); err != nil {
			return nil, err
		}
		mv.MovementType = fulfilmentMovementType(r.ReservationType, req.MovementType)
		if _, err := post(ctx, repos, tenantID, posting{op: opDecrease, key: r.StockKey(), quantity: qty, movement: mv}); err != nil {
			return nil, err
		}
		return events, nil
	})
}

// PartialFulfill fulfils part of the reservation; the quantity is required
// and may not exceed the remaining quantity
func (s *ReservationService) PartialFulfill(ctx context.Context, tenantID, id uuid.UUID, req FulfillReservationRequest) (*ReservationResponse, error) {
	if req.Quantity == nil {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "quantity is required for a partial fulfilment")
	}
	return s.Fulfill(ctx, tenantID, id, req)
}

// Cancel ends the reservation and releases what remains reserved
func (s *ReservationService) Cancel(ctx context.Context, tenantID, id uuid.UUID, req CancelReservationRequest) (*ReservationResponse, error) {
	return s.transition(ctx, tenantID, id, "cancel", func(repos TransactionalRepositories, r *inventory.Reservation) ([]shared.DomainEvent, error) {
		release, events, err := r.Cancel(req.Reason)
		if err != nil {
			return nil, err
		}
		if err := releaseRemaining(ctx, repos, tenantID, r, release, req.OperatorID); err != nil {
			return nil, err
		}
		return events, nil
	})
}

// Expire ends an overdue reservation and releases what remains reserved
func (s *ReservationService) Expire(ctx context.Context, tenantID, id uuid.UUID) (*ReservationResponse, error) {
	return s.transition(ctx, tenantID, id, "expire", func(repos TransactionalRepositories, r *inventory.Reservation) ([]shared.DomainEvent, error) {
		release, events, err := r.Expire(s.now())
		if err != nil {
			return nil, err
		}
		if err := releaseRemaining(ctx, repos, tenantID, r, release, nil); err != nil {
			return nil, err
		}
		return events, nil
	})
}

// GetByID retrieves a reservation
func (s *ReservationService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*ReservationResponse, error) {
	r, err := s.reservationRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToReservationResponse(r)
	return &resp, nil
}

// List lists reservations with filtering and pagination
func (s *ReservationService) List(ctx context.Context, tenantID uuid.UUID, filter ReservationListFilter) (*shared.Paginated[ReservationResponse], error) {
	df := filter.toDomain()
	items, total, err := s.reservationRepo.List(ctx, tenantID, df)
	if err != nil {
		return nil, err
	}
	out := make([]ReservationResponse, len(items))
	for i := range items {
		out[i] = ToReservationResponse(&items[i])
	}
	page := shared.NewPaginated(out, total, df.Page, df.PageSize)
	return &page, nil
}

type reservationStep func(repos TransactionalRepositories, r *inventory.Reservation) ([]shared.DomainEvent, error)

func (s *ReservationService) transition(ctx context.Context, tenantID, id uuid.UUID, action string, step reservationStep) (*ReservationResponse, error) {
	var res *inventory.Reservation
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := repos.Reservations().LockByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		events, err := step(repos, r)
		if err != nil {
			return err
		}
		if err := repos.Reservations().Save(ctx, r); err != nil {
			return err
		}
		res = r
		return repos.Events().Record(ctx, events...)
	})
	if err != nil {
		logRejected(s.logger, "Reservation transition rejected", tenantID, id, action, err)
		return nil, err
	}

	s.logger.Info("Reservation updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("reservation_id", id.String()),
		zap.String("action", action),
		zap.String("status", string(res.Status)),
		zap.String("remaining_quantity", res.RemainingQuantity().String()),
	)
	resp := ToReservationResponse(res)
	return &resp, nil
}

func releaseRemaining(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, r *inventory.Reservation, qty decimal.Decimal, operator *uuid.UUID) error {
	if !qty.IsPositive() {
		return nil
	}
	_, err := post(ctx, repos, tenantID, posting{
		op:       opRelease,
		key:      r.StockKey(),
		quantity: qty,
		movement: reservationMovement(r, operator, decimal.Zero),
	})
	return err
}

func reservationMovement(r *inventory.Reservation, operator *uuid.UUID, unitCost decimal.Decimal) inventory.MovementInput {
	id := r.ID
	return inventory.MovementInput{
		UnitCost: unitCost,
		Reference: inventory.ReferenceDocument{
			Type:   ReservationReferenceType,
			Number: r.ReservationNumber,
			ID:     &id,
		},
		Description: r.Notes,
		UserID:      operator,
	}
}

// fulfilmentMovementType picks the issue type for fulfilled reservations
func fulfilmentMovementType(rt inventory.ReservationType, requested string) inventory.MovementType {
	if requested != "" {
		return inventory.MovementType(requested)
	}
	if rt == inventory.ReservationTypeProduction {
		return inventory.MovementTypeConsumption
	}
	return inventory.MovementTypeSale
}
