package inventory

import (
	"context"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultExpiryBatchSize bounds the reservations expired per sweep
const DefaultExpiryBatchSize = 200

// ReservationExpirationService expires overdue reservations across tenants
// and releases their reserved stock. Each reservation is handled in its own
// transaction so one failure does not block the batch.
type ReservationExpirationService struct {
	reservationRepo    inventory.ReservationRepository
	reservationService *ReservationService
	batchSize          int
	logger             *zap.Logger
}

// NewReservationExpirationService creates a new ReservationExpirationService
func NewReservationExpirationService(
	reservationRepo inventory.ReservationRepository,
	reservationService *ReservationService,
	batchSize int,
	logger *zap.Logger,
) *ReservationExpirationService {
	if batchSize <= 0 {
		batchSize = DefaultExpiryBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationExpirationService{
		reservationRepo:    reservationRepo,
		reservationService: reservationService,
		batchSize:          batchSize,
		logger:             logger,
	}
}

// ExpireDue expires every open reservation whose expiration date is before asOf
func (s *ReservationExpirationService) ExpireDue(ctx context.Context, asOf time.Time) (*ExpiredReservationStats, error) {
	stats := &ExpiredReservationStats{
		ProcessedAt: asOf,
		ReleasedQty: decimal.Zero,
	}

	due, err := s.reservationRepo.FindExpired(ctx, asOf, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to find expired reservations", zap.Error(err))
		return nil, err
	}

	stats.TotalExpired = len(due)
	if stats.TotalExpired == 0 {
		s.logger.Debug("No expired reservations found")
		return stats, nil
	}

	s.logger.Info("Found expired reservations", zap.Int("count", stats.TotalExpired))

	for _, r := range due {
		resp, err := s.reservationService.Expire(ctx, r.TenantID, r.ID)
		if err != nil {
			s.logger.Error("Failed to expire reservation",
				zap.String("tenant_id", r.TenantID.String()),
				zap.String("reservation_id", r.ID.String()),
				zap.String("reservation_number", r.ReservationNumber),
				zap.Error(err),
			)
			stats.FailedReleases++
			continue
		}
		stats.SuccessReleased++
		stats.ReleasedQty = stats.ReleasedQty.Add(resp.Quantity.Sub(resp.FulfilledQuantity))
	}

	s.logger.Info("Completed reservation expiry sweep",
		zap.Int("total", stats.TotalExpired),
		zap.Int("released", stats.SuccessReleased),
		zap.Int("failed", stats.FailedReleases),
		zap.String("released_quantity", stats.ReleasedQty.String()),
	)
	return stats, nil
}
