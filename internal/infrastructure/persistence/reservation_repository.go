package persistence

import (
	"context"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReservationRepository implements inventory.ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID finds a reservation by ID
func (r *GormReservationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.Reservation, error) {
	return r.findByID(r.db.WithContext(ctx), tenantID, id)
}

// LockByID finds a reservation with SELECT ... FOR UPDATE
func (r *GormReservationRepository) LockByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.Reservation, error) {
	return r.findByID(forUpdate(r.db.WithContext(ctx)), tenantID, id)
}

func (r *GormReservationRepository) findByID(db *gorm.DB, tenantID, id uuid.UUID) (*inventory.Reservation, error) {
	var model models.ReservationModel
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindExpired returns open reservations that expired before asOf, across all
// tenants, oldest expiration first
func (r *GormReservationRepository) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]inventory.Reservation, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.ReservationModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND expiration_date IS NOT NULL AND expiration_date < ?",
			[]inventory.ReservationStatus{inventory.ReservationStatusActive, inventory.ReservationStatusPartiallyFulfilled}, asOf).
		Order("expiration_date ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return reservationsToDomain(rows), nil
}

// List returns reservations matching the filter and the total match count
func (r *GormReservationRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]inventory.Reservation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ReservationModel{}).Where("tenant_id = ?", tenantID)
	for key, value := range filter.Filters {
		switch key {
		case "product_id":
			query = query.Where("product_id = ?", value)
		case "warehouse_id":
			query = query.Where("warehouse_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		}
	}

	var rows []models.ReservationModel
	total, err := findPage(query, filter, reservationSort, &rows)
	if err != nil {
		return nil, 0, err
	}
	return reservationsToDomain(rows), total, nil
}

// Create inserts a new reservation
func (r *GormReservationRepository) Create(ctx context.Context, res *inventory.Reservation) error {
	return r.db.WithContext(ctx).Create(models.ReservationModelFromDomain(res)).Error
}

// Save updates a reservation with an optimistic version check
func (r *GormReservationRepository) Save(ctx context.Context, res *inventory.Reservation) error {
	model := models.ReservationModelFromDomain(res)
	model.Version = res.Version + 1
	model.UpdatedAt = time.Now()
	if err := updateVersioned(ctx, r.db, model, res.TenantID, res.Version); err != nil {
		return err
	}
	res.Version = model.Version
	res.UpdatedAt = model.UpdatedAt
	return nil
}

func reservationsToDomain(rows []models.ReservationModel) []inventory.Reservation {
	out := make([]inventory.Reservation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormReservationRepository implements ReservationRepository
var _ inventory.ReservationRepository = (*GormReservationRepository)(nil)
