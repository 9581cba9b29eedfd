package inventory

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateReservationRequest reserves ledger stock for a pending document
type CreateReservationRequest struct {
	StockKeyRequest
	Quantity          decimal.Decimal  `json:"quantity"`
	ReservationType   string           `json:"reservation_type" binding:"omitempty,oneof=SALES_ORDER TRANSFER PRODUCTION MANUAL"`
	ReservationNumber string           `json:"reservation_number" binding:"omitempty,max=50"`
	ExpirationDate    *time.Time       `json:"expiration_date"`
	Reference         ReferenceRequest `json:"reference"`
	Notes             string           `json:"notes" binding:"omitempty,max=500"`
	OperatorID        *uuid.UUID       `json:"operator_id"`
}

// FulfillReservationRequest issues the reserved stock
type FulfillReservationRequest struct {
	// Quantity is optional; empty fulfils everything that remains
	Quantity     *decimal.Decimal `json:"quantity"`
	MovementType string           `json:"movement_type" binding:"omitempty,oneof=SALE CONSUMPTION"`
	UnitCost     decimal.Decimal  `json:"unit_cost"`
	OperatorID   *uuid.UUID       `json:"operator_id"`
}

// CancelReservationRequest releases the remaining reserved stock
type CancelReservationRequest struct {
	Reason     string     `json:"reason" binding:"omitempty,max=255"`
	OperatorID *uuid.UUID `json:"operator_id"`
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	ReservationNumber string          `json:"reservation_number"`
	ProductID         uuid.UUID       `json:"product_id"`
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	LocationID        *uuid.UUID      `json:"location_id,omitempty"`
	VariantID         *uuid.UUID      `json:"variant_id,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	FulfilledQuantity decimal.Decimal `json:"fulfilled_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	Status            string          `json:"status"`
	ReservationType   string          `json:"reservation_type"`
	ReferenceType     string          `json:"reference_type,omitempty"`
	ReferenceNumber   string          `json:"reference_number,omitempty"`
	ReferenceID       *uuid.UUID      `json:"reference_id,omitempty"`
	ReservationDate   time.Time       `json:"reservation_date"`
	ExpirationDate    *time.Time      `json:"expiration_date,omitempty"`
	IsExpired         bool            `json:"is_expired"`
	FulfilledDate     *time.Time      `json:"fulfilled_date,omitempty"`
	CancelledDate     *time.Time      `json:"cancelled_date,omitempty"`
	CancelReason      string          `json:"cancel_reason,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedBy         *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// ToReservationResponse converts a domain Reservation to a response
func ToReservationResponse(r *inventory.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:                r.ID,
		TenantID:          r.TenantID,
		ReservationNumber: r.ReservationNumber,
		ProductID:         r.ProductID,
		WarehouseID:       r.WarehouseID,
		LocationID:        r.LocationID,
		VariantID:         r.VariantID,
		Quantity:          r.Quantity,
		FulfilledQuantity: r.FulfilledQuantity,
		RemainingQuantity: r.RemainingQuantity(),
		Status:            string(r.Status),
		ReservationType:   string(r.ReservationType),
		ReferenceType:     r.Reference.Type,
		ReferenceNumber:   r.Reference.Number,
		ReferenceID:       r.Reference.ID,
		ReservationDate:   r.ReservationDate,
		ExpirationDate:    r.ExpirationDate,
		IsExpired:         r.IsOpen() && r.IsExpired(time.Now()),
		FulfilledDate:     r.FulfilledDate,
		CancelledDate:     r.CancelledDate,
		CancelReason:      r.CancelReason,
		Notes:             r.Notes,
		CreatedBy:         r.GetCreatedBy(),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		Version:           r.Version,
	}
}

// ReservationListFilter represents filter options for reservation lists
type ReservationListFilter struct {
	ProductID   *uuid.UUID `form:"product_id"`
	WarehouseID *uuid.UUID `form:"warehouse_id"`
	Status      string     `form:"status" binding:"omitempty,oneof=ACTIVE PARTIALLY_FULFILLED FULFILLED CANCELLED EXPIRED"`
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy     string     `form:"order_by"`
	OrderDir    string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f ReservationListFilter) toDomain() shared.Filter {
	filter := shared.Filter{Page: f.Page, PageSize: f.PageSize, OrderBy: f.OrderBy, OrderDir: f.OrderDir, Filters: map[string]any{}}
	if f.ProductID != nil {
		filter.Filters["product_id"] = *f.ProductID
	}
	if f.WarehouseID != nil {
		filter.Filters["warehouse_id"] = *f.WarehouseID
	}
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	return filter.Normalize()
}

// ExpiredReservationStats summarizes one expiry sweep
type ExpiredReservationStats struct {
	TotalExpired    int             `json:"total_expired"`
	SuccessReleased int             `json:"success_released"`
	FailedReleases  int             `json:"failed_releases"`
	ReleasedQty     decimal.Decimal `json:"released_quantity"`
	ProcessedAt     time.Time       `json:"processed_at"`
}
