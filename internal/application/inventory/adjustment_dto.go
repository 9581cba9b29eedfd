package inventory

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustmentItemRequest describes one corrected ledger row. The system
// quantity is read from the ledger when the item is added.
type AdjustmentItemRequest struct {
	ProductID      uuid.UUID       `json:"product_id" binding:"required"`
	VariantID      *uuid.UUID      `json:"variant_id"`
	LocationID     *uuid.UUID      `json:"location_id"`
	ActualQuantity decimal.Decimal `json:"actual_quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	LotNumber      string          `json:"lot_number" binding:"omitempty,max=100"`
	SerialNumber   string          `json:"serial_number" binding:"omitempty,max=100"`
	Notes          string          `json:"notes" binding:"omitempty,max=500"`
}

// CreateAdjustmentRequest creates a draft adjustment
type CreateAdjustmentRequest struct {
	WarehouseID      uuid.UUID               `json:"warehouse_id" binding:"required"`
	AdjustmentNumber string                  `json:"adjustment_number" binding:"omitempty,max=50"`
	Reason           string                  `json:"reason" binding:"omitempty,oneof=COUNT_VARIANCE DAMAGE LOSS EXPIRY CORRECTION OTHER"`
	Description      string                  `json:"description" binding:"omitempty,max=500"`
	Items            []AdjustmentItemRequest `json:"items" binding:"omitempty,dive"`
	CreatedBy        *uuid.UUID              `json:"created_by"`
}

// ApproveRequest approves a document awaiting approval
type ApproveRequest struct {
	ApprovedBy uuid.UUID `json:"approved_by" binding:"required"`
}

// RejectRequest rejects a document awaiting approval
type RejectRequest struct {
	RejectedBy uuid.UUID `json:"rejected_by" binding:"required"`
	Reason     string    `json:"reason" binding:"required,max=255"`
}

// CancelRequest cancels a document
type CancelRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=255"`
}

// ProcessAdjustmentRequest applies an approved adjustment to the ledger
type ProcessAdjustmentRequest struct {
	OperatorID *uuid.UUID `json:"operator_id"`
}

// AdjustmentItemResponse represents an adjustment item in API responses
type AdjustmentItemResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        uuid.UUID       `json:"product_id"`
	VariantID        *uuid.UUID      `json:"variant_id,omitempty"`
	LocationID       *uuid.UUID      `json:"location_id,omitempty"`
	SystemQuantity   decimal.Decimal `json:"system_quantity"`
	ActualQuantity   decimal.Decimal `json:"actual_quantity"`
	VarianceQuantity decimal.Decimal `json:"variance_quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	CostImpact       decimal.Decimal `json:"cost_impact"`
	LotNumber        string          `json:"lot_number,omitempty"`
	SerialNumber     string          `json:"serial_number,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

// AdjustmentResponse represents an inventory adjustment in API responses
type AdjustmentResponse struct {
	ID                    uuid.UUID                `json:"id"`
	TenantID              uuid.UUID                `json:"tenant_id"`
	AdjustmentNumber      string                   `json:"adjustment_number"`
	WarehouseID           uuid.UUID                `json:"warehouse_id"`
	Reason                string                   `json:"reason"`
	Description           string                   `json:"description,omitempty"`
	StockCountID          *uuid.UUID               `json:"stock_count_id,omitempty"`
	Status                string                   `json:"status"`
	Items                 []AdjustmentItemResponse `json:"items"`
	TotalVarianceQuantity decimal.Decimal          `json:"total_variance_quantity"`
	TotalCostImpact       decimal.Decimal          `json:"total_cost_impact"`
	SubmittedAt           *time.Time               `json:"submitted_at,omitempty"`
	ApprovedAt            *time.Time               `json:"approved_at,omitempty"`
	ApprovedByUserID      *uuid.UUID               `json:"approved_by_user_id,omitempty"`
	RejectedAt            *time.Time               `json:"rejected_at,omitempty"`
	RejectionReason       string                   `json:"rejection_reason,omitempty"`
	ProcessedAt           *time.Time               `json:"processed_at,omitempty"`
	CancelledAt           *time.Time               `json:"cancelled_at,omitempty"`
	CancellationReason    string                   `json:"cancellation_reason,omitempty"`
	CreatedBy             *uuid.UUID               `json:"created_by,omitempty"`
	CreatedAt             time.Time                `json:"created_at"`
	UpdatedAt             time.Time                `json:"updated_at"`
	Version               int                      `json:"version"`
}

// ToAdjustmentResponse converts a domain InventoryAdjustment to a response
func ToAdjustmentResponse(a *inventory.InventoryAdjustment) AdjustmentResponse {
	items := make([]AdjustmentItemResponse, len(a.Items))
	for i := range a.Items {
		it := &a.Items[i]
		items[i] = AdjustmentItemResponse{
			ID:               it.ID,
			ProductID:        it.ProductID,
			VariantID:        it.VariantID,
			LocationID:       it.LocationID,
			SystemQuantity:   it.SystemQuantity,
			ActualQuantity:   it.ActualQuantity,
			VarianceQuantity: it.VarianceQuantity(),
			UnitCost:         it.UnitCost,
			CostImpact:       it.CostImpact(),
			LotNumber:        it.LotNumber,
			SerialNumber:     it.SerialNumber,
			Notes:            it.Notes,
		}
	}
	return AdjustmentResponse{
		ID:                    a.ID,
		TenantID:              a.TenantID,
		AdjustmentNumber:      a.AdjustmentNumber,
		WarehouseID:           a.WarehouseID,
		Reason:                string(a.Reason),
		Description:           a.Description,
		StockCountID:          a.StockCountID,
		Status:                string(a.Status),
		Items:                 items,
		TotalVarianceQuantity: a.TotalVarianceQuantity(),
		TotalCostImpact:       a.TotalCostImpact,
		SubmittedAt:           a.SubmittedAt,
		ApprovedAt:            a.ApprovedAt,
		ApprovedByUserID:      a.ApprovedByUserID,
		RejectedAt:            a.RejectedAt,
		RejectionReason:       a.RejectionReason,
		ProcessedAt:           a.ProcessedAt,
		CancelledAt:           a.CancelledAt,
		CancellationReason:    a.CancellationReason,
		CreatedBy:             a.GetCreatedBy(),
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
		Version:               a.Version,
	}
}

// AdjustmentListFilter represents filter options for adjustment lists
type AdjustmentListFilter struct {
	WarehouseID  *uuid.UUID `form:"warehouse_id"`
	StockCountID *uuid.UUID `form:"stock_count_id"`
	Status       string     `form:"status" binding:"omitempty,oneof=DRAFT PENDING_APPROVAL APPROVED REJECTED PROCESSED CANCELLED"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy      string     `form:"order_by"`
	OrderDir     string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f AdjustmentListFilter) toDomain() shared.Filter {
	filter := shared.Filter{Page: f.Page, PageSize: f.PageSize, OrderBy: f.OrderBy, OrderDir: f.OrderDir, Filters: map[string]any{}}
	if f.WarehouseID != nil {
		filter.Filters["warehouse_id"] = *f.WarehouseID
	}
	if f.StockCountID != nil {
		filter.Filters["stock_count_id"] = *f.StockCountID
	}
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	return filter.Normalize()
}
