package inventory

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CountItemRequest adds a line to a stock or cycle count. The system
// quantity is taken from the ledger when the line is added.
type CountItemRequest struct {
	ProductID    uuid.UUID       `json:"product_id" binding:"required"`
	VariantID    *uuid.UUID      `json:"variant_id"`
	LocationID   *uuid.UUID      `json:"location_id"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	LotNumber    string          `json:"lot_number" binding:"omitempty,max=100"`
	SerialNumber string          `json:"serial_number" binding:"omitempty,max=100"`
}

// AddCountItemsRequest adds several lines at once
type AddCountItemsRequest struct {
	Items []CountItemRequest `json:"items" binding:"required,min=1,dive"`
}

// RecordCountRequest records the counted quantity of one line
type RecordCountRequest struct {
	ItemID          uuid.UUID       `json:"item_id" binding:"required"`
	CountedQuantity decimal.Decimal `json:"counted_quantity"`
	CountedBy       *uuid.UUID      `json:"counted_by"`
	Notes           string          `json:"notes" binding:"omitempty,max=500"`
}

// RecordCountsRequest records several counted quantities at once
type RecordCountsRequest struct {
	Counts []RecordCountRequest `json:"counts" binding:"required,min=1,dive"`
}

// ApproveCountRequest approves a completed count
type ApproveCountRequest struct {
	ApprovedBy uuid.UUID `json:"approved_by" binding:"required"`
	// OperatorID is recorded on ledger movements posted by auto-adjustment
	OperatorID *uuid.UUID `json:"operator_id"`
}

// CreateStockCountRequest creates a draft stock count
type CreateStockCountRequest struct {
	WarehouseID uuid.UUID          `json:"warehouse_id" binding:"required"`
	LocationID  *uuid.UUID         `json:"location_id"`
	CountNumber string             `json:"count_number" binding:"omitempty,max=50"`
	CountType   string             `json:"count_type" binding:"omitempty,oneof=FULL CYCLE SPOT"`
	CountDate   *time.Time         `json:"count_date"`
	Description string             `json:"description" binding:"omitempty,max=500"`
	Notes       string             `json:"notes" binding:"omitempty,max=1000"`
	AutoAdjust  bool               `json:"auto_adjust"`
	Items       []CountItemRequest `json:"items" binding:"omitempty,dive"`
	CreatedBy   *uuid.UUID         `json:"created_by"`
}

// ToleranceRequest carries the variance tolerance of a cycle count
type ToleranceRequest struct {
	QuantityPercent                     *decimal.Decimal `json:"quantity_tolerance_percent"`
	Value                               *decimal.Decimal `json:"value_tolerance"`
	BlockAutoApproveOnToleranceExceeded bool             `json:"block_auto_approve_on_tolerance_exceeded"`
}

func (r ToleranceRequest) toDomain() inventory.TolerancePolicy {
	return inventory.TolerancePolicy{
		QuantityPercent:                     r.QuantityPercent,
		Value:                               r.Value,
		BlockAutoApproveOnToleranceExceeded: r.BlockAutoApproveOnToleranceExceeded,
	}
}

// CreateCycleCountRequest creates a planned cycle count
type CreateCycleCountRequest struct {
	WarehouseID   uuid.UUID          `json:"warehouse_id" binding:"required"`
	CountNumber   string             `json:"count_number" binding:"omitempty,max=50"`
	Name          string             `json:"name" binding:"omitempty,max=200"`
	ABCClass      string             `json:"abc_class" binding:"omitempty,oneof=A B C a b c"`
	Frequency     string             `json:"frequency" binding:"omitempty,oneof=DAILY WEEKLY MONTHLY QUARTERLY ANNUALLY"`
	ScheduledDate *time.Time         `json:"scheduled_date"`
	LocationID    *uuid.UUID         `json:"location_id"`
	ZoneID        *uuid.UUID         `json:"zone_id"`
	CategoryID    *uuid.UUID         `json:"category_id"`
	Tolerance     *ToleranceRequest  `json:"tolerance"`
	Description   string             `json:"description" binding:"omitempty,max=500"`
	Items         []CountItemRequest `json:"items" binding:"omitempty,dive"`
	CreatedBy     *uuid.UUID         `json:"created_by"`
}

// CountItemResponse represents a count line in API responses
type CountItemResponse struct {
	ID                uuid.UUID        `json:"id"`
	ProductID         uuid.UUID        `json:"product_id"`
	VariantID         *uuid.UUID       `json:"variant_id,omitempty"`
	LocationID        *uuid.UUID       `json:"location_id,omitempty"`
	SystemQuantity    decimal.Decimal  `json:"system_quantity"`
	CountedQuantity   *decimal.Decimal `json:"counted_quantity,omitempty"`
	Difference        decimal.Decimal  `json:"difference"`
	VariancePercent   decimal.Decimal  `json:"variance_percent"`
	VarianceValue     decimal.Decimal  `json:"variance_value"`
	UnitCost          decimal.Decimal  `json:"unit_cost"`
	LotNumber         string           `json:"lot_number,omitempty"`
	SerialNumber      string           `json:"serial_number,omitempty"`
	Notes             string           `json:"notes,omitempty"`
	CountedAt         *time.Time       `json:"counted_at,omitempty"`
	CountedBy         *uuid.UUID       `json:"counted_by,omitempty"`
	IsCounted         bool             `json:"is_counted"`
	HasVariance       bool             `json:"has_variance"`
	IsAdjusted        bool             `json:"is_adjusted"`
	ExceedsTolerance  bool             `json:"exceeds_tolerance,omitempty"`
}

// CountSheetResponse holds the fields shared by stock and cycle count responses
type CountSheetResponse struct {
	Status             string              `json:"status"`
	Items              []CountItemResponse `json:"items"`
	TotalItems         int                 `json:"total_items"`
	CountedItems       int                 `json:"counted_items"`
	VarianceItems      int                 `json:"variance_items"`
	AccuracyPercent    decimal.Decimal     `json:"accuracy_percent"`
	TotalVarianceValue decimal.Decimal     `json:"total_variance_value"`
	StartedAt          *time.Time          `json:"started_at,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	ApprovedAt         *time.Time          `json:"approved_at,omitempty"`
	RejectedAt         *time.Time          `json:"rejected_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	ProcessedAt        *time.Time          `json:"processed_at,omitempty"`
	CountedByUserID    *uuid.UUID          `json:"counted_by_user_id,omitempty"`
	ApprovedByUserID   *uuid.UUID          `json:"approved_by_user_id,omitempty"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
	RejectionReason    string              `json:"rejection_reason,omitempty"`
}

func toCountSheetResponse(c *inventory.CountSheet, exceeds func(*inventory.CountItem) bool) CountSheetResponse {
	items := make([]CountItemResponse, len(c.Items))
	for i := range c.Items {
		it := &c.Items[i]
		items[i] = CountItemResponse{
			ID:              it.ID,
			ProductID:       it.ProductID,
			VariantID:       it.VariantID,
			LocationID:      it.LocationID,
			SystemQuantity:  it.SystemQuantity,
			CountedQuantity: it.CountedQuantity,
			Difference:      it.Difference(),
			VariancePercent: it.VariancePercent(),
			VarianceValue:   it.VarianceValue(),
			UnitCost:        it.UnitCost,
			LotNumber:       it.LotNumber,
			SerialNumber:    it.SerialNumber,
			Notes:           it.Notes,
			CountedAt:       it.CountedAt,
			CountedBy:       it.CountedBy,
			IsCounted:       it.IsCounted(),
			HasVariance:     it.HasVariance(),
			IsAdjusted:      it.IsAdjusted,
		}
		if exceeds != nil {
			items[i].ExceedsTolerance = exceeds(it)
		}
	}
	return CountSheetResponse{
		Status:             string(c.Status),
		Items:              items,
		TotalItems:         c.ItemCount(),
		CountedItems:       c.CountedItemCount(),
		VarianceItems:      len(c.VarianceItems()),
		AccuracyPercent:    c.AccuracyPercent,
		TotalVarianceValue: c.TotalVarianceValue(),
		StartedAt:          c.StartedAt,
		CompletedAt:        c.CompletedAt,
		ApprovedAt:         c.ApprovedAt,
		RejectedAt:         c.RejectedAt,
		CancelledAt:        c.CancelledAt,
		ProcessedAt:        c.ProcessedAt,
		CountedByUserID:    c.CountedByUserID,
		ApprovedByUserID:   c.ApprovedByUserID,
		CancellationReason: c.CancellationReason,
		RejectionReason:    c.RejectionReason,
	}
}

// StockCountResponse represents a stock count in API responses
type StockCountResponse struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	CountNumber  string     `json:"count_number"`
	CountDate    time.Time  `json:"count_date"`
	WarehouseID  uuid.UUID  `json:"warehouse_id"`
	LocationID   *uuid.UUID `json:"location_id,omitempty"`
	CountType    string     `json:"count_type"`
	Description  string     `json:"description,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	AutoAdjust   bool       `json:"auto_adjust"`
	AdjustmentID *uuid.UUID `json:"adjustment_id,omitempty"`
	CountSheetResponse
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Version   int        `json:"version"`
}

// ToStockCountResponse converts a domain StockCount to a response
func ToStockCountResponse(sc *inventory.StockCount) StockCountResponse {
	return StockCountResponse{
		ID:                 sc.ID,
		TenantID:           sc.TenantID,
		CountNumber:        sc.CountNumber,
		CountDate:          sc.CountDate,
		WarehouseID:        sc.WarehouseID,
		LocationID:         sc.LocationID,
		CountType:          string(sc.CountType),
		Description:        sc.Description,
		Notes:              sc.Notes,
		AutoAdjust:         sc.AutoAdjust,
		AdjustmentID:       sc.AdjustmentID,
		CountSheetResponse: toCountSheetResponse(&sc.CountSheet, nil),
		CreatedBy:          sc.GetCreatedBy(),
		CreatedAt:          sc.CreatedAt,
		UpdatedAt:          sc.UpdatedAt,
		Version:            sc.Version,
	}
}

// StockCountApprovalResponse is returned by approval; Adjustment is set when
// the count was auto-adjusted
type StockCountApprovalResponse struct {
	StockCount StockCountResponse  `json:"stock_count"`
	Adjustment *AdjustmentResponse `json:"adjustment,omitempty"`
}

// CycleCountResponse represents a cycle count in API responses
type CycleCountResponse struct {
	ID                   uuid.UUID        `json:"id"`
	TenantID             uuid.UUID        `json:"tenant_id"`
	CountNumber          string           `json:"count_number"`
	Name                 string           `json:"name,omitempty"`
	WarehouseID          uuid.UUID        `json:"warehouse_id"`
	LocationID           *uuid.UUID       `json:"location_id,omitempty"`
	ZoneID               *uuid.UUID       `json:"zone_id,omitempty"`
	CategoryID           *uuid.UUID       `json:"category_id,omitempty"`
	ABCClass             string           `json:"abc_class,omitempty"`
	Frequency            string           `json:"frequency"`
	ScheduledDate        time.Time        `json:"scheduled_date"`
	NextScheduledDate    *time.Time       `json:"next_scheduled_date,omitempty"`
	QuantityTolerance    *decimal.Decimal `json:"quantity_tolerance_percent,omitempty"`
	ValueTolerance       *decimal.Decimal `json:"value_tolerance,omitempty"`
	BlockAutoApprove     bool             `json:"block_auto_approve_on_tolerance_exceeded"`
	RequiresManualReview bool             `json:"requires_manual_review"`
	Description          string           `json:"description,omitempty"`
	CountSheetResponse
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Version   int        `json:"version"`
}

// ToCycleCountResponse converts a domain CycleCount to a response
func ToCycleCountResponse(cc *inventory.CycleCount) CycleCountResponse {
	resp := CycleCountResponse{
		ID:                   cc.ID,
		TenantID:             cc.TenantID,
		CountNumber:          cc.CountNumber,
		Name:                 cc.Name,
		WarehouseID:          cc.WarehouseID,
		LocationID:           cc.Scope.LocationID,
		ZoneID:               cc.Scope.ZoneID,
		CategoryID:           cc.Scope.CategoryID,
		Frequency:            string(cc.Frequency),
		ScheduledDate:        cc.ScheduledDate,
		NextScheduledDate:    cc.NextScheduledDate,
		QuantityTolerance:    cc.Tolerance.QuantityPercent,
		ValueTolerance:       cc.Tolerance.Value,
		BlockAutoApprove:     cc.Tolerance.BlockAutoApproveOnToleranceExceeded,
		RequiresManualReview: cc.RequiresManualReview(),
		Description:          cc.Description,
		CountSheetResponse:   toCountSheetResponse(&cc.CountSheet, cc.Tolerance.Exceeded),
		CreatedBy:            cc.GetCreatedBy(),
		CreatedAt:            cc.CreatedAt,
		UpdatedAt:            cc.UpdatedAt,
		Version:              cc.Version,
	}
	if cc.ABCClass != nil {
		resp.ABCClass = string(*cc.ABCClass)
	}
	return resp
}

// CountListFilter represents filter options for stock and cycle count lists
type CountListFilter struct {
	WarehouseID *uuid.UUID `form:"warehouse_id"`
	Status      string     `form:"status" binding:"omitempty,oneof=DRAFT PLANNED IN_PROGRESS COMPLETED APPROVED REJECTED PROCESSED ADJUSTED CANCELLED"`
	ABCClass    string     `form:"abc_class" binding:"omitempty,oneof=A B C"`
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy     string     `form:"order_by"`
	OrderDir    string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f CountListFilter) toDomain() shared.Filter {
	filter := shared.Filter{Page: f.Page, PageSize: f.PageSize, OrderBy: f.OrderBy, OrderDir: f.OrderDir, Filters: map[string]any{}}
	if f.WarehouseID != nil {
		filter.Filters["warehouse_id"] = *f.WarehouseID
	}
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	if f.ABCClass != "" {
		filter.Filters["abc_class"] = f.ABCClass
	}
	return filter.Normalize()
}
