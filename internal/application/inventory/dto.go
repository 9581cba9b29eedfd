package inventory

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockKeyRequest identifies a ledger row
type StockKeyRequest struct {
	ProductID   uuid.UUID  `json:"product_id" binding:"required"`
	WarehouseID uuid.UUID  `json:"warehouse_id" binding:"required"`
	LocationID  *uuid.UUID `json:"location_id"`
	VariantID   *uuid.UUID `json:"variant_id"`
}

// Key converts the request into a domain key
func (r StockKeyRequest) Key() inventory.StockKey {
	return inventory.StockKey{
		ProductID:   r.ProductID,
		WarehouseID: r.WarehouseID,
		LocationID:  r.LocationID,
		VariantID:   r.VariantID,
	}
}

// ReferenceRequest points at the business document behind a movement
type ReferenceRequest struct {
	Type   string     `json:"type" binding:"omitempty,max=50"`
	Number string     `json:"number" binding:"omitempty,max=100"`
	ID     *uuid.UUID `json:"id"`
}

func (r ReferenceRequest) toDomain() inventory.ReferenceDocument {
	return inventory.ReferenceDocument{Type: r.Type, Number: r.Number, ID: r.ID}
}

// IncreaseStockRequest receives stock into a ledger row
type IncreaseStockRequest struct {
	StockKeyRequest
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitCost       decimal.Decimal  `json:"unit_cost"`
	MovementType   string           `json:"movement_type" binding:"omitempty,oneof=PURCHASE PRODUCTION ADJUSTMENT_INCREASE SALES_RETURN"`
	DocumentNumber string           `json:"document_number" binding:"omitempty,max=50"`
	LotNumber      string           `json:"lot_number" binding:"omitempty,max=100"`
	SerialNumber   string           `json:"serial_number" binding:"omitempty,max=100"`
	ExpiryDate     *time.Time       `json:"expiry_date"`
	Reference      ReferenceRequest `json:"reference"`
	Description    string           `json:"description" binding:"omitempty,max=500"`
	OperatorID     *uuid.UUID       `json:"operator_id"`
}

// DecreaseStockRequest issues stock from a ledger row
type DecreaseStockRequest struct {
	StockKeyRequest
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitCost       decimal.Decimal  `json:"unit_cost"`
	MovementType   string           `json:"movement_type" binding:"omitempty,oneof=SALE CONSUMPTION ADJUSTMENT_DECREASE DAMAGE LOSS PURCHASE_RETURN"`
	DocumentNumber string           `json:"document_number" binding:"omitempty,max=50"`
	LotNumber      string           `json:"lot_number" binding:"omitempty,max=100"`
	SerialNumber   string           `json:"serial_number" binding:"omitempty,max=100"`
	Reference      ReferenceRequest `json:"reference"`
	Description    string           `json:"description" binding:"omitempty,max=500"`
	OperatorID     *uuid.UUID       `json:"operator_id"`
}

// ReserveStockRequest soft-holds available quantity on a ledger row
type ReserveStockRequest struct {
	StockKeyRequest
	Quantity    decimal.Decimal  `json:"quantity"`
	Reference   ReferenceRequest `json:"reference"`
	Description string           `json:"description" binding:"omitempty,max=500"`
	OperatorID  *uuid.UUID       `json:"operator_id"`
}

// ReleaseStockRequest gives back reserved quantity on a ledger row
type ReleaseStockRequest struct {
	StockKeyRequest
	Quantity    decimal.Decimal  `json:"quantity"`
	Reference   ReferenceRequest `json:"reference"`
	Description string           `json:"description" binding:"omitempty,max=500"`
	OperatorID  *uuid.UUID       `json:"operator_id"`
}

// AdjustStockRequest overwrites the quantity of a ledger row
type AdjustStockRequest struct {
	StockKeyRequest
	NewQuantity decimal.Decimal  `json:"new_quantity"`
	UnitCost    decimal.Decimal  `json:"unit_cost"`
	Reason      string           `json:"reason" binding:"required,min=1,max=255"`
	Reference   ReferenceRequest `json:"reference"`
	OperatorID  *uuid.UUID       `json:"operator_id"`
}

// TransferStockRequest moves stock between two locations of one warehouse
type TransferStockRequest struct {
	ProductID      uuid.UUID        `json:"product_id" binding:"required"`
	WarehouseID    uuid.UUID        `json:"warehouse_id" binding:"required"`
	VariantID      *uuid.UUID       `json:"variant_id"`
	FromLocationID uuid.UUID        `json:"from_location_id" binding:"required"`
	ToLocationID   uuid.UUID        `json:"to_location_id" binding:"required"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitCost       decimal.Decimal  `json:"unit_cost"`
	DocumentNumber string           `json:"document_number" binding:"omitempty,max=50"`
	Reference      ReferenceRequest `json:"reference"`
	Description    string           `json:"description" binding:"omitempty,max=500"`
	OperatorID     *uuid.UUID       `json:"operator_id"`
}

// ReverseMovementRequest marks a movement reversed and posts its compensation
type ReverseMovementRequest struct {
	Reason     string    `json:"reason" binding:"omitempty,max=255"`
	OperatorID uuid.UUID `json:"operator_id" binding:"required"`
}

// StockLineResponse represents a ledger row in API responses
type StockLineResponse struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	LocationID        *uuid.UUID      `json:"location_id,omitempty"`
	VariantID         *uuid.UUID      `json:"variant_id,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	ReservedQuantity  decimal.Decimal `json:"reserved_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	LotNumber         string          `json:"lot_number,omitempty"`
	SerialNumber      string          `json:"serial_number,omitempty"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	LastMovementAt    *time.Time      `json:"last_movement_at,omitempty"`
	LastCountAt       *time.Time      `json:"last_count_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// ToStockLineResponse converts a domain StockLine to a response
func ToStockLineResponse(line *inventory.StockLine) StockLineResponse {
	return StockLineResponse{
		ID:                line.ID,
		TenantID:          line.TenantID,
		ProductID:         line.ProductID,
		WarehouseID:       line.WarehouseID,
		LocationID:        line.LocationID,
		VariantID:         line.VariantID,
		Quantity:          line.Quantity,
		ReservedQuantity:  line.ReservedQuantity,
		AvailableQuantity: line.AvailableQuantity(),
		LotNumber:         line.LotNumber,
		SerialNumber:      line.SerialNumber,
		ExpiryDate:        line.ExpiryDate,
		LastMovementAt:    line.LastMovementAt,
		LastCountAt:       line.LastCountAt,
		CreatedAt:         line.CreatedAt,
		UpdatedAt:         line.UpdatedAt,
		Version:           line.Version,
	}
}

// ToStockLineResponses converts a slice of stock lines
func ToStockLineResponses(lines []inventory.StockLine) []StockLineResponse {
	out := make([]StockLineResponse, len(lines))
	for i := range lines {
		out[i] = ToStockLineResponse(&lines[i])
	}
	return out
}

// MovementResponse represents a ledger movement in API responses
type MovementResponse struct {
	ID                 uuid.UUID       `json:"id"`
	TenantID           uuid.UUID       `json:"tenant_id"`
	DocumentNumber     string          `json:"document_number"`
	MovementDate       time.Time       `json:"movement_date"`
	MovementType       string          `json:"movement_type"`
	ProductID          uuid.UUID       `json:"product_id"`
	WarehouseID        uuid.UUID       `json:"warehouse_id"`
	VariantID          *uuid.UUID      `json:"variant_id,omitempty"`
	FromLocationID     *uuid.UUID      `json:"from_location_id,omitempty"`
	ToLocationID       *uuid.UUID      `json:"to_location_id,omitempty"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	SequenceNumber     int64           `json:"sequence_number"`
	IsIncoming         bool            `json:"is_incoming"`
	IsOutgoing         bool            `json:"is_outgoing"`
	LotNumber          string          `json:"lot_number,omitempty"`
	SerialNumber       string          `json:"serial_number,omitempty"`
	ReferenceType      string          `json:"reference_type,omitempty"`
	ReferenceNumber    string          `json:"reference_number,omitempty"`
	ReferenceID        *uuid.UUID      `json:"reference_id,omitempty"`
	Description        string          `json:"description,omitempty"`
	UserID             *uuid.UUID      `json:"user_id,omitempty"`
	IsReversed         bool            `json:"is_reversed"`
	ReversedMovementID *uuid.UUID      `json:"reversed_movement_id,omitempty"`
	ReversedAt         *time.Time      `json:"reversed_at,omitempty"`
	ReversalReason     string          `json:"reversal_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ToMovementResponse converts a domain Movement to a response
func ToMovementResponse(m *inventory.Movement) MovementResponse {
	return MovementResponse{
		ID:                 m.ID,
		TenantID:           m.TenantID,
		DocumentNumber:     m.DocumentNumber,
		MovementDate:       m.MovementDate,
		MovementType:       string(m.MovementType),
		ProductID:          m.ProductID,
		WarehouseID:        m.WarehouseID,
		VariantID:          m.VariantID,
		FromLocationID:     m.FromLocationID,
		ToLocationID:       m.ToLocationID,
		Quantity:           m.Quantity,
		UnitCost:           m.UnitCost,
		TotalCost:          m.TotalCost(),
		SequenceNumber:     m.SequenceNumber,
		IsIncoming:         m.IsIncoming(),
		IsOutgoing:         m.IsOutgoing(),
		LotNumber:          m.LotNumber,
		SerialNumber:       m.SerialNumber,
		ReferenceType:      m.Reference.Type,
		ReferenceNumber:    m.Reference.Number,
		ReferenceID:        m.Reference.ID,
		Description:        m.Description,
		UserID:             m.UserID,
		IsReversed:         m.IsReversed,
		ReversedMovementID: m.ReversedMovementID,
		ReversedAt:         m.ReversedAt,
		ReversalReason:     m.ReversalReason,
		CreatedAt:          m.CreatedAt,
	}
}

// ToMovementResponses converts a slice of movements
func ToMovementResponses(movements []inventory.Movement) []MovementResponse {
	out := make([]MovementResponse, len(movements))
	for i := range movements {
		out[i] = ToMovementResponse(&movements[i])
	}
	return out
}

// PostingResponse is the outcome of a single ledger mutation
type PostingResponse struct {
	StockLine StockLineResponse `json:"stock_line"`
	Movement  MovementResponse  `json:"movement"`
	// Variance is only set by adjustments
	Variance *decimal.Decimal `json:"variance,omitempty"`
}

func toPostingResponse(res *postingResult) *PostingResponse {
	resp := &PostingResponse{
		StockLine: ToStockLineResponse(res.line),
		Movement:  ToMovementResponse(res.movement),
	}
	if res.op == opAdjust {
		v := res.variance
		resp.Variance = &v
	}
	return resp
}

// TransferResponse is the outcome of a transfer: both legs share a document number
type TransferResponse struct {
	DocumentNumber string            `json:"document_number"`
	Source         StockLineResponse `json:"source"`
	Destination    StockLineResponse `json:"destination"`
	OutMovement    MovementResponse  `json:"out_movement"`
	InMovement     MovementResponse  `json:"in_movement"`
}

// ReverseMovementResponse holds the reversed movement and its compensation
type ReverseMovementResponse struct {
	Reversed     MovementResponse  `json:"reversed"`
	Compensation MovementResponse  `json:"compensation"`
	StockLine    StockLineResponse `json:"stock_line"`
}

// StockLineListFilter represents filter options for stock line lists
type StockLineListFilter struct {
	ProductID    *uuid.UUID       `form:"product_id"`
	WarehouseID  *uuid.UUID       `form:"warehouse_id"`
	LocationID   *uuid.UUID       `form:"location_id"`
	VariantID    *uuid.UUID       `form:"variant_id"`
	HasStock     *bool            `form:"has_stock"`
	LowAvailable *decimal.Decimal `form:"low_available"`
	Page         int              `form:"page" binding:"omitempty,min=1"`
	PageSize     int              `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy      string           `form:"order_by"`
	OrderDir     string           `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f StockLineListFilter) toDomain() shared.Filter {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Filters:  make(map[string]any),
	}
	if f.ProductID != nil {
		filter.Filters["product_id"] = *f.ProductID
	}
	if f.WarehouseID != nil {
		filter.Filters["warehouse_id"] = *f.WarehouseID
	}
	if f.LocationID != nil {
		filter.Filters["location_id"] = *f.LocationID
	}
	if f.VariantID != nil {
		filter.Filters["variant_id"] = *f.VariantID
	}
	if f.HasStock != nil {
		filter.Filters["has_stock"] = *f.HasStock
	}
	if f.LowAvailable != nil {
		filter.Filters["low_available"] = *f.LowAvailable
	}
	return filter.Normalize()
}

// MovementListFilter represents filter options for movement history
type MovementListFilter struct {
	ProductID    *uuid.UUID `form:"product_id"`
	WarehouseID  *uuid.UUID `form:"warehouse_id"`
	LocationID   *uuid.UUID `form:"location_id"`
	MovementType string     `form:"movement_type"`
	From         *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To           *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=500"`
}

func (f MovementListFilter) toDomain() (inventory.MovementFilter, error) {
	norm := shared.Filter{Page: f.Page, PageSize: f.PageSize}.Normalize()
	filter := inventory.MovementFilter{
		ProductID:   f.ProductID,
		WarehouseID: f.WarehouseID,
		LocationID:  f.LocationID,
		From:        f.From,
		To:          f.To,
		Page:        norm.Page,
		PageSize:    norm.PageSize,
	}
	if f.MovementType != "" {
		mt, err := inventory.ParseMovementType(f.MovementType)
		if err != nil {
			return filter, err
		}
		filter.MovementType = &mt
	}
	return filter, nil
}

// VariantIntegrityResponse reports whether stock of a product with variants
// is held entirely at variant level
type VariantIntegrityResponse struct {
	ProductID    uuid.UUID                     `json:"product_id"`
	WarehouseID  uuid.UUID                     `json:"warehouse_id"`
	IsValid      bool                          `json:"is_valid"`
	HasVariants  bool                          `json:"has_variants"`
	ProductStock decimal.Decimal               `json:"product_stock"`
	VariantStock decimal.Decimal               `json:"variant_stock"`
	Discrepancy  decimal.Decimal               `json:"discrepancy"`
	ByVariant    map[uuid.UUID]decimal.Decimal `json:"by_variant,omitempty"`
}

// ToVariantIntegrityResponse converts a check result to a response
func ToVariantIntegrityResponse(res inventory.VariantIntegrityResult) VariantIntegrityResponse {
	return VariantIntegrityResponse{
		ProductID:    res.ProductID,
		WarehouseID:  res.WarehouseID,
		IsValid:      res.IsValid,
		HasVariants:  res.HasVariants,
		ProductStock: res.ProductStock,
		VariantStock: res.VariantStock,
		Discrepancy:  res.Discrepancy,
		ByVariant:    res.ByVariant,
	}
}
