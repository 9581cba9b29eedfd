package handler

import (
	"time"

	inventoryapp "github.com/erp/inventory-ledger/internal/application/inventory"
	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerHandler exposes stock postings, ledger queries and movement reversal
type LedgerHandler struct {
	BaseHandler
	ledgerService *inventoryapp.LedgerService
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledgerService *inventoryapp.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// RegisterRoutes registers ledger routes on a tenant scoped group
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	stock := rg.Group("/stock")
	stock.POST("/increase", h.Increase)
	stock.POST("/decrease", h.Decrease)
	stock.POST("/reserve", h.Reserve)
	stock.POST("/release", h.Release)
	stock.POST("/adjust", h.Adjust)
	stock.POST("/transfer", h.Transfer)

	lines := rg.Group("/stock-lines")
	lines.GET("", h.ListStockLines)
	lines.GET("/lookup", h.LookupStockLine)
	lines.GET("/:id", h.GetStockLine)

	movements := rg.Group("/movements")
	movements.GET("", h.ListMovements)
	movements.GET("/:id", h.GetMovement)
	movements.POST("/:id/reverse", h.ReverseMovement)

	rg.GET("/variant-integrity", h.CheckVariantIntegrity)
}

// Increase handles POST /stock/increase
func (h *LedgerHandler) Increase(c *gin.Context) {
	var req inventoryapp.IncreaseStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.OperatorID = operatorOrCaller(c, req.OperatorID)

	result, err := h.ledgerService.IncreaseStock(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Decrease handles POST /stock/decrease
func (h *LedgerHandler) Decrease(c *gin.Context) {
	var req inventoryapp.DecreaseStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.OperatorID = operatorOrCaller(c, req.OperatorID)

	result, err := h.ledgerService.DecreaseStock(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Reserve handles POST /stock/reserve
func (h *LedgerHandler) Reserve(c *gin.Context) {
	var req inventoryapp.ReserveStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.OperatorID = operatorOrCaller(c, req.OperatorID)

	result, err := h.ledgerService.ReserveStock(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Release handles POST /stock/release
func (h *LedgerHandler) Release(c *gin.Context) {
	var req inventoryapp.ReleaseStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.OperatorID = operatorOrCaller(c, req.OperatorID)

	result, err := h.ledgerService.ReleaseReservation(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Adjust handles POST /stock/adjust
func (h *LedgerHandler) Adjust(c *gin.Context) {
	var req inventoryapp.AdjustStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.OperatorID = operatorOrCaller(c, req.OperatorID)

	result, err := h.ledgerService.AdjustStock(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Transfer handles POST /stock/transfer
func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req inventoryapp.TransferStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.OperatorID = operatorOrCaller(c, req.OperatorID)

	result, err := h.ledgerService.TransferStock(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// reverseMovementBody lets the operator default to the caller
type reverseMovementBody struct {
	Reason     string     `json:"reason" binding:"omitempty,max=255"`
	OperatorID *uuid.UUID `json:"operator_id"`
}

// ReverseMovement handles POST /movements/:id/reverse
func (h *LedgerHandler) ReverseMovement(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var body reverseMovementBody
	if !h.bindOptionalJSON(c, &body) {
		return
	}
	operator := operatorOrCaller(c, body.OperatorID)
	if operator == nil {
		h.BadRequest(c, "operator_id or X-User-ID is required to reverse a movement")
		return
	}

	result, err := h.ledgerService.ReverseMovement(c.Request.Context(), tenantID(c), id, inventoryapp.ReverseMovementRequest{
		Reason:     body.Reason,
		OperatorID: *operator,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// GetStockLine handles GET /stock-lines/:id
func (h *LedgerHandler) GetStockLine(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	line, err := h.ledgerService.GetStockLine(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, line)
}

type stockKeyQuery struct {
	ProductID   string `form:"product_id" binding:"required,uuid"`
	WarehouseID string `form:"warehouse_id" binding:"required,uuid"`
	LocationID  string `form:"location_id" binding:"omitempty,uuid"`
	VariantID   string `form:"variant_id" binding:"omitempty,uuid"`
}

// LookupStockLine handles GET /stock-lines/lookup and finds the row for an
// exact stock key
func (h *LedgerHandler) LookupStockLine(c *gin.Context) {
	var q stockKeyQuery
	if !h.bindQuery(c, &q) {
		return
	}
	key := inventory.StockKey{
		ProductID:   uuid.MustParse(q.ProductID),
		WarehouseID: uuid.MustParse(q.WarehouseID),
		LocationID:  optionalUUID(q.LocationID),
		VariantID:   optionalUUID(q.VariantID),
	}
	line, err := h.ledgerService.GetStockLineByKey(c.Request.Context(), tenantID(c), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, line)
}

type stockLineQuery struct {
	pageQuery
	ProductID    string `form:"product_id" binding:"omitempty,uuid"`
	WarehouseID  string `form:"warehouse_id" binding:"omitempty,uuid"`
	LocationID   string `form:"location_id" binding:"omitempty,uuid"`
	VariantID    string `form:"variant_id" binding:"omitempty,uuid"`
	HasStock     *bool  `form:"has_stock"`
	LowAvailable string `form:"low_available" binding:"omitempty,numeric"`
}

// ListStockLines handles GET /stock-lines
func (h *LedgerHandler) ListStockLines(c *gin.Context) {
	var q stockLineQuery
	if !h.bindQuery(c, &q) {
		return
	}
	filter := inventoryapp.StockLineListFilter{
		ProductID:   optionalUUID(q.ProductID),
		WarehouseID: optionalUUID(q.WarehouseID),
		LocationID:  optionalUUID(q.LocationID),
		VariantID:   optionalUUID(q.VariantID),
		HasStock:    q.HasStock,
		Page:        q.Page,
		PageSize:    q.PageSize,
		OrderBy:     q.OrderBy,
		OrderDir:    q.OrderDir,
	}
	if q.LowAvailable != "" {
		low, err := decimal.NewFromString(q.LowAvailable)
		if err != nil {
			h.BadRequest(c, "low_available must be a number")
			return
		}
		filter.LowAvailable = &low
	}

	page, err := h.ledgerService.ListStockLines(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// GetMovement handles GET /movements/:id
func (h *LedgerHandler) GetMovement(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	movement, err := h.ledgerService.GetMovement(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movement)
}

type movementQuery struct {
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=500"`
	ProductID    string     `form:"product_id" binding:"omitempty,uuid"`
	WarehouseID  string     `form:"warehouse_id" binding:"omitempty,uuid"`
	LocationID   string     `form:"location_id" binding:"omitempty,uuid"`
	MovementType string     `form:"movement_type" binding:"omitempty,max=30"`
	From         *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To           *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ListMovements handles GET /movements, newest first
func (h *LedgerHandler) ListMovements(c *gin.Context) {
	var q movementQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.ledgerService.ListMovements(c.Request.Context(), tenantID(c), inventoryapp.MovementListFilter{
		ProductID:    optionalUUID(q.ProductID),
		WarehouseID:  optionalUUID(q.WarehouseID),
		LocationID:   optionalUUID(q.LocationID),
		MovementType: q.MovementType,
		From:         q.From,
		To:           q.To,
		Page:         q.Page,
		PageSize:     q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

type variantIntegrityQuery struct {
	ProductID   string `form:"product_id" binding:"required,uuid"`
	WarehouseID string `form:"warehouse_id" binding:"required,uuid"`
}

// CheckVariantIntegrity handles GET /variant-integrity
func (h *LedgerHandler) CheckVariantIntegrity(c *gin.Context) {
	var q variantIntegrityQuery
	if !h.bindQuery(c, &q) {
		return
	}
	result, err := h.ledgerService.CheckVariantIntegrity(
		c.Request.Context(), tenantID(c),
		uuid.MustParse(q.ProductID), uuid.MustParse(q.WarehouseID),
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
