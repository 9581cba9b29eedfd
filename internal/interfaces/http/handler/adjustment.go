package handler

import (
	inventoryapp "github.com/erp/inventory-ledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdjustmentHandler handles inventory adjustment requests
type AdjustmentHandler struct {
	BaseHandler
	adjustmentService *inventoryapp.AdjustmentService
}

// NewAdjustmentHandler creates a new adjustment handler
func NewAdjustmentHandler(adjustmentService *inventoryapp.AdjustmentService) *AdjustmentHandler {
	return &AdjustmentHandler{adjustmentService: adjustmentService}
}

// RegisterRoutes registers adjustment routes on a tenant scoped group
func (h *AdjustmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	adjustments := rg.Group("/adjustments")
	adjustments.POST("", h.Create)
	adjustments.GET("", h.List)
	adjustments.GET("/:id", h.Get)
	adjustments.POST("/:id/items", h.AddItem)
	adjustments.DELETE("/:id/items/:item_id", h.RemoveItem)
	adjustments.POST("/:id/submit", h.Submit)
	adjustments.POST("/:id/approve", h.Approve)
	adjustments.POST("/:id/reject", h.Reject)
	adjustments.POST("/:id/cancel", h.Cancel)
	adjustments.POST("/:id/process", h.Process)
}

// Create handles POST /adjustments
func (h *AdjustmentHandler) Create(c *gin.Context) {
	var req inventoryapp.CreateAdjustmentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = operatorOrCaller(c, req.CreatedBy)

	adjustment, err := h.adjustmentService.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, adjustment)
}

// Get handles GET /adjustments/:id
func (h *AdjustmentHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	adjustment, err := h.adjustmentService.GetByID(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}

type adjustmentQuery struct {
	pageQuery
	WarehouseID  string `form:"warehouse_id" binding:"omitempty,uuid"`
	StockCountID string `form:"stock_count_id" binding:"omitempty,uuid"`
	Status       string `form:"status" binding:"omitempty,oneof=DRAFT PENDING_APPROVAL APPROVED REJECTED PROCESSED CANCELLED"`
}

// List handles GET /adjustments
func (h *AdjustmentHandler) List(c *gin.Context) {
	var q adjustmentQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.adjustmentService.List(c.Request.Context(), tenantID(c), inventoryapp.AdjustmentListFilter{
		WarehouseID:  optionalUUID(q.WarehouseID),
		StockCountID: optionalUUID(q.StockCountID),
		Status:       q.Status,
		Page:         q.Page,
		PageSize:     q.PageSize,
		OrderBy:      q.OrderBy,
		OrderDir:     q.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// AddItem handles POST /adjustments/:id/items
func (h *AdjustmentHandler) AddItem(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.AdjustmentItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	adjustment, err := h.adjustmentService.AddItem(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}

// RemoveItem handles DELETE /adjustments/:id/items/:item_id
func (h *AdjustmentHandler) RemoveItem(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathUUID(c, "item_id")
	if !ok {
		return
	}
	adjustment, err := h.adjustmentService.RemoveItem(c.Request.Context(), tenantID(c), id, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}

// Submit handles POST /adjustments/:id/submit
func (h *AdjustmentHandler) Submit(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	adjustment, err := h.adjustmentService.Submit(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}

type approveBody struct {
	ApprovedBy *uuid.UUID `json:"approved_by"`
}

// Approve handles POST /adjustments/:id/approve
func (h *AdjustmentHandler) Approve(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var body approveBody
	if !h.bindOptionalJSON(c, &body) {
		return
	}
	approver := operatorOrCaller(c, body.ApprovedBy)
	if approver == nil {
		h.BadRequest(c, "approved_by or X-User-ID is required")
		return
	}
	adjustment, err := h.adjustmentService.Approve(c.Request.Context(), tenantID(c), id, inventoryapp.ApproveRequest{ApprovedBy: *approver})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}

// Reject handles POST /adjustments/:id/reject
func (h *AdjustmentHandler) Reject(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindRejection(c)
	if !ok {
		return
	}
	adjustment, err := h.adjustmentService.Reject(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}

// Cancel handles POST /adjustments/:id/cancel
func (h *AdjustmentHandler) Cancel(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.CancelRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	adjustment, err := h.adjustmentService.Cancel(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}

// Process handles POST /adjustments/:id/process and posts every item to the
// ledger in one transaction
func (h *AdjustmentHandler) Process(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ProcessAdjustmentRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	req.OperatorID = operatorOrCaller(c, req.OperatorID)

	adjustment, err := h.adjustmentService.Process(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}
