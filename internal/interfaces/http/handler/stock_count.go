package handler

import (
	inventoryapp "github.com/erp/inventory-ledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StockCountHandler handles physical stock count requests
type StockCountHandler struct {
	BaseHandler
	stockCountService *inventoryapp.StockCountService
}

// NewStockCountHandler creates a new stock count handler
func NewStockCountHandler(stockCountService *inventoryapp.StockCountService) *StockCountHandler {
	return &StockCountHandler{stockCountService: stockCountService}
}

// RegisterRoutes registers stock count routes on a tenant scoped group
func (h *StockCountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	counts := rg.Group("/stock-counts")
	counts.POST("", h.Create)
	counts.GET("", h.List)
	counts.GET("/:id", h.Get)
	counts.POST("/:id/items", h.AddItems)
	counts.DELETE("/:id/items/:item_id", h.RemoveItem)
	counts.POST("/:id/start", h.Start)
	counts.POST("/:id/counts", h.RecordCounts)
	counts.POST("/:id/complete", h.Complete)
	counts.POST("/:id/approve", h.Approve)
	counts.POST("/:id/reject", h.Reject)
	counts.POST("/:id/cancel", h.Cancel)
	counts.POST("/:id/process", h.Process)
	counts.POST("/:id/adjustment", h.CreateAdjustment)
}

// Create handles POST /stock-counts
func (h *StockCountHandler) Create(c *gin.Context) {
	var req inventoryapp.CreateStockCountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = operatorOrCaller(c, req.CreatedBy)

	count, err := h.stockCountService.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, count)
}

// Get handles GET /stock-counts/:id
func (h *StockCountHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	count, err := h.stockCountService.GetByID(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

type countQuery struct {
	pageQuery
	WarehouseID string `form:"warehouse_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=DRAFT PLANNED IN_PROGRESS COMPLETED APPROVED REJECTED PROCESSED ADJUSTED CANCELLED"`
	ABCClass    string `form:"abc_class" binding:"omitempty,oneof=A B C"`
}

func (q countQuery) filter() inventoryapp.CountListFilter {
	return inventoryapp.CountListFilter{
		WarehouseID: optionalUUID(q.WarehouseID),
		Status:      q.Status,
		ABCClass:    q.ABCClass,
		Page:        q.Page,
		PageSize:    q.PageSize,
		OrderBy:     q.OrderBy,
		OrderDir:    q.OrderDir,
	}
}

// List handles GET /stock-counts
func (h *StockCountHandler) List(c *gin.Context) {
	var q countQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.stockCountService.List(c.Request.Context(), tenantID(c), q.filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// AddItems handles POST /stock-counts/:id/items
func (h *StockCountHandler) AddItems(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.AddCountItemsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	count, err := h.stockCountService.AddItems(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// RemoveItem handles DELETE /stock-counts/:id/items/:item_id
func (h *StockCountHandler) RemoveItem(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathUUID(c, "item_id")
	if !ok {
		return
	}
	count, err := h.stockCountService.RemoveItem(c.Request.Context(), tenantID(c), id, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Start handles POST /stock-counts/:id/start
func (h *StockCountHandler) Start(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	count, err := h.stockCountService.Start(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// RecordCounts handles POST /stock-counts/:id/counts
func (h *StockCountHandler) RecordCounts(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.RecordCountsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	defaultCountedBy(c, req.Counts)

	count, err := h.stockCountService.RecordCounts(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Complete handles POST /stock-counts/:id/complete
func (h *StockCountHandler) Complete(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	count, err := h.stockCountService.Complete(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Approve handles POST /stock-counts/:id/approve. With auto adjust enabled
// the response also carries the ledger postings.
func (h *StockCountHandler) Approve(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindApproval(c)
	if !ok {
		return
	}
	result, err := h.stockCountService.Approve(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reject handles POST /stock-counts/:id/reject
func (h *StockCountHandler) Reject(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindRejection(c)
	if !ok {
		return
	}
	count, err := h.stockCountService.Reject(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Cancel handles POST /stock-counts/:id/cancel
func (h *StockCountHandler) Cancel(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.CancelRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	count, err := h.stockCountService.Cancel(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Process handles POST /stock-counts/:id/process
func (h *StockCountHandler) Process(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	count, err := h.stockCountService.Process(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// CreateAdjustment handles POST /stock-counts/:id/adjustment and drafts an
// inventory adjustment from the count variances
func (h *StockCountHandler) CreateAdjustment(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	adjustment, err := h.stockCountService.CreateAdjustment(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, adjustment)
}

// approvalBody lets the approver default to the caller
type approvalBody struct {
	ApprovedBy *uuid.UUID `json:"approved_by"`
	OperatorID *uuid.UUID `json:"operator_id"`
}

func (h *BaseHandler) bindApproval(c *gin.Context) (inventoryapp.ApproveCountRequest, bool) {
	var body approvalBody
	if !h.bindOptionalJSON(c, &body) {
		return inventoryapp.ApproveCountRequest{}, false
	}
	approver := operatorOrCaller(c, body.ApprovedBy)
	if approver == nil {
		h.BadRequest(c, "approved_by or X-User-ID is required")
		return inventoryapp.ApproveCountRequest{}, false
	}
	operator := body.OperatorID
	if operator == nil {
		operator = approver
	}
	return inventoryapp.ApproveCountRequest{ApprovedBy: *approver, OperatorID: operator}, true
}

// rejectionBody lets the rejecter default to the caller
type rejectionBody struct {
	RejectedBy *uuid.UUID `json:"rejected_by"`
	Reason     string     `json:"reason" binding:"required,max=255"`
}

func (h *BaseHandler) bindRejection(c *gin.Context) (inventoryapp.RejectRequest, bool) {
	var body rejectionBody
	if !h.bindJSON(c, &body) {
		return inventoryapp.RejectRequest{}, false
	}
	rejecter := operatorOrCaller(c, body.RejectedBy)
	if rejecter == nil {
		h.BadRequest(c, "rejected_by or X-User-ID is required")
		return inventoryapp.RejectRequest{}, false
	}
	return inventoryapp.RejectRequest{RejectedBy: *rejecter, Reason: body.Reason}, true
}

func defaultCountedBy(c *gin.Context, counts []inventoryapp.RecordCountRequest) {
	caller := operatorOrCaller(c, nil)
	if caller == nil {
		return
	}
	for i := range counts {
		if counts[i].CountedBy == nil {
			counts[i].CountedBy = caller
		}
	}
}
