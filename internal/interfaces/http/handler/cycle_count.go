package handler

import (
	"time"

	inventoryapp "github.com/erp/inventory-ledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// CycleCountHandler handles recurring cycle count requests
type CycleCountHandler struct {
	BaseHandler
	cycleCountService *inventoryapp.CycleCountService
}

// NewCycleCountHandler creates a new cycle count handler
func NewCycleCountHandler(cycleCountService *inventoryapp.CycleCountService) *CycleCountHandler {
	return &CycleCountHandler{cycleCountService: cycleCountService}
}

// RegisterRoutes registers cycle count routes on a tenant scoped group
func (h *CycleCountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	counts := rg.Group("/cycle-counts")
	counts.POST("", h.Create)
	counts.GET("", h.List)
	counts.GET("/due", h.Due)
	counts.GET("/:id", h.Get)
	counts.PUT("/:id/schedule", h.UpdateSchedule)
	counts.POST("/:id/items", h.AddItems)
	counts.DELETE("/:id/items/:item_id", h.RemoveItem)
	counts.POST("/:id/start", h.Start)
	counts.POST("/:id/counts", h.RecordCounts)
	counts.POST("/:id/complete", h.Complete)
	counts.POST("/:id/approve", h.Approve)
	counts.POST("/:id/reject", h.Reject)
	counts.POST("/:id/cancel", h.Cancel)
	counts.POST("/:id/process", h.Process)
	counts.POST("/:id/adjust", h.Adjust)
}

// Create handles POST /cycle-counts
func (h *CycleCountHandler) Create(c *gin.Context) {
	var req inventoryapp.CreateCycleCountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = operatorOrCaller(c, req.CreatedBy)

	count, err := h.cycleCountService.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, count)
}

// Get handles GET /cycle-counts/:id
func (h *CycleCountHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	count, err := h.cycleCountService.GetByID(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// List handles GET /cycle-counts
func (h *CycleCountHandler) List(c *gin.Context) {
	var q countQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.cycleCountService.List(c.Request.Context(), tenantID(c), q.filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

type dueQuery struct {
	AsOf *time.Time `form:"as_of" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Due handles GET /cycle-counts/due and lists planned counts scheduled on
// or before as_of (default now)
func (h *CycleCountHandler) Due(c *gin.Context) {
	var q dueQuery
	if !h.bindQuery(c, &q) {
		return
	}
	asOf := time.Now()
	if q.AsOf != nil {
		asOf = *q.AsOf
	}
	counts, err := h.cycleCountService.FindDue(c.Request.Context(), tenantID(c), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, counts)
}

// UpdateSchedule handles PUT /cycle-counts/:id/schedule
func (h *CycleCountHandler) UpdateSchedule(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.UpdateCycleCountScheduleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	count, err := h.cycleCountService.UpdateSchedule(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// AddItems handles POST /cycle-counts/:id/items
func (h *CycleCountHandler) AddItems(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.AddCountItemsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	count, err := h.cycleCountService.AddItems(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// RemoveItem handles DELETE /cycle-counts/:id/items/:item_id
func (h *CycleCountHandler) RemoveItem(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathUUID(c, "item_id")
	if !ok {
		return
	}
	count, err := h.cycleCountService.RemoveItem(c.Request.Context(), tenantID(c), id, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Start handles POST /cycle-counts/:id/start
func (h *CycleCountHandler) Start(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	count, err := h.cycleCountService.Start(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// RecordCounts handles POST /cycle-counts/:id/counts
func (h *CycleCountHandler) RecordCounts(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.RecordCountsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	defaultCountedBy(c, req.Counts)

	count, err := h.cycleCountService.RecordCounts(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Complete handles POST /cycle-counts/:id/complete. The response includes
// the next scheduled occurrence.
func (h *CycleCountHandler) Complete(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.cycleCountService.Complete(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Approve handles POST /cycle-counts/:id/approve
func (h *CycleCountHandler) Approve(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindApproval(c)
	if !ok {
		return
	}
	count, err := h.cycleCountService.Approve(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Reject handles POST /cycle-counts/:id/reject
func (h *CycleCountHandler) Reject(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindRejection(c)
	if !ok {
		return
	}
	count, err := h.cycleCountService.Reject(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Cancel handles POST /cycle-counts/:id/cancel
func (h *CycleCountHandler) Cancel(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.CancelRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	count, err := h.cycleCountService.Cancel(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Process handles POST /cycle-counts/:id/process
func (h *CycleCountHandler) Process(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	count, err := h.cycleCountService.Process(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Adjust handles POST /cycle-counts/:id/adjust and posts the variances of an
// approved count to the ledger
func (h *CycleCountHandler) Adjust(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindApproval(c)
	if !ok {
		return
	}
	result, err := h.cycleCountService.Adjust(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
