package handler

import (
	"context"

	inventoryapp "github.com/erp/inventory-ledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReservationHandler handles reservation lifecycle requests
type ReservationHandler struct {
	BaseHandler
	reservationService *inventoryapp.ReservationService
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservationService *inventoryapp.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// RegisterRoutes registers reservation routes on a tenant scoped group
func (h *ReservationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reservations := rg.Group("/reservations")
	reservations.POST("", h.Create)
	reservations.GET("", h.List)
	reservations.GET("/:id", h.Get)
	reservations.POST("/:id/fulfill", h.Fulfill)
	reservations.POST("/:id/partial-fulfill", h.PartialFulfill)
	reservations.POST("/:id/cancel", h.Cancel)
	reservations.POST("/:id/expire", h.Expire)
}

// Create handles POST /reservations
func (h *ReservationHandler) Create(c *gin.Context) {
	var req inventoryapp.CreateReservationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.OperatorID = operatorOrCaller(c, req.OperatorID)

	reservation, err := h.reservationService.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, reservation)
}

// Get handles GET /reservations/:id
func (h *ReservationHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	reservation, err := h.reservationService.GetByID(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reservation)
}

type reservationQuery struct {
	pageQuery
	ProductID   string `form:"product_id" binding:"omitempty,uuid"`
	WarehouseID string `form:"warehouse_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=ACTIVE PARTIALLY_FULFILLED FULFILLED CANCELLED EXPIRED"`
}

// List handles GET /reservations
func (h *ReservationHandler) List(c *gin.Context) {
	var q reservationQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.reservationService.List(c.Request.Context(), tenantID(c), inventoryapp.ReservationListFilter{
		ProductID:   optionalUUID(q.ProductID),
		WarehouseID: optionalUUID(q.WarehouseID),
		Status:      q.Status,
		Page:        q.Page,
		PageSize:    q.PageSize,
		OrderBy:     q.OrderBy,
		OrderDir:    q.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// Fulfill handles POST /reservations/:id/fulfill
func (h *ReservationHandler) Fulfill(c *gin.Context) {
	h.fulfill(c, h.reservationService.Fulfill)
}

// PartialFulfill handles POST /reservations/:id/partial-fulfill
func (h *ReservationHandler) PartialFulfill(c *gin.Context) {
	h.fulfill(c, h.reservationService.PartialFulfill)
}

type fulfillFunc func(ctx context.Context, tenantID, id uuid.UUID, req inventoryapp.FulfillReservationRequest) (*inventoryapp.ReservationResponse, error)

func (h *ReservationHandler) fulfill(c *gin.Context, fn fulfillFunc) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.FulfillReservationRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	req.OperatorID = operatorOrCaller(c, req.OperatorID)

	reservation, err := fn(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reservation)
}

// Cancel handles POST /reservations/:id/cancel
func (h *ReservationHandler) Cancel(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.CancelReservationRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	req.OperatorID = operatorOrCaller(c, req.OperatorID)

	reservation, err := h.reservationService.Cancel(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reservation)
}

// Expire handles POST /reservations/:id/expire for an overdue reservation
// the expiry scheduler has not reached yet
func (h *ReservationHandler) Expire(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	reservation, err := h.reservationService.Expire(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reservation)
}
