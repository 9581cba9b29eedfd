package handler

import (
	"context"

	"github.com/erp/inventory-ledger/internal/application/event"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OutboxHandler serves the operator API over the ledger event outbox. The
// outbox spans tenants, so it is mounted on the system group.
type OutboxHandler struct {
	BaseHandler
	outbox *event.OutboxService
}

func NewOutboxHandler(outbox *event.OutboxService) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// RetryAllResponse reports how many dead entries were requeued
type RetryAllResponse struct {
	Count int64 `json:"count"`
}

func (h *OutboxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	outbox := rg.Group("/outbox")
	outbox.GET("/stats", h.GetStats)
	outbox.GET("/dead", h.GetDeadLetterEntries)
	outbox.POST("/dead/retry-all", h.RetryAllDeadEntries)
	outbox.GET("/:id", h.entry(h.outbox.GetEntry))
	outbox.POST("/:id/retry", h.entry(h.outbox.RetryDeadEntry))
}

// entry adapts a per-entry service call to a handler on the :id path
func (h *OutboxHandler) entry(call func(context.Context, uuid.UUID) (*event.OutboxEntryDTO, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.pathUUID(c, "id")
		if !ok {
			return
		}
		dto, err := call(c.Request.Context(), id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, dto)
	}
}

// GetDeadLetterEntries handles GET /system/outbox/dead
func (h *OutboxHandler) GetDeadLetterEntries(c *gin.Context) {
	var filter event.OutboxFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.outbox.GetDeadLetterEntries(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// RetryAllDeadEntries handles POST /system/outbox/dead/retry-all
func (h *OutboxHandler) RetryAllDeadEntries(c *gin.Context) {
	n, err := h.outbox.RetryAllDeadEntries(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RetryAllResponse{Count: n})
}

// GetStats handles GET /system/outbox/stats
func (h *OutboxHandler) GetStats(c *gin.Context) {
	stats, err := h.outbox.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
