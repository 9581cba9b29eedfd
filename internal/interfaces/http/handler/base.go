package handler

import (
	"errors"
	"net/http"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/logger"
	"github.com/erp/inventory-ledger/internal/interfaces/http/dto"
	"github.com/erp/inventory-ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func requestID(c *gin.Context) string {
	return logger.GetRequestID(c.Request.Context())
}

// tenantID returns the tenant resolved by middleware.TenantContext
func tenantID(c *gin.Context) uuid.UUID {
	return middleware.GetTenantID(c)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Paginated sends a page of items with pagination meta
func Paginated[T any](c *gin.Context, page *shared.Paginated[T]) {
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, requestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// BindError reports a failed ShouldBind call. Validator failures list the
// rejected fields; anything else (malformed JSON, wrong types) is a plain
// bad request.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	if details := dto.ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			"Request validation failed",
			requestID(c),
			details,
		))
		return
	}
	h.BadRequest(c, "Invalid request body: "+err.Error())
}

// HandleError converts domain errors to their mapped status. Everything
// else is logged and hidden behind a 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, domainErr.Code, domainErr.Message)
		return
	}

	logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
	h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
}

// bindJSON binds and validates the request body, writing the error
// response itself on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.BindError(c, err)
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body for requests whose fields are all
// optional
func (h *BaseHandler) bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.bindJSON(c, req)
}

func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		h.BindError(c, err)
		return false
	}
	return true
}

// pathUUID parses a UUID path parameter
func (h *BaseHandler) pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID converts a query value already validated with the uuid tag
func optionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

// operatorOrCaller falls back to the X-User-ID caller when a request does
// not name an operator
func operatorOrCaller(c *gin.Context, operatorID *uuid.UUID) *uuid.UUID {
	if operatorID != nil {
		return operatorID
	}
	return middleware.GetUserID(c)
}

// pageQuery is the shared part of every list query string
type pageQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy  string `form:"order_by" binding:"omitempty,max=50"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}
