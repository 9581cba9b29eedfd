package middleware

import (
	"net/http"

	"github.com/erp/inventory-ledger/internal/infrastructure/logger"
	"github.com/erp/inventory-ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Headers carrying the caller's identity. Authentication happens upstream;
// the ledger trusts these values and only checks their shape.
const (
	TenantHeaderKey = "X-Tenant-ID"
	UserHeaderKey   = "X-User-ID"
)

const (
	tenantIDKey = "tenant_id"
	userIDKey   = "user_id"
)

// TenantContext requires a valid X-Tenant-ID on every request it guards and
// makes the tenant (and the optional X-User-ID) available to handlers, the
// request logger and the active span
func TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(TenantHeaderKey)
		if raw == "" {
			abortWithCode(c, dto.ErrCodeMissingTenant, "X-Tenant-ID header is required")
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			abortWithCode(c, dto.ErrCodeMissingTenant, "X-Tenant-ID must be a non-nil UUID")
			return
		}

		ctx := c.Request.Context()
		reqLogger := logger.GetGinLogger(c)
		ctx, reqLogger = logger.WithTenantID(ctx, reqLogger, tenantID)
		c.Set(tenantIDKey, tenantID)

		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("tenant_id", tenantID.String()))

		if rawUser := c.GetHeader(UserHeaderKey); rawUser != "" {
			userID, err := uuid.Parse(rawUser)
			if err != nil {
				abortWithCode(c, dto.ErrCodeBadRequest, "X-User-ID must be a UUID")
				return
			}
			ctx, reqLogger = logger.WithUserID(ctx, reqLogger, userID)
			c.Set(userIDKey, userID)
			span.SetAttributes(attribute.String("user_id", userID.String()))
		}

		c.Request = c.Request.WithContext(ctx)
		logger.SetGinLogger(c, reqLogger)
		c.Next()
	}
}

// GetTenantID returns the tenant set by TenantContext, or uuid.Nil
func GetTenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(tenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// GetUserID returns the caller's user ID when X-User-ID was sent
func GetUserID(c *gin.Context) *uuid.UUID {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return &id
		}
	}
	return nil
}

func abortWithCode(c *gin.Context, code, message string) {
	logger.GetGinLogger(c).Debug("Request rejected", zap.String("code", code), zap.String("reason", message))
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(
		code, message, logger.GetRequestID(c.Request.Context()),
	))
}

// statusText is used for span status on error responses
func statusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "HTTP error"
}
