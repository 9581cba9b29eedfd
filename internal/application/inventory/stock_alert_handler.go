package inventory

import (
	"context"
	"fmt"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Alert types raised by StockAlertHandler
const (
	AlertTypeLowStock   = "low_stock"
	AlertTypeOutOfStock = "out_of_stock"
)

// StockAlertNotifier delivers stock alerts to a channel (log, in-app, email)
type StockAlertNotifier interface {
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockAlert describes a stock line whose available quantity crossed the
// alert threshold
type StockAlert struct {
	TenantID          string `json:"tenant_id"`
	StockLineID       string `json:"stock_line_id"`
	ProductID         string `json:"product_id"`
	WarehouseID       string `json:"warehouse_id"`
	Quantity          string `json:"quantity"`
	ReservedQuantity  string `json:"reserved_quantity"`
	AvailableQuantity string `json:"available_quantity"`
	Threshold         string `json:"threshold"`
	AlertType         string `json:"alert_type"`
	TriggeredBy       string `json:"triggered_by"`
	SequenceNumber    int64  `json:"sequence_number"`
}

// StockAlertHandler consumes ledger events from the outbox and raises an
// alert when a posting takes the available quantity of a line from above
// the threshold to at or below it. Lines already under the threshold do
// not alert again until they recover.
type StockAlertHandler struct {
	logger    *zap.Logger
	notifier  StockAlertNotifier
	threshold decimal.Decimal
}

// NewStockAlertHandler creates a handler alerting at or below threshold
func NewStockAlertHandler(threshold decimal.Decimal, logger *zap.Logger) *StockAlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockAlertHandler{
		logger:    logger,
		threshold: threshold,
	}
}

// WithNotifier sets the notifier alerts are sent through
func (h *StockAlertHandler) WithNotifier(notifier StockAlertNotifier) *StockAlertHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the ledger events that can lower available stock
func (h *StockAlertHandler) EventTypes() []string {
	return []string{
		inventory.EventTypeStockDecreased,
		inventory.EventTypeStockReserved,
		inventory.EventTypeStockAdjusted,
	}
}

// Handle evaluates one ledger event
func (h *StockAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var change inventory.StockChange
	switch e := event.(type) {
	case *inventory.StockDecreasedEvent:
		change = e.StockChange
	case *inventory.StockReservedEvent:
		change = e.StockChange
	case *inventory.StockAdjustedEvent:
		change = e.StockChange
	default:
		return fmt.Errorf("unexpected event type %s", event.EventType())
	}

	before := change.QuantityBefore.Sub(change.ReservedQuantityBefore)
	after := change.QuantityAfter.Sub(change.ReservedQuantityAfter)
	if before.LessThanOrEqual(h.threshold) || after.GreaterThan(h.threshold) {
		return nil
	}

	alertType := AlertTypeLowStock
	if after.LessThanOrEqual(decimal.Zero) {
		alertType = AlertTypeOutOfStock
	}
	alert := StockAlert{
		TenantID:          event.TenantID().String(),
		StockLineID:       change.StockLineID.String(),
		ProductID:         change.ProductID.String(),
		WarehouseID:       change.WarehouseID.String(),
		Quantity:          change.QuantityAfter.String(),
		ReservedQuantity:  change.ReservedQuantityAfter.String(),
		AvailableQuantity: after.String(),
		Threshold:         h.threshold.String(),
		AlertType:         alertType,
		TriggeredBy:       event.EventType(),
		SequenceNumber:    change.SequenceNumber,
	}

	h.logger.Warn("Stock available below threshold",
		zap.String("tenant_id", alert.TenantID),
		zap.String("product_id", alert.ProductID),
		zap.String("warehouse_id", alert.WarehouseID),
		zap.String("available_quantity", alert.AvailableQuantity),
		zap.String("alert_type", alertType),
	)

	if h.notifier == nil {
		return nil
	}
	// A failed notification is logged, not retried: redelivering the event
	// would not change its outcome.
	if err := h.notifier.SendAlert(ctx, alert); err != nil {
		h.logger.Error("Failed to send stock alert",
			zap.String("stock_line_id", alert.StockLineID),
			zap.Error(err),
		)
	}
	return nil
}

var _ shared.EventHandler = (*StockAlertHandler)(nil)

// LoggingStockAlertNotifier writes alerts to the log
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{logger: logger}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("tenant_id", alert.TenantID),
		zap.String("product_id", alert.ProductID),
		zap.String("warehouse_id", alert.WarehouseID),
		zap.String("available_qty", alert.AvailableQuantity),
		zap.String("threshold", alert.Threshold),
		zap.String("triggered_by", alert.TriggeredBy),
	)
	return nil
}
