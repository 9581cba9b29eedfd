package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics records ledger business metrics: posted movements, rejected
// postings, adjustment cost, and periodically collected reservation gauges.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	movementsTotal        *Counter
	movementQuantity      *Histogram
	rejectedPostingsTotal *Counter
	adjustmentCost        *Histogram

	reservedQuantity      *Gauge[float64]
	openReservations      *Gauge[int64]
	lowAvailableLines     *Gauge[int64]
	lowAvailableThreshold decimal.Decimal

	provider LedgerStateProvider

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// LedgerStateProvider reads aggregated ledger state for gauge collection.
type LedgerStateProvider interface {
	// GetActiveTenantIDs returns tenants that own at least one stock line
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
	// GetReservedQuantityByWarehouse returns the summed reserved quantity per warehouse
	GetReservedQuantityByWarehouse(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	// GetOpenReservationCount returns the number of active or partially fulfilled reservations
	GetOpenReservationCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
	// GetLowAvailableCount returns the number of stock lines whose available
	// quantity is below threshold while holding stock
	GetLowAvailableCount(ctx context.Context, tenantID uuid.UUID, threshold decimal.Decimal) (int64, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter                 metric.Meter
	Logger                *zap.Logger
	Provider              LedgerStateProvider
	LowAvailableThreshold decimal.Decimal
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics setup error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

var (
	instMovements = Instrument{
		Name: "ledger_movements_total", Description: "Total number of posted stock movements", Unit: "{movements}",
	}
	instMovementQuantity = Instrument{
		Name: "ledger_movement_quantity", Description: "Quantity moved per stock movement", Unit: "{units}",
		Boundaries: QuantityBuckets,
	}
	instRejectedPostings = Instrument{
		Name: "ledger_rejected_postings_total", Description: "Ledger postings rejected by a business rule", Unit: "{postings}",
	}
	instAdjustmentCost = Instrument{
		Name: "ledger_adjustment_cost", Description: "Absolute cost impact of applied inventory adjustments", Unit: "{currency}",
		Boundaries: CostBuckets,
	}
	instReservedQuantity = Instrument{
		Name: "ledger_reserved_quantity", Description: "Reserved quantity per warehouse", Unit: "{units}",
	}
	instOpenReservations = Instrument{
		Name: "ledger_open_reservations", Description: "Active or partially fulfilled reservations", Unit: "{reservations}",
	}
	instLowAvailableLines = Instrument{
		Name: "ledger_low_available_lines", Description: "Stock lines whose available quantity is below the threshold", Unit: "{lines}",
	}
)

// NewLedgerMetrics creates the ledger instruments on the given meter.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:                 cfg.Meter,
		logger:                logger,
		provider:              cfg.Provider,
		lowAvailableThreshold: cfg.LowAvailableThreshold,
		stopChan:              make(chan struct{}),
	}

	var err error
	if lm.movementsTotal, err = NewCounter(cfg.Meter, instMovements); err != nil {
		return nil, err
	}
	if lm.movementQuantity, err = NewHistogram(cfg.Meter, instMovementQuantity); err != nil {
		return nil, err
	}
	if lm.rejectedPostingsTotal, err = NewCounter(cfg.Meter, instRejectedPostings); err != nil {
		return nil, err
	}
	if lm.adjustmentCost, err = NewHistogram(cfg.Meter, instAdjustmentCost); err != nil {
		return nil, err
	}
	if lm.reservedQuantity, err = NewFloatGauge(cfg.Meter, instReservedQuantity); err != nil {
		return nil, err
	}
	if lm.openReservations, err = NewGauge(cfg.Meter, instOpenReservations); err != nil {
		return nil, err
	}
	if lm.lowAvailableLines, err = NewGauge(cfg.Meter, instLowAvailableLines); err != nil {
		return nil, err
	}
	return lm, nil
}

// RecordMovement counts a posted movement and its quantity
func (lm *LedgerMetrics) RecordMovement(ctx context.Context, tenantID uuid.UUID, movementType string, quantity decimal.Decimal) {
	attrs := []attribute.KeyValue{AttrTenantID.String(tenantID.String()), AttrMovementType.String(movementType)}
	lm.movementsTotal.Inc(ctx, attrs...)
	lm.movementQuantity.Record(ctx, quantity.Abs().InexactFloat64(), attrs...)
}

// RecordRejectedPosting counts a posting refused with a domain error code
func (lm *LedgerMetrics) RecordRejectedPosting(ctx context.Context, tenantID uuid.UUID, operation, code string) {
	lm.rejectedPostingsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOperation.String(operation),
		AttrErrorCode.String(code),
	)
}

// RecordAdjustmentCost records the cost impact of one applied adjustment line
func (lm *LedgerMetrics) RecordAdjustmentCost(ctx context.Context, tenantID uuid.UUID, reason string, cost decimal.Decimal) {
	lm.adjustmentCost.Record(ctx, cost.Abs().InexactFloat64(),
		AttrTenantID.String(tenantID.String()),
		AttrReason.String(reason),
	)
}

// StartPeriodicCollection collects gauges every interval until Stop is
// called or ctx ends. Non-blocking; only the first call starts a collector.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go lm.runPeriodicCollection(ctx, interval)
	})
}

func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lm.Collect(ctx)
	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping ledger metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			lm.Collect(ctx)
		}
	}
}

// Collect records the gauges for every active tenant once
func (lm *LedgerMetrics) Collect(ctx context.Context) {
	if lm.provider == nil {
		lm.logger.Debug("No ledger state provider configured, skipping gauge collection")
		return
	}
	tenantIDs, err := lm.provider.GetActiveTenantIDs(ctx)
	if err != nil {
		lm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}
	for _, tenantID := range tenantIDs {
		lm.collectTenant(ctx, tenantID)
	}
}

func (lm *LedgerMetrics) collectTenant(ctx context.Context, tenantID uuid.UUID) {
	tenant := AttrTenantID.String(tenantID.String())

	reserved, err := lm.provider.GetReservedQuantityByWarehouse(ctx, tenantID)
	if err != nil {
		lm.logger.Warn("Failed to get reserved quantity", zap.String("tenant_id", tenantID.String()), zap.Error(err))
	} else {
		for warehouseID, qty := range reserved {
			lm.reservedQuantity.Record(ctx, qty.InexactFloat64(), tenant, AttrWarehouseID.String(warehouseID.String()))
		}
	}

	open, err := lm.provider.GetOpenReservationCount(ctx, tenantID)
	if err != nil {
		lm.logger.Warn("Failed to count open reservations", zap.String("tenant_id", tenantID.String()), zap.Error(err))
	} else {
		lm.openReservations.Record(ctx, open, tenant)
	}

	low, err := lm.provider.GetLowAvailableCount(ctx, tenantID, lm.lowAvailableThreshold)
	if err != nil {
		lm.logger.Warn("Failed to count low available lines", zap.String("tenant_id", tenantID.String()), zap.Error(err))
	} else {
		lm.lowAvailableLines.Record(ctx, low, tenant)
	}
}

// Stop stops periodic collection
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}
