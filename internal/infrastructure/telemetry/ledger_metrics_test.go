package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

type mockStateProvider struct {
	mock.Mock
}

func (m *mockStateProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockStateProvider) GetReservedQuantityByWarehouse(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

func (m *mockStateProvider) GetOpenReservationCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStateProvider) GetLowAvailableCount(ctx context.Context, tenantID uuid.UUID, threshold decimal.Decimal) (int64, error) {
	args := m.Called(ctx, tenantID, threshold)
	return args.Get(0).(int64), args.Error(1)
}

func newTestLedgerMetrics(t *testing.T, provider LedgerStateProvider) (*LedgerMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	lm, err := NewLedgerMetrics(LedgerMetricsConfig{
		Meter:                 mp.Meter("ledger-test"),
		Provider:              provider,
		LowAvailableThreshold: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	return lm, reader
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestNewLedgerMetrics(t *testing.T) {
	t.Run("rejects nil meter", func(t *testing.T) {
		lm, err := NewLedgerMetrics(LedgerMetricsConfig{})
		assert.Nil(t, lm)
		assert.ErrorIs(t, err, ErrMeterNil)
		assert.Equal(t, "NewLedgerMetrics: meter cannot be nil", err.Error())
	})

	t.Run("works with noop meter", func(t *testing.T) {
		lm, err := NewLedgerMetrics(LedgerMetricsConfig{Meter: noop.NewMeterProvider().Meter("noop")})
		require.NoError(t, err)
		assert.NotPanics(t, func() {
			lm.RecordMovement(context.Background(), uuid.New(), "INBOUND", decimal.NewFromInt(3))
			lm.RecordRejectedPosting(context.Background(), uuid.New(), "decrease", "INSUFFICIENT_STOCK")
			lm.RecordAdjustmentCost(context.Background(), uuid.New(), "DAMAGE", decimal.NewFromInt(-40))
			lm.Collect(context.Background())
			lm.Stop()
			lm.Stop()
		})
	})
}

func TestLedgerMetrics_RecordMovement(t *testing.T) {
	lm, reader := newTestLedgerMetrics(t, nil)
	tenantID := uuid.New()

	lm.RecordMovement(context.Background(), tenantID, "INBOUND", decimal.NewFromInt(10))
	lm.RecordMovement(context.Background(), tenantID, "INBOUND", decimal.NewFromInt(-4))

	m, ok := collectMetric(t, reader, "ledger_movements_total")
	require.True(t, ok)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	m, ok = collectMetric(t, reader, "ledger_movement_quantity")
	require.True(t, ok)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 14.0, hist.DataPoints[0].Sum, 0.0001)
}

func TestLedgerMetrics_Collect(t *testing.T) {
	t.Run("records gauges per tenant", func(t *testing.T) {
		provider := new(mockStateProvider)
		lm, reader := newTestLedgerMetrics(t, provider)
		tenantID := uuid.New()
		warehouseID := uuid.New()

		provider.On("GetActiveTenantIDs", mock.Anything).Return([]uuid.UUID{tenantID}, nil)
		provider.On("GetReservedQuantityByWarehouse", mock.Anything, tenantID).
			Return(map[uuid.UUID]decimal.Decimal{warehouseID: decimal.NewFromFloat(7.5)}, nil)
		provider.On("GetOpenReservationCount", mock.Anything, tenantID).Return(int64(3), nil)
		provider.On("GetLowAvailableCount", mock.Anything, tenantID, mock.Anything).Return(int64(2), nil)

		lm.Collect(context.Background())

		m, ok := collectMetric(t, reader, "ledger_open_reservations")
		require.True(t, ok)
		gauge, ok := m.Data.(metricdata.Gauge[int64])
		require.True(t, ok)
		require.Len(t, gauge.DataPoints, 1)
		assert.Equal(t, int64(3), gauge.DataPoints[0].Value)

		m, ok = collectMetric(t, reader, "ledger_reserved_quantity")
		require.True(t, ok)
		fgauge, ok := m.Data.(metricdata.Gauge[float64])
		require.True(t, ok)
		require.Len(t, fgauge.DataPoints, 1)
		assert.InDelta(t, 7.5, fgauge.DataPoints[0].Value, 0.0001)

		provider.AssertExpectations(t)
	})

	t.Run("stops when tenants cannot be listed", func(t *testing.T) {
		provider := new(mockStateProvider)
		lm, _ := newTestLedgerMetrics(t, provider)
		provider.On("GetActiveTenantIDs", mock.Anything).Return(nil, errors.New("db down"))

		lm.Collect(context.Background())

		provider.AssertNotCalled(t, "GetOpenReservationCount", mock.Anything, mock.Anything)
	})

	t.Run("continues past a failing gauge", func(t *testing.T) {
		provider := new(mockStateProvider)
		lm, reader := newTestLedgerMetrics(t, provider)
		tenantID := uuid.New()

		provider.On("GetActiveTenantIDs", mock.Anything).Return([]uuid.UUID{tenantID}, nil)
		provider.On("GetReservedQuantityByWarehouse", mock.Anything, tenantID).Return(nil, errors.New("boom"))
		provider.On("GetOpenReservationCount", mock.Anything, tenantID).Return(int64(0), errors.New("boom"))
		provider.On("GetLowAvailableCount", mock.Anything, tenantID, mock.Anything).Return(int64(4), nil)

		lm.Collect(context.Background())

		m, ok := collectMetric(t, reader, "ledger_low_available_lines")
		require.True(t, ok)
		gauge := m.Data.(metricdata.Gauge[int64])
		require.Len(t, gauge.DataPoints, 1)
		assert.Equal(t, int64(4), gauge.DataPoints[0].Value)
	})
}

func TestSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", sampler(1).Description())
	assert.Equal(t, "AlwaysOffSampler", sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestSetup_Disabled(t *testing.T) {
	ctx := context.Background()

	p, err := Setup(ctx, Config{Enabled: false}, nil)
	require.NoError(t, err)

	assert.False(t, p.Traces.IsEnabled())
	assert.False(t, p.Meters.IsEnabled())
	assert.False(t, p.Logs.IsEnabled())
	assert.NotNil(t, p.Traces.Tracer("test"))
	assert.NotNil(t, p.Meters.Meter("test"))
	assert.NoError(t, p.Shutdown(ctx))
}

func TestLifecycle_Shutdown(t *testing.T) {
	calls := 0
	l := lifecycle{signal: "metrics", logger: zap.NewNop(), shutdown: func(context.Context) error {
		calls++
		return errors.New("collector unreachable")
	}}

	assert.True(t, l.IsEnabled())
	err := l.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown metrics provider")
	assert.Equal(t, 1, calls)
}
