package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	appevent "github.com/erp/inventory-ledger/internal/application/event"
	appinv "github.com/erp/inventory-ledger/internal/application/inventory"
	"github.com/erp/inventory-ledger/internal/infrastructure/event"
	"github.com/erp/inventory-ledger/internal/infrastructure/persistence"
	"github.com/erp/inventory-ledger/internal/infrastructure/persistence/models"
	"github.com/erp/inventory-ledger/internal/interfaces/http/dto"
	"github.com/erp/inventory-ledger/internal/interfaces/http/middleware"
	"github.com/erp/inventory-ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	t        *testing.T
	engine   *gin.Engine
	tenantID uuid.UUID
	userID   uuid.UUID
}

// newTestAPI serves the full ledger API over an in-memory SQLite database
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := persistence.Open(sqlite.Open(":memory:"), persistence.DatabaseOptions{})
	require.NoError(t, err)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.DB.AutoMigrate(
		&models.StockLineModel{},
		&models.MovementModel{},
		&models.SequenceModel{},
		&models.ReservationModel{},
		&models.StockCountModel{},
		&models.StockCountItemModel{},
		&models.CycleCountModel{},
		&models.CycleCountItemModel{},
		&models.InventoryAdjustmentModel{},
		&models.AdjustmentItemModel{},
		&models.OutboxEntryModel{},
	))

	log := zaptest.NewLogger(t)
	scope := persistence.NewGormTransactionScope(db.DB, event.NewLedgerSerializer())
	ledger := appinv.NewLedgerService(scope,
		persistence.NewGormStockLineRepository(db.DB),
		persistence.NewGormMovementRepository(db.DB),
		log,
	)

	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName: "inventory-ledger",
		MaxBodySize: 1 << 20,
		CORS:        middleware.DefaultCORSConfig(),
	}, log)
	require.NoError(t, err)

	system := NewSystemHandler("inventory-ledger", "test", db)
	engine.GET("/health", system.Health)
	engine.NoRoute(system.NoRoute)

	router.NewRouter(engine, router.WithTenantMiddleware(middleware.TenantContext())).
		Register(NewLedgerHandler(ledger)).
		Register(NewReservationHandler(appinv.NewReservationService(scope, persistence.NewGormReservationRepository(db.DB), log))).
		Register(NewStockCountHandler(appinv.NewStockCountService(scope, persistence.NewGormStockCountRepository(db.DB), log))).
		Register(NewCycleCountHandler(appinv.NewCycleCountService(scope, persistence.NewGormCycleCountRepository(db.DB), log))).
		Register(NewAdjustmentHandler(appinv.NewAdjustmentService(scope, persistence.NewGormAdjustmentRepository(db.DB), log))).
		RegisterSystem(system).
		RegisterSystem(NewOutboxHandler(appevent.NewOutboxService(event.NewGormOutboxRepository(db.DB), log))).
		Setup()

	return &testAPI{t: t, engine: engine, tenantID: uuid.New(), userID: uuid.New()}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeaderKey, a.tenantID.String())
	req.Header.Set(middleware.UserHeaderKey, a.userID.String())
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

// decode unwraps the response envelope into out and returns the envelope
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *dto.ErrorInfo  `json:"error"`
		Meta    *dto.Meta       `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return dto.Response{Success: env.Success, Error: env.Error, Meta: env.Meta}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func (a *testAPI) receive(productID, warehouseID uuid.UUID, qty int64) appinv.PostingResponse {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/stock/increase", map[string]any{
		"product_id":   productID,
		"warehouse_id": warehouseID,
		"quantity":     dec(qty),
		"unit_cost":    dec(2),
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var posting appinv.PostingResponse
	decode(a.t, w, &posting)
	return posting
}

func TestLedgerHandler_Postings(t *testing.T) {
	api := newTestAPI(t)
	productID, warehouseID := uuid.New(), uuid.New()

	first := api.receive(productID, warehouseID, 10)
	assert.True(t, dec(10).Equal(first.StockLine.Quantity))
	assert.Equal(t, int64(1), first.Movement.SequenceNumber)

	t.Run("decrease beyond stock is rejected", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/stock/decrease", map[string]any{
			"product_id":   productID,
			"warehouse_id": warehouseID,
			"quantity":     dec(50),
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decode(t, w, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
		assert.NotEmpty(t, resp.Error.RequestID)
	})

	t.Run("reserve then release", func(t *testing.T) {
		body := map[string]any{"product_id": productID, "warehouse_id": warehouseID, "quantity": dec(4)}
		w := api.do(http.MethodPost, "/api/v1/stock/reserve", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var reserved appinv.PostingResponse
		decode(t, w, &reserved)
		assert.True(t, dec(6).Equal(reserved.StockLine.AvailableQuantity))

		body["quantity"] = dec(5)
		w = api.do(http.MethodPost, "/api/v1/stock/release", body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "OVER_RELEASE", decode(t, w, nil).Error.Code)

		body["quantity"] = dec(4)
		w = api.do(http.MethodPost, "/api/v1/stock/release", body)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("lookup by key", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/stock-lines/lookup?product_id="+productID.String()+"&warehouse_id="+warehouseID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var line appinv.StockLineResponse
		decode(t, w, &line)
		assert.Equal(t, first.StockLine.ID, line.ID)
		assert.True(t, line.ReservedQuantity.IsZero())
	})

	t.Run("list movements", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/movements?product_id="+productID.String()+"&page_size=10", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var movements []appinv.MovementResponse
		resp := decode(t, w, &movements)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(len(movements)), resp.Meta.Total)
		assert.Len(t, movements, 3)
	})
}

func TestLedgerHandler_ReverseMovement(t *testing.T) {
	api := newTestAPI(t)
	posting := api.receive(uuid.New(), uuid.New(), 7)

	w := api.do(http.MethodPost, "/api/v1/movements/"+posting.Movement.ID.String()+"/reverse", map[string]any{"reason": "keyed twice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reversed appinv.ReverseMovementResponse
	decode(t, w, &reversed)
	assert.True(t, reversed.StockLine.Quantity.IsZero())
	assert.Equal(t, int64(2), reversed.Compensation.SequenceNumber)

	w = api.do(http.MethodPost, "/api/v1/movements/"+posting.Movement.ID.String()+"/reverse", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_FINALIZED", decode(t, w, nil).Error.Code)
}

func TestLedgerHandler_RequestErrors(t *testing.T) {
	api := newTestAPI(t)

	t.Run("validation details", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/stock/adjust", map[string]any{"new_quantity": dec(1)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.NotEmpty(t, resp.Error.Details)
	})

	t.Run("malformed path id", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/stock-lines/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown stock line", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/stock-lines/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", decode(t, w, nil).Error.Code)
	})

	t.Run("missing tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stock-lines", nil)
		w := httptest.NewRecorder()
		api.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeMissingTenant, decode(t, w, nil).Error.Code)
	})

	t.Run("tenants are isolated", func(t *testing.T) {
		posting := api.receive(uuid.New(), uuid.New(), 3)
		other := *api
		other.tenantID = uuid.New()
		w := other.do(http.MethodGet, "/api/v1/stock-lines/"+posting.StockLine.ID.String(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/nowhere", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReservationHandler_Lifecycle(t *testing.T) {
	api := newTestAPI(t)
	productID, warehouseID := uuid.New(), uuid.New()
	api.receive(productID, warehouseID, 10)

	w := api.do(http.MethodPost, "/api/v1/reservations", map[string]any{
		"product_id":       productID,
		"warehouse_id":     warehouseID,
		"quantity":         dec(6),
		"reservation_type": "SALES_ORDER",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reservation appinv.ReservationResponse
	decode(t, w, &reservation)
	assert.Equal(t, "ACTIVE", reservation.Status)

	w = api.do(http.MethodPost, "/api/v1/reservations/"+reservation.ID.String()+"/partial-fulfill", map[string]any{"quantity": dec(2)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &reservation)
	assert.Equal(t, "PARTIALLY_FULFILLED", reservation.Status)
	assert.True(t, dec(4).Equal(reservation.RemainingQuantity))

	w = api.do(http.MethodPost, "/api/v1/reservations/"+reservation.ID.String()+"/fulfill", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &reservation)
	assert.Equal(t, "FULFILLED", reservation.Status)

	w = api.do(http.MethodPost, "/api/v1/reservations/"+reservation.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(http.MethodGet, "/api/v1/stock-lines/lookup?product_id="+productID.String()+"&warehouse_id="+warehouseID.String(), nil)
	var line appinv.StockLineResponse
	decode(t, w, &line)
	assert.True(t, dec(4).Equal(line.Quantity))
	assert.True(t, line.ReservedQuantity.IsZero())

	w = api.do(http.MethodGet, "/api/v1/reservations?status=FULFILLED", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []appinv.ReservationResponse
	decode(t, w, &list)
	assert.Len(t, list, 1)
}

func TestAdjustmentHandler_Workflow(t *testing.T) {
	api := newTestAPI(t)
	productID, warehouseID := uuid.New(), uuid.New()
	api.receive(productID, warehouseID, 10)

	w := api.do(http.MethodPost, "/api/v1/adjustments", map[string]any{
		"warehouse_id": warehouseID,
		"reason":       "DAMAGE",
		"items": []map[string]any{
			{"product_id": productID, "actual_quantity": dec(7), "unit_cost": dec(2)},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var adj appinv.AdjustmentResponse
	decode(t, w, &adj)
	assert.Equal(t, "DRAFT", adj.Status)
	require.Len(t, adj.Items, 1)

	base := "/api/v1/adjustments/" + adj.ID.String()
	w = api.do(http.MethodPost, base+"/process", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "draft cannot be processed")

	for _, step := range []string{"/submit", "/approve", "/process"} {
		w = api.do(http.MethodPost, base+step, nil)
		require.Equal(t, http.StatusOK, w.Code, step+": "+w.Body.String())
	}
	decode(t, w, &adj)
	assert.Equal(t, "PROCESSED", adj.Status)

	w = api.do(http.MethodGet, "/api/v1/stock-lines/lookup?product_id="+productID.String()+"&warehouse_id="+warehouseID.String(), nil)
	var line appinv.StockLineResponse
	decode(t, w, &line)
	assert.True(t, dec(7).Equal(line.Quantity))
}

func TestStockCountHandler_CountToAdjustment(t *testing.T) {
	api := newTestAPI(t)
	productID, warehouseID := uuid.New(), uuid.New()
	api.receive(productID, warehouseID, 10)

	w := api.do(http.MethodPost, "/api/v1/stock-counts", map[string]any{
		"warehouse_id": warehouseID,
		"items":        []map[string]any{{"product_id": productID}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var count appinv.StockCountResponse
	decode(t, w, &count)
	require.Len(t, count.Items, 1)
	assert.True(t, dec(10).Equal(count.Items[0].SystemQuantity))

	base := "/api/v1/stock-counts/" + count.ID.String()
	w = api.do(http.MethodPost, base+"/complete", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodPost, base+"/counts", map[string]any{
		"counts": []map[string]any{{"item_id": count.Items[0].ID, "counted_quantity": dec(9)}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodPost, base+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodPost, base+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodPost, base+"/adjustment", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var adj appinv.AdjustmentResponse
	decode(t, w, &adj)
	require.NotNil(t, adj.StockCountID)
	assert.Equal(t, count.ID, *adj.StockCountID)
}

func TestOutboxHandler(t *testing.T) {
	api := newTestAPI(t)
	api.receive(uuid.New(), uuid.New(), 1)

	w := api.do(http.MethodGet, "/api/v1/system/outbox/stats", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats appevent.OutboxStatsDTO
	decode(t, w, &stats)
	assert.Positive(t, stats.Pending)

	w = api.do(http.MethodGet, "/api/v1/system/outbox/dead", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w, nil)
	require.NotNil(t, resp.Meta)
	assert.Zero(t, resp.Meta.Total)

	w = api.do(http.MethodPost, "/api/v1/system/outbox/"+uuid.NewString()+"/retry", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping() error { return p.err }

func TestSystemHandler(t *testing.T) {
	engine := gin.New()
	healthy := NewSystemHandler("inventory-ledger", "1.2.3", stubPinger{})
	failing := NewSystemHandler("inventory-ledger", "1.2.3", stubPinger{err: errors.New("connection refused")})
	engine.GET("/health", healthy.Health)
	engine.GET("/health-down", failing.Health)
	healthy.RegisterRoutes(engine.Group("/system"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health-down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/system/info", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var info SystemInfoResponse
	decode(t, w, &info)
	assert.Equal(t, "1.2.3", info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
