package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func idPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

// memLedger is an in-memory stand-in for the ledger tables used by service tests
type memLedger struct {
	mu           sync.Mutex
	lines        map[string]*inventory.StockLine
	movements    map[uuid.UUID]*inventory.Movement
	sequences    map[string]int64
	reservations map[uuid.UUID]*inventory.Reservation
	stockCounts  map[uuid.UUID]*inventory.StockCount
	cycleCounts  map[uuid.UUID]*inventory.CycleCount
	adjustments  map[uuid.UUID]*inventory.InventoryAdjustment
	events       []shared.DomainEvent
}

func newMemLedger() *memLedger {
	return &memLedger{
		lines:        make(map[string]*inventory.StockLine),
		movements:    make(map[uuid.UUID]*inventory.Movement),
		sequences:    make(map[string]int64),
		reservations: make(map[uuid.UUID]*inventory.Reservation),
		stockCounts:  make(map[uuid.UUID]*inventory.StockCount),
		cycleCounts:  make(map[uuid.UUID]*inventory.CycleCount),
		adjustments:  make(map[uuid.UUID]*inventory.InventoryAdjustment),
	}
}

func (m *memLedger) repositories() Repositories {
	return Repositories{
		StockLines:   memStockLines{m},
		Movements:    memMovements{m},
		Sequences:    memSequences{m},
		Reservations: memReservations{m},
		StockCounts:  memStockCounts{m},
		CycleCounts:  memCycleCounts{m},
		Adjustments:  memAdjustments{m},
		Events:       memEvents{m},
	}
}

func (m *memLedger) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(m.repositories())
}

func lineKey(tenantID uuid.UUID, key inventory.StockKey) string {
	return tenantID.String() + "|" + key.String()
}

func (m *memLedger) line(tenantID uuid.UUID, key inventory.StockKey) *inventory.StockLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines[lineKey(tenantID, key)]
}

func (m *memLedger) seed(tenantID uuid.UUID, key inventory.StockKey, qty, reserved int64) *inventory.StockLine {
	line, err := inventory.NewStockLine(tenantID, key)
	if err != nil {
		panic(err)
	}
	line.Quantity = dec(qty)
	line.ReservedQuantity = dec(reserved)
	m.mu.Lock()
	m.lines[lineKey(tenantID, key)] = line
	m.mu.Unlock()
	return line
}

func (m *memLedger) movementList() []*inventory.Movement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*inventory.Movement, 0, len(m.movements))
	for _, mv := range m.movements {
		out = append(out, mv)
	}
	return out
}

func (m *memLedger) movementsOfType(t inventory.MovementType) []*inventory.Movement {
	var out []*inventory.Movement
	for _, mv := range m.movementList() {
		if mv.MovementType == t {
			out = append(out, mv)
		}
	}
	return out
}

func (m *memLedger) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.EventType()
	}
	return out
}

type memStockLines struct{ m *memLedger }

func (r memStockLines) FindByKey(_ context.Context, tenantID uuid.UUID, key inventory.StockKey) (*inventory.StockLine, error) {
	if l := r.m.line(tenantID, key); l != nil {
		return l, nil
	}
	return nil, shared.ErrNotFound
}

func (r memStockLines) LockByKey(ctx context.Context, tenantID uuid.UUID, key inventory.StockKey) (*inventory.StockLine, error) {
	return r.FindByKey(ctx, tenantID, key)
}

func (r memStockLines) GetOrCreateLocked(_ context.Context, tenantID uuid.UUID, key inventory.StockKey) (*inventory.StockLine, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := lineKey(tenantID, key)
	if l, ok := r.m.lines[k]; ok {
		return l, nil
	}
	l, err := inventory.NewStockLine(tenantID, key)
	if err != nil {
		return nil, err
	}
	r.m.lines[k] = l
	return l, nil
}

func (r memStockLines) FindByID(_ context.Context, tenantID, id uuid.UUID) (*inventory.StockLine, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, l := range r.m.lines {
		if l.ID == id && l.TenantID == tenantID {
			return l, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memStockLines) FindByProductAndWarehouse(_ context.Context, tenantID, productID, warehouseID uuid.UUID) ([]inventory.StockLine, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.StockLine
	for _, l := range r.m.lines {
		if l.TenantID == tenantID && l.ProductID == productID && l.WarehouseID == warehouseID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r memStockLines) List(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]inventory.StockLine, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.StockLine
	for _, l := range r.m.lines {
		if l.TenantID == tenantID {
			out = append(out, *l)
		}
	}
	return out, int64(len(out)), nil
}

func (r memStockLines) Save(_ context.Context, line *inventory.StockLine) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.lines[lineKey(line.TenantID, line.Key())] = line
	return nil
}

type memMovements struct{ m *memLedger }

func (r memMovements) Create(_ context.Context, mv *inventory.Movement) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.movements[mv.ID] = mv
	return nil
}

func (r memMovements) FindByID(_ context.Context, tenantID, id uuid.UUID) (*inventory.Movement, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if mv, ok := r.m.movements[id]; ok && mv.TenantID == tenantID {
		return mv, nil
	}
	return nil, shared.ErrNotFound
}

func (r memMovements) LockByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.Movement, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r memMovements) MarkReversed(_ context.Context, mv *inventory.Movement) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.movements[mv.ID] = mv
	return nil
}

func (r memMovements) List(_ context.Context, tenantID uuid.UUID, _ inventory.MovementFilter) ([]inventory.Movement, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.Movement
	for _, mv := range r.m.movements {
		if mv.TenantID == tenantID {
			out = append(out, *mv)
		}
	}
	return out, int64(len(out)), nil
}

type memSequences struct{ m *memLedger }

func (r memSequences) Next(_ context.Context, tenantID uuid.UUID, key string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := tenantID.String() + "|" + key
	r.m.sequences[k]++
	return r.m.sequences[k], nil
}

type memReservations struct{ m *memLedger }

func (r memReservations) FindByID(_ context.Context, tenantID, id uuid.UUID) (*inventory.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if res, ok := r.m.reservations[id]; ok && res.TenantID == tenantID {
		return res, nil
	}
	return nil, shared.ErrNotFound
}

func (r memReservations) LockByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.Reservation, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r memReservations) FindExpired(_ context.Context, asOf time.Time, limit int) ([]inventory.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.Reservation
	for _, res := range r.m.reservations {
		if res.IsOpen() && res.IsExpired(asOf) && len(out) < limit {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r memReservations) List(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]inventory.Reservation, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.Reservation
	for _, res := range r.m.reservations {
		if res.TenantID == tenantID {
			out = append(out, *res)
		}
	}
	return out, int64(len(out)), nil
}

func (r memReservations) Create(_ context.Context, res *inventory.Reservation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.reservations[res.ID] = res
	return nil
}

func (r memReservations) Save(ctx context.Context, res *inventory.Reservation) error {
	return r.Create(ctx, res)
}

type memStockCounts struct{ m *memLedger }

func (r memStockCounts) FindByID(_ context.Context, tenantID, id uuid.UUID) (*inventory.StockCount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if sc, ok := r.m.stockCounts[id]; ok && sc.TenantID == tenantID {
		return sc, nil
	}
	return nil, shared.ErrNotFound
}

func (r memStockCounts) LockByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.StockCount, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r memStockCounts) List(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]inventory.StockCount, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.StockCount
	for _, sc := range r.m.stockCounts {
		if sc.TenantID == tenantID {
			out = append(out, *sc)
		}
	}
	return out, int64(len(out)), nil
}

func (r memStockCounts) Create(_ context.Context, sc *inventory.StockCount) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.stockCounts[sc.ID] = sc
	return nil
}

func (r memStockCounts) Save(ctx context.Context, sc *inventory.StockCount) error {
	return r.Create(ctx, sc)
}

type memCycleCounts struct{ m *memLedger }

func (r memCycleCounts) FindByID(_ context.Context, tenantID, id uuid.UUID) (*inventory.CycleCount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if cc, ok := r.m.cycleCounts[id]; ok && cc.TenantID == tenantID {
		return cc, nil
	}
	return nil, shared.ErrNotFound
}

func (r memCycleCounts) LockByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.CycleCount, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r memCycleCounts) FindDue(_ context.Context, tenantID uuid.UUID, asOf time.Time) ([]inventory.CycleCount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.CycleCount
	for _, cc := range r.m.cycleCounts {
		if cc.TenantID == tenantID && cc.Status == inventory.CountStatusPlanned && !cc.ScheduledDate.After(asOf) {
			out = append(out, *cc)
		}
	}
	return out, nil
}

func (r memCycleCounts) List(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]inventory.CycleCount, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.CycleCount
	for _, cc := range r.m.cycleCounts {
		if cc.TenantID == tenantID {
			out = append(out, *cc)
		}
	}
	return out, int64(len(out)), nil
}

func (r memCycleCounts) Create(_ context.Context, cc *inventory.CycleCount) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.cycleCounts[cc.ID] = cc
	return nil
}

func (r memCycleCounts) Save(ctx context.Context, cc *inventory.CycleCount) error {
	return r.Create(ctx, cc)
}

type memAdjustments struct{ m *memLedger }

func (r memAdjustments) FindByID(_ context.Context, tenantID, id uuid.UUID) (*inventory.InventoryAdjustment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if a, ok := r.m.adjustments[id]; ok && a.TenantID == tenantID {
		return a, nil
	}
	return nil, shared.ErrNotFound
}

func (r memAdjustments) LockByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.InventoryAdjustment, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r memAdjustments) List(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]inventory.InventoryAdjustment, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.InventoryAdjustment
	for _, a := range r.m.adjustments {
		if a.TenantID == tenantID {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}

func (r memAdjustments) Create(_ context.Context, a *inventory.InventoryAdjustment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.adjustments[a.ID] = a
	return nil
}

func (r memAdjustments) Save(ctx context.Context, a *inventory.InventoryAdjustment) error {
	return r.Create(ctx, a)
}

type memEvents struct{ m *memLedger }

func (r memEvents) Record(_ context.Context, events ...shared.DomainEvent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.events = append(r.m.events, events...)
	return nil
}

// MockSequenceGenerator is a mock implementation of inventory.SequenceGenerator
type MockSequenceGenerator struct {
	mock.Mock
}

func (m *MockSequenceGenerator) Next(ctx context.Context, tenantID uuid.UUID, key string) (int64, error) {
	args := m.Called(ctx, tenantID, key)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventRecorder is a mock implementation of shared.EventRecorder
type MockEventRecorder struct {
	mock.Mock
}

func (m *MockEventRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockReservationRepository is a mock implementation of inventory.ReservationRepository
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.Reservation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Reservation), args.Error(1)
}

func (m *MockReservationRepository) LockByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.Reservation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Reservation), args.Error(1)
}

func (m *MockReservationRepository) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]inventory.Reservation, error) {
	args := m.Called(ctx, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.Reservation), args.Error(1)
}

func (m *MockReservationRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]inventory.Reservation, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]inventory.Reservation), args.Get(1).(int64), args.Error(2)
}

func (m *MockReservationRepository) Create(ctx context.Context, r *inventory.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockReservationRepository) Save(ctx context.Context, r *inventory.Reservation) error {
	return m.Called(ctx, r).Error(0)
}
