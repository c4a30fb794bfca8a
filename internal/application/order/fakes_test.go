package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/catalog"
	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory database whose transactions roll back by
// restoring a snapshot taken when they began.
type memStore struct {
	mu     sync.Mutex
	items  map[uuid.UUID]catalog.Item
	orders map[uuid.UUID]order.Order
	lines  map[uuid.UUID]order.Line

	failOrderCreate error
	// onLineRead runs once, right after the next line lookup
	onLineRead func()
}

func newMemStore(items ...*catalog.Item) *memStore {
	st := &memStore{
		items:  make(map[uuid.UUID]catalog.Item),
		orders: make(map[uuid.UUID]order.Order),
		lines:  make(map[uuid.UUID]order.Line),
	}
	for _, it := range items {
		st.items[it.ID] = *it
	}
	return st
}

func (st *memStore) stock(id uuid.UUID) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.items[id].Stock
}

func (st *memStore) orderCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.orders)
}

func (st *memStore) lineCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.lines)
}

type snapshot struct {
	items  map[uuid.UUID]catalog.Item
	orders map[uuid.UUID]order.Order
	lines  map[uuid.UUID]order.Line
}

func (st *memStore) snapshot() snapshot {
	s := snapshot{
		items:  make(map[uuid.UUID]catalog.Item, len(st.items)),
		orders: make(map[uuid.UUID]order.Order, len(st.orders)),
		lines:  make(map[uuid.UUID]order.Line, len(st.lines)),
	}
	for k, v := range st.items {
		s.items[k] = v
	}
	for k, v := range st.orders {
		s.orders[k] = v
	}
	for k, v := range st.lines {
		s.lines[k] = v
	}
	return s
}

func (st *memStore) restore(s snapshot) {
	st.items, st.orders, st.lines = s.items, s.orders, s.lines
}

// Execute implements TransactionScope
func (st *memStore) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := st.snapshot()
	if err := fn(memRepos{st: st, inTx: true}); err != nil {
		st.restore(snap)
		return err
	}
	return nil
}

// interleavedScope runs transactions without the store mutex and
// without rollback, so a test can slip a second transaction between the
// reads and writes of the first the way two database sessions would.
type interleavedScope struct {
	st *memStore
}

func (sc interleavedScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(memRepos{st: sc.st, inTx: true})
}

type memRepos struct {
	st   *memStore
	inTx bool
}

func (r memRepos) Items() catalog.ItemRepository { return memItemRepo(r) }
func (r memRepos) Stock() catalog.StockLedger    { return memLedger(r) }
func (r memRepos) Orders() order.Repository      { return memOrderRepo(r) }
func (r memRepos) Lines() order.LineRepository   { return memLineRepo(r) }

func (r memRepos) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.st.mu.Lock()
	return r.st.mu.Unlock
}

type memItemRepo memRepos

func (r memItemRepo) FindByID(_ context.Context, id uuid.UUID) (*catalog.Item, error) {
	defer memRepos(r).lock()()
	it, ok := r.st.items[id]
	if !ok {
		return nil, shared.ErrItemNotFound
	}
	return &it, nil
}

func (r memItemRepo) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Item, error) {
	defer memRepos(r).lock()()
	out := make(map[uuid.UUID]*catalog.Item)
	for _, id := range ids {
		if it, ok := r.st.items[id]; ok {
			out[id] = &it
		}
	}
	return out, nil
}

func (r memItemRepo) FindBySlug(_ context.Context, slug string) (*catalog.Item, error) {
	defer memRepos(r).lock()()
	for _, it := range r.st.items {
		if it.Slug == slug {
			return &it, nil
		}
	}
	return nil, shared.ErrItemNotFound
}

func (r memItemRepo) Save(_ context.Context, item *catalog.Item) error {
	defer memRepos(r).lock()()
	r.st.items[item.ID] = *item
	return nil
}

func (r memItemRepo) Count(context.Context) (int64, error) {
	defer memRepos(r).lock()()
	return int64(len(r.st.items)), nil
}

type memLedger memRepos

func (r memLedger) Reserve(_ context.Context, itemID uuid.UUID, qty int) error {
	defer memRepos(r).lock()()
	if qty <= 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Quantity must be positive")
	}
	it, ok := r.st.items[itemID]
	if !ok {
		return shared.ErrItemNotFound
	}
	if it.Stock < qty {
		return shared.NewInsufficientStockError(itemID.String(), qty, it.Stock)
	}
	it.Stock -= qty
	r.st.items[itemID] = it
	return nil
}

func (r memLedger) Release(_ context.Context, itemID uuid.UUID, qty int) error {
	defer memRepos(r).lock()()
	it, ok := r.st.items[itemID]
	if !ok {
		return shared.ErrItemNotFound
	}
	it.Stock += qty
	r.st.items[itemID] = it
	return nil
}

type memOrderRepo memRepos

func (r memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	defer memRepos(r).lock()()
	o, ok := r.st.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	o.ClearDomainEvents()
	return &o, nil
}

// FindByIDForUpdate relies on the store mutex held by Execute
func (r memOrderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.FindByID(ctx, id)
}

func (r memOrderRepo) FindAll(_ context.Context, f order.ListFilter) ([]order.Order, int64, error) {
	defer memRepos(r).lock()()
	f.Filter = f.Normalize()
	var matched []order.Order
	for _, o := range r.st.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	start := min(f.Offset(), len(matched))
	end := min(start+f.PageSize, len(matched))
	return matched[start:end], total, nil
}

func (r memOrderRepo) Create(_ context.Context, o *order.Order) error {
	defer memRepos(r).lock()()
	if r.st.failOrderCreate != nil {
		return r.st.failOrderCreate
	}
	r.st.orders[o.ID] = *o
	return nil
}

func (r memOrderRepo) UpdateState(_ context.Context, o *order.Order, from order.Status) error {
	defer memRepos(r).lock()()
	stored, ok := r.st.orders[o.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Status != from {
		return shared.ErrConcurrencyConflict
	}
	stored.Status = o.Status
	stored.PaymentStatus = o.PaymentStatus
	stored.TrackingNumber = o.TrackingNumber
	stored.Version = o.Version
	stored.UpdatedAt = o.UpdatedAt
	r.st.orders[o.ID] = stored
	return nil
}

type memLineRepo memRepos

func (r memLineRepo) ReplaceForOrder(_ context.Context, orderID uuid.UUID, lines []*order.Line) error {
	defer memRepos(r).lock()()
	for id, l := range r.st.lines {
		if l.OrderID == orderID {
			delete(r.st.lines, id)
		}
	}
	for _, l := range lines {
		r.st.lines[l.ID] = *l
	}
	return nil
}

func (r memLineRepo) FindByOrder(_ context.Context, orderID uuid.UUID) ([]*order.Line, error) {
	defer memRepos(r).lock()()
	var out []*order.Line
	for _, l := range r.st.lines {
		if l.OrderID == orderID {
			cp := l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r memLineRepo) FindByID(_ context.Context, id uuid.UUID) (*order.Line, error) {
	unlock := memRepos(r).lock()
	l, ok := r.st.lines[id]
	hook := r.st.onLineRead
	r.st.onLineRead = nil
	unlock()
	if !ok {
		return nil, shared.ErrNotFound
	}
	if hook != nil {
		hook()
	}
	return &l, nil
}

func (r memLineRepo) SaveReturn(_ context.Context, l *order.Line, from order.ReturnStatus) error {
	defer memRepos(r).lock()()
	stored, ok := r.st.lines[l.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.ReturnStatus != from {
		return shared.ErrConcurrencyConflict
	}
	r.st.lines[l.ID] = *l
	return nil
}

// MockStatsReader is a mock implementation of order.StatsReader
type MockStatsReader struct {
	mock.Mock
}

func (m *MockStatsReader) Stats(ctx context.Context, now time.Time) (*order.Stats, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Stats), args.Error(1)
}

// MockReceiptRenderer is a mock implementation of order.ReceiptRenderer
type MockReceiptRenderer struct {
	mock.Mock
}

func (m *MockReceiptRenderer) Render(ctx context.Context, o *order.Order) (*order.Receipt, error) {
	args := m.Called(ctx, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Receipt), args.Error(1)
}

// MockCartClearer is a mock implementation of CartClearer
type MockCartClearer struct {
	mock.Mock
}

func (m *MockCartClearer) ClearByUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// recordingMetrics counts metric calls
type recordingMetrics struct {
	mu            sync.Mutex
	created       int
	stockFailures int
	cancelled     int
	released      int
	outcomes      []string
}

func (m *recordingMetrics) OrderCreated(context.Context, string, string, decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *recordingMetrics) StockReservationFailed(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stockFailures++
}

func (m *recordingMetrics) OrderCancelled(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled++
}

func (m *recordingMetrics) StockReleased(_ context.Context, units int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released += units
}

func (m *recordingMetrics) CheckoutCompleted(_ context.Context, _ time.Duration, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

var (
	_ TransactionScope      = (*memStore)(nil)
	_ Metrics               = (*recordingMetrics)(nil)
	_ shared.EventPublisher = (*recordingPublisher)(nil)
)
