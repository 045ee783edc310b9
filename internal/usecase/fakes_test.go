package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"stay-booking/internal/data/entity"
	"stay-booking/internal/data/repository"
	apperrors "stay-booking/internal/errors"
	"stay-booking/internal/gateway"
	"stay-booking/internal/ledger"
	"stay-booking/pkg/database"
	"stay-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// fakeStore backs every fake repository with maps. Transactions are
// serialized by txMu, which stands in for row locks, and roll back by
// restoring a snapshot.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	customers map[uuid.UUID]*entity.Customer
	catalog   *entity.Catalog
	bookings  map[uuid.UUID]entity.Booking
	items     map[uuid.UUID][]entity.LineItem
	payments  map[uuid.UUID]entity.Payment // keyed by booking id
	events    []entity.PaymentEvent

	// failBookingCreate, when set, fails the next Booking.Create.
	failBookingCreate error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers: make(map[uuid.UUID]*entity.Customer),
		catalog:   entity.NewCatalog(),
		bookings:  make(map[uuid.UUID]entity.Booking),
		items:     make(map[uuid.UUID][]entity.LineItem),
		payments:  make(map[uuid.UUID]entity.Payment),
	}
}

type fakeTxKey struct{}

type fakeTransactor struct{ s *fakeStore }

func (t fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}

	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	t.s.mu.Lock()
	bookings := make(map[uuid.UUID]entity.Booking, len(t.s.bookings))
	for k, v := range t.s.bookings {
		bookings[k] = v
	}
	items := make(map[uuid.UUID][]entity.LineItem, len(t.s.items))
	for k, v := range t.s.items {
		items[k] = v
	}
	payments := make(map[uuid.UUID]entity.Payment, len(t.s.payments))
	for k, v := range t.s.payments {
		payments[k] = v
	}
	t.s.mu.Unlock()

	txCtx, runAfterCommit := database.TrackAfterCommit(ctx)
	if err := fn(context.WithValue(txCtx, fakeTxKey{}, true)); err != nil {
		t.s.mu.Lock()
		t.s.bookings, t.s.items, t.s.payments = bookings, items, payments
		t.s.mu.Unlock()
		return err
	}
	return runAfterCommit(ctx)
}

// failingCommitTransactor runs fn to completion and then fails the commit, so
// every write made inside fn is rolled back.
type failingCommitTransactor struct{ inner fakeTransactor }

var errCommitFailed = errors.New("commit transaction: connection reset")

func (t failingCommitTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.inner.WithinTx(ctx, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return errCommitFailed
	})
}

type fakeCustomerRepo struct{ s *fakeStore }

func (r fakeCustomerRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.customers[id]
	return ok, nil
}

func (r fakeCustomerRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.customers[id], nil
}

func (r fakeCustomerRepo) Upsert(ctx context.Context, c *entity.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.customers[c.ID] = c
	return nil
}

type fakeCatalogRepo struct{ s *fakeStore }

func (r fakeCatalogRepo) Snapshot(ctx context.Context, serviceIDs, comboIDs, equipmentIDs []uuid.UUID) (*entity.Catalog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := entity.NewCatalog()
	for _, id := range serviceIDs {
		if svc, ok := r.s.catalog.Services[id]; ok {
			out.Services[id] = svc
		}
	}
	for _, id := range comboIDs {
		combo, ok := r.s.catalog.Combos[id]
		if !ok {
			continue
		}
		out.Combos[id] = combo
		for _, cc := range combo.Constituents {
			if svc, ok := r.s.catalog.Services[cc.ServiceID]; ok {
				out.Services[cc.ServiceID] = svc
			}
		}
	}
	for _, id := range equipmentIDs {
		if eq, ok := r.s.catalog.Equipment[id]; ok {
			out.Equipment[id] = eq
		}
	}
	return out, nil
}

func (r fakeCatalogRepo) FindServiceByID(ctx context.Context, id uuid.UUID) (*entity.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.catalog.Services[id], nil
}

func (r fakeCatalogRepo) DefaultCapacity(ctx context.Context, id uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if svc, ok := r.s.catalog.Services[id]; ok {
		return svc.DailyCapacity, nil
	}
	return 0, nil
}

func (r fakeCatalogRepo) UpsertService(ctx context.Context, svc *entity.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.catalog.Services[svc.ID] = svc
	return nil
}

func (r fakeCatalogRepo) UpsertCombo(ctx context.Context, combo *entity.Combo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.catalog.Combos[combo.ID] = combo
	return nil
}

func (r fakeCatalogRepo) UpsertEquipment(ctx context.Context, eq *entity.Equipment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.catalog.Equipment[eq.ID] = eq
	return nil
}

type fakeBookingRepo struct{ s *fakeStore }

func (r fakeBookingRepo) Create(ctx context.Context, b *entity.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.failBookingCreate; err != nil {
		r.s.failBookingCreate = nil
		return err
	}
	for _, existing := range r.s.bookings {
		if b.IdempotencyKey != nil && existing.IdempotencyKey != nil &&
			existing.CustomerID == b.CustomerID && *existing.IdempotencyKey == *b.IdempotencyKey {
			return &pgconn.PgError{Code: "23505", ConstraintName: repository.ConstraintBookingIdempotencyKey}
		}
	}
	stored := *b
	stored.Items = nil
	r.s.bookings[b.ID] = stored
	return nil
}

func (r fakeBookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r fakeBookingRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.FindByID(ctx, id)
}

func (r fakeBookingRepo) FindByIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) (*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.CustomerID == customerID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return &b, nil
		}
	}
	return nil, nil
}

func (r fakeBookingRepo) FindByCustomerID(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.Booking
	for _, b := range r.s.bookings {
		if b.CustomerID == customerID {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakeBookingRepo) CountByCustomerID(ctx context.Context, customerID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, b := range r.s.bookings {
		if b.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (r fakeBookingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.BookingStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return apperrors.NewNotFoundError("booking not found")
	}
	b.Status = status
	r.s.bookings[id] = b
	return nil
}

func (r fakeBookingRepo) ListExpirable(ctx context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []uuid.UUID
	for id, b := range r.s.bookings {
		p := r.s.payments[id]
		if b.Status == entity.BookingStatusPendingPayment && b.CreatedAt.Before(createdBefore) && p.Status != entity.PaymentStatusPaid {
			out = append(out, id)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakeBookingRepo) ListCompletable(ctx context.Context, checkOutBy time.Time, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []uuid.UUID
	for id, b := range r.s.bookings {
		if b.Status == entity.BookingStatusConfirmed && !b.CheckOut.After(checkOutBy) {
			out = append(out, id)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeLineItemRepo struct{ s *fakeStore }

func (r fakeLineItemRepo) CreateBatch(ctx context.Context, items []entity.LineItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, it := range items {
		r.s.items[it.BookingID] = append(r.s.items[it.BookingID], it)
	}
	return nil
}

func (r fakeLineItemRepo) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]entity.LineItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]entity.LineItem(nil), r.s.items[bookingID]...), nil
}

type fakePaymentRepo struct{ s *fakeStore }

func (r fakePaymentRepo) Create(ctx context.Context, p *entity.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[p.BookingID] = *p
	return nil
}

func (r fakePaymentRepo) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[bookingID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r fakePaymentRepo) FindByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	return r.FindByBookingID(ctx, bookingID)
}

func (r fakePaymentRepo) FindByProviderTransactionID(ctx context.Context, txID string) (*entity.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.ProviderTransactionID != nil && *p.ProviderTransactionID == txID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r fakePaymentRepo) update(id uuid.UUID, fn func(p *entity.Payment)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, p := range r.s.payments {
		if p.ID == id {
			fn(&p)
			r.s.payments[k] = p
			return nil
		}
	}
	return apperrors.NewNotFoundError("payment not found")
}

func (r fakePaymentRepo) SetIntent(ctx context.Context, id uuid.UUID, txID string, url *string) error {
	return r.update(id, func(p *entity.Payment) {
		if p.Status != entity.PaymentStatusPaid {
			p.ProviderTransactionID = &txID
			p.PaymentURL = url
		}
	})
}

func (r fakePaymentRepo) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	return r.update(id, func(p *entity.Payment) {
		p.Status = entity.PaymentStatusPaid
		p.PaidAt = &paidAt
	})
}

func (r fakePaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(p *entity.Payment) {
		p.Status = entity.PaymentStatusFailed
	})
}

type fakePaymentEventRepo struct{ s *fakeStore }

func (r fakePaymentEventRepo) Record(ctx context.Context, ev *entity.PaymentEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, *ev)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *fakePublisher) PublishJSON(ctx context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// flakyLedger fails the first conflicts Reserve calls with a concurrent
// modification before delegating.
type flakyLedger struct {
	ledger.Ledger
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (l *flakyLedger) Reserve(ctx context.Context, demands []ledger.Demand) (*ledger.Handle, error) {
	l.mu.Lock()
	l.calls++
	fail := l.calls <= l.conflicts
	l.mu.Unlock()
	if fail {
		return nil, apperrors.NewConcurrentModificationError(nil)
	}
	return l.Ledger.Reserve(ctx, demands)
}

type testEnv struct {
	store     *fakeStore
	ledger    *ledger.Memory
	publisher *fakePublisher
	clock     *fakeClock
	config    *utils.Config
	deps      Dependencies
	customer  utils.Actor
	staff     utils.Actor
}

// Catalog fixtures from the worked examples.
var (
	cabinID    = uuid.MustParse("00000000-0000-0000-0000-00000000c001")
	campsiteID = uuid.MustParse("00000000-0000-0000-0000-00000000c002")
	bundleID   = uuid.MustParse("00000000-0000-0000-0000-00000000b001")
	tentID     = uuid.MustParse("00000000-0000-0000-0000-00000000e001")
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeStore()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	publisher := &fakePublisher{}
	log := zap.NewNop()

	config := &utils.Config{
		Booking: utils.BookingConfig{
			Currency:         "THB",
			PaymentTTL:       30 * time.Minute,
			SweepInterval:    time.Minute,
			SweepBatchSize:   100,
			MaxRetryAttempts: 3,
			RetryBaseDelay:   time.Millisecond,
		},
		Payment: utils.PaymentConfig{DefaultMethod: "promptpay"},
	}

	catalog := fakeCatalogRepo{s: store}
	repo := &repository.Repository{
		Tx:           fakeTransactor{s: store},
		Customer:     fakeCustomerRepo{s: store},
		Catalog:      catalog,
		Booking:      fakeBookingRepo{s: store},
		LineItem:     fakeLineItemRepo{s: store},
		Payment:      fakePaymentRepo{s: store},
		PaymentEvent: fakePaymentEventRepo{s: store},
	}
	mem := ledger.NewMemory(catalog, log)

	env := &testEnv{
		store:     store,
		ledger:    mem,
		publisher: publisher,
		clock:     clock,
		config:    config,
		customer:  utils.Actor{ID: uuid.New(), Role: utils.RoleCustomer},
		staff:     utils.Actor{ID: uuid.New(), Role: utils.RoleStaff},
	}
	env.deps = Dependencies{
		Repo:      repo,
		Ledger:    mem,
		Gateway:   gateway.NewStub("https://pay.test", log),
		Publisher: publisher,
		Config:    config,
		Log:       log,
		Clock:     clock.Now,
	}

	ctx := context.Background()
	store.customers[env.customer.ID] = &entity.Customer{Base: entity.Base{ID: env.customer.ID}, Name: "Ann"}

	now := clock.Now()
	_ = catalog.UpsertService(ctx, &entity.Service{
		BaseNoDelete:      entity.BaseNoDelete{ID: cabinID, CreatedAt: now, UpdatedAt: now},
		Name:              "Cabin",
		Price:             1000,
		MinDays:           1,
		MaxDays:           14,
		MinCapacity:       1,
		MaxCapacity:       4,
		AllowExtraPeople:  true,
		MaxExtraPeople:    2,
		ExtraFeePerPerson: 200,
		DailyCapacity:     5,
		IsActive:          true,
	})
	_ = catalog.UpsertService(ctx, &entity.Service{
		BaseNoDelete:  entity.BaseNoDelete{ID: campsiteID, CreatedAt: now, UpdatedAt: now},
		Name:          "Campsite",
		Price:         300,
		MinDays:       1,
		MinCapacity:   1,
		MaxCapacity:   6,
		DailyCapacity: 1,
		IsActive:      true,
	})
	_ = catalog.UpsertCombo(ctx, &entity.Combo{
		BaseNoDelete: entity.BaseNoDelete{ID: bundleID, CreatedAt: now, UpdatedAt: now},
		Name:         "Cabin and campsite",
		Price:        1500,
		IsActive:     true,
		Constituents: []entity.ComboConstituent{
			{ServiceID: cabinID, Quantity: 1},
			{ServiceID: campsiteID, Quantity: 1},
		},
	})
	_ = catalog.UpsertEquipment(ctx, &entity.Equipment{
		BaseNoDelete: entity.BaseNoDelete{ID: tentID, CreatedAt: now, UpdatedAt: now},
		Name:         "Tent",
		Price:        150,
		Stock:        3,
		IsActive:     true,
	})

	return env
}

func (e *testEnv) bookingService() BookingService {
	return NewBookingService(e.deps)
}

func (e *testEnv) lifecycleService() LifecycleService {
	return NewLifecycleService(e.deps)
}

// day returns the date n days after the test clock's today.
func (e *testEnv) day(n int) string {
	return e.clock.Now().AddDate(0, 0, n).Format(time.DateOnly)
}

func (e *testEnv) payment(t *testing.T, bookingID string) entity.Payment {
	t.Helper()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return e.store.payments[uuid.MustParse(bookingID)]
}

func (e *testEnv) status(bookingID string) entity.BookingStatus {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return e.store.bookings[uuid.MustParse(bookingID)].Status
}

func (e *testEnv) available(t *testing.T, resourceID uuid.UUID, dayOffset int) int {
	t.Helper()
	date := e.clock.Now().AddDate(0, 0, dayOffset)
	n, err := e.ledger.AvailableOn(context.Background(), resourceID, date)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	return n
}
