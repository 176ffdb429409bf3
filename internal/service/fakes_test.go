package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eventbooking/server/internal/gateway"
	"github.com/eventbooking/server/internal/model"
	"github.com/eventbooking/server/internal/queue"
	"github.com/eventbooking/server/internal/repository"
)

// fakeStore is an in-memory implementation of BookingStore and
// PaymentStore.  WithTx serializes transactions behind a mutex, playing
// the role of the exclusive category row lock, and restores a snapshot
// when the body fails so rollback semantics hold.
type fakeStore struct {
	mu sync.Mutex

	events     map[uint64]model.Event
	categories map[uint64]model.EventCategory
	bookings   map[uint64]model.Booking
	holds      []model.SeatHold
	users      map[uint64]model.User
	pendings   map[string]model.PendingPayment

	nextBookingID uint64
	nextHoldID    uint64

	callMu sync.Mutex
	calls  []string
}

// record keeps an ordered trace of store calls so tests can assert that
// reads which decide a write happen under the category lock.
func (f *fakeStore) record(name string) {
	f.callMu.Lock()
	f.calls = append(f.calls, name)
	f.callMu.Unlock()
}

func (f *fakeStore) callTrace() []string {
	f.callMu.Lock()
	defer f.callMu.Unlock()
	return append([]string(nil), f.calls...)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:     make(map[uint64]model.Event),
		categories: make(map[uint64]model.EventCategory),
		bookings:   make(map[uint64]model.Booking),
		users:      make(map[uint64]model.User),
		pendings:   make(map[string]model.PendingPayment),
	}
}

type fakeTxKey struct{}

// lock acquires the store mutex unless the context already runs inside a
// transaction, which holds it for its whole body.
func (f *fakeStore) lock(ctx context.Context) func() {
	if ctx.Value(fakeTxKey{}) != nil {
		return func() {}
	}
	f.mu.Lock()
	return f.mu.Unlock
}

type fakeSnapshot struct {
	categories map[uint64]model.EventCategory
	bookings   map[uint64]model.Booking
	holds      []model.SeatHold
	pendings   map[string]model.PendingPayment
}

func (f *fakeStore) snapshot() fakeSnapshot {
	snap := fakeSnapshot{
		categories: make(map[uint64]model.EventCategory, len(f.categories)),
		bookings:   make(map[uint64]model.Booking, len(f.bookings)),
		holds:      append([]model.SeatHold(nil), f.holds...),
		pendings:   make(map[string]model.PendingPayment, len(f.pendings)),
	}
	for k, v := range f.categories {
		snap.categories[k] = v
	}
	for k, v := range f.bookings {
		snap.bookings[k] = v
	}
	for k, v := range f.pendings {
		snap.pendings[k] = v
	}
	return snap
}

func (f *fakeStore) restore(snap fakeSnapshot) {
	f.categories = snap.categories
	f.bookings = snap.bookings
	f.holds = snap.holds
	f.pendings = snap.pendings
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshot()
	err := fn(context.WithValue(ctx, fakeTxKey{}, true))
	if err != nil {
		f.restore(snap)
	}
	return err
}

func (f *fakeStore) GetCategory(ctx context.Context, categoryID uint64) (model.EventCategory, model.Event, error) {
	defer f.lock(ctx)()
	cat, ok := f.categories[categoryID]
	if !ok {
		return model.EventCategory{}, model.Event{}, repository.ErrCategoryNotFound
	}
	return cat, f.events[cat.EventID], nil
}

func (f *fakeStore) GetCategoryForUpdate(ctx context.Context, categoryID uint64) (model.EventCategory, model.Event, error) {
	f.record("GetCategoryForUpdate")
	return f.GetCategory(ctx, categoryID)
}

func (f *fakeStore) SetAvailableSeats(ctx context.Context, categoryID uint64, available uint32) error {
	defer f.lock(ctx)()
	cat, ok := f.categories[categoryID]
	if !ok {
		return repository.ErrCategoryNotFound
	}
	cat.AvailableSeats = available
	f.categories[categoryID] = cat
	return nil
}

func (f *fakeStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	defer f.lock(ctx)()
	if b.PaymentID != nil {
		for _, other := range f.bookings {
			if other.Status == model.BookingStatusConfirmed && other.PaymentID != nil &&
				*other.PaymentID == *b.PaymentID && other.PaymentItem == b.PaymentItem {
				return repository.ErrDuplicatePayment
			}
		}
	}
	f.nextBookingID++
	b.ID = f.nextBookingID
	f.bookings[b.ID] = *b
	return nil
}

func (f *fakeStore) ConfirmedByCategory(ctx context.Context, categoryID uint64) ([]model.Booking, error) {
	f.record("ConfirmedByCategory")
	defer f.lock(ctx)()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.EventCategoryID == categoryID && b.Status == model.BookingStatusConfirmed {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) BookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	defer f.lock(ctx)()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	defer f.lock(ctx)()
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrBookingNotFound
	}
	return b, nil
}

func (f *fakeStore) MarkCheckedIn(ctx context.Context, id uint64, at time.Time) (bool, error) {
	defer f.lock(ctx)()
	b, ok := f.bookings[id]
	if !ok || b.CheckedIn || b.Status != model.BookingStatusConfirmed {
		return false, nil
	}
	b.CheckedIn = true
	b.CheckedInAt = &at
	f.bookings[id] = b
	return true, nil
}

func (f *fakeStore) ActiveHoldsByCategory(ctx context.Context, categoryID uint64, now time.Time) ([]model.SeatHold, error) {
	f.record("ActiveHoldsByCategory")
	defer f.lock(ctx)()
	var out []model.SeatHold
	for _, h := range f.holds {
		if h.EventCategoryID == categoryID && h.Active(now) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStore) ReplaceHold(ctx context.Context, h *model.SeatHold) error {
	defer f.lock(ctx)()
	f.removeHold(h.UserID, h.EventCategoryID)
	f.nextHoldID++
	h.ID = f.nextHoldID
	f.holds = append(f.holds, *h)
	return nil
}

func (f *fakeStore) DeleteHoldByUserAndCategory(ctx context.Context, userID, categoryID uint64) error {
	defer f.lock(ctx)()
	f.removeHold(userID, categoryID)
	return nil
}

func (f *fakeStore) removeHold(userID, categoryID uint64) {
	kept := f.holds[:0]
	for _, h := range f.holds {
		if h.UserID == userID && h.EventCategoryID == categoryID {
			continue
		}
		kept = append(kept, h)
	}
	f.holds = append([]model.SeatHold(nil), kept...)
}

func (f *fakeStore) DeleteExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	defer f.lock(ctx)()
	kept := f.holds[:0]
	var n int64
	for _, h := range f.holds {
		if !h.Active(now) {
			n++
			continue
		}
		kept = append(kept, h)
	}
	f.holds = append([]model.SeatHold(nil), kept...)
	return n, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id uint64) (model.User, error) {
	defer f.lock(ctx)()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) CreatePendingPayment(ctx context.Context, p model.PendingPayment) error {
	defer f.lock(ctx)()
	f.pendings[p.ReferenceID] = p
	return nil
}

func (f *fakeStore) GetPendingPayment(ctx context.Context, referenceID string) (model.PendingPayment, error) {
	defer f.lock(ctx)()
	p, ok := f.pendings[referenceID]
	if !ok {
		return model.PendingPayment{}, repository.ErrNoPendingBooking
	}
	return p, nil
}

func (f *fakeStore) DeletePendingPayment(ctx context.Context, referenceID string) error {
	defer f.lock(ctx)()
	delete(f.pendings, referenceID)
	return nil
}

func (f *fakeStore) DeletePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	defer f.lock(ctx)()
	var n int64
	for ref, p := range f.pendings {
		if p.CreatedAt.Before(cutoff) {
			delete(f.pendings, ref)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) FindConfirmedByPaymentID(ctx context.Context, paymentID string) ([]model.Booking, error) {
	defer f.lock(ctx)()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.Status == model.BookingStatusConfirmed && b.PaymentID != nil && *b.PaymentID == paymentID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentItem < out[j].PaymentItem })
	return out, nil
}

// fakePublisher records confirmation events instead of talking to a broker.
type fakePublisher struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
}

func (p *fakePublisher) PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []queue.BookingConfirmedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.BookingConfirmedEvent(nil), p.events...)
}

// fakeGateway scripts the wallet gateway.
type fakeGateway struct {
	mu            sync.Mutex
	createErr     error
	verifyErr     error
	received      map[string]bool
	createCalls   int
	verifyCalls   int
	lastAmount    uint64
	lastReference string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{received: make(map[string]bool)}
}

func (g *fakeGateway) CreatePaymentRequest(ctx context.Context, amountCents uint64, referenceID, callbackURL string) (gateway.PaymentRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	g.lastAmount = amountCents
	g.lastReference = referenceID
	if g.createErr != nil {
		return gateway.PaymentRequest{}, g.createErr
	}
	return gateway.PaymentRequest{PaymentURL: "https://wallet.test/pay/" + referenceID, Token: "tok-" + referenceID}, nil
}

func (g *fakeGateway) VerifyReference(ctx context.Context, merchantID, referenceID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return false, g.verifyErr
	}
	return g.received[referenceID], nil
}

// fakeCache is a map-backed PendingCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, referenceID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[referenceID]
	return v, ok
}

func (c *fakeCache) Set(ctx context.Context, referenceID, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[referenceID] = payload
}

func (c *fakeCache) Delete(ctx context.Context, referenceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, referenceID)
}
