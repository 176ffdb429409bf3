package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventbooking/server/internal/clock"
	"github.com/eventbooking/server/internal/model"
	"github.com/eventbooking/server/internal/repository"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// seedStore builds a store with one future event, one category and two
// users.  Callers adjust the returned store for their scenario.
func seedStore(eventType string, totalSeats uint32) *fakeStore {
	store := newFakeStore()
	store.events[1] = model.Event{
		ID:        1,
		Name:      "Spring Gala",
		EventType: eventType,
		EventDate: testNow.Add(48 * time.Hour),
	}
	store.categories[10] = model.EventCategory{
		ID:             10,
		EventID:        1,
		CategoryName:   "Gold",
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
		PriceCents:     2500,
	}
	store.users[1] = model.User{ID: 1, Email: "ana@example.com", Name: "Ana"}
	store.users[2] = model.User{ID: 2, Email: "ben@example.com", Name: "Ben"}
	return store
}

func newTestBookingService(store *fakeStore) (*BookingService, *fakePublisher) {
	pub := &fakePublisher{}
	return NewBookingService(store, clock.NewFixed(testNow), pub), pub
}

func TestBookingService_BookSeats(t *testing.T) {
	t.Parallel()

	t.Run("commit decrements inventory and removes the hold", func(t *testing.T) {
		store := seedStore("Concert", 20)
		svc, pub := newTestBookingService(store)

		_, err := svc.HoldSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A1", "A2"}, Seats: 2,
		})
		require.NoError(t, err)

		b, err := svc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A1", "A2"}, Seats: 2,
		})
		require.NoError(t, err)
		require.Equal(t, model.BookingStatusConfirmed, b.Status)
		require.Equal(t, []string{"A1", "A2"}, b.SeatIdentifiers.Sorted())

		require.Equal(t, uint32(18), store.categories[10].AvailableSeats)
		require.Empty(t, store.holds, "confirmed booking must consume the hold")

		events := pub.published()
		require.Len(t, events, 1)
		require.Equal(t, b.ID, events[0].BookingID)
		require.Equal(t, "ana@example.com", events[0].UserEmail)
		require.Equal(t, uint64(2*2500), events[0].TotalCents)
	})

	t.Run("insufficient seats leaves everything untouched", func(t *testing.T) {
		store := seedStore("Concert", 3)
		svc, pub := newTestBookingService(store)

		_, err := svc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, Seats: 4,
		})
		var insufficient *repository.InsufficientSeatsError
		require.ErrorAs(t, err, &insufficient)
		require.Equal(t, uint32(4), insufficient.Requested)
		require.Equal(t, uint32(3), insufficient.Available)

		require.Equal(t, uint32(3), store.categories[10].AvailableSeats)
		require.Empty(t, store.bookings)
		require.Empty(t, pub.published())
	})

	t.Run("ticket cap is five for concerts and ten for theatre", func(t *testing.T) {
		store := seedStore("Concert", 50)
		svc, _ := newTestBookingService(store)

		_, err := svc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, Seats: 6,
		})
		var limit *repository.TicketLimitError
		require.ErrorAs(t, err, &limit)
		require.Equal(t, uint32(5), limit.Limit)

		theatre := seedStore("theatre", 50)
		tsvc, _ := newTestBookingService(theatre)
		_, err = tsvc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, Seats: 10,
		})
		require.NoError(t, err, "theatre cap is ten, case-insensitive")

		_, err = tsvc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 2, Seats: 11,
		})
		require.ErrorAs(t, err, &limit)
		require.Equal(t, uint32(10), limit.Limit)
	})

	t.Run("finished event refuses bookings", func(t *testing.T) {
		store := seedStore("Concert", 10)
		ev := store.events[1]
		ev.EventDate = testNow.Add(-time.Hour)
		store.events[1] = ev
		svc, _ := newTestBookingService(store)

		_, err := svc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, Seats: 1,
		})
		require.ErrorIs(t, err, repository.ErrEventFinished)
	})

	t.Run("booking window not yet open", func(t *testing.T) {
		store := seedStore("Concert", 10)
		opens := testNow.Add(24 * time.Hour)
		ev := store.events[1]
		ev.BookingOpenDate = &opens
		store.events[1] = ev
		svc, _ := newTestBookingService(store)

		_, err := svc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, Seats: 1,
		})
		var notOpen *repository.BookingNotOpenError
		require.ErrorAs(t, err, &notOpen)
		require.Equal(t, opens, notOpen.OpensAt)
	})

	t.Run("confirmed seat cannot be booked again", func(t *testing.T) {
		store := seedStore("Concert", 10)
		svc, _ := newTestBookingService(store)

		_, err := svc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, SeatIDs: []string{"B5"}, Seats: 1,
		})
		require.NoError(t, err)

		_, err = svc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 2, SeatIDs: []string{"B5"}, Seats: 1,
		})
		var conflict *repository.SeatConflictError
		require.ErrorAs(t, err, &conflict)
		require.Equal(t, "B5", conflict.Seat)
	})

	t.Run("another user's live hold blocks, an expired one does not", func(t *testing.T) {
		store := seedStore("Concert", 10)
		store.holds = append(store.holds, model.SeatHold{
			ID: 1, EventCategoryID: 10, UserID: 1,
			SeatIdentifiers: model.NewSeatSet([]string{"C1"}),
			ExpiresAt:       testNow.Add(2 * time.Minute),
		})
		svc, _ := newTestBookingService(store)

		_, err := svc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 2, SeatIDs: []string{"C1"}, Seats: 1,
		})
		var conflict *repository.SeatConflictError
		require.ErrorAs(t, err, &conflict)

		// Same store five minutes later: the hold has lapsed.
		later := NewBookingService(store, clock.NewFixed(testNow.Add(5*time.Minute)), nil)
		_, err = later.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 2, SeatIDs: []string{"C1"}, Seats: 1,
		})
		require.NoError(t, err)
	})

	t.Run("seat quantity must match the seat id list", func(t *testing.T) {
		store := seedStore("Concert", 10)
		svc, _ := newTestBookingService(store)

		_, err := svc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A1", "A2", "A3"}, Seats: 1,
		})
		require.ErrorIs(t, err, ErrSeatCountMismatch)
		require.Empty(t, store.bookings)
		require.Equal(t, uint32(10), store.categories[10].AvailableSeats)

		// Repeated ids collapse to one seat and cannot pad the count.
		_, err = svc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A1", "A1"}, Seats: 2,
		})
		require.ErrorIs(t, err, ErrSeatCountMismatch)
	})

	t.Run("own hold never blocks the commit", func(t *testing.T) {
		store := seedStore("Concert", 10)
		store.holds = append(store.holds, model.SeatHold{
			ID: 1, EventCategoryID: 10, UserID: 1,
			SeatIdentifiers: model.NewSeatSet([]string{"D1", "D2"}),
			ExpiresAt:       testNow.Add(2 * time.Minute),
		})
		svc, _ := newTestBookingService(store)

		_, err := svc.BookSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, SeatIDs: []string{"D1", "D2"}, Seats: 2,
		})
		require.NoError(t, err)
	})
}

// The commit must take the category lock before reading confirmed
// bookings and live holds.  Under MySQL the transaction's read snapshot is
// established by its first read; only a post-lock snapshot can see the
// seats a concurrent commit just inserted, so a pre-lock check would let
// two overlapping seat sets both pass and double-sell a seat.
func TestBookingService_SeatCheckRunsUnderLock(t *testing.T) {
	t.Parallel()

	store := seedStore("Concert", 10)
	svc, _ := newTestBookingService(store)

	_, err := svc.BookSeats(context.Background(), BookingRequest{
		EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A1"}, Seats: 1,
	})
	require.NoError(t, err)

	first := func(trace []string, name string) int {
		for i, c := range trace {
			if c == name {
				return i
			}
		}
		return -1
	}
	trace := store.callTrace()
	lock := first(trace, "GetCategoryForUpdate")
	confirmed := first(trace, "ConfirmedByCategory")
	holds := first(trace, "ActiveHoldsByCategory")
	require.NotEqual(t, -1, lock)
	require.NotEqual(t, -1, confirmed)
	require.NotEqual(t, -1, holds)
	require.Less(t, lock, confirmed, "confirmed bookings must be read after the lock")
	require.Less(t, lock, holds, "live holds must be read after the lock")
}

func TestBookingService_NoOversell(t *testing.T) {
	t.Parallel()

	const capacity = 10
	store := seedStore("Concert", capacity)
	for i := uint64(3); i <= 40; i++ {
		store.users[i] = model.User{ID: i, Email: "u@example.com", Name: "U"}
	}
	svc, _ := newTestBookingService(store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var booked uint32
	for i := uint64(1); i <= 40; i++ {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			b, err := svc.BookSeats(context.Background(), BookingRequest{
				EventCategoryID: 10, UserID: uid, Seats: 1,
			})
			if err == nil {
				mu.Lock()
				booked += b.SeatsBooked
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, uint32(capacity), booked, "every seat sells exactly once")
	require.Equal(t, uint32(0), store.categories[10].AvailableSeats)
	require.Len(t, store.bookings, capacity)
}

func TestBookingService_HoldSeats(t *testing.T) {
	t.Parallel()

	t.Run("rehold replaces the previous hold", func(t *testing.T) {
		store := seedStore("Concert", 10)
		svc, _ := newTestBookingService(store)

		_, err := svc.HoldSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A1"}, Seats: 1,
		})
		require.NoError(t, err)

		hold, err := svc.HoldSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A2", "A3"}, Seats: 2,
		})
		require.NoError(t, err)
		require.Equal(t, testNow.Add(defaultHoldTTL), hold.ExpiresAt)

		require.Len(t, store.holds, 1, "one live hold per user and category")
		require.Equal(t, []string{"A2", "A3"}, store.holds[0].SeatIdentifiers.Sorted())
	})

	t.Run("hold does not change inventory", func(t *testing.T) {
		store := seedStore("Concert", 10)
		svc, _ := newTestBookingService(store)

		_, err := svc.HoldSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A1", "A2"}, Seats: 2,
		})
		require.NoError(t, err)
		require.Equal(t, uint32(10), store.categories[10].AvailableSeats)
	})

	t.Run("conflicts with another user's live hold", func(t *testing.T) {
		store := seedStore("Concert", 10)
		svc, _ := newTestBookingService(store)

		_, err := svc.HoldSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A1"}, Seats: 1,
		})
		require.NoError(t, err)

		_, err = svc.HoldSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 2, SeatIDs: []string{"A1"}, Seats: 1,
		})
		var conflict *repository.SeatConflictError
		require.ErrorAs(t, err, &conflict)
	})

	t.Run("expired holds are swept opportunistically", func(t *testing.T) {
		store := seedStore("Concert", 10)
		store.holds = append(store.holds, model.SeatHold{
			ID: 99, EventCategoryID: 10, UserID: 2,
			SeatIdentifiers: model.NewSeatSet([]string{"Z9"}),
			ExpiresAt:       testNow.Add(-time.Minute),
		})
		svc, _ := newTestBookingService(store)

		_, err := svc.HoldSeats(context.Background(), BookingRequest{
			EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A1"}, Seats: 1,
		})
		require.NoError(t, err)
		require.Len(t, store.holds, 1)
		require.Equal(t, uint64(1), store.holds[0].UserID)
	})
}

func TestBookingService_OccupiedSeats(t *testing.T) {
	t.Parallel()

	store := seedStore("Concert", 10)
	svc, _ := newTestBookingService(store)

	_, err := svc.BookSeats(context.Background(), BookingRequest{
		EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A2", "A1"}, Seats: 2,
	})
	require.NoError(t, err)
	_, err = svc.HoldSeats(context.Background(), BookingRequest{
		EventCategoryID: 10, UserID: 2, SeatIDs: []string{"B1"}, Seats: 1,
	})
	require.NoError(t, err)

	// The public view includes every live hold, the holder's own too.
	seats, err := svc.OccupiedSeats(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"A1", "A2", "B1"}, seats)

	_, err = svc.OccupiedSeats(context.Background(), 404)
	require.ErrorIs(t, err, repository.ErrCategoryNotFound)
}

func TestBookingService_ScanTicket(t *testing.T) {
	t.Parallel()

	store := seedStore("Concert", 10)
	svc, _ := newTestBookingService(store)

	b, err := svc.BookSeats(context.Background(), BookingRequest{
		EventCategoryID: 10, UserID: 1, SeatIDs: []string{"A1"}, Seats: 1,
	})
	require.NoError(t, err)

	res, err := svc.VerifyTicket(context.Background(), b.ID)
	require.NoError(t, err)
	require.Equal(t, TicketValid, res.Status)

	res, err = svc.ScanTicket(context.Background(), b.ID)
	require.NoError(t, err)
	require.Equal(t, TicketValid, res.Status)
	require.NotNil(t, res.CheckedInAt)

	res, err = svc.ScanTicket(context.Background(), b.ID)
	require.NoError(t, err)
	require.Equal(t, TicketAlreadyUsed, res.Status)

	res, err = svc.ScanTicket(context.Background(), 9999)
	require.NoError(t, err)
	require.Equal(t, TicketInvalid, res.Status)

	cancelled := store.bookings[b.ID]
	cancelled.Status = model.BookingStatusCancelled
	store.bookings[b.ID] = cancelled
	res, err = svc.VerifyTicket(context.Background(), b.ID)
	require.NoError(t, err)
	require.Equal(t, TicketCancelled, res.Status)
}
