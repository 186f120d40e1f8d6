package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/testfixtures"
)

// fakeStore buffers writes per transaction and applies them to the fixture
// store on commit. Overlapping active bookings for one employee are rejected
// at commit like the database exclusion constraint.
type fakeStore struct {
	fx *testfixtures.Store

	mu         sync.Mutex
	failInsert error
	failCommit error
	commits    int
}

func newFakeStore(fx *testfixtures.Store) *fakeStore { return &fakeStore{fx: fx} }

func (s *fakeStore) Begin(context.Context) (Tx, error) { return &fakeTx{store: s}, nil }

func (s *fakeStore) Get(_ context.Context, id string) (model.Booking, error) {
	b, err := s.fx.Booking(id)
	if errors.Is(err, testfixtures.ErrBookingNotFound) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

type fakeTx struct {
	store  *fakeStore
	writes []model.Booking
	done   bool
}

func (t *fakeTx) Insert(_ context.Context, b model.Booking) error {
	t.store.mu.Lock()
	err := t.store.failInsert
	t.store.mu.Unlock()
	if err != nil {
		return err
	}
	t.writes = append(t.writes, b)
	return nil
}

func (t *fakeTx) GetForUpdate(ctx context.Context, id string) (model.Booking, error) {
	return t.store.Get(ctx, id)
}

func (t *fakeTx) Cancel(ctx context.Context, id, reason string, at time.Time) error {
	b, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	at = at.UTC()
	b.Status = model.StatusCancelled
	b.CancelledAt = &at
	b.CancelReason = reason
	t.writes = append(t.writes, b)
	return nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.failCommit != nil {
		return t.store.failCommit
	}
	for _, w := range t.writes {
		if w.Active() && t.store.overlaps(w) {
			return ErrConflict
		}
	}
	for _, w := range t.writes {
		t.store.fx.PutBooking(w)
	}
	t.store.commits++
	t.done = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.writes = nil
	return nil
}

func (s *fakeStore) overlaps(b model.Booking) bool {
	if b.EmployeeID == nil {
		return false
	}
	existing, _ := s.fx.BookingsForDate(context.Background(), b.Date, b.EmployeeID, nil)
	for _, e := range existing {
		if e.ID != b.ID && e.StartTime < b.EndTime && b.StartTime < e.EndTime {
			return true
		}
	}
	return false
}

func (s *fakeStore) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Emit(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
