package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Domenick1991/salonbooking/internal/calendar"
	"github.com/Domenick1991/salonbooking/internal/domain"
	"github.com/google/uuid"
)

// MemoryReservationRepository keeps reservations in process. Writers hold an
// exclusive lock per stylist calendar and date across check-and-write; the
// maps themselves are guarded by mu so readers always see whole writes.
type MemoryReservationRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Reservation
	order []string
	locks *slotLocks
	now   func() time.Time
}

type MemoryOption func(*MemoryReservationRepository)

func WithClock(now func() time.Time) MemoryOption {
	return func(r *MemoryReservationRepository) {
		r.now = now
	}
}

func NewMemoryReservationRepository(opts ...MemoryOption) *MemoryReservationRepository {
	repo := &MemoryReservationRepository{
		byID:  make(map[string]*domain.Reservation),
		locks: newSlotLocks(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

func (r *MemoryReservationRepository) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("ping", err)
	}
	return nil
}

func (r *MemoryReservationRepository) TryReserve(ctx context.Context, candidate *domain.Reservation) error {
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	if err := domain.ValidateSlot(*candidate); err != nil {
		return err
	}

	unlock, err := r.locks.acquire(ctx, candidate.Key())
	if err != nil {
		return domain.Unavailable("lock slot", err)
	}
	defer unlock()

	r.mu.RLock()
	_, duplicate := r.byID[candidate.ID]
	existing := r.collision(*candidate)
	r.mu.RUnlock()
	if duplicate {
		return &domain.ValidationError{Field: "reservation_id", Reason: "already exists"}
	}
	if existing != nil {
		return domain.NewConflictError(*existing)
	}

	now := r.now().UTC()
	candidate.Date = calendar.DateOnly(candidate.Date)
	candidate.Status = domain.ReservationStatusScheduled
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	stored := *candidate
	r.mu.Lock()
	r.byID[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryReservationRepository) TryModify(ctx context.Context, id string, changes domain.Changes) (*domain.Reservation, error) {
	var result *domain.Reservation
	err := r.withReservationLocked(ctx, id, changes, func(current domain.Reservation) error {
		if err := domain.CheckModifiable(current); err != nil {
			return err
		}
		next := changes.Apply(current)
		if err := domain.ValidateSlot(next); err != nil {
			return err
		}
		if changes.TouchesSlot() {
			r.mu.RLock()
			existing := r.collision(next)
			r.mu.RUnlock()
			if existing != nil {
				return domain.NewConflictError(*existing)
			}
		}
		next.UpdatedAt = r.now().UTC()
		result = r.store(next)
		return nil
	})
	return result, err
}

func (r *MemoryReservationRepository) Cancel(ctx context.Context, id string) (*domain.Reservation, error) {
	return r.transition(ctx, id, domain.ReservationStatusCancelled)
}

func (r *MemoryReservationRepository) Complete(ctx context.Context, id string) (*domain.Reservation, error) {
	return r.transition(ctx, id, domain.ReservationStatusCompleted)
}

func (r *MemoryReservationRepository) transition(ctx context.Context, id string, next domain.ReservationStatus) (*domain.Reservation, error) {
	var result *domain.Reservation
	err := r.withReservationLocked(ctx, id, domain.Changes{}, func(current domain.Reservation) error {
		if err := domain.CheckTransition(current, next); err != nil {
			return err
		}
		current.Status = next
		current.UpdatedAt = r.now().UTC()
		result = r.store(current)
		return nil
	})
	return result, err
}

func (r *MemoryReservationRepository) Get(ctx context.Context, id string) (*domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("get reservation", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *MemoryReservationRepository) ListByPhone(ctx context.Context, phone string) ([]domain.Reservation, error) {
	return r.list(ctx, func(res *domain.Reservation) bool {
		return res.PhoneNumber == phone
	})
}

func (r *MemoryReservationRepository) ListByStylistDate(ctx context.Context, stylist string, date time.Time) ([]domain.Reservation, error) {
	key := domain.SlotKey{Stylist: stylist, Date: calendar.FormatDate(calendar.DateOnly(date))}
	return r.list(ctx, func(res *domain.Reservation) bool {
		return res.Key() == key
	})
}

func (r *MemoryReservationRepository) list(ctx context.Context, match func(*domain.Reservation) bool) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("list reservations", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Reservation, 0)
	for _, id := range r.order {
		if res := r.byID[id]; match(res) {
			out = append(out, *res)
		}
	}
	return out, nil
}

// withReservationLocked runs fn while holding the slot locks of the
// reservation's current calendar and of the calendar changes would move it to.
// A concurrent move between the read and the lock makes it start over.
func (r *MemoryReservationRepository) withReservationLocked(ctx context.Context, id string, changes domain.Changes, fn func(domain.Reservation) error) error {
	for {
		current, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		target := changes.Apply(*current)

		unlock, err := r.locks.acquire(ctx, current.Key(), target.Key())
		if err != nil {
			return domain.Unavailable("lock slot", err)
		}

		latest, err := r.Get(ctx, id)
		if err != nil {
			unlock()
			return err
		}
		if latest.Key() != current.Key() {
			unlock()
			continue
		}

		err = fn(*latest)
		unlock()
		return err
	}
}

// collision must be called with mu held.
func (r *MemoryReservationRepository) collision(candidate domain.Reservation) *domain.Reservation {
	for _, id := range r.order {
		if existing := r.byID[id]; candidate.Collides(*existing) {
			cp := *existing
			return &cp
		}
	}
	return nil
}

func (r *MemoryReservationRepository) store(res domain.Reservation) *domain.Reservation {
	r.mu.Lock()
	*r.byID[res.ID] = res
	r.mu.Unlock()
	cp := res
	return &cp
}

// slotLocks hands out one exclusive lock per slot key. Acquisition honors
// context cancellation so a stuck writer can never block callers forever.
type slotLocks struct {
	mu    sync.Mutex
	slots map[domain.SlotKey]*slotLock
}

type slotLock struct {
	held chan struct{}
	refs int
}

func newSlotLocks() *slotLocks {
	return &slotLocks{slots: make(map[domain.SlotKey]*slotLock)}
}

// acquire locks every distinct key in a fixed order and returns a func that
// releases them all.
func (l *slotLocks) acquire(ctx context.Context, keys ...domain.SlotKey) (func(), error) {
	slices.SortFunc(keys, func(a, b domain.SlotKey) int {
		switch {
		case a.String() < b.String():
			return -1
		case a.String() > b.String():
			return 1
		}
		return 0
	})
	keys = slices.Compact(keys)

	acquired := make([]domain.SlotKey, 0, len(keys))
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			l.release(acquired[i], true)
		}
	}

	for _, key := range keys {
		lock := l.ref(key)
		select {
		case lock.held <- struct{}{}:
			acquired = append(acquired, key)
		case <-ctx.Done():
			l.release(key, false)
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func (l *slotLocks) ref(key domain.SlotKey) *slotLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.slots[key]
	if !ok {
		lock = &slotLock{held: make(chan struct{}, 1)}
		l.slots[key] = lock
	}
	lock.refs++
	return lock
}

func (l *slotLocks) release(key domain.SlotKey, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock := l.slots[key]
	if held {
		<-lock.held
	}
	lock.refs--
	if lock.refs == 0 {
		delete(l.slots, key)
	}
}

var _ ReservationRepository = (*MemoryReservationRepository)(nil)
