package repository

import (
	"context"
	"fmt"
	interrors "labbroker/internal/errors"
	mongotx "labbroker/pkg/db/mongo"
	"labbroker/pkg/model"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type txKey struct{}

// memoryTx records undo steps for writes made inside ExecuteTransaction.
type memoryTx struct {
	store *memoryStore
	undo  []func()
}

// memoryStore keeps everything in process. Reads return copies so callers
// can never mutate stored state through a snapshot.
type memoryStore struct {
	mu        sync.RWMutex
	resources map[string]*model.Resource
	bookings  map[string]*model.Booking
	now       func() time.Time
}

func NewMemoryStore() Store {
	return &memoryStore{
		resources: make(map[string]*model.Resource),
		bookings:  make(map[string]*model.Booking),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) Resources() ResourceRepository {
	return (*memoryResources)(s)
}

func (s *memoryStore) Bookings() BookingRepository {
	return (*memoryBookings)(s)
}

// ExecuteTransaction holds the store's write lock for the whole of fn, so
// no reader outside the transaction sees its writes before they commit.
// Every write is undone when fn fails or ctx is done. A nested call joins
// the outer transaction.
func (s *memoryStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.tx(ctx); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s}
	err := fn(context.WithValue(ctx, txKey{}, tx))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (s *memoryStore) tx(ctx context.Context) (*memoryTx, bool) {
	tx, ok := ctx.Value(txKey{}).(*memoryTx)
	if !ok || tx.store != s {
		return nil, false
	}
	return tx, true
}

// readLock and writeLock are no-ops inside a transaction, which already
// holds the write lock.
func (s *memoryStore) readLock(ctx context.Context) func() {
	if _, ok := s.tx(ctx); ok {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *memoryStore) writeLock(ctx context.Context) func() {
	if _, ok := s.tx(ctx); ok {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// record must be called with s.mu held.
func (s *memoryStore) record(ctx context.Context, undo func()) {
	if tx, ok := s.tx(ctx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

type memoryResources memoryStore

func (r *memoryResources) store() *memoryStore { return (*memoryStore)(r) }

func (r *memoryResources) Create(ctx context.Context, resource *model.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.store().writeLock(ctx)()

	for _, existing := range r.resources {
		if strings.EqualFold(existing.Name, resource.Name) {
			return fmt.Errorf("%w: %s", interrors.ErrDuplicateName, resource.Name)
		}
	}

	resource.ID = uuid.New().String()
	resource.CreatedAt = r.now()
	stored := cloneResource(resource)
	r.resources[stored.ID] = stored
	r.store().record(ctx, func() { delete(r.resources, stored.ID) })
	return nil
}

func (r *memoryResources) FindByID(ctx context.Context, id string) (*model.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", interrors.ErrInvalidID, id)
	}
	defer r.store().readLock(ctx)()

	resource, ok := r.resources[id]
	if !ok {
		return nil, interrors.ErrNotFound
	}
	return cloneResource(resource), nil
}

func (r *memoryResources) FindByName(ctx context.Context, name string) (*model.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.store().readLock(ctx)()

	for _, resource := range r.resources {
		if strings.EqualFold(resource.Name, name) {
			return cloneResource(resource), nil
		}
	}
	return nil, interrors.ErrNotFound
}

func (r *memoryResources) FindAll(ctx context.Context) ([]*model.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.store().readLock(ctx)()

	out := make([]*model.Resource, 0, len(r.resources))
	for _, resource := range r.resources {
		out = append(out, cloneResource(resource))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryResources) Update(ctx context.Context, id string, resource *model.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.store().writeLock(ctx)()

	existing, ok := r.resources[id]
	if !ok {
		return interrors.ErrNotFound
	}
	for otherID, other := range r.resources {
		if otherID != id && strings.EqualFold(other.Name, resource.Name) {
			return fmt.Errorf("%w: %s", interrors.ErrDuplicateName, resource.Name)
		}
	}

	updated := cloneResource(resource)
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	r.resources[id] = updated
	r.store().record(ctx, func() { r.resources[id] = existing })
	return nil
}

func (r *memoryResources) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.store().writeLock(ctx)()

	existing, ok := r.resources[id]
	if !ok {
		return interrors.ErrNotFound
	}
	delete(r.resources, id)
	r.store().record(ctx, func() { r.resources[id] = existing })
	return nil
}

type memoryBookings memoryStore

func (b *memoryBookings) store() *memoryStore { return (*memoryStore)(b) }

func (b *memoryBookings) Create(ctx context.Context, booking *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer b.store().writeLock(ctx)()

	booking.ID = uuid.New().String()
	booking.CreatedAt = b.now()
	stored := booking.Clone()
	b.bookings[stored.ID] = stored
	b.store().record(ctx, func() { delete(b.bookings, stored.ID) })
	return nil
}

func (b *memoryBookings) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", interrors.ErrInvalidID, id)
	}
	defer b.store().readLock(ctx)()

	booking, ok := b.bookings[id]
	if !ok {
		return nil, interrors.ErrNotFound
	}
	return booking.Clone(), nil
}

func (b *memoryBookings) FindByResource(ctx context.Context, resourceID string) ([]*model.Booking, error) {
	return b.filter(ctx, func(bk *model.Booking) bool { return bk.ResourceID == resourceID })
}

func (b *memoryBookings) FindInRange(ctx context.Context, from, to time.Time) ([]*model.Booking, error) {
	window := model.Interval{Start: from, End: to}
	return b.filter(ctx, func(bk *model.Booking) bool { return window.Overlaps(bk.Interval()) })
}

func (b *memoryBookings) filter(ctx context.Context, keep func(*model.Booking) bool) ([]*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer b.store().readLock(ctx)()

	var out []*model.Booking
	for _, booking := range b.bookings {
		if keep(booking) {
			out = append(out, booking.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (b *memoryBookings) UpdateInterval(ctx context.Context, id string, interval model.Interval) error {
	return b.mutate(ctx, id, func(bk *model.Booking) { bk.SetInterval(interval) })
}

func (b *memoryBookings) UpdateStudentCount(ctx context.Context, id string, studentCount int) error {
	return b.mutate(ctx, id, func(bk *model.Booking) { bk.StudentCount = studentCount })
}

func (b *memoryBookings) mutate(ctx context.Context, id string, apply func(*model.Booking)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer b.store().writeLock(ctx)()

	existing, ok := b.bookings[id]
	if !ok {
		return interrors.ErrNotFound
	}
	updated := existing.Clone()
	apply(updated)
	b.bookings[id] = updated
	b.store().record(ctx, func() { b.bookings[id] = existing })
	return nil
}

func (b *memoryBookings) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer b.store().writeLock(ctx)()

	existing, ok := b.bookings[id]
	if !ok {
		return interrors.ErrNotFound
	}
	delete(b.bookings, id)
	b.store().record(ctx, func() { b.bookings[id] = existing })
	return nil
}

func (b *memoryBookings) DeleteByResource(ctx context.Context, resourceID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer b.store().writeLock(ctx)()

	var deleted int64
	for id, booking := range b.bookings {
		if booking.ResourceID != resourceID {
			continue
		}
		delete(b.bookings, id)
		id, booking := id, booking
		b.store().record(ctx, func() { b.bookings[id] = booking })
		deleted++
	}
	return deleted, nil
}

func cloneResource(r *model.Resource) *model.Resource {
	c := *r
	if r.Equipment != nil {
		c.Equipment = append([]string(nil), r.Equipment...)
	}
	return &c
}
