package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/Shivanand-hulikatti/event-reservations/internal/cache"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/notify"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

const (
	userID  = "11111111-1111-1111-1111-111111111111"
	otherID = "22222222-2222-2222-2222-222222222222"
	eventID = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
)

type mockEvents struct{ mock.Mock }

func (m *mockEvents) Create(ctx context.Context, creatorID string, req model.CreateEventRequest) (*model.Event, error) {
	args := m.Called(ctx, creatorID, req)
	e, _ := args.Get(0).(*model.Event)
	return e, args.Error(1)
}

func (m *mockEvents) GetByID(ctx context.Context, id string) (*model.Event, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*model.Event)
	return e, args.Error(1)
}

func (m *mockEvents) List(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]model.Event)
	return list, args.Error(1)
}

func (m *mockEvents) Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	args := m.Called(ctx, id, req)
	e, _ := args.Get(0).(*model.Event)
	return e, args.Error(1)
}

func (m *mockEvents) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockReservations struct{ mock.Mock }

func (m *mockReservations) Create(ctx context.Context, userID, eventID string) (*model.Reservation, error) {
	args := m.Called(ctx, userID, eventID)
	r, _ := args.Get(0).(*model.Reservation)
	return r, args.Error(1)
}

func (m *mockReservations) Cancel(ctx context.Context, userID, eventID string) (*model.Cancellation, error) {
	args := m.Called(ctx, userID, eventID)
	c, _ := args.Get(0).(*model.Cancellation)
	return c, args.Error(1)
}

func (m *mockReservations) ClearEvent(ctx context.Context, eventID string) (int64, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockReservations) ListAll(ctx context.Context) ([]model.Reservation, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]model.Reservation)
	return list, args.Error(1)
}

func (m *mockReservations) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]model.Reservation)
	return list, args.Error(1)
}

func (m *mockReservations) ListByEvent(ctx context.Context, eventID string) ([]model.Reservation, error) {
	args := m.Called(ctx, eventID)
	list, _ := args.Get(0).([]model.Reservation)
	return list, args.Error(1)
}

func (m *mockReservations) CountByUser(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockReservations) Exists(ctx context.Context, userID, eventID string) (bool, error) {
	args := m.Called(ctx, userID, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReservations) ReservedEvents(ctx context.Context, userID string) ([]model.Event, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]model.Event)
	return list, args.Error(1)
}

func (m *mockReservations) Attendees(ctx context.Context, eventID string) (*model.Attendees, error) {
	args := m.Called(ctx, eventID)
	a, _ := args.Get(0).(*model.Attendees)
	return a, args.Error(1)
}

func (m *mockReservations) DeleteAccount(ctx context.Context, userID string) (*repository.AccountDeletion, error) {
	args := m.Called(ctx, userID)
	d, _ := args.Get(0).(*repository.AccountDeletion)
	return d, args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Create(ctx context.Context, u *model.User) error {
	args := m.Called(ctx, u)
	if args.Error(0) == nil && u.ID == "" {
		u.ID = userID
	}
	return args.Error(0)
}

func (m *mockUsers) GetByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *mockUsers) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]model.User)
	return list, args.Error(1)
}

// spyCache records invalidations and serves whatever was Set.
type spyCache struct {
	mu          sync.Mutex
	items       map[string]*model.Event
	gens        map[string]cache.Version
	invalidated []string
}

func newSpyCache() *spyCache {
	return &spyCache{items: map[string]*model.Event{}, gens: map[string]cache.Version{}}
}

func (c *spyCache) Get(_ context.Context, id string) (*model.Event, cache.Version, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[id]
	return e, c.gens[id], ok
}

func (c *spyCache) Set(_ context.Context, e *model.Event, v cache.Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[e.ID] == v {
		c.items[e.ID] = e
	}
}

func (c *spyCache) Invalidate(_ context.Context, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.items, id)
		c.gens[id]++
		c.invalidated = append(c.invalidated, id)
	}
}

type spyPublisher struct {
	mu   sync.Mutex
	sent []notify.Activity
}

func (p *spyPublisher) Publish(_ context.Context, activities ...notify.Activity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, activities...)
}

func (p *spyPublisher) Close() error { return nil }

func (p *spyPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	for i, a := range p.sent {
		out[i] = a.Type
	}
	return out
}
