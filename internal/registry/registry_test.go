package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockRepository is an in-memory Repository.
type MockRepository struct {
	mu       sync.Mutex
	entities map[string]*Entity
	devices  map[string]*Device
	failNext error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		entities: make(map[string]*Entity),
		devices:  make(map[string]*Device),
	}
}

func (m *MockRepository) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *MockRepository) GetEntity(_ context.Context, id string) (*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return e.DeepCopy(), nil
}

func (m *MockRepository) ListEntities(_ context.Context) ([]Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, *e.DeepCopy())
	}
	return out, nil
}

func (m *MockRepository) UpsertEntity(_ context.Context, e *Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if prev, ok := m.entities[e.ID]; ok {
		cpy := e.DeepCopy()
		cpy.State, cpy.Available = prev.State, prev.Available
		m.entities[e.ID] = cpy
		return nil
	}
	m.entities[e.ID] = e.DeepCopy()
	return nil
}

func (m *MockRepository) UpdateEntityState(_ context.Context, id string, state json.RawMessage, available bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	e, ok := m.entities[id]
	if !ok {
		return ErrEntityNotFound
	}
	e.State, e.Available, e.StateUpdatedAt = state, available, &at
	return nil
}

func (m *MockRepository) DeleteEntity(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; !ok {
		return ErrEntityNotFound
	}
	delete(m.entities, id)
	return nil
}

func (m *MockRepository) ListDevices(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (m *MockRepository) UpsertDevice(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func TestRegistry_RefreshCache(t *testing.T) {
	repo := NewMockRepository()
	repo.entities["a"] = testEntity("a")
	repo.devices["1/gw/0"] = &Device{ID: "1/gw/0"}

	reg := NewRegistry(repo)
	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := reg.Stats(); s.Entities != 1 || s.Devices != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestRegistry_RegisterAndSetState(t *testing.T) {
	repo := NewMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	if err := reg.Register(ctx, testEntity("a")); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := reg.SetState(ctx, "a", map[string]any{"value": 8.5}, true, at); err != nil {
		t.Fatal(err)
	}

	got, err := reg.GetEntity(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.State) != `{"value":8.5}` || !got.Available {
		t.Errorf("entity = %+v", got)
	}

	// Re-registering keeps the cached state.
	if err := reg.Register(ctx, testEntity("a")); err != nil {
		t.Fatal(err)
	}
	got, _ = reg.GetEntity(ctx, "a")
	if !got.Available || string(got.State) != `{"value":8.5}` {
		t.Errorf("state lost on re-register: %+v", got)
	}
	if s := reg.Stats(); s.Available != 1 || s.ByPlatform["sensor"] != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	reg := NewRegistry(NewMockRepository())
	ctx := context.Background()
	if err := reg.Register(ctx, testEntity("a")); err != nil {
		t.Fatal(err)
	}
	got, _ := reg.GetEntity(ctx, "a")
	got.Name = "mutated"
	got.State[0] = 'X'

	again, _ := reg.GetEntity(ctx, "a")
	if again.Name == "mutated" || string(again.State) != "{}" {
		t.Errorf("cache was mutated through a returned copy: %+v", again)
	}
}

func TestRegistry_SetStateFailureKeepsCache(t *testing.T) {
	repo := NewMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()
	if err := reg.Register(ctx, testEntity("a")); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("disk full")
	repo.failNext = boom
	if err := reg.SetState(ctx, "a", map[string]any{"value": 1}, true, time.Now()); !errors.Is(err, boom) {
		t.Fatalf("SetState() error = %v, want %v", err, boom)
	}
	got, _ := reg.GetEntity(ctx, "a")
	if got.Available {
		t.Error("cache updated despite repository failure")
	}
}

func TestRegistry_ListByDeviceAndPrune(t *testing.T) {
	reg := NewRegistry(NewMockRepository())
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := reg.Register(ctx, testEntity(id)); err != nil {
			t.Fatal(err)
		}
	}
	other := testEntity("z")
	other.DeviceID = "1/gw/1"
	if err := reg.Register(ctx, other); err != nil {
		t.Fatal(err)
	}

	if got := reg.ListByDevice(ctx, "1/gw/0"); len(got) != 3 || got[0].ID != "a" {
		t.Errorf("ListByDevice() = %v", got)
	}

	n, err := reg.Prune(ctx, "1/gw/0", map[string]bool{"a": true})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Prune() = %d, want 2", n)
	}
	if got := reg.ListEntities(ctx); len(got) != 2 {
		t.Errorf("ListEntities() = %d entities, want 2", len(got))
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	reg := NewRegistry(NewMockRepository())
	if _, err := reg.GetEntity(context.Background(), "x"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("GetEntity() error = %v", err)
	}
	if _, err := reg.GetDevice(context.Background(), "x"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice() error = %v", err)
	}
}
