package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry caches entity and device records in front of a Repository.
//
// The cache is loaded by RefreshCache on startup and kept in step by the
// write methods. Reads never touch the database and always return deep
// copies. All methods are safe for concurrent use.
type Registry struct {
	repo     Repository
	mu       sync.RWMutex
	entities map[string]*Entity
	devices  map[string]*Device
	logger   Logger
}

// NewRegistry creates a registry on top of repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:     repo,
		entities: make(map[string]*Entity),
		devices:  make(map[string]*Device),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all records from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entities, err := r.repo.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}
	devices, err := r.repo.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = make(map[string]*Entity, len(entities))
	for i := range entities {
		r.entities[entities[i].ID] = entities[i].DeepCopy()
	}
	r.devices = make(map[string]*Device, len(devices))
	for i := range devices {
		r.devices[devices[i].ID] = devices[i].DeepCopy()
	}
	r.logger.Info("registry cache refreshed", "entities", len(entities), "devices", len(devices))
	return nil
}

// Register persists an entity record. The cached state of an already known
// entity is kept.
func (r *Registry) Register(ctx context.Context, e *Entity) error {
	if err := r.repo.UpsertEntity(ctx, e); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cpy := e.DeepCopy()
	if prev, ok := r.entities[e.ID]; ok {
		cpy.State = prev.State
		cpy.Available = prev.Available
		cpy.StateUpdatedAt = prev.StateUpdatedAt
		cpy.CreatedAt = prev.CreatedAt
	}
	if len(cpy.State) == 0 {
		cpy.State = json.RawMessage(`{}`)
	}
	r.entities[e.ID] = cpy
	r.logger.Debug("entity registered", "entity_id", e.ID)
	return nil
}

// SetState marshals state and stores it as the entity's snapshot.
func (r *Registry) SetState(ctx context.Context, id string, state any, available bool, at time.Time) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	if err := r.repo.UpdateEntityState(ctx, id, raw, available, at); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entities[id]; ok {
		e.State = raw
		e.Available = available
		t := at.UTC()
		e.StateUpdatedAt = &t
	}
	return nil
}

// GetEntity returns a copy of one entity.
func (r *Registry) GetEntity(_ context.Context, id string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return e.DeepCopy(), nil
}

// ListEntities returns copies of all entities ordered by ID.
func (r *Registry) ListEntities(_ context.Context) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, *e.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListByDevice returns copies of the entities of one device.
func (r *Registry) ListByDevice(_ context.Context, deviceID string) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entity
	for _, e := range r.entities {
		if e.DeviceID == deviceID {
			out = append(out, *e.DeepCopy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Prune deletes entities of deviceID that are not in keep. It returns the
// number removed. Entities vanish when a device stops reporting a feature
// between restarts.
func (r *Registry) Prune(ctx context.Context, deviceID string, keep map[string]bool) (int, error) {
	var stale []string
	r.mu.RLock()
	for id, e := range r.entities {
		if e.DeviceID == deviceID && !keep[id] {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		if err := r.repo.DeleteEntity(ctx, id); err != nil {
			return 0, fmt.Errorf("pruning %s: %w", id, err)
		}
		r.mu.Lock()
		delete(r.entities, id)
		r.mu.Unlock()
	}
	if len(stale) > 0 {
		r.logger.Info("pruned stale entities", "device_id", deviceID, "count", len(stale))
	}
	return len(stale), nil
}

// RegisterDevice persists a device record.
func (r *Registry) RegisterDevice(ctx context.Context, d *Device) error {
	if err := r.repo.UpsertDevice(ctx, d); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cpy := d.DeepCopy()
	if prev, ok := r.devices[d.ID]; ok {
		cpy.CreatedAt = prev.CreatedAt
	}
	r.devices[d.ID] = cpy
	return nil
}

// GetDevice returns a copy of one device.
func (r *Registry) GetDevice(_ context.Context, id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

// ListDevices returns copies of all devices ordered by ID.
func (r *Registry) ListDevices(_ context.Context) []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats summarises the cached records.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{
		Entities:   len(r.entities),
		Devices:    len(r.devices),
		ByPlatform: make(map[string]int),
	}
	for _, e := range r.entities {
		s.ByPlatform[e.Platform]++
		if e.Available {
			s.Available++
		}
	}
	return s
}
