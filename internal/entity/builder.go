package entity

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/vicare-bridge/internal/catalog"
	"github.com/nerrad567/vicare-bridge/internal/vicare"
)

// DefaultNamePrefix starts every entity display name.
const DefaultNamePrefix = "ViCare"

// Target says where an entity attaches: a device, or one of its circuits,
// burners or compressors.
type Target struct {
	DeviceID string
	Scope    catalog.Scope
	Index    string
	// Multiple appends the index to display names when the device has
	// more than one component of this scope.
	Multiple bool
}

// ID returns the entity id for a descriptor key under this target.
func (t Target) ID(key string) string {
	if t.Scope == "" || t.Scope == catalog.ScopeDevice {
		return EntityID(t.DeviceID, key)
	}
	return EntityID(t.DeviceID, key, WithComponent(string(t.Scope), t.Index))
}

// Builder constructs entities after probing their read accessor once.
type Builder struct {
	logger     Logger
	poller     *Poller
	now        func() time.Time
	namePrefix string
}

// NewBuilder creates a Builder.
func NewBuilder(logger Logger, poller *Poller) *Builder {
	return &Builder{logger: logger, poller: poller, now: time.Now, namePrefix: DefaultNamePrefix}
}

// SetClock overrides the clock used for state timestamps and cooldowns.
func (b *Builder) SetClock(now func() time.Time) { b.now = now }

// Poller returns the poller entities are built with.
func (b *Builder) Poller() *Poller { return b.poller }

// Logger returns the logger probes report to.
func (b *Builder) Logger() Logger { return b.logger }

// Clock returns the builder clock.
func (b *Builder) Clock() func() time.Time { return b.now }

// Name formats a display name for target.
func (b *Builder) Name(t Target, name string) string {
	n := b.namePrefix + " " + name
	if t.Multiple && t.Index != "" {
		n += " " + t.Index
	}
	return n
}

// Probe runs read once and reports whether the entity should exist.
// Unsupported features are skipped quietly; any other fault skips the
// entity with a warning. Setup never fails because of a probe.
func (b *Builder) Probe(ctx context.Context, id string, read func(context.Context) error) bool {
	err := read(ctx)
	switch {
	case err == nil:
		b.logger.Debug("found entity", "entity_id", id)
		return true
	case errors.Is(err, vicare.ErrNotSupported):
		b.logger.Info("feature not supported", "entity_id", id)
	case errors.Is(err, vicare.ErrServer):
		b.logger.Warn("server error, not creating entity", "entity_id", id, "error", err)
	default:
		b.logger.Warn("not creating entity", "entity_id", id, "error", err)
	}
	return false
}

func (b *Builder) Info(t Target, platform, key, name string) Info {
	return Info{
		ID:       t.ID(key),
		DeviceID: t.DeviceID,
		Platform: platform,
		Key:      key,
		Name:     b.Name(t, name),
		Scope:    string(t.Scope),
		Index:    t.Index,
	}
}

// BuildSensor binds a numeric descriptor to a handle.
func BuildSensor[H any](ctx context.Context, b *Builder, t Target, d catalog.Descriptor[H], h H) (*Sensor, bool) {
	info := b.Info(t, PlatformSensor, d.Key, d.Name)
	info.Unit, info.DeviceClass, info.StateClass = d.Unit, d.DeviceClass, d.StateClass
	info.Icon, info.Category = d.Icon, d.Category
	info.Writable = d.Set != nil

	s := &Sensor{
		Base: NewBase(info, b.poller, b.now),
		read: func(ctx context.Context) (float64, error) { return d.Get(h, ctx) },
	}
	if d.UnitOf != nil {
		s.unitOf = func(ctx context.Context) (string, error) { return d.UnitOf(h, ctx) }
	}
	if d.Set != nil {
		s.write = func(ctx context.Context, v float64) error { return d.Set(h, ctx, v) }
	}

	var first float64
	if !b.Probe(ctx, info.ID, func(ctx context.Context) (err error) {
		first, err = s.read(ctx)
		return err
	}) {
		return nil, false
	}
	// A unit fault is not a reason to drop the entity; the next poll
	// retries it.
	if err := s.publish(ctx, first); err != nil {
		s.Store(&State{Value: first, Unit: info.Unit, DeviceClass: info.DeviceClass})
	}
	return s, true
}

// BuildBinary binds an on/off descriptor to a handle.
func BuildBinary[H any](ctx context.Context, b *Builder, t Target, d catalog.BinaryDescriptor[H], h H) (*BinarySensor, bool) {
	info := b.Info(t, PlatformBinarySensor, d.Key, d.Name)
	info.DeviceClass, info.Icon = d.DeviceClass, d.Icon

	s := &BinarySensor{
		Base: NewBase(info, b.poller, b.now),
		read: func(ctx context.Context) (bool, error) { return d.Get(h, ctx) },
	}
	var first bool
	if !b.Probe(ctx, info.ID, func(ctx context.Context) (err error) {
		first, err = s.read(ctx)
		return err
	}) {
		return nil, false
	}
	s.Store(&State{Value: first, DeviceClass: info.DeviceClass})
	return s, true
}

// BuildSwitch binds a toggle descriptor to a handle.
func BuildSwitch[H any](ctx context.Context, b *Builder, t Target, d catalog.SwitchDescriptor[H], h H) (*Switch, bool) {
	info := b.Info(t, PlatformSwitch, d.Key, d.Name)
	info.Icon, info.Category, info.Writable = d.Icon, d.Category, true

	s := &Switch{
		Base:    NewBase(info, b.poller, b.now),
		read:    func(ctx context.Context) (bool, error) { return d.Get(h, ctx) },
		enable:  func(ctx context.Context) error { return d.Enable(h, ctx) },
		disable: func(ctx context.Context) error { return d.Disable(h, ctx) },
	}
	var first bool
	if !b.Probe(ctx, info.ID, func(ctx context.Context) (err error) {
		first, err = s.read(ctx)
		return err
	}) {
		return nil, false
	}
	s.Store(&State{Value: first})
	return s, true
}

// BuildButton binds an action descriptor to a handle. The probe value is
// discarded.
func BuildButton[H any](ctx context.Context, b *Builder, t Target, d catalog.ButtonDescriptor[H], h H) (*Button, bool) {
	info := b.Info(t, PlatformButton, d.Key, d.Name)
	info.Icon, info.Category, info.Writable = d.Icon, d.Category, true

	btn := &Button{
		Base:  NewBase(info, b.poller, b.now),
		press: func(ctx context.Context) error { return d.Press(h, ctx) },
	}
	if !b.Probe(ctx, info.ID, func(ctx context.Context) error {
		_, err := d.Probe(h, ctx)
		return err
	}) {
		return nil, false
	}
	btn.Store(&State{})
	return btn, true
}
