package entity

import (
	"maps"
	"sync/atomic"
	"time"
)

// Platforms an entity can belong to.
const (
	PlatformSensor       = "sensor"
	PlatformBinarySensor = "binary_sensor"
	PlatformSwitch       = "switch"
	PlatformButton       = "button"
	PlatformClimate      = "climate"
	PlatformWaterHeater  = "water_heater"
)

// State is an immutable snapshot of an entity. A new value replaces the
// previous one wholesale; readers never observe a partial update.
type State struct {
	// Value is float64, bool or nil.
	Value       any            `json:"value"`
	Target      *float64       `json:"target,omitempty"`
	Mode        string         `json:"mode,omitempty"`
	Preset      string         `json:"preset,omitempty"`
	Action      string         `json:"action,omitempty"`
	Unit        string         `json:"unit,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a copy whose attribute map can be modified freely.
func (s *State) Clone() *State {
	c := *s
	c.Attributes = maps.Clone(s.Attributes)
	if s.Target != nil {
		t := *s.Target
		c.Target = &t
	}
	return &c
}

// Info is the static description of an entity.
type Info struct {
	ID          string `json:"id"`
	DeviceID    string `json:"device_id"`
	Platform    string `json:"platform"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Unit        string `json:"unit,omitempty"`
	DeviceClass string `json:"device_class,omitempty"`
	StateClass  string `json:"state_class,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Category    string `json:"category,omitempty"`
	Scope       string `json:"scope,omitempty"`
	Index       string `json:"index,omitempty"`
	Writable    bool   `json:"writable,omitempty"`
}

// snapshot holds the current state of an entity.
type snapshot struct {
	p atomic.Pointer[State]
}

func (s *snapshot) load() (*State, bool) {
	st := s.p.Load()
	return st, st != nil
}

func (s *snapshot) store(st *State) {
	s.p.Store(st)
}

// Float returns a pointer to v, for State.Target.
func Float(v float64) *float64 { return &v }
