package registry

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"
)

// Entity is the persisted record of one materialised entity.
type Entity struct {
	ID          string `json:"id"`
	DeviceID    string `json:"device_id"`
	Platform    string `json:"platform"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Unit        string `json:"unit,omitempty"`
	DeviceClass string `json:"device_class,omitempty"`
	// Component is "<scope>.<index>" for circuit, burner and compressor
	// entities, empty otherwise.
	Component string `json:"component,omitempty"`

	// State is the last published snapshot as JSON.
	State          json.RawMessage `json:"state"`
	Available      bool            `json:"available"`
	StateUpdatedAt *time.Time      `json:"state_updated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns a copy that shares no memory with e.
func (e *Entity) DeepCopy() *Entity {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.State = bytes.Clone(e.State)
	if e.StateUpdatedAt != nil {
		t := *e.StateUpdatedAt
		cpy.StateUpdatedAt = &t
	}
	return &cpy
}

// Device is the persisted record of one discovered vendor device.
type Device struct {
	// ID is the composite installation/gateway/device identifier.
	ID             string     `json:"id"`
	InstallationID string     `json:"installation_id"`
	GatewaySerial  string     `json:"gateway_serial"`
	DeviceID       string     `json:"device_id"`
	Model          string     `json:"model,omitempty"`
	Roles          []string   `json:"roles,omitempty"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// DeepCopy returns a copy that shares no memory with d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	cpy.Roles = slices.Clone(d.Roles)
	if d.LastSeen != nil {
		t := *d.LastSeen
		cpy.LastSeen = &t
	}
	return &cpy
}

// Stats summarises the registry contents.
type Stats struct {
	Entities   int            `json:"entities"`
	Available  int            `json:"available"`
	Devices    int            `json:"devices"`
	ByPlatform map[string]int `json:"by_platform"`
}
