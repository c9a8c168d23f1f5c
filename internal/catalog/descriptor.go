package catalog

import (
	"context"
)

// Scope is the kind of handle a descriptor reads from.
type Scope string

const (
	ScopeDevice     Scope = "device"
	ScopeCircuit    Scope = "circuit"
	ScopeBurner     Scope = "burner"
	ScopeCompressor Scope = "compressor"
)

// Device classes, units and state classes in Home Assistant vocabulary.
const (
	ClassTemperature = "temperature"
	ClassHumidity    = "humidity"
	ClassEnergy      = "energy"
	ClassGas         = "gas"
	ClassPower       = "power"
	ClassDuration    = "duration"
	ClassRunning     = "running"

	UnitCelsius    = "°C"
	UnitPercent    = "%"
	UnitHours      = "h"
	UnitKWh        = "kWh"
	UnitCubicMeter = "m³"
	UnitWatt       = "W"

	StateMeasurement     = "measurement"
	StateTotalIncreasing = "total_increasing"

	CategoryConfig     = "config"
	CategoryDiagnostic = "diagnostic"
)

// Descriptor declares a numeric sensor readable from handles of type H.
// Accessors take the handle first so they can be method expressions on
// vicare handles; descriptors never perform I/O themselves.
type Descriptor[H any] struct {
	Key         string
	Name        string
	Unit        string
	DeviceClass string
	StateClass  string
	Icon        string
	Category    string

	Get func(H, context.Context) (float64, error)
	// Set is optional and makes the sensor writable.
	Set func(H, context.Context, float64) error
	// UnitOf is optional and overrides Unit and DeviceClass with the
	// vendor-reported unit.
	UnitOf func(H, context.Context) (string, error)
}

// BinaryDescriptor declares an on/off sensor.
type BinaryDescriptor[H any] struct {
	Key         string
	Name        string
	DeviceClass string
	Icon        string

	Get func(H, context.Context) (bool, error)
}

// SwitchDescriptor declares a toggle with separate enable and disable
// commands.
type SwitchDescriptor[H any] struct {
	Key      string
	Name     string
	Icon     string
	Category string

	Get     func(H, context.Context) (bool, error)
	Enable  func(H, context.Context) error
	Disable func(H, context.Context) error
}

// ButtonDescriptor declares a fire-and-forget action. Probe is read once
// at setup to decide whether the device supports the action.
type ButtonDescriptor[H any] struct {
	Key      string
	Name     string
	Icon     string
	Category string

	Probe func(H, context.Context) (bool, error)
	Press func(H, context.Context) error
}
