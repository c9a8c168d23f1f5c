package vicare

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Installation is one ViCare installation.
type Installation struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Gateways    []Gateway `json:"gateways"`
}

// Gateway connects devices of an installation.
type Gateway struct {
	Serial  string       `json:"serial"`
	Version string       `json:"version"`
	Devices []DeviceInfo `json:"devices"`
}

// DeviceInfo is the discovery record of a device.
type DeviceInfo struct {
	ID         string   `json:"id"`
	ModelID    string   `json:"modelId"`
	DeviceType string   `json:"deviceType"`
	Roles      []string `json:"roles"`
	Status     string   `json:"status"`
}

// Device is a handle on one physical device. Its identity fields are
// immutable after discovery; reads go through the client cache.
type Device struct {
	client *Client

	InstallationID string
	GatewaySerial  string
	ID             string
	Model          string
	Type           string
	Roles          []string
	Status         string
}

// NewDevice builds a handle for a known device without discovery.
func NewDevice(c *Client, installationID, gatewaySerial, deviceID, model string) *Device {
	return &Device{
		client:         c,
		InstallationID: installationID,
		GatewaySerial:  gatewaySerial,
		ID:             deviceID,
		Model:          model,
	}
}

func (d *Device) featuresPath() string {
	return fmt.Sprintf("/features/installations/%s/gateways/%s/devices/%s/features",
		d.InstallationID, d.GatewaySerial, d.ID)
}

// Online reports whether the gateway last saw the device.
func (d *Device) Online() bool {
	return strings.EqualFold(d.Status, "online")
}

// HasRole reports whether the device carries a role tag such as
// "type:radiator".
func (d *Device) HasRole(role string) bool {
	return slices.Contains(d.Roles, role)
}

// IsGateway reports whether the record is the gateway itself.
func (d *Device) IsGateway() bool {
	return d.Type == "vitoconnect" || d.Type == "tcu" || d.HasRole("type:gateway")
}

// IsRadiatorActuator reports whether the device is a smart radiator valve.
func (d *Device) IsRadiatorActuator() bool {
	return d.HasRole("type:radiator") || strings.Contains(d.Model, "RadiatorActuator")
}

// IsRoomSensor reports whether the device is a standalone climate sensor.
func (d *Device) IsRoomSensor() bool {
	return d.HasRole("type:climateSensor") || strings.Contains(d.Model, "RoomSensor")
}

// Features returns the device's current feature set.
func (d *Device) Features(ctx context.Context) (FeatureSet, error) {
	return d.client.Features(ctx, d)
}

func (d *Device) float(ctx context.Context, feature, property string) (float64, error) {
	fs, err := d.Features(ctx)
	if err != nil {
		return 0, err
	}
	return fs.Float(feature, property)
}

func (d *Device) value(ctx context.Context, feature string) (float64, error) {
	return d.float(ctx, feature, "value")
}

func (d *Device) bool(ctx context.Context, feature, property string) (bool, error) {
	fs, err := d.Features(ctx)
	if err != nil {
		return false, err
	}
	return fs.Bool(feature, property)
}

func (d *Device) status(ctx context.Context, feature string) (bool, error) {
	fs, err := d.Features(ctx)
	if err != nil {
		return false, err
	}
	return fs.Status(feature)
}

func (d *Device) str(ctx context.Context, feature, property string) (string, error) {
	fs, err := d.Features(ctx)
	if err != nil {
		return "", err
	}
	return fs.String(feature, property)
}

func (d *Device) series(ctx context.Context, feature, property string, idx int) (float64, error) {
	fs, err := d.Features(ctx)
	if err != nil {
		return 0, err
	}
	return fs.Series(feature, property, idx)
}

func (d *Device) unit(ctx context.Context, feature, property string) (string, error) {
	fs, err := d.Features(ctx)
	if err != nil {
		return "", err
	}
	return fs.Unit(feature, property)
}

func (d *Device) execute(ctx context.Context, feature, command string, params map[string]any) error {
	fs, err := d.Features(ctx)
	if err != nil {
		return err
	}
	cmd, err := fs.Command(feature, command)
	if err != nil {
		return err
	}
	return d.client.Execute(ctx, d, cmd, params)
}

func (d *Device) indices(ctx context.Context, feature string) ([]string, error) {
	fs, err := d.Features(ctx)
	if err != nil {
		return nil, err
	}
	return fs.Strings(feature, "enabled")
}

// Circuits enumerates the heating circuits.
func (d *Device) Circuits(ctx context.Context) ([]*Circuit, error) {
	ids, err := d.indices(ctx, "heating.circuits")
	if err != nil {
		return nil, err
	}
	out := make([]*Circuit, 0, len(ids))
	for _, id := range ids {
		out = append(out, &Circuit{Device: d, ID: id})
	}
	return out, nil
}

// Burners enumerates the burners.
func (d *Device) Burners(ctx context.Context) ([]*Burner, error) {
	ids, err := d.indices(ctx, "heating.burners")
	if err != nil {
		return nil, err
	}
	out := make([]*Burner, 0, len(ids))
	for _, id := range ids {
		out = append(out, &Burner{Device: d, ID: id})
	}
	return out, nil
}

// Compressors enumerates the heat pump compressors.
func (d *Device) Compressors(ctx context.Context) ([]*Compressor, error) {
	ids, err := d.indices(ctx, "heating.compressors")
	if err != nil {
		return nil, err
	}
	out := make([]*Compressor, 0, len(ids))
	for _, id := range ids {
		out = append(out, &Compressor{Device: d, ID: id})
	}
	return out, nil
}

// AnyActive reports whether any burner or compressor is running.
// Missing component kinds are ignored; other faults are returned.
func (d *Device) AnyActive(ctx context.Context) (bool, error) {
	burners, err := d.Burners(ctx)
	if err != nil && !errors.Is(err, ErrNotSupported) {
		return false, err
	}
	for _, b := range burners {
		active, err := b.Active(ctx)
		if err != nil && !errors.Is(err, ErrNotSupported) {
			return false, err
		}
		if active {
			return true, nil
		}
	}
	compressors, err := d.Compressors(ctx)
	if err != nil && !errors.Is(err, ErrNotSupported) {
		return false, err
	}
	for _, cp := range compressors {
		active, err := cp.Active(ctx)
		if err != nil && !errors.Is(err, ErrNotSupported) {
			return false, err
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}

// Burner is a handle on heating.burners.N.
type Burner struct {
	Device *Device
	ID     string
}

func (b *Burner) feature(suffix string) string {
	if suffix == "" {
		return "heating.burners." + b.ID
	}
	return "heating.burners." + b.ID + "." + suffix
}

// Active reports whether the burner is firing.
func (b *Burner) Active(ctx context.Context) (bool, error) {
	return b.Device.bool(ctx, b.feature(""), "active")
}

// Starts is the lifetime start counter.
func (b *Burner) Starts(ctx context.Context) (float64, error) {
	return b.Device.float(ctx, b.feature("statistics"), "starts")
}

// Hours is the lifetime operating hours counter.
func (b *Burner) Hours(ctx context.Context) (float64, error) {
	return b.Device.float(ctx, b.feature("statistics"), "hours")
}

// Modulation is the current burner modulation in percent.
func (b *Burner) Modulation(ctx context.Context) (float64, error) {
	return b.Device.value(ctx, b.feature("modulation"))
}

// Compressor is a handle on heating.compressors.N.
type Compressor struct {
	Device *Device
	ID     string
}

func (c *Compressor) feature(suffix string) string {
	if suffix == "" {
		return "heating.compressors." + c.ID
	}
	return "heating.compressors." + c.ID + "." + suffix
}

// Active reports whether the compressor is running.
func (c *Compressor) Active(ctx context.Context) (bool, error) {
	return c.Device.bool(ctx, c.feature(""), "active")
}

// Starts is the lifetime start counter.
func (c *Compressor) Starts(ctx context.Context) (float64, error) {
	return c.Device.float(ctx, c.feature("statistics"), "starts")
}

// Hours is the lifetime operating hours counter.
func (c *Compressor) Hours(ctx context.Context) (float64, error) {
	return c.Device.float(ctx, c.feature("statistics"), "hours")
}

// HoursLoadClass returns the hours spent in load class 1..5.
func (c *Compressor) HoursLoadClass(ctx context.Context, class int) (float64, error) {
	names := [...]string{"One", "Two", "Three", "Four", "Five"}
	if class < 1 || class > len(names) {
		return 0, fmt.Errorf("%w: load class %d", ErrInvalidParameter, class)
	}
	return c.Device.float(ctx, c.feature("statistics"), "hoursLoadClass"+names[class-1])
}
