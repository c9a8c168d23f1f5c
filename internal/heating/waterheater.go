package heating

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/vicare"
)

// CommandSetOperationMode switches domestic hot water on or off.
const CommandSetOperationMode = "set_operation_mode"

// Water heater state attribute keys.
const (
	AttrOperationList = "operation_list"
)

// DHWAPI is the domestic hot water surface of a device.
// *vicare.Device satisfies it.
type DHWAPI interface {
	DHWStorageTemperature(ctx context.Context) (float64, error)
	DHWTargetTemperature(ctx context.Context) (float64, error)
	SetDHWTemperature(ctx context.Context, temperature float64) error
	DHWActiveMode(ctx context.Context) (string, error)
	SetDHWMode(ctx context.Context, mode string) error
}

// ModeAPI reads and writes a circuit operating mode. It is the fallback
// for devices without a dedicated hot water mode.
type ModeAPI interface {
	ActiveMode(ctx context.Context) (string, error)
	SetMode(ctx context.Context, mode string) error
}

// WaterHeater is the domestic hot water of one device.
type WaterHeater struct {
	*entity.Base
	dhw     DHWAPI
	circuit ModeAPI
}

// NewWaterHeater creates the water heater entity after probing the hot
// water setpoint once. circuit may be nil.
func NewWaterHeater(ctx context.Context, b *entity.Builder, t entity.Target, dhw DHWAPI, circuit ModeAPI) (*WaterHeater, bool) {
	info := b.Info(t, entity.PlatformWaterHeater, "water", "Water")
	info.Unit, info.Writable = "°C", true
	w := &WaterHeater{
		Base:    entity.NewBase(info, b.Poller(), b.Clock()),
		dhw:     dhw,
		circuit: circuit,
	}
	if !b.Probe(ctx, info.ID, func(ctx context.Context) error {
		_, err := dhw.DHWTargetTemperature(ctx)
		return err
	}) {
		return nil, false
	}
	return w, true
}

func (w *WaterHeater) Update(ctx context.Context) (entity.Outcome, error) {
	return w.Poll(ctx, func(ctx context.Context) error {
		st := &entity.State{
			Unit: "°C",
			Attributes: map[string]any{
				AttrMinTemp:       WaterMinTemp,
				AttrMaxTemp:       WaterMaxTemp,
				AttrTempStep:      WaterStep,
				AttrOperationList: Operations(),
			},
		}
		current, ok, err := optional(w.dhw.DHWStorageTemperature(ctx))
		if err != nil {
			return err
		}
		if ok {
			st.Value = current
		}
		target, ok, err := optional(w.dhw.DHWTargetTemperature(ctx))
		if err != nil {
			return err
		}
		if ok {
			st.Target = entity.Float(target)
		}
		mode, ok, err := w.activeMode(ctx)
		if err != nil {
			return err
		}
		if ok {
			st.Attributes[AttrActiveMode] = mode
			if op, ok := DHWOperationFor(mode); ok {
				st.Mode = op
			}
		}
		w.Store(st)
		return nil
	})
}

func (w *WaterHeater) activeMode(ctx context.Context) (string, bool, error) {
	mode, ok, err := optional(w.dhw.DHWActiveMode(ctx))
	if err != nil || ok || w.circuit == nil {
		return mode, ok, err
	}
	return optional(w.circuit.ActiveMode(ctx))
}

// SetTemperature writes the hot water setpoint.
func (w *WaterHeater) SetTemperature(ctx context.Context, temperature float64) error {
	if math.IsNaN(temperature) || temperature < WaterMinTemp || temperature > WaterMaxTemp {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrInvalidTemperature, temperature, WaterMinTemp, WaterMaxTemp)
	}
	if err := w.dhw.SetDHWTemperature(ctx, temperature); err != nil {
		return err
	}
	if st, ok := w.State(); ok {
		next := st.Clone()
		next.Target = entity.Float(temperature)
		w.Store(next)
	}
	return nil
}

// SetOperationMode turns hot water on or off, using the hot water mode
// when the device has one and the first circuit otherwise.
func (w *WaterHeater) SetOperationMode(ctx context.Context, op string) error {
	vendor, ok := VendorModeForOperation(op)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidOperationMode, op)
	}
	err := w.dhw.SetDHWMode(ctx, vendor)
	if errors.Is(err, vicare.ErrNotSupported) && w.circuit != nil {
		return w.circuit.SetMode(ctx, vendor)
	}
	return err
}

func (w *WaterHeater) Execute(ctx context.Context, cmd entity.Command) error {
	switch cmd.Name {
	case CommandSetTemperature:
		t, err := cmd.Float("temperature")
		if err != nil {
			return err
		}
		return w.SetTemperature(ctx, t)
	case CommandSetOperationMode:
		op, err := cmd.String("operation_mode")
		if err != nil {
			return err
		}
		return w.SetOperationMode(ctx, op)
	default:
		return fmt.Errorf("%w: %s", entity.ErrUnknownCommand, cmd.Name)
	}
}
