package heating

import (
	"context"
	"fmt"

	"github.com/nerrad567/vicare-bridge/internal/entity"
)

// ActuatorAPI is a radiator actuator. *vicare.Device satisfies it.
type ActuatorAPI interface {
	RoomTemperature(ctx context.Context) (float64, error)
	ActuatorTargetTemperature(ctx context.Context) (float64, error)
	SetActuatorTargetTemperature(ctx context.Context, temperature float64) error
}

// Thermostat is a radiator actuator shown as a climate entity. It only
// runs in auto mode.
type Thermostat struct {
	*entity.Base
	actuator ActuatorAPI
}

// NewThermostat creates a thermostat after probing the setpoint once.
func NewThermostat(ctx context.Context, b *entity.Builder, t entity.Target, actuator ActuatorAPI) (*Thermostat, bool) {
	info := b.Info(t, entity.PlatformClimate, "thermostat", "Thermostat")
	info.Unit, info.Writable = "°C", true
	th := &Thermostat{
		Base:     entity.NewBase(info, b.Poller(), b.Clock()),
		actuator: actuator,
	}
	if !b.Probe(ctx, info.ID, func(ctx context.Context) error {
		_, err := actuator.ActuatorTargetTemperature(ctx)
		return err
	}) {
		return nil, false
	}
	return th, true
}

func (th *Thermostat) Update(ctx context.Context) (entity.Outcome, error) {
	return th.Poll(ctx, func(ctx context.Context) error {
		st := &entity.State{
			Unit: "°C",
			Mode: string(HVACAuto),
			Attributes: map[string]any{
				AttrMinTemp:   HeatingMinTemp,
				AttrMaxTemp:   HeatingMaxTemp,
				AttrTempStep:  HeatingStep,
				AttrHVACModes: []HVACMode{HVACAuto},
			},
		}
		room, ok, err := optional(th.actuator.RoomTemperature(ctx))
		if err != nil {
			return err
		}
		if ok {
			st.Value = room
		}
		target, err := th.actuator.ActuatorTargetTemperature(ctx)
		if err != nil {
			return err
		}
		st.Target = entity.Float(target)
		th.Store(st)
		return nil
	})
}

// SetTemperature writes the actuator setpoint.
func (th *Thermostat) SetTemperature(ctx context.Context, temperature float64) error {
	if err := th.actuator.SetActuatorTargetTemperature(ctx, temperature); err != nil {
		return err
	}
	if st, ok := th.State(); ok {
		next := st.Clone()
		next.Target = entity.Float(temperature)
		th.Store(next)
	}
	return nil
}

func (th *Thermostat) Execute(ctx context.Context, cmd entity.Command) error {
	switch cmd.Name {
	case CommandSetTemperature:
		t, err := cmd.Float("temperature")
		if err != nil {
			return err
		}
		return th.SetTemperature(ctx, t)
	case CommandSetHVACMode:
		mode, err := cmd.String("hvac_mode")
		if err != nil {
			return err
		}
		if HVACMode(mode) != HVACAuto {
			return fmt.Errorf("%w: thermostat only supports %s", ErrInvalidHVACMode, HVACAuto)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", entity.ErrUnknownCommand, cmd.Name)
	}
}
