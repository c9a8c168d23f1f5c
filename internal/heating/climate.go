package heating

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/vicare"
)

// Climate commands.
const (
	CommandSetHVACMode     = "set_hvac_mode"
	CommandSetPresetMode   = "set_preset_mode"
	CommandSetTemperature  = "set_temperature"
	CommandSetHoldMode     = "set_hold_mode"
	CommandSetVicareMode   = "set_vicare_mode"
	CommandSetHeatingCurve = "set_heating_curve"
)

// Climate state attribute keys.
const (
	AttrRoomTemperature = "room_temperature"
	AttrActiveProgram   = "active_vicare_program"
	AttrActiveMode      = "active_vicare_mode"
	AttrCurveSlope      = "heating_curve_slope"
	AttrCurveShift      = "heating_curve_shift"
	AttrVicareModes     = "vicare_modes"
	AttrHVACModes       = "hvac_modes"
	AttrPresetModes     = "preset_modes"
	AttrHoldMode        = "hold_mode"
	AttrMinTemp         = "min_temp"
	AttrMaxTemp         = "max_temp"
	AttrTempStep        = "target_temp_step"
)

// CircuitAPI is the part of a heating circuit the climate entity drives.
// *vicare.Circuit satisfies it.
type CircuitAPI interface {
	SupplyTemperature(ctx context.Context) (float64, error)
	RoomTemperature(ctx context.Context) (float64, error)
	ActiveMode(ctx context.Context) (string, error)
	Modes(ctx context.Context) ([]string, error)
	SetMode(ctx context.Context, mode string) error
	ActiveProgram(ctx context.Context) (string, error)
	ProgramTemperature(ctx context.Context, program string) (float64, error)
	ProgramLimits(ctx context.Context, program string) (vicare.Constraints, error)
	SetProgramTemperature(ctx context.Context, program string, temperature float64) error
	ActivateProgram(ctx context.Context, program string) error
	DeactivateProgram(ctx context.Context, program string) error
	HeatingCurveShift(ctx context.Context) (int, error)
	HeatingCurveSlope(ctx context.Context) (float64, error)
	SetHeatingCurve(ctx context.Context, shift int, slope float64) error
}

// ActivityAPI reports whether a heat generator is running.
// *vicare.Device satisfies it.
type ActivityAPI interface {
	AnyActive(ctx context.Context) (bool, error)
}

// Climate is one heating circuit exposed as a thermostat-like entity.
type Climate struct {
	*entity.Base
	circuit  CircuitAPI
	activity ActivityAPI
	logger   entity.Logger

	mu       sync.Mutex
	heldFrom string
}

// NewClimate creates the climate entity for a circuit. activity may be nil
// when the device has no burners or compressors.
func NewClimate(b *entity.Builder, t entity.Target, circuit CircuitAPI, activity ActivityAPI, logger entity.Logger) *Climate {
	info := b.Info(t, entity.PlatformClimate, "heating", "Heating")
	info.Unit, info.Writable = "°C", true
	return &Climate{
		Base:     entity.NewBase(info, b.Poller(), b.Clock()),
		circuit:  circuit,
		activity: activity,
		logger:   logger,
	}
}

// optional drops ErrNotSupported, reporting whether the value exists.
func optional[T any](v T, err error) (T, bool, error) {
	var zero T
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, vicare.ErrNotSupported):
		return zero, false, nil
	default:
		return zero, false, err
	}
}

func (c *Climate) Update(ctx context.Context) (entity.Outcome, error) {
	return c.Poll(ctx, func(ctx context.Context) error {
		st, err := c.fetch(ctx)
		if err != nil {
			return err
		}
		c.Store(st)
		return nil
	})
}

func (c *Climate) fetch(ctx context.Context) (*entity.State, error) {
	attrs := map[string]any{}
	st := &entity.State{Unit: "°C", Attributes: attrs}

	room, hasRoom, err := optional(c.circuit.RoomTemperature(ctx))
	if err != nil {
		return nil, err
	}
	if hasRoom {
		st.Value = room
		attrs[AttrRoomTemperature] = room
	} else {
		supply, ok, err := optional(c.circuit.SupplyTemperature(ctx))
		if err != nil {
			return nil, err
		}
		if ok {
			st.Value = supply
		}
	}

	minT, maxT, step := HeatingMinTemp, HeatingMaxTemp, HeatingStep
	program, hasProgram, err := optional(c.circuit.ActiveProgram(ctx))
	if err != nil {
		return nil, err
	}
	if hasProgram {
		attrs[AttrActiveProgram] = program
		if preset, ok := PresetFor(program); ok {
			st.Preset = string(preset)
		}
		target, ok, err := optional(c.circuit.ProgramTemperature(ctx, program))
		if err != nil {
			return nil, err
		}
		if ok {
			st.Target = entity.Float(target)
		}
		limits, ok, err := optional(c.circuit.ProgramLimits(ctx, program))
		if err != nil {
			return nil, err
		}
		if ok {
			if limits.Min != nil {
				minT = *limits.Min
			}
			if limits.Max != nil {
				maxT = *limits.Max
			}
			if limits.Stepping != nil && *limits.Stepping > 0 {
				step = *limits.Stepping
			}
		}
	}
	attrs[AttrMinTemp], attrs[AttrMaxTemp], attrs[AttrTempStep] = minT, maxT, step

	mode, hasMode, err := optional(c.circuit.ActiveMode(ctx))
	if err != nil {
		return nil, err
	}
	if hasMode {
		attrs[AttrActiveMode] = mode
		attrs[AttrHoldMode] = HoldFor(mode)
		if hvac, ok := HVACModeFor(mode); ok {
			st.Mode = string(hvac)
		}
	}

	modes, hasModes, err := optional(c.circuit.Modes(ctx))
	if err != nil {
		return nil, err
	}
	if hasModes {
		attrs[AttrVicareModes] = modes
		attrs[AttrHVACModes] = HVACModesFor(modes)
	}
	attrs[AttrPresetModes] = Presets()

	shift, ok, err := optional(c.circuit.HeatingCurveShift(ctx))
	if err != nil {
		return nil, err
	}
	if ok {
		attrs[AttrCurveShift] = shift
	}
	slope, ok, err := optional(c.circuit.HeatingCurveSlope(ctx))
	if err != nil {
		return nil, err
	}
	if ok {
		attrs[AttrCurveSlope] = slope
	}

	if c.activity != nil {
		active, ok, err := optional(c.activity.AnyActive(ctx))
		if err != nil {
			return nil, err
		}
		if ok {
			st.Action = ActionIdle
			if active {
				st.Action = ActionHeating
			}
		}
	}
	return st, nil
}

func (c *Climate) attr(key string) (any, bool) {
	st, ok := c.State()
	if !ok {
		return nil, false
	}
	v, ok := st.Attributes[key]
	return v, ok
}

func (c *Climate) vicareModes() ([]string, bool) {
	v, ok := c.attr(AttrVicareModes)
	if !ok {
		return nil, false
	}
	modes, ok := v.([]string)
	return modes, ok && len(modes) > 0
}

func (c *Climate) currentString(key string) string {
	v, _ := c.attr(key)
	s, _ := v.(string)
	return s
}

// SetHVACMode switches the circuit to the vendor mode matching mode.
func (c *Climate) SetHVACMode(ctx context.Context, mode HVACMode) error {
	modes, ok := c.vicareModes()
	if !ok {
		return ErrModesUnknown
	}
	vendor, ok := VendorModeFor(mode, modes)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidHVACMode, mode)
	}
	c.logger.Debug("setting hvac mode", "entity_id", c.Info().ID, "hvac_mode", mode, "vicare_mode", vendor)
	if err := c.circuit.SetMode(ctx, vendor); err != nil {
		return err
	}
	c.forgetHold()
	return nil
}

// SetVicareMode switches the circuit to a raw vendor mode.
func (c *Climate) SetVicareMode(ctx context.Context, mode string) error {
	modes, ok := c.vicareModes()
	if !ok {
		return ErrModesUnknown
	}
	if !slices.Contains(modes, mode) {
		return fmt.Errorf("%w: %q not in %v", ErrInvalidVicareMode, mode, modes)
	}
	if err := c.circuit.SetMode(ctx, mode); err != nil {
		return err
	}
	c.forgetHold()
	return nil
}

// SetPreset leaves the running program and enters the one for preset.
// The base program is never activated or deactivated explicitly.
func (c *Climate) SetPreset(ctx context.Context, preset Preset) error {
	target, ok := ProgramFor(preset)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPreset, preset)
	}
	current := c.currentString(AttrActiveProgram)
	if current != "" && current != programNormal && current != target {
		err := c.circuit.DeactivateProgram(ctx, current)
		switch {
		case err == nil:
		case errors.Is(err, vicare.ErrCommandRejected):
			c.logger.Debug("program could not be deactivated", "entity_id", c.Info().ID, "program", current, "error", err)
		default:
			return err
		}
	}
	if target != programNormal && current != target {
		return c.circuit.ActivateProgram(ctx, target)
	}
	return nil
}

// SetTemperature writes the setpoint of the running program and reflects it
// immediately in the snapshot.
func (c *Climate) SetTemperature(ctx context.Context, temperature float64) error {
	program := c.currentString(AttrActiveProgram)
	if program == "" {
		return ErrProgramUnknown
	}
	if err := c.circuit.SetProgramTemperature(ctx, program, temperature); err != nil {
		return err
	}
	if st, ok := c.State(); ok {
		next := st.Clone()
		next.Target = entity.Float(temperature)
		c.Store(next)
	}
	return nil
}

// SetHeatingCurve validates and writes shift and slope. The slope is
// rounded to one decimal.
func (c *Climate) SetHeatingCurve(ctx context.Context, shift int, slope float64) error {
	slope = math.Round(slope*10) / 10
	if shift < CurveShiftMin || shift > CurveShiftMax {
		return fmt.Errorf("%w: shift %d not in [%d, %d]", ErrInvalidCurve, shift, CurveShiftMin, CurveShiftMax)
	}
	if math.IsNaN(slope) || slope < CurveSlopeMin || slope > CurveSlopeMax {
		return fmt.Errorf("%w: slope %.1f not in [%.1f, %.1f]", ErrInvalidCurve, slope, CurveSlopeMin, CurveSlopeMax)
	}
	return c.circuit.SetHeatingCurve(ctx, shift, slope)
}

// SetHoldMode forces the circuit into reduced (away) or normal (home)
// operation, or ends the hold (off) by restoring the mode that was active
// before it started.
func (c *Climate) SetHoldMode(ctx context.Context, hold string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hold == HoldOff {
		restore := c.heldFrom
		if restore == "" {
			restore = holdFallbackMode
			c.logger.Info("no mode remembered before hold, using fallback", "entity_id", c.Info().ID, "vicare_mode", restore)
		}
		if err := c.circuit.SetMode(ctx, restore); err != nil {
			return err
		}
		c.heldFrom = ""
		return nil
	}

	vendor, ok := VendorModeForHold(hold)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidHoldMode, hold)
	}
	current := c.currentString(AttrActiveMode)
	if err := c.circuit.SetMode(ctx, vendor); err != nil {
		return err
	}
	if c.heldFrom == "" && current != "" && !isHoldMode(current) {
		c.heldFrom = current
	}
	return nil
}

// HeldFrom returns the mode remembered for the end of the hold, if any.
func (c *Climate) HeldFrom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heldFrom
}

func (c *Climate) forgetHold() {
	c.mu.Lock()
	c.heldFrom = ""
	c.mu.Unlock()
}

func (c *Climate) Execute(ctx context.Context, cmd entity.Command) error {
	switch cmd.Name {
	case CommandSetHVACMode:
		mode, err := cmd.String("hvac_mode")
		if err != nil {
			return err
		}
		return c.SetHVACMode(ctx, HVACMode(mode))
	case CommandSetPresetMode:
		preset, err := cmd.String("preset_mode")
		if err != nil {
			return err
		}
		return c.SetPreset(ctx, Preset(preset))
	case CommandSetTemperature:
		t, err := cmd.Float("temperature")
		if err != nil {
			return err
		}
		return c.SetTemperature(ctx, t)
	case CommandSetHoldMode:
		hold, err := cmd.String("hold_mode")
		if err != nil {
			return err
		}
		return c.SetHoldMode(ctx, hold)
	case CommandSetVicareMode:
		mode, err := cmd.String("vicare_mode")
		if err != nil {
			return err
		}
		return c.SetVicareMode(ctx, mode)
	case CommandSetHeatingCurve:
		shift, err := cmd.Float("shift")
		if err != nil {
			return err
		}
		slope, err := cmd.Float("slope")
		if err != nil {
			return err
		}
		if shift != math.Trunc(shift) || shift < CurveShiftMin || shift > CurveShiftMax {
			return fmt.Errorf("%w: shift %v", ErrInvalidCurve, shift)
		}
		return c.SetHeatingCurve(ctx, int(shift), slope)
	default:
		return fmt.Errorf("%w: %s", entity.ErrUnknownCommand, cmd.Name)
	}
}
