package vicare

import (
	"context"
	"slices"
)

// Circuit is a handle on heating.circuits.N.
type Circuit struct {
	Device *Device
	ID     string
}

func (c *Circuit) feature(suffix string) string {
	return "heating.circuits." + c.ID + "." + suffix
}

// Name is the user-assigned circuit name.
func (c *Circuit) Name(ctx context.Context) (string, error) {
	return c.Device.str(ctx, c.feature("name"), "name")
}

// SupplyTemperature is the circuit flow temperature.
func (c *Circuit) SupplyTemperature(ctx context.Context) (float64, error) {
	return c.Device.value(ctx, c.feature("sensors.temperature.supply"))
}

// RoomTemperature is the room sensor reading attached to the circuit.
func (c *Circuit) RoomTemperature(ctx context.Context) (float64, error) {
	return c.Device.value(ctx, c.feature("sensors.temperature.room"))
}

// ActiveMode is the circuit's vendor operating mode.
func (c *Circuit) ActiveMode(ctx context.Context) (string, error) {
	return c.Device.str(ctx, c.feature("operating.modes.active"), "value")
}

// Modes lists the vendor modes the circuit accepts.
func (c *Circuit) Modes(ctx context.Context) ([]string, error) {
	fs, err := c.Device.Features(ctx)
	if err != nil {
		return nil, err
	}
	cons, err := fs.Constraints(c.feature("operating.modes.active"), "setMode", "mode")
	if err != nil {
		return nil, err
	}
	return slices.Clone(cons.Enum), nil
}

// SetMode switches the circuit's vendor operating mode.
func (c *Circuit) SetMode(ctx context.Context, mode string) error {
	fs, err := c.Device.Features(ctx)
	if err != nil {
		return err
	}
	cons, err := fs.Constraints(c.feature("operating.modes.active"), "setMode", "mode")
	if err != nil {
		return err
	}
	if err := cons.checkEnum(mode); err != nil {
		return err
	}
	return c.Device.execute(ctx, c.feature("operating.modes.active"), "setMode", map[string]any{"mode": mode})
}

// ActiveProgram is the circuit's running vendor program.
func (c *Circuit) ActiveProgram(ctx context.Context) (string, error) {
	return c.Device.str(ctx, c.feature("operating.programs.active"), "value")
}

// Programs lists the programs the circuit exposes.
func (c *Circuit) Programs(ctx context.Context) ([]string, error) {
	fs, err := c.Device.Features(ctx)
	if err != nil {
		return nil, err
	}
	f, err := fs.Lookup(c.feature("operating.programs"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(f.Components))
	for _, p := range f.Components {
		if p != "active" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Circuit) programFeature(program string) string {
	return c.feature("operating.programs." + program)
}

// ProgramTemperature is the setpoint of a program.
func (c *Circuit) ProgramTemperature(ctx context.Context, program string) (float64, error) {
	return c.Device.float(ctx, c.programFeature(program), "temperature")
}

// ActivateProgram starts a program such as comfort or eco.
func (c *Circuit) ActivateProgram(ctx context.Context, program string) error {
	return c.Device.execute(ctx, c.programFeature(program), "activate", nil)
}

// DeactivateProgram stops a program and returns to the schedule.
func (c *Circuit) DeactivateProgram(ctx context.Context, program string) error {
	return c.Device.execute(ctx, c.programFeature(program), "deactivate", nil)
}

func (c *Circuit) programConstraints(ctx context.Context, program string) (Constraints, error) {
	fs, err := c.Device.Features(ctx)
	if err != nil {
		return Constraints{}, err
	}
	return fs.Constraints(c.programFeature(program), "setTemperature", "targetTemperature")
}

// SetProgramTemperature writes a program's setpoint.
func (c *Circuit) SetProgramTemperature(ctx context.Context, program string, temperature float64) error {
	cons, err := c.programConstraints(ctx, program)
	if err != nil {
		return err
	}
	if err := cons.checkNumber(temperature); err != nil {
		return err
	}
	return c.Device.execute(ctx, c.programFeature(program), "setTemperature",
		map[string]any{"targetTemperature": temperature})
}

// ProgramLimits returns the published min, max and step of a program's
// setpoint. Missing bounds are nil.
func (c *Circuit) ProgramLimits(ctx context.Context, program string) (Constraints, error) {
	return c.programConstraints(ctx, program)
}

// CurrentDesiredTemperature is the setpoint of the active program.
func (c *Circuit) CurrentDesiredTemperature(ctx context.Context) (float64, error) {
	program, err := c.ActiveProgram(ctx)
	if err != nil {
		return 0, err
	}
	return c.ProgramTemperature(ctx, program)
}

// HeatingCurveShift is the parallel shift of the heating curve.
func (c *Circuit) HeatingCurveShift(ctx context.Context) (int, error) {
	fs, err := c.Device.Features(ctx)
	if err != nil {
		return 0, err
	}
	return fs.Int(c.feature("heating.curve"), "shift")
}

// HeatingCurveSlope is the slope of the heating curve.
func (c *Circuit) HeatingCurveSlope(ctx context.Context) (float64, error) {
	return c.Device.float(ctx, c.feature("heating.curve"), "slope")
}

// SetHeatingCurve writes shift and slope together.
func (c *Circuit) SetHeatingCurve(ctx context.Context, shift int, slope float64) error {
	return c.Device.execute(ctx, c.feature("heating.curve"), "setCurve",
		map[string]any{"shift": shift, "slope": slope})
}

// CirculationPumpActive reports the circuit pump status.
func (c *Circuit) CirculationPumpActive(ctx context.Context) (bool, error) {
	return c.Device.status(ctx, c.feature("circulation.pump"))
}

// FrostProtectionActive reports whether frost protection is engaged.
func (c *Circuit) FrostProtectionActive(ctx context.Context) (bool, error) {
	return c.Device.status(ctx, c.feature("frostprotection"))
}
