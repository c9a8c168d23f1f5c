package vicaretest

// Value is a feature with a numeric "value" property.
func Value(name string, v float64, unit string) *Feature {
	return &Feature{Name: name, Properties: map[string]any{
		"value": map[string]any{"type": "number", "value": v, "unit": unit},
	}}
}

// StringValue is a feature with a string "value" property.
func StringValue(name, v string) *Feature {
	return &Feature{Name: name, Properties: map[string]any{
		"value": map[string]any{"type": "string", "value": v},
	}}
}

// Active is a feature with a boolean "active" property.
func Active(name string, active bool) *Feature {
	return &Feature{Name: name, Properties: map[string]any{
		"active": map[string]any{"type": "boolean", "value": active},
	}}
}

// Status is a feature with an on/off "status" property.
func Status(name string, on bool) *Feature {
	v := "off"
	if on {
		v = "on"
	}
	return &Feature{Name: name, Properties: map[string]any{
		"status": map[string]any{"type": "string", "value": v},
	}}
}

// Enabled lists sub-component indices, as heating.circuits does.
func Enabled(name string, ids ...string) *Feature {
	return &Feature{Name: name, Properties: map[string]any{
		"enabled": map[string]any{"type": "array", "value": ids},
	}}
}

// History is a consumption or production feature with day, week, month
// and year arrays.
func History(name, unit string, day, week, month, year float64) *Feature {
	arr := func(v float64) map[string]any {
		return map[string]any{"type": "array", "value": []float64{v, 0}, "unit": unit}
	}
	return &Feature{Name: name, Properties: map[string]any{
		"day":   arr(day),
		"week":  arr(week),
		"month": arr(month),
		"year":  arr(year),
	}}
}

// Summary is a consumption summary feature with currentDay, currentMonth,
// currentYear and lastSevenDays totals.
func Summary(name, unit string, day, month, year, week float64) *Feature {
	num := func(v float64) map[string]any {
		return map[string]any{"type": "number", "value": v, "unit": unit}
	}
	return &Feature{Name: name, Properties: map[string]any{
		"currentDay":    num(day),
		"currentMonth":  num(month),
		"currentYear":   num(year),
		"lastSevenDays": num(week),
	}}
}

// Props is a feature with arbitrary numeric properties.
func Props(name string, props map[string]float64) *Feature {
	p := make(map[string]any, len(props))
	for k, v := range props {
		p[k] = map[string]any{"type": "number", "value": v}
	}
	return &Feature{Name: name, Properties: p}
}

// With adds a command without parameters.
func (f *Feature) With(command string) *Feature {
	return f.WithParams(command, nil)
}

// WithParams adds a command with a parameter map in API shape.
func (f *Feature) WithParams(command string, params map[string]any) *Feature {
	if f.Commands == nil {
		f.Commands = map[string]map[string]any{}
	}
	f.Commands[command] = params
	return f
}

// WithRange adds a command with one numeric parameter.
func (f *Feature) WithRange(command, param string, lo, hi, step float64) *Feature {
	return f.WithParams(command, map[string]any{
		param: map[string]any{
			"type":        "number",
			"required":    true,
			"constraints": map[string]any{"min": lo, "max": hi, "stepping": step},
		},
	})
}

// WithEnum adds a command with one enumerated string parameter.
func (f *Feature) WithEnum(command, param string, values ...string) *Feature {
	return f.WithParams(command, map[string]any{
		param: map[string]any{
			"type":        "string",
			"required":    true,
			"constraints": map[string]any{"enum": values},
		},
	})
}

// WithComponents sets the sub-feature names.
func (f *Feature) WithComponents(c ...string) *Feature {
	f.Components = c
	return f
}

// Disable marks the feature as not enabled.
func (f *Feature) Disable() *Feature {
	f.Disabled = true
	return f
}

// Boiler returns the feature set of a gas boiler with one circuit, one
// burner and hot water.
func Boiler() []*Feature {
	return []*Feature{
		Value("heating.sensors.temperature.outside", 8.5, "celsius"),
		Value("heating.boiler.sensors.temperature.main", 54, "celsius"),
		Value("heating.dhw.sensors.temperature.hotWaterStorage", 47.2, "celsius"),
		Value("heating.dhw.temperature.main", 50, "celsius").
			WithRange("setTargetTemperature", "temperature", 10, 60, 1),
		Active("heating.dhw.oneTimeCharge", false).With("activate").With("deactivate"),
		Status("heating.dhw.pumps.circulation", true),
		History("heating.gas.consumption.heating", "cubicMeter", 1.2, 7.9, 30.1, 412),
		Summary("heating.gas.consumption.summary.heating", "cubicMeter", 1.1, 29.4, 405.2, 7.6),
		Summary("heating.gas.consumption.summary.dhw", "cubicMeter", 0.3, 8.2, 96.5, 2.1),
		Enabled("heating.circuits", "0"),
		StringValue("heating.circuits.0.operating.modes.active", "dhwAndHeating").
			WithEnum("setMode", "mode", "standby", "dhw", "dhwAndHeating", "forcedReduced", "forcedNormal"),
		StringValue("heating.circuits.0.operating.programs.active", "normal"),
		(&Feature{Name: "heating.circuits.0.operating.programs"}).
			WithComponents("active", "comfort", "eco", "normal", "reduced"),
		Props("heating.circuits.0.operating.programs.normal", map[string]float64{"temperature": 20}).
			With("activate").With("deactivate").
			WithRange("setTemperature", "targetTemperature", 3, 37, 1),
		Props("heating.circuits.0.operating.programs.comfort", map[string]float64{"temperature": 22}).
			With("activate").With("deactivate").
			WithRange("setTemperature", "targetTemperature", 4, 37, 1),
		Props("heating.circuits.0.operating.programs.eco", map[string]float64{"temperature": 18}).
			With("activate").With("deactivate"),
		Value("heating.circuits.0.sensors.temperature.supply", 41.5, "celsius"),
		Props("heating.circuits.0.heating.curve", map[string]float64{"shift": 0, "slope": 1.4}).
			WithParams("setCurve", map[string]any{
				"shift": map[string]any{"type": "number", "constraints": map[string]any{"min": -13, "max": 40, "stepping": 1}},
				"slope": map[string]any{"type": "number", "constraints": map[string]any{"min": 0.2, "max": 3.5, "stepping": 0.1}},
			}),
		Status("heating.circuits.0.circulation.pump", true),
		Status("heating.circuits.0.frostprotection", false),
		Enabled("heating.burners", "0"),
		Active("heating.burners.0", true),
		Props("heating.burners.0.statistics", map[string]float64{"hours": 8123, "starts": 41020}),
		Value("heating.burners.0.modulation", 37, "percent"),
	}
}
