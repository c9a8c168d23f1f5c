package heating

import "slices"

// HVACMode is the abstract climate mode.
type HVACMode string

const (
	HVACOff  HVACMode = "off"
	HVACHeat HVACMode = "heat"
	HVACAuto HVACMode = "auto"
)

// Preset is the abstract climate preset.
type Preset string

const (
	PresetComfort Preset = "comfort"
	PresetEco     Preset = "eco"
	PresetNone    Preset = "none"
)

// Hold modes temporarily force the circuit.
const (
	HoldAway = "away"
	HoldHome = "home"
	HoldOff  = "off"
)

// Water heater operation modes.
const (
	OperationOn  = "on"
	OperationOff = "off"
)

// HVAC actions.
const (
	ActionHeating = "heating"
	ActionIdle    = "idle"
)

// Vendor operating modes and programs.
const (
	modeDHW                  = "dhw"
	modeHeating              = "heating"
	modeDHWAndHeating        = "dhwAndHeating"
	modeDHWAndHeatingCooling = "dhwAndHeatingCooling"
	modeForcedReduced        = "forcedReduced"
	modeForcedNormal         = "forcedNormal"
	modeStandby              = "standby"

	programNormal  = "normal"
	programComfort = "comfort"
	programEco     = "eco"

	// holdFallbackMode is restored when hold ends without a remembered mode.
	holdFallbackMode = modeDHWAndHeating
)

// Limits.
const (
	HeatingMinTemp = 3.0
	HeatingMaxTemp = 37.0
	HeatingStep    = 0.5

	WaterMinTemp = 10.0
	WaterMaxTemp = 60.0
	WaterStep    = 1.0

	CurveShiftMin = -13
	CurveShiftMax = 40
	CurveSlopeMin = 0.3
	CurveSlopeMax = 3.5
)

type modeEntry struct {
	vendor string
	hvac   HVACMode
}

// vendorHVAC is ordered by write preference: when several supported vendor
// modes map to the same HVAC mode, the first one wins. Forced modes come
// last so that switching the climate off does not enter a hold.
var vendorHVAC = []modeEntry{
	{modeStandby, HVACOff},
	{modeDHW, HVACOff},
	{modeForcedReduced, HVACOff},
	{modeDHWAndHeating, HVACAuto},
	{modeDHWAndHeatingCooling, HVACAuto},
	{modeHeating, HVACAuto},
	{modeForcedNormal, HVACHeat},
}

var programPresets = []struct {
	program string
	preset  Preset
}{
	{programComfort, PresetComfort},
	{programEco, PresetEco},
	{programNormal, PresetNone},
}

var dhwOperations = map[string]string{
	modeDHW:                  OperationOn,
	modeDHWAndHeating:        OperationOn,
	modeDHWAndHeatingCooling: OperationOn,
	modeForcedNormal:         OperationOn,
	modeHeating:              OperationOff,
	modeForcedReduced:        OperationOff,
	modeStandby:              OperationOff,
}

var operationModes = map[string]string{
	OperationOn:  modeDHW,
	OperationOff: modeStandby,
}

var holdModes = map[string]string{
	HoldAway: modeForcedReduced,
	HoldHome: modeForcedNormal,
}

// HVACModeFor maps a vendor mode to an HVAC mode.
func HVACModeFor(vendor string) (HVACMode, bool) {
	for _, e := range vendorHVAC {
		if e.vendor == vendor {
			return e.hvac, true
		}
	}
	return "", false
}

// VendorModeFor picks the vendor mode for an HVAC mode among the modes the
// device reports.
func VendorModeFor(mode HVACMode, supported []string) (string, bool) {
	for _, e := range vendorHVAC {
		if e.hvac == mode && slices.Contains(supported, e.vendor) {
			return e.vendor, true
		}
	}
	return "", false
}

// HVACModesFor lists the HVAC modes reachable with the supported vendor
// modes, without duplicates.
func HVACModesFor(supported []string) []HVACMode {
	var out []HVACMode
	for _, e := range vendorHVAC {
		if slices.Contains(supported, e.vendor) && !slices.Contains(out, e.hvac) {
			out = append(out, e.hvac)
		}
	}
	return out
}

// PresetFor maps a vendor program to a preset.
func PresetFor(program string) (Preset, bool) {
	for _, e := range programPresets {
		if e.program == program {
			return e.preset, true
		}
	}
	return "", false
}

// ProgramFor maps a preset to a vendor program.
func ProgramFor(preset Preset) (string, bool) {
	for _, e := range programPresets {
		if e.preset == preset {
			return e.program, true
		}
	}
	return "", false
}

// Presets lists all presets.
func Presets() []Preset {
	out := make([]Preset, 0, len(programPresets))
	for _, e := range programPresets {
		out = append(out, e.preset)
	}
	return out
}

// DHWOperationFor maps a vendor mode to a water heater operation.
func DHWOperationFor(vendor string) (string, bool) {
	op, ok := dhwOperations[vendor]
	return op, ok
}

// VendorModeForOperation maps a water heater operation to a vendor mode.
func VendorModeForOperation(op string) (string, bool) {
	m, ok := operationModes[op]
	return m, ok
}

// Operations lists the water heater operations.
func Operations() []string {
	return []string{OperationOn, OperationOff}
}

// VendorModeForHold maps away/home to the forced vendor mode.
func VendorModeForHold(hold string) (string, bool) {
	m, ok := holdModes[hold]
	return m, ok
}

// HoldFor reports the hold a vendor mode represents, or HoldOff.
func HoldFor(vendor string) string {
	for hold, m := range holdModes {
		if m == vendor {
			return hold
		}
	}
	return HoldOff
}

func isHoldMode(vendor string) bool {
	return HoldFor(vendor) != HoldOff
}
