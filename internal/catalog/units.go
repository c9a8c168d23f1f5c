package catalog

import "github.com/nerrad567/vicare-bridge/internal/vicare"

type unitMapping struct {
	unit  string
	class string
}

var vendorUnits = map[string]unitMapping{
	vicare.UnitCelsius:      {UnitCelsius, ClassTemperature},
	vicare.UnitKilowattHour: {UnitKWh, ClassEnergy},
	vicare.UnitCubicMeter:   {UnitCubicMeter, ClassGas},
	vicare.UnitPercent:      {UnitPercent, ""},
	vicare.UnitHour:         {UnitHours, ClassDuration},
	vicare.UnitWatt:         {UnitWatt, ClassPower},
}

// MapUnit translates a vendor unit name into a display unit and device
// class. Unknown units report ok=false.
func MapUnit(vendor string) (unit, deviceClass string, ok bool) {
	m, ok := vendorUnits[vendor]
	if !ok {
		return "", "", false
	}
	return m.unit, m.class, true
}
