package catalog

import (
	"context"

	"github.com/nerrad567/vicare-bridge/internal/vicare"
)

type (
	deviceGetter  = func(*vicare.Device, context.Context) (float64, error)
	periodGetter  = func(*vicare.Device, context.Context, vicare.Period) (float64, error)
	summaryGetter = func(*vicare.Device, context.Context, vicare.SummaryPeriod) (float64, error)
	unitGetter    = func(*vicare.Device, context.Context) (string, error)
)

func over(get periodGetter, p vicare.Period) deviceGetter {
	return func(d *vicare.Device, ctx context.Context) (float64, error) {
		return get(d, ctx, p)
	}
}

func overSummary(get summaryGetter, p vicare.SummaryPeriod) deviceGetter {
	return func(d *vicare.Device, ctx context.Context) (float64, error) {
		return get(d, ctx, p)
	}
}

func temperature(key, name string, get deviceGetter) Descriptor[*vicare.Device] {
	return Descriptor[*vicare.Device]{
		Key:         key,
		Name:        name,
		Unit:        UnitCelsius,
		DeviceClass: ClassTemperature,
		StateClass:  StateMeasurement,
		Get:         get,
	}
}

// history expands a period getter into today/week/month/year sensors.
func history(keyPrefix, namePrefix string, get periodGetter,
	unitOf unitGetter, unit, class string,
) []Descriptor[*vicare.Device] {
	periods := []struct {
		key  string
		name string
		p    vicare.Period
	}{
		{"today", "today", vicare.Today},
		{"this_week", "this week", vicare.ThisWeek},
		{"this_month", "this month", vicare.ThisMonth},
		{"this_year", "this year", vicare.ThisYear},
	}
	out := make([]Descriptor[*vicare.Device], 0, len(periods))
	for _, pr := range periods {
		out = append(out, Descriptor[*vicare.Device]{
			Key:         keyPrefix + "_" + pr.key,
			Name:        namePrefix + " " + pr.name,
			Unit:        unit,
			DeviceClass: class,
			StateClass:  StateTotalIncreasing,
			Get:         over(get, pr.p),
			UnitOf:      unitOf,
		})
	}
	return out
}

var summaryPeriods = []struct {
	p    vicare.SummaryPeriod
	name string
}{
	{vicare.CurrentDay, "current day"},
	{vicare.CurrentMonth, "current month"},
	{vicare.CurrentYear, "current year"},
	{vicare.LastSevenDays, "last seven days"},
}

// summary builds one sensor per field of a consumption summary feature.
// keys names the entity of each period the family exposes; periods
// without a key are left out.
func summary(namePrefix string, get summaryGetter, unitOf unitGetter, unit, class string,
	keys map[vicare.SummaryPeriod]string,
) []Descriptor[*vicare.Device] {
	out := make([]Descriptor[*vicare.Device], 0, len(keys))
	for _, sp := range summaryPeriods {
		key, ok := keys[sp.p]
		if !ok {
			continue
		}
		out = append(out, Descriptor[*vicare.Device]{
			Key:         key,
			Name:        namePrefix + " " + sp.name,
			Unit:        unit,
			DeviceClass: class,
			StateClass:  StateTotalIncreasing,
			Get:         overSummary(get, sp.p),
			UnitOf:      unitOf,
		})
	}
	return out
}

// DeviceSensors are read from the device itself.
var DeviceSensors = concat(
	[]Descriptor[*vicare.Device]{
		temperature("outside_temperature", "Outside Temperature", (*vicare.Device).OutsideTemperature),
		temperature("return_temperature", "Return Temperature", (*vicare.Device).ReturnTemperature),
		temperature("boiler_temperature", "Boiler Temperature", (*vicare.Device).BoilerTemperature),
		temperature("boiler_supply_temperature", "Boiler Supply Temperature", (*vicare.Device).BoilerCommonSupplyTemperature),
		temperature("primary_circuit_supply_temperature", "Primary Circuit Supply Temperature", (*vicare.Device).PrimaryCircuitSupplyTemperature),
		temperature("primary_circuit_return_temperature", "Primary Circuit Return Temperature", (*vicare.Device).PrimaryCircuitReturnTemperature),
		temperature("secondary_circuit_supply_temperature", "Secondary Circuit Supply Temperature", (*vicare.Device).SecondaryCircuitSupplyTemperature),
		temperature("secondary_circuit_return_temperature", "Secondary Circuit Return Temperature", (*vicare.Device).SecondaryCircuitReturnTemperature),
		temperature("hotwater_storage_temperature", "Hot Water Storage Temperature", (*vicare.Device).DHWStorageTemperature),
		temperature("hotwater_out_temperature", "Hot Water Out Temperature", (*vicare.Device).DHWOutletTemperature),
		temperature("hotwater_max_temperature", "Hot Water Max Temperature", (*vicare.Device).DHWMaxTemperature),
		temperature("hotwater_min_temperature", "Hot Water Min Temperature", (*vicare.Device).DHWMinTemperature),
		{
			Key:         "hotwater_target_temperature",
			Name:        "Hot Water Target Temperature",
			Unit:        UnitCelsius,
			DeviceClass: ClassTemperature,
			Category:    CategoryConfig,
			Get:         (*vicare.Device).DHWTargetTemperature,
			Set:         (*vicare.Device).SetDHWTemperature,
		},
		temperature("solar_storage_temperature", "Solar Storage Temperature", (*vicare.Device).SolarStorageTemperature),
		temperature("solar_collector_temperature", "Solar Collector Temperature", (*vicare.Device).SolarCollectorTemperature),
		temperature("buffer_main_temperature", "Buffer Main Temperature", (*vicare.Device).BufferMainTemperature),
		temperature("buffer_top_temperature", "Buffer Top Temperature", (*vicare.Device).BufferTopTemperature),
		temperature("room_temperature", "Room Temperature", (*vicare.Device).RoomTemperature),
		{
			Key:         "room_humidity",
			Name:        "Room Humidity",
			Unit:        UnitPercent,
			DeviceClass: ClassHumidity,
			StateClass:  StateMeasurement,
			Get:         (*vicare.Device).RoomHumidity,
		},
		{
			Key:         "power_production_current",
			Name:        "Power production current",
			Unit:        UnitWatt,
			DeviceClass: ClassPower,
			StateClass:  StateMeasurement,
			Get:         (*vicare.Device).PowerProductionCurrent,
		},
	},
	history("gas_consumption_heating", "Heating gas consumption", (*vicare.Device).GasConsumptionHeating,
		(*vicare.Device).GasConsumptionHeatingUnit, UnitCubicMeter, ClassGas),
	history("hotwater_gas_consumption", "Hot water gas consumption", (*vicare.Device).GasConsumptionDHW,
		(*vicare.Device).GasConsumptionDHWUnit, UnitCubicMeter, ClassGas),
	history("power_consumption", "Energy consumption", (*vicare.Device).PowerConsumption,
		(*vicare.Device).PowerConsumptionUnit, UnitKWh, ClassEnergy),
	history("power_consumption_dhw", "Energy consumption of hot water heating", (*vicare.Device).PowerConsumptionDHW,
		nil, UnitKWh, ClassEnergy),
	history("power_production", "Energy production", (*vicare.Device).PowerProduction,
		nil, UnitKWh, ClassEnergy),
	history("solar_power_production", "Solar energy production", (*vicare.Device).SolarPowerProduction,
		(*vicare.Device).SolarPowerProductionUnit, UnitKWh, ClassEnergy),
	summary("Heating gas consumption", (*vicare.Device).GasSummaryHeating,
		(*vicare.Device).GasSummaryHeatingUnit, UnitCubicMeter, ClassGas,
		map[vicare.SummaryPeriod]string{
			vicare.CurrentDay:   "gas_summary_consumption_heating_currentday",
			vicare.CurrentMonth: "gas_summary_consumption_heating_currentmonth",
			vicare.CurrentYear:  "gas_summary_consumption_heating_currentyear",
		}),
	summary("Hot water gas consumption", (*vicare.Device).GasSummaryDHW,
		(*vicare.Device).GasSummaryDHWUnit, UnitCubicMeter, ClassGas,
		map[vicare.SummaryPeriod]string{
			vicare.CurrentDay:    "hotwater_gas_summary_consumption_heating_currentday",
			vicare.CurrentMonth:  "hotwater_gas_summary_consumption_heating_currentmonth",
			vicare.CurrentYear:   "hotwater_gas_summary_consumption_heating_currentyear",
			vicare.LastSevenDays: "hotwater_gas_summary_consumption_heating_lastsevendays",
		}),
	summary("Energy consumption of heating", (*vicare.Device).PowerSummaryHeating,
		(*vicare.Device).PowerSummaryHeatingUnit, UnitKWh, ClassEnergy,
		map[vicare.SummaryPeriod]string{
			vicare.CurrentDay:    "energy_summary_consumption_heating_currentday",
			vicare.CurrentMonth:  "energy_summary_consumption_heating_currentmonth",
			vicare.CurrentYear:   "energy_summary_consumption_heating_currentyear",
			vicare.LastSevenDays: "energy_summary_consumption_heating_lastsevendays",
		}),
	// The seven-day key breaks the family's naming; it is kept as published.
	summary("Energy consumption of hot water heating", (*vicare.Device).PowerSummaryDHW,
		(*vicare.Device).PowerSummaryDHWUnit, UnitKWh, ClassEnergy,
		map[vicare.SummaryPeriod]string{
			vicare.CurrentDay:    "energy_dhw_summary_consumption_heating_currentday",
			vicare.CurrentMonth:  "energy_dhw_summary_consumption_heating_currentmonth",
			vicare.CurrentYear:   "energy_dhw_summary_consumption_heating_currentyear",
			vicare.LastSevenDays: "energy_summary_dhw_consumption_heating_lastsevendays",
		}),
)

// CircuitSensors are read per heating circuit.
var CircuitSensors = []Descriptor[*vicare.Circuit]{
	{
		Key:         "supply_temperature",
		Name:        "Supply Temperature",
		Unit:        UnitCelsius,
		DeviceClass: ClassTemperature,
		StateClass:  StateMeasurement,
		Get:         (*vicare.Circuit).SupplyTemperature,
	},
	{
		Key:         "circuit_room_temperature",
		Name:        "Room Temperature",
		Unit:        UnitCelsius,
		DeviceClass: ClassTemperature,
		StateClass:  StateMeasurement,
		Get:         (*vicare.Circuit).RoomTemperature,
	},
}

// BurnerSensors are read per burner.
var BurnerSensors = []Descriptor[*vicare.Burner]{
	{
		Key:        "burner_starts",
		Name:       "Burner Starts",
		Icon:       "mdi:counter",
		StateClass: StateTotalIncreasing,
		Get:        (*vicare.Burner).Starts,
	},
	{
		Key:         "burner_hours",
		Name:        "Burner Hours",
		Icon:        "mdi:counter",
		Unit:        UnitHours,
		DeviceClass: ClassDuration,
		StateClass:  StateTotalIncreasing,
		Get:         (*vicare.Burner).Hours,
	},
	{
		Key:        "burner_modulation",
		Name:       "Burner Modulation",
		Icon:       "mdi:percent",
		Unit:       UnitPercent,
		StateClass: StateMeasurement,
		Get:        (*vicare.Burner).Modulation,
	},
}

func loadClass(class int) func(*vicare.Compressor, context.Context) (float64, error) {
	return func(c *vicare.Compressor, ctx context.Context) (float64, error) {
		return c.HoursLoadClass(ctx, class)
	}
}

// CompressorSensors are read per heat pump compressor.
var CompressorSensors = func() []Descriptor[*vicare.Compressor] {
	out := []Descriptor[*vicare.Compressor]{
		{
			Key:        "compressor_starts",
			Name:       "Compressor Starts",
			Icon:       "mdi:counter",
			StateClass: StateTotalIncreasing,
			Get:        (*vicare.Compressor).Starts,
		},
		{
			Key:         "compressor_hours",
			Name:        "Compressor Hours",
			Icon:        "mdi:counter",
			Unit:        UnitHours,
			DeviceClass: ClassDuration,
			StateClass:  StateTotalIncreasing,
			Get:         (*vicare.Compressor).Hours,
		},
	}
	for class := 1; class <= 5; class++ {
		n := string(rune('0' + class))
		out = append(out, Descriptor[*vicare.Compressor]{
			Key:         "compressor_hours_loadclass" + n,
			Name:        "Compressor Hours Load Class " + n,
			Icon:        "mdi:counter",
			Unit:        UnitHours,
			DeviceClass: ClassDuration,
			StateClass:  StateTotalIncreasing,
			Get:         loadClass(class),
		})
	}
	return out
}()

func concat[T any](parts ...[]T) []T {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]T, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
