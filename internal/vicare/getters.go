package vicare

import (
	"context"
	"fmt"
)

// Period selects an element of a consumption or production history.
type Period int

const (
	Today Period = iota
	ThisWeek
	ThisMonth
	ThisYear
)

func (p Period) property() string {
	switch p {
	case ThisWeek:
		return "week"
	case ThisMonth:
		return "month"
	case ThisYear:
		return "year"
	default:
		return "day"
	}
}

// SummaryPeriod names a field of a consumption summary feature.
type SummaryPeriod string

const (
	CurrentDay    SummaryPeriod = "currentDay"
	CurrentMonth  SummaryPeriod = "currentMonth"
	CurrentYear   SummaryPeriod = "currentYear"
	LastSevenDays SummaryPeriod = "lastSevenDays"
)

// Feature names of device-level data points.
const (
	featureOutsideTemp          = "heating.sensors.temperature.outside"
	featureReturnTemp           = "heating.sensors.temperature.return"
	featureBoilerTemp           = "heating.boiler.sensors.temperature.main"
	featureBoilerSupplyTemp     = "heating.boiler.sensors.temperature.commonSupply"
	featurePrimarySupplyTemp    = "heating.primaryCircuit.sensors.temperature.supply"
	featurePrimaryReturnTemp    = "heating.primaryCircuit.sensors.temperature.return"
	featureSecondarySupplyTemp  = "heating.secondaryCircuit.sensors.temperature.supply"
	featureSecondaryReturnTemp  = "heating.secondaryCircuit.sensors.temperature.return"
	featureDHWStorageTemp       = "heating.dhw.sensors.temperature.hotWaterStorage"
	featureDHWOutletTemp        = "heating.dhw.sensors.temperature.outlet"
	featureDHWTargetTemp        = "heating.dhw.temperature.main"
	featureDHWMode              = "heating.dhw.operating.modes.active"
	featureDHWOneTimeCharge     = "heating.dhw.oneTimeCharge"
	featureDHWCharging          = "heating.dhw.charging"
	featureDHWCirculationPump   = "heating.dhw.pumps.circulation"
	featureDHWPrimaryPump       = "heating.dhw.pumps.primary"
	featureSolarCollectorTemp   = "heating.solar.sensors.temperature.collector"
	featureSolarStorageTemp     = "heating.solar.sensors.temperature.dhw"
	featureSolarPump            = "heating.solar.pumps.circuit"
	featureSolarProduction      = "heating.solar.power.production"
	featureBufferMainTemp       = "heating.buffer.sensors.temperature.main"
	featureBufferTopTemp        = "heating.buffer.sensors.temperature.top"
	featureGasHeating           = "heating.gas.consumption.heating"
	featureGasDHW               = "heating.gas.consumption.dhw"
	featurePowerConsumption     = "heating.power.consumption.total"
	featurePowerConsumptionDHW  = "heating.power.consumption.dhw"
	featureGasSummaryHeating    = "heating.gas.consumption.summary.heating"
	featureGasSummaryDHW        = "heating.gas.consumption.summary.dhw"
	featurePowerSummaryHeating  = "heating.power.consumption.summary.heating"
	featurePowerSummaryDHW      = "heating.power.consumption.summary.dhw"
	featurePowerProduction      = "heating.power.production"
	featurePowerProductionNow   = "heating.power.production.current"
	featureRoomTemperature      = "device.sensors.temperature"
	featureRoomHumidity         = "device.sensors.humidity"
	featureActuatorTargetTemp   = "trv.temperature"
	commandSetTargetTemperature = "setTargetTemperature"
)

// OutsideTemperature is the outdoor sensor reading in °C.
func (d *Device) OutsideTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureOutsideTemp)
}

// ReturnTemperature is the common return temperature.
func (d *Device) ReturnTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureReturnTemp)
}

// BoilerTemperature is the boiler water temperature.
func (d *Device) BoilerTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureBoilerTemp)
}

// BoilerCommonSupplyTemperature is the boiler common supply temperature.
func (d *Device) BoilerCommonSupplyTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureBoilerSupplyTemp)
}

func (d *Device) PrimaryCircuitSupplyTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featurePrimarySupplyTemp)
}

func (d *Device) PrimaryCircuitReturnTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featurePrimaryReturnTemp)
}

func (d *Device) SecondaryCircuitSupplyTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureSecondarySupplyTemp)
}

func (d *Device) SecondaryCircuitReturnTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureSecondaryReturnTemp)
}

// DHWStorageTemperature is the hot water cylinder temperature.
func (d *Device) DHWStorageTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureDHWStorageTemp)
}

// DHWOutletTemperature is the hot water outlet temperature.
func (d *Device) DHWOutletTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureDHWOutletTemp)
}

// DHWTargetTemperature is the configured hot water temperature.
func (d *Device) DHWTargetTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureDHWTargetTemp)
}

func (d *Device) dhwTemperatureConstraints(ctx context.Context) (Constraints, error) {
	fs, err := d.Features(ctx)
	if err != nil {
		return Constraints{}, err
	}
	return fs.Constraints(featureDHWTargetTemp, commandSetTargetTemperature, "temperature")
}

// DHWMaxTemperature is the upper bound accepted for the hot water target.
func (d *Device) DHWMaxTemperature(ctx context.Context) (float64, error) {
	c, err := d.dhwTemperatureConstraints(ctx)
	if err != nil {
		return 0, err
	}
	if c.Max == nil {
		return 0, notSupported(featureDHWTargetTemp, "max")
	}
	return *c.Max, nil
}

// DHWMinTemperature is the lower bound accepted for the hot water target.
func (d *Device) DHWMinTemperature(ctx context.Context) (float64, error) {
	c, err := d.dhwTemperatureConstraints(ctx)
	if err != nil {
		return 0, err
	}
	if c.Min == nil {
		return 0, notSupported(featureDHWTargetTemp, "min")
	}
	return *c.Min, nil
}

// SetDHWTemperature writes the hot water target.
func (d *Device) SetDHWTemperature(ctx context.Context, temperature float64) error {
	c, err := d.dhwTemperatureConstraints(ctx)
	if err != nil {
		return err
	}
	if err := c.checkNumber(temperature); err != nil {
		return err
	}
	return d.execute(ctx, featureDHWTargetTemp, commandSetTargetTemperature,
		map[string]any{"temperature": temperature})
}

// DHWActiveMode is the hot water operating mode, where the device has a
// separate one.
func (d *Device) DHWActiveMode(ctx context.Context) (string, error) {
	return d.str(ctx, featureDHWMode, "value")
}

// SetDHWMode changes the hot water operating mode.
func (d *Device) SetDHWMode(ctx context.Context, mode string) error {
	fs, err := d.Features(ctx)
	if err != nil {
		return err
	}
	c, err := fs.Constraints(featureDHWMode, "setMode", "mode")
	if err != nil {
		return err
	}
	if err := c.checkEnum(mode); err != nil {
		return err
	}
	return d.execute(ctx, featureDHWMode, "setMode", map[string]any{"mode": mode})
}

// OneTimeCharge reports whether a one-time hot water charge is running.
func (d *Device) OneTimeCharge(ctx context.Context) (bool, error) {
	return d.bool(ctx, featureDHWOneTimeCharge, "active")
}

// ActivateOneTimeCharge starts a one-time hot water charge.
func (d *Device) ActivateOneTimeCharge(ctx context.Context) error {
	return d.execute(ctx, featureDHWOneTimeCharge, "activate", nil)
}

// DeactivateOneTimeCharge stops a running one-time charge.
func (d *Device) DeactivateOneTimeCharge(ctx context.Context) error {
	return d.execute(ctx, featureDHWOneTimeCharge, "deactivate", nil)
}

func (d *Device) DHWChargingActive(ctx context.Context) (bool, error) {
	return d.bool(ctx, featureDHWCharging, "active")
}

func (d *Device) DHWCirculationPumpActive(ctx context.Context) (bool, error) {
	return d.status(ctx, featureDHWCirculationPump)
}

func (d *Device) DHWPrimaryPumpActive(ctx context.Context) (bool, error) {
	return d.status(ctx, featureDHWPrimaryPump)
}

func (d *Device) SolarCollectorTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureSolarCollectorTemp)
}

func (d *Device) SolarStorageTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureSolarStorageTemp)
}

func (d *Device) SolarPumpActive(ctx context.Context) (bool, error) {
	return d.status(ctx, featureSolarPump)
}

// SolarPowerProduction is the solar yield for a period.
func (d *Device) SolarPowerProduction(ctx context.Context, p Period) (float64, error) {
	return d.series(ctx, featureSolarProduction, p.property(), 0)
}

// SolarPowerProductionUnit is the vendor unit of the solar yield.
func (d *Device) SolarPowerProductionUnit(ctx context.Context) (string, error) {
	return d.unit(ctx, featureSolarProduction, "day")
}

func (d *Device) BufferMainTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureBufferMainTemp)
}

func (d *Device) BufferTopTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureBufferTopTemp)
}

// GasConsumptionHeating is the gas used for space heating in a period.
func (d *Device) GasConsumptionHeating(ctx context.Context, p Period) (float64, error) {
	return d.series(ctx, featureGasHeating, p.property(), 0)
}

func (d *Device) GasConsumptionHeatingUnit(ctx context.Context) (string, error) {
	return d.unit(ctx, featureGasHeating, "day")
}

// GasConsumptionDHW is the gas used for hot water in a period.
func (d *Device) GasConsumptionDHW(ctx context.Context, p Period) (float64, error) {
	return d.series(ctx, featureGasDHW, p.property(), 0)
}

func (d *Device) GasConsumptionDHWUnit(ctx context.Context) (string, error) {
	return d.unit(ctx, featureGasDHW, "day")
}

// PowerConsumption is the electrical energy used in a period.
func (d *Device) PowerConsumption(ctx context.Context, p Period) (float64, error) {
	return d.series(ctx, featurePowerConsumption, p.property(), 0)
}

func (d *Device) PowerConsumptionUnit(ctx context.Context) (string, error) {
	return d.unit(ctx, featurePowerConsumption, "day")
}

// PowerConsumptionDHW is the electrical energy used for hot water today.
func (d *Device) PowerConsumptionDHW(ctx context.Context, p Period) (float64, error) {
	return d.series(ctx, featurePowerConsumptionDHW, p.property(), 0)
}

// GasSummaryHeating is the gas used for space heating over a summary period.
func (d *Device) GasSummaryHeating(ctx context.Context, p SummaryPeriod) (float64, error) {
	return d.float(ctx, featureGasSummaryHeating, string(p))
}

func (d *Device) GasSummaryHeatingUnit(ctx context.Context) (string, error) {
	return d.unit(ctx, featureGasSummaryHeating, string(CurrentDay))
}

// GasSummaryDHW is the gas used for hot water over a summary period.
func (d *Device) GasSummaryDHW(ctx context.Context, p SummaryPeriod) (float64, error) {
	return d.float(ctx, featureGasSummaryDHW, string(p))
}

func (d *Device) GasSummaryDHWUnit(ctx context.Context) (string, error) {
	return d.unit(ctx, featureGasSummaryDHW, string(CurrentDay))
}

// PowerSummaryHeating is the electrical energy used for space heating over
// a summary period.
func (d *Device) PowerSummaryHeating(ctx context.Context, p SummaryPeriod) (float64, error) {
	return d.float(ctx, featurePowerSummaryHeating, string(p))
}

func (d *Device) PowerSummaryHeatingUnit(ctx context.Context) (string, error) {
	return d.unit(ctx, featurePowerSummaryHeating, string(CurrentDay))
}

// PowerSummaryDHW is the electrical energy used for hot water over a
// summary period.
func (d *Device) PowerSummaryDHW(ctx context.Context, p SummaryPeriod) (float64, error) {
	return d.float(ctx, featurePowerSummaryDHW, string(p))
}

func (d *Device) PowerSummaryDHWUnit(ctx context.Context) (string, error) {
	return d.unit(ctx, featurePowerSummaryDHW, string(CurrentDay))
}

// PowerProductionCurrent is the instantaneous electrical output in W.
func (d *Device) PowerProductionCurrent(ctx context.Context) (float64, error) {
	return d.value(ctx, featurePowerProductionNow)
}

// PowerProduction is the electrical energy produced in a period.
func (d *Device) PowerProduction(ctx context.Context, p Period) (float64, error) {
	return d.series(ctx, featurePowerProduction, p.property(), 0)
}

// RoomTemperature is the reading of a room sensor or radiator actuator.
func (d *Device) RoomTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureRoomTemperature)
}

// RoomHumidity is the relative humidity of a room sensor in percent.
func (d *Device) RoomHumidity(ctx context.Context) (float64, error) {
	return d.value(ctx, featureRoomHumidity)
}

// ActuatorTargetTemperature is a radiator actuator's setpoint.
func (d *Device) ActuatorTargetTemperature(ctx context.Context) (float64, error) {
	return d.value(ctx, featureActuatorTargetTemp)
}

// SetActuatorTargetTemperature writes a radiator actuator's setpoint.
func (d *Device) SetActuatorTargetTemperature(ctx context.Context, temperature float64) error {
	fs, err := d.Features(ctx)
	if err != nil {
		return err
	}
	c, err := fs.Constraints(featureActuatorTargetTemp, commandSetTargetTemperature, "temperature")
	if err == nil {
		if err := c.checkNumber(temperature); err != nil {
			return err
		}
	}
	return d.execute(ctx, featureActuatorTargetTemp, commandSetTargetTemperature,
		map[string]any{"temperature": temperature})
}

// String identifies the device in logs.
func (d *Device) String() string {
	return fmt.Sprintf("%s/%s/%s (%s)", d.InstallationID, d.GatewaySerial, d.ID, d.Model)
}
