package catalog

import (
	"github.com/nerrad567/vicare-bridge/internal/vicare"
)

// CircuitBinarySensors are read per heating circuit.
var CircuitBinarySensors = []BinaryDescriptor[*vicare.Circuit]{
	{
		Key:         "circulationpump_active",
		Name:        "Circulation pump active",
		DeviceClass: ClassRunning,
		Icon:        "mdi:pump",
		Get:         (*vicare.Circuit).CirculationPumpActive,
	},
	{
		Key:  "frost_protection_active",
		Name: "Frost protection active",
		Icon: "mdi:snowflake",
		Get:  (*vicare.Circuit).FrostProtectionActive,
	},
}

// BurnerBinarySensors are read per burner.
var BurnerBinarySensors = []BinaryDescriptor[*vicare.Burner]{
	{
		Key:         "burner_active",
		Name:        "Burner active",
		DeviceClass: ClassRunning,
		Icon:        "mdi:gas-burner",
		Get:         (*vicare.Burner).Active,
	},
}

// CompressorBinarySensors are read per compressor.
var CompressorBinarySensors = []BinaryDescriptor[*vicare.Compressor]{
	{
		Key:         "compressor_active",
		Name:        "Compressor active",
		DeviceClass: ClassRunning,
		Get:         (*vicare.Compressor).Active,
	},
}

// DeviceBinarySensors are read from the device itself.
var DeviceBinarySensors = []BinaryDescriptor[*vicare.Device]{
	{
		Key:         "solar_pump_active",
		Name:        "Solar pump active",
		DeviceClass: ClassRunning,
		Icon:        "mdi:pump",
		Get:         (*vicare.Device).SolarPumpActive,
	},
	{
		Key:         "charging_active",
		Name:        "DHW Charging active",
		DeviceClass: ClassRunning,
		Get:         (*vicare.Device).DHWChargingActive,
	},
	{
		Key:         "dhw_circulationpump_active",
		Name:        "DHW Circulation Pump Active",
		DeviceClass: ClassRunning,
		Icon:        "mdi:pump",
		Get:         (*vicare.Device).DHWCirculationPumpActive,
	},
	{
		Key:         "dhw_pump_active",
		Name:        "DHW Pump Active",
		DeviceClass: ClassRunning,
		Icon:        "mdi:pump",
		Get:         (*vicare.Device).DHWPrimaryPumpActive,
	},
}

// DeviceSwitches are toggles on the device.
var DeviceSwitches = []SwitchDescriptor[*vicare.Device]{
	{
		Key:      "dhw_onetimecharge",
		Name:     "One-time charge",
		Icon:     "mdi:shower-head",
		Category: CategoryConfig,
		Get:      (*vicare.Device).OneTimeCharge,
		Enable:   (*vicare.Device).ActivateOneTimeCharge,
		Disable:  (*vicare.Device).DeactivateOneTimeCharge,
	},
}

// DeviceButtons are actions on the device.
var DeviceButtons = []ButtonDescriptor[*vicare.Device]{
	{
		Key:      "activate_onetimecharge",
		Name:     "Activate one-time charge",
		Icon:     "mdi:shower-head",
		Category: CategoryConfig,
		Probe:    (*vicare.Device).OneTimeCharge,
		Press:    (*vicare.Device).ActivateOneTimeCharge,
	},
}
