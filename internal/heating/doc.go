// Package heating holds the composite entities: one climate per heating
// circuit, a water heater per device with hot water, and a thermostat per
// radiator actuator.
//
// Vendor operating modes and programs are translated to HVAC modes and
// presets here and nowhere else.
package heating
