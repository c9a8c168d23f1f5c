// Package influxdb writes ViCare entity telemetry to InfluxDB v2.
//
// Every successful poll of a numeric entity (temperatures, counters,
// consumption) becomes one point in the "vicare_entity" measurement,
// tagged with entity, device, platform, key and unit. Each poll cycle also
// writes a "vicare_poll" summary with outcome counts per device.
//
// Writes are non-blocking and batched; failures arrive on the SetOnError
// callback.
package influxdb
