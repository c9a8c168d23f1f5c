// Package vicare bridges Viessmann ViCare devices to MQTT.
//
// At start the bridge lists the account's devices, probes every catalogued
// data point once and keeps the entities whose probe succeeded. Each scan
// interval it polls those entities and publishes changed snapshots as
// retained state messages:
//
//	vicare/state/{entity-id}     retained JSON StateMessage
//	vicare/command/{entity-id}   CommandMessage in
//	vicare/ack/{entity-id}       AckMessage out
//	vicare/service/{name}        ServiceMessage in
//	vicare/health                retained HealthMessage
//
// With discovery enabled, Home Assistant MQTT discovery configs are
// published under the discovery prefix so entities appear without manual
// configuration.
package vicare
