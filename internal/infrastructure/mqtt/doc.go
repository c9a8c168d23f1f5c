// Package mqtt provides MQTT client connectivity for the ViCare bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload size checks
//   - Subscriptions restored after reconnect
//   - An online/offline status topic backed by Last Will and Testament
//   - Topic naming for entity state, commands, acks, services, health and
//     Home Assistant discovery
//
// Topic layout (prefix "vicare"):
//
//	vicare/state/<entity-id>       retained entity state
//	vicare/command/<entity-id>     entity commands
//	vicare/ack/<entity-id>         command acknowledgements
//	vicare/service/<name>          service calls
//	vicare/health                  retained bridge health
//	vicare/status                  retained online/offline (LWT)
package mqtt
