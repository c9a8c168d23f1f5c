// Package logging wraps log/slog for the ViCare bridge.
//
// Every record carries service and version attributes. Output is JSON by
// default and text when logging.format is "text".
//
//	logging:
//	  level: info            # debug, info, warn, error
//	  format: json           # json, text
//	  output: stdout         # stdout, stderr, discard
//	  dedup_timeout: 28800   # seconds
//
// Poll faults repeat every scan interval while a device is unreachable or
// the API quota is exhausted. They go through a Deduplicator, which emits
// each distinct message once per timeout:
//
//	logger := logging.New(cfg.Logging, version)
//	faults := logging.NewDeduplicator(logger, cfg.GetDedupTimeout())
//	faults.Error("vicare rate limit exceeded", "entity_id", id)
//
// Never log OAuth tokens or the MQTT password.
package logging
