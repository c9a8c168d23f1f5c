// Package vicare is a client for the Viessmann ViCare IoT feature API.
//
// Devices are discovered through the installations endpoint and read through
// their feature list, which is cached per device for a configurable duration.
// Handles (Device, Circuit, Burner, Compressor) expose typed getters and
// setters on top of the feature list. Commands post to the URI advertised by
// the feature and drop the device's cache.
//
// Failures are classified with package sentinels so callers can decide how to
// react:
//
//	v, err := circuit.SupplyTemperature(ctx)
//	switch {
//	case errors.Is(err, vicare.ErrNotSupported):
//	    // the device lacks the feature
//	case errors.Is(err, vicare.ErrRateLimit):
//	    // back off until the reset time
//	}
//
// After a rate-limit answer the client refuses further calls without I/O
// until the advertised reset time.
package vicare
