// Package config loads the ViCare bridge configuration.
//
// Values are layered: built-in defaults, then the YAML file, then VICARE_*
// environment variables. Load runs Validate and reports every problem at
// once rather than stopping at the first.
//
// Keep the OAuth client id, MQTT password and JWT secret in the
// environment. The refresh token lives in vicare.token_file, written 0600.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	interval := cfg.GetScanInterval()
package config
