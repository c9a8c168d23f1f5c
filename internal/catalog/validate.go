package catalog

import (
	"errors"
	"fmt"
)

// ErrInvalidCatalog is returned by Validate.
var ErrInvalidCatalog = errors.New("catalog: invalid descriptor")

// Keys lists descriptor keys per scope, sensors first.
func Keys() map[Scope][]string {
	out := map[Scope][]string{}
	add := func(s Scope, keys ...string) { out[s] = append(out[s], keys...) }

	for _, d := range DeviceSensors {
		add(ScopeDevice, d.Key)
	}
	for _, d := range DeviceBinarySensors {
		add(ScopeDevice, d.Key)
	}
	for _, d := range DeviceSwitches {
		add(ScopeDevice, d.Key)
	}
	for _, d := range DeviceButtons {
		add(ScopeDevice, d.Key)
	}
	for _, d := range CircuitSensors {
		add(ScopeCircuit, d.Key)
	}
	for _, d := range CircuitBinarySensors {
		add(ScopeCircuit, d.Key)
	}
	for _, d := range BurnerSensors {
		add(ScopeBurner, d.Key)
	}
	for _, d := range BurnerBinarySensors {
		add(ScopeBurner, d.Key)
	}
	for _, d := range CompressorSensors {
		add(ScopeCompressor, d.Key)
	}
	for _, d := range CompressorBinarySensors {
		add(ScopeCompressor, d.Key)
	}
	return out
}

// Validate checks that every key is non-empty and unique within its scope
// and that every descriptor has its mandatory accessors.
func Validate() error {
	var errs []error
	for scope, keys := range Keys() {
		seen := make(map[string]bool, len(keys))
		for _, k := range keys {
			if k == "" {
				errs = append(errs, fmt.Errorf("%w: empty key in scope %s", ErrInvalidCatalog, scope))
				continue
			}
			if seen[k] {
				errs = append(errs, fmt.Errorf("%w: duplicate key %q in scope %s", ErrInvalidCatalog, k, scope))
			}
			seen[k] = true
		}
	}

	errs = append(errs, checkSensors(DeviceSensors)...)
	errs = append(errs, checkSensors(CircuitSensors)...)
	errs = append(errs, checkSensors(BurnerSensors)...)
	errs = append(errs, checkSensors(CompressorSensors)...)
	errs = append(errs, checkBinary(DeviceBinarySensors)...)
	errs = append(errs, checkBinary(CircuitBinarySensors)...)
	errs = append(errs, checkBinary(BurnerBinarySensors)...)
	errs = append(errs, checkBinary(CompressorBinarySensors)...)
	for _, d := range DeviceSwitches {
		if d.Get == nil || d.Enable == nil || d.Disable == nil {
			errs = append(errs, fmt.Errorf("%w: switch %q lacks an accessor", ErrInvalidCatalog, d.Key))
		}
	}
	for _, d := range DeviceButtons {
		if d.Probe == nil || d.Press == nil {
			errs = append(errs, fmt.Errorf("%w: button %q lacks an accessor", ErrInvalidCatalog, d.Key))
		}
	}
	return errors.Join(errs...)
}

func checkSensors[H any](descs []Descriptor[H]) []error {
	var errs []error
	for _, d := range descs {
		if d.Get == nil {
			errs = append(errs, fmt.Errorf("%w: sensor %q has no getter", ErrInvalidCatalog, d.Key))
		}
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("%w: sensor %q has no name", ErrInvalidCatalog, d.Key))
		}
	}
	return errs
}

func checkBinary[H any](descs []BinaryDescriptor[H]) []error {
	var errs []error
	for _, d := range descs {
		if d.Get == nil {
			errs = append(errs, fmt.Errorf("%w: binary sensor %q has no getter", ErrInvalidCatalog, d.Key))
		}
	}
	return errs
}
