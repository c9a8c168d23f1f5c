package registry

import "errors"

var (
	// ErrEntityNotFound is returned when an entity ID does not exist.
	ErrEntityNotFound = errors.New("registry: entity not found")

	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrInvalidEntity is returned when a record misses required fields.
	ErrInvalidEntity = errors.New("registry: invalid entity")
)
