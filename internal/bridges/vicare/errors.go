package vicare

import "errors"

// Domain errors for the ViCare bridge.
var (
	// ErrEntityNotFound is returned when a command targets an unknown entity.
	ErrEntityNotFound = errors.New("bridge: entity not found")

	// ErrReadOnly is returned when a command targets an entity that accepts none.
	ErrReadOnly = errors.New("bridge: entity accepts no commands")

	// ErrUnknownService is returned for a service name the bridge does not offer.
	ErrUnknownService = errors.New("bridge: unknown service")
)
