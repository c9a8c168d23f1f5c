package heating

import (
	"errors"
	"fmt"
)

// ErrValidation is the parent of every input validation fault raised by
// climate and water heater commands.
var ErrValidation = errors.New("heating: validation failed")

var (
	ErrInvalidHVACMode      = fmt.Errorf("%w: invalid hvac mode", ErrValidation)
	ErrInvalidPreset        = fmt.Errorf("%w: invalid preset", ErrValidation)
	ErrInvalidVicareMode    = fmt.Errorf("%w: invalid vicare mode", ErrValidation)
	ErrInvalidHoldMode      = fmt.Errorf("%w: invalid hold mode", ErrValidation)
	ErrInvalidCurve         = fmt.Errorf("%w: heating curve out of range", ErrValidation)
	ErrInvalidTemperature   = fmt.Errorf("%w: temperature out of range", ErrValidation)
	ErrInvalidOperationMode = fmt.Errorf("%w: invalid operation mode", ErrValidation)
	ErrModesUnknown         = fmt.Errorf("%w: vicare modes are not known yet", ErrValidation)
	ErrProgramUnknown       = fmt.Errorf("%w: active program is not known yet", ErrValidation)
)
