package vicare

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/heating"
	vc "github.com/nerrad567/vicare-bridge/internal/vicare"
)

// CommandMessage asks the bridge to run a command on one entity.
// Topic: vicare/command/{entity-id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgment. The bridge assigns
	// one when it is missing.
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`

	// Command is the command name, e.g. "set_temperature", "turn_on".
	Command string `json:"command"`

	// Parameters contains command-specific values, e.g.
	//   {"temperature": 21.5} for set_temperature
	//   {"hvac_mode": "auto"} for set_hvac_mode
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("mqtt", "api").
	Source string `json:"source,omitempty"`
}

// ServiceMessage is a service call addressed to a climate entity.
// Topic: vicare/service/{set_vicare_mode|set_heating_curve}
type ServiceMessage struct {
	ID         string         `json:"id,omitempty"`
	EntityID   string         `json:"entity_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Service names.
const (
	ServiceSetVicareMode   = "set_vicare_mode"
	ServiceSetHeatingCurve = "set_heating_curve"
)

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted means the vendor accepted the command.
	AckAccepted AckStatus = "accepted"

	// AckFailed means the command was rejected or could not be sent.
	AckFailed AckStatus = "failed"

	// AckTimeout means the vendor did not answer within the command timeout.
	AckTimeout AckStatus = "timeout"
)

// AckMessage acknowledges a command.
// Topic: vicare/ack/{entity-id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	EntityID  string    `json:"entity_id"`
	Command   string    `json:"command"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeCommandRejected   = "COMMAND_REJECTED"
	ErrCodeNotSupported      = "NOT_SUPPORTED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// ErrorCode maps a command error to an ack error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, heating.ErrValidation),
		errors.Is(err, entity.ErrInvalidParameters),
		errors.Is(err, vc.ErrInvalidParameter):
		return ErrCodeInvalidParameters
	case errors.Is(err, entity.ErrUnknownCommand),
		errors.Is(err, ErrReadOnly),
		errors.Is(err, ErrUnknownService):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrEntityNotFound):
		return ErrCodeNotFound
	case errors.Is(err, vc.ErrRateLimit):
		return ErrCodeRateLimited
	case errors.Is(err, vc.ErrCommandRejected):
		return ErrCodeCommandRejected
	case errors.Is(err, vc.ErrNotSupported):
		return ErrCodeNotSupported
	case errors.Is(err, vc.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, vc.ErrConnection), errors.Is(err, vc.ErrServer), errors.Is(err, vc.ErrUnauthorized):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}

// NewAckMessage creates a successful acknowledgment.
func NewAckMessage(cmd CommandMessage, entityID string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		EntityID:  entityID,
		Command:   cmd.Command,
		Status:    AckAccepted,
	}
}

// NewAckError creates an acknowledgment carrying the error code for err.
func NewAckError(cmd CommandMessage, entityID string, err error) AckMessage {
	code := ErrorCode(err)
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, entityID)
	ack.Status = status
	ack.Error = &AckError{Code: code, Message: err.Error()}
	return ack
}

// StateMessage carries an entity snapshot.
// Topic: vicare/state/{entity-id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	EntityID  string        `json:"entity_id"`
	DeviceID  string        `json:"device_id"`
	Platform  string        `json:"platform"`
	Timestamp time.Time     `json:"timestamp"`
	Available bool          `json:"available"`
	State     *entity.State `json:"state,omitempty"`
}

// NewStateMessage creates a state message for an entity.
func NewStateMessage(e entity.Entity) StateMessage {
	info := e.Info()
	msg := StateMessage{
		EntityID:  info.ID,
		DeviceID:  info.DeviceID,
		Platform:  info.Platform,
		Timestamp: time.Now().UTC(),
	}
	if st, ok := e.State(); ok {
		msg.State = st
		msg.Available = true
	}
	return msg
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: vicare/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge          string            `json:"bridge"`
	Timestamp       time.Time         `json:"timestamp"`
	Status          HealthStatus      `json:"status"`
	Version         string            `json:"version"`
	UptimeSeconds   int64             `json:"uptime_seconds"`
	DevicesManaged  int               `json:"devices_managed"`
	EntitiesManaged int               `json:"entities_managed"`
	Vendor          *VendorStatus     `json:"vendor,omitempty"`
	Statistics      *BridgeStatistics `json:"statistics,omitempty"`
	Reason          string            `json:"reason,omitempty"`
}

// VendorStatus describes the cloud API connection.
type VendorStatus struct {
	Requests         uint64     `json:"requests"`
	CacheHits        uint64     `json:"cache_hits"`
	RateLimited      uint64     `json:"rate_limited"`
	RateLimitedUntil *time.Time `json:"rate_limited_until,omitempty"`
	LastPoll         *time.Time `json:"last_poll,omitempty"`
}

// BridgeStatistics contains poll and command counters.
type BridgeStatistics struct {
	Polls          uint64 `json:"polls"`
	PollFailures   uint64 `json:"poll_failures"`
	Commands       uint64 `json:"commands"`
	CommandsFailed uint64 `json:"commands_failed"`
}

// NewLWTMessage creates the Last Will and Testament health payload.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}
