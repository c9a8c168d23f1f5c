package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/vicare-bridge/internal/vicare"
)

// Logger is the logging surface the entity layer needs. Both the plain
// logger and the deduplicating facade satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Outcome is the result of one poll of an entity.
type Outcome int

const (
	// OutcomeIdle means no fetch was attempted.
	OutcomeIdle Outcome = iota
	// OutcomeUpdated means the snapshot was replaced.
	OutcomeUpdated
	// OutcomeSkippedUnsupported means the device no longer reports the
	// data point; the previous snapshot is kept.
	OutcomeSkippedUnsupported
	// OutcomeFailed means the fetch failed; the previous snapshot is kept.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkippedUnsupported:
		return "skipped_unsupported"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// levelReporter is implemented by loggers that know whether debug records
// are emitted.
type levelReporter interface {
	DebugEnabled() bool
}

// Poller runs fetches and turns vendor faults into outcomes and log lines.
// Faults it knows are logged and swallowed. Anything else is logged, and
// also returned when debug is on so it surfaces during development.
type Poller struct {
	logger Logger
	debug  bool
}

// NewPoller creates a Poller. Pass the deduplicating logger so a device
// that stays offline does not flood the log. Debug mode is on when debug
// is set or when logger reports that it emits debug records.
func NewPoller(logger Logger, debug bool) *Poller {
	if lr, ok := logger.(levelReporter); ok && lr.DebugEnabled() {
		debug = true
	}
	return &Poller{logger: logger, debug: debug}
}

// Run executes fetch for the named entity. The fetch stores state itself
// and only on success.
func (p *Poller) Run(ctx context.Context, entityID string, fetch func(context.Context) error) (Outcome, error) {
	err := fetch(ctx)
	if err == nil {
		return OutcomeUpdated, nil
	}
	return p.classify(ctx, entityID, err)
}

func (p *Poller) classify(ctx context.Context, entityID string, err error) (Outcome, error) {
	if ctx.Err() != nil {
		return OutcomeFailed, ctx.Err()
	}

	var apiErr *vicare.APIError
	switch {
	case errors.Is(err, vicare.ErrNotSupported):
		p.logger.Debug("feature not supported", "entity_id", entityID, "error", err)
		return OutcomeSkippedUnsupported, nil
	case errors.Is(err, vicare.ErrConnection), errors.Is(err, vicare.ErrTimeout):
		p.logger.Error("unable to retrieve data from ViCare server", "entity_id", entityID)
	case errors.Is(err, vicare.ErrRateLimit):
		p.logger.Error("ViCare API rate limit exceeded", "entity_id", entityID, "error", err)
	case errors.Is(err, vicare.ErrInvalidData) && errors.As(err, &apiErr):
		p.logger.Error("unable to decode data from ViCare server", "entity_id", entityID)
	case errors.Is(err, vicare.ErrInvalidData):
		p.logger.Error("invalid data from ViCare server", "entity_id", entityID, "error", err)
	case errors.Is(err, vicare.ErrServer):
		p.logger.Error("ViCare server error", "entity_id", entityID, "error", err)
	case errors.Is(err, vicare.ErrUnauthorized):
		p.logger.Error("ViCare rejected the access token", "entity_id", entityID)
	default:
		p.logger.Error("unexpected error", "entity_id", entityID, "type", fmt.Sprintf("%T", err), "error", err)
		if p.debug {
			return OutcomeFailed, err
		}
	}
	return OutcomeFailed, nil
}
