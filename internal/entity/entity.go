package entity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Command names shared by the entity platforms.
const (
	CommandTurnOn   = "turn_on"
	CommandTurnOff  = "turn_off"
	CommandPress    = "press"
	CommandSetValue = "set_value"
)

var (
	// ErrUnknownCommand is returned for a command the entity does not take.
	ErrUnknownCommand = errors.New("entity: unknown command")
	// ErrInvalidParameters is returned when command parameters are missing
	// or malformed.
	ErrInvalidParameters = errors.New("entity: invalid parameters")
)

// Entity is a polled view of one data point.
type Entity interface {
	Info() Info
	// State returns the last successful snapshot.
	State() (*State, bool)
	// Available reports whether a successful read exists.
	Available() bool
	Update(ctx context.Context) (Outcome, error)
}

// Commander is an entity that accepts commands.
type Commander interface {
	Entity
	Execute(ctx context.Context, cmd Command) error
}

// Command is a named request with loosely typed parameters, as decoded
// from JSON.
type Command struct {
	Name   string
	Params map[string]any
}

// Float reads a numeric parameter.
func (c Command) Float(name string) (float64, error) {
	v, ok := c.Params[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidParameters, name)
	}
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: %s is not finite", ErrInvalidParameters, name)
		}
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParameters, name)
	}
}

// String reads a string parameter.
func (c Command) String(name string) (string, error) {
	v, ok := c.Params[name]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidParameters, name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidParameters, name)
	}
	return s, nil
}

// Base carries the identity, snapshot and polling plumbing shared by all
// entity kinds. Concrete entities embed it.
type Base struct {
	info   Info
	poller *Poller
	now    func() time.Time
	snap   snapshot
}

// NewBase creates the shared part of an entity.
func NewBase(info Info, poller *Poller, now func() time.Time) *Base {
	if now == nil {
		now = time.Now
	}
	return &Base{info: info, poller: poller, now: now}
}

func (b *Base) Info() Info { return b.info }

func (b *Base) State() (*State, bool) { return b.snap.load() }

func (b *Base) Available() bool {
	_, ok := b.snap.load()
	return ok
}

// Store replaces the snapshot, stamping it with the current time.
func (b *Base) Store(st *State) {
	st.UpdatedAt = b.now()
	b.snap.store(st)
}

// Now returns the entity clock.
func (b *Base) Now() time.Time { return b.now() }

// Poll runs a fetch through the poller.
func (b *Base) Poll(ctx context.Context, fetch func(context.Context) error) (Outcome, error) {
	return b.poller.Run(ctx, b.info.ID, fetch)
}
