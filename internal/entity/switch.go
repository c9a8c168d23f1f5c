package entity

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// SwitchCooldown is how long polls are ignored after a local toggle. The
// API reports the old value for a few seconds after a command.
const SwitchCooldown = 5 * time.Second

// Switch is a toggle backed by enable/disable commands.
type Switch struct {
	*Base
	read    func(context.Context) (bool, error)
	enable  func(context.Context) error
	disable func(context.Context) error

	ignoreUntil atomic.Int64 // unix nanoseconds
}

func (s *Switch) Update(ctx context.Context) (Outcome, error) {
	if s.Now().UnixNano() < s.ignoreUntil.Load() {
		return OutcomeIdle, nil
	}
	return s.Poll(ctx, func(ctx context.Context) error {
		v, err := s.read(ctx)
		if err != nil {
			return err
		}
		s.Store(&State{Value: v})
		return nil
	})
}

func (s *Switch) Execute(ctx context.Context, cmd Command) error {
	var (
		write func(context.Context) error
		on    bool
	)
	switch cmd.Name {
	case CommandTurnOn:
		write, on = s.enable, true
	case CommandTurnOff:
		write, on = s.disable, false
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
	if err := write(ctx); err != nil {
		return err
	}
	s.ignoreUntil.Store(s.Now().Add(SwitchCooldown).UnixNano())
	s.Store(&State{Value: on})
	return nil
}

// Button is a stateless action.
type Button struct {
	*Base
	press func(context.Context) error
}

// Update does nothing; buttons have no state to poll.
func (b *Button) Update(context.Context) (Outcome, error) {
	return OutcomeIdle, nil
}

func (b *Button) Execute(ctx context.Context, cmd Command) error {
	if cmd.Name != CommandPress {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
	return b.press(ctx)
}
