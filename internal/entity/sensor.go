package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/vicare-bridge/internal/catalog"
	"github.com/nerrad567/vicare-bridge/internal/vicare"
)

// Sensor is a numeric data point, optionally writable.
type Sensor struct {
	*Base
	read   func(context.Context) (float64, error)
	unitOf func(context.Context) (string, error)
	write  func(context.Context, float64) error
}

func (s *Sensor) Update(ctx context.Context) (Outcome, error) {
	return s.Poll(ctx, func(ctx context.Context) error {
		v, err := s.read(ctx)
		if err != nil {
			return err
		}
		return s.publish(ctx, v)
	})
}

func (s *Sensor) publish(ctx context.Context, v float64) error {
	unit, class, err := s.resolveUnit(ctx)
	if err != nil {
		return err
	}
	s.Store(&State{Value: v, Unit: unit, DeviceClass: class})
	return nil
}

// resolveUnit prefers the vendor-reported unit when the sensor has one.
func (s *Sensor) resolveUnit(ctx context.Context) (string, string, error) {
	info := s.Info()
	if s.unitOf == nil {
		return info.Unit, info.DeviceClass, nil
	}
	vendor, err := s.unitOf(ctx)
	if err != nil {
		if errors.Is(err, vicare.ErrNotSupported) {
			return info.Unit, info.DeviceClass, nil
		}
		return "", "", err
	}
	if unit, class, ok := catalog.MapUnit(vendor); ok {
		return unit, class, nil
	}
	return info.Unit, info.DeviceClass, nil
}

// Execute handles set_value on writable sensors.
func (s *Sensor) Execute(ctx context.Context, cmd Command) error {
	if s.write == nil || cmd.Name != CommandSetValue {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
	v, err := cmd.Float("value")
	if err != nil {
		return err
	}
	if err := s.write(ctx, v); err != nil {
		return err
	}
	prev, ok := s.State()
	next := &State{Value: v}
	if ok {
		next = prev.Clone()
		next.Value = v
	}
	s.Store(next)
	return nil
}

// BinarySensor is an on/off data point.
type BinarySensor struct {
	*Base
	read func(context.Context) (bool, error)
}

func (b *BinarySensor) Update(ctx context.Context) (Outcome, error) {
	return b.Poll(ctx, func(ctx context.Context) error {
		v, err := b.read(ctx)
		if err != nil {
			return err
		}
		b.Store(&State{Value: v, DeviceClass: b.Info().DeviceClass})
		return nil
	})
}
