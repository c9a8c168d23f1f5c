package vicare

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/influxdb"
)

// pollLoop polls every entity once per scan interval until Stop.
func (b *Bridge) pollLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if err := b.PollOnce(b.ctx); err != nil {
				b.logger.Error("poll cycle surfaced a fault", "error", err)
			}
		}
	}
}

// PollOnce runs one poll cycle. Devices are polled concurrently up to the
// configured limit; entities of one device are polled in order so they
// share one cached feature read.
//
// Known vendor faults never fail the cycle. The returned error is non-nil
// only in debug mode, when an entity hit an unexpected fault.
func (b *Bridge) PollOnce(ctx context.Context) error {
	b.mu.RLock()
	devices := b.devices
	b.mu.RUnlock()

	var g errgroup.Group
	g.SetLimit(b.cfg.PollConcurrency)
	for _, de := range devices {
		g.Go(func() error {
			return b.pollDevice(ctx, de)
		})
	}
	err := g.Wait()

	at := b.now()
	b.lastPoll.Store(at.UnixNano())
	b.metrics.cycleDone(at)
	return err
}

func (b *Bridge) pollDevice(ctx context.Context, de *deviceEntities) error {
	start := time.Now()
	outcomes := make(map[string]int)
	var errs []error

	for _, e := range de.entities {
		if ctx.Err() != nil {
			break
		}
		o, err := e.Update(ctx)
		info := e.Info()
		b.polls.Add(1)
		b.metrics.observePoll(info.Platform, o)
		outcomes[o.String()]++
		if err != nil {
			errs = append(errs, err)
		}

		switch o {
		case entity.OutcomeUpdated:
			b.publishState(e)
			b.persistState(ctx, e)
			b.recordSample(e)
		case entity.OutcomeFailed:
			b.pollFailures.Add(1)
		}
	}

	elapsed := time.Since(start)
	b.metrics.observeDevice(de.id, elapsed)
	if b.telemetry != nil {
		b.telemetry.WritePollSummary(de.id, outcomes, elapsed)
	}
	b.logger.Debug("device polled",
		"device_id", de.id,
		"duration", elapsed.String(),
		"updated", outcomes[entity.OutcomeUpdated.String()],
		"failed", outcomes[entity.OutcomeFailed.String()])
	return errors.Join(errs...)
}

// publishState sends the entity snapshot to its retained state topic and
// the state listener.
func (b *Bridge) publishState(e entity.Entity) {
	msg := NewStateMessage(e)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal state", "entity_id", msg.EntityID, "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.State(msg.EntityID), payload, 1, true); err != nil {
		b.logger.Warn("failed to publish state", "entity_id", msg.EntityID, "error", err)
	}
	b.emit(msg)
}

func (b *Bridge) publishAllStates() {
	for _, e := range b.Entities() {
		if e.Available() {
			b.publishState(e)
		}
	}
}

// recordSample writes numeric values to the time-series store.
func (b *Bridge) recordSample(e entity.Entity) {
	if b.telemetry == nil {
		return
	}
	st, ok := e.State()
	if !ok {
		return
	}
	var value float64
	switch v := st.Value.(type) {
	case float64:
		value = v
	case bool:
		if v {
			value = 1
		}
	default:
		return
	}
	info := e.Info()
	b.telemetry.WriteEntitySample(influxdb.EntitySample{
		EntityID: info.ID,
		DeviceID: info.DeviceID,
		Platform: info.Platform,
		Key:      info.Key,
		Unit:     st.Unit,
		Value:    value,
		Time:     st.UpdatedAt,
	})
}
