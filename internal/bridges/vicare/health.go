package vicare

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

const defaultHealthInterval = 30 * time.Second

// statusPublisher is the slice of the MQTT client the health reporter uses.
type statusPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// healthReporter keeps the retained health topic current. It publishes
// "starting" during setup, the live snapshot every interval once running
// and "stopping" on the way out.
type healthReporter struct {
	interval time.Duration
	pub      statusPublisher
	topic    string
	snapshot func() HealthMessage
	logger   Logger
	since    time.Time

	running  atomic.Bool
	cancel   context.CancelFunc
	loopDone sync.WaitGroup
	stopOnce sync.Once
}

func newHealthReporter(interval time.Duration, pub statusPublisher, topic string, snapshot func() HealthMessage, logger Logger) *healthReporter {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &healthReporter{
		interval: interval,
		pub:      pub,
		topic:    topic,
		snapshot: snapshot,
		logger:   logger,
		since:    time.Now(),
		cancel:   func() {},
	}
}

// message is the current health with timestamp and uptime filled in.
// Until start has run a healthy snapshot reads as starting.
func (h *healthReporter) message() HealthMessage {
	msg := h.snapshot()
	if msg.Status == "" {
		msg.Status = HealthHealthy
	}
	if msg.Status == HealthHealthy && !h.running.Load() {
		msg.Status = HealthStarting
	}
	msg.Timestamp = time.Now().UTC()
	msg.UptimeSeconds = int64(time.Since(h.since).Seconds())
	return msg
}

func (h *healthReporter) announce(status HealthStatus, reason string) error {
	msg := h.message()
	msg.Status, msg.Reason = status, reason
	return h.send(msg)
}

func (h *healthReporter) send(msg HealthMessage) error {
	if h.pub == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.pub.Publish(h.topic, payload, 1, true)
}

// start publishes immediately, then every interval until ctx ends or stop.
func (h *healthReporter) start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.running.Store(true)
	h.loopDone.Add(1)

	go func() {
		defer h.loopDone.Done()
		tick := time.NewTicker(h.interval)
		defer tick.Stop()
		for {
			if err := h.send(h.message()); err != nil && h.logger != nil {
				h.logger.Error("failed to publish health", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
		}
	}()
}

// stop ends the loop and publishes a final stopping status. Idempotent.
func (h *healthReporter) stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		h.loopDone.Wait()
		_ = h.announce(HealthStopping, "bridge stopping")
	})
}
