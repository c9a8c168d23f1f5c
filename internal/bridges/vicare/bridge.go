package vicare

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/vicare-bridge/internal/registry"
	vc "github.com/nerrad567/vicare-bridge/internal/vicare"
)

// Bridge operation constants.
const (
	// commandTimeout bounds one vendor command including its retries.
	commandTimeout = 30 * time.Second

	// persistTimeout bounds registry writes that run after the poll context
	// may already be gone.
	persistTimeout = 5 * time.Second

	defaultScanInterval = 60 * time.Second
)

// Bridge exposes ViCare devices as entities over MQTT.
// It handles:
//   - Discovering devices and materialising their entities once at start
//   - Polling every entity each scan interval and publishing changes
//   - Executing commands received over MQTT or the API and acknowledging them
//   - Health reporting and Home Assistant discovery
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg       Config
	vendor    VendorClient
	mqtt      MQTTClient
	topics    mqtt.Topics
	registry  EntityStore
	telemetry Telemetry
	builder   *entity.Builder
	metrics   *Metrics
	health    *healthReporter
	now       func() time.Time

	devices []*deviceEntities
	index   map[string]entity.Entity
	mu      sync.RWMutex

	onState   func(StateMessage)
	onStateMu sync.RWMutex

	polls          atomic.Uint64
	pollFailures   atomic.Uint64
	commands       atomic.Uint64
	commandsFailed atomic.Uint64
	lastPoll       atomic.Int64

	// Shutdown coordination
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger Logger
}

// Logger is the logging surface the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// VendorClient is the part of the ViCare client the bridge uses directly.
// *vicare.Client satisfies it.
type VendorClient interface {
	Devices(ctx context.Context) ([]*vc.Device, error)
	Stats() vc.Stats
	RateLimitedUntil() time.Time
}

// MQTTClient is the interface for MQTT operations.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// EntityStore persists entity and device records.
// *registry.Registry satisfies it. Optional.
type EntityStore interface {
	Register(ctx context.Context, e *registry.Entity) error
	SetState(ctx context.Context, id string, state any, available bool, at time.Time) error
	RegisterDevice(ctx context.Context, d *registry.Device) error
	Prune(ctx context.Context, deviceID string, keep map[string]bool) (int, error)
}

// Telemetry records numeric entity values.
// *influxdb.Client satisfies it. Optional.
type Telemetry interface {
	WriteEntitySample(s influxdb.EntitySample)
	WritePollSummary(deviceID string, outcomes map[string]int, duration time.Duration)
}

// Config holds bridge behaviour settings.
type Config struct {
	BridgeID        string
	Version         string
	HeatingType     string
	ScanInterval    time.Duration
	HealthInterval  time.Duration
	PollConcurrency int
	// Discovery publishes Home Assistant MQTT discovery configs.
	Discovery bool
	// Debug surfaces unexpected poll faults from the poll cycle.
	Debug bool
}

// Options holds the dependencies for creating a bridge.
type Options struct {
	Config Config
	Vendor VendorClient
	MQTT   MQTTClient
	Topics mqtt.Topics

	// Logger receives lifecycle messages.
	Logger Logger

	// PollLogger receives poll fault messages. Pass the deduplicating
	// logger so an offline device does not flood the log. Defaults to Logger.
	PollLogger entity.Logger

	// Registry persists records. Nil disables persistence.
	Registry EntityStore

	// Telemetry records values. Nil disables telemetry.
	Telemetry Telemetry

	// Metrics may be shared with the HTTP API. Created when nil.
	Metrics *Metrics

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// NewBridge creates a new bridge instance.
// Call Start to discover devices and begin polling.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Vendor == nil {
		return nil, fmt.Errorf("vendor client is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	cfg := opts.Config
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = defaultScanInterval
	}
	if cfg.PollConcurrency < 1 {
		cfg.PollConcurrency = 1
	}
	pollLogger := opts.PollLogger
	if pollLogger == nil {
		pollLogger = opts.Logger
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(opts.Vendor.Stats)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		cfg:       cfg,
		vendor:    opts.Vendor,
		mqtt:      opts.MQTT,
		topics:    opts.Topics,
		registry:  opts.Registry,
		telemetry: opts.Telemetry,
		metrics:   metrics,
		now:       now,
		index:     make(map[string]entity.Entity),
		ctx:       ctx,
		ctxCancel: cancel,
		logger:    opts.Logger,
	}
	b.builder = entity.NewBuilder(pollLogger, entity.NewPoller(pollLogger, cfg.Debug))
	b.builder.SetClock(now)
	b.health = newHealthReporter(cfg.HealthInterval, opts.MQTT, opts.Topics.Health(), b.healthSnapshot, opts.Logger)
	return b, nil
}

// Start discovers devices, builds and publishes their entities, subscribes
// to command topics and starts the poll and health loops.
//
// It returns an error when the device list cannot be fetched; the caller
// decides whether to retry.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.announce(HealthStarting, "bridge starting"); err != nil {
		b.logger.Warn("failed to publish starting health", "error", err)
	}

	if err := b.setup(ctx); err != nil {
		return fmt.Errorf("setting up devices: %w", err)
	}
	b.publishAllStates()
	if b.cfg.Discovery {
		b.publishDiscovery()
	}

	if err := b.mqtt.Subscribe(b.topics.AllCommands(), 1, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	if err := b.mqtt.Subscribe(b.topics.AllServices(), 1, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to services: %w", err)
	}

	b.health.start(b.ctx)
	b.wg.Add(1)
	go b.pollLoop()

	b.logger.Info("bridge started",
		"devices", len(b.devices),
		"entities", len(b.index),
		"scan_interval", b.cfg.ScanInterval.String())
	return nil
}

// Stop cancels in-flight polls and commands and waits for the loops.
// Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.wg.Wait()
		b.health.stop()
		b.logger.Info("bridge stopped")
	})
}

// OnReconnect republishes retained state and discovery after the broker
// connection was re-established.
func (b *Bridge) OnReconnect() {
	b.publishAllStates()
	if b.cfg.Discovery {
		b.publishDiscovery()
	}
}

// SetStateListener registers fn to receive every published state message.
func (b *Bridge) SetStateListener(fn func(StateMessage)) {
	b.onStateMu.Lock()
	b.onState = fn
	b.onStateMu.Unlock()
}

// Metrics returns the bridge collectors.
func (b *Bridge) Metrics() *Metrics { return b.metrics }

// Entity returns a materialised entity by id.
func (b *Bridge) Entity(id string) (entity.Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return e, nil
}

// Entities returns all materialised entities ordered by id.
func (b *Bridge) Entities() []entity.Entity {
	b.mu.RLock()
	out := make([]entity.Entity, 0, len(b.index))
	for _, e := range b.index {
		out = append(out, e)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Info().ID < out[j].Info().ID })
	return out
}

// DeviceSummary describes one polled device.
type DeviceSummary struct {
	ID       string   `json:"id"`
	Model    string   `json:"model"`
	Type     string   `json:"type,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Online   bool     `json:"online"`
	Entities int      `json:"entities"`
}

// Devices summarises the polled devices.
func (b *Bridge) Devices() []DeviceSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]DeviceSummary, 0, len(b.devices))
	for _, de := range b.devices {
		out = append(out, DeviceSummary{
			ID:       de.id,
			Model:    de.device.Model,
			Type:     de.device.Type,
			Roles:    de.device.Roles,
			Online:   de.device.Online(),
			Entities: len(de.entities),
		})
	}
	return out
}

// Health returns the current health message.
func (b *Bridge) Health() HealthMessage {
	return b.health.message()
}

func (b *Bridge) emit(msg StateMessage) {
	b.onStateMu.RLock()
	fn := b.onState
	b.onStateMu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

func (b *Bridge) healthSnapshot() HealthMessage {
	b.mu.RLock()
	devices, entities := len(b.devices), len(b.index)
	b.mu.RUnlock()

	stats := b.vendor.Stats()
	vendor := &VendorStatus{
		Requests:    stats.Requests,
		CacheHits:   stats.CacheHits,
		RateLimited: stats.RateLimited,
	}
	if until := b.vendor.RateLimitedUntil(); !until.IsZero() {
		vendor.RateLimitedUntil = &until
	}
	if ts := b.lastPoll.Load(); ts != 0 {
		t := time.Unix(0, ts).UTC()
		vendor.LastPoll = &t
	}

	msg := HealthMessage{
		Bridge:          b.cfg.BridgeID,
		Version:         b.cfg.Version,
		DevicesManaged:  devices,
		EntitiesManaged: entities,
		Vendor:          vendor,
		Statistics: &BridgeStatistics{
			Polls:          b.polls.Load(),
			PollFailures:   b.pollFailures.Load(),
			Commands:       b.commands.Load(),
			CommandsFailed: b.commandsFailed.Load(),
		},
	}
	switch {
	case !b.mqtt.IsConnected():
		msg.Status, msg.Reason = HealthDegraded, "MQTT disconnected"
	case vendor.RateLimitedUntil != nil:
		msg.Status = HealthDegraded
		msg.Reason = "rate limited until " + vendor.RateLimitedUntil.UTC().Format(time.RFC3339)
	default:
		msg.Status = HealthHealthy
	}
	return msg
}

func (b *Bridge) persistState(ctx context.Context, e entity.Entity) {
	if b.registry == nil {
		return
	}
	st, ok := e.State()
	if !ok {
		return
	}
	if err := b.registry.SetState(ctx, e.Info().ID, st, true, st.UpdatedAt); err != nil &&
		!errors.Is(err, context.Canceled) {
		b.logger.Warn("failed to persist state", "entity_id", e.Info().ID, "error", err)
	}
}
