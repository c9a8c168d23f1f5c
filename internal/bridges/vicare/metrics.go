package vicare

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/vicare-bridge/internal/entity"
	vc "github.com/nerrad567/vicare-bridge/internal/vicare"
)

// Metrics holds the bridge's Prometheus collectors. Each bridge owns its
// own set so tests can build several bridges without clashing in the
// default registry.
type Metrics struct {
	polls        *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	commands     *prometheus.CounterVec
	entities     *prometheus.GaugeVec
	lastPoll     prometheus.Gauge

	vendor []prometheus.Collector
}

// NewMetrics creates the collectors. stats may be nil when no vendor
// client is attached.
func NewMetrics(stats func() vc.Stats) *Metrics {
	m := &Metrics{
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vicare_entity_polls_total",
				Help: "Entity polls by outcome",
			},
			[]string{"platform", "outcome"},
		),
		pollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vicare_device_poll_duration_seconds",
				Help:    "Time to poll every entity of one device",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"device_id"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vicare_commands_total",
				Help: "Entity commands by acknowledgment status",
			},
			[]string{"command", "status"},
		),
		entities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vicare_entities",
				Help: "Materialised entities by platform",
			},
			[]string{"platform"},
		),
		lastPoll: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vicare_last_poll_timestamp_seconds",
			Help: "Unix time of the last completed poll cycle",
		}),
	}
	if stats != nil {
		counter := func(name, help string, get func(vc.Stats) uint64) prometheus.Collector {
			return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help},
				func() float64 { return float64(get(stats())) })
		}
		m.vendor = []prometheus.Collector{
			counter("vicare_api_requests_total", "HTTP requests sent to the ViCare API",
				func(s vc.Stats) uint64 { return s.Requests }),
			counter("vicare_api_cache_hits_total", "Feature reads served from the cache",
				func(s vc.Stats) uint64 { return s.CacheHits }),
			counter("vicare_api_rate_limited_total", "Requests answered with a rate-limit fault",
				func(s vc.Stats) uint64 { return s.RateLimited }),
			counter("vicare_api_commands_total", "Commands posted to the ViCare API",
				func(s vc.Stats) uint64 { return s.Commands }),
		}
	}
	return m
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return append([]prometheus.Collector{
		m.polls,
		m.pollDuration,
		m.commands,
		m.entities,
		m.lastPoll,
	}, m.vendor...)
}

func (m *Metrics) observePoll(platform string, o entity.Outcome) {
	m.polls.WithLabelValues(platform, o.String()).Inc()
}

func (m *Metrics) observeDevice(deviceID string, d time.Duration) {
	m.pollDuration.WithLabelValues(deviceID).Observe(d.Seconds())
}

func (m *Metrics) observeCommand(command string, status AckStatus) {
	m.commands.WithLabelValues(command, string(status)).Inc()
}

func (m *Metrics) setEntities(byPlatform map[string]int) {
	m.entities.Reset()
	for platform, n := range byPlatform {
		m.entities.WithLabelValues(platform).Set(float64(n))
	}
}

func (m *Metrics) cycleDone(at time.Time) {
	m.lastPoll.Set(float64(at.Unix()))
}
