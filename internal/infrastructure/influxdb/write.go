package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementEntity = "vicare_entity"
	measurementPoll   = "vicare_poll"
)

// EntitySample is one numeric reading of an entity at poll time.
type EntitySample struct {
	EntityID string
	DeviceID string
	Platform string
	Key      string
	Unit     string
	Value    float64
	Time     time.Time
}

// WriteEntitySample queues one entity reading. The write is non-blocking.
func (c *Client) WriteEntitySample(s EntitySample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(entityPoint(s))
}

// WritePollSummary records the outcome counts of one poll cycle for a device.
func (c *Client) WritePollSummary(deviceID string, outcomes map[string]int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(pollPoint(deviceID, outcomes, duration, time.Now()))
}

func entityPoint(s EntitySample) *write.Point {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{
		"entity_id": s.EntityID,
		"device_id": s.DeviceID,
		"platform":  s.Platform,
		"key":       s.Key,
	}
	if s.Unit != "" {
		tags["unit"] = s.Unit
	}

	return write.NewPoint(measurementEntity, tags, map[string]any{"value": s.Value}, ts)
}

func pollPoint(deviceID string, outcomes map[string]int, duration time.Duration, ts time.Time) *write.Point {
	fields := make(map[string]any, len(outcomes)+1)
	for outcome, n := range outcomes {
		fields[outcome] = n
	}
	fields["duration_ms"] = duration.Milliseconds()

	return write.NewPoint(measurementPoll, map[string]string{"device_id": deviceID}, fields, ts)
}
