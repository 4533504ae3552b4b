package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/karolbe/ha-cp-ups/internal/ups"
)

// Measurement names written by this package.
const (
	measurementStatus = "ups_status"
	measurementCycle  = "publish_cycle"
)

// statusTags maps snapshot keys to the tag they are stored under.
// Everything else in a snapshot becomes a field.
var statusTags = map[string]string{
	"model_name": "model",
}

// StatusPoint converts a snapshot into an "ups_status" point.
//
// Low-cardinality identity keys become tags; every other value becomes a
// field. Returns nil when the snapshot has no field values.
func StatusPoint(snap ups.Snapshot, at time.Time) *write.Point {
	tags := make(map[string]string)
	fields := make(map[string]interface{})

	for key, value := range snap {
		if tag, ok := statusTags[key]; ok {
			if s, isString := value.(string); isString && s != "" {
				tags[tag] = s
				continue
			}
		}
		switch value.(type) {
		case bool, int, int64, float64, string:
			fields[key] = value
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return write.NewPoint(measurementStatus, tags, fields, at)
}

// CyclePoint builds a "publish_cycle" point counting one publish cycle with
// the given outcome.
func CyclePoint(topic, result string, at time.Time) *write.Point {
	return write.NewPoint(
		measurementCycle,
		map[string]string{
			"topic":  topic,
			"result": result,
		},
		map[string]interface{}{
			"count": 1,
		},
		at,
	)
}

// WriteStatus queues a UPS snapshot as an ups_status point.
func (c *Client) WriteStatus(snap ups.Snapshot, at time.Time) {
	c.write(StatusPoint(snap, at))
}

// WriteCycle queues one publish_cycle point.
func (c *Client) WriteCycle(topic, result string, at time.Time) {
	c.write(CyclePoint(topic, result, at))
}
