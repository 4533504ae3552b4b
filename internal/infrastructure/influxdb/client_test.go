package influxdb_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/karolbe/ha-cp-ups/internal/infrastructure/config"
	"github.com/karolbe/ha-cp-ups/internal/infrastructure/influxdb"
	"github.com/karolbe/ha-cp-ups/internal/ups"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "pwrstat-dev-token",
		Org:           "home",
		Bucket:        "ups",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := influxdb.Connect(context.Background(), testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

func fieldMap(t *testing.T, snap ups.Snapshot) (map[string]string, map[string]any) {
	t.Helper()
	point := influxdb.StatusPoint(snap, time.Unix(1700000000, 0))
	if point == nil {
		t.Fatal("StatusPoint() = nil")
	}
	if point.Name() != "ups_status" {
		t.Errorf("Name() = %q, want ups_status", point.Name())
	}

	tags := make(map[string]string)
	for _, tag := range point.TagList() {
		tags[tag.Key] = tag.Value
	}
	fields := make(map[string]any)
	for _, field := range point.FieldList() {
		fields[field.Key] = field.Value
	}
	return tags, fields
}

func TestStatusPoint(t *testing.T) {
	tags, fields := fieldMap(t, ups.Snapshot{
		"model_name":  "CP1500PFCLCD",
		"battery_pct": 100,
		"line_power":  true,
		"load_pct":    8,
		"frequency":   49.9,
		"state":       "Normal",
	})

	if tags["model"] != "CP1500PFCLCD" {
		t.Errorf("model tag = %q", tags["model"])
	}
	if _, ok := fields["model_name"]; ok {
		t.Error("model_name should be a tag, not a field")
	}

	tests := []struct {
		key  string
		want any
	}{
		{"battery_pct", int64(100)},
		{"line_power", true},
		{"load_pct", int64(8)},
		{"frequency", 49.9},
		{"state", "Normal"},
	}
	for _, tt := range tests {
		if got := fields[tt.key]; got != tt.want {
			t.Errorf("field %s = %#v, want %#v", tt.key, got, tt.want)
		}
	}
}

func TestStatusPoint_SkipsUnsupportedValues(t *testing.T) {
	_, fields := fieldMap(t, ups.Snapshot{
		"battery_pct": 100,
		"nested":      map[string]any{"a": 1},
		"list":        []any{1, 2},
	})

	if len(fields) != 1 {
		t.Errorf("fields = %v, want only battery_pct", fields)
	}
}

func TestStatusPoint_EmptyModelStaysField(t *testing.T) {
	tags, fields := fieldMap(t, ups.Snapshot{"model_name": "", "battery_pct": 50})
	if _, ok := tags["model"]; ok {
		t.Error("empty model should not become a tag")
	}
	if fields["model_name"] != "" {
		t.Errorf("model_name field = %#v, want empty string", fields["model_name"])
	}
}

func TestStatusPoint_NoFields(t *testing.T) {
	if p := influxdb.StatusPoint(ups.Snapshot{"model_name": "CP1500"}, time.Now()); p != nil {
		t.Errorf("StatusPoint() = %v, want nil for tag-only snapshot", p)
	}
	if p := influxdb.StatusPoint(nil, time.Now()); p != nil {
		t.Errorf("StatusPoint(nil) = %v, want nil", p)
	}
}

func TestCyclePoint(t *testing.T) {
	at := time.Unix(1700000000, 0)
	point := influxdb.CyclePoint("pwrstat", "published", at)

	if point.Name() != "publish_cycle" {
		t.Errorf("Name() = %q, want publish_cycle", point.Name())
	}
	if !point.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", point.Time(), at)
	}

	tags := make(map[string]string)
	for _, tag := range point.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["topic"] != "pwrstat" || tags["result"] != "published" {
		t.Errorf("tags = %v", tags)
	}
	fields := point.FieldList()
	if len(fields) != 1 || fields[0].Key != "count" || fields[0].Value != int64(1) {
		t.Errorf("fields = %v, want count=1", fields)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := influxdb.Connect(context.Background(), cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	if _, err := influxdb.Connect(context.Background(), cfg); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// TestClientLifecycle runs against a local InfluxDB: connect, health,
// writes from a publish cycle, close.
func TestClientLifecycle(t *testing.T) {
	skipIfNoInfluxDB(t)

	ctx := context.Background()
	client, err := influxdb.Connect(ctx, testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}

	var mu sync.Mutex
	var writeErrs []error
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErrs = append(writeErrs, err)
		mu.Unlock()
	})

	t.Run("health", func(t *testing.T) {
		if err := client.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if err := client.HealthCheck(cancelled); err == nil {
			t.Error("HealthCheck() with cancelled context should fail")
		}
	})

	t.Run("writes", func(t *testing.T) {
		now := time.Now()
		client.WriteCycle("pwrstat/test", "published", now)
		client.WriteStatus(ups.Snapshot{"model_name": "test-ups", "battery_pct": 99, "line_power": true}, now)
		client.WriteCycle("pwrstat/test", "no_status", now.Add(time.Second))
		client.Flush()
		time.Sleep(100 * time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		if len(writeErrs) > 0 {
			t.Errorf("write errors: %v", writeErrs)
		}
	})

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	// Dropped silently after Close.
	client.WriteStatus(ups.Snapshot{"battery_pct": 1}, time.Now())
	client.Flush()

	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := client.HealthCheck(ctx); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}
}
