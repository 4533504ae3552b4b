package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/karolbe/ha-cp-ups/internal/history"
	"github.com/karolbe/ha-cp-ups/internal/infrastructure/database"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// captureOutput redirects os.Stdout and os.Stderr to a temp file until the
// test ends and returns a func reading what was written so far.
func captureOutput(t *testing.T) func() string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "output")
	if err != nil {
		t.Fatalf("CreateTemp() error = %v", err)
	}
	stdout, stderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = f, f
	t.Cleanup(func() {
		os.Stdout, os.Stderr = stdout, stderr
		f.Close() //nolint:errcheck // Test cleanup
	})
	return func() string {
		data, err := os.ReadFile(f.Name())
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		return string(data)
	}
}

// TestRun_InvalidConfig verifies run fails with a missing config file.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidConfigValues verifies validation errors stop startup.
func TestRun_InvalidConfigValues(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
  topic: "pwrstat"
  qos: 5
  refresh: 0
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, path); err == nil {
		t.Fatal("run() should fail with invalid qos and refresh")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("PWRSTAT_CONFIG", "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("PWRSTAT_CONFIG", "/etc/pwrstat-mqtt/config.yaml")
	if got := getConfigPath(""); got != "/etc/pwrstat-mqtt/config.yaml" {
		t.Errorf("getConfigPath() with env = %q", got)
	}

	if got := getConfigPath("/tmp/flag.yaml"); got != "/tmp/flag.yaml" {
		t.Errorf("getConfigPath() with flag = %q, want flag to win", got)
	}
}

// TestRun_BrokerDownKeepsRunning verifies that an unreachable broker does
// not stop the service: it keeps ticking, records each skipped cycle and
// shuts down cleanly on cancellation.
func TestRun_BrokerDownKeepsRunning(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	path := writeConfig(t, `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
    client_id: "pwrstat-test"
  topic: "pwrstat/test"
  qos: 0
  refresh: 1

status:
  binary: "/bin/false"

influxdb:
  enabled: false

database:
  enabled: true
  path: "`+dbPath+`"
  retention_days: 7

logging:
  level: error
  format: text
  output: stderr
`)

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, path)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v, want nil on shutdown", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("run() did not return after context cancellation")
	}

	db, err := database.Open(database.Config{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	entries, err := history.NewSQLiteRepository(db.DB).List(context.Background(), history.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no publish cycles recorded")
	}
	for _, e := range entries {
		if e.Result != "not_connected" {
			t.Errorf("recorded result %q, want not_connected", e.Result)
		}
		if e.Topic != "pwrstat/test" {
			t.Errorf("recorded topic %q, want pwrstat/test", e.Topic)
		}
	}
}

// TestRun_ContextCancelledBeforeStart verifies run returns promptly when
// already cancelled.
func TestRun_ContextCancelledBeforeStart(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
  topic: "pwrstat"
  refresh: 5
logging:
  level: error
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := run(ctx, path); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("run() took %v after cancellation", elapsed)
	}
}

// TestRun_SingleConnectAttemptPerInterval verifies that startup does not
// connect ahead of the publish loop: with the broker down, only one attempt
// is made before the first refresh wait.
func TestRun_SingleConnectAttemptPerInterval(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
  topic: "pwrstat/test"
  refresh: 30

status:
  binary: "/bin/false"

influxdb:
  enabled: false

logging:
  level: info
  format: json
  output: stderr
`)
	output := captureOutput(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx, path); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	out := output()
	if got := strings.Count(out, `"msg":"connecting to MQTT broker"`); got != 1 {
		t.Errorf("connect attempts = %d, want 1 within the first interval\n%s", got, out)
	}

	// The startup entry carries version once, from the logger itself.
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, `"msg":"starting pwrstat-mqtt"`) {
			continue
		}
		if n := strings.Count(line, `"version":`); n != 1 {
			t.Errorf("startup entry has %d version attributes, want 1: %s", n, line)
		}
		return
	}
	t.Errorf("startup entry not logged\n%s", out)
}
