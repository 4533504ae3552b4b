package ups

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("reading fixture %s: %v", name, err)
	}
	return data
}

func TestParse_Online(t *testing.T) {
	snap, err := Parse(readFixture(t, "status_online.txt"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		key  string
		want any
	}{
		{"model_name", "CP1500PFCLCD"},
		{"firmware_number", "CRCA102-3I1"},
		{"rating_voltage", 120},
		{"rating_power", "900 Watt(1500 VA)"},
		{"rating_power_watt", 900},
		{"rating_power_va", 1500},
		{"state", "Normal"},
		{"power_supply_by", "Utility Power"},
		{"utility_voltage", 121},
		{"output_voltage", 121},
		{"battery_capacity", 100},
		{"battery_pct", 100},
		{"remaining_runtime", 62},
		{"load", "72 Watt(8 %)"},
		{"load_watt", 72},
		{"load_pct", 8},
		{"line_interaction", "None"},
		{"test_result", "Unknown"},
		{"last_power_event", "Blackout at 2025/11/02 03:14:07 for 12 sec."},
		{"line_power", true},
		{"on_battery", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := snap[tt.key]
			if !ok {
				t.Fatalf("key %q missing from snapshot %v", tt.key, snap.Keys())
			}
			if got != tt.want {
				t.Errorf("snap[%q] = %#v, want %#v", tt.key, got, tt.want)
			}
		})
	}
}

func TestParse_OnBattery(t *testing.T) {
	snap, err := Parse(readFixture(t, "status_on_battery.txt"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if snap["on_battery"] != true {
		t.Errorf("on_battery = %v, want true", snap["on_battery"])
	}
	if snap["line_power"] != false {
		t.Errorf("line_power = %v, want false", snap["line_power"])
	}
	if snap["battery_pct"] != 87 {
		t.Errorf("battery_pct = %v, want 87", snap["battery_pct"])
	}
	if snap["utility_voltage"] != 0 {
		t.Errorf("utility_voltage = %v, want 0", snap["utility_voltage"])
	}
	if snap["state"] != "Power Failure" {
		t.Errorf("state = %v, want %q", snap["state"], "Power Failure")
	}
}

func TestParse_NoFields(t *testing.T) {
	for _, input := range [][]byte{
		readFixture(t, "status_no_ups.txt"),
		nil,
		[]byte("\n\n"),
	} {
		if _, err := Parse(input); !errors.Is(err, ErrNoFields) {
			t.Errorf("Parse(%q) error = %v, want ErrNoFields", input, err)
		}
	}
}

func TestParse_SkipsEmptyValues(t *testing.T) {
	snap, err := Parse([]byte("Model Name........ \nState........ Normal\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, ok := snap["model_name"]; ok {
		t.Error("empty value should be skipped")
	}
	if snap["state"] != "Normal" {
		t.Errorf("state = %v, want Normal", snap["state"])
	}
	if _, ok := snap["line_power"]; ok {
		t.Error("line_power derived without power_supply_by")
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"Model Name":       "model_name",
		"Power Supply by":  "power_supply_by",
		"  Load ":          "load",
		"Battery-Capacity": "battery_capacity",
	}
	for in, want := range tests {
		if got := normalizeKey(in); got != want {
			t.Errorf("normalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	if got := parseNumber("42"); got != 42 {
		t.Errorf("parseNumber(42) = %#v", got)
	}
	if got := parseNumber("49.9"); got != 49.9 {
		t.Errorf("parseNumber(49.9) = %#v", got)
	}
}
