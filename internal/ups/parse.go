package ups

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

// Supply sources reported in the "Power Supply by" field.
const (
	supplyUtility = "Utility Power"
	supplyBattery = "Battery Power"
)

var (
	// fieldLine matches "Label.......... Value" lines.
	fieldLine = regexp.MustCompile(`^(.+?)\.{2,}\s*(.*)$`)

	// unitValue matches a number with an optional unit, e.g. "120 V", "62 min.".
	unitValue = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*(?:V|%|min\.|sec\.|Hz)?$`)

	// pairValue matches "900 Watt(1500 VA)" and "72 Watt(8 %)".
	pairValue = regexp.MustCompile(`^(\d+)\s*Watt\s*\(\s*(\d+)\s*(VA|%)\s*\)$`)

	nonWord = regexp.MustCompile(`[^a-z0-9]+`)
)

// Parse converts `pwrstat -status` output into a Snapshot.
//
// Field labels become snake_case keys ("Battery Capacity" -> battery_capacity).
// Numeric values with a unit become ints (or floats), "N Watt(M VA|%)" pairs
// are kept verbatim and split into <key>_watt and <key>_va / <key>_pct, and
// the derived fields battery_pct, line_power and on_battery are added when
// their sources are present.
func Parse(output []byte) (Snapshot, error) {
	snap := make(Snapshot)

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := fieldLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := normalizeKey(m[1])
		value := strings.TrimSpace(m[2])
		if key == "" || value == "" {
			continue
		}
		addField(snap, key, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(snap) == 0 {
		return nil, ErrNoFields
	}

	derive(snap)
	return snap, nil
}

// normalizeKey converts a pwrstat label into a snake_case key.
func normalizeKey(label string) string {
	key := nonWord.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), "_")
	return strings.Trim(key, "_")
}

func addField(snap Snapshot, key, value string) {
	if m := unitValue.FindStringSubmatch(value); m != nil {
		snap[key] = parseNumber(m[1])
		return
	}

	snap[key] = value

	if m := pairValue.FindStringSubmatch(value); m != nil {
		snap[key+"_watt"] = parseNumber(m[1])
		suffix := "_va"
		if m[3] == "%" {
			suffix = "_pct"
		}
		snap[key+suffix] = parseNumber(m[2])
	}
}

func parseNumber(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func derive(snap Snapshot) {
	if capacity, ok := snap["battery_capacity"].(int); ok {
		snap["battery_pct"] = capacity
	}
	if supply := snap.String("power_supply_by"); supply != "" {
		snap["line_power"] = supply == supplyUtility
		snap["on_battery"] = supply == supplyBattery
	}
}
