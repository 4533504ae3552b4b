package ups

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Snapshot is one point-in-time read of UPS status fields.
//
// Values are JSON-compatible scalars: string, bool, int, or float64.
type Snapshot map[string]any

// Encode serialises the snapshot to the UTF-8 JSON payload that is published.
func (s Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(map[string]any(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

// Decode parses a published payload back into a Snapshot.
//
// Integral numbers decode as int and everything else numeric as float64.
// JSON does not keep a float with no fractional part apart from an int, so a
// float64 such as 121.0 comes back as int 121.
func Decode(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	snap := make(Snapshot, len(raw))
	for k, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			snap[k] = v
			continue
		}
		if i, err := n.Int64(); err == nil {
			snap[k] = int(i)
			continue
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrDecode, k, err)
		}
		snap[k] = f
	}
	return snap, nil
}

// Keys returns the snapshot's field names in sorted order.
func (s Snapshot) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// String returns the string value of a field, or "" if absent or not a string.
func (s Snapshot) String(key string) string {
	v, _ := s[key].(string)
	return v
}
