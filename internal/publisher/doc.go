// Package publisher runs the loop that republishes UPS status over MQTT.
//
// Each tick:
//  1. reconnects the session if it is down (fail-soft, bounded wait)
//  2. runs one publish cycle, whatever step 1 returned
//  3. waits the refresh interval
//
// A publish cycle fetches one snapshot, encodes it as JSON and publishes it
// with the configured topic, QoS and retain flag. Every outcome is a Result
// value; nothing in a cycle stops the loop. There is no retry queue: a
// snapshot that cannot be published is dropped.
//
// Ticks are paced by a clockwork.Clock so tests can drive them with a fake
// clock.
package publisher
