// Package mqtt manages the broker session pwrstat-mqtt publishes through.
//
// This package manages:
//   - One paho client for the life of the process (the Session)
//   - Fail-soft connection with a bounded 30 second wait
//   - Liveness queries shared by every caller
//   - Publishing with typed failure results
//   - Optional availability topic with Last Will and Testament
//
// # Reconnection
//
// paho's own auto-reconnect is disabled. The publish loop calls
// Session.Connect once per tick while the session is down, so the reconnect
// cadence equals the refresh interval and there is no reconnect storm.
//
//	Disconnected --Connect ok--> Connected
//	Connected --connection lost--> Disconnected
//	Disconnected --Connect fails--> Disconnected
//
// # Usage
//
//	session := mqtt.NewSession(cfg.MQTT, mqtt.WithLogger(log))
//	defer session.Close()
//
//	if !session.IsConnected() {
//	    session.Connect(ctx)
//	}
//	err := session.Publish(cfg.MQTT.Topic, payload, byte(cfg.MQTT.QoS), cfg.MQTT.Retained)
//
// # Security Considerations
//
//   - Use TLS (mqtt.broker.tls) for brokers reached over untrusted networks
//   - Credentials are sent only when both username and password are set
package mqtt
