package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/karolbe/ha-cp-ups/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the total time Connect waits for the session to go live.
	defaultConnectTimeout = 30 * time.Second

	// connectPollInterval is how often liveness is checked while connecting.
	connectPollInterval = 1 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// clientIDPrefix prefixes generated client identifiers.
	clientIDPrefix = "pwrstat-mqtt-"

	// availability payloads
	payloadOnline  = "online"
	payloadOffline = "offline"
)

// brokerURL returns the paho broker URL for the configured host and port.
func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// clientID returns the configured client identifier, or a generated one.
func clientID(cfg config.MQTTConfig) string {
	if cfg.Broker.ClientID != "" {
		return cfg.Broker.ClientID
	}
	return clientIDPrefix + uuid.NewString()
}

// hasCredentials reports whether both halves of the credential pair are set.
// A lone username or password disables authentication rather than failing.
func hasCredentials(auth config.MQTTAuthConfig) bool {
	return auth.Username != "" && auth.Password != ""
}

// buildClientOptions creates paho MQTT options from the session configuration.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID (configured or generated)
//   - Authentication credentials (only when both are present)
//   - Fixed 60s keepalive
//   - No transport-level reconnect; Session.Connect is the only way back
//   - Last Will on the availability topic (if configured)
func buildClientOptions(cfg config.MQTTConfig, id string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(id)

	if hasCredentials(cfg.Auth) {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	// Reconnection is owned by the publish loop.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	if cfg.AvailabilityTopic != "" {
		configureLWT(opts, cfg.AvailabilityTopic)
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The broker publishes "offline" on the availability topic if the session
// drops without a graceful Close.
func configureLWT(opts *pahomqtt.ClientOptions, topic string) {
	opts.SetWill(topic, payloadOffline, 1, true)
}
