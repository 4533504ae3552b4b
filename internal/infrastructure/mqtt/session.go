package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/karolbe/ha-cp-ups/internal/infrastructure/config"
)

// Logger is the logging interface used by the session.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ConnectResult is the outcome of a Session.Connect call.
type ConnectResult int

const (
	// ConnectFailed means the transport reported an error (DNS, refused, ...).
	ConnectFailed ConnectResult = iota
	// ConnectTimedOut means the session was not live within the connect timeout.
	ConnectTimedOut
	// ConnectCancelled means the context was cancelled while waiting.
	ConnectCancelled
	// ConnectConnected means the session is live.
	ConnectConnected
)

func (r ConnectResult) String() string {
	switch r {
	case ConnectFailed:
		return "failed"
	case ConnectTimedOut:
		return "timed_out"
	case ConnectCancelled:
		return "cancelled"
	case ConnectConnected:
		return "connected"
	default:
		return fmt.Sprintf("ConnectResult(%d)", int(r))
	}
}

// Connected reports whether the attempt left the session live.
func (r ConnectResult) Connected() bool {
	return r == ConnectConnected
}

// Session owns the one broker connection of the process.
//
// It is the only component that initiates connections. The publish loop
// queries liveness and requests publishes through it, and both observe the
// same transport, so there is a single source of truth for liveness.
//
// Thread Safety:
//   - Connect and Publish are intended to be driven by a single goroutine.
//   - IsConnected is safe to call from any goroutine.
type Session struct {
	transport Transport
	cfg       config.MQTTConfig
	clientID  string
	clock     clockwork.Clock
	logger    Logger

	connectTimeout time.Duration
}

// Option customises a Session.
type Option func(*Session)

// WithTransport replaces the paho transport, primarily for tests.
func WithTransport(t Transport) Option {
	return func(s *Session) {
		s.transport = t
	}
}

// WithClock sets the clock used while waiting for a connection.
func WithClock(c clockwork.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithLogger sets the session logger.
func WithLogger(l Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession builds the session from configuration without connecting.
//
// The client identifier is taken from config or generated, and credentials
// are applied only when both username and password are present. Construction
// never fails; configuration errors are caught by config.Validate.
func NewSession(cfg config.MQTTConfig, opts ...Option) *Session {
	s := &Session{
		cfg:            cfg,
		clientID:       clientID(cfg),
		clock:          clockwork.NewRealClock(),
		logger:         noopLogger{},
		connectTimeout: defaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = newPahoTransport(cfg, s.clientID, s.logger)
	}
	return s
}

// ClientID returns the identifier presented to the broker.
func (s *Session) ClientID() string {
	return s.clientID
}

// AuthEnabled reports whether the session authenticates with the broker.
func (s *Session) AuthEnabled() bool {
	return hasCredentials(s.cfg.Auth)
}

// RefreshInterval returns the configured publish interval.
func (s *Session) RefreshInterval() time.Duration {
	return s.cfg.RefreshInterval()
}

// Connect initiates a connection and waits for it to become live.
//
// Liveness is polled once per second for up to 30 seconds. Transport errors
// and panics are logged and reported through the result; Connect never
// returns an error, so callers check IsConnected (or the result) instead.
func (s *Session) Connect(ctx context.Context) (result ConnectResult) {
	broker := brokerURL(s.cfg)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("MQTT connection error", "broker", broker, "panic", r)
			result = ConnectFailed
		}
	}()

	s.logger.Info("connecting to MQTT broker", "broker", broker, "client_id", s.clientID)

	token := s.transport.Connect()

	for waited := time.Duration(0); ; waited += connectPollInterval {
		if s.transport.IsConnected() {
			s.logger.Info("MQTT broker connected", "broker", broker)
			s.publishAvailability(payloadOnline)
			return ConnectConnected
		}

		if err := completedError(token); err != nil {
			s.logger.Error("MQTT connection error", "broker", broker, "error", err)
			return ConnectFailed
		}

		if waited >= s.connectTimeout {
			s.logger.Error("failed to connect to MQTT broker",
				"broker", broker,
				"timeout", s.connectTimeout,
			)
			return ConnectTimedOut
		}

		select {
		case <-ctx.Done():
			s.logger.Warn("MQTT connect cancelled", "broker", broker)
			return ConnectCancelled
		case <-s.clock.After(connectPollInterval):
		}
	}
}

// completedError returns the token's error if it has already completed.
func completedError(token Token) error {
	if token == nil {
		return nil
	}
	select {
	case <-token.Done():
		return token.Error()
	default:
		return nil
	}
}

// IsConnected returns the current liveness of the underlying transport.
func (s *Session) IsConnected() bool {
	return s.transport.IsConnected()
}

// HealthCheck reports ErrNotConnected when the session is down.
func (s *Session) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !s.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// publishAvailability publishes to the availability topic, if configured.
// Failures are logged; availability is best effort.
func (s *Session) publishAvailability(payload string) {
	if s.cfg.AvailabilityTopic == "" {
		return
	}
	if err := s.Publish(s.cfg.AvailabilityTopic, []byte(payload), 1, true); err != nil {
		s.logger.Warn("failed to publish availability",
			"topic", s.cfg.AvailabilityTopic,
			"payload", payload,
			"error", err,
		)
	}
}

// Close gracefully disconnects from the MQTT broker.
//
// When an availability topic is configured, "offline" is published first so
// subscribers can tell a graceful stop from a crash (which the Last Will covers).
func (s *Session) Close() error {
	if s.transport == nil {
		return nil
	}

	if s.IsConnected() {
		s.publishAvailability(payloadOffline)
	}

	s.transport.Disconnect(defaultDisconnectQuiesce)
	return nil
}
