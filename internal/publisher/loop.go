package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/karolbe/ha-cp-ups/internal/infrastructure/config"
	"github.com/karolbe/ha-cp-ups/internal/infrastructure/mqtt"
	"github.com/karolbe/ha-cp-ups/internal/ups"
)

// Session is the broker session the loop publishes through.
// *mqtt.Session satisfies it.
type Session interface {
	IsConnected() bool
	Connect(ctx context.Context) mqtt.ConnectResult
	Publish(topic string, payload []byte, qos byte, retained bool) error
	RefreshInterval() time.Duration
}

// StatusSource produces UPS snapshots on demand.
// A nil snapshot means none is available right now.
type StatusSource interface {
	Status(ctx context.Context) ups.Snapshot
}

// Observer is notified after every publish cycle.
//
// Observers run synchronously on the loop goroutine and should be quick.
// A panicking observer is logged and does not affect the loop.
type Observer interface {
	Observe(ctx context.Context, c Cycle)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, c Cycle)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, c Cycle) {
	f(ctx, c)
}

// Logger is the logging interface used by the loop.
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

// Config holds the publish parameters, taken verbatim from MQTT config.
type Config struct {
	Topic    string
	QoS      byte
	Retained bool
}

// ConfigFrom extracts publish parameters from the MQTT configuration.
func ConfigFrom(cfg config.MQTTConfig) Config {
	return Config{
		Topic:    cfg.Topic,
		QoS:      byte(cfg.QoS), //nolint:gosec // Validated to 0-2 by config.Validate
		Retained: cfg.Retained,
	}
}

// Loop republishes UPS status to the broker once per refresh interval.
type Loop struct {
	session   Session
	source    StatusSource
	cfg       Config
	clock     clockwork.Clock
	logger    Logger
	observers []Observer
}

// Option customises a Loop.
type Option func(*Loop)

// WithClock sets the clock that paces ticks.
func WithClock(c clockwork.Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithLogger sets the loop logger.
func WithLogger(logger Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithObservers registers observers notified after each cycle.
func WithObservers(observers ...Observer) Option {
	return func(l *Loop) {
		l.observers = append(l.observers, observers...)
	}
}

// NewLoop creates a publish loop. It does not start it.
func NewLoop(session Session, source StatusSource, cfg Config, opts ...Option) *Loop {
	l := &Loop{
		session: session,
		source:  source,
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run ticks until ctx is cancelled.
//
// Each tick reconnects if needed, runs one publish cycle whatever the
// connect outcome was, then waits the session's refresh interval. A
// disconnected session is therefore retried once per interval, never faster.
func (l *Loop) Run(ctx context.Context) {
	interval := l.session.RefreshInterval()
	l.logger.Info("starting publish loop",
		"topic", l.cfg.Topic,
		"qos", l.cfg.QoS,
		"retained", l.cfg.Retained,
		"interval", interval,
	)

	for {
		if ctx.Err() != nil {
			l.logger.Info("publish loop stopped")
			return
		}

		l.Tick(ctx)

		select {
		case <-ctx.Done():
			l.logger.Info("publish loop stopped")
			return
		case <-l.clock.After(interval):
		}
	}
}

// Tick runs one loop iteration: reconnect if needed, then publish.
func (l *Loop) Tick(ctx context.Context) Result {
	if !l.session.IsConnected() {
		l.connect(ctx)
	}
	return l.PublishOnce(ctx)
}

// connect asks the session to reconnect. The session is fail-soft; a
// panicking implementation is still contained here.
func (l *Loop) connect(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("MQTT connection error", "panic", r)
		}
	}()

	if result := l.session.Connect(ctx); !result.Connected() {
		l.logger.Debug("reconnect attempt unsuccessful", "result", result)
	}
}

// PublishOnce runs a single publish cycle and notifies observers.
func (l *Loop) PublishOnce(ctx context.Context) Result {
	c := l.publish(ctx)
	l.notify(ctx, c)
	return c.Result
}

func (l *Loop) publish(ctx context.Context) Cycle {
	c := Cycle{
		At:    l.clock.Now(),
		Topic: l.cfg.Topic,
	}

	if !l.session.IsConnected() {
		l.logger.Warn("MQTT client not connected, skipping publish", "topic", l.cfg.Topic)
		c.Result = ResultNotConnected
		return c
	}

	snap := l.source.Status(ctx)
	if snap == nil {
		c.Result = ResultNoStatus
		return c
	}
	c.Snapshot = snap

	payload, err := snap.Encode()
	if err != nil {
		l.logger.Error("failed to encode UPS status", "error", err)
		c.Result = ResultEncodeFailed
		c.Err = err
		return c
	}
	c.Payload = payload

	err = l.safePublish(payload)
	c.Err = err

	var rcErr *mqtt.ReturnCodeError
	switch {
	case err == nil:
		l.logger.Debug("published UPS status", "topic", l.cfg.Topic, "payload", string(payload))
		c.Result = ResultPublished
	case errors.As(err, &rcErr):
		l.logger.Error("publish failed with code",
			"topic", l.cfg.Topic,
			"code", int(rcErr.Code),
			"reason", rcErr.Code.String(),
		)
		c.Result = ResultRejected
	default:
		l.logger.Error("MQTT publish error", "topic", l.cfg.Topic, "error", err)
		c.Result = ResultFailed
	}
	return c
}

// safePublish converts a panic in the publish call into an error.
func (l *Loop) safePublish(payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", mqtt.ErrPublishFailed, r)
		}
	}()
	return l.session.Publish(l.cfg.Topic, payload, l.cfg.QoS, l.cfg.Retained)
}

func (l *Loop) notify(ctx context.Context, c Cycle) {
	for _, o := range l.observers {
		l.observe(ctx, o, c)
	}
}

func (l *Loop) observe(ctx context.Context, o Observer, c Cycle) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("cycle observer panic recovered", "result", c.Result, "panic", r)
		}
	}()
	o.Observe(ctx, c)
}
