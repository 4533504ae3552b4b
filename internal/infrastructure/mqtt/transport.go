package mqtt

import (
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/karolbe/ha-cp-ups/internal/infrastructure/config"
)

// Token tracks an asynchronous transport operation.
// pahomqtt.Token satisfies it.
type Token interface {
	Done() <-chan struct{}
	Error() error
}

// Transport is the broker client capability a Session drives.
//
// Implementations own their network goroutines and must make IsConnected
// safe to call while those goroutines run.
type Transport interface {
	// Connect initiates a connection. Failures may be reported immediately
	// through the returned token or later, once the token completes.
	Connect() Token

	IsConnected() bool

	// Publish sends one message and blocks until it is acknowledged or fails.
	Publish(topic string, qos byte, retained bool, payload []byte) error

	Disconnect(quiesce uint)
}

// pahoTransport implements Transport over a single paho client.
type pahoTransport struct {
	client         pahomqtt.Client
	publishTimeout time.Duration
}

// newPahoTransport builds the one paho client used for the life of the process.
func newPahoTransport(cfg config.MQTTConfig, id string, logger Logger) *pahoTransport {
	opts := buildClientOptions(cfg, id)

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	})

	return &pahoTransport{
		client:         pahomqtt.NewClient(opts),
		publishTimeout: defaultPublishTimeout,
	}
}

func (t *pahoTransport) Connect() Token {
	return t.client.Connect()
}

func (t *pahoTransport) IsConnected() bool {
	return t.client.IsConnected()
}

// Publish maps paho token outcomes onto ReturnCodeError and ErrPublishFailed.
func (t *pahoTransport) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := t.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(t.publishTimeout) {
		return &ReturnCodeError{Code: CodeTimeout}
	}
	if err := token.Error(); err != nil {
		if errors.Is(err, pahomqtt.ErrNotConnected) {
			return &ReturnCodeError{Code: CodeNoConnection, Err: err}
		}
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func (t *pahoTransport) Disconnect(quiesce uint) {
	t.client.Disconnect(quiesce)
}
