package mqtt

import (
	"fmt"
	"sync"
)

// stubToken is a Token whose completion is controlled by the test.
type stubToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *stubToken {
	ch := make(chan struct{})
	close(ch)
	return &stubToken{done: ch, err: err}
}

func pendingToken() *stubToken {
	return &stubToken{done: make(chan struct{})}
}

func (t *stubToken) Done() <-chan struct{} { return t.done }
func (t *stubToken) Error() error          { return t.err }

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// stubTransport is an in-memory Transport.
type stubTransport struct {
	mu sync.Mutex

	connected bool

	// connectToken is returned by Connect. nil means a completed token
	// that also flips the transport to connected.
	connectToken *stubToken
	connectPanic any

	publishErr   error
	publishPanic any

	connectCalls int
	disconnects  int
	published    []publishedMessage
}

func (s *stubTransport) Connect() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectCalls++
	if s.connectPanic != nil {
		panic(s.connectPanic)
	}
	if s.connectToken == nil {
		s.connected = true
		return doneToken(nil)
	}
	return s.connectToken
}

func (s *stubTransport) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *stubTransport) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *stubTransport) Publish(topic string, qos byte, retained bool, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishPanic != nil {
		panic(s.publishPanic)
	}
	if s.publishErr != nil {
		return s.publishErr
	}
	s.published = append(s.published, publishedMessage{
		topic:    topic,
		qos:      qos,
		retained: retained,
		payload:  string(payload),
	})
	return nil
}

func (s *stubTransport) Disconnect(uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	s.connected = false
}

func (s *stubTransport) messages() []publishedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]publishedMessage(nil), s.published...)
}

// recordingLogger captures log entries by level.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf("%s %s %v", level, msg, args))
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args...) }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if len(e) > len(level) && e[:len(level)+1] == level+" " {
			n++
		}
	}
	return n
}
