package history

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/karolbe/ha-cp-ups/internal/publisher"
)

// pruneInterval is how often the recorder applies the retention window.
const pruneInterval = time.Hour

// Logger is the logging interface used by the recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Recorder writes every publish cycle to a Repository and prunes entries
// older than the retention window. It implements publisher.Observer.
//
// Storage errors are logged and never reach the publish loop.
type Recorder struct {
	repo      Repository
	retention time.Duration
	clock     clockwork.Clock
	logger    Logger

	mu        sync.Mutex
	lastPrune time.Time
}

// NewRecorder creates a recorder. A zero or negative retention keeps
// entries forever. clock and logger may be nil.
func NewRecorder(repo Repository, retention time.Duration, clock clockwork.Clock, logger Logger) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:      repo,
		retention: retention,
		clock:     clock,
		logger:    logger,
	}
}

// Observe records one publish cycle.
func (r *Recorder) Observe(ctx context.Context, c publisher.Cycle) {
	entry := Entry{
		PublishedAt: c.At,
		Topic:       c.Topic,
		Result:      c.Result.String(),
		Payload:     string(c.Payload),
	}
	if c.Err != nil {
		entry.Error = c.Err.Error()
	}

	if err := r.repo.Create(ctx, &entry); err != nil {
		r.logger.Warn("failed to record publish history", "result", entry.Result, "error", err)
	}

	r.prune(ctx)
}

// prune applies the retention window at most once per pruneInterval.
func (r *Recorder) prune(ctx context.Context) {
	if r.retention <= 0 {
		return
	}

	now := r.clock.Now()
	r.mu.Lock()
	if !r.lastPrune.IsZero() && now.Sub(r.lastPrune) < pruneInterval {
		r.mu.Unlock()
		return
	}
	r.lastPrune = now
	r.mu.Unlock()

	n, err := r.repo.Prune(ctx, now.Add(-r.retention))
	if err != nil {
		r.logger.Warn("failed to prune publish history", "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("pruned publish history", "removed", n, "retention", r.retention)
	}
}

var _ publisher.Observer = (*Recorder)(nil)
