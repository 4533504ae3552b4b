package ups

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/karolbe/ha-cp-ups/internal/infrastructure/config"
)

// Logger is the logging interface used by the status source.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Source reads UPS status by running the pwrstat CLI.
//
// Every call is bounded by the configured timeout, so a wedged pwrstatd
// cannot stall the publish loop for longer than that.
type Source struct {
	binary  string
	args    []string
	timeout time.Duration
	logger  Logger
	run     runFunc
}

// NewSource creates a status source from configuration.
func NewSource(cfg config.StatusConfig, logger Logger) *Source {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Source{
		binary:  cfg.Binary,
		args:    append([]string(nil), cfg.Args...),
		timeout: time.Duration(cfg.Timeout) * time.Second,
		logger:  logger,
		run:     runCommand,
	}
}

// Status returns the current UPS snapshot, or nil when none is available.
//
// Absence is the normal outcome of a transient device read failure; the
// reason is logged at debug level only.
func (s *Source) Status(ctx context.Context) Snapshot {
	snap, err := s.Read(ctx)
	if err != nil {
		s.logger.Debug("UPS status unavailable", "binary", s.binary, "error", err)
		return nil
	}
	return snap
}

// Read runs pwrstat once and parses its output.
func (s *Source) Read(ctx context.Context) (Snapshot, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.run(ctx, s.binary, s.args...)
	if err != nil {
		return nil, err
	}
	return Parse(out)
}

// runCommand runs the binary and returns stdout, folding stderr into the error.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // Binary comes from operator config
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s: %w: %s", ErrCommandFailed, name, err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCommandFailed, name, err)
	}
	return out, nil
}
