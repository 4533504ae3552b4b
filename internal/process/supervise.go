package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

const (
	// maxHealthFailures consecutive failed checks kill the process.
	maxHealthFailures = 3

	healthCheckTimeout = 5 * time.Second
	killWaitTimeout    = 5 * time.Second
)

var errUnhealthy = errors.New("health check failed")

// backoff doubles the restart delay per attempt, capped at max.
type backoff struct {
	base time.Duration
	max  time.Duration
}

// delay returns the wait before restart number attempt (1-based).
func (b backoff) delay(attempt int) time.Duration {
	d := b.base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.max {
			return b.max
		}
	}
	return d
}

// supervise waits on the current instance and restarts it until Stop, ctx
// cancellation, a disabled or exhausted restart policy, or a failed spawn.
func (m *Manager) supervise(ctx context.Context) {
	defer close(m.done)

	for {
		m.mu.RLock()
		cmd := m.cmd
		m.mu.RUnlock()

		if !m.recordExit(m.wait(ctx, cmd)) {
			return
		}
		if !m.restart(ctx) {
			return
		}
	}
}

// wait blocks until the process exits. With a health check configured the
// process is killed after maxHealthFailures consecutive failures.
func (m *Manager) wait(ctx context.Context, cmd *exec.Cmd) error {
	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	if m.config.HealthCheckFunc == nil {
		return <-exited
	}

	ticker := m.clock.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case err := <-exited:
			return err
		case <-ctx.Done():
			// CommandContext kills the process; reap it.
			return <-exited
		case <-ticker.Chan():
		}

		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := m.config.HealthCheckFunc(checkCtx)
		cancel()

		if err == nil {
			if failures > 0 {
				m.logger.Info("health check recovered", "name", m.config.Name, "previous_failures", failures)
			}
			failures = 0
			continue
		}

		failures++
		m.logger.Warn("health check failed",
			"name", m.config.Name,
			"error", err,
			"consecutive_failures", failures,
		)
		if failures < maxHealthFailures {
			continue
		}

		m.logger.Error("process unhealthy, killing it", "name", m.config.Name, "failures", failures)
		cmd.Process.Kill() //nolint:errcheck // Exit is observed on exited
		select {
		case <-exited:
		case <-time.After(killWaitTimeout):
			m.logger.Error("process did not exit after SIGKILL", "name", m.config.Name)
		}
		return fmt.Errorf("%w %d times in a row: %w", errUnhealthy, failures, err)
	}
}

// recordExit updates state after the process ended and reports whether a
// restart should be attempted.
func (m *Manager) recordExit(err error) bool {
	m.mu.Lock()
	requested := m.stopRequested
	ranFor := m.clock.Since(m.startTime)
	if requested {
		m.status = StatusStopped
	} else {
		m.status = StatusFailed
		m.lastError = err
		if ranFor >= m.config.StableThreshold {
			m.restartCount = 0
		}
	}
	m.mu.Unlock()

	if requested {
		m.logger.Info("process stopped", "name", m.config.Name)
		if m.config.OnStop != nil {
			m.config.OnStop(nil)
		}
		return false
	}

	m.logger.Warn("process exited unexpectedly",
		"name", m.config.Name,
		"error", err,
		"uptime", ranFor,
	)
	if m.config.OnStop != nil {
		m.config.OnStop(err)
	}

	if !m.config.RestartOnFailure {
		m.logger.Info("restart disabled, leaving process down", "name", m.config.Name)
		return false
	}
	return true
}

// restart waits out the backoff delay and spawns a new instance. It reports
// whether supervision continues.
func (m *Manager) restart(ctx context.Context) bool {
	m.mu.Lock()
	if limit := m.config.MaxRestartAttempts; limit > 0 && m.restartCount >= limit {
		m.mu.Unlock()
		m.logger.Error("max restart attempts reached, giving up",
			"name", m.config.Name,
			"attempts", limit,
		)
		return false
	}
	m.restartCount++
	attempt := m.restartCount
	m.mu.Unlock()

	delay := m.policy.delay(attempt)
	m.logger.Info("restarting process",
		"name", m.config.Name,
		"attempt", attempt,
		"delay", delay,
	)

	select {
	case <-ctx.Done():
		return false
	case <-m.clock.After(delay):
	}

	m.mu.Lock()
	if m.stopRequested {
		m.status = StatusStopped
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	if err := m.spawn(ctx); err != nil {
		m.logger.Error("failed to restart process", "name", m.config.Name, "error", err)
		m.mu.Lock()
		m.lastError = err
		m.mu.Unlock()
		return false
	}
	return true
}
