package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/testcontainers/testcontainers-go/wait"
)

// Sentinel is the line GitLab's omnibus image logs once reconfiguration is done.
const Sentinel = "gitlab Reconfigured!"

// ErrNotReconfigured is returned when the sentinel does not appear before the timeout.
var ErrNotReconfigured = errors.New("container: gitlab did not reconfigure")

var (
	_ wait.Strategy        = (*ReconfiguredStrategy)(nil)
	_ wait.StrategyTimeout = (*ReconfiguredStrategy)(nil)
)

// ReconfiguredStrategy waits until the container log contains [Sentinel].
//
// The whole log is re-read on every poll. Progress is reported through the
// logger at info level so long startups are visible.
type ReconfiguredStrategy struct {
	sentinel     []byte
	timeout      time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

// ForReconfigured returns a strategy with the default timeout and poll interval.
func ForReconfigured() *ReconfiguredStrategy {
	return &ReconfiguredStrategy{
		sentinel:     []byte(Sentinel),
		timeout:      DefaultStartupTimeout,
		pollInterval: DefaultPollInterval,
		logger:       slog.New(slog.DiscardHandler),
	}
}

// WithSentinel overrides the log line to wait for.
func (s *ReconfiguredStrategy) WithSentinel(sentinel string) *ReconfiguredStrategy {
	s.sentinel = []byte(sentinel)
	return s
}

// WithStartupTimeout sets the overall deadline.
func (s *ReconfiguredStrategy) WithStartupTimeout(timeout time.Duration) *ReconfiguredStrategy {
	s.timeout = timeout
	return s
}

// WithPollInterval sets the pause between polls.
func (s *ReconfiguredStrategy) WithPollInterval(interval time.Duration) *ReconfiguredStrategy {
	s.pollInterval = interval
	return s
}

// WithLogger sets the progress logger.
func (s *ReconfiguredStrategy) WithLogger(logger *slog.Logger) *ReconfiguredStrategy {
	s.logger = logger
	return s
}

// Timeout implements wait.StrategyTimeout.
func (s *ReconfiguredStrategy) Timeout() *time.Duration {
	return &s.timeout
}

// String implements fmt.Stringer.
func (s *ReconfiguredStrategy) String() string {
	return fmt.Sprintf("log output %q", s.sentinel)
}

// WaitUntilReady implements wait.Strategy.
func (s *ReconfiguredStrategy) WaitUntilReady(ctx context.Context, target wait.StrategyTarget) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return errors.Join(
				fmt.Errorf("%w after %s", ErrNotReconfigured, time.Since(start).Round(time.Second)),
				lastErr,
				ctx.Err(),
			)
		case <-timer.C:
		}

		ready, err := s.check(ctx, target)
		switch {
		case err != nil:
			lastErr = err
			s.logger.Debug("reading container logs failed", slog.Any("error", err))
		case ready:
			s.logger.Info("gitlab reconfigured",
				slog.Duration("elapsed", time.Since(start).Round(time.Second)))
			return nil
		default:
			s.logger.Info("waiting for GitLab to reconfigure",
				slog.Int("elapsed_seconds", int(time.Since(start).Seconds())))
		}

		timer.Reset(s.pollInterval)
	}
}

func (s *ReconfiguredStrategy) check(ctx context.Context, target wait.StrategyTarget) (bool, error) {
	reader, err := target.Logs(ctx)
	if err != nil {
		return false, fmt.Errorf("get logs: %w", err)
	}
	defer reader.Close()

	b, err := io.ReadAll(reader)
	if err != nil {
		return false, fmt.Errorf("read logs: %w", err)
	}
	return bytes.Contains(b, s.sentinel), nil
}
