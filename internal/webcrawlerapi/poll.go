package webcrawlerapi

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// pollLoop describes one submit-then-poll loop. Every call builds its own
// loop, so concurrent polls share nothing.
type pollLoop[T any] struct {
	kind     string
	jobID    string
	maxPolls int
	// check fetches the current result, its status and the server's delay hint.
	check    func(ctx context.Context) (T, JobStatus, time.Duration, error)
	terminal func(JobStatus) bool
	// delay picks the wait before the next poll from the server's hint.
	delay func(hint time.Duration) time.Duration
}

// poll runs loop.check until a terminal status or loop.maxPolls checks. When
// the budget runs out the last result is returned without an error. There is
// no wait after the final check.
func poll[T any](ctx context.Context, c *Client, loop pollLoop[T]) (T, error) {
	var (
		last   T
		status JobStatus
	)
	logger := c.logger.With(zap.String("kind", loop.kind), zap.String("job_id", loop.jobID))

	for attempt := 1; attempt <= loop.maxPolls; attempt++ {
		result, st, hint, err := loop.check(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		last, status = result, st

		if loop.terminal(status) {
			logger.Info("job finished", zap.String("status", string(status)), zap.Int("polls", attempt))
			c.observer.ObserveJob(loop.kind, string(status))
			return last, nil
		}
		if attempt == loop.maxPolls {
			break
		}

		wait := loop.delay(hint)
		logger.Debug("job pending",
			zap.Int("attempt", attempt),
			zap.String("status", string(status)),
			zap.Duration("delay", wait),
		)
		c.observer.ObservePoll(loop.kind, string(status), wait)
		if err := c.sleeper.Sleep(ctx, wait); err != nil {
			logger.Warn("polling interrupted", zap.Int("attempt", attempt), zap.Error(err))
			var zero T
			return zero, interruptedError(err)
		}
	}

	logger.Info("poll budget exhausted",
		zap.String("status", string(status)),
		zap.Int("max_polls", loop.maxPolls),
	)
	c.observer.ObserveJob(loop.kind, "exhausted")
	return last, nil
}

// hintOrDefault honors a positive server hint.
func (c *Client) hintOrDefault(hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}
	return c.cfg.PollDelay
}

// fixedDelay ignores the server hint.
func (c *Client) fixedDelay(time.Duration) time.Duration {
	return c.cfg.PollDelay
}
