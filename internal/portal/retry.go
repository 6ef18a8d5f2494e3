package portal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retrying wraps a Connector so that connects and reads are retried with
// a linear back-off (backoff, 2×backoff, ...). Refused credentials,
// unknown providers or periods and context errors are returned at once.
type Retrying struct {
	next     Connector
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// NewRetrying makes at most attempts tries per operation.
func NewRetrying(next Connector, attempts int, backoff time.Duration, logger *slog.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, attempts: attempts, backoff: backoff, logger: logger}
}

func (r *Retrying) Connect(ctx context.Context, creds Credentials) (Client, error) {
	var client Client
	err := r.do(ctx, "connect", func(ctx context.Context) (err error) {
		client, err = r.next.Connect(ctx, creds)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &retryingClient{Client: client, r: r}, nil
}

func (r *Retrying) do(ctx context.Context, op string, f retry.RetryFunc) error {
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(r.attempts-1), linear(r.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := f(ctx)
		if err == nil || permanent(err) {
			return err
		}
		r.logger.Warn("portal call failed",
			"op", op, "attempt", attempt, "max_attempts", r.attempts, "error", err)
		return retry.RetryableError(err)
	})
}

func linear(base time.Duration) retry.Backoff {
	var n int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return time.Duration(n) * base, false
	})
}

func permanent(err error) bool {
	return errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrUnknownProvider) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

type retryingClient struct {
	Client
	r *Retrying
}

func (c *retryingClient) Homework(ctx context.Context, from, to time.Time) (items []Homework, err error) {
	err = c.r.do(ctx, "homework", func(ctx context.Context) (err error) {
		items, err = c.Client.Homework(ctx, from, to)
		return err
	})
	return items, err
}

func (c *retryingClient) Lessons(ctx context.Context, from, to time.Time) (items []Lesson, err error) {
	err = c.r.do(ctx, "lessons", func(ctx context.Context) (err error) {
		items, err = c.Client.Lessons(ctx, from, to)
		return err
	})
	return items, err
}

func (c *retryingClient) Grades(ctx context.Context, period string) (items []Grade, err error) {
	err = c.r.do(ctx, "grades", func(ctx context.Context) (err error) {
		items, err = c.Client.Grades(ctx, period)
		return err
	})
	return items, err
}
