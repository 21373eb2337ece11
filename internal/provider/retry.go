package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryPolicy controls how transient provider failures are retried.
type RetryPolicy struct {
	MaxAttempts    int
	RateLimitWaits []time.Duration
	ServerWaits    []time.Duration
}

// DefaultRetryPolicy waits out rate limits longer than server errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		RateLimitWaits: []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second},
		ServerWaits:    []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second},
	}
}

// Do runs call until it succeeds, fails permanently or runs out of attempts.
// Waits are abandoned when ctx is done.
func (p RetryPolicy) Do(ctx context.Context, call func(context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = call(ctx); err == nil {
			return nil
		}
		var waits []time.Duration
		switch {
		case isRateLimitError(err):
			waits = p.RateLimitWaits
		case isServerError(err):
			waits = p.ServerWaits
		default:
			return err
		}
		if attempt == attempts-1 {
			break
		}
		if err := sleep(ctx, waitFor(waits, attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

func waitFor(waits []time.Duration, attempt int) time.Duration {
	if len(waits) == 0 {
		return 0
	}
	if attempt >= len(waits) {
		return waits[len(waits)-1]
	}
	return waits[attempt]
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRateLimitError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "resource_exhausted")
}

func isServerError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "500") ||
		strings.Contains(s, "502") ||
		strings.Contains(s, "503") ||
		strings.Contains(s, "internal server error") ||
		strings.Contains(s, "server_error") ||
		strings.Contains(s, "unavailable")
}
