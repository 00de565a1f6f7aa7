package remote

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
	sleeper  func(time.Duration)
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 3, base: time.Second, max: 10 * time.Second}
}

// run calls op until it succeeds, fails permanently or attempts run out, and
// returns how many tries were made with the last error.
func (p retryPolicy) run(ctx context.Context, op func() error) (int, error) {
	limit := max(p.attempts, 1)
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || attempt == limit || ctx.Err() != nil || !transient(err) {
			if err != nil && ctx.Err() != nil {
				return attempt, ctx.Err()
			}
			return attempt, err
		}
		if err := p.wait(ctx, p.delay(attempt, err)); err != nil {
			return attempt, err
		}
	}
}

// delay is Retry-After when present, else base doubled per prior attempt,
// both capped at max.
func (p retryPolicy) delay(attempt int, err error) time.Duration {
	ceiling := p.max
	if ceiling <= 0 {
		ceiling = defaultRetryPolicy().max
	}
	var se *statusError
	if errors.As(err, &se) && se.retryAfter > 0 {
		return min(se.retryAfter, ceiling)
	}
	d := p.base
	for i := 1; i < attempt && d > 0 && d < ceiling; i++ {
		d *= 2
	}
	return min(max(d, 0), ceiling)
}

func (p retryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleeper != nil {
		p.sleeper(d)
		return ctx.Err()
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusRequestTimeout ||
			se.code == http.StatusTooManyRequests ||
			se.code >= http.StatusInternalServerError
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// parseRetryAfter accepts delta-seconds or an HTTP date; anything else is 0.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0)
	}
	return 0
}
