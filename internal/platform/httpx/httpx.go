package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusCoder is implemented by errors that carry an upstream status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// Backoff is a bounded exponential retry schedule. Delays start at Base,
// double per retry and never exceed Max (a Retry-After header included).
type Backoff struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
}

// Attempt performs one try. n starts at 0. The response may be nil and is
// only read for its Retry-After header.
type Attempt func(ctx context.Context, n int) (*http.Response, error)

// RetryNotice is called before each wait.
type RetryNotice func(n int, wait time.Duration, err error)

// Retry runs fn until it succeeds, returns a non-retryable error or the
// schedule runs out. The last error is returned as is.
func Retry(ctx context.Context, b Backoff, fn Attempt, notify RetryNotice) error {
	delay := b.Base
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := fn(ctx, n)
		if err == nil {
			return nil
		}
		if n >= b.MaxRetries || !IsRetryableError(err) {
			return err
		}

		wait := jitter(retryAfter(resp, delay, b.Max))
		if notify != nil {
			notify(n, wait, err)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
}

func IsRetryableHTTPStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	// Caller cancellation is final.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

func retryAfter(resp *http.Response, fallback, max time.Duration) time.Duration {
	wait := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && wait > max {
		wait = max
	}
	return wait
}

// jitter spreads base by +-20%.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	spread := float64(base) * 0.2
	return time.Duration(float64(base) - spread + rand.Float64()*2*spread)
}
