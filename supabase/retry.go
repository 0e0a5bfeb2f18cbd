package supabase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

// =============================================================================
// Retry Policy
// =============================================================================

// RetryPolicy retries idempotent reads (GET and HEAD) that fail with a
// network timeout or a retryable status. Writes are never retried: an order
// insert that timed out may still have landed.
type RetryPolicy struct {
	// MaxRetries is the number of extra attempts after the first.
	MaxRetries int
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration
	// Jitter adds randomness to backoff (0.0 to 1.0)
	Jitter float64
	// RetryableStatusCodes are retried; anything else is returned as is.
	RetryableStatusCodes []int

	// FailureThreshold consecutive failed reads open the circuit; zero
	// disables the breaker.
	FailureThreshold int
	// OpenTimeout is how long an open circuit rejects reads before letting
	// one through.
	OpenTimeout time.Duration
}

// DefaultRetryPolicy suits storefront page loads: a short retry budget, then
// fail fast while the backend is down.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Jitter:         0.1,
		RetryableStatusCodes: []int{
			http.StatusTooManyRequests,    // 429
			http.StatusBadGateway,         // 502
			http.StatusServiceUnavailable, // 503
			http.StatusGatewayTimeout,     // 504
		},
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// ErrCircuitOpen is returned for reads while the circuit is open.
var ErrCircuitOpen = errors.New("supabase: circuit breaker is open")

func (p *RetryPolicy) backoff(attempt int) time.Duration {
	d := float64(p.InitialBackoff) * math.Pow(2, float64(attempt-1))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

func (p *RetryPolicy) retryableStatus(code int) bool {
	for _, c := range p.RetryableStatusCodes {
		if code == c {
			return true
		}
	}
	return false
}

func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// =============================================================================
// Circuit Breaker
// =============================================================================

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

type breaker struct {
	mu        sync.Mutex
	threshold int
	timeout   time.Duration
	state     circuitState
	failures  int
	openedAt  time.Time
	now       func() time.Time
}

func (b *breaker) allow() error {
	if b.threshold <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == circuitOpen {
		if b.now().Sub(b.openedAt) < b.timeout {
			return ErrCircuitOpen
		}
		b.state = circuitHalfOpen
	}
	return nil
}

func (b *breaker) success() {
	if b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	b.state = circuitClosed
	b.failures = 0
	b.mu.Unlock()
}

func (b *breaker) failure() {
	if b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.state == circuitHalfOpen || b.failures >= b.threshold {
		b.state = circuitOpen
		b.openedAt = b.now()
	}
}

// =============================================================================
// Transport
// =============================================================================

// retryTransport applies a RetryPolicy to an underlying RoundTripper.
type retryTransport struct {
	base    http.RoundTripper
	policy  *RetryPolicy
	breaker *breaker
}

func newRetryTransport(base http.RoundTripper, policy *RetryPolicy) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{
		base:   base,
		policy: policy,
		breaker: &breaker{
			threshold: policy.FailureThreshold,
			timeout:   policy.OpenTimeout,
			now:       time.Now,
		},
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return t.base.RoundTrip(req)
	}
	if err := t.breaker.allow(); err != nil {
		return nil, err
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(t.policy.backoff(attempt)):
			}
		}

		resp, err = t.base.RoundTrip(req.Clone(req.Context()))
		last := attempt >= t.policy.MaxRetries
		switch {
		case err != nil:
			if last || !retryableError(err) {
				t.breaker.failure()
				return nil, err
			}
		case t.policy.retryableStatus(resp.StatusCode):
			if last {
				t.breaker.failure()
				return resp, nil
			}
			resp.Body.Close()
		default:
			t.breaker.success()
			return resp, nil
		}
	}
}
