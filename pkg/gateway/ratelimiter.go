package gateway

import (
	"errors"
	"sync"
	"time"
)

var (
	errRateLimited       = errors.New("rate limit exceeded")
	errTooManyConcurrent = errors.New("too many concurrent requests")
)

// rateWindow is the sliding window requestsPerMinute applies to
const rateWindow = time.Minute

// ClientRateLimiter implements sliding window rate limiting per client. A
// limit of zero or less disables that check.
type ClientRateLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	maxConcurrent     int
	requests          []time.Time
	inFlight          int
	now               func() time.Time
}

// NewClientRateLimiter creates a rate limiter with the given limits
func NewClientRateLimiter(requestsPerMinute, maxConcurrent int) *ClientRateLimiter {
	return &ClientRateLimiter{
		requestsPerMinute: requestsPerMinute,
		maxConcurrent:     maxConcurrent,
		now:               time.Now,
	}
}

// Acquire admits one request. A nil error must be paired with Release.
func (r *ClientRateLimiter) Acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	if r.maxConcurrent > 0 && r.inFlight >= r.maxConcurrent {
		return errTooManyConcurrent
	}
	if r.requestsPerMinute > 0 && len(r.requests) >= r.requestsPerMinute {
		return errRateLimited
	}

	r.requests = append(r.requests, now)
	r.inFlight++
	return nil
}

// Release ends a request admitted by Acquire
func (r *ClientRateLimiter) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight > 0 {
		r.inFlight--
	}
}

// Stats returns the requests in the current window and those in flight
func (r *ClientRateLimiter) Stats() (requests, inFlight int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(r.now())
	return len(r.requests), r.inFlight
}

// prune drops timestamps older than the window; requests is sorted
func (r *ClientRateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(r.requests) && !r.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.requests = append(r.requests[:0], r.requests[i:]...)
	}
}

// rateLimitError maps a limiter refusal to its RPC error
func rateLimitError(err error) *RPCError {
	code := RateLimitExceeded
	if errors.Is(err, errTooManyConcurrent) {
		code = AdmissionRejected
	}
	return NewRPCError(code, err.Error(), map[string]interface{}{"retryable": true})
}
