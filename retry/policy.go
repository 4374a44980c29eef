// Package retry decides what happens after a failed delivery attempt and
// re-arms scheduled retries from the ledger.
//
// The policy classifies failures: transport errors, timeouts, and 5xx
// responses are retryable; 4xx responses other than 408 and 429 are not,
// because a request the endpoint has already rejected as malformed or
// unauthorized will not succeed by repetition. The sweeper periodically
// claims due RETRY_SCHEDULED attempts from the ledger and hands them back
// to the delivery engine, so scheduled retries survive a process restart
// with no in-memory timer state.
package retry

import (
	"net/http"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/backoff"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
)

// Outcome is the result of one HTTP delivery attempt. Exactly one of
// StatusCode and Err is meaningful: Err is set for transport failures and
// timeouts where no response was received, StatusCode for completed
// requests with a non-2xx response.
type Outcome struct {
	StatusCode int
	Err        error
}

// Policy decides whether a failed attempt is retried and when.
type Policy struct {
	// MaxRetries is the total attempt budget per delivery.
	MaxRetries int

	// Backoff computes the delay before each retry.
	Backoff backoff.Strategy

	// RetryClientErrors makes 4xx responses other than 408 and 429
	// retryable.
	RetryClientErrors bool
}

// NewPolicy creates a policy with the given retry budget and backoff.
func NewPolicy(maxRetries int, bo backoff.Strategy) Policy {
	return Policy{MaxRetries: maxRetries, Backoff: bo}
}

// Retryable reports whether the failure described by o may succeed on a
// later attempt.
func (p Policy) Retryable(o Outcome) bool {
	if o.Err != nil {
		// Connection failures and timeouts say nothing about the request.
		return true
	}
	switch {
	case o.StatusCode >= 500:
		return true
	case o.StatusCode == http.StatusRequestTimeout, o.StatusCode == http.StatusTooManyRequests:
		return true
	case o.StatusCode >= 400:
		return p.RetryClientErrors
	default:
		// Unexpected non-error, non-2xx response (3xx): the endpoint is
		// misconfigured, which may be transient.
		return true
	}
}

// Resolve transitions a failed attempt to its next status. AttemptCount
// must already reflect the attempt that just failed. Returns the next
// retry time when the attempt was rescheduled, nil when it is terminal.
func (p Policy) Resolve(a *delivery.Attempt, o Outcome, now time.Time) (*time.Time, error) {
	if p.Retryable(o) && a.AttemptCount < p.MaxRetries {
		if err := a.Transition(delivery.StatusRetryScheduled); err != nil {
			return nil, err
		}
		next := now.Add(p.Backoff.Delay(a.AttemptCount))
		a.NextRetryAt = &next
		return &next, nil
	}

	if err := a.Transition(delivery.StatusMaxRetriesExceeded); err != nil {
		return nil, err
	}
	return nil, nil
}
