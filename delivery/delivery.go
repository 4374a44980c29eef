// Package delivery defines the delivery ledger: the DeliveryAttempt record,
// its status state machine, and the persistence contract that is the single
// source of truth for attempt counts and retry scheduling.
package delivery

import (
	"fmt"
	"time"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
)

// Status represents the lifecycle state of a delivery attempt.
type Status string

const (
	// StatusPending means the delivery has been created but no attempt
	// outcome has been recorded yet.
	StatusPending Status = "PENDING"
	// StatusSuccess means the endpoint returned 2xx. Terminal.
	StatusSuccess Status = "SUCCESS"
	// StatusRetryScheduled means the last attempt failed and another is
	// scheduled for NextRetryAt. Re-entrant.
	StatusRetryScheduled Status = "RETRY_SCHEDULED"
	// StatusMaxRetriesExceeded means the retry budget is exhausted or the
	// failure was classified non-retryable. Terminal; surfaced for
	// operator alerting via the DLQ.
	StatusMaxRetriesExceeded Status = "MAX_RETRIES_EXCEEDED"
	// StatusSkipped means the webhook was deactivated before a scheduled
	// attempt fired, so no call was made. Terminal.
	StatusSkipped Status = "SKIPPED"
)

// Terminal reports whether no transitions leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusMaxRetriesExceeded, StatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the state machine permits moving from s
// to next. PENDING and RETRY_SCHEDULED may move to any non-PENDING status;
// terminal statuses permit nothing.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() || next == StatusPending {
		return false
	}
	switch s {
	case StatusPending, StatusRetryScheduled:
		return true
	default:
		return false
	}
}

// Attempt is one webhook delivery lifecycle for one event: a single ledger
// row mutated only through state machine transitions. AttemptCount is the
// 1-indexed ordinal of the most recent HTTP attempt; it increases by
// exactly one per executed attempt and is never mutated after a terminal
// status is reached.
//
// Body holds the canonical signed payload so that scheduled retries
// re-derived from the ledger after a crash send byte-identical requests.
type Attempt struct {
	hookrelay.Entity

	ID             id.DeliveryID `json:"id"`
	WebhookID      id.WebhookID  `json:"webhook_id"`
	EventID        id.EventID    `json:"event_id"`
	CorrelationID  string        `json:"correlation_id"`
	EventType      event.Type    `json:"event_type"`
	Body           []byte        `json:"body"`
	Status         Status        `json:"status"`
	AttemptCount   int           `json:"attempt_count"`
	LastStatusCode int           `json:"last_status_code,omitempty"`
	LastError      string        `json:"last_error,omitempty"`
	NextRetryAt    *time.Time    `json:"next_retry_at,omitempty"`
}

// Transition moves the attempt to the next status, enforcing the state
// machine. Callers set AttemptCount, LastStatusCode, LastError, and
// NextRetryAt before persisting; Transition only guards the status change.
func (a *Attempt) Transition(next Status) error {
	if !a.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s (delivery %s)",
			hookrelay.ErrInvalidState, a.Status, next, a.ID.String())
	}
	a.Status = next
	if next != StatusRetryScheduled {
		a.NextRetryAt = nil
	}
	return nil
}
