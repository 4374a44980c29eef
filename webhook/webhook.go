// Package webhook provides the webhook registry: configuration model,
// validation, persistence contract, and the management service used by the
// delivery engine and the admin API.
package webhook

import (
	"fmt"
	"net/url"
	"strings"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
)

// MinSecretLength is the minimum accepted length of a webhook signing secret.
const MinSecretLength = 32

// Config is a registered webhook endpoint: where to deliver, how to sign,
// and which event types to deliver.
//
// Deletion is logical: Active is set to false and delivery history is
// preserved. A config is never hard-deleted while attempts reference it.
type Config struct {
	hookrelay.Entity

	ID     id.WebhookID `json:"id"`
	URL    string       `json:"url"`
	Secret string       `json:"secret"`
	Events []event.Type `json:"events"`
	Active bool         `json:"active"`
}

// Validate checks the invariants required at creation time: HTTPS url,
// secret of at least MinSecretLength characters, and a non-empty set of
// known event types. Returns a *hookrelay.ValidationError on the first
// violation.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return hookrelay.NewValidationError("url", fmt.Sprintf("not a valid URL: %v", err))
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return hookrelay.NewValidationError("url", "scheme must be https")
	}
	if u.Host == "" {
		return hookrelay.NewValidationError("url", "missing host")
	}

	if len(c.Secret) < MinSecretLength {
		return hookrelay.NewValidationError("secret",
			fmt.Sprintf("must be at least %d characters", MinSecretLength))
	}

	if len(c.Events) == 0 {
		return hookrelay.NewValidationError("events", "must subscribe to at least one event type")
	}
	seen := make(map[event.Type]struct{}, len(c.Events))
	for _, t := range c.Events {
		if !t.Valid() {
			return hookrelay.NewValidationError("events", fmt.Sprintf("unknown event type %q", t))
		}
		if _, dup := seen[t]; dup {
			return hookrelay.NewValidationError("events", fmt.Sprintf("duplicate event type %q", t))
		}
		seen[t] = struct{}{}
	}

	return nil
}

// SubscribedTo reports whether the webhook is subscribed to the given
// event type.
func (c *Config) SubscribedTo(t event.Type) bool {
	for _, e := range c.Events {
		if e == t {
			return true
		}
	}
	return false
}
