package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/queue"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type deliveryStartedEntry struct {
	name string
	hook DeliveryStarted
}

type deliverySucceededEntry struct {
	name string
	hook DeliverySucceeded
}

type deliveryRetryingEntry struct {
	name string
	hook DeliveryRetrying
}

type deliveryFailedEntry struct {
	name string
	hook DeliveryFailed
}

type deliverySkippedEntry struct {
	name string
	hook DeliverySkipped
}

type messageDeadLetteredEntry struct {
	name string
	hook MessageDeadLettered
}

type webhookDeactivatedEntry struct {
	name string
	hook WebhookDeactivated
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	deliveryStarted     []deliveryStartedEntry
	deliverySucceeded   []deliverySucceededEntry
	deliveryRetrying    []deliveryRetryingEntry
	deliveryFailed      []deliveryFailedEntry
	deliverySkipped     []deliverySkippedEntry
	messageDeadLettered []messageDeadLetteredEntry
	webhookDeactivated  []webhookDeactivatedEntry
	shutdown            []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(DeliveryStarted); ok {
		r.deliveryStarted = append(r.deliveryStarted, deliveryStartedEntry{name, h})
	}
	if h, ok := e.(DeliverySucceeded); ok {
		r.deliverySucceeded = append(r.deliverySucceeded, deliverySucceededEntry{name, h})
	}
	if h, ok := e.(DeliveryRetrying); ok {
		r.deliveryRetrying = append(r.deliveryRetrying, deliveryRetryingEntry{name, h})
	}
	if h, ok := e.(DeliveryFailed); ok {
		r.deliveryFailed = append(r.deliveryFailed, deliveryFailedEntry{name, h})
	}
	if h, ok := e.(DeliverySkipped); ok {
		r.deliverySkipped = append(r.deliverySkipped, deliverySkippedEntry{name, h})
	}
	if h, ok := e.(MessageDeadLettered); ok {
		r.messageDeadLettered = append(r.messageDeadLettered, messageDeadLetteredEntry{name, h})
	}
	if h, ok := e.(WebhookDeactivated); ok {
		r.webhookDeactivated = append(r.webhookDeactivated, webhookDeactivatedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Emitters
// ──────────────────────────────────────────────────

// EmitDeliveryStarted notifies all extensions that implement DeliveryStarted.
func (r *Registry) EmitDeliveryStarted(ctx context.Context, a *delivery.Attempt) {
	for _, e := range r.deliveryStarted {
		if err := e.hook.OnDeliveryStarted(ctx, a); err != nil {
			r.logHookError("OnDeliveryStarted", e.name, err)
		}
	}
}

// EmitDeliverySucceeded notifies all extensions that implement DeliverySucceeded.
func (r *Registry) EmitDeliverySucceeded(ctx context.Context, a *delivery.Attempt, elapsed time.Duration) {
	for _, e := range r.deliverySucceeded {
		if err := e.hook.OnDeliverySucceeded(ctx, a, elapsed); err != nil {
			r.logHookError("OnDeliverySucceeded", e.name, err)
		}
	}
}

// EmitDeliveryRetrying notifies all extensions that implement DeliveryRetrying.
func (r *Registry) EmitDeliveryRetrying(ctx context.Context, a *delivery.Attempt, nextRetryAt time.Time) {
	for _, e := range r.deliveryRetrying {
		if err := e.hook.OnDeliveryRetrying(ctx, a, nextRetryAt); err != nil {
			r.logHookError("OnDeliveryRetrying", e.name, err)
		}
	}
}

// EmitDeliveryFailed notifies all extensions that implement DeliveryFailed.
func (r *Registry) EmitDeliveryFailed(ctx context.Context, a *delivery.Attempt, deliveryErr error) {
	for _, e := range r.deliveryFailed {
		if err := e.hook.OnDeliveryFailed(ctx, a, deliveryErr); err != nil {
			r.logHookError("OnDeliveryFailed", e.name, err)
		}
	}
}

// EmitDeliverySkipped notifies all extensions that implement DeliverySkipped.
func (r *Registry) EmitDeliverySkipped(ctx context.Context, a *delivery.Attempt) {
	for _, e := range r.deliverySkipped {
		if err := e.hook.OnDeliverySkipped(ctx, a); err != nil {
			r.logHookError("OnDeliverySkipped", e.name, err)
		}
	}
}

// EmitMessageDeadLettered notifies all extensions that implement MessageDeadLettered.
func (r *Registry) EmitMessageDeadLettered(ctx context.Context, m *queue.Message, reason error) {
	for _, e := range r.messageDeadLettered {
		if err := e.hook.OnMessageDeadLettered(ctx, m, reason); err != nil {
			r.logHookError("OnMessageDeadLettered", e.name, err)
		}
	}
}

// EmitWebhookDeactivated notifies all extensions that implement WebhookDeactivated.
func (r *Registry) EmitWebhookDeactivated(ctx context.Context, c *webhook.Config) {
	for _, e := range r.webhookDeactivated {
		if err := e.hook.OnWebhookDeactivated(ctx, c); err != nil {
			r.logHookError("OnWebhookDeactivated", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a hook failure. Hook errors never interrupt delivery
// processing.
func (r *Registry) logHookError(hook, extension string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extension),
		slog.String("error", err.Error()),
	)
}
