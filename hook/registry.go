package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/converged-computing/flux-mcp-server/jobevent"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type eventRecordedEntry struct {
	name string
	hook EventRecorded
}

type eventDroppedEntry struct {
	name string
	hook EventDropped
}

type deliveryFailedEntry struct {
	name string
	hook DeliveryFailed
}

type pollFailedEntry struct {
	name string
	hook PollFailed
}

type engineStoppedEntry struct {
	name string
	hook EngineStopped
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	eventRecorded  []eventRecordedEntry
	eventDropped   []eventDroppedEntry
	deliveryFailed []deliveryFailedEntry
	pollFailed     []pollFailedEntry
	engineStopped  []engineStoppedEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(EventRecorded); ok {
		r.eventRecorded = append(r.eventRecorded, eventRecordedEntry{name, h})
	}
	if h, ok := e.(EventDropped); ok {
		r.eventDropped = append(r.eventDropped, eventDroppedEntry{name, h})
	}
	if h, ok := e.(DeliveryFailed); ok {
		r.deliveryFailed = append(r.deliveryFailed, deliveryFailedEntry{name, h})
	}
	if h, ok := e.(PollFailed); ok {
		r.pollFailed = append(r.pollFailed, pollFailedEntry{name, h})
	}
	if h, ok := e.(EngineStopped); ok {
		r.engineStopped = append(r.engineStopped, engineStoppedEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitEventRecorded notifies all extensions that implement EventRecorded.
func (r *Registry) EmitEventRecorded(ctx context.Context, evt *jobevent.JobEvent, elapsed time.Duration) {
	for _, e := range r.eventRecorded {
		if err := e.hook.OnEventRecorded(ctx, evt, elapsed); err != nil {
			r.logHookError("OnEventRecorded", e.name, err)
		}
	}
}

// EmitEventDropped notifies all extensions that implement EventDropped.
func (r *Registry) EmitEventDropped(ctx context.Context, clusterName string, reason error) {
	for _, e := range r.eventDropped {
		if err := e.hook.OnEventDropped(ctx, clusterName, reason); err != nil {
			r.logHookError("OnEventDropped", e.name, err)
		}
	}
}

// EmitDeliveryFailed notifies all extensions that implement DeliveryFailed.
func (r *Registry) EmitDeliveryFailed(ctx context.Context, evt *jobevent.JobEvent, sendErr error) {
	for _, e := range r.deliveryFailed {
		if err := e.hook.OnDeliveryFailed(ctx, evt, sendErr); err != nil {
			r.logHookError("OnDeliveryFailed", e.name, err)
		}
	}
}

// EmitPollFailed notifies all extensions that implement PollFailed.
func (r *Registry) EmitPollFailed(ctx context.Context, clusterName string, pollErr error) {
	for _, e := range r.pollFailed {
		if err := e.hook.OnPollFailed(ctx, clusterName, pollErr); err != nil {
			r.logHookError("OnPollFailed", e.name, err)
		}
	}
}

// EmitEngineStopped notifies all extensions that implement EngineStopped.
func (r *Registry) EmitEngineStopped(ctx context.Context, clusterName string) {
	for _, e := range r.engineStopped {
		if err := e.hook.OnEngineStopped(ctx, clusterName); err != nil {
			r.logHookError("OnEngineStopped", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
