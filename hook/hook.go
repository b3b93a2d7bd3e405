// Package hook defines the extension system for the ingestion pipeline.
// Extensions are notified of lifecycle events (event recorded, event
// dropped, delivery failed, engine stopped) and can react to them —
// logging, metrics, tracing.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/converged-computing/flux-mcp-server/jobevent"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// EventRecorded is called after an event lands in the sink.
type EventRecorded interface {
	OnEventRecorded(ctx context.Context, evt *jobevent.JobEvent, elapsed time.Duration) error
}

// EventDropped is called when a journal entry is discarded before
// normalization completes (no job ID, malformed envelope).
type EventDropped interface {
	OnEventDropped(ctx context.Context, clusterName string, reason error) error
}

// DeliveryFailed is called when the sink rejects an event. The event is
// lost; the stream continues.
type DeliveryFailed interface {
	OnDeliveryFailed(ctx context.Context, evt *jobevent.JobEvent, err error) error
}

// PollFailed is called when the poll loop hits an unexpected transport
// failure and is about to back off.
type PollFailed interface {
	OnPollFailed(ctx context.Context, clusterName string, err error) error
}

// EngineStopped is called once per engine after its worker drains.
type EngineStopped interface {
	OnEngineStopped(ctx context.Context, clusterName string) error
}
