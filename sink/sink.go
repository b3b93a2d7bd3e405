// Package sink defines where ingested job events land. A sink either
// records into the local store or forwards upstream over the wire
// protocol; the engine does not know which it is driving.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/store"
)

// Sink accepts one normalized job event. Send either completes the
// event's persistence (or hand-off) fully or returns an error; there is
// no partially-sent state for the engine to reason about.
type Sink interface {
	Send(ctx context.Context, evt *jobevent.JobEvent) error
}

// Local records events into a store. Send is synchronous: when it
// returns nil the event is durably recorded.
type Local struct {
	store store.Store
}

var _ Sink = (*Local)(nil)

// NewLocal builds a sink over the given store.
func NewLocal(st store.Store) *Local {
	return &Local{store: st}
}

// Send records the event.
func (l *Local) Send(ctx context.Context, evt *jobevent.JobEvent) error {
	if err := l.store.RecordEvent(ctx, evt); err != nil {
		return fmt.Errorf("sink: record %s/%d: %w", evt.Cluster, evt.JobID, err)
	}
	return nil
}

// Forwarder delivers an event to a peer server. The client package
// implements this over the wire protocol with lazy connection.
type Forwarder interface {
	IngestEvent(ctx context.Context, clusterName string, evt *jobevent.JobEvent) error
}

// Remote forwards events upstream. Connection management lives in the
// forwarder; a dropped link surfaces here as a Send error, which the
// engine logs per event without halting the stream.
type Remote struct {
	fw     Forwarder
	logger *slog.Logger
}

var _ Sink = (*Remote)(nil)

// RemoteOption configures a Remote sink.
type RemoteOption func(*Remote)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RemoteOption {
	return func(r *Remote) { r.logger = logger }
}

// NewRemote builds a sink that forwards through fw.
func NewRemote(fw Forwarder, opts ...RemoteOption) *Remote {
	r := &Remote{fw: fw, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send forwards the event upstream.
func (r *Remote) Send(ctx context.Context, evt *jobevent.JobEvent) error {
	if err := r.fw.IngestEvent(ctx, evt.Cluster, evt); err != nil {
		r.logger.Warn("event forward failed",
			"cluster", evt.Cluster,
			"job_id", evt.JobID,
			"error", err)
		return fmt.Errorf("sink: forward %s/%d: %w", evt.Cluster, evt.JobID, err)
	}
	return nil
}
