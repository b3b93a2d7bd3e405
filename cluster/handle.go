package cluster

import (
	"context"
	"errors"
	"time"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
)

// ErrSourceClosed is returned by EventSource.Poll after Close.
var ErrSourceClosed = errors.New("cluster: event source closed")

// EventSource streams raw job journal entries from one cluster.
type EventSource interface {
	// Poll blocks up to timeout for the next journal entry. A quiet
	// timeout returns (nil, nil); callers treat that as idle, not
	// failure.
	Poll(ctx context.Context, timeout time.Duration) (map[string]any, error)

	// Close tears down the stream. Subsequent Polls return
	// ErrSourceClosed.
	Close() error
}

// SchedulerConn is the opaque connection to one scheduler instance.
// Implementations wrap whatever transport reaches the cluster; the rest
// of the system only sees this surface.
type SchedulerConn interface {
	// Submit sends a job specification and returns the scheduler-assigned
	// job ID.
	Submit(ctx context.Context, spec map[string]any) (int64, error)

	// Cancel requests cancellation of a job.
	Cancel(ctx context.Context, jobID int64) error

	// JobInfo returns the scheduler's current view of a job.
	JobInfo(ctx context.Context, jobID int64) (map[string]any, error)

	// Events opens the job journal stream.
	Events() (EventSource, error)

	// Close tears down the connection.
	Close() error
}

// Dialer establishes a SchedulerConn from a connection URI.
type Dialer func(uri string) (SchedulerConn, error)

// Handle is the gated control surface for one registered cluster.
// Implementations consult the auth gate on every caller-facing
// operation and return fluxmcp.ErrUnauthorized as a structured
// rejection, never a panic.
type Handle interface {
	// Connect establishes (or re-establishes) the underlying transport.
	Connect(ctx context.Context) error

	// Submit submits a job on behalf of the caller.
	Submit(ctx context.Context, spec map[string]any, auth fluxmcp.AuthContext) (int64, error)

	// Cancel cancels a job on behalf of the caller.
	Cancel(ctx context.Context, jobID int64, auth fluxmcp.AuthContext) error

	// JobInfo returns the scheduler's live view of a job.
	JobInfo(ctx context.Context, jobID int64, auth fluxmcp.AuthContext) (map[string]any, error)

	// Events opens the journal stream for the engine. Not gated: the
	// engine is infrastructure, not a caller.
	Events() (EventSource, error)

	// Close releases the transport.
	Close() error

	// Type returns the handle's type tag ("local", "remote", ...).
	Type() string

	// Config returns the registration config for diagnostics.
	Config() map[string]string
}

// Factory builds an unconnected Handle from a registration config.
type Factory func(name string, cfg map[string]string, deps Deps) (Handle, error)

// Deps carries the shared collaborators handle factories may need.
type Deps struct {
	Gate   fluxmcp.AuthGate
	Dialer Dialer
	Remote RemoteDialer
}

// Info describes one registered cluster.
type Info struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Config map[string]string `json:"config,omitempty"`
}
