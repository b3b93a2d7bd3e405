package cluster

import (
	"context"
	"fmt"
	"maps"
	"sync"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
)

// TypeLocal is the type tag for handles backed by a direct scheduler
// connection.
const TypeLocal = "local"

// LocalHandle talks to a scheduler through a dialed SchedulerConn. The
// connection is re-established lazily if it has been torn down.
type LocalHandle struct {
	name   string
	cfg    map[string]string
	dialer Dialer
	gate   fluxmcp.AuthGate

	mu   sync.Mutex
	conn SchedulerConn
}

var _ Handle = (*LocalHandle)(nil)

// NewLocalHandle builds an unconnected local handle. The config must
// carry a "uri" entry for the dialer.
func NewLocalHandle(name string, cfg map[string]string, deps Deps) (Handle, error) {
	if deps.Dialer == nil {
		return nil, fmt.Errorf("cluster: local handle %q: no dialer configured", name)
	}
	if cfg["uri"] == "" {
		return nil, fmt.Errorf("cluster: local handle %q: config missing uri", name)
	}

	gate := deps.Gate
	if gate == nil {
		gate = fluxmcp.AllowAll{}
	}

	return &LocalHandle{
		name:   name,
		cfg:    cfg,
		dialer: deps.Dialer,
		gate:   gate,
	}, nil
}

// Connect dials the scheduler if no live connection exists.
func (h *LocalHandle) Connect(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ensureLocked()
}

func (h *LocalHandle) ensureLocked() error {
	if h.conn != nil {
		return nil
	}

	conn, err := h.dialer(h.cfg["uri"])
	if err != nil {
		return fmt.Errorf("cluster: dial %q: %w: %v", h.name, fluxmcp.ErrConnect, err)
	}
	h.conn = conn
	return nil
}

// ensure returns a live connection, dialing if necessary.
func (h *LocalHandle) ensure() (SchedulerConn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureLocked(); err != nil {
		return nil, err
	}
	return h.conn, nil
}

// Submit submits a job after the gate clears the caller.
func (h *LocalHandle) Submit(ctx context.Context, spec map[string]any, auth fluxmcp.AuthContext) (int64, error) {
	if !h.gate.Authorize(ctx, auth, h.name) {
		return 0, fmt.Errorf("cluster: submit on %q as %q: %w", h.name, auth.UserID, fluxmcp.ErrUnauthorized)
	}

	conn, err := h.ensure()
	if err != nil {
		return 0, err
	}
	return conn.Submit(ctx, spec)
}

// Cancel cancels a job after the gate clears the caller.
func (h *LocalHandle) Cancel(ctx context.Context, jobID int64, auth fluxmcp.AuthContext) error {
	if !h.gate.Authorize(ctx, auth, h.name) {
		return fmt.Errorf("cluster: cancel on %q as %q: %w", h.name, auth.UserID, fluxmcp.ErrUnauthorized)
	}

	conn, err := h.ensure()
	if err != nil {
		return err
	}
	return conn.Cancel(ctx, jobID)
}

// JobInfo returns the scheduler's view of a job after the gate clears
// the caller.
func (h *LocalHandle) JobInfo(ctx context.Context, jobID int64, auth fluxmcp.AuthContext) (map[string]any, error) {
	if !h.gate.Authorize(ctx, auth, h.name) {
		return nil, fmt.Errorf("cluster: job info on %q as %q: %w", h.name, auth.UserID, fluxmcp.ErrUnauthorized)
	}

	conn, err := h.ensure()
	if err != nil {
		return nil, err
	}
	return conn.JobInfo(ctx, jobID)
}

// Events opens the journal stream.
func (h *LocalHandle) Events() (EventSource, error) {
	conn, err := h.ensure()
	if err != nil {
		return nil, err
	}
	return conn.Events()
}

// Close tears down the connection. The handle may be reconnected later.
func (h *LocalHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}

// Type returns "local".
func (h *LocalHandle) Type() string { return TypeLocal }

// Config returns a copy of the registration config.
func (h *LocalHandle) Config() map[string]string { return maps.Clone(h.cfg) }
