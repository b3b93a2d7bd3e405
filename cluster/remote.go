package cluster

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
)

// TypeRemote is the type tag for handles that proxy control operations
// to a peer server over the wire protocol.
const TypeRemote = "remote"

// ErrNoEventStream is returned by RemoteHandle.Events: remote clusters
// are polled at their own edge, and their events arrive through ingest
// forwarding rather than a journal stream here.
var ErrNoEventStream = errors.New("cluster: remote handle has no event stream")

// RemoteConn is the subset of the wire client a remote handle uses.
// The client package provides the production implementation.
type RemoteConn interface {
	Submit(ctx context.Context, clusterName string, spec map[string]any) (int64, error)
	Cancel(ctx context.Context, clusterName string, jobID int64) error
	JobInfo(ctx context.Context, clusterName string, jobID int64) (map[string]any, error)
	Close() error
}

// RemoteDialer establishes a RemoteConn to a peer server.
type RemoteDialer func(addr, token string) (RemoteConn, error)

// RemoteHandle proxies submit, cancel, and job info to a peer server.
// The local gate still clears every caller before the call leaves this
// process; the peer applies its own authorization on arrival.
type RemoteHandle struct {
	name string
	cfg  map[string]string
	gate fluxmcp.AuthGate
	dial RemoteDialer

	mu   sync.Mutex
	conn RemoteConn
}

var _ Handle = (*RemoteHandle)(nil)

// NewRemoteHandle builds an unconnected remote handle. The config must
// carry an "addr" entry; "token" is passed to the dialer for the peer's
// auth handshake.
func NewRemoteHandle(name string, cfg map[string]string, deps Deps) (Handle, error) {
	if cfg["addr"] == "" {
		return nil, fmt.Errorf("cluster: remote handle %q: config missing addr", name)
	}

	if deps.Remote == nil {
		return nil, fmt.Errorf("cluster: remote handle %q: no remote dialer configured", name)
	}

	gate := deps.Gate
	if gate == nil {
		gate = fluxmcp.AllowAll{}
	}

	return &RemoteHandle{name: name, cfg: cfg, gate: gate, dial: deps.Remote}, nil
}

// Connect dials the peer if no live connection exists.
func (h *RemoteHandle) Connect(_ context.Context) error {
	_, err := h.ensure()
	return err
}

func (h *RemoteHandle) ensure() (RemoteConn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn != nil {
		return h.conn, nil
	}

	conn, err := h.dial(h.cfg["addr"], h.cfg["token"])
	if err != nil {
		return nil, fmt.Errorf("cluster: dial %q: %w: %v", h.name, fluxmcp.ErrConnect, err)
	}
	h.conn = conn
	return conn, nil
}

// Submit proxies a submit after the local gate clears the caller.
func (h *RemoteHandle) Submit(ctx context.Context, spec map[string]any, auth fluxmcp.AuthContext) (int64, error) {
	if !h.gate.Authorize(ctx, auth, h.name) {
		return 0, fmt.Errorf("cluster: submit on %q as %q: %w", h.name, auth.UserID, fluxmcp.ErrUnauthorized)
	}

	conn, err := h.ensure()
	if err != nil {
		return 0, err
	}
	return conn.Submit(ctx, h.peerCluster(), spec)
}

// Cancel proxies a cancel after the local gate clears the caller.
func (h *RemoteHandle) Cancel(ctx context.Context, jobID int64, auth fluxmcp.AuthContext) error {
	if !h.gate.Authorize(ctx, auth, h.name) {
		return fmt.Errorf("cluster: cancel on %q as %q: %w", h.name, auth.UserID, fluxmcp.ErrUnauthorized)
	}

	conn, err := h.ensure()
	if err != nil {
		return err
	}
	return conn.Cancel(ctx, h.peerCluster(), jobID)
}

// JobInfo proxies a job info lookup after the local gate clears the
// caller.
func (h *RemoteHandle) JobInfo(ctx context.Context, jobID int64, auth fluxmcp.AuthContext) (map[string]any, error) {
	if !h.gate.Authorize(ctx, auth, h.name) {
		return nil, fmt.Errorf("cluster: job info on %q as %q: %w", h.name, auth.UserID, fluxmcp.ErrUnauthorized)
	}

	conn, err := h.ensure()
	if err != nil {
		return nil, err
	}
	return conn.JobInfo(ctx, h.peerCluster(), jobID)
}

// peerCluster is the cluster name used on the peer side. Defaults to
// the local registration name.
func (h *RemoteHandle) peerCluster() string {
	if peer := h.cfg["peer_cluster"]; peer != "" {
		return peer
	}
	return h.name
}

// Events always fails for remote handles.
func (h *RemoteHandle) Events() (EventSource, error) {
	return nil, ErrNoEventStream
}

// Close releases the wire connection.
func (h *RemoteHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}

// Type returns "remote".
func (h *RemoteHandle) Type() string { return TypeRemote }

// Config returns a copy of the registration config.
func (h *RemoteHandle) Config() map[string]string { return maps.Clone(h.cfg) }
