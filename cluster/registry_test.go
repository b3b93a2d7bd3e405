package cluster_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
	"github.com/converged-computing/flux-mcp-server/cluster"
)

// fakeConn is a scripted SchedulerConn for tests.
type fakeConn struct {
	mu        sync.Mutex
	closed    bool
	submitted []map[string]any
	cancelled []int64
	nextJobID int64
}

func (c *fakeConn) Submit(_ context.Context, spec map[string]any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitted = append(c.submitted, spec)
	c.nextJobID++
	return c.nextJobID, nil
}

func (c *fakeConn) Cancel(_ context.Context, jobID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, jobID)
	return nil
}

func (c *fakeConn) JobInfo(_ context.Context, jobID int64) (map[string]any, error) {
	return map[string]any{"id": jobID, "state": "RUN"}, nil
}

func (c *fakeConn) Events() (cluster.EventSource, error) {
	return &fakeSource{}, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeSource struct{}

func (s *fakeSource) Poll(context.Context, time.Duration) (map[string]any, error) {
	return nil, nil
}
func (s *fakeSource) Close() error { return nil }

func okDialer(conn *fakeConn) cluster.Dialer {
	return func(string) (cluster.SchedulerConn, error) { return conn, nil }
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	conn := &fakeConn{}
	reg := cluster.NewRegistry(cluster.WithDialer(okDialer(conn)))

	err := reg.Register(ctx, "tiny", cluster.TypeLocal, map[string]string{"uri": "local:///run/flux"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	h, err := reg.Handle("tiny")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if h.Type() != cluster.TypeLocal {
		t.Errorf("Type = %q, want local", h.Type())
	}
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	reg := cluster.NewRegistry(cluster.WithDialer(okDialer(&fakeConn{})))

	cfg := map[string]string{"uri": "local:///run/flux"}
	if err := reg.Register(ctx, "tiny", cluster.TypeLocal, cfg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := reg.Register(ctx, "tiny", cluster.TypeLocal, cfg)
	if !errors.Is(err, fluxmcp.ErrClusterExists) {
		t.Errorf("err = %v, want ErrClusterExists", err)
	}
}

func TestRegisterUnknownType(t *testing.T) {
	reg := cluster.NewRegistry()

	err := reg.Register(context.Background(), "tiny", "teleport", nil)
	if !errors.Is(err, fluxmcp.ErrUnknownClusterType) {
		t.Errorf("err = %v, want ErrUnknownClusterType", err)
	}
}

func TestRegisterConnectFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	reg := cluster.NewRegistry(cluster.WithDialer(
		func(string) (cluster.SchedulerConn, error) { return nil, dialErr },
	))

	err := reg.Register(context.Background(), "tiny", cluster.TypeLocal,
		map[string]string{"uri": "local:///run/flux"})
	if !errors.Is(err, fluxmcp.ErrConnect) {
		t.Fatalf("err = %v, want ErrConnect", err)
	}

	// A failed registration leaves nothing behind.
	if _, err := reg.Handle("tiny"); !errors.Is(err, fluxmcp.ErrClusterNotFound) {
		t.Errorf("Handle after failed register = %v, want ErrClusterNotFound", err)
	}
	if len(reg.List()) != 0 {
		t.Errorf("List after failed register = %v, want empty", reg.List())
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	conn := &fakeConn{}
	reg := cluster.NewRegistry(cluster.WithDialer(okDialer(conn)))

	if err := reg.Register(ctx, "tiny", cluster.TypeLocal, map[string]string{"uri": "u"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !reg.Remove("tiny") {
		t.Error("Remove returned false for registered cluster")
	}
	if !conn.closed {
		t.Error("Remove did not close the handle")
	}
	if reg.Remove("tiny") {
		t.Error("Remove returned true for absent cluster")
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	reg := cluster.NewRegistry(cluster.WithDialer(okDialer(&fakeConn{})))

	for _, name := range []string{"summit", "tiny", "frontier"} {
		if err := reg.Register(ctx, name, cluster.TypeLocal, map[string]string{"uri": "u"}); err != nil {
			t.Fatalf("Register %q: %v", name, err)
		}
	}

	infos := reg.List()
	if len(infos) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(infos))
	}
	want := []string{"frontier", "summit", "tiny"}
	for i, info := range infos {
		if info.Name != want[i] {
			t.Errorf("List[%d].Name = %q, want %q", i, info.Name, want[i])
		}
		if info.Type != cluster.TypeLocal {
			t.Errorf("List[%d].Type = %q, want local", i, info.Type)
		}
	}
}

func TestCustomFactory(t *testing.T) {
	ctx := context.Background()
	conn := &fakeConn{}
	called := false

	reg := cluster.NewRegistry(
		cluster.WithDialer(okDialer(conn)),
		cluster.WithFactory("scripted", func(name string, cfg map[string]string, deps cluster.Deps) (cluster.Handle, error) {
			called = true
			return cluster.NewLocalHandle(name, map[string]string{"uri": "u"}, deps)
		}),
	)

	if err := reg.Register(ctx, "tiny", "scripted", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !called {
		t.Error("custom factory not invoked")
	}
}
