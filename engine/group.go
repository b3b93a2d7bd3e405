package engine

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/converged-computing/flux-mcp-server/cluster"
	"github.com/converged-computing/flux-mcp-server/sink"
)

// Group supervises a set of engines, one per cluster.
type Group struct {
	engines []*Engine
	logger  *slog.Logger
}

// NewGroup creates an empty group.
func NewGroup(logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{logger: logger}
}

// FromRegistry builds a group with one engine per registered cluster
// that exposes a journal stream. Remote clusters have none; their
// events arrive through ingest forwarding, so they are skipped.
func FromRegistry(reg *cluster.Registry, snk sink.Sink, logger *slog.Logger, opts ...Option) *Group {
	g := NewGroup(logger)
	for _, info := range reg.List() {
		handle, err := reg.Handle(info.Name)
		if err != nil {
			continue
		}
		if src, err := handle.Events(); errors.Is(err, cluster.ErrNoEventStream) {
			g.logger.Debug("skipping cluster without event stream", slog.String("cluster", info.Name))
			continue
		} else if err == nil {
			// Probe only; the engine's poller opens its own stream.
			_ = src.Close()
		}
		g.Add(New(info.Name, handle.Events, snk, opts...))
	}
	return g
}

// Add appends an engine to the group.
func (g *Group) Add(e *Engine) { g.engines = append(g.engines, e) }

// Engines returns the supervised engines.
func (g *Group) Engines() []*Engine { return g.engines }

// StartAll starts every engine. On the first failure the engines
// already started are stopped again and the error is returned.
func (g *Group) StartAll(ctx context.Context) error {
	for i, e := range g.engines {
		if err := e.Start(ctx); err != nil {
			for _, started := range g.engines[:i] {
				_ = started.Stop(ctx)
			}
			return err
		}
	}
	return nil
}

// StopAll stops every engine concurrently and returns the first error.
func (g *Group) StopAll(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, e := range g.engines {
		eg.Go(func() error { return e.Stop(ctx) })
	}
	return eg.Wait()
}

// Healthy reports whether every engine is healthy.
func (g *Group) Healthy() bool {
	for _, e := range g.engines {
		if !e.Healthy() {
			return false
		}
	}
	return true
}
