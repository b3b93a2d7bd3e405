package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
	"github.com/converged-computing/flux-mcp-server/backoff"
	"github.com/converged-computing/flux-mcp-server/cluster"
	"github.com/converged-computing/flux-mcp-server/hook"
	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/sink"
)

// State is the engine lifecycle state.
type State int32

const (
	// StateStopped means the engine is idle; Start is valid.
	StateStopped State = iota
	// StateStarting means Start is bringing the goroutines up.
	StateStarting
	// StateRunning means the poller and consumer are live.
	StateRunning
	// StateStopping means Stop is draining in-flight events.
	StateStopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Opener opens the journal stream. Typically cluster.Handle.Events.
type Opener func() (cluster.EventSource, error)

// Engine polls one cluster's job journal and drives events into a sink.
type Engine struct {
	clusterName string
	open        Opener
	sink        sink.Sink

	cfg     fluxmcp.Config
	logger  *slog.Logger
	hooks   *hook.Registry
	retry   backoff.Strategy
	limiter *rate.Limiter

	state    atomic.Int32
	lastPoll atomic.Int64 // UnixNano of the most recent poll return

	ch         chan *jobevent.JobEvent
	cancel     context.CancelFunc
	pollerDone chan struct{}
	workerDone chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default timing configuration.
func WithConfig(cfg fluxmcp.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithHooks sets the extension registry notified of lifecycle events.
func WithHooks(hooks *hook.Registry) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithBackoff sets the strategy used after unexpected poll failures.
func WithBackoff(s backoff.Strategy) Option {
	return func(e *Engine) { e.retry = s }
}

// WithRateLimit caps sustained ingest at eventsPerSec with the given
// burst. Zero disables the limiter.
func WithRateLimit(eventsPerSec float64, burst int) Option {
	return func(e *Engine) {
		if eventsPerSec <= 0 {
			e.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(eventsPerSec), burst)
	}
}

// New builds an engine for one cluster. The opener is consulted by the
// poller, so a scheduler that is down at Start does not fail Start; the
// poller keeps retrying until the journal opens.
func New(clusterName string, open Opener, snk sink.Sink, opts ...Option) *Engine {
	e := &Engine{
		clusterName: clusterName,
		open:        open,
		sink:        snk,
		cfg:         fluxmcp.DefaultConfig(),
		logger:      slog.Default(),
		hooks:       hook.NewRegistry(slog.Default()),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retry == nil {
		e.retry = backoff.NewConstant(e.cfg.ErrorBackoff)
	}
	e.logger = e.logger.With(slog.String("cluster", clusterName))
	return e
}

// Cluster returns the cluster this engine polls.
func (e *Engine) Cluster() string { return e.clusterName }

// State returns the current lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Healthy reports whether the poller has returned from a poll recently
// (within three poll timeouts). An engine whose journal cannot be
// opened is running but not healthy.
func (e *Engine) Healthy() bool {
	if e.State() != StateRunning {
		return false
	}
	last := e.lastPoll.Load()
	if last == 0 {
		return false
	}
	return time.Since(time.Unix(0, last)) <= 3*e.cfg.PollTimeout
}

// Start transitions Stopped -> Running and launches the poller and the
// consumer. Starting a non-stopped engine returns ErrEngineRunning.
func (e *Engine) Start(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("engine: start %q in state %s: %w", e.clusterName, e.State(), fluxmcp.ErrEngineRunning)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.ch = make(chan *jobevent.JobEvent, e.cfg.Buffer)
	e.pollerDone = make(chan struct{})
	e.workerDone = make(chan struct{})
	e.lastPoll.Store(0)

	go e.pollLoop(runCtx)
	go e.consumeLoop(runCtx)

	e.state.Store(int32(StateRunning))
	e.logger.Info("engine started", slog.Int("buffer", e.cfg.Buffer))
	return nil
}

// Stop transitions Running -> Stopping -> Stopped. It halts the poller,
// then gives the consumer the configured grace window to drain buffered
// events. A consumer that outlives the grace window is abandoned with a
// warning rather than blocked on.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return fmt.Errorf("engine: stop %q in state %s: %w", e.clusterName, e.State(), fluxmcp.ErrEngineNotRunning)
	}

	e.cancel()
	<-e.pollerDone
	close(e.ch)

	grace := time.NewTimer(e.cfg.StopGrace)
	defer grace.Stop()

	select {
	case <-e.workerDone:
	case <-grace.C:
		e.logger.Warn("consumer still draining after stop grace",
			slog.Duration("grace", e.cfg.StopGrace))
	case <-ctx.Done():
		e.logger.Warn("stop abandoned by caller", slog.String("error", ctx.Err().Error()))
	}

	e.state.Store(int32(StateStopped))
	e.hooks.EmitEngineStopped(context.WithoutCancel(ctx), e.clusterName)
	e.logger.Info("engine stopped")
	return nil
}

// pollLoop is the single poller goroutine: open the journal, block on
// it, normalize, hand off. It exits only on cancellation or a closed
// source.
func (e *Engine) pollLoop(ctx context.Context) {
	defer close(e.pollerDone)

	var src cluster.EventSource
	defer func() {
		if src != nil {
			_ = src.Close()
		}
	}()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		if src == nil {
			opened, err := e.open()
			if err != nil {
				attempt++
				e.logger.Error("journal open failed",
					slog.String("error", err.Error()),
					slog.Int("attempt", attempt))
				e.hooks.EmitPollFailed(ctx, e.clusterName, err)
				if !e.sleep(ctx, e.retry.Delay(attempt)) {
					return
				}
				continue
			}
			src = opened
			attempt = 0
		}

		raw, err := src.Poll(ctx, e.cfg.PollTimeout)
		e.lastPoll.Store(time.Now().UnixNano())

		switch {
		case err == nil && raw == nil:
			// Quiet poll; yield briefly instead of spinning.
			if !e.sleep(ctx, e.cfg.IdleBackoff) {
				return
			}
			continue

		case err != nil:
			if errors.Is(err, cluster.ErrSourceClosed) || ctx.Err() != nil {
				return
			}
			if cluster.IsTimeout(err) {
				continue
			}
			attempt++
			e.logger.Warn("poll failed",
				slog.String("error", err.Error()),
				slog.Int("attempt", attempt))
			e.hooks.EmitPollFailed(ctx, e.clusterName, err)
			if !e.sleep(ctx, e.retry.Delay(attempt)) {
				return
			}
			continue
		}
		attempt = 0

		evt, err := jobevent.Normalize(e.clusterName, raw)
		if err != nil {
			// Entries without a job ID are expected journal noise;
			// anything else malformed is worth a warning.
			if errors.Is(err, fluxmcp.ErrMissingJobID) {
				e.logger.Debug("dropping event without job id")
			} else {
				e.logger.Warn("dropping malformed event", slog.String("error", err.Error()))
			}
			e.hooks.EmitEventDropped(ctx, e.clusterName, err)
			continue
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return
			}
		}

		// Blocking send preserves order and applies backpressure when
		// the consumer falls behind.
		select {
		case e.ch <- evt:
		case <-ctx.Done():
			return
		}
	}
}

// consumeLoop is the single consumer goroutine. A sink failure loses
// that event and is logged; it never halts the stream.
func (e *Engine) consumeLoop(ctx context.Context) {
	defer close(e.workerDone)

	// Detached so draining continues during Stop.
	sendCtx := context.WithoutCancel(ctx)

	for evt := range e.ch {
		start := time.Now()
		if err := e.sink.Send(sendCtx, evt); err != nil {
			e.logger.Error("event delivery failed",
				slog.Int64("job_id", evt.JobID),
				slog.String("type", string(evt.Type)),
				slog.String("error", err.Error()))
			e.hooks.EmitDeliveryFailed(sendCtx, evt, err)
			continue
		}
		e.hooks.EmitEventRecorded(sendCtx, evt, time.Since(start))
	}
}

// sleep waits for d or cancellation; it reports false on cancellation.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
