// Package query is the read side of the event pipeline: lookups and
// searches over the reconciled job snapshots and the event log.
//
// The service softens the store's not-found semantics for callers that
// treat an unknown job as an ordinary answer rather than a failure:
// Job returns (nil, nil) when the job does not exist.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/store"
)

// Service answers job queries from a Store.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService builds a query service over the given store.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Job returns the snapshot for one job, or (nil, nil) when no such job
// has been recorded.
func (s *Service) Job(ctx context.Context, clusterName string, jobID int64) (*jobevent.JobRecord, error) {
	rec, err := s.store.GetJob(ctx, clusterName, jobID)
	if err != nil {
		if errors.Is(err, fluxmcp.ErrJobNotFound) {
			return nil, nil //nolint:nilnil // absence is an answer, not an error
		}
		return nil, fmt.Errorf("query: job %s/%d: %w", clusterName, jobID, err)
	}
	return rec, nil
}

// History returns the job's event log in ascending timestamp order.
// Unknown jobs yield an empty slice.
func (s *Service) History(ctx context.Context, clusterName string, jobID int64) ([]*jobevent.EventRecord, error) {
	events, err := s.store.GetEventHistory(ctx, clusterName, jobID)
	if err != nil {
		return nil, fmt.Errorf("query: history %s/%d: %w", clusterName, jobID, err)
	}
	if events == nil {
		events = []*jobevent.EventRecord{}
	}
	return events, nil
}

// Search returns job snapshots matching the filter. A zero or negative
// limit falls back to store.DefaultSearchLimit.
func (s *Service) Search(ctx context.Context, filter jobevent.Filter) ([]*jobevent.JobRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = store.DefaultSearchLimit
	}
	recs, err := s.store.SearchJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query: search: %w", err)
	}
	if recs == nil {
		recs = []*jobevent.JobRecord{}
	}
	return recs, nil
}
