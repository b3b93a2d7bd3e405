// Package store defines the persistence interface for the job event log
// and the reconciled job snapshots. Backends: Bun (SQL), Redis, and
// Memory.
package store

import (
	"context"

	"github.com/converged-computing/flux-mcp-server/jobevent"
)

// Store persists job events and their reconciled snapshots.
//
// RecordEvent is the single write path and it is transactional: the
// append to the event log and the snapshot reconcile land together or
// not at all. The log append is unconditional even when the event
// leaves the snapshot unchanged.
type Store interface {
	// RecordEvent appends the event to the job's event log and folds it
	// into the job snapshot, atomically.
	RecordEvent(ctx context.Context, evt *jobevent.JobEvent) error

	// GetJob returns the snapshot for one job, or
	// fluxmcp.ErrJobNotFound.
	GetJob(ctx context.Context, clusterName string, jobID int64) (*jobevent.JobRecord, error)

	// GetEventHistory returns the job's event log in ascending
	// timestamp order. Unknown jobs yield an empty slice, not an error.
	GetEventHistory(ctx context.Context, clusterName string, jobID int64) ([]*jobevent.EventRecord, error)

	// SearchJobs returns snapshots matching the filter, capped at the
	// filter's limit (or the store default when zero).
	SearchJobs(ctx context.Context, filter jobevent.Filter) ([]*jobevent.JobRecord, error)

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

// DefaultSearchLimit caps searches that do not set their own limit.
const DefaultSearchLimit = 10
