// Package memory provides a fully in-memory store.Store. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
	"github.com/converged-computing/flux-mcp-server/id"
	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store. The mutex stands
// in for the transaction the SQL backend uses: append and reconcile
// happen under one critical section.
type Store struct {
	mu sync.RWMutex

	jobs   map[string]*jobevent.JobRecord
	events map[string][]*jobevent.EventRecord

	closed bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:   make(map[string]*jobevent.JobRecord),
		events: make(map[string][]*jobevent.EventRecord),
	}
}

func jobKey(clusterName string, jobID int64) string {
	return fmt.Sprintf("%s/%d", clusterName, jobID)
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close marks the store closed. Subsequent writes fail.
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// Writes
// ──────────────────────────────────────────────────

// RecordEvent appends the event to the log and folds it into the job
// snapshot under one lock.
func (m *Store) RecordEvent(_ context.Context, evt *jobevent.JobEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fluxmcp.ErrStoreClosed
	}

	key := jobKey(evt.Cluster, evt.JobID)

	rec := &jobevent.EventRecord{
		ID:        id.NewEventID(),
		Cluster:   evt.Cluster,
		JobID:     evt.JobID,
		Type:      evt.Type,
		Timestamp: evt.Timestamp,
		Payload:   copyPayload(evt.Payload),
	}
	m.events[key] = append(m.events[key], rec)

	snap, ok := m.jobs[key]
	if !ok {
		snap = &jobevent.JobRecord{}
		m.jobs[key] = snap
	}
	jobevent.Apply(snap, evt)

	return nil
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// GetJob returns a copy of the job snapshot.
func (m *Store) GetJob(_ context.Context, clusterName string, jobID int64) (*jobevent.JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.jobs[jobKey(clusterName, jobID)]
	if !ok {
		return nil, fluxmcp.ErrJobNotFound
	}

	return copyRecord(snap), nil
}

// GetEventHistory returns copies of the job's events in ascending
// timestamp order. Arrival order breaks ties.
func (m *Store) GetEventHistory(_ context.Context, clusterName string, jobID int64) ([]*jobevent.EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.events[jobKey(clusterName, jobID)]
	out := make([]*jobevent.EventRecord, 0, len(stored))
	for _, rec := range stored {
		cp := *rec
		cp.Payload = copyPayload(rec.Payload)
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})

	return out, nil
}

// SearchJobs returns snapshots matching the filter, most recently
// updated first, capped at the limit.
func (m *Store) SearchJobs(_ context.Context, filter jobevent.Filter) ([]*jobevent.JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*jobevent.JobRecord, 0, len(m.jobs))
	for _, snap := range m.jobs {
		if filter.Matches(snap) {
			matched = append(matched, copyRecord(snap))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].LastUpdated != matched[j].LastUpdated {
			return matched[i].LastUpdated > matched[j].LastUpdated
		}
		if matched[i].Cluster != matched[j].Cluster {
			return matched[i].Cluster < matched[j].Cluster
		}
		return matched[i].JobID < matched[j].JobID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultSearchLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func copyRecord(rec *jobevent.JobRecord) *jobevent.JobRecord {
	cp := *rec
	if rec.ExitCode != nil {
		code := *rec.ExitCode
		cp.ExitCode = &code
	}
	return &cp
}

func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	cp := make(map[string]any, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	return cp
}
