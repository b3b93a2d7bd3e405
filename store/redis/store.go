// Package redis implements store.Store using Redis for high-throughput
// ephemeral deployments. Event logs are Sorted Sets scored by event
// timestamp, job snapshots are Hashes, and the append plus reconcile is
// flushed through a TxPipeline.
//
// The reconcile is a read-modify-write: the snapshot is loaded, folded,
// and written back. That is safe under the engine's single-consumer
// discipline (one writer per cluster); this backend does not arbitrate
// concurrent writers for the same job the way the SQL backend does.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/converged-computing/flux-mcp-server/id"
	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithSearchLimit overrides the default search result cap.
func WithSearchLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// Store implements store.Store backed by Redis.
type Store struct {
	client      goredis.Cmdable
	logger      *slog.Logger
	searchLimit int
}

// New creates a new Redis-backed store. The caller owns the Redis
// client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:      client,
		logger:      slog.Default(),
		searchLimit: store.DefaultSearchLimit,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.Cmdable { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// RecordEvent appends the event to the job's Sorted Set log and writes
// the folded snapshot Hash in one TxPipeline flush.
func (s *Store) RecordEvent(ctx context.Context, evt *jobevent.JobEvent) error {
	rec, err := s.loadSnapshot(ctx, evt.Cluster, evt.JobID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &jobevent.JobRecord{}
	}
	jobevent.Apply(rec, evt)

	entry := &jobevent.EventRecord{
		ID:        id.NewEventID(),
		Cluster:   evt.Cluster,
		JobID:     evt.JobID,
		Type:      evt.Type,
		Timestamp: evt.Timestamp,
		Payload:   evt.Payload,
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("fluxmcp/redis: marshal event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, eventsKey(evt.Cluster, evt.JobID), goredis.Z{
		Score:  evt.Timestamp,
		Member: string(payload),
	})
	pipe.HSet(ctx, jobKey(evt.Cluster, evt.JobID), snapshotToMap(rec))
	pipe.SAdd(ctx, jobsIndexKey, indexMember(evt.Cluster, evt.JobID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fluxmcp/redis: record event: %w", err)
	}
	return nil
}
