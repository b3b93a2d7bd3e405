package bunstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is a Bun ORM implementation of store.Store using PostgreSQL
// dialect. The caller owns the *bun.DB lifecycle; Store never closes it.
type Store struct {
	db          *bun.DB
	logger      *slog.Logger
	searchLimit int
	ownsDB      bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithSearchLimit overrides the default search result cap.
func WithSearchLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// OpenDSN opens a *bun.DB for a PostgreSQL DSN and wraps it in a
// Store. Unlike New, the returned Store owns the connection and closes
// it on Close.
func OpenDSN(dsn string, opts ...Option) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	s := New(db, opts...)
	s.ownsDB = true
	return s
}

// New creates a new Bun store. The caller owns the db lifecycle — the
// Store will not close it on Close().
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:          db,
		logger:      slog.Default(),
		searchLimit: store.DefaultSearchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *bun.DB for advanced usage.
func (s *Store) DB() *bun.DB {
	return s.db
}

// RecordEvent appends the event to the log and reconciles the job
// snapshot inside one transaction. The snapshot row is locked FOR
// UPDATE so concurrent writers for the same job serialize.
func (s *Store) RecordEvent(ctx context.Context, evt *jobevent.JobEvent) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		em, err := toEventModel(evt)
		if err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(em).Exec(ctx); err != nil {
			return fmt.Errorf("fluxmcp/bun: append event: %w", err)
		}

		m := new(jobModel)
		err = tx.NewSelect().Model(m).
			Where("cluster = ?", evt.Cluster).
			Where("job_id = ?", evt.JobID).
			For("UPDATE").
			Limit(1).
			Scan(ctx)

		switch {
		case isNoRows(err):
			rec := &jobevent.JobRecord{}
			jobevent.Apply(rec, evt)
			if _, insErr := tx.NewInsert().Model(toJobModel(rec)).Exec(ctx); insErr != nil {
				return fmt.Errorf("fluxmcp/bun: insert snapshot: %w", insErr)
			}
			return nil
		case err != nil:
			return fmt.Errorf("fluxmcp/bun: load snapshot: %w", err)
		}

		rec := fromJobModel(m)
		if !jobevent.Apply(rec, evt) {
			return nil
		}
		if _, updErr := tx.NewUpdate().Model(toJobModel(rec)).WherePK().Exec(ctx); updErr != nil {
			return fmt.Errorf("fluxmcp/bun: update snapshot: %w", updErr)
		}
		return nil
	})
}

// Migrate runs all embedded SQL migration files in order.
func (s *Store) Migrate(ctx context.Context) error {
	// Create migrations tracking table.
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fluxmcp_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("fluxmcp/bun: create migrations table: %w", err)
	}

	// Read embedded migration files.
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("fluxmcp/bun: read migrations: %w", err)
	}

	// Sort by filename for deterministic order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// Check if already applied.
		var applied bool
		err = s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM fluxmcp_migrations WHERE filename = ?)`,
			entry.Name(),
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("fluxmcp/bun: check migration %s: %w", entry.Name(), err)
		}
		if applied {
			continue
		}

		// Read and execute migration.
		data, readErr := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if readErr != nil {
			return fmt.Errorf("fluxmcp/bun: read migration %s: %w", entry.Name(), readErr)
		}

		_, execErr := s.db.ExecContext(ctx, string(data))
		if execErr != nil {
			return fmt.Errorf("fluxmcp/bun: execute migration %s: %w", entry.Name(), execErr)
		}

		// Record migration.
		_, recErr := s.db.ExecContext(ctx,
			`INSERT INTO fluxmcp_migrations (filename) VALUES (?)`,
			entry.Name(),
		)
		if recErr != nil {
			return fmt.Errorf("fluxmcp/bun: record migration %s: %w", entry.Name(), recErr)
		}

		s.logger.Info("applied migration", "file", entry.Name())
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database only when the Store opened it (OpenDSN).
// For New, the caller owns the *bun.DB lifecycle and Close is a no-op.
func (s *Store) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
