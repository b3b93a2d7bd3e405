package bunstore

import (
	"context"
	"fmt"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
	"github.com/converged-computing/flux-mcp-server/jobevent"
)

// GetJob retrieves a job snapshot by cluster and scheduler job ID.
func (s *Store) GetJob(ctx context.Context, clusterName string, jobID int64) (*jobevent.JobRecord, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("cluster = ?", clusterName).
		Where("job_id = ?", jobID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fluxmcp.ErrJobNotFound
		}
		return nil, fmt.Errorf("fluxmcp/bun: get job: %w", err)
	}
	return fromJobModel(m), nil
}

// GetEventHistory returns the job's event log in ascending timestamp
// order. The event ID breaks timestamp ties in arrival order (TypeIDs
// are K-sortable).
func (s *Store) GetEventHistory(ctx context.Context, clusterName string, jobID int64) ([]*jobevent.EventRecord, error) {
	var models []eventModel
	err := s.db.NewSelect().Model(&models).
		Where("cluster = ?", clusterName).
		Where("job_id = ?", jobID).
		OrderExpr("timestamp ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fluxmcp/bun: get event history: %w", err)
	}

	records := make([]*jobevent.EventRecord, 0, len(models))
	for i := range models {
		rec, convErr := fromEventModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		records = append(records, rec)
	}
	return records, nil
}

// SearchJobs returns snapshots matching the filter, most recently
// updated first, capped at the limit.
func (s *Store) SearchJobs(ctx context.Context, filter jobevent.Filter) ([]*jobevent.JobRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = s.searchLimit
	}

	q := s.db.NewSelect().Model((*jobModel)(nil))
	if filter.Cluster != "" {
		q = q.Where("cluster = ?", filter.Cluster)
	}
	if filter.State != "" {
		q = q.Where("state = ?", string(filter.State))
	}

	var models []jobModel
	err := q.OrderExpr("last_updated DESC, cluster ASC, job_id ASC").
		Limit(limit).
		Scan(ctx, &models)
	if err != nil {
		return nil, fmt.Errorf("fluxmcp/bun: search jobs: %w", err)
	}

	records := make([]*jobevent.JobRecord, 0, len(models))
	for i := range models {
		records = append(records, fromJobModel(&models[i]))
	}
	return records, nil
}
