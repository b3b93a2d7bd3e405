package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
	"github.com/converged-computing/flux-mcp-server/jobevent"
)

// GetJob retrieves a job snapshot by cluster and scheduler job ID.
func (s *Store) GetJob(ctx context.Context, clusterName string, jobID int64) (*jobevent.JobRecord, error) {
	rec, err := s.loadSnapshot(ctx, clusterName, jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fluxmcp.ErrJobNotFound
	}
	return rec, nil
}

// GetEventHistory returns the job's event log in ascending timestamp
// order (the Sorted Set score).
func (s *Store) GetEventHistory(ctx context.Context, clusterName string, jobID int64) ([]*jobevent.EventRecord, error) {
	members, err := s.client.ZRange(ctx, eventsKey(clusterName, jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fluxmcp/redis: event history: %w", err)
	}

	records := make([]*jobevent.EventRecord, 0, len(members))
	for _, m := range members {
		rec := new(jobevent.EventRecord)
		if err := json.Unmarshal([]byte(m), rec); err != nil {
			return nil, fmt.Errorf("fluxmcp/redis: decode event: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SearchJobs enumerates the job index, filters snapshots, and returns
// the most recently updated first, capped at the limit.
func (s *Store) SearchJobs(ctx context.Context, filter jobevent.Filter) ([]*jobevent.JobRecord, error) {
	members, err := s.client.SMembers(ctx, jobsIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("fluxmcp/redis: job index: %w", err)
	}

	matched := make([]*jobevent.JobRecord, 0, len(members))
	for _, m := range members {
		clusterName, jobID, ok := parseIndexMember(m)
		if !ok {
			continue
		}
		if filter.Cluster != "" && clusterName != filter.Cluster {
			continue
		}

		rec, err := s.loadSnapshot(ctx, clusterName, jobID)
		if err != nil {
			return nil, err
		}
		if rec == nil || !filter.Matches(rec) {
			continue
		}
		matched = append(matched, rec)
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
		limit = s.searchLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// loadSnapshot reads the snapshot Hash. A missing key returns (nil, nil).
func (s *Store) loadSnapshot(ctx context.Context, clusterName string, jobID int64) (*jobevent.JobRecord, error) {
	fields, err := s.client.HGetAll(ctx, jobKey(clusterName, jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("fluxmcp/redis: load snapshot: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil //nolint:nilnil // absence is not an error here
	}
	return snapshotFromMap(clusterName, jobID, fields), nil
}

func snapshotToMap(rec *jobevent.JobRecord) map[string]any {
	fields := map[string]any{
		"state":        string(rec.State),
		"username":     rec.User,
		"workdir":      rec.Workdir,
		"submit_time":  strconv.FormatFloat(rec.SubmitTime, 'f', -1, 64),
		"last_updated": strconv.FormatFloat(rec.LastUpdated, 'f', -1, 64),
	}
	if rec.ExitCode != nil {
		fields["exit_code"] = strconv.FormatInt(*rec.ExitCode, 10)
	}
	return fields
}

func snapshotFromMap(clusterName string, jobID int64, fields map[string]string) *jobevent.JobRecord {
	rec := &jobevent.JobRecord{
		Cluster: clusterName,
		JobID:   jobID,
		State:   jobevent.JobState(fields["state"]),
		User:    fields["username"],
		Workdir: fields["workdir"],
	}
	rec.SubmitTime, _ = strconv.ParseFloat(fields["submit_time"], 64)
	rec.LastUpdated, _ = strconv.ParseFloat(fields["last_updated"], 64)
	if v, ok := fields["exit_code"]; ok {
		if code, err := strconv.ParseInt(v, 10, 64); err == nil {
			rec.ExitCode = &code
		}
	}
	return rec
}
