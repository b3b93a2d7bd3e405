package bunstore

import (
	"fmt"

	"github.com/uptrace/bun"

	"github.com/converged-computing/flux-mcp-server/id"
	"github.com/converged-computing/flux-mcp-server/jobevent"
)

// ── Job snapshot model ────────────────────────────────────────────

type jobModel struct {
	bun.BaseModel `bun:"table:fluxmcp_jobs"`

	Cluster     string  `bun:"cluster,pk"`
	JobID       int64   `bun:"job_id,pk"`
	State       string  `bun:"state,notnull"`
	Username    string  `bun:"username"`
	Workdir     string  `bun:"workdir"`
	SubmitTime  float64 `bun:"submit_time,notnull,default:0"`
	LastUpdated float64 `bun:"last_updated,notnull,default:0"`
	ExitCode    *int64  `bun:"exit_code"`
}

func toJobModel(rec *jobevent.JobRecord) *jobModel {
	return &jobModel{
		Cluster:     rec.Cluster,
		JobID:       rec.JobID,
		State:       string(rec.State),
		Username:    rec.User,
		Workdir:     rec.Workdir,
		SubmitTime:  rec.SubmitTime,
		LastUpdated: rec.LastUpdated,
		ExitCode:    rec.ExitCode,
	}
}

func fromJobModel(m *jobModel) *jobevent.JobRecord {
	return &jobevent.JobRecord{
		Cluster:     m.Cluster,
		JobID:       m.JobID,
		State:       jobevent.JobState(m.State),
		User:        m.Username,
		Workdir:     m.Workdir,
		SubmitTime:  m.SubmitTime,
		LastUpdated: m.LastUpdated,
		ExitCode:    m.ExitCode,
	}
}

// ── Event log model ───────────────────────────────────────────────

type eventModel struct {
	bun.BaseModel `bun:"table:fluxmcp_events"`

	ID        string         `bun:"id,pk"`
	Cluster   string         `bun:"cluster,notnull"`
	JobID     int64          `bun:"job_id,notnull"`
	Type      string         `bun:"type,notnull"`
	Timestamp float64        `bun:"timestamp,notnull,default:0"`
	Payload   map[string]any `bun:"payload,type:jsonb"`
}

func toEventModel(evt *jobevent.JobEvent) (*eventModel, error) {
	if evt == nil {
		return nil, fmt.Errorf("fluxmcp/bun: nil event")
	}
	return &eventModel{
		ID:        id.NewEventID().String(),
		Cluster:   evt.Cluster,
		JobID:     evt.JobID,
		Type:      string(evt.Type),
		Timestamp: evt.Timestamp,
		Payload:   evt.Payload,
	}, nil
}

func fromEventModel(m *eventModel) (*jobevent.EventRecord, error) {
	parsedID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("fluxmcp/bun: parse event id %q: %w", m.ID, err)
	}

	return &jobevent.EventRecord{
		ID:        parsedID,
		Cluster:   m.Cluster,
		JobID:     m.JobID,
		Type:      jobevent.EventType(m.Type),
		Timestamp: m.Timestamp,
		Payload:   m.Payload,
	}, nil
}
