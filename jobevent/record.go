package jobevent

import "github.com/converged-computing/flux-mcp-server/id"

// JobState represents the lifecycle state of a job as reported by the
// scheduler's journal.
type JobState string

const (
	// StateSubmitted means the submit event has been seen but no state
	// transition yet.
	StateSubmitted JobState = "submitted"
	// StateDepend means the job is waiting on dependencies.
	StateDepend JobState = "DEPEND"
	// StatePriority means the job is waiting on priority assignment.
	StatePriority JobState = "PRIORITY"
	// StateSched means the job is waiting on resources.
	StateSched JobState = "SCHED"
	// StateRun means the job is executing.
	StateRun JobState = "RUN"
	// StateCleanup means the job is tearing down.
	StateCleanup JobState = "CLEANUP"
	// StateInactive means the job is finished. Terminal.
	StateInactive JobState = "INACTIVE"
)

// Terminal reports whether the state ends the job lifecycle.
func (s JobState) Terminal() bool { return s == StateInactive }

// JobRecord is the reconciled snapshot of one job on one cluster. It is
// derived exclusively through Apply; backends persist it but never
// invent its fields.
type JobRecord struct {
	Cluster     string   `json:"cluster"`
	JobID       int64    `json:"job_id"`
	State       JobState `json:"state"`
	User        string   `json:"user,omitempty"`
	Workdir     string   `json:"workdir,omitempty"`
	SubmitTime  float64  `json:"submit_time,omitempty"`
	LastUpdated float64  `json:"last_updated"`
	ExitCode    *int64   `json:"exit_code,omitempty"`
}

// EventRecord is one persisted entry of a job's append-only event log.
type EventRecord struct {
	ID        id.ID          `json:"id"`
	Cluster   string         `json:"cluster"`
	JobID     int64          `json:"job_id"`
	Type      EventType      `json:"type"`
	Timestamp float64        `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Filter narrows a job search. Zero fields match everything; Limit of
// zero means the store's default cap.
type Filter struct {
	Cluster string
	State   JobState
	Limit   int
}

// Matches reports whether the record satisfies the filter (ignoring
// Limit).
func (f Filter) Matches(rec *JobRecord) bool {
	if f.Cluster != "" && rec.Cluster != f.Cluster {
		return false
	}
	if f.State != "" && rec.State != f.State {
		return false
	}
	return true
}
