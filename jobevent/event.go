package jobevent

import (
	"encoding/json"
	"fmt"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
)

// EventType names a job journal event. The set is open: schedulers emit
// more names than the snapshot cares about, and unknown names flow
// through to the event log untouched.
type EventType string

const (
	// TypeSubmit marks a job entering the system.
	TypeSubmit EventType = "submit"
	// TypeState marks a job state transition.
	TypeState EventType = "state"
	// TypeFinish marks the job's process group exiting.
	TypeFinish EventType = "finish"
	// TypeClean marks the journal closing out the job.
	TypeClean EventType = "clean"

	// Pass-through journal names recorded but not reconciled.
	TypeDepend   EventType = "depend"
	TypePriority EventType = "priority"
	TypeAlloc    EventType = "alloc"
	TypeStart    EventType = "start"
	TypeFree     EventType = "free"
)

// JobEvent is one normalized entry from a cluster's job journal.
type JobEvent struct {
	Cluster   string         `json:"cluster"`
	JobID     int64          `json:"job_id"`
	Type      EventType      `json:"type"`
	Timestamp float64        `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Normalize converts a raw journal entry into a JobEvent. It tolerates
// the field-name variants schedulers emit: the job ID under "id" or
// "jobid", the type under "type" or "name", the timestamp under "t" or
// "timestamp", and the payload under "data", "context", or inline beside
// the envelope fields.
//
// An entry without a usable non-negative job ID returns
// fluxmcp.ErrMissingJobID; callers drop those rather than fail.
func Normalize(clusterName string, raw map[string]any) (*JobEvent, error) {
	if raw == nil {
		return nil, fmt.Errorf("jobevent: nil entry: %w", fluxmcp.ErrMalformedEvent)
	}

	jobID, ok := intField(raw, "id", "jobid")
	if !ok || jobID < 0 {
		return nil, fluxmcp.ErrMissingJobID
	}

	name, ok := stringField(raw, "type", "name")
	if !ok || name == "" {
		return nil, fmt.Errorf("jobevent: entry for job %d has no type: %w", jobID, fluxmcp.ErrMalformedEvent)
	}

	ts, _ := floatField(raw, "t", "timestamp")

	return &JobEvent{
		Cluster:   clusterName,
		JobID:     jobID,
		Type:      EventType(name),
		Timestamp: ts,
		Payload:   payloadOf(raw),
	}, nil
}

// payloadOf extracts the event payload: an explicit "data" or "context"
// map wins, otherwise everything beside the envelope fields is inline
// payload.
func payloadOf(raw map[string]any) map[string]any {
	for _, key := range []string{"data", "context"} {
		if m, ok := raw[key].(map[string]any); ok {
			return m
		}
	}

	payload := make(map[string]any)
	for k, v := range raw {
		switch k {
		case "id", "jobid", "type", "name", "t", "timestamp", "data", "context":
		default:
			payload[k] = v
		}
	}
	if len(payload) == 0 {
		return nil
	}
	return payload
}

func stringField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

func intField(m map[string]any, keys ...string) (int64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return int64(n), true
		case int64:
			return n, true
		case float64:
			return int64(n), true
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return 0, false
			}
			return i, true
		}
	}
	return 0, false
}

func floatField(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return 0, false
			}
			return f, true
		}
	}
	return 0, false
}
