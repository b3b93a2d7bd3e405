// Package swp implements the Scheduler Wire Protocol (SWP) — a
// frame-based protocol for client↔server and server↔server
// communication, transported over WebSocket. Peers forward ingested
// job events with it; clients submit, cancel, and query jobs.
package swp

import (
	"encoding/json"
	"time"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the SWP message envelope. Every message exchanged over the
// protocol is a Frame.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `json:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type"`

	// Method names the operation for request frames (e.g., "job.submit").
	Method string `json:"method,omitempty"`

	// CorrelID links a response to its originating request.
	CorrelID string `json:"correl_id,omitempty"`

	// Token carries auth credentials (typically only on the auth frame).
	Token string `json:"token,omitempty"`

	// Data carries the method-specific payload.
	Data json.RawMessage `json:"data,omitempty"`

	// Error carries error details for error frames.
	Error *ErrorDetail `json:"error,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts"`
}

// ErrorDetail describes an error in a response or error frame.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ── Well-known methods ──────────────────────────────

const (
	// Auth methods.
	MethodAuth = "auth"

	// Ingestion (server-to-server).
	MethodEventIngest = "event.ingest"

	// Job methods.
	MethodJobSubmit  = "job.submit"
	MethodJobCancel  = "job.cancel"
	MethodJobGet     = "job.get"
	MethodJobHistory = "job.history"
	MethodJobSearch  = "job.search"

	// Cluster methods.
	MethodClusterList = "cluster.list"
)

// ── Well-known error codes ──────────────────────────

const (
	ErrCodeBadRequest     = 400
	ErrCodeUnauthorized   = 401
	ErrCodeForbidden      = 403
	ErrCodeNotFound       = 404
	ErrCodeMethodNotFound = 405
	ErrCodeInternal       = 500
)

// ── Request/Response payloads ───────────────────────

// AuthRequest is sent by clients as the first frame.
type AuthRequest struct {
	Token string `json:"token"`
}

// AuthResponse is returned after successful authentication.
type AuthResponse struct {
	SessionID string `json:"session_id"`
}

// IngestRequest forwards one raw journal event for a cluster.
type IngestRequest struct {
	Cluster string         `json:"cluster"`
	Event   map[string]any `json:"event"`
}

// IngestResponse confirms (or rejects) event ingestion.
type IngestResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SubmitRequest submits a job specification to a cluster.
type SubmitRequest struct {
	Cluster string         `json:"cluster"`
	Spec    map[string]any `json:"spec"`
}

// SubmitResponse confirms submission with the scheduler-assigned ID.
type SubmitResponse struct {
	JobID int64 `json:"job_id"`
}

// CancelRequest cancels a job.
type CancelRequest struct {
	Cluster string `json:"cluster"`
	JobID   int64  `json:"job_id"`
}

// JobGetRequest retrieves one job snapshot.
type JobGetRequest struct {
	Cluster string `json:"cluster"`
	JobID   int64  `json:"job_id"`
}

// JobHistoryRequest retrieves a job's event log.
type JobHistoryRequest struct {
	Cluster string `json:"cluster"`
	JobID   int64  `json:"job_id"`
}

// JobSearchRequest searches job snapshots.
type JobSearchRequest struct {
	Cluster string `json:"cluster,omitempty"`
	State   string `json:"state,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// NewRequestFrame creates a new request frame.
func NewRequestFrame(id, method string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        id,
		Type:      FrameRequest,
		Method:    method,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResponseFrame creates a response to a request.
func NewResponseFrame(correlID string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewErrorFrame creates an error response to a request.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:       GenerateFrameID(),
		Type:     FrameErr,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// GenerateFrameID returns a new unique frame ID.
// Uses a simple timestamp approach for performance.
func GenerateFrameID() string {
	return time.Now().UTC().Format("20060102150405.000000000")
}
