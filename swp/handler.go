package swp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
	"github.com/converged-computing/flux-mcp-server/cluster"
	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/query"
	"github.com/converged-computing/flux-mcp-server/sink"
)

// Handler dispatches SWP frames to cluster and query operations.
type Handler struct {
	registry *cluster.Registry
	queries  *query.Service
	ingest   sink.Sink
	logger   *slog.Logger
}

// NewHandler creates a new SWP method handler. The ingest sink is where
// forwarded events land; a server that accepts peer forwarding passes a
// local store sink here.
func NewHandler(reg *cluster.Registry, queries *query.Service, ingest sink.Sink, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{registry: reg, queries: queries, ingest: ingest, logger: logger}
}

// Handle processes a single SWP request frame and returns a response.
func (h *Handler) Handle(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	switch frame.Method {
	case MethodEventIngest:
		return h.handleEventIngest(ctx, frame)
	case MethodJobSubmit:
		return h.handleJobSubmit(ctx, frame, conn)
	case MethodJobCancel:
		return h.handleJobCancel(ctx, frame, conn)
	case MethodJobGet:
		return h.handleJobGet(ctx, frame)
	case MethodJobHistory:
		return h.handleJobHistory(ctx, frame)
	case MethodJobSearch:
		return h.handleJobSearch(ctx, frame)
	case MethodClusterList:
		return h.handleClusterList(frame)
	default:
		return NewErrorFrame(frame.ID, ErrCodeMethodNotFound, "unknown method: "+frame.Method)
	}
}

// mustResponseFrame creates a response frame, returning an error frame on marshal failure.
func mustResponseFrame(frameID string, data any) *Frame {
	resp, err := NewResponseFrame(frameID, data)
	if err != nil {
		return NewErrorFrame(frameID, ErrCodeInternal, "marshal response: "+err.Error())
	}
	return resp
}

func authOf(conn *Connection) fluxmcp.AuthContext {
	if conn == nil || conn.Identity == nil {
		return fluxmcp.AuthContext{}
	}
	return conn.Identity.AuthContext()
}

func (h *Handler) handleEventIngest(ctx context.Context, frame *Frame) *Frame {
	var req IngestRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}
	if req.Cluster == "" {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "cluster is required")
	}

	evt, err := jobevent.Normalize(req.Cluster, req.Event)
	if err != nil {
		// A forwarded event that cannot be attributed to a job is
		// acknowledged and dropped, same as the local poll path.
		if errors.Is(err, fluxmcp.ErrMissingJobID) {
			h.logger.Debug("dropping forwarded event without job id",
				slog.String("cluster", req.Cluster))
			return mustResponseFrame(frame.ID, IngestResponse{Success: true})
		}
		return mustResponseFrame(frame.ID, IngestResponse{Success: false, Error: err.Error()})
	}

	if err := h.ingest.Send(ctx, evt); err != nil {
		h.logger.Error("ingest failed",
			slog.String("cluster", evt.Cluster),
			slog.Int64("job_id", evt.JobID),
			slog.String("error", err.Error()))
		return mustResponseFrame(frame.ID, IngestResponse{Success: false, Error: err.Error()})
	}

	return mustResponseFrame(frame.ID, IngestResponse{Success: true})
}

func (h *Handler) handleJobSubmit(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	var req SubmitRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	handle, err := h.registry.Handle(req.Cluster)
	if err != nil {
		return NewErrorFrame(frame.ID, ErrCodeNotFound, err.Error())
	}

	jobID, err := handle.Submit(ctx, req.Spec, authOf(conn))
	if err != nil {
		if errors.Is(err, fluxmcp.ErrUnauthorized) {
			return NewErrorFrame(frame.ID, ErrCodeForbidden, "not authorized for cluster "+req.Cluster)
		}
		return NewErrorFrame(frame.ID, ErrCodeInternal, "submit failed: "+err.Error())
	}

	return mustResponseFrame(frame.ID, SubmitResponse{JobID: jobID})
}

func (h *Handler) handleJobCancel(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	var req CancelRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	handle, err := h.registry.Handle(req.Cluster)
	if err != nil {
		return NewErrorFrame(frame.ID, ErrCodeNotFound, err.Error())
	}

	if err := handle.Cancel(ctx, req.JobID, authOf(conn)); err != nil {
		if errors.Is(err, fluxmcp.ErrUnauthorized) {
			return NewErrorFrame(frame.ID, ErrCodeForbidden, "not authorized for cluster "+req.Cluster)
		}
		return NewErrorFrame(frame.ID, ErrCodeInternal, "cancel failed: "+err.Error())
	}

	return mustResponseFrame(frame.ID, map[string]string{"status": "cancelled"})
}

func (h *Handler) handleJobGet(ctx context.Context, frame *Frame) *Frame {
	var req JobGetRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	rec, err := h.queries.Job(ctx, req.Cluster, req.JobID)
	if err != nil {
		return NewErrorFrame(frame.ID, ErrCodeInternal, err.Error())
	}
	if rec == nil {
		return NewErrorFrame(frame.ID, ErrCodeNotFound, "job not found")
	}

	return mustResponseFrame(frame.ID, rec)
}

func (h *Handler) handleJobHistory(ctx context.Context, frame *Frame) *Frame {
	var req JobHistoryRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	events, err := h.queries.History(ctx, req.Cluster, req.JobID)
	if err != nil {
		return NewErrorFrame(frame.ID, ErrCodeInternal, err.Error())
	}

	return mustResponseFrame(frame.ID, events)
}

func (h *Handler) handleJobSearch(ctx context.Context, frame *Frame) *Frame {
	var req JobSearchRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	recs, err := h.queries.Search(ctx, jobevent.Filter{
		Cluster: req.Cluster,
		State:   jobevent.JobState(req.State),
		Limit:   req.Limit,
	})
	if err != nil {
		return NewErrorFrame(frame.ID, ErrCodeInternal, err.Error())
	}

	return mustResponseFrame(frame.ID, recs)
}

func (h *Handler) handleClusterList(frame *Frame) *Frame {
	return mustResponseFrame(frame.ID, h.registry.List())
}
