package swp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
	"github.com/converged-computing/flux-mcp-server/cluster"
	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/query"
	"github.com/converged-computing/flux-mcp-server/sink"
	"github.com/converged-computing/flux-mcp-server/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// fakeHandle satisfies cluster.Handle for submit/cancel dispatch tests.
type fakeHandle struct {
	gate      fluxmcp.AuthGate
	name      string
	submitted []map[string]any
	cancelled []int64
}

func (f *fakeHandle) Connect(context.Context) error { return nil }

func (f *fakeHandle) Submit(ctx context.Context, spec map[string]any, auth fluxmcp.AuthContext) (int64, error) {
	if !f.gate.Authorize(ctx, auth, f.name) {
		return 0, fluxmcp.ErrUnauthorized
	}
	f.submitted = append(f.submitted, spec)
	return int64(len(f.submitted)), nil
}

func (f *fakeHandle) Cancel(ctx context.Context, jobID int64, auth fluxmcp.AuthContext) error {
	if !f.gate.Authorize(ctx, auth, f.name) {
		return fluxmcp.ErrUnauthorized
	}
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

func (f *fakeHandle) JobInfo(context.Context, int64, fluxmcp.AuthContext) (map[string]any, error) {
	return nil, nil
}

func (f *fakeHandle) Events() (cluster.EventSource, error) { return nil, cluster.ErrNoEventStream }
func (f *fakeHandle) Close() error                         { return nil }
func (f *fakeHandle) Type() string                         { return "fake" }
func (f *fakeHandle) Config() map[string]string            { return nil }

func newTestHandler(t *testing.T, gate fluxmcp.AuthGate) (*Handler, *memory.Store, *fakeHandle) {
	t.Helper()
	if gate == nil {
		gate = fluxmcp.AllowAll{}
	}

	handle := &fakeHandle{gate: gate, name: "tiny"}
	reg := cluster.NewRegistry(
		cluster.WithGate(gate),
		cluster.WithLogger(testLogger()),
		cluster.WithFactory("fake", func(string, map[string]string, cluster.Deps) (cluster.Handle, error) {
			return handle, nil
		}),
	)
	if err := reg.Register(context.Background(), "tiny", "fake", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	st := memory.New()
	h := NewHandler(reg, query.NewService(st), sink.NewLocal(st), testLogger())
	return h, st, handle
}

func wildcardConn() *Connection {
	return NewConnection("conn-1", &Identity{Subject: "bob", Scopes: []string{"*"}})
}

func TestHandlerEventIngest(t *testing.T) {
	t.Parallel()

	h, st, _ := newTestHandler(t, nil)
	frame := &Frame{
		ID:     "req-1",
		Type:   FrameRequest,
		Method: MethodEventIngest,
		Data: mustJSON(IngestRequest{
			Cluster: "tiny",
			Event: map[string]any{
				"id": float64(7), "type": "submit", "t": 1.0,
				"data": map[string]any{"userid": "bob"},
			},
		}),
	}

	resp := h.Handle(context.Background(), frame, wildcardConn())
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want response (error: %+v)", resp.Type, resp.Error)
	}
	var result IngestResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !result.Success {
		t.Fatalf("Success = false, error %q", result.Error)
	}

	rec, err := st.GetJob(context.Background(), "tiny", 7)
	if err != nil {
		t.Fatalf("GetJob after ingest: %v", err)
	}
	if rec.User != "bob" {
		t.Errorf("User = %q, want bob", rec.User)
	}
}

func TestHandlerEventIngestWithoutJobIDIsDropped(t *testing.T) {
	t.Parallel()

	h, st, _ := newTestHandler(t, nil)
	frame := &Frame{
		ID:     "req-1",
		Type:   FrameRequest,
		Method: MethodEventIngest,
		Data: mustJSON(IngestRequest{
			Cluster: "tiny",
			Event:   map[string]any{"type": "state", "t": 1.0},
		}),
	}

	resp := h.Handle(context.Background(), frame, wildcardConn())
	var result IngestResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !result.Success {
		t.Errorf("drop should still acknowledge, got error %q", result.Error)
	}

	recs, err := st.SearchJobs(context.Background(), jobevent.Filter{})
	if err != nil {
		t.Fatalf("SearchJobs: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("store has %d jobs after dropped event, want 0", len(recs))
	}
}

func TestHandlerEventIngestMalformed(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestHandler(t, nil)
	frame := &Frame{
		ID:     "req-1",
		Type:   FrameRequest,
		Method: MethodEventIngest,
		Data: mustJSON(IngestRequest{
			Cluster: "tiny",
			Event:   map[string]any{"id": float64(7), "t": 1.0}, // no type
		}),
	}

	resp := h.Handle(context.Background(), frame, wildcardConn())
	var result IngestResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Success || result.Error == "" {
		t.Errorf("malformed event accepted: %+v", result)
	}
}

func TestHandlerJobSubmit(t *testing.T) {
	t.Parallel()

	h, _, handle := newTestHandler(t, nil)
	frame := &Frame{
		ID:     "req-1",
		Type:   FrameRequest,
		Method: MethodJobSubmit,
		Data: mustJSON(SubmitRequest{
			Cluster: "tiny",
			Spec:    map[string]any{"command": "sleep 60"},
		}),
	}

	resp := h.Handle(context.Background(), frame, wildcardConn())
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want response (error: %+v)", resp.Type, resp.Error)
	}
	var result SubmitResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.JobID != 1 {
		t.Errorf("JobID = %d, want 1", result.JobID)
	}
	if len(handle.submitted) != 1 {
		t.Errorf("handle saw %d submissions, want 1", len(handle.submitted))
	}
}

func TestHandlerJobSubmitDeniedByGate(t *testing.T) {
	t.Parallel()

	gate := fluxmcp.NewACLGate(map[string][]string{"alice": {"tiny"}})
	h, _, handle := newTestHandler(t, gate)
	frame := &Frame{
		ID:     "req-1",
		Type:   FrameRequest,
		Method: MethodJobSubmit,
		Data:   mustJSON(SubmitRequest{Cluster: "tiny", Spec: map[string]any{}}),
	}

	resp := h.Handle(context.Background(), frame, wildcardConn()) // subject "bob"
	if resp.Type != FrameErr || resp.Error.Code != ErrCodeForbidden {
		t.Fatalf("resp = %+v, want forbidden error", resp)
	}
	if len(handle.submitted) != 0 {
		t.Errorf("denied submit reached the handle")
	}
}

func TestHandlerJobSubmitUnknownCluster(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestHandler(t, nil)
	frame := &Frame{
		ID:     "req-1",
		Type:   FrameRequest,
		Method: MethodJobSubmit,
		Data:   mustJSON(SubmitRequest{Cluster: "nope", Spec: map[string]any{}}),
	}

	resp := h.Handle(context.Background(), frame, wildcardConn())
	if resp.Type != FrameErr || resp.Error.Code != ErrCodeNotFound {
		t.Fatalf("resp = %+v, want not-found error", resp)
	}
}

func TestHandlerJobCancel(t *testing.T) {
	t.Parallel()

	h, _, handle := newTestHandler(t, nil)
	frame := &Frame{
		ID:     "req-1",
		Type:   FrameRequest,
		Method: MethodJobCancel,
		Data:   mustJSON(CancelRequest{Cluster: "tiny", JobID: 42}),
	}

	resp := h.Handle(context.Background(), frame, wildcardConn())
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want response (error: %+v)", resp.Type, resp.Error)
	}
	if len(handle.cancelled) != 1 || handle.cancelled[0] != 42 {
		t.Errorf("cancelled = %v, want [42]", handle.cancelled)
	}
}

func TestHandlerJobGet(t *testing.T) {
	t.Parallel()

	h, st, _ := newTestHandler(t, nil)
	err := st.RecordEvent(context.Background(), &jobevent.JobEvent{
		Cluster: "tiny", JobID: 7, Type: jobevent.TypeSubmit, Timestamp: 1.0,
		Payload: map[string]any{"userid": "bob"},
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	frame := &Frame{
		ID:     "req-1",
		Type:   FrameRequest,
		Method: MethodJobGet,
		Data:   mustJSON(JobGetRequest{Cluster: "tiny", JobID: 7}),
	}
	resp := h.Handle(context.Background(), frame, wildcardConn())
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want response (error: %+v)", resp.Type, resp.Error)
	}

	var rec jobevent.JobRecord
	if err := json.Unmarshal(resp.Data, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.User != "bob" {
		t.Errorf("User = %q, want bob", rec.User)
	}
}

func TestHandlerJobGetNotFound(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestHandler(t, nil)
	frame := &Frame{
		ID:     "req-1",
		Type:   FrameRequest,
		Method: MethodJobGet,
		Data:   mustJSON(JobGetRequest{Cluster: "tiny", JobID: 404}),
	}
	resp := h.Handle(context.Background(), frame, wildcardConn())
	if resp.Type != FrameErr || resp.Error.Code != ErrCodeNotFound {
		t.Fatalf("resp = %+v, want not-found error", resp)
	}
}

func TestHandlerJobSearch(t *testing.T) {
	t.Parallel()

	h, st, _ := newTestHandler(t, nil)
	for i := int64(1); i <= 3; i++ {
		err := st.RecordEvent(context.Background(), &jobevent.JobEvent{
			Cluster: "tiny", JobID: i, Type: jobevent.TypeSubmit, Timestamp: float64(i),
		})
		if err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}

	frame := &Frame{
		ID:     "req-1",
		Type:   FrameRequest,
		Method: MethodJobSearch,
		Data:   mustJSON(JobSearchRequest{Cluster: "tiny", Limit: 2}),
	}
	resp := h.Handle(context.Background(), frame, wildcardConn())
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want response (error: %+v)", resp.Type, resp.Error)
	}

	var recs []*jobevent.JobRecord
	if err := json.Unmarshal(resp.Data, &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("search returned %d jobs, want 2", len(recs))
	}
}

func TestHandlerClusterList(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestHandler(t, nil)
	frame := &Frame{
		ID:     "req-1",
		Type:   FrameRequest,
		Method: MethodClusterList,
	}
	resp := h.Handle(context.Background(), frame, wildcardConn())
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want response (error: %+v)", resp.Type, resp.Error)
	}

	var infos []cluster.Info
	if err := json.Unmarshal(resp.Data, &infos); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "tiny" {
		t.Errorf("List = %+v, want one cluster named tiny", infos)
	}
}

func TestHandlerUnknownMethod(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestHandler(t, nil)
	frame := &Frame{ID: "req-1", Type: FrameRequest, Method: "job.promote"}
	resp := h.Handle(context.Background(), frame, wildcardConn())
	if resp.Type != FrameErr || resp.Error.Code != ErrCodeMethodNotFound {
		t.Fatalf("resp = %+v, want method-not-found error", resp)
	}
	if resp.CorrelID != "req-1" {
		t.Errorf("CorrelID = %q, want req-1", resp.CorrelID)
	}
}

func TestConnectionTouch(t *testing.T) {
	t.Parallel()

	conn := wildcardConn()
	first, ok := conn.LastActivity.Load().(time.Time)
	if !ok {
		t.Fatal("LastActivity not initialized")
	}
	time.Sleep(time.Millisecond)
	conn.Touch()
	second, _ := conn.LastActivity.Load().(time.Time)
	if !second.After(first) {
		t.Errorf("Touch did not advance LastActivity")
	}
}
