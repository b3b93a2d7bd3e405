package swp

import (
	"encoding/json"
	"testing"
)

func TestNewRequestFrame(t *testing.T) {
	t.Parallel()

	frame, err := NewRequestFrame("req-1", MethodJobGet, JobGetRequest{Cluster: "tiny", JobID: 7})
	if err != nil {
		t.Fatalf("NewRequestFrame: %v", err)
	}
	if frame.Type != FrameRequest {
		t.Errorf("Type = %q, want %q", frame.Type, FrameRequest)
	}
	if frame.Method != MethodJobGet {
		t.Errorf("Method = %q, want %q", frame.Method, MethodJobGet)
	}
	if frame.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}

	var req JobGetRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if req.Cluster != "tiny" || req.JobID != 7 {
		t.Errorf("data = %+v, want tiny/7", req)
	}
}

func TestNewResponseFrameCorrelation(t *testing.T) {
	t.Parallel()

	resp, err := NewResponseFrame("req-1", IngestResponse{Success: true})
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}
	if resp.Type != FrameResponse {
		t.Errorf("Type = %q, want %q", resp.Type, FrameResponse)
	}
	if resp.CorrelID != "req-1" {
		t.Errorf("CorrelID = %q, want req-1", resp.CorrelID)
	}
	if resp.ID == "" {
		t.Error("response frame missing its own ID")
	}
}

func TestNewErrorFrame(t *testing.T) {
	t.Parallel()

	frame := NewErrorFrame("req-1", ErrCodeForbidden, "insufficient permissions")
	if frame.Type != FrameErr {
		t.Errorf("Type = %q, want %q", frame.Type, FrameErr)
	}
	if frame.Error == nil {
		t.Fatal("Error detail missing")
	}
	if frame.Error.Code != ErrCodeForbidden {
		t.Errorf("Code = %d, want %d", frame.Error.Code, ErrCodeForbidden)
	}
	if frame.Error.Message != "insufficient permissions" {
		t.Errorf("Message = %q", frame.Error.Message)
	}
}

func TestFrameJSONRoundTrip(t *testing.T) {
	t.Parallel()

	frame, err := NewRequestFrame("req-1", MethodEventIngest, IngestRequest{
		Cluster: "tiny",
		Event:   map[string]any{"id": float64(7), "type": "submit"},
	})
	if err != nil {
		t.Fatalf("NewRequestFrame: %v", err)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Frame
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != frame.ID || decoded.Method != frame.Method {
		t.Errorf("decoded = %+v, want %+v", decoded, frame)
	}
}
