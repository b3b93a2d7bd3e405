package memory_test

import (
	"context"
	"errors"
	"testing"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/store/memory"
)

func recordAll(t *testing.T, s *memory.Store, events ...*jobevent.JobEvent) {
	t.Helper()
	ctx := context.Background()
	for _, evt := range events {
		if err := s.RecordEvent(ctx, evt); err != nil {
			t.Fatalf("RecordEvent(%s @ %v): %v", evt.Type, evt.Timestamp, err)
		}
	}
}

func TestRecordEventLifecycle(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	recordAll(t, s,
		&jobevent.JobEvent{Cluster: "tiny", JobID: 7, Type: jobevent.TypeSubmit, Timestamp: 1.0,
			Payload: map[string]any{"userid": "bob", "cwd": "/tmp"}},
		&jobevent.JobEvent{Cluster: "tiny", JobID: 7, Type: jobevent.TypeState, Timestamp: 2.0,
			Payload: map[string]any{"state": "RUN"}},
		&jobevent.JobEvent{Cluster: "tiny", JobID: 7, Type: jobevent.TypeState, Timestamp: 3.0,
			Payload: map[string]any{"state": "INACTIVE", "status": float64(0)}},
	)

	snap, err := s.GetJob(ctx, "tiny", 7)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if snap.State != jobevent.StateInactive {
		t.Errorf("State = %q, want INACTIVE", snap.State)
	}
	if snap.User != "bob" || snap.Workdir != "/tmp" {
		t.Errorf("identity = %q/%q, want bob//tmp", snap.User, snap.Workdir)
	}
	if snap.ExitCode == nil || *snap.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", snap.ExitCode)
	}

	history, err := s.GetEventHistory(ctx, "tiny", 7)
	if err != nil {
		t.Fatalf("GetEventHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, want := range []jobevent.EventType{jobevent.TypeSubmit, jobevent.TypeState, jobevent.TypeState} {
		if history[i].Type != want {
			t.Errorf("history[%d].Type = %q, want %q", i, history[i].Type, want)
		}
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp < history[i-1].Timestamp {
			t.Errorf("history out of order at %d: %v < %v", i, history[i].Timestamp, history[i-1].Timestamp)
		}
	}
	if history[0].ID.IsNil() {
		t.Error("event record has nil ID")
	}
}

func TestRecordEventAlwaysAppends(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	submit := &jobevent.JobEvent{Cluster: "tiny", JobID: 1, Type: jobevent.TypeSubmit, Timestamp: 1.0,
		Payload: map[string]any{"userid": "bob"}}

	// A duplicate that changes nothing in the snapshot still lands in
	// the log.
	recordAll(t, s, submit, submit)

	history, err := s.GetEventHistory(ctx, "tiny", 1)
	if err != nil {
		t.Fatalf("GetEventHistory: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history length = %d, want 2", len(history))
	}
}

func TestRecordEventResubmitResetsState(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	submit := &jobevent.JobEvent{Cluster: "tiny", JobID: 9, Type: jobevent.TypeSubmit, Timestamp: 1.0,
		Payload: map[string]any{"userid": "bob", "cwd": "/tmp"}}

	// A submit redelivered after a state transition moves the snapshot
	// back to submitted.
	recordAll(t, s,
		submit,
		&jobevent.JobEvent{Cluster: "tiny", JobID: 9, Type: jobevent.TypeState, Timestamp: 2.0,
			Payload: map[string]any{"state": "RUN"}},
		&jobevent.JobEvent{Cluster: "tiny", JobID: 9, Type: jobevent.TypeSubmit, Timestamp: 3.0,
			Payload: submit.Payload},
	)

	snap, err := s.GetJob(ctx, "tiny", 9)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if snap.State != jobevent.StateSubmitted {
		t.Errorf("State = %q after re-submit, want submitted", snap.State)
	}
	if snap.SubmitTime != 1.0 {
		t.Errorf("SubmitTime = %v, want 1.0", snap.SubmitTime)
	}
	if snap.LastUpdated != 3.0 {
		t.Errorf("LastUpdated = %v, want 3.0", snap.LastUpdated)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := memory.New()

	_, err := s.GetJob(context.Background(), "tiny", 404)
	if !errors.Is(err, fluxmcp.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestGetEventHistoryUnknownJob(t *testing.T) {
	s := memory.New()

	history, err := s.GetEventHistory(context.Background(), "tiny", 404)
	if err != nil {
		t.Fatalf("GetEventHistory: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history length = %d, want 0", len(history))
	}
}

func TestSearchJobs(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	recordAll(t, s,
		&jobevent.JobEvent{Cluster: "tiny", JobID: 1, Type: jobevent.TypeState, Timestamp: 1.0,
			Payload: map[string]any{"state": "RUN"}},
		&jobevent.JobEvent{Cluster: "tiny", JobID: 2, Type: jobevent.TypeState, Timestamp: 2.0,
			Payload: map[string]any{"state": "INACTIVE"}},
		&jobevent.JobEvent{Cluster: "summit", JobID: 3, Type: jobevent.TypeState, Timestamp: 3.0,
			Payload: map[string]any{"state": "RUN"}},
	)

	byCluster, err := s.SearchJobs(ctx, jobevent.Filter{Cluster: "tiny"})
	if err != nil {
		t.Fatalf("SearchJobs: %v", err)
	}
	if len(byCluster) != 2 {
		t.Errorf("cluster filter returned %d jobs, want 2", len(byCluster))
	}

	byState, err := s.SearchJobs(ctx, jobevent.Filter{State: jobevent.StateRun})
	if err != nil {
		t.Fatalf("SearchJobs: %v", err)
	}
	if len(byState) != 2 {
		t.Errorf("state filter returned %d jobs, want 2", len(byState))
	}
	for _, rec := range byState {
		if rec.State != jobevent.StateRun {
			t.Errorf("state filter leaked %q", rec.State)
		}
	}

	both, err := s.SearchJobs(ctx, jobevent.Filter{Cluster: "summit", State: jobevent.StateRun})
	if err != nil {
		t.Fatalf("SearchJobs: %v", err)
	}
	if len(both) != 1 || both[0].JobID != 3 {
		t.Errorf("combined filter = %+v, want job 3", both)
	}
}

func TestSearchJobsDefaultLimit(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for i := int64(1); i <= 15; i++ {
		recordAll(t, s, &jobevent.JobEvent{
			Cluster: "tiny", JobID: i, Type: jobevent.TypeSubmit, Timestamp: float64(i),
		})
	}

	got, err := s.SearchJobs(ctx, jobevent.Filter{})
	if err != nil {
		t.Fatalf("SearchJobs: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("default limit returned %d jobs, want 10", len(got))
	}
	// Most recently updated first.
	if got[0].JobID != 15 {
		t.Errorf("first result job %d, want 15", got[0].JobID)
	}

	capped, err := s.SearchJobs(ctx, jobevent.Filter{Limit: 3})
	if err != nil {
		t.Fatalf("SearchJobs: %v", err)
	}
	if len(capped) != 3 {
		t.Errorf("explicit limit returned %d jobs, want 3", len(capped))
	}
}

func TestCopiesOut(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	recordAll(t, s, &jobevent.JobEvent{Cluster: "tiny", JobID: 1, Type: jobevent.TypeSubmit, Timestamp: 1.0,
		Payload: map[string]any{"userid": "bob"}})

	snap, _ := s.GetJob(ctx, "tiny", 1)
	snap.User = "mallory"
	snap.State = jobevent.StateInactive

	again, _ := s.GetJob(ctx, "tiny", 1)
	if again.User != "bob" || again.State != jobevent.StateSubmitted {
		t.Errorf("mutation through returned snapshot leaked into store: %+v", again)
	}

	history, _ := s.GetEventHistory(ctx, "tiny", 1)
	history[0].Payload["userid"] = "mallory"

	historyAgain, _ := s.GetEventHistory(ctx, "tiny", 1)
	if historyAgain[0].Payload["userid"] != "bob" {
		t.Error("mutation through returned history leaked into store")
	}
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	s := memory.New()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := s.RecordEvent(context.Background(), &jobevent.JobEvent{
		Cluster: "tiny", JobID: 1, Type: jobevent.TypeSubmit,
	})
	if !errors.Is(err, fluxmcp.ErrStoreClosed) {
		t.Errorf("err = %v, want ErrStoreClosed", err)
	}
}

func TestConcurrentRecord(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	done := make(chan error, 10)
	for g := 0; g < 10; g++ {
		go func(g int) {
			var err error
			for i := 0; i < 20; i++ {
				err = s.RecordEvent(ctx, &jobevent.JobEvent{
					Cluster: "tiny", JobID: int64(g), Type: jobevent.TypeState,
					Timestamp: float64(i),
					Payload:   map[string]any{"state": "RUN"},
				})
				if err != nil {
					break
				}
			}
			done <- err
		}(g)
	}
	for g := 0; g < 10; g++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent RecordEvent: %v", err)
		}
	}

	for g := int64(0); g < 10; g++ {
		history, err := s.GetEventHistory(ctx, "tiny", g)
		if err != nil {
			t.Fatalf("GetEventHistory: %v", err)
		}
		if len(history) != 20 {
			t.Errorf("job %d history length = %d, want 20", g, len(history))
		}
	}
}
