package sink_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/sink"
	"github.com/converged-computing/flux-mcp-server/store/memory"
)

func TestLocalSendRecords(t *testing.T) {
	st := memory.New()
	s := sink.NewLocal(st)
	ctx := context.Background()

	err := s.Send(ctx, &jobevent.JobEvent{
		Cluster: "tiny", JobID: 7, Type: jobevent.TypeSubmit, Timestamp: 1.0,
		Payload: map[string]any{"userid": "bob"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// When Send returns, the write is visible.
	snap, err := st.GetJob(ctx, "tiny", 7)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if snap.State != jobevent.StateSubmitted {
		t.Errorf("State = %q, want submitted", snap.State)
	}
}

func TestLocalSendPropagatesError(t *testing.T) {
	st := memory.New()
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	s := sink.NewLocal(st)

	err := s.Send(context.Background(), &jobevent.JobEvent{Cluster: "tiny", JobID: 1, Type: jobevent.TypeSubmit})
	if err == nil {
		t.Fatal("expected error from closed store")
	}
}

type fakeForwarder struct {
	events []*jobevent.JobEvent
	err    error
}

func (f *fakeForwarder) IngestEvent(_ context.Context, _ string, evt *jobevent.JobEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evt)
	return nil
}

func TestRemoteSendForwards(t *testing.T) {
	fw := &fakeForwarder{}
	s := sink.NewRemote(fw)

	err := s.Send(context.Background(), &jobevent.JobEvent{
		Cluster: "tiny", JobID: 7, Type: jobevent.TypeState, Timestamp: 2.0,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fw.events) != 1 || fw.events[0].JobID != 7 {
		t.Errorf("forwarder saw %+v, want one event for job 7", fw.events)
	}
}

func TestRemoteSendWrapsError(t *testing.T) {
	wireErr := errors.New("connection reset")
	s := sink.NewRemote(&fakeForwarder{err: wireErr})

	err := s.Send(context.Background(), &jobevent.JobEvent{Cluster: "tiny", JobID: 1, Type: jobevent.TypeState})
	if !errors.Is(err, wireErr) {
		t.Errorf("err = %v, want wrapped %v", err, wireErr)
	}
}

func TestRemoteSendLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := sink.NewRemote(&fakeForwarder{err: errors.New("connection reset")}, sink.WithLogger(logger))

	if err := s.Send(context.Background(), &jobevent.JobEvent{Cluster: "tiny", JobID: 1, Type: jobevent.TypeState}); err == nil {
		t.Fatal("expected forward error")
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "event forward failed") {
		t.Errorf("log output %q missing warn record", out)
	}
}
