package segment

import (
	"errors"
	"sync"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("seg-1")

	if lc.State() != StateRecording {
		t.Errorf("expected StateRecording, got %v", lc.State())
	}
	if lc.SegmentID() != "seg-1" {
		t.Errorf("expected seg-1, got %v", lc.SegmentID())
	}
	if lc.IsClosed() {
		t.Error("expected IsClosed to be false")
	}
	if p, b := lc.Size(); p != 0 || b != 0 {
		t.Errorf("expected empty segment, got %d packets %d bytes", p, b)
	}
}

func TestLifecycle_AppendAccumulates(t *testing.T) {
	lc := NewLifecycle("seg-1")

	for i := 0; i < 5; i++ {
		if err := lc.Append(100); err != nil {
			t.Errorf("append %d: unexpected error: %v", i, err)
		}
	}

	p, b := lc.Size()
	if p != 5 || b != 500 {
		t.Errorf("expected 5 packets 500 bytes, got %d %d", p, b)
	}
	if lc.State() != StateRecording {
		t.Errorf("expected StateRecording, got %v", lc.State())
	}
}

func TestLifecycle_FlushEmptyRejected(t *testing.T) {
	lc := NewLifecycle("seg-1")

	if err := lc.Flush(); !errors.Is(err, ErrNothingToFlush) {
		t.Errorf("expected ErrNothingToFlush, got %v", err)
	}
	if lc.State() != StateRecording {
		t.Errorf("expected StateRecording, got %v", lc.State())
	}
}

func TestLifecycle_FlushOnce(t *testing.T) {
	lc := NewLifecycle("seg-1")
	lc.Append(10)

	if err := lc.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.State() != StateFlushed {
		t.Errorf("expected StateFlushed, got %v", lc.State())
	}
	if err := lc.Flush(); !errors.Is(err, ErrAlreadyFlushed) {
		t.Errorf("expected ErrAlreadyFlushed, got %v", err)
	}
	if err := lc.Append(10); !errors.Is(err, ErrAppendAfterFlush) {
		t.Errorf("expected ErrAppendAfterFlush, got %v", err)
	}
}

func TestLifecycle_ClosedRejectsEverything(t *testing.T) {
	lc := NewLifecycle("seg-1")
	lc.Append(10)
	lc.Close()

	if err := lc.Append(10); !errors.Is(err, ErrSegmentClosed) {
		t.Errorf("expected ErrSegmentClosed, got %v", err)
	}
	if err := lc.Flush(); !errors.Is(err, ErrSegmentClosed) {
		t.Errorf("expected ErrSegmentClosed, got %v", err)
	}
	if !lc.IsClosed() {
		t.Error("expected IsClosed")
	}
	lc.Close()
	if lc.State() != StateClosed {
		t.Errorf("expected Close to be idempotent, got %v", lc.State())
	}
}

func TestLifecycle_Drop(t *testing.T) {
	lc := NewLifecycle("seg-1")

	if !lc.Drop() {
		t.Error("expected first drop to succeed")
	}
	if lc.State() != StateDropped {
		t.Errorf("expected StateDropped, got %v", lc.State())
	}
	if lc.Drop() {
		t.Error("expected second drop to report already terminal")
	}

	closed := NewLifecycle("seg-2")
	closed.Close()
	if closed.Drop() {
		t.Error("expected drop of closed segment to fail")
	}
}

func TestLifecycle_Reset(t *testing.T) {
	lc := NewLifecycle("seg-1")
	lc.Append(42)
	lc.Flush()
	lc.Close()

	lc.Reset("seg-2")

	if lc.SegmentID() != "seg-2" {
		t.Errorf("expected seg-2, got %s", lc.SegmentID())
	}
	if lc.State() != StateRecording {
		t.Errorf("expected StateRecording, got %v", lc.State())
	}
	if p, b := lc.Size(); p != 0 || b != 0 {
		t.Errorf("expected counters reset, got %d %d", p, b)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateRecording, "RECORDING"},
		{StateFlushed, "FLUSHED"},
		{StateClosed, "CLOSED"},
		{StateDropped, "DROPPED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	if StateRecording.IsTerminal() || StateFlushed.IsTerminal() {
		t.Error("expected non-terminal states")
	}
	if !StateClosed.IsTerminal() || !StateDropped.IsTerminal() {
		t.Error("expected terminal states")
	}
}

func TestLifecycle_ConcurrentAppend(t *testing.T) {
	lc := NewLifecycle("seg-1")
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lc.Append(3)
		}()
	}
	wg.Wait()

	if p, b := lc.Size(); p != 100 || b != 300 {
		t.Errorf("expected 100 packets 300 bytes, got %d %d", p, b)
	}
}
