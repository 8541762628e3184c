// Package segment tracks the lifecycle of one speaker's audio segment in a
// live voice session.
package segment

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a segment.
type State int

const (
	// StateRecording - packets are being appended.
	StateRecording State = iota
	// StateFlushed - audio handed off for transcription, no more packets.
	StateFlushed
	// StateClosed - transcription done or session ended.
	StateClosed
	// StateDropped - abandoned without transcription (error, leave).
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "RECORDING"
	case StateFlushed:
		return "FLUSHED"
	case StateClosed:
		return "CLOSED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is CLOSED or DROPPED.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateDropped
}

var (
	ErrSegmentClosed    = errors.New("segment is closed")
	ErrAlreadyFlushed   = errors.New("segment already flushed")
	ErrAppendAfterFlush = errors.New("cannot append after flush")
	ErrNothingToFlush   = errors.New("segment has no audio")
)

// Lifecycle is the state machine for a single segment. Thread-safe.
//
//	RECORDING → FLUSHED → CLOSED
//	    │
//	    └── Drop() ──→ DROPPED
//
// Append is allowed only while RECORDING. Flush happens at most once and
// requires at least one appended packet.
type Lifecycle struct {
	mu        sync.RWMutex
	segmentID string
	state     State
	packets   int
	bytes     int64
}

// NewLifecycle creates a new segment lifecycle in RECORDING state.
func NewLifecycle(segmentID string) *Lifecycle {
	return &Lifecycle{
		segmentID: segmentID,
		state:     StateRecording,
	}
}

func (l *Lifecycle) SegmentID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.segmentID
}

func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Size returns packets and payload bytes appended so far.
func (l *Lifecycle) Size() (packets int, bytes int64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.packets, l.bytes
}

func (l *Lifecycle) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// Append records one packet of n payload bytes.
func (l *Lifecycle) Append(n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateRecording:
		l.packets++
		l.bytes += int64(n)
		return nil
	case StateFlushed:
		return ErrAppendAfterFlush
	case StateClosed, StateDropped:
		return ErrSegmentClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Flush transitions RECORDING → FLUSHED.
func (l *Lifecycle) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateRecording:
		if l.packets == 0 {
			return ErrNothingToFlush
		}
		l.state = StateFlushed
		return nil
	case StateFlushed:
		return ErrAlreadyFlushed
	case StateClosed, StateDropped:
		return ErrSegmentClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Close can be called from any state. Idempotent.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateClosed
}

// Drop abandons the segment. Returns false if already terminal.
func (l *Lifecycle) Drop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDropped
	return true
}

// Reset reopens the lifecycle for the speaker's next segment.
func (l *Lifecycle) Reset(newSegmentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.segmentID = newSegmentID
	l.state = StateRecording
	l.packets = 0
	l.bytes = 0
}
