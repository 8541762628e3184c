package transcription

import "fmt"

// State of a single request.
//
//	RECEIVED → PLACEHOLDER_POSTED → CONVERTING → TRANSCRIBING → COMPLETED
//	   │                                  │            │
//	   └──→ REJECTED                      └────────────┴──→ FAILED
type State int

const (
	StateReceived State = iota
	StatePlaceholderPosted
	StateConverting
	StateTranscribing
	StateCompleted
	StateRejected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "RECEIVED"
	case StatePlaceholderPosted:
		return "PLACEHOLDER_POSTED"
	case StateConverting:
		return "CONVERTING"
	case StateTranscribing:
		return "TRANSCRIBING"
	case StateCompleted:
		return "COMPLETED"
	case StateRejected:
		return "REJECTED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for COMPLETED, REJECTED and FAILED.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateRejected || s == StateFailed
}
