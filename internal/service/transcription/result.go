package transcription

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// FailureKind classifies why a request produced no transcript.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNoAttachment
	FailureNotVoiceMessage
	FailureMissingCredential
	FailureDownload
	FailureConversion
	FailureTranscription
	FailureReply
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNoAttachment:
		return "no_attachment"
	case FailureNotVoiceMessage:
		return "not_voice_message"
	case FailureMissingCredential:
		return "missing_credential"
	case FailureDownload:
		return "download"
	case FailureConversion:
		return "conversion"
	case FailureTranscription:
		return "transcription"
	case FailureReply:
		return "reply"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// IsRejection is true for failures detected before any work started.
func (k FailureKind) IsRejection() bool {
	return k == FailureNoAttachment || k == FailureNotVoiceMessage
}

// Result is the outcome of one pipeline run. Display text is produced only by Render.
type Result struct {
	Text      string
	Failure   FailureKind
	Reason    string
	Engine    string
	Truncated bool

	// Link is the placeholder's jump URL, or the stored link on an index hit.
	Link   string
	Cached bool
	State  State

	AudioDuration time.Duration
}

const (
	Placeholder        = "✨ Transcribing..."
	Started            = "Transcription started!"
	EmptyTranscript    = "*nothing*"
	MaxTranscriptRunes = 1900

	msgNoAttachment      = "Transcription failed! (No Voice Message)"
	msgNotVoiceMessage   = "Transcription failed! (Attachment not a Voice Message)"
	msgMissingCredential = "Transcription failed! (Configured to use the transcription API, but no API Key provided!)"
	msgErrorPrefix       = "Transcription failed! Error: "
)

// Render produces the message text for r and sets r.Truncated.
func Render(r *Result) string {
	switch r.Failure {
	case FailureNone:
	case FailureNoAttachment:
		return msgNoAttachment
	case FailureNotVoiceMessage:
		return msgNotVoiceMessage
	case FailureMissingCredential:
		return msgMissingCredential
	default:
		return msgErrorPrefix + r.Reason
	}

	text := r.Text
	if text == "" {
		text = EmptyTranscript
	}

	r.Truncated = utf8.RuneCountInString(text) > MaxTranscriptRunes
	if !r.Truncated {
		return "```" + text + "```"
	}
	return "```" + string([]rune(text)[:MaxTranscriptRunes]) + "...```" + " *(truncated)*"
}
