// Package transcription runs the voice message pipeline: validate the
// attachment, post a placeholder, convert, transcribe and edit the result in.
package transcription

import (
	"mime"
	"strings"
)

// Trigger says what started a request.
type Trigger string

const (
	TriggerAuto    Trigger = "auto"
	TriggerCommand Trigger = "command"
)

// VoiceMessageType is the media type Discord uses for recorded voice messages.
const VoiceMessageType = "audio/ogg"

type Attachment struct {
	ID          string
	URL         string
	ContentType string
	Filename    string
	Size        int
}

// Request is built per inbound event and consumed once.
type Request struct {
	MessageID   string
	ChannelID   string
	GuildID     string
	AuthorID    string
	Trigger     Trigger
	Attachments []Attachment
}

// IsVoiceMessage reports whether contentType is audio/ogg, ignoring
// parameters such as codecs.
func IsVoiceMessage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	}
	return mediaType == VoiceMessageType
}

// MessageRef locates a Discord message.
type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

func (r Request) Ref() MessageRef {
	return MessageRef{GuildID: r.GuildID, ChannelID: r.ChannelID, MessageID: r.MessageID}
}
