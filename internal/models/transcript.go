// Package models defines the data structures for transcript events.
package models

const (
	EventVoiceMessageTranscript = "discord.voice_message.transcript"
	EventLiveUtterance          = "discord.voice.live.utterance"
)

// VoiceMessageTranscript is emitted once per pipeline run that reached the
// placeholder stage, successful or not.
type VoiceMessageTranscript struct {
	EventType    string `json:"eventType"`
	EventID      string `json:"eventId"`
	Timestamp    int64  `json:"timestamp"`
	GuildID      string `json:"guildId,omitempty"`
	ChannelID    string `json:"channelId"`
	MessageID    string `json:"messageId"`
	AuthorID     string `json:"authorId"`
	Trigger      string `json:"trigger"`
	Engine       string `json:"engine"`
	Text         string `json:"text"`
	Failure      string `json:"failure,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Truncated    bool   `json:"truncated"`
	DurationMs   int64  `json:"durationMs"`
	Link         string `json:"transcriptLink"`
}

// LiveUtterance is one flushed speaker segment from a voice channel.
type LiveUtterance struct {
	EventType   string `json:"eventType"`
	EventID     string `json:"eventId"`
	Timestamp   int64  `json:"timestamp"`
	GuildID     string `json:"guildId"`
	ChannelID   string `json:"channelId"`
	UserID      string `json:"userId"`
	SegmentID   string `json:"segmentId"`
	Engine      string `json:"engine"`
	Text        string `json:"text"`
	AudioBytes  int64  `json:"audioBytes"`
	DurationMs  int64  `json:"durationMs"`
	StartOffset int64  `json:"startOffsetMs"`
}
