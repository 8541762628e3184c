// Package schema checks outgoing events for the fields consumers key on.
package schema

import (
	"errors"
	"fmt"

	"discord-transcriber/internal/models"
)

var ErrInvalidEvent = errors.New("invalid event")

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate returns ErrInvalidEvent joined with every missing field.
func (v *Validator) Validate(event any) error {
	var errs []error
	require := func(field, value string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", field))
		}
	}

	switch e := event.(type) {
	case models.VoiceMessageTranscript:
		require("eventType", e.EventType)
		require("eventId", e.EventID)
		require("channelId", e.ChannelID)
		require("messageId", e.MessageID)
		require("trigger", e.Trigger)
		if e.Timestamp <= 0 {
			errs = append(errs, errors.New("timestamp must be positive"))
		}
	case *models.VoiceMessageTranscript:
		return v.Validate(*e)
	case models.LiveUtterance:
		require("eventType", e.EventType)
		require("eventId", e.EventID)
		require("guildId", e.GuildID)
		require("channelId", e.ChannelID)
		require("userId", e.UserID)
		require("segmentId", e.SegmentID)
		if e.Timestamp <= 0 {
			errs = append(errs, errors.New("timestamp must be positive"))
		}
	case *models.LiveUtterance:
		return v.Validate(*e)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidEvent, event)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, errors.Join(errs...))
	}
	return nil
}
