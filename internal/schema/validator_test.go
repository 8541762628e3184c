package schema

import (
	"errors"
	"strings"
	"testing"

	"discord-transcriber/internal/models"
)

func TestValidate_VoiceMessageTranscript(t *testing.T) {
	v := New()

	valid := models.VoiceMessageTranscript{
		EventType: models.EventVoiceMessageTranscript,
		EventID:   "e-1",
		Timestamp: 1700000000000,
		ChannelID: "10",
		MessageID: "20",
		Trigger:   "auto",
	}
	if err := v.Validate(valid); err != nil {
		t.Errorf("expected valid event, got %v", err)
	}
	if err := v.Validate(&valid); err != nil {
		t.Errorf("expected pointer to validate too, got %v", err)
	}

	missing := valid
	missing.MessageID = ""
	missing.Timestamp = 0
	err := v.Validate(missing)
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	for _, want := range []string{"messageId", "timestamp"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_LiveUtterance(t *testing.T) {
	v := New()

	e := models.LiveUtterance{
		EventType: models.EventLiveUtterance,
		EventID:   "e-2",
		Timestamp: 1,
		GuildID:   "1",
		ChannelID: "2",
		UserID:    "3",
		SegmentID: "seg-1",
	}
	if err := v.Validate(e); err != nil {
		t.Errorf("expected valid event, got %v", err)
	}

	e.SegmentID = ""
	if err := v.Validate(e); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestValidate_UnsupportedType(t *testing.T) {
	if err := New().Validate(map[string]string{}); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}
