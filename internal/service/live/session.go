package live

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"discord-transcriber/internal/models"
	"discord-transcriber/internal/observability/logging"
	"discord-transcriber/internal/observability/metrics"
	"discord-transcriber/internal/service/segment"
)

const SilenceText = "*Silence detected*"

// Recognizer turns a compressed audio segment into text.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte) (string, error)
	EngineName() string
}

// Poster sends a plain message to a text channel.
type Poster interface {
	Post(channelID, content string) error
}

// Names resolves a guild member's display name.
type Names interface {
	DisplayName(guildID, userID string) string
}

// EventSink receives one event per posted utterance.
type EventSink interface {
	PublishLive(ctx context.Context, event models.LiveUtterance) error
}

// Deps are shared by every session a Manager starts.
type Deps struct {
	Recognizer Recognizer
	Poster     Poster
	Names      Names
	Events     EventSink
	Limits     Limits
}

// Session is one joined voice channel.
type Session struct {
	guildID       string
	textChannelID string
	deps          Deps
	gen           *segment.Generator
	logger        zerolog.Logger
	metrics       *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	speakers map[uint32]*Speaker
	users    map[uint32]string
	closed   bool
}

func newSession(parent context.Context, guildID, textChannelID string, deps Deps) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		guildID:       guildID,
		textChannelID: textChannelID,
		deps:          deps,
		gen:           segment.New(),
		logger:        logging.WithComponent("live"),
		metrics:       metrics.DefaultMetrics,
		ctx:           ctx,
		cancel:        cancel,
		speakers:      make(map[uint32]*Speaker),
		users:         make(map[uint32]string),
	}
}

// MapSpeaker records which user owns an SSRC, from a speaking update.
func (s *Session) MapSpeaker(ssrc uint32, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[ssrc] = userID
}

// HandlePacket routes a packet to its speaker.
func (s *Session) HandlePacket(p Packet) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	sp, ok := s.speakers[p.SSRC]
	if !ok {
		sp = NewSpeaker(s.guildID, p.SSRC, s.deps.Limits, s.gen, s.onSegment)
		s.speakers[p.SSRC] = sp
	}
	s.mu.Unlock()

	if err := sp.Write(p); err != nil {
		s.logger.Debug().
			Err(err).
			Str("guildId", s.guildID).
			Uint32("ssrc", p.SSRC).
			Msg("Packet ignored")
	}
}

// Run consumes packets until the channel closes or the session ends.
func (s *Session) Run(packets <-chan Packet) {
	for {
		select {
		case p, ok := <-packets:
			if !ok {
				return
			}
			s.HandlePacket(p)
		case <-s.ctx.Done():
			return
		}
	}
}

// Close stops every speaker, cancels in-flight segments and waits for them.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	speakers := make([]*Speaker, 0, len(s.speakers))
	for _, sp := range s.speakers {
		speakers = append(speakers, sp)
	}
	s.mu.Unlock()

	for _, sp := range speakers {
		sp.Stop()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Session) onSegment(seg Segment) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.metrics.RecordLiveSegment("dropped")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.process(seg)
	}()
}

func (s *Session) userFor(ssrc uint32) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[ssrc]
}

func (s *Session) process(seg Segment) {
	userID := s.userFor(seg.SSRC)
	logger := logging.WithSpeaker(s.guildID, userID, seg.ID)

	text, err := s.deps.Recognizer.Recognize(s.ctx, seg.Ogg)
	if err != nil {
		s.metrics.RecordLiveSegment("failed")
		logger.Error().Err(err).
			Int("packets", seg.Packets).
			Dur("duration", seg.Duration).
			Msg("Live segment transcription failed")
		return
	}

	outcome := "posted"
	shown := strings.TrimSpace(text)
	if shown == "" {
		outcome = "silent"
		shown = SilenceText
	}

	content := fmt.Sprintf("**%s said:** %s", s.displayName(userID), shown)
	if err := s.deps.Poster.Post(s.textChannelID, content); err != nil {
		s.metrics.RecordLiveSegment("failed")
		logger.Error().Err(err).Msg("Failed to post live transcript")
		return
	}
	s.metrics.RecordLiveSegment(outcome)

	logger.Debug().
		Str("reason", seg.Reason).
		Dur("duration", seg.Duration).
		Str("text", text).
		Msg("Live segment posted")

	if s.deps.Events == nil {
		return
	}
	ev := models.LiveUtterance{
		EventType:   models.EventLiveUtterance,
		EventID:     uuid.NewString(),
		Timestamp:   time.Now().UnixMilli(),
		GuildID:     s.guildID,
		ChannelID:   s.textChannelID,
		UserID:      userOrSSRC(userID, seg.SSRC),
		SegmentID:   seg.ID,
		Engine:      s.deps.Recognizer.EngineName(),
		Text:        strings.TrimSpace(text),
		AudioBytes:  seg.Bytes,
		DurationMs:  seg.Duration.Milliseconds(),
		StartOffset: seg.StartedAt.UnixMilli(),
	}
	if err := s.deps.Events.PublishLive(s.ctx, ev); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish live utterance")
	}
}

func (s *Session) displayName(userID string) string {
	if userID == "" {
		return "Unknown speaker"
	}
	if s.deps.Names != nil {
		if name := s.deps.Names.DisplayName(s.guildID, userID); name != "" {
			return name
		}
	}
	return userID
}

func userOrSSRC(userID string, ssrc uint32) string {
	if userID != "" {
		return userID
	}
	return fmt.Sprintf("ssrc:%d", ssrc)
}
