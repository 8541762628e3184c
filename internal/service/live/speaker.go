// Package live transcribes speakers in a voice channel. Opus packets from
// each SSRC are buffered into an Ogg stream and flushed as a segment after a
// pause in speech or when a segment limit is reached.
package live

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"github.com/rs/zerolog/log"

	"discord-transcriber/internal/service/segment"
)

const (
	opusSampleRate = 48000
	opusChannels   = 2
	opusPayload    = 0x78
)

// Packet is one Opus frame received from the voice gateway.
type Packet struct {
	SSRC      uint32
	Sequence  uint16
	Timestamp uint32
	Opus      []byte
}

// Limits are the per-segment guardrails.
type Limits struct {
	SilenceTimeout time.Duration
	MaxDuration    time.Duration
	MaxAudioBytes  int64
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		SilenceTimeout: time.Second,
		MaxDuration:    30 * time.Second,
		MaxAudioBytes:  1 << 20,
	}
}

// Flush reasons.
const (
	ReasonSilence = "silence"
	ReasonLimit   = "limit"
)

// Segment is a finished chunk of one speaker's audio.
type Segment struct {
	ID        string
	GuildID   string
	SSRC      uint32
	Ogg       []byte
	Packets   int
	Bytes     int64
	Duration  time.Duration
	StartedAt time.Time
	Reason    string
}

// Speaker accumulates packets for a single SSRC. Thread-safe: packets arrive
// on the receive goroutine while the silence timer fires on its own.
type Speaker struct {
	mu        sync.Mutex
	guildID   string
	ssrc      uint32
	limits    Limits
	gen       *segment.Generator
	lifecycle *segment.Lifecycle
	onFlush   func(Segment)

	buf       *bytes.Buffer
	ogg       *oggwriter.OggWriter
	startedAt time.Time
	firstTS   uint32
	lastTS    uint32
	timer     *time.Timer
	stopped   bool
}

// NewSpeaker creates a speaker. onFlush is called outside the speaker lock,
// on whichever goroutine triggered the flush.
func NewSpeaker(guildID string, ssrc uint32, limits Limits, gen *segment.Generator, onFlush func(Segment)) *Speaker {
	s := &Speaker{
		guildID: guildID,
		ssrc:    ssrc,
		limits:  limits,
		gen:     gen,
		onFlush: onFlush,
	}
	s.lifecycle = segment.NewLifecycle("")
	s.lifecycle.Close()
	return s
}

func (s *Speaker) nextID() string {
	return s.gen.Next(s.guildID, fmt.Sprint(s.ssrc))
}

// Write appends a packet, opening a new segment if none is recording.
func (s *Speaker) Write(p Packet) error {
	if len(p.Opus) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return segment.ErrSegmentClosed
	}

	if s.ogg == nil {
		if err := s.open(p.Timestamp); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	if err := s.ogg.WriteRTP(toRTP(p)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("writing ogg page: %w", err)
	}
	if err := s.lifecycle.Append(len(p.Opus)); err != nil {
		s.mu.Unlock()
		return err
	}
	s.lastTS = p.Timestamp

	var flushed *Segment
	if s.overLimit() {
		flushed = s.flushLocked(ReasonLimit)
	} else if s.timer != nil {
		s.timer.Reset(s.limits.SilenceTimeout)
	}
	s.mu.Unlock()

	if flushed != nil {
		s.onFlush(*flushed)
	}
	return nil
}

// Stop drops any recording segment. Later writes are rejected.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.ogg != nil {
		s.ogg.Close()
		s.ogg = nil
		s.buf = nil
		if s.lifecycle.Drop() {
			log.Debug().
				Str("guildId", s.guildID).
				Uint32("ssrc", s.ssrc).
				Str("segmentId", s.lifecycle.SegmentID()).
				Msg("Segment dropped on stop")
		}
	}
}

// State reports the current segment state.
func (s *Speaker) State() segment.State {
	return s.lifecycle.State()
}

func (s *Speaker) open(ts uint32) error {
	buf := &bytes.Buffer{}
	w, err := oggwriter.NewWith(buf, opusSampleRate, opusChannels)
	if err != nil {
		return fmt.Errorf("creating ogg writer: %w", err)
	}
	s.buf = buf
	s.ogg = w
	s.firstTS = ts
	s.lastTS = ts
	s.startedAt = time.Now()

	id := s.nextID()
	s.lifecycle.Reset(id)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.limits.SilenceTimeout > 0 {
		s.timer = time.AfterFunc(s.limits.SilenceTimeout, func() { s.onSilence(id) })
	}
	return nil
}

func (s *Speaker) overLimit() bool {
	_, n := s.lifecycle.Size()
	if s.limits.MaxAudioBytes > 0 && n >= s.limits.MaxAudioBytes {
		return true
	}
	return s.limits.MaxDuration > 0 && s.duration() >= s.limits.MaxDuration
}

// duration from RTP timestamps, 48 kHz clock
func (s *Speaker) duration() time.Duration {
	return time.Duration(s.lastTS-s.firstTS) * time.Second / opusSampleRate
}

// onSilence ignores timers left over from an earlier segment.
func (s *Speaker) onSilence(segmentID string) {
	s.mu.Lock()
	var flushed *Segment
	if !s.stopped && s.ogg != nil && s.lifecycle.SegmentID() == segmentID {
		flushed = s.flushLocked(ReasonSilence)
	}
	s.mu.Unlock()

	if flushed != nil {
		s.onFlush(*flushed)
	}
}

// flushLocked closes the Ogg stream and returns the finished segment.
// Caller holds s.mu.
func (s *Speaker) flushLocked(reason string) *Segment {
	if s.timer != nil {
		s.timer.Stop()
	}
	if err := s.lifecycle.Flush(); err != nil {
		return nil
	}
	s.ogg.Close()

	packets, n := s.lifecycle.Size()
	seg := &Segment{
		ID:        s.lifecycle.SegmentID(),
		GuildID:   s.guildID,
		SSRC:      s.ssrc,
		Ogg:       s.buf.Bytes(),
		Packets:   packets,
		Bytes:     n,
		Duration:  s.duration(),
		StartedAt: s.startedAt,
		Reason:    reason,
	}

	s.ogg = nil
	s.buf = nil
	s.lifecycle.Close()
	return seg
}

func toRTP(p Packet) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayload,
			SequenceNumber: p.Sequence,
			Timestamp:      p.Timestamp,
			SSRC:           p.SSRC,
		},
		Payload: p.Opus,
	}
}
