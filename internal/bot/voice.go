package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"discord-transcriber/internal/service/live"
)

// voiceConn adapts a discordgo voice connection to live.VoiceConn.
type voiceConn struct {
	vc      *discordgo.VoiceConnection
	packets chan live.Packet
	done    chan struct{}
	once    sync.Once
}

func newVoiceConn(vc *discordgo.VoiceConnection) *voiceConn {
	c := &voiceConn{
		vc:      vc,
		packets: make(chan live.Packet, 64),
		done:    make(chan struct{}),
	}
	go c.forward()
	return c
}

func (c *voiceConn) forward() {
	defer close(c.packets)
	for {
		select {
		case p, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			if p == nil || len(p.Opus) == 0 {
				continue
			}
			select {
			case c.packets <- toPacket(p):
			case <-c.done:
				return
			}
		case <-c.done:
			return
		}
	}
}

func toPacket(p *discordgo.Packet) live.Packet {
	return live.Packet{
		SSRC:      p.SSRC,
		Sequence:  p.Sequence,
		Timestamp: p.Timestamp,
		Opus:      p.Opus,
	}
}

func (c *voiceConn) Packets() <-chan live.Packet {
	return c.packets
}

func (c *voiceConn) OnSpeaking(fn func(ssrc uint32, userID string)) {
	c.vc.AddHandler(func(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		fn(uint32(vs.SSRC), vs.UserID)
	})
}

func (c *voiceConn) Disconnect() error {
	c.once.Do(func() { close(c.done) })
	return c.vc.Disconnect()
}

// voiceDialer joins channelID unmuted and undeafened so Opus packets are received.
func voiceDialer(s *discordgo.Session, guildID, channelID string) live.Dialer {
	return func(ctx context.Context) (live.VoiceConn, error) {
		vc, err := s.ChannelVoiceJoin(guildID, channelID, false, false)
		if err != nil {
			return nil, fmt.Errorf("joining voice channel %s: %w", channelID, err)
		}
		return newVoiceConn(vc), nil
	}
}
