package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"discord-transcriber/internal/service/transcription"
)

// Messenger sends and edits bot messages. It serves both the voice message
// pipeline and live sessions.
type Messenger struct {
	session *discordgo.Session
}

func NewMessenger(s *discordgo.Session) *Messenger {
	return &Messenger{session: s}
}

// noMentions keeps transcripts from pinging anyone, the replied-to author included.
func noMentions() *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}, RepliedUser: false}
}

func (m *Messenger) Reply(ctx context.Context, to transcription.MessageRef, content string) (transcription.Posted, error) {
	msg, err := m.session.ChannelMessageSendComplex(to.ChannelID, &discordgo.MessageSend{
		Content: content,
		Reference: &discordgo.MessageReference{
			MessageID: to.MessageID,
			ChannelID: to.ChannelID,
			GuildID:   to.GuildID,
		},
		AllowedMentions: noMentions(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return transcription.Posted{}, fmt.Errorf("replying to %s: %w", to.MessageID, err)
	}
	return transcription.Posted{
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		Link:      JumpURL(to.GuildID, msg.ChannelID, msg.ID),
	}, nil
}

func (m *Messenger) Edit(ctx context.Context, msg transcription.Posted, content string) error {
	if _, err := m.session.ChannelMessageEdit(msg.ChannelID, msg.MessageID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("editing %s: %w", msg.MessageID, err)
	}
	return nil
}

// Post sends a plain channel message.
func (m *Messenger) Post(channelID, content string) error {
	_, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: noMentions(),
	})
	if err != nil {
		return fmt.Errorf("posting to %s: %w", channelID, err)
	}
	return nil
}

// DisplayName looks in the state cache first, then asks the API.
func (m *Messenger) DisplayName(guildID, userID string) string {
	if member, err := m.session.State.Member(guildID, userID); err == nil {
		return memberDisplayName(member)
	}
	member, err := m.session.GuildMember(guildID, userID)
	if err != nil {
		return ""
	}
	return memberDisplayName(member)
}

func (m *Messenger) sendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := m.session.ChannelMessageSendEmbed(channelID, embed)
	return err
}

func (m *Messenger) replyText(ctx context.Context, ref transcription.MessageRef, content string) error {
	_, err := m.Reply(ctx, ref, content)
	return err
}
