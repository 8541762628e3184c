package bot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"discord-transcriber/internal/service/permission"
	"discord-transcriber/internal/service/transcription"
)

// ErrBadReference is returned for a transcribe argument that names no message.
var ErrBadReference = errors.New("not a message link or id")

var messageLink = regexp.MustCompile(`^<?https?://(?:(?:ptb|canary)\.)?discord(?:app)?\.com/channels/(@me|\d+)/(\d+)/(\d+)>?$`)

// JumpURL is the canonical link to a message. Direct messages use @me.
func JumpURL(guildID, channelID, messageID string) string {
	if guildID == "" {
		guildID = "@me"
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

// ParseMessageRef resolves a message link or a bare id. A bare id is taken to
// live in the channel the command was sent from.
func ParseMessageRef(arg, guildID, channelID string) (transcription.MessageRef, error) {
	arg = strings.TrimSpace(arg)
	if m := messageLink.FindStringSubmatch(arg); m != nil {
		g := m[1]
		if g == "@me" {
			g = ""
		}
		return transcription.MessageRef{GuildID: g, ChannelID: m[2], MessageID: m[3]}, nil
	}
	if _, err := strconv.ParseUint(arg, 10, 64); err == nil {
		return transcription.MessageRef{GuildID: guildID, ChannelID: channelID, MessageID: arg}, nil
	}
	return transcription.MessageRef{}, fmt.Errorf("%w: %q", ErrBadReference, arg)
}

// RequestFromMessage builds a pipeline request. guildID overrides the
// message's own, which Discord leaves empty on resolved interaction data.
func RequestFromMessage(m *discordgo.Message, guildID string, trigger transcription.Trigger) transcription.Request {
	if guildID == "" {
		guildID = m.GuildID
	}
	req := transcription.Request{
		MessageID: m.ID,
		ChannelID: m.ChannelID,
		GuildID:   guildID,
		Trigger:   trigger,
	}
	if m.Author != nil {
		req.AuthorID = m.Author.ID
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		req.Attachments = append(req.Attachments, transcription.Attachment{
			ID:          a.ID,
			URL:         a.URL,
			ContentType: a.ContentType,
			Filename:    a.Filename,
			Size:        a.Size,
		})
	}
	return req
}

// IsVoiceMessage reports whether m carries Discord's voice message flag.
func IsVoiceMessage(m *discordgo.Message) bool {
	return m.Flags&voiceMessageFlag != 0
}

const voiceMessageFlag discordgo.MessageFlags = 1 << 13

// Identity converts a Discord user and role list. Ids that do not parse are skipped.
func Identity(userID string, roles []string) permission.Identity {
	id := permission.Identity{}
	id.UserID, _ = strconv.ParseUint(userID, 10, 64)
	for _, r := range roles {
		if n, err := strconv.ParseUint(r, 10, 64); err == nil {
			id.RoleIDs = append(id.RoleIDs, n)
		}
	}
	return id
}

func interactionIdentity(i *discordgo.Interaction) (string, permission.Identity) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID, Identity(i.Member.User.ID, i.Member.Roles)
	}
	if i.User != nil {
		return i.User.ID, Identity(i.User.ID, nil)
	}
	return "", permission.Identity{}
}

func messageIdentity(m *discordgo.Message) (string, permission.Identity) {
	if m.Author == nil {
		return "", permission.Identity{}
	}
	var roles []string
	if m.Member != nil {
		roles = m.Member.Roles
	}
	return m.Author.ID, Identity(m.Author.ID, roles)
}

func memberDisplayName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}
