package bot

import (
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"discord-transcriber/internal/observability/logging"
	"discord-transcriber/internal/service/live"
	"discord-transcriber/internal/service/permission"
)

// RepositoryURL is advertised by the opensource command.
const RepositoryURL = "https://github.com/RyanCheddar/discord-voice-message-transcriber"

const (
	cmdOpenSource = "opensource"
	cmdTranscribe = "transcribe"
	cmdJoin       = "join"
	cmdLeave      = "leave"

	// menuTranscribe is the message context-menu entry.
	menuTranscribe = "Transcribe"
)

// Replies for live control.
const (
	msgNeedVoice      = "You need to be connected to a voice channel first."
	msgAlreadyActive  = "Already transcribing in this guild."
	msgNotConnected   = "I'm not connected to a voice channel."
	msgStopped        = "Stopped transcribing and disconnected from the voice channel."
	msgNotAdmin       = "You don't have permission to control live transcription."
	msgGuildOnly      = "This command only works in a server."
	msgLiveDisabled   = "Live transcription is disabled."
	msgJoinFailed     = "Failed to join the voice channel."
	msgTranscribeHelp = "Reply to a voice message with this command, or pass a message link or id."
	msgNotFound       = "Could not find that message."
)

func connectedText(channelName string) string {
	return "Connected to voice channel: " + channelName + " and started transcribing."
}

// Commands returns the application commands to register.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdOpenSource,
			Description: "Get information about the bot's source code",
		},
		{
			Name: menuTranscribe,
			Type: discordgo.MessageApplicationCommand,
		},
		{
			Name:        cmdJoin,
			Description: "Join your voice channel and transcribe it live",
		},
		{
			Name:        cmdLeave,
			Description: "Stop live transcription and leave the voice channel",
		},
	}
}

func openSourceEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Open Source",
		Description: "This bot is open source! You can find the source code [here](" + RepositoryURL + ")",
		Color:       0x00ff00,
	}
}

// ParseCommand splits a prefixed text command into its lowercase name and arguments.
func ParseCommand(content, prefix string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// LiveController is the part of live.Manager the commands drive.
type LiveController interface {
	Join(guildID, textChannelID string, dial live.Dialer) error
	Leave(guildID string) error
}

// VoiceLocator finds the voice channel a member is connected to.
type VoiceLocator func(guildID, userID string) (channelID, channelName string, ok bool)

// liveCommands holds the join/leave policy apart from the gateway.
type liveCommands struct {
	live   LiveController
	admins *permission.Checker
	locate VoiceLocator
	dial   func(guildID, channelID string) live.Dialer
	logger zerolog.Logger
}

func newLiveCommands(ctl LiveController, admins *permission.Checker, locate VoiceLocator, dial func(guildID, channelID string) live.Dialer) *liveCommands {
	return &liveCommands{
		live:   ctl,
		admins: admins,
		locate: locate,
		dial:   dial,
		logger: logging.WithComponent("bot"),
	}
}

// join returns the reply for a join request from userID in textChannelID.
func (c *liveCommands) join(guildID, textChannelID, userID string, id permission.Identity) string {
	if c.live == nil {
		return msgLiveDisabled
	}
	if guildID == "" {
		return msgGuildOnly
	}
	if !c.admins.IsAdmin(id) {
		return msgNotAdmin
	}

	channelID, channelName, ok := c.locate(guildID, userID)
	if !ok {
		return msgNeedVoice
	}

	err := c.live.Join(guildID, textChannelID, c.dial(guildID, channelID))
	switch {
	case err == nil:
		return connectedText(channelName)
	case errors.Is(err, live.ErrAlreadyActive):
		return msgAlreadyActive
	default:
		c.logger.Error().Err(err).Str("guildId", guildID).Msg("Voice join failed")
		return msgJoinFailed
	}
}

func (c *liveCommands) leave(guildID string, id permission.Identity) string {
	if c.live == nil {
		return msgLiveDisabled
	}
	if guildID == "" {
		return msgGuildOnly
	}
	if !c.admins.IsAdmin(id) {
		return msgNotAdmin
	}

	err := c.live.Leave(guildID)
	if errors.Is(err, live.ErrNotActive) {
		return msgNotConnected
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("guildId", guildID).Msg("Voice leave reported an error")
	}
	return msgStopped
}
