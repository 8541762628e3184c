// Package bot connects the Discord gateway to the transcription pipeline and
// live voice sessions.
package bot

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"discord-transcriber/internal/observability/logging"
	"discord-transcriber/internal/observability/metrics"
	"discord-transcriber/internal/service/live"
	"discord-transcriber/internal/service/permission"
	"discord-transcriber/internal/service/transcription"
)

// Transcriber is the voice message pipeline.
type Transcriber interface {
	Run(ctx context.Context, req transcription.Request) transcription.Result
	Manual(ctx context.Context, req transcription.Request, ack func(content string) error) transcription.Result
}

type Config struct {
	// GuildID registers commands in one guild; empty registers them globally.
	GuildID        string
	Prefix         string
	AutoTranscribe bool
}

type Bot struct {
	ctx       context.Context
	session   *discordgo.Session
	messenger *Messenger
	cfg       Config
	pipeline  Transcriber
	live      *liveCommands
	logger    zerolog.Logger
	metrics   *metrics.Metrics

	ready   atomic.Bool
	onReady func()
	remove  []func()
}

// NewSession creates a gateway session with the intents the bot needs.
// Message content is a privileged intent and must be enabled for the application.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentGuildVoiceStates |
		discordgo.IntentMessageContent
	return s, nil
}

// New builds the bot. ctl may be nil when live transcription is disabled.
// onReady runs each time the gateway reports ready.
func New(ctx context.Context, s *discordgo.Session, messenger *Messenger, cfg Config, pipeline Transcriber, ctl LiveController, admins *permission.Checker, onReady func()) *Bot {
	b := &Bot{
		ctx:       ctx,
		session:   s,
		messenger: messenger,
		cfg:       cfg,
		pipeline:  pipeline,
		logger:    logging.WithComponent("bot"),
		metrics:   metrics.DefaultMetrics,
		onReady:   onReady,
	}
	b.live = newLiveCommands(ctl, admins, b.locateVoice, func(guildID, channelID string) live.Dialer {
		return voiceDialer(s, guildID, channelID)
	})
	return b
}

// Open registers handlers and connects to the gateway.
func (b *Bot) Open() error {
	b.remove = append(b.remove,
		b.session.AddHandler(b.handleReady),
		b.session.AddHandler(b.handleResumed),
		b.session.AddHandler(b.handleDisconnect),
		b.session.AddHandler(b.handleMessageCreate),
		b.session.AddHandler(b.handleInteractionCreate),
	)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	return nil
}

// Ready reports whether the gateway session is established.
func (b *Bot) Ready() bool {
	return b.ready.Load()
}

// Close removes handlers and disconnects from the gateway.
func (b *Bot) Close() error {
	for _, remove := range b.remove {
		remove()
	}
	b.remove = nil
	b.ready.Store(false)
	return b.session.Close()
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	b.ready.Store(true)
	b.logger.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("Discord gateway ready")

	registered, err := s.ApplicationCommandBulkOverwrite(r.User.ID, b.cfg.GuildID, Commands(), discordgo.WithContext(b.ctx))
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to register application commands")
	} else {
		b.logger.Info().Int("commands", len(registered)).Str("guildId", b.cfg.GuildID).Msg("Application commands registered")
	}

	if b.onReady != nil {
		b.onReady()
	}
}

func (b *Bot) handleResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	b.ready.Store(true)
	b.logger.Info().Msg("Discord gateway resumed")
}

func (b *Bot) handleDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	b.ready.Store(false)
	b.logger.Warn().Msg("Discord gateway disconnected")
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}

	if b.cfg.AutoTranscribe && IsVoiceMessage(m.Message) && len(m.Attachments) == 1 {
		b.pipeline.Run(b.ctx, RequestFromMessage(m.Message, m.GuildID, transcription.TriggerAuto))
	}

	name, args, ok := ParseCommand(m.Content, b.cfg.Prefix)
	if !ok {
		return
	}
	src := transcription.MessageRef{GuildID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.ID}

	switch name {
	case cmdOpenSource:
		b.metrics.RecordCommand(name, "prefix")
		if err := b.messenger.sendEmbed(m.ChannelID, openSourceEmbed()); err != nil {
			b.logger.Error().Err(err).Msg("Failed to send opensource embed")
		}
	case cmdTranscribe:
		b.metrics.RecordCommand(name, "prefix")
		b.transcribeFromMessage(m.Message, src, args)
	case cmdJoin:
		b.metrics.RecordCommand(name, "prefix")
		userID, id := messageIdentity(m.Message)
		b.replyText(src, b.live.join(m.GuildID, m.ChannelID, userID, id))
	case cmdLeave:
		b.metrics.RecordCommand(name, "prefix")
		_, id := messageIdentity(m.Message)
		b.replyText(src, b.live.leave(m.GuildID, id))
	}
}

// transcribeFromMessage serves !transcribe, used as a reply or with a link or id.
func (b *Bot) transcribeFromMessage(m *discordgo.Message, src transcription.MessageRef, args []string) {
	var ref transcription.MessageRef
	switch {
	case m.MessageReference != nil && m.MessageReference.MessageID != "":
		ref = transcription.MessageRef{GuildID: m.GuildID, ChannelID: m.MessageReference.ChannelID, MessageID: m.MessageReference.MessageID}
		if ref.ChannelID == "" {
			ref.ChannelID = m.ChannelID
		}
	case len(args) > 0:
		r, err := ParseMessageRef(args[0], m.GuildID, m.ChannelID)
		if err != nil {
			b.replyText(src, msgTranscribeHelp)
			return
		}
		ref = r
	default:
		b.replyText(src, msgTranscribeHelp)
		return
	}

	target := m.ReferencedMessage
	if target == nil || target.ID != ref.MessageID {
		t, err := b.session.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(b.ctx))
		if err != nil {
			b.logger.Warn().Err(err).Str("messageId", ref.MessageID).Msg("Failed to fetch transcribe target")
			b.replyText(src, msgNotFound)
			return
		}
		target = t
	}

	req := RequestFromMessage(target, ref.GuildID, transcription.TriggerCommand)
	b.pipeline.Manual(b.ctx, req, func(content string) error {
		return b.messenger.replyText(b.ctx, src, content)
	})
}

func (b *Bot) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	b.metrics.RecordCommand(data.Name, "interaction")

	switch data.Name {
	case cmdOpenSource:
		b.respond(i.Interaction, &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{openSourceEmbed()},
		})
	case menuTranscribe:
		b.transcribeFromInteraction(i.Interaction, data)
	case cmdJoin:
		userID, id := interactionIdentity(i.Interaction)
		b.deferred(i.Interaction, func() string {
			return b.live.join(i.GuildID, i.ChannelID, userID, id)
		})
	case cmdLeave:
		_, id := interactionIdentity(i.Interaction)
		b.deferred(i.Interaction, func() string {
			return b.live.leave(i.GuildID, id)
		})
	default:
		b.logger.Warn().Str("command", data.Name).Msg("Unknown application command")
	}
}

func (b *Bot) transcribeFromInteraction(i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) {
	var target *discordgo.Message
	if data.Resolved != nil {
		target = data.Resolved.Messages[data.TargetID]
	}
	if target == nil {
		b.respond(i, ephemeral(msgNotFound))
		return
	}
	if target.ChannelID == "" {
		target.ChannelID = i.ChannelID
	}

	req := RequestFromMessage(target, i.GuildID, transcription.TriggerCommand)
	b.pipeline.Manual(b.ctx, req, func(content string) error {
		return b.session.InteractionRespond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: ephemeral(content),
		}, discordgo.WithContext(b.ctx))
	})
}

func ephemeral(content string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral}
}

func (b *Bot) respond(i *discordgo.Interaction, data *discordgo.InteractionResponseData) {
	err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(b.ctx))
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to respond to interaction")
	}
}

// deferred acknowledges first because joining voice can outlast the
// interaction response deadline.
func (b *Bot) deferred(i *discordgo.Interaction, fn func() string) {
	err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(b.ctx))
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to defer interaction")
		return
	}
	content := fn()
	if _, err := b.session.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(b.ctx)); err != nil {
		b.logger.Error().Err(err).Msg("Failed to edit interaction response")
	}
}

func (b *Bot) replyText(ref transcription.MessageRef, content string) {
	if err := b.messenger.replyText(b.ctx, ref, content); err != nil {
		b.logger.Error().Err(err).Str("messageId", ref.MessageID).Msg("Failed to reply")
	}
}

// locateVoice finds the invoker's voice channel in the state cache.
func (b *Bot) locateVoice(guildID, userID string) (string, string, bool) {
	vs, err := b.session.State.VoiceState(guildID, userID)
	if err != nil || vs.ChannelID == "" {
		return "", "", false
	}
	name := vs.ChannelID
	if ch, err := b.session.State.Channel(vs.ChannelID); err == nil && ch.Name != "" {
		name = ch.Name
	}
	return vs.ChannelID, name, true
}
