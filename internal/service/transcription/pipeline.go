package transcription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"discord-transcriber/internal/models"
	"discord-transcriber/internal/observability/logging"
	"discord-transcriber/internal/observability/metrics"
	"discord-transcriber/internal/service/index"
	"discord-transcriber/internal/service/stt"
)

// Posted is a message the bot sent, addressable for later edits.
type Posted struct {
	ChannelID string
	MessageID string
	Link      string
}

// Replier is the Discord side of the pipeline. Replies never mention the author.
type Replier interface {
	Reply(ctx context.Context, to MessageRef, content string) (Posted, error)
	Edit(ctx context.Context, msg Posted, content string) error
}

// EventSink receives one event per run that got past the placeholder.
type EventSink interface {
	PublishTranscript(ctx context.Context, event models.VoiceMessageTranscript) error
}

// Options configures a Pipeline.
type Options struct {
	VoiceMessagesOnly bool
}

type Pipeline struct {
	recognizer *Recognizer
	replier    Replier
	fetcher    Fetcher
	index      index.Store
	events     EventSink
	opts       Options
	metrics    *metrics.Metrics
}

// NewPipeline wires the stages. events may be nil.
func NewPipeline(recognizer *Recognizer, replier Replier, fetcher Fetcher, store index.Store, events EventSink, opts Options) *Pipeline {
	return &Pipeline{
		recognizer: recognizer,
		replier:    replier,
		fetcher:    fetcher,
		index:      store,
		events:     events,
		opts:       opts,
		metrics:    metrics.DefaultMetrics,
	}
}

// Manual serves a transcribe command. An indexed message is answered with the
// stored link and nothing else runs; otherwise ack receives the started
// notice and the pipeline runs.
func (p *Pipeline) Manual(ctx context.Context, req Request, ack func(content string) error) Result {
	logger := logging.WithMessage(req.MessageID, req.ChannelID, string(req.Trigger))

	if link, ok := p.index.Get(req.MessageID); ok {
		p.metrics.RecordIndexHit()
		if err := ack(link); err != nil {
			logger.Error().Err(err).Msg("Failed to send previous transcript link")
		}
		logger.Info().Str("link", link).Msg("Already transcribed")
		return Result{Cached: true, Link: link, State: StateCompleted, Engine: p.recognizer.EngineName()}
	}

	if err := ack(Started); err != nil {
		logger.Error().Err(err).Msg("Failed to acknowledge transcribe command")
	}
	return p.Run(ctx, req)
}

// Run processes one request to a terminal state.
func (p *Pipeline) Run(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	logger := logging.WithMessage(req.MessageID, req.ChannelID, string(req.Trigger))
	res = Result{Engine: p.recognizer.EngineName(), State: StateReceived}

	if kind := p.check(req); kind != FailureNone {
		res.Failure = kind
		res.State = StateRejected
		p.metrics.RecordRejected(kind.String())
		if _, err := p.replier.Reply(ctx, req.Ref(), Render(&res)); err != nil {
			logger.Error().Err(err).Msg("Failed to send rejection")
		}
		logger.Info().Str("failure", kind.String()).Msg("Request rejected")
		return res
	}

	p.metrics.RecordRequestStart(string(req.Trigger))
	defer func() {
		p.metrics.RecordRequestEnd(res.State.String(), res.Failure.String(), time.Since(start).Seconds())
	}()

	posted, err := p.replier.Reply(ctx, req.Ref(), Placeholder)
	if err != nil {
		res.fail(FailureReply, err)
		logger.Error().Err(err).Msg("Failed to post placeholder")
		return res
	}
	res.State = StatePlaceholderPosted
	res.Link = posted.Link
	p.index.Put(req.MessageID, posted.Link)

	att := req.Attachments[0]
	data, err := p.fetcher.Fetch(ctx, att.URL)
	if err != nil {
		res.fail(FailureDownload, err)
		p.finish(ctx, logger, req, posted, &res)
		return res
	}

	res.State = StateConverting
	wf, err := p.recognizer.Convert(ctx, data)
	if err != nil {
		res.fail(FailureConversion, err)
		p.finish(ctx, logger, req, posted, &res)
		return res
	}
	res.AudioDuration = wf.Duration

	res.State = StateTranscribing
	text, err := p.recognizer.Transcribe(ctx, wf)
	if err != nil {
		if errors.Is(err, stt.ErrMissingCredential) {
			res.fail(FailureMissingCredential, err)
		} else {
			res.fail(FailureTranscription, err)
		}
		p.finish(ctx, logger, req, posted, &res)
		return res
	}

	res.Text = text
	res.State = StateCompleted
	p.finish(ctx, logger, req, posted, &res)
	return res
}

func (p *Pipeline) check(req Request) FailureKind {
	if len(req.Attachments) == 0 {
		return FailureNoAttachment
	}
	if p.opts.VoiceMessagesOnly && !IsVoiceMessage(req.Attachments[0].ContentType) {
		return FailureNotVoiceMessage
	}
	return FailureNone
}

func (r *Result) fail(kind FailureKind, err error) {
	r.Failure = kind
	r.Reason = err.Error()
	r.State = StateFailed
}

// finish edits the placeholder, then reports the outcome.
func (p *Pipeline) finish(ctx context.Context, logger zerolog.Logger, req Request, posted Posted, res *Result) {
	content := Render(res)
	if err := p.replier.Edit(ctx, posted, content); err != nil {
		logger.Error().Err(err).Msg("Failed to edit placeholder")
	}

	if res.Failure != FailureNone {
		logger.Warn().
			Str("failure", res.Failure.String()).
			Str("reason", res.Reason).
			Msg("Transcription failed")
	} else {
		logger.Info().
			Bool("truncated", res.Truncated).
			Dur("audio", res.AudioDuration).
			Msg("Transcription completed")
		logger.Debug().Str("transcript", res.Text).Msg("Full transcript")
	}

	if p.events == nil {
		return
	}
	ev := models.VoiceMessageTranscript{
		EventType:  models.EventVoiceMessageTranscript,
		EventID:    uuid.NewString(),
		Timestamp:  time.Now().UnixMilli(),
		GuildID:    req.GuildID,
		ChannelID:  req.ChannelID,
		MessageID:  req.MessageID,
		AuthorID:   req.AuthorID,
		Trigger:    string(req.Trigger),
		Engine:     res.Engine,
		Text:       res.Text,
		Truncated:  res.Truncated,
		DurationMs: res.AudioDuration.Milliseconds(),
		Link:       posted.Link,
	}
	if res.Failure != FailureNone {
		ev.Failure = res.Failure.String()
		ev.Reason = res.Reason
	}
	if err := p.events.PublishTranscript(ctx, ev); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish transcript event")
	}
}
