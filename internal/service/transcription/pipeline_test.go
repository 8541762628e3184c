package transcription

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"discord-transcriber/internal/models"
	"discord-transcriber/internal/service/audio"
	"discord-transcriber/internal/service/index"
	"discord-transcriber/internal/service/stt"
	"discord-transcriber/internal/service/stt/mock"
	"discord-transcriber/internal/service/stt/openai"
	"discord-transcriber/internal/service/worker"
)

type reply struct {
	to      MessageRef
	content string
}

type edit struct {
	msg     Posted
	content string
}

type fakeReplier struct {
	mu       sync.Mutex
	replies  []reply
	edits    []edit
	replyErr error
	next     int
}

func (f *fakeReplier) Reply(ctx context.Context, to MessageRef, content string) (Posted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return Posted{}, f.replyErr
	}
	f.replies = append(f.replies, reply{to, content})
	f.next++
	id := "reply-" + strconv.Itoa(f.next)
	return Posted{
		ChannelID: to.ChannelID,
		MessageID: id,
		Link:      "https://discord.com/channels/" + to.GuildID + "/" + to.ChannelID + "/" + id,
	}, nil
}

func (f *fakeReplier) Edit(ctx context.Context, msg Posted, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit{msg, content})
	return nil
}

type fakeFetcher struct {
	data  []byte
	err   error
	calls int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.data, f.err
}

type fakeConverter struct {
	err   error
	calls int32
}

func (f *fakeConverter) Convert(ctx context.Context, data []byte) (*audio.Waveform, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return &audio.Waveform{WAV: append([]byte("RIFF"), data...), SampleRate: 16000, Duration: 2 * time.Second}, nil
}

type panickingConverter struct{}

func (panickingConverter) Convert(ctx context.Context, data []byte) (*audio.Waveform, error) {
	panic("corrupt opus frame")
}

type fakeEngine struct {
	kind stt.Kind
	text string
	err  error
}

func (f *fakeEngine) Name() string   { return "fake" }
func (f *fakeEngine) Kind() stt.Kind { return f.kind }
func (f *fakeEngine) Transcribe(ctx context.Context, wav []byte) (string, error) {
	return f.text, f.err
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.VoiceMessageTranscript
}

func (f *fakeEvents) PublishTranscript(ctx context.Context, ev models.VoiceMessageTranscript) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type harness struct {
	replier   *fakeReplier
	fetcher   *fakeFetcher
	converter *fakeConverter
	store     index.Store
	events    *fakeEvents
	pipeline  *Pipeline
}

func newHarness(engine stt.Engine, opts Options) *harness {
	h := &harness{
		replier:   &fakeReplier{},
		fetcher:   &fakeFetcher{data: []byte("OggS-voice")},
		converter: &fakeConverter{},
		store:     index.NewMemory(),
		events:    &fakeEvents{},
	}
	rec := NewRecognizer(h.converter, engine, worker.New(2))
	h.pipeline = NewPipeline(rec, h.replier, h.fetcher, h.store, h.events, opts)
	return h
}

func voiceRequest() Request {
	return Request{
		MessageID: "m1",
		ChannelID: "c1",
		GuildID:   "g1",
		AuthorID:  "u1",
		Trigger:   TriggerAuto,
		Attachments: []Attachment{{
			ID:          "a1",
			URL:         "https://cdn.discordapp.com/attachments/c1/a1/voice-message.ogg",
			ContentType: "audio/ogg",
			Filename:    "voice-message.ogg",
		}},
	}
}

func TestRun_NoAttachment(t *testing.T) {
	h := newHarness(&fakeEngine{text: "x"}, Options{VoiceMessagesOnly: true})
	req := voiceRequest()
	req.Attachments = nil

	res := h.pipeline.Run(context.Background(), req)

	if res.Failure != FailureNoAttachment || res.State != StateRejected {
		t.Errorf("unexpected result %+v", res)
	}
	if len(h.replier.replies) != 1 || h.replier.replies[0].content != "Transcription failed! (No Voice Message)" {
		t.Fatalf("unexpected replies %+v", h.replier.replies)
	}
	if h.replier.replies[0].to.MessageID != "m1" {
		t.Errorf("expected reply to source message, got %+v", h.replier.replies[0].to)
	}
	if h.converter.calls != 0 || h.fetcher.calls != 0 {
		t.Errorf("expected no download or conversion, got %d %d", h.fetcher.calls, h.converter.calls)
	}
	if h.store.Len() != 0 {
		t.Error("expected no index entry")
	}
	if len(h.events.events) != 0 {
		t.Error("expected no event for rejection")
	}
}

func TestRun_NotVoiceMessage(t *testing.T) {
	h := newHarness(&fakeEngine{text: "x"}, Options{VoiceMessagesOnly: true})
	req := voiceRequest()
	req.Attachments[0].ContentType = "video/mp4"

	res := h.pipeline.Run(context.Background(), req)

	if res.Failure != FailureNotVoiceMessage {
		t.Errorf("expected not voice message, got %s", res.Failure)
	}
	if len(h.replier.replies) != 1 || h.replier.replies[0].content != "Transcription failed! (Attachment not a Voice Message)" {
		t.Errorf("unexpected replies %+v", h.replier.replies)
	}
	if h.converter.calls != 0 {
		t.Errorf("expected converter not called, got %d", h.converter.calls)
	}
	if _, ok := h.store.Get("m1"); ok {
		t.Error("expected no index entry")
	}
	if len(h.replier.edits) != 0 {
		t.Error("expected no edits")
	}
}

func TestRun_AnyTypeWhenFilterOff(t *testing.T) {
	h := newHarness(&fakeEngine{text: "from an mp3"}, Options{VoiceMessagesOnly: false})
	req := voiceRequest()
	req.Attachments[0].ContentType = "audio/mpeg"

	res := h.pipeline.Run(context.Background(), req)

	if res.Failure != FailureNone || res.Text != "from an mp3" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRun_HappyPath(t *testing.T) {
	h := newHarness(&fakeEngine{kind: stt.KindLocal, text: "hello world"}, Options{VoiceMessagesOnly: true})
	req := voiceRequest()
	req.Attachments[0].ContentType = "audio/ogg; codecs=opus"

	res := h.pipeline.Run(context.Background(), req)

	if res.State != StateCompleted || res.Failure != FailureNone {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(h.replier.replies) != 1 || h.replier.replies[0].content != Placeholder {
		t.Fatalf("expected one placeholder reply, got %+v", h.replier.replies)
	}
	link, ok := h.store.Get("m1")
	if !ok || link != "https://discord.com/channels/g1/c1/reply-1" {
		t.Errorf("expected index entry for placeholder, got %q %v", link, ok)
	}
	if h.store.Len() != 1 {
		t.Errorf("expected exactly one index entry, got %d", h.store.Len())
	}
	if len(h.replier.edits) != 1 {
		t.Fatalf("expected one edit, got %d", len(h.replier.edits))
	}
	e := h.replier.edits[0]
	if e.msg.MessageID != "reply-1" || e.content != "```hello world```" {
		t.Errorf("unexpected edit %+v", e)
	}
	if h.converter.calls != 1 {
		t.Errorf("expected one conversion, got %d", h.converter.calls)
	}

	if len(h.events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(h.events.events))
	}
	ev := h.events.events[0]
	if ev.MessageID != "m1" || ev.Text != "hello world" || ev.Failure != "" || ev.DurationMs != 2000 || ev.Link != link {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestRun_IndexWrittenBeforeConversion(t *testing.T) {
	h := newHarness(&fakeEngine{text: "x"}, Options{})
	var sawEntry bool
	rec := NewRecognizer(convertFunc(func(ctx context.Context, data []byte) (*audio.Waveform, error) {
		_, sawEntry = h.store.Get("m1")
		return &audio.Waveform{WAV: []byte("RIFF")}, nil
	}), &fakeEngine{text: "x"}, worker.New(1))
	h.pipeline = NewPipeline(rec, h.replier, h.fetcher, h.store, nil, Options{})

	h.pipeline.Run(context.Background(), voiceRequest())

	if !sawEntry {
		t.Error("expected index entry to exist when conversion starts")
	}
}

type convertFunc func(ctx context.Context, data []byte) (*audio.Waveform, error)

func (f convertFunc) Convert(ctx context.Context, data []byte) (*audio.Waveform, error) {
	return f(ctx, data)
}

func TestRun_EmptyTranscript(t *testing.T) {
	h := newHarness(&fakeEngine{text: ""}, Options{VoiceMessagesOnly: true})

	h.pipeline.Run(context.Background(), voiceRequest())

	if got := h.replier.edits[0].content; got != "```*nothing*```" {
		t.Errorf("unexpected edit %q", got)
	}
}

func TestRun_TranscriptionError(t *testing.T) {
	h := newHarness(&fakeEngine{kind: stt.KindRemote, err: errors.New("rate limited")}, Options{VoiceMessagesOnly: true})

	res := h.pipeline.Run(context.Background(), voiceRequest())

	if res.Failure != FailureTranscription || res.State != StateFailed {
		t.Errorf("unexpected result %+v", res)
	}
	if got := h.replier.edits[0].content; got != "Transcription failed! Error: rate limited" {
		t.Errorf("unexpected edit %q", got)
	}
	if ev := h.events.events[0]; ev.Failure != "transcription" || ev.Reason != "rate limited" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestRun_ConversionError(t *testing.T) {
	h := newHarness(&fakeEngine{text: "x"}, Options{VoiceMessagesOnly: true})
	h.converter.err = errors.New("decoding audio: ffmpeg: exit status 1")

	res := h.pipeline.Run(context.Background(), voiceRequest())

	if res.Failure != FailureConversion {
		t.Errorf("expected conversion failure, got %s", res.Failure)
	}
	if got := h.replier.edits[0].content; !strings.HasPrefix(got, "Transcription failed! Error: decoding audio") {
		t.Errorf("unexpected edit %q", got)
	}
}

func TestRun_ConversionPanicRecovered(t *testing.T) {
	h := newHarness(&fakeEngine{text: "x"}, Options{})
	rec := NewRecognizer(panickingConverter{}, &fakeEngine{text: "x"}, worker.New(1))
	h.pipeline = NewPipeline(rec, h.replier, h.fetcher, h.store, nil, Options{})

	res := h.pipeline.Run(context.Background(), voiceRequest())

	if res.Failure != FailureConversion {
		t.Errorf("expected conversion failure, got %s", res.Failure)
	}
	if got := h.replier.edits[0].content; !strings.Contains(got, "corrupt opus frame") {
		t.Errorf("expected panic value in edit, got %q", got)
	}
}

func TestRun_DownloadError(t *testing.T) {
	h := newHarness(&fakeEngine{text: "x"}, Options{})
	h.fetcher.err = errors.New("downloading attachment: unexpected status 404")

	res := h.pipeline.Run(context.Background(), voiceRequest())

	if res.Failure != FailureDownload {
		t.Errorf("expected download failure, got %s", res.Failure)
	}
	if h.converter.calls != 0 {
		t.Error("expected no conversion after failed download")
	}
	if got := h.replier.edits[0].content; got != "Transcription failed! Error: downloading attachment: unexpected status 404" {
		t.Errorf("unexpected edit %q", got)
	}
}

func TestRun_ReplyFailureEndsRequest(t *testing.T) {
	h := newHarness(&fakeEngine{text: "x"}, Options{})
	h.replier.replyErr = errors.New("403 Forbidden")

	res := h.pipeline.Run(context.Background(), voiceRequest())

	if res.Failure != FailureReply {
		t.Errorf("expected reply failure, got %s", res.Failure)
	}
	if h.fetcher.calls != 0 || h.store.Len() != 0 {
		t.Error("expected nothing after failed placeholder")
	}
}

func TestRun_MissingCredentialMakesNoCalls(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	engine := openai.New(openai.Config{APIKey: "0", BaseURL: srv.URL})
	h := newHarness(engine, Options{VoiceMessagesOnly: true})

	res := h.pipeline.Run(context.Background(), voiceRequest())

	if res.Failure != FailureMissingCredential {
		t.Errorf("expected missing credential, got %s", res.Failure)
	}
	want := "Transcription failed! (Configured to use the transcription API, but no API Key provided!)"
	if got := h.replier.edits[0].content; got != want {
		t.Errorf("unexpected edit %q", got)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("expected zero remote calls, got %d", n)
	}
}

func TestRun_Truncation(t *testing.T) {
	long := strings.Repeat("a", 1901)
	h := newHarness(&fakeEngine{text: long}, Options{})

	res := h.pipeline.Run(context.Background(), voiceRequest())

	if !res.Truncated {
		t.Error("expected truncated flag")
	}
	want := "```" + strings.Repeat("a", 1900) + "...```" + " *(truncated)*"
	if got := h.replier.edits[0].content; got != want {
		t.Errorf("unexpected truncated edit (len %d)", len(got))
	}
	if !h.events.events[0].Truncated {
		t.Error("expected truncated event")
	}
}

func TestManual_TwiceServesStoredLink(t *testing.T) {
	engine := mock.New(mock.WithUtterances("first run"))
	h := newHarness(engine, Options{VoiceMessagesOnly: true})
	req := voiceRequest()
	req.Trigger = TriggerCommand

	var acks []string
	ack := func(content string) error {
		acks = append(acks, content)
		return nil
	}

	first := h.pipeline.Manual(context.Background(), req, ack)
	if first.Cached || first.State != StateCompleted {
		t.Fatalf("unexpected first result %+v", first)
	}

	for i := 0; i < 2; i++ {
		res := h.pipeline.Manual(context.Background(), req, ack)
		if !res.Cached || res.Link != first.Link {
			t.Errorf("call %d: expected stored link, got %+v", i, res)
		}
	}

	want := []string{Started, first.Link, first.Link}
	if len(acks) != len(want) {
		t.Fatalf("unexpected acks %v", acks)
	}
	for i := range want {
		if acks[i] != want[i] {
			t.Errorf("ack %d: want %q, got %q", i, want[i], acks[i])
		}
	}
	if h.converter.calls != 1 {
		t.Errorf("expected exactly one conversion, got %d", h.converter.calls)
	}
	if engine.Calls() != 1 {
		t.Errorf("expected exactly one transcription, got %d", engine.Calls())
	}
	if len(h.replier.replies) != 1 {
		t.Errorf("expected one placeholder overall, got %d", len(h.replier.replies))
	}
}

func TestManual_RejectionStillAcknowledges(t *testing.T) {
	h := newHarness(&fakeEngine{text: "x"}, Options{VoiceMessagesOnly: true})
	req := voiceRequest()
	req.Attachments = nil

	var acks []string
	res := h.pipeline.Manual(context.Background(), req, func(c string) error {
		acks = append(acks, c)
		return nil
	})

	if len(acks) != 1 || acks[0] != Started {
		t.Errorf("unexpected acks %v", acks)
	}
	if res.Failure != FailureNoAttachment {
		t.Errorf("expected no attachment, got %s", res.Failure)
	}
}
