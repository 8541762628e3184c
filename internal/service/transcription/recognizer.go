package transcription

import (
	"context"
	"errors"
	"time"

	"discord-transcriber/internal/observability/metrics"
	"discord-transcriber/internal/service/audio"
	"discord-transcriber/internal/service/stt"
	"discord-transcriber/internal/service/worker"
)

// Converter decodes an attachment into WAV.
type Converter interface {
	Convert(ctx context.Context, data []byte) (*audio.Waveform, error)
}

// Recognizer couples the converter and the configured engine, dispatching
// CPU-bound steps to the worker pool. It is shared by the voice message
// pipeline and live sessions.
type Recognizer struct {
	converter Converter
	engine    stt.Engine
	pool      *worker.Pool
	metrics   *metrics.Metrics
}

func NewRecognizer(converter Converter, engine stt.Engine, pool *worker.Pool) *Recognizer {
	return &Recognizer{
		converter: converter,
		engine:    engine,
		pool:      pool,
		metrics:   metrics.DefaultMetrics,
	}
}

func (r *Recognizer) EngineName() string {
	return r.engine.Name()
}

// Convert always runs on the pool.
func (r *Recognizer) Convert(ctx context.Context, data []byte) (*audio.Waveform, error) {
	start := time.Now()
	wf, err := worker.Run(ctx, r.pool, func(ctx context.Context) (*audio.Waveform, error) {
		return r.converter.Convert(ctx, data)
	})
	if err != nil {
		return nil, err
	}
	r.metrics.RecordConversion(len(data), time.Since(start).Seconds())
	return wf, nil
}

// Transcribe runs local engines on the pool and remote engines inline.
func (r *Recognizer) Transcribe(ctx context.Context, wf *audio.Waveform) (string, error) {
	start := time.Now()

	var (
		text string
		err  error
	)
	if r.engine.Kind() == stt.KindLocal {
		text, err = worker.Run(ctx, r.pool, func(ctx context.Context) (string, error) {
			return r.engine.Transcribe(ctx, wf.WAV)
		})
	} else {
		text, err = r.engine.Transcribe(ctx, wf.WAV)
	}

	if err != nil {
		r.metrics.RecordSTTError(r.engine.Name(), errorType(err))
		return "", err
	}
	r.metrics.RecordSTT(r.engine.Name(), time.Since(start).Seconds())
	return text, nil
}

// Recognize converts then transcribes.
func (r *Recognizer) Recognize(ctx context.Context, data []byte) (string, error) {
	wf, err := r.Convert(ctx, data)
	if err != nil {
		return "", err
	}
	return r.Transcribe(ctx, wf)
}

func errorType(err error) string {
	var panicErr *worker.PanicError
	switch {
	case errors.Is(err, stt.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &panicErr):
		return "panic"
	default:
		return "engine"
	}
}
