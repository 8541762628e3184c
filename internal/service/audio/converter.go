package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// Waveform is a RIFF WAV buffer ready for a speech engine.
type Waveform struct {
	WAV        []byte
	SampleRate int
	Duration   time.Duration
}

// Converter decodes a compressed attachment and re-encodes it as WAV.
type Converter struct {
	decoder Decoder
}

func NewConverter(decoder Decoder) *Converter {
	return &Converter{decoder: decoder}
}

// Convert is CPU-bound; callers run it on the worker pool.
func (c *Converter) Convert(ctx context.Context, data []byte) (*Waveform, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	buf, err := c.decoder.Decode(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("decoding audio: %w", err)
	}

	riff, err := EncodeWAV(buf)
	if err != nil {
		return nil, fmt.Errorf("encoding wav: %w", err)
	}

	return &Waveform{
		WAV:        riff,
		SampleRate: buf.Format.SampleRate,
		Duration:   bufferDuration(buf),
	}, nil
}

// EncodeWAV writes a 16-bit PCM RIFF WAV entirely in memory.
func EncodeWAV(buf *goaudio.IntBuffer) ([]byte, error) {
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, ErrEmptyAudio
	}
	if buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, errors.New("audio: invalid buffer format")
	}

	wavFile := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(wavFile, buf.Format.SampleRate, 16, buf.Format.NumChannels, 1)

	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	riffWav, err := io.ReadAll(wavFile.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}
	return riffWav, nil
}

func bufferDuration(buf *goaudio.IntBuffer) time.Duration {
	frames := len(buf.Data) / buf.Format.NumChannels
	return time.Duration(frames) * time.Second / time.Duration(buf.Format.SampleRate)
}
