// Package audio converts compressed voice attachments into the uncompressed
// 16-bit PCM WAV the speech engines expect.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	goaudio "github.com/go-audio/audio"
)

// ErrEmptyAudio is returned when decoding yields no samples.
var ErrEmptyAudio = errors.New("audio: no samples decoded")

// Decoder turns container bytes (Ogg/Opus, MP3, WebM, ...) into mono PCM samples.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*goaudio.IntBuffer, error)
}

// FFmpegDecoder pipes the input through an ffmpeg subprocess and reads raw
// signed 16-bit little-endian mono PCM back from stdout.
type FFmpegDecoder struct {
	path       string
	sampleRate int
}

// NewFFmpegDecoder creates a decoder. path is the ffmpeg binary.
func NewFFmpegDecoder(path string, sampleRate int) *FFmpegDecoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegDecoder{path: path, sampleRate: sampleRate}
}

// Decode runs: ffmpeg -i pipe:0 -f s16le -ac 1 -ar <rate> pipe:1
func (d *FFmpegDecoder) Decode(ctx context.Context, data []byte) (*goaudio.IntBuffer, error) {
	cmd := exec.CommandContext(ctx, d.path,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", "1", "-ar", strconv.Itoa(d.sampleRate),
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	samples := pcm16ToInts(stdout.Bytes())
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}

	return &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  d.sampleRate,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}, nil
}

func pcm16ToInts(pcm []byte) []int {
	out := make([]int, len(pcm)/2)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return out
}
