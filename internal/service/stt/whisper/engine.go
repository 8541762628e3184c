// Package whisper runs whisper.cpp locally through its command line interface.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"discord-transcriber/internal/service/stt"
)

type Config struct {
	Binary   string
	Model    string
	Language string
	Threads  int
}

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	if cfg.Binary == "" {
		cfg.Binary = "whisper-cli"
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Name() string  { return "whisper" }
func (e *Engine) Kind() stt.Kind { return stt.KindLocal }

// Transcribe writes wav to a temp file and reads the plain transcript from stdout.
func (e *Engine) Transcribe(ctx context.Context, wav []byte) (string, error) {
	f, err := os.CreateTemp("", "transcribe-*.wav")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(wav); err != nil {
		f.Close()
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.cfg.Binary, e.args(f.Name())...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := lastLine(stderr.String()); msg != "" {
			return "", fmt.Errorf("whisper: %w: %s", err, msg)
		}
		return "", fmt.Errorf("whisper: %w", err)
	}

	return joinLines(stdout.String()), nil
}

func (e *Engine) args(path string) []string {
	args := []string{"-m", e.cfg.Model, "-f", path, "-nt", "-np"}
	if e.cfg.Language != "" {
		args = append(args, "-l", e.cfg.Language)
	}
	if e.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.cfg.Threads))
	}
	return args
}

// whisper.cpp prints one line per decoded segment
func joinLines(out string) string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
