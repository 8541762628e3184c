// Package mock provides a mock STT engine for running without models or credentials.
// Each call returns the next canned utterance, optionally after a simulated delay.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"discord-transcriber/internal/service/stt"
)

// DefaultUtterances are cycled through in order.
var DefaultUtterances = []string{
	"Hey, just checking in about the meeting tomorrow",
	"Can you send me the link when you get a chance",
	"I'm running about ten minutes late",
	"Sounds good, talk soon",
	"Thank you very much",
}

var ErrEmptyAudio = errors.New("mock: empty audio")

// Adapter implements stt.Engine with canned responses.
type Adapter struct {
	mu         sync.Mutex
	utterances []string
	next       int
	calls      int
	delay      time.Duration
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithUtterances replaces the canned responses.
func WithUtterances(u ...string) Option {
	return func(a *Adapter) { a.utterances = u }
}

// WithDelay simulates inference time.
func WithDelay(d time.Duration) Option {
	return func(a *Adapter) { a.delay = d }
}

func New(opts ...Option) *Adapter {
	a := &Adapter{utterances: DefaultUtterances}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string  { return "mock" }
func (a *Adapter) Kind() stt.Kind { return stt.KindLocal }

// Transcribe returns the next utterance. An empty utterance list yields "".
func (a *Adapter) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", ErrEmptyAudio
	}

	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if len(a.utterances) == 0 {
		return "", nil
	}
	text := a.utterances[a.next%len(a.utterances)]
	a.next++
	return text, nil
}

// Calls reports how many transcriptions completed.
func (a *Adapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
