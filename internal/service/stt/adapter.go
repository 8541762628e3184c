// Package stt defines the interface for Speech-to-Text engines.
package stt

import (
	"context"
	"errors"
	"strings"
)

// ErrMissingCredential is returned by remote engines configured without an
// API key. No network call is made.
var ErrMissingCredential = errors.New("stt: no API key configured")

// PlaceholderKey is the value shipped in sample configs meaning "no key".
const PlaceholderKey = "0"

// Kind tells the pipeline where an engine spends its time. Local engines are
// CPU-bound and go through the worker pool; remote engines wait on the network.
type Kind int

const (
	KindLocal Kind = iota
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Engine transcribes a complete 16-bit PCM WAV buffer.
type Engine interface {
	Name() string
	Kind() Kind
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// HasCredential reports whether key is a usable API key. Surrounding
// whitespace is ignored.
func HasCredential(key string) bool {
	k := strings.TrimSpace(key)
	return k != "" && k != PlaceholderKey
}
