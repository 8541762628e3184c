package live

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"discord-transcriber/internal/observability/logging"
	"discord-transcriber/internal/observability/metrics"
)

var (
	ErrAlreadyActive = errors.New("live: already transcribing in this guild")
	ErrNotActive     = errors.New("live: not connected to a voice channel")
	ErrClosed        = errors.New("live: manager is shut down")
)

// VoiceConn is a joined voice connection.
type VoiceConn interface {
	Packets() <-chan Packet
	OnSpeaking(fn func(ssrc uint32, userID string))
	Disconnect() error
}

// Dialer joins the voice channel once a guild slot is reserved.
type Dialer func(ctx context.Context) (VoiceConn, error)

type entry struct {
	session *Session
	conn    VoiceConn
}

// Manager keeps at most one session per guild.
type Manager struct {
	ctx     context.Context
	deps    Deps
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

// NewManager creates a manager. Sessions end when ctx is cancelled.
func NewManager(ctx context.Context, deps Deps) *Manager {
	return &Manager{
		ctx:      ctx,
		deps:     deps,
		logger:   logging.WithComponent("live"),
		metrics:  metrics.DefaultMetrics,
		sessions: make(map[string]*entry),
	}
}

// Active reports whether guildID has a session or one is being joined.
func (m *Manager) Active(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[guildID]
	return ok
}

// Join reserves the guild, dials and starts receiving. Posts go to textChannelID.
func (m *Manager) Join(guildID, textChannelID string, dial Dialer) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if _, ok := m.sessions[guildID]; ok {
		m.mu.Unlock()
		return ErrAlreadyActive
	}
	m.sessions[guildID] = &entry{}
	m.mu.Unlock()

	conn, err := dial(m.ctx)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, guildID)
		m.mu.Unlock()
		return err
	}

	// Close may have run while dialing; its map swap dropped our reservation.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if err := conn.Disconnect(); err != nil {
			m.logger.Warn().Err(err).Str("guildId", guildID).Msg("Voice disconnect failed")
		}
		return ErrClosed
	}
	sess := newSession(m.ctx, guildID, textChannelID, m.deps)
	m.sessions[guildID] = &entry{session: sess, conn: conn}
	m.mu.Unlock()

	conn.OnSpeaking(sess.MapSpeaker)

	m.metrics.RecordLiveSession(1)
	m.logger.Info().
		Str("guildId", guildID).
		Str("textChannelId", textChannelID).
		Msg("Live transcription started")

	go sess.Run(conn.Packets())
	return nil
}

// Leave disconnects and removes the guild's session.
func (m *Manager) Leave(guildID string) error {
	m.mu.Lock()
	e, ok := m.sessions[guildID]
	if !ok || e.session == nil {
		m.mu.Unlock()
		return ErrNotActive
	}
	delete(m.sessions, guildID)
	m.mu.Unlock()

	return m.stop(guildID, e)
}

// Close ends every session. Later joins fail with ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	entries := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for guildID, e := range entries {
		if e.session != nil {
			m.stop(guildID, e)
		}
	}
}

func (m *Manager) stop(guildID string, e *entry) error {
	e.session.Close()
	err := e.conn.Disconnect()
	m.metrics.RecordLiveSession(-1)

	if err != nil {
		m.logger.Warn().Err(err).Str("guildId", guildID).Msg("Voice disconnect failed")
		return err
	}
	m.logger.Info().Str("guildId", guildID).Msg("Live transcription stopped")
	return nil
}
