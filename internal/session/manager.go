package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
	apperrors "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/errors"
)

// ManagerConfig controls session limits and idle eviction. OnChange, when
// set, is called with the live session count after it changes.
type ManagerConfig struct {
	TTL           time.Duration
	MaxSessions   int
	SweepInterval time.Duration
	DefaultSort   filter.SortMode
	OnChange      func(live int, evicted int)
}

func defaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		TTL:           30 * time.Minute,
		MaxSessions:   10000,
		SweepInterval: time.Minute,
		DefaultSort:   filter.SortDefault,
	}
}

// Manager owns every live session and fans collection reloads out to them.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	catalog  *document.Catalog
	engine   *filter.Engine
	cfg      ManagerConfig
	logger   *slog.Logger
}

// NewManager creates a Manager over catalog, filling in defaults for zero
// config values.
func NewManager(catalog *document.Catalog, engine *filter.Engine, cfg ManagerConfig) *Manager {
	defaults := defaultManagerConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaults.MaxSessions
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.DefaultSort == "" {
		cfg.DefaultSort = defaults.DefaultSort
	}
	if engine == nil {
		engine = filter.NewEngine(time.Now().UnixNano())
	}
	return &Manager{
		sessions: make(map[string]*Session),
		catalog:  catalog,
		engine:   engine,
		cfg:      cfg,
		logger:   slog.Default().With("component", "session-manager"),
	}
}

// Create starts a session over the current collection with opts applied.
func (m *Manager) Create(opts filter.Options) (*Session, error) {
	if opts.Sort == "" {
		opts.Sort = m.cfg.DefaultSort
	}

	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, apperrors.Newf(apperrors.ErrTooManySessions, 503,
			"session limit of %d reached", m.cfg.MaxSessions)
	}
	s := New(uuid.NewString(), m.engine, nil)
	m.sessions[s.ID()] = s
	live := len(m.sessions)
	m.mu.Unlock()
	m.changed(live, 0)

	s.Load(m.catalog.Snapshot())
	s.SetOptions(opts)
	m.logger.Debug("session created", "session_id", s.ID())
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrSessionNotFound, 404, "session %s", id)
	}
	return s, nil
}

// Delete removes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	if _, ok := m.sessions[id]; !ok {
		m.mu.Unlock()
		return apperrors.Newf(apperrors.ErrSessionNotFound, 404, "session %s", id)
	}
	delete(m.sessions, id)
	live := len(m.sessions)
	m.mu.Unlock()
	m.changed(live, 0)
	return nil
}

func (m *Manager) changed(live, evicted int) {
	if m.cfg.OnChange != nil {
		m.cfg.OnChange(live, evicted)
	}
}

// Catalog returns the catalog sessions load from.
func (m *Manager) Catalog() *document.Catalog {
	return m.catalog
}

// Engine returns the filter engine shared by all sessions.
func (m *Manager) Engine() *filter.Engine {
	return m.engine
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reload installs docs in the catalog and pushes the new collection to every
// session. Each session recomputes and resets its cursor.
func (m *Manager) Reload(docs []document.Document) *document.Collection {
	col := m.catalog.Replace(docs)

	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Load(col)
	}
	m.logger.Info("collection reloaded",
		"version", col.Version,
		"documents", col.Len(),
		"sessions", len(sessions),
	)
	return col
}

// Evict removes sessions idle since before now-TTL and returns how many were
// removed.
func (m *Manager) Evict(now time.Time) int {
	cutoff := now.Add(-m.cfg.TTL)

	m.mu.Lock()
	removed := 0
	for id, s := range m.sessions {
		if s.LastAccess().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	live := len(m.sessions)
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Info("idle sessions evicted", "count", removed, "remaining", live)
		m.changed(live, removed)
	}
	return removed
}

// Run evicts idle sessions every SweepInterval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Evict(now)
		}
	}
}
