// Package session keeps one interactive conversation per session identifier.
//
// The Manager owns every session. Callers receive copies, never pointers into
// the map. The map itself is guarded by a mutex held only for lookups and
// structural changes; each session carries its own mutex, so operations on
// different identifiers never wait on each other.
package session

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pavelanni/questionbot/internal/llm/prompts"
	"github.com/pavelanni/questionbot/internal/model"
)

// Eviction reasons passed to Config.OnEvict.
const (
	EvictCapacity = "capacity"
	EvictIdle     = "idle"
	EvictReset    = "reset"
)

// Config bounds session retention. Zero values disable the bound.
type Config struct {
	// MaxSessions caps live sessions. Creating a session at the cap evicts
	// the least recently active one that is not held. When every session is
	// held the cap is exceeded until a hold is released.
	MaxSessions int

	// MaxIdle is how long a session may go untouched before Prune removes it.
	MaxIdle time.Duration

	// OnEvict, if set, is called once per removed session.
	OnEvict func(reason string)
}

type entry struct {
	mu      sync.Mutex
	id      string
	anchor  string
	history []model.Turn
	created time.Time

	// Read without mu by eviction scans.
	lastActive atomic.Int64
	removed    atomic.Bool

	// Number of outstanding Hold calls. Changed only with Manager.mu held.
	holds int
}

func (e *entry) snapshot() model.Session {
	h := make([]model.Turn, len(e.history))
	copy(h, e.history)
	return model.Session{
		ID:           e.id,
		Anchor:       e.anchor,
		History:      h,
		CreatedAt:    e.created,
		LastActiveAt: time.Unix(0, e.lastActive.Load()),
	}
}

// Manager is a concurrency-safe, in-memory session registry.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	cfg      Config

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewManager creates a ready-to-use Manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		cfg:      cfg,
		now:      time.Now,
	}
}

// GetOrCreate returns the session for id, creating it with an empty history
// if absent. A non-empty anchor replaces the stored one; history is kept.
func (m *Manager) GetOrCreate(id, anchor string) (model.Session, error) {
	_, s, err := m.getOrCreate(id, anchor, false)
	return s, err
}

// Hold is GetOrCreate that also shields the session from capacity eviction
// and Prune until release is called. Reset still removes a held session.
func (m *Manager) Hold(id, anchor string) (model.Session, func(), error) {
	e, s, err := m.getOrCreate(id, anchor, true)
	if err != nil {
		return model.Session{}, nil, err
	}
	var once sync.Once
	release := func() {
		once.Do(func() { m.unhold(e) })
	}
	return s, release, nil
}

func (m *Manager) getOrCreate(id, anchor string, hold bool) (*entry, model.Session, error) {
	if id == "" {
		return nil, model.Session{}, fmt.Errorf("session id: %w", model.ErrMissingField)
	}
	for {
		e := m.getOrInsert(id, anchor, hold)

		e.mu.Lock()
		if e.removed.Load() {
			// Reset or evicted between lookup and lock; start over.
			e.mu.Unlock()
			if hold {
				m.unhold(e)
			}
			continue
		}
		if anchor != "" {
			e.anchor = anchor
		}
		e.lastActive.Store(m.now().UnixNano())
		s := e.snapshot()
		e.mu.Unlock()
		return e, s, nil
	}
}

func (m *Manager) getOrInsert(id, anchor string, hold bool) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[id]; ok {
		if hold {
			e.holds++
		}
		return e
	}

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		m.evictOldestLocked()
	}

	now := m.now()
	e := &entry{id: id, anchor: anchor, created: now}
	e.lastActive.Store(now.UnixNano())
	if hold {
		e.holds = 1
	}
	m.sessions[id] = e
	slog.Debug("session created", "session_id", id)
	return e
}

func (m *Manager) unhold(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.holds > 0 {
		e.holds--
	}
}

// evictOldestLocked removes the least recently active session that is not
// held. m.mu must be held.
func (m *Manager) evictOldestLocked() {
	var (
		oldestID string
		oldestAt int64
	)
	for id, e := range m.sessions {
		if e.holds > 0 {
			continue
		}
		at := e.lastActive.Load()
		if oldestID == "" || at < oldestAt {
			oldestID, oldestAt = id, at
		}
	}
	if oldestID != "" {
		m.removeLocked(oldestID, EvictCapacity)
	}
}

func (m *Manager) removeLocked(id, reason string) bool {
	e, ok := m.sessions[id]
	if !ok {
		return false
	}
	e.removed.Store(true)
	delete(m.sessions, id)
	if m.cfg.OnEvict != nil {
		m.cfg.OnEvict(reason)
	}
	slog.Debug("session removed", "session_id", id, "reason", reason)
	return true
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrSessionNotFound, id)
	}
	return e, nil
}

// withSession runs fn with the session's lock held. It fails with
// model.ErrSessionNotFound if the session does not exist or is removed
// before the lock is acquired.
func (m *Manager) withSession(id string, fn func(e *entry) error) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed.Load() {
		return fmt.Errorf("%w: %q", model.ErrSessionNotFound, id)
	}
	return fn(e)
}

// AppendTurn adds one exchange to the end of the session's history.
func (m *Manager) AppendTurn(id, userMessage, botResponse string) error {
	return m.withSession(id, func(e *entry) error {
		e.history = append(e.history, model.Turn{User: userMessage, Bot: botResponse})
		e.lastActive.Store(m.now().UnixNano())
		return nil
	})
}

// Get returns a copy of the session.
func (m *Manager) Get(id string) (model.Session, error) {
	var s model.Session
	err := m.withSession(id, func(e *entry) error {
		s = e.snapshot()
		return nil
	})
	return s, err
}

// BuildPrompt renders the anchor, the full history, and message into a
// single prompt for the generator.
func (m *Manager) BuildPrompt(id, message string) (string, error) {
	var (
		anchor  string
		history []model.Turn
	)
	err := m.withSession(id, func(e *entry) error {
		anchor = e.anchor
		history = e.snapshot().History
		return nil
	})
	if err != nil {
		return "", err
	}
	return prompts.BuildTutorPrompt(anchor, history, message)
}

// Reset removes the session. It fails with model.ErrSessionNotFound if there
// was nothing to remove.
func (m *Manager) Reset(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.removeLocked(id, EvictReset) {
		return fmt.Errorf("%w: %q", model.ErrSessionNotFound, id)
	}
	return nil
}

// Prune removes unheld sessions idle longer than Config.MaxIdle and returns how many
// were removed. It is a no-op when MaxIdle is zero.
func (m *Manager) Prune() int {
	if m.cfg.MaxIdle <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.cfg.MaxIdle).UnixNano()
	pruned := 0
	for id, e := range m.sessions {
		if e.holds == 0 && e.lastActive.Load() < cutoff {
			m.removeLocked(id, EvictIdle)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// List returns copies of all live sessions, most recently active first.
func (m *Manager) List() []model.Session {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	out := make([]model.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed.Load() {
			out = append(out, e.snapshot())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out
}
