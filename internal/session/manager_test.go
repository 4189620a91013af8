package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pavelanni/questionbot/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock advances by one second on every call.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(cfg)
	m.now = clock.now
	return m, clock
}

func TestGetOrCreateNewSession(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	s, err := m.GetOrCreate("s1", "What is entropy?")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if s.ID != "s1" || s.Anchor != "What is entropy?" {
		t.Errorf("unexpected session %+v", s)
	}
	if len(s.History) != 0 {
		t.Errorf("expected empty history, got %d turns", len(s.History))
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestGetOrCreateRequiresID(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	if _, err := m.GetOrCreate("", "q"); !errors.Is(err, model.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}

func TestAnchorLastWriteWins(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	if _, err := m.GetOrCreate("s1", "first"); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendTurn("s1", "u1", "b1"); err != nil {
		t.Fatal(err)
	}

	// Empty anchor keeps the stored one.
	s, _ := m.GetOrCreate("s1", "")
	if s.Anchor != "first" {
		t.Errorf("anchor = %q, want %q", s.Anchor, "first")
	}

	// New anchor replaces it, history survives.
	s, _ = m.GetOrCreate("s1", "second")
	if s.Anchor != "second" {
		t.Errorf("anchor = %q, want %q", s.Anchor, "second")
	}
	if len(s.History) != 1 {
		t.Errorf("history cleared on anchor change: %+v", s.History)
	}
}

func TestAppendTurn(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	if err := m.AppendTurn("never", "u", "b"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("append to unknown session: expected ErrSessionNotFound, got %v", err)
	}

	if _, err := m.GetOrCreate("s1", "q"); err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		if err := m.AppendTurn("s1", fmt.Sprintf("u%d", i), fmt.Sprintf("b%d", i)); err != nil {
			t.Fatalf("AppendTurn %d: %v", i, err)
		}
	}

	s, err := m.Get("s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := []model.Turn{{User: "u0", Bot: "b0"}, {User: "u1", Bot: "b1"}, {User: "u2", Bot: "b2"}}
	if len(s.History) != len(want) {
		t.Fatalf("history length %d, want %d", len(s.History), len(want))
	}
	for i := range want {
		if s.History[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, s.History[i], want[i])
		}
	}
}

func TestResetLifecycle(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	if err := m.Reset("missing"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("reset missing: expected ErrSessionNotFound, got %v", err)
	}

	if _, err := m.GetOrCreate("s1", "q"); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendTurn("s1", "u", "b"); err != nil {
		t.Fatal(err)
	}
	if err := m.Reset("s1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := m.AppendTurn("s1", "u", "b"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("append after reset: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := m.BuildPrompt("s1", "x"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("prompt after reset: expected ErrSessionNotFound, got %v", err)
	}

	s, err := m.GetOrCreate("s1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.History) != 0 || s.Anchor != "" {
		t.Errorf("session recreated with residue: %+v", s)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	_, _ = m.GetOrCreate("s1", "q")
	_ = m.AppendTurn("s1", "u", "b")

	s, _ := m.Get("s1")
	s.History[0].User = "tampered"
	s.History = append(s.History, model.Turn{User: "extra"})

	again, _ := m.Get("s1")
	if again.History[0].User != "u" || len(again.History) != 1 {
		t.Errorf("caller mutation leaked into manager: %+v", again.History)
	}
}

func TestBuildPromptUsesStoredAnchor(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	if _, err := m.BuildPrompt("s1", "hello"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	_, _ = m.GetOrCreate("s1", "Derive the heat equation.")
	_ = m.AppendTurn("s1", "what is k?", "thermal diffusivity")

	// Second call supplies no anchor.
	_, _ = m.GetOrCreate("s1", "")
	prompt, err := m.BuildPrompt("s1", "and boundary conditions?")
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	a := strings.Index(prompt, "Derive the heat equation.")
	h := strings.Index(prompt, "thermal diffusivity")
	n := strings.Index(prompt, "and boundary conditions?")
	if a < 0 || h < 0 || n < 0 || !(a < h && h < n) {
		t.Errorf("expected anchor < history < message, got %d %d %d:\n%s", a, h, n, prompt)
	}
}

func TestCapacityEvictsLeastRecentlyActive(t *testing.T) {
	var evicted []string
	m, _ := newTestManager(t, Config{
		MaxSessions: 2,
		OnEvict:     func(reason string) { evicted = append(evicted, reason) },
	})

	_, _ = m.GetOrCreate("a", "")
	_, _ = m.GetOrCreate("b", "")
	_ = m.AppendTurn("a", "u", "b") // a is now the most recent
	_, _ = m.GetOrCreate("c", "")

	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	if _, err := m.Get("b"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("expected b to be evicted, got %v", err)
	}
	if _, err := m.Get("a"); err != nil {
		t.Errorf("expected a to survive: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != EvictCapacity {
		t.Errorf("evictions = %v, want [capacity]", evicted)
	}
}

func TestHoldShieldsFromCapacityEviction(t *testing.T) {
	m, _ := newTestManager(t, Config{MaxSessions: 1})

	_, release, err := m.Hold("a", "Q")
	require.NoError(t, err)

	_, err = m.GetOrCreate("b", "")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len(), "cap is exceeded while every session is held")
	_, err = m.Get("a")
	require.NoError(t, err)

	release()
	release() // idempotent

	_, err = m.GetOrCreate("c", "")
	require.NoError(t, err)
	_, err = m.Get("a")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	assert.Equal(t, 2, m.Len())
}

func TestHoldShieldsFromPrune(t *testing.T) {
	m, clock := newTestManager(t, Config{MaxIdle: time.Minute})

	_, release, err := m.Hold("busy", "")
	require.NoError(t, err)
	clock.mu.Lock()
	clock.t = clock.t.Add(2 * time.Minute)
	clock.mu.Unlock()

	assert.Equal(t, 0, m.Prune())
	release()
	assert.Equal(t, 1, m.Prune())
}

func TestResetRemovesHeldSession(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	_, release, err := m.Hold("s", "")
	require.NoError(t, err)
	require.NoError(t, m.Reset("s"))
	release()
	assert.ErrorIs(t, m.AppendTurn("s", "u", "r"), model.ErrSessionNotFound)
}

func TestPrune(t *testing.T) {
	m, clock := newTestManager(t, Config{MaxIdle: time.Minute})

	_, _ = m.GetOrCreate("old", "")
	clock.mu.Lock()
	clock.t = clock.t.Add(2 * time.Minute)
	clock.mu.Unlock()
	_, _ = m.GetOrCreate("fresh", "")

	if n := m.Prune(); n != 1 {
		t.Errorf("Prune = %d, want 1", n)
	}
	if _, err := m.Get("old"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("expected old to be pruned, got %v", err)
	}
	if _, err := m.Get("fresh"); err != nil {
		t.Errorf("expected fresh to survive: %v", err)
	}
}

func TestPruneDisabled(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	_, _ = m.GetOrCreate("s", "")
	if n := m.Prune(); n != 0 {
		t.Errorf("Prune = %d, want 0", n)
	}
}

func TestListNewestFirst(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	_, _ = m.GetOrCreate("a", "")
	_, _ = m.GetOrCreate("b", "")
	_ = m.AppendTurn("a", "u", "b")

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestConcurrentAppendSameSession(t *testing.T) {
	m := NewManager(Config{})
	_, err := m.GetOrCreate("shared", "q")
	require.NoError(t, err)

	const workers, perWorker = 16, 50
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				assert.NoError(t, m.AppendTurn("shared", fmt.Sprintf("w%d", w), fmt.Sprintf("%d", i)))
			}
		}()
	}
	wg.Wait()

	s, err := m.Get("shared")
	require.NoError(t, err)
	require.Len(t, s.History, workers*perWorker)

	// Each worker's turns appear in the order it appended them.
	next := make(map[string]int)
	for _, turn := range s.History {
		assert.Equal(t, fmt.Sprintf("%d", next[turn.User]), turn.Bot, "worker %s out of order", turn.User)
		next[turn.User]++
	}
}

func TestConcurrentMixedOperations(t *testing.T) {
	m := NewManager(Config{MaxSessions: 8, MaxIdle: time.Hour})

	var wg sync.WaitGroup
	for w := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("s%d", w%10)
			for i := range 100 {
				_, err := m.GetOrCreate(id, fmt.Sprintf("anchor %d", i))
				assert.NoError(t, err)
				err = m.AppendTurn(id, "u", "b")
				if err != nil {
					assert.ErrorIs(t, err, model.ErrSessionNotFound)
				}
				if i%17 == 0 {
					_ = m.Reset(id)
				}
				_, _ = m.BuildPrompt(id, "m")
				m.Prune()
				_ = m.List()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 8)
}

func TestConcurrentDifferentSessionsDoNotBlock(t *testing.T) {
	m := NewManager(Config{})
	_, _ = m.GetOrCreate("busy", "")
	_, _ = m.GetOrCreate("other", "")

	// Hold busy's lock; operations on other must still complete.
	e, err := m.lookup("busy")
	require.NoError(t, err)
	e.mu.Lock()
	defer e.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- m.AppendTurn("other", "u", "b") }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("AppendTurn on other session blocked behind busy session")
	}
}
