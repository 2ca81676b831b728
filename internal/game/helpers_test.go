package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type recordedEvent struct {
	name    string
	payload any
}

// recorder is a Channel that keeps everything it is sent.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (r *recorder) Send(event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: event, payload: payload})
	return r.err
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.name)
	}
	return out
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.name == name {
			n++
		}
	}
	return n
}

func (r *recorder) last(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].name == name {
			return r.events[i].payload, true
		}
	}
	return nil, false
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type memoryPersister struct {
	mu        sync.Mutex
	snapshots map[string][]byte
	results   []GameResult
	stats     []PlayerResult
	saveErr   error
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{snapshots: make(map[string][]byte)}
}

func (m *memoryPersister) SaveSnapshot(ctx context.Context, sessionID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snapshots[sessionID] = append([]byte(nil), blob...)
	return nil
}

func (m *memoryPersister) LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.snapshots[sessionID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return blob, nil
}

func (m *memoryPersister) RecordGameResult(ctx context.Context, result GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	return nil
}

func (m *memoryPersister) RecordPlayerStatistics(ctx context.Context, stats []PlayerResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, stats...)
	return nil
}

type memorySink struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (m *memorySink) Publish(ctx context.Context, event LifecycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memorySink) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}

var testCatalog = StaticCatalog{
	{ID: "two-buttons", ContentRef: "/memes/two-buttons.jpg", CaptionFields: 2},
}

func testSettings() Settings {
	return Settings{
		TotalRounds:       2,
		SubmissionSeconds: 3,
		VotingSeconds:     3,
		ResultsSeconds:    2,
		MaxPlayers:        MaxPlayers,
	}
}

// newTestEngine builds an engine on a fake clock. Countdown ticks only
// happen when a test calls tickN.
func newTestEngine(t *testing.T, settings Settings, opts ...Option) *Engine {
	t.Helper()
	clock := clockwork.NewFakeClock()
	base := []Option{WithClock(clock), WithPicker(func(int) int { return 0 })}
	e := NewEngine(NewStore(), testCatalog, settings, append(base, opts...)...)
	t.Cleanup(e.Close)
	return e
}

type testPlayer struct {
	seat Seat
	ch   *recorder
}

// seatPlayers creates a session on code with one player per name; the
// first name founds it.
func seatPlayers(t *testing.T, e *Engine, code string, names ...string) []testPlayer {
	t.Helper()
	players := make([]testPlayer, 0, len(names))
	for i, name := range names {
		ch := &recorder{}
		var (
			seat Seat
			err  error
		)
		if i == 0 {
			seat, err = e.CreateSession(code, Player{Username: name, AccountID: "acct-" + name}, ch)
		} else {
			seat, err = e.JoinSession(code, Player{Username: name, AccountID: "acct-" + name}, ch)
		}
		if err != nil {
			t.Fatalf("seat %s: %v", name, err)
		}
		players = append(players, testPlayer{seat: seat, ch: ch})
	}
	return players
}

func tickN(t *testing.T, e *Engine, sessionID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		e.tick(context.Background(), sessionID)
	}
}

func mustSubmit(t *testing.T, e *Engine, p testPlayer, captions ...string) {
	t.Helper()
	if err := e.Submit(p.seat.SessionID, p.seat.PlayerID, captions); err != nil {
		t.Fatalf("submit %s: %v", p.seat.PlayerID, err)
	}
}

// inspect runs fn against the live session under its lock.
func inspect(t *testing.T, e *Engine, idOrCode string, fn func(sess *Session)) {
	t.Helper()
	if _, err := e.store.Update(idOrCode, func(sess *Session) error {
		fn(sess)
		return nil
	}); err != nil {
		t.Fatalf("inspect %s: %v", idOrCode, err)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
