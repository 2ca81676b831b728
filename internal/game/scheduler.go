package game

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TickFunc is invoked once per interval for a session. Returning false
// ends the task. ctx is cancelled as soon as the task is cancelled.
type TickFunc func(ctx context.Context, sessionID string) bool

// Scheduler runs one countdown task per session. Tasks are keyed by session
// id; starting a task for an id replaces any existing one.
type Scheduler struct {
	clock    clockwork.Clock
	interval time.Duration
	tick     TickFunc

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

type task struct {
	cancel context.CancelFunc
}

func NewScheduler(clock clockwork.Clock, interval time.Duration, tick TickFunc) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		clock:    clock,
		interval: interval,
		tick:     tick,
		tasks:    make(map[string]*task),
	}
}

func (s *Scheduler) Start(sessionID string) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel}

	s.mu.Lock()
	if existing, ok := s.tasks[sessionID]; ok {
		existing.cancel()
	}
	s.tasks[sessionID] = t
	ticker := s.clock.NewTicker(s.interval)
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, sessionID, t, ticker)
	log.Debug().Str("session_id", sessionID).Msg("scheduler task started")
}

// Cancel stops the task for sessionID. Cancelling an unknown or already
// cancelled task is a no-op. Cancel never waits for a running tick.
func (s *Scheduler) Cancel(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[sessionID]; ok {
		t.cancel()
		delete(s.tasks, sessionID)
		log.Debug().Str("session_id", sessionID).Msg("scheduler task cancelled")
	}
}

func (s *Scheduler) Active(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[sessionID]
	return ok
}

// Stop cancels every task and waits for their goroutines to exit. It must
// not be called while holding a session lock.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, t := range s.tasks {
		t.cancel()
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, sessionID string, t *task, ticker clockwork.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			if !s.tick(ctx, sessionID) {
				s.finish(sessionID, t)
				return
			}
		}
	}
}

// finish drops t from the task map unless it has already been replaced.
func (s *Scheduler) finish(sessionID string, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.cancel()
	if s.tasks[sessionID] == t {
		delete(s.tasks, sessionID)
	}
}
