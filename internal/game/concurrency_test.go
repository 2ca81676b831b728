package game

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// checkRound reports every broken round invariant in sess. The caller holds
// sess.mu.
func checkRound(sess *Session) []string {
	var problems []string
	if sess.CurrentRound > sess.TotalRounds {
		problems = append(problems, fmt.Sprintf("round %d beyond total %d", sess.CurrentRound, sess.TotalRounds))
	}
	r := sess.Round
	if r == nil {
		return problems
	}
	owners := make(map[string]int, len(r.Submissions))
	for _, sub := range r.Submissions {
		owners[sub.PlayerID]++
		if owners[sub.PlayerID] > 1 {
			problems = append(problems, fmt.Sprintf("round %d: %s submitted twice", sess.CurrentRound, sub.PlayerID))
		}
		voters := make(map[string]bool, len(sub.Votes))
		for _, voter := range sub.Votes {
			if voter == sub.PlayerID {
				problems = append(problems, fmt.Sprintf("round %d: %s voted for itself", sess.CurrentRound, voter))
			}
			if voters[voter] {
				problems = append(problems, fmt.Sprintf("round %d: %s voted twice for %s", sess.CurrentRound, voter, sub.PlayerID))
			}
			voters[voter] = true
		}
	}
	return problems
}

func TestConcurrentActionsAndTicksKeepInvariants(t *testing.T) {
	const (
		workersPerPlayer = 3
		actionsPerWorker = 150
	)
	settings := testSettings()
	settings.TotalRounds = 3
	settings.ResultsSeconds = 1
	clock := clockwork.NewFakeClock()
	sink := &memorySink{}
	e := NewEngine(NewStore(), testCatalog, settings, WithClock(clock), WithEventSink(sink), WithPicker(func(int) int { return 0 }))
	t.Cleanup(e.Close)

	ps := seatPlayers(t, e, "2486", "Ada", "Ben", "Cy", "Dee", "Eve")
	id := ps[0].seat.SessionID
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.seat.PlayerID)
	}
	if err := e.StartSession(id); err != nil {
		t.Fatalf("start: %v", err)
	}

	var (
		problemsMu sync.Mutex
		problems   []string
	)
	check := func() {
		var found []string
		if _, err := e.store.Update(id, func(sess *Session) error {
			found = checkRound(sess)
			return nil
		}); err != nil {
			found = append(found, err.Error())
		}
		if len(found) > 0 {
			problemsMu.Lock()
			problems = append(problems, found...)
			problemsMu.Unlock()
		}
	}

	done := make(chan struct{})
	var clockWG sync.WaitGroup
	clockWG.Add(1)
	go func() {
		defer clockWG.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			clock.Advance(time.Second)
			time.Sleep(time.Millisecond)
		}
	}()

	var players sync.WaitGroup
	for _, p := range ps {
		for w := 0; w < workersPerPlayer; w++ {
			players.Add(1)
			go func(self string) {
				defer players.Done()
				for i := 0; i < actionsPerWorker; i++ {
					switch rand.IntN(4) {
					case 0:
						_ = e.Submit(id, self, []string{"when the tests", "run in parallel"})
					case 1:
						_ = e.Submit(id, self, []string{"", ""})
					case 2:
						_ = e.Vote(id, self, ids[rand.IntN(len(ids))])
					default:
						_ = e.Skip(id, self)
					}
					if i%25 == 0 {
						check()
					}
				}
			}(p.seat.PlayerID)
		}
	}
	players.Wait()
	check()

	eventually(t, func() bool {
		view, err := e.State(id)
		return err == nil && view.Status == StatusFinished
	})
	close(done)
	clockWG.Wait()
	check()

	if len(problems) > 0 {
		t.Fatalf("invariants broken: %v", problems)
	}

	e.Close()
	started := make(map[int]int)
	scored := make(map[int]int)
	finished := 0
	sink.mu.Lock()
	for _, ev := range sink.events {
		switch ev.Type {
		case LifecycleRoundStarted:
			started[ev.Round]++
		case LifecycleRoundScored:
			scored[ev.Round]++
		case LifecycleGameFinished:
			finished++
		}
	}
	sink.mu.Unlock()
	for round := 1; round <= settings.TotalRounds; round++ {
		if started[round] != 1 || scored[round] != 1 {
			t.Fatalf("round %d: expected one start and one scoring, got %d/%d", round, started[round], scored[round])
		}
	}
	if len(started) != settings.TotalRounds || finished != 1 {
		t.Fatalf("expected %d rounds and one finish, got %v rounds and %d finishes", settings.TotalRounds, started, finished)
	}
}
