package game

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDisconnectEveryoneTearsDown(t *testing.T) {
	e := newTestEngine(t, testSettings())
	ps := seatPlayers(t, e, "2468", "Ada", "Ben")
	id := ps[0].seat.SessionID
	if err := e.StartSession(id); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !e.sched.Active(id) {
		t.Fatalf("expected countdown after start")
	}

	if err := e.Disconnect(id, ps[0].seat.PlayerID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if ps[1].ch.count(EventPlayerDisconnected) != 1 {
		t.Fatalf("expected Ben to be told, got %v", ps[1].ch.names())
	}
	if _, ok := e.store.Get(id); !ok {
		t.Fatalf("session must survive while someone is connected")
	}
	if err := e.Disconnect(id, ps[1].seat.PlayerID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	if _, ok := e.store.Get(id); ok {
		t.Fatalf("expected session gone by id")
	}
	if _, ok := e.store.Get("2468"); ok {
		t.Fatalf("expected session gone by code")
	}
	if e.sched.Active(id) {
		t.Fatalf("expected countdown cancelled")
	}
	before := ps[1].ch.count(EventTimeUpdate)
	if e.tick(context.Background(), id) {
		t.Fatalf("stray tick must end its task")
	}
	if ps[1].ch.count(EventTimeUpdate) != before {
		t.Fatalf("expected no time updates after teardown")
	}
	if err := e.Disconnect(id, ps[1].seat.PlayerID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDisconnectChannelIgnoresStaleConnection(t *testing.T) {
	e := newTestEngine(t, testSettings())
	ps := seatPlayers(t, e, "1122", "Ada", "Ben")
	id := ps[0].seat.SessionID
	fresh := &recorder{}
	if err := e.Reconnect(id, ps[0].seat.PlayerID, fresh); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if err := e.DisconnectChannel(id, ps[0].seat.PlayerID, ps[0].ch); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	inspect(t, e, id, func(sess *Session) {
		if !sess.player(ps[0].seat.PlayerID).Connected {
			t.Fatalf("stale channel must not disconnect the player")
		}
	})
	if err := e.DisconnectChannel(id, ps[0].seat.PlayerID, fresh); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	inspect(t, e, id, func(sess *Session) {
		if sess.player(ps[0].seat.PlayerID).Connected {
			t.Fatalf("expected player disconnected")
		}
	})
}

func TestReconnectReplaysVotingFeed(t *testing.T) {
	e := newTestEngine(t, testSettings())
	ps := seatPlayers(t, e, "3344", "Ada", "Ben", "Cy")
	id := ps[0].seat.SessionID
	if err := e.StartSession(id); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, p := range ps {
		mustSubmit(t, e, p, "caption")
	}
	if err := e.Vote(id, ps[0].seat.PlayerID, ps[1].seat.PlayerID); err != nil {
		t.Fatalf("vote: %v", err)
	}
	payload, _ := ps[0].ch.last(EventVotingSubmission)
	shown := payload.(VotingSubmission).Submission.PlayerID

	if err := e.Disconnect(id, ps[0].seat.PlayerID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	fresh := &recorder{}
	for i := 0; i < 2; i++ {
		fresh.reset()
		if err := e.Reconnect(id, ps[0].seat.PlayerID, fresh); err != nil {
			t.Fatalf("reconnect: %v", err)
		}
		names := fresh.names()
		if len(names) != 2 || names[0] != EventGameState || names[1] != EventVotingSubmission {
			t.Fatalf("unexpected replay %v", names)
		}
		payload, _ := fresh.last(EventVotingSubmission)
		if got := payload.(VotingSubmission).Submission.PlayerID; got != shown {
			t.Fatalf("expected replay of %s, got %s", shown, got)
		}
	}
	if ps[1].ch.count(EventPlayerReconnected) != 1 {
		t.Fatalf("expected one reconnect notice, got %d", ps[1].ch.count(EventPlayerReconnected))
	}
	if ps[0].ch.count(EventGameState) == 0 {
		t.Fatalf("old channel should have seen state before the swap")
	}
	before := ps[0].ch.count(EventTimeUpdate)
	tickN(t, e, id, 1)
	if ps[0].ch.count(EventTimeUpdate) != before || fresh.count(EventTimeUpdate) != 1 {
		t.Fatalf("expected pushes to go to the rebound channel only")
	}
}

func TestReconnectAfterFinishReplaysRankings(t *testing.T) {
	settings := testSettings()
	settings.TotalRounds = 1
	e := newTestEngine(t, settings)
	ps := seatPlayers(t, e, "5566", "Ada", "Ben")
	id := ps[0].seat.SessionID
	if err := e.StartSession(id); err != nil {
		t.Fatalf("start: %v", err)
	}
	tickN(t, e, id, settings.SubmissionSeconds)
	fresh := &recorder{}
	if err := e.Reconnect(id, ps[1].seat.PlayerID, fresh); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if fresh.count(EventGameRankings) != 1 {
		t.Fatalf("expected rankings replay, got %v", fresh.names())
	}
}

func TestReconnectUnknownPlayer(t *testing.T) {
	e := newTestEngine(t, testSettings())
	ps := seatPlayers(t, e, "7788", "Ada")
	if err := e.Reconnect(ps[0].seat.SessionID, "ghost", &recorder{}); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
	if err := e.Reconnect("nope", ps[0].seat.PlayerID, &recorder{}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestTeardownNotifiesPlayers(t *testing.T) {
	e := newTestEngine(t, testSettings())
	ps := seatPlayers(t, e, "9900", "Ada", "Ben")
	if err := e.Teardown("9900"); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	payload, ok := ps[1].ch.last(EventGameCleanup)
	if !ok || payload.(Cleanup).SessionID != ps[0].seat.SessionID {
		t.Fatalf("expected cleanup notice, got %v", payload)
	}
	if !e.store.CodeAvailable("9900") {
		t.Fatalf("expected code to be released")
	}
	// a failing channel never blocks teardown of another session
	bad := &recorder{err: errors.New("closed")}
	if _, err := e.CreateSession("9901", Player{Username: "Cy"}, bad); err != nil {
		t.Fatalf("create: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- e.Teardown("9901") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("teardown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("teardown blocked")
	}
}
