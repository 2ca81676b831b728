package game

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	e := newTestEngine(t, testSettings())
	ps := seatPlayers(t, e, "1234", "Ada", "Ben", "Cy")
	id := ps[0].seat.SessionID
	if err := e.StartSession(id); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, p := range ps {
		mustSubmit(t, e, p, "caption", "more")
	}
	if err := e.Vote(id, ps[0].seat.PlayerID, ps[2].seat.PlayerID); err != nil {
		t.Fatalf("vote: %v", err)
	}
	tickN(t, e, id, 1)

	blob, err := e.SaveSnapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	channels := map[string]Channel{}
	for _, p := range ps {
		channels[p.seat.PlayerID] = &recorder{}
	}
	restored, err := DecodeSnapshot(blob, channels)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	again, err := EncodeSnapshot(restored)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(blob, again) {
		t.Fatalf("expected identical snapshots\n%s\n%s", blob, again)
	}
	if restored.Round.Phase != PhaseVoting || restored.Round.TimeLeft != testSettings().VotingSeconds-1 {
		t.Fatalf("unexpected round %+v", restored.Round)
	}
	if got := restored.Round.submissionBy(ps[2].seat.PlayerID).Votes; len(got) != 1 || got[0] != ps[0].seat.PlayerID {
		t.Fatalf("unexpected votes %v", got)
	}
	for _, p := range restored.Players {
		if restored.channels[p.ID] != channels[p.ID] {
			t.Fatalf("expected channel rebound for %s", p.ID)
		}
	}
	if bytes.Contains(blob, []byte("recorder")) {
		t.Fatalf("snapshot must not carry live channels")
	}
}

func TestDecodeSnapshotConnectedFollowsChannels(t *testing.T) {
	e := newTestEngine(t, testSettings())
	ps := seatPlayers(t, e, "4321", "Ada", "Ben")
	blob, err := e.SaveSnapshot(context.Background(), "4321")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	sess, err := DecodeSnapshot(blob, map[string]Channel{ps[1].seat.PlayerID: &recorder{}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.Players[0].Connected || !sess.Players[1].Connected {
		t.Fatalf("expected only Ben connected, got %v/%v", sess.Players[0].Connected, sess.Players[1].Connected)
	}
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	for _, blob := range []string{"", "{", `{"version":99}`, `{"version":1,"id":"x","joinCode":"12"}`, `{"version":1,"id":"x","joinCode":"1234"}`} {
		if _, err := DecodeSnapshot([]byte(blob), nil); err == nil {
			t.Fatalf("expected error for %q", blob)
		}
	}
}

func TestRestoreSnapshotResumesCountdown(t *testing.T) {
	persister := newMemoryPersister()
	e := newTestEngine(t, testSettings(), WithPersister(persister))
	ps := seatPlayers(t, e, "6543", "Ada", "Ben")
	id := ps[0].seat.SessionID
	if err := e.StartSession(id); err != nil {
		t.Fatalf("start: %v", err)
	}
	mustSubmit(t, e, ps[0], "caption")
	if _, err := e.SaveSnapshot(context.Background(), id); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.Teardown(id); err != nil {
		t.Fatalf("teardown: %v", err)
	}

	fresh := &recorder{}
	summary, err := e.RestoreSnapshot(context.Background(), id, map[string]Channel{ps[0].seat.PlayerID: fresh})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if summary.ID != id || summary.JoinCode != "6543" || summary.Status != StatusPlaying {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !e.sched.Active(id) {
		t.Fatalf("expected countdown to resume")
	}
	if fresh.count(EventGameState) != 1 {
		t.Fatalf("expected state replay, got %v", fresh.names())
	}
	mustSubmit(t, e, ps[1], "another")
	view, err := e.State("6543")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if view.Round.Phase != PhaseVoting {
		t.Fatalf("expected restored session to keep playing, got %s", view.Round.Phase)
	}

	if _, err := e.RestoreSnapshot(context.Background(), "missing", nil); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected snapshot not found, got %v", err)
	}
	if _, err := e.RestoreSnapshot(context.Background(), id, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected live session to block restore, got %v", err)
	}
}

func TestSaveSnapshotFailureKeepsPlaying(t *testing.T) {
	persister := newMemoryPersister()
	persister.saveErr = errors.New("database down")
	e := newTestEngine(t, testSettings(), WithPersister(persister))
	ps := seatPlayers(t, e, "7654", "Ada", "Ben")
	id := ps[0].seat.SessionID
	if err := e.StartSession(id); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.SaveSnapshot(context.Background(), id); err == nil {
		t.Fatalf("expected save error to surface")
	}
	mustSubmit(t, e, ps[0], "still")
	mustSubmit(t, e, ps[1], "playing")
	view, err := e.State(id)
	if err != nil || view.Round.Phase != PhaseVoting {
		t.Fatalf("expected play to continue, got %v %+v", err, view.Round)
	}
}
