package game

import (
	"context"

	"github.com/rs/zerolog/log"
)

const (
	reasonManual  = "manual"
	reasonTimeout = "timeout"
)

// phaseComplete reports whether every player has satisfied the current
// phase. It is the only advance condition; timer and player paths share it.
func phaseComplete(sess *Session) bool {
	r := sess.Round
	if r == nil {
		return false
	}
	switch r.Phase {
	case PhaseSubmitting:
		for _, p := range sess.Players {
			if !p.HasSubmitted {
				return false
			}
		}
		for _, sub := range r.Submissions {
			if IsEligible(sub, r.RequiredFieldCount) {
				return true
			}
		}
		return false
	case PhaseVoting:
		for _, p := range sess.Players {
			if !p.HasVoted {
				return false
			}
		}
		return true
	case PhaseResults:
		return r.TimeLeft <= 0
	}
	return false
}

// advance moves sess forward for as long as its current phase is complete.
// forced moves past the current phase once even when it is not, which is
// what an expired countdown does. The caller holds sess.mu.
func (e *Engine) advance(sess *Session, forced bool, reason string) {
	for sess.Status == StatusPlaying && sess.Round != nil {
		if !forced && !phaseComplete(sess) {
			return
		}
		forced = false
		from := sess.Round.Phase
		e.step(sess)
		to := Phase("")
		if sess.Round != nil {
			to = sess.Round.Phase
		}
		log.Info().
			Str("session_id", sess.ID).
			Str("join_code", sess.JoinCode).
			Int("round", sess.CurrentRound).
			Str("from", string(from)).
			Str("to", string(to)).
			Str("status", string(sess.Status)).
			Str("reason", reason).
			Msg("phase advanced")
	}
}

func (e *Engine) step(sess *Session) {
	switch sess.Round.Phase {
	case PhaseSubmitting:
		if filled := autoFillMissing(sess); len(filled) > 0 {
			log.Debug().Str("session_id", sess.ID).Strs("player_ids", filled).Msg("auto-filled missing submissions")
		}
		e.openVoting(sess)
	case PhaseVoting:
		e.closeVoting(sess)
	case PhaseResults:
		e.beginRound(sess)
	}
}

func (e *Engine) openVoting(sess *Session) {
	r := sess.Round
	r.Phase = PhaseVoting
	r.TimeLeft = sess.VotingSeconds
	for _, p := range sess.Players {
		p.HasVoted = false
		p.VoteCursor = 0
	}
	e.broadcastState(sess)
	for _, p := range sess.Players {
		e.deliverNext(sess, p)
	}
}

// deliverNext sends p the next submission in its feed, or marks p done.
func (e *Engine) deliverNext(sess *Session, p *Player) {
	r := sess.Round
	sub, idx, ok := NextVotable(r.Submissions, r.RequiredFieldCount, p.ID, p.VoteCursor)
	if idx > p.VoteCursor {
		p.VoteCursor = idx
	}
	if !ok {
		p.HasVoted = true
		e.send(sess, p.ID, EventVotingComplete, nil)
		return
	}
	e.send(sess, p.ID, EventVotingSubmission, r.votingView(sub))
}

// closeVoting scores the round once and either enters results or finishes
// the session after the last round.
func (e *Engine) closeVoting(sess *Session) {
	r := sess.Round
	prior := make(map[string]int, len(sess.Players))
	for _, p := range sess.Players {
		prior[p.ID] = p.Score
	}
	winner := roundWinner(r)
	first := firstReceived(r)
	for _, sub := range r.Submissions {
		p := sess.player(sub.PlayerID)
		if p == nil {
			continue
		}
		streak := 0
		if sub == winner {
			streak = p.WinStreak + 1
		}
		result := Score(sub, len(sess.Players), sub == first, wasLastPlace(prior, p.ID), streak)
		p.Score += result.Points
		e.send(sess, p.ID, EventScoreUpdate, ScoreUpdate{
			Points:     result.Points,
			Bonuses:    result.Bonuses,
			TotalScore: p.Score,
		})
	}
	for _, p := range sess.Players {
		if winner != nil && p.ID == winner.PlayerID {
			p.WinStreak++
		} else {
			p.WinStreak = 0
		}
	}
	r.Phase = PhaseResults
	r.TimeLeft = sess.ResultsSeconds

	scored := LifecycleEvent{Type: LifecycleRoundScored, PromptID: r.PromptID}
	if winner != nil {
		scored.PlayerID = winner.PlayerID
	}
	e.emit(sess, scored)

	if sess.CurrentRound >= sess.TotalRounds {
		e.finish(sess)
		return
	}
	e.broadcastState(sess)
}

// firstReceived is the earliest recorded submission. Placeholders are
// appended at the deadline, so it is only a placeholder when nobody sent
// anything.
func firstReceived(r *Round) *Submission {
	if len(r.Submissions) == 0 {
		return nil
	}
	return r.Submissions[0]
}

func (e *Engine) beginRound(sess *Session) {
	sess.CurrentRound++
	r := &Round{
		Submissions: []*Submission{},
		Phase:       PhaseSubmitting,
		TimeLeft:    sess.SubmissionSeconds,
	}
	if tmpl, ok := e.pickTemplate(); ok {
		r.PromptID = tmpl.ID
		r.ContentRef = tmpl.ContentRef
		r.RequiredFieldCount = tmpl.CaptionFields
	} else if prev := sess.Round; prev != nil {
		r.PromptID = prev.PromptID
		r.ContentRef = prev.ContentRef
		r.RequiredFieldCount = prev.RequiredFieldCount
	}
	sess.Round = r
	for _, p := range sess.Players {
		p.HasSubmitted = false
		p.HasVoted = false
		p.VoteCursor = 0
	}
	e.broadcastState(sess)
	e.emit(sess, LifecycleEvent{Type: LifecycleRoundStarted, PromptID: r.PromptID})
}

func (e *Engine) pickTemplate() (Template, bool) {
	templates := e.catalog.Templates()
	if len(templates) == 0 {
		return Template{}, false
	}
	return templates[e.pick(len(templates))], true
}

// finish ends the game: rankings go out, the countdown stops, the join code
// is released and results are written in the background.
func (e *Engine) finish(sess *Session) {
	sess.Status = StatusFinished
	rankings := FinalRankings(sess.Players)
	if len(rankings) > 0 {
		top := rankings[0]
		sess.Winner = &Winner{
			PlayerID:  top.PlayerID,
			AccountID: top.AccountID,
			Username:  top.Username,
			Score:     top.Score,
		}
	}
	e.sched.Cancel(sess.ID)
	e.store.release(sess)
	e.broadcastState(sess)
	e.broadcast(sess, EventGameRankings, rankings)

	finished := LifecycleEvent{Type: LifecycleGameFinished}
	if sess.Winner != nil {
		finished.PlayerID = sess.Winner.PlayerID
	}
	e.emit(sess, finished)

	if e.persister != nil {
		duration := int(e.clock.Since(sess.StartedAt).Seconds())
		result, stats := gameResults(sess, duration)
		e.background(sess.ID, "record game result", func(ctx context.Context) error {
			if err := e.persister.RecordGameResult(ctx, result); err != nil {
				return err
			}
			if len(stats) == 0 {
				return nil
			}
			return e.persister.RecordPlayerStatistics(ctx, stats)
		})
	}
	log.Info().Str("session_id", sess.ID).Str("join_code", sess.JoinCode).Int("players", len(sess.Players)).Msg("session finished")
}

// teardown removes sess from the registry and stops its countdown. The
// caller holds sess.mu.
func (e *Engine) teardown(sess *Session, reason string) {
	e.sched.Cancel(sess.ID)
	e.store.remove(sess)
	e.broadcast(sess, EventGameCleanup, Cleanup{Message: reason, SessionID: sess.ID})
	sess.channels = make(map[string]Channel)
	e.emit(sess, LifecycleEvent{Type: LifecycleSessionClosed, Reason: reason})
	log.Info().Str("session_id", sess.ID).Str("join_code", sess.JoinCode).Str("reason", reason).Msg("session torn down")
}

// tick is one countdown second for a session. It re-resolves the session
// by id, so a removed or replaced session stops the task quietly.
func (e *Engine) tick(ctx context.Context, sessionID string) bool {
	keep := false
	_, err := e.store.Update(sessionID, func(sess *Session) error {
		if ctx.Err() != nil || sess.ID != sessionID || sess.Status != StatusPlaying || sess.Round == nil {
			return nil
		}
		r := sess.Round
		if r.TimeLeft > 0 {
			r.TimeLeft--
		}
		e.broadcast(sess, EventTimeUpdate, TimeUpdate{TimeLeft: r.TimeLeft, Phase: r.Phase})
		if r.TimeLeft == 0 {
			e.advance(sess, true, reasonTimeout)
		}
		keep = sess.Status == StatusPlaying
		return nil
	})
	if err != nil {
		return false
	}
	return keep
}
