package game

import (
	"context"
	"errors"
	"time"
)

// Events pushed to players.
const (
	EventGameState          = "game_state"
	EventVotingSubmission   = "voting_submission"
	EventVotingComplete     = "voting_complete"
	EventTimeUpdate         = "time_update"
	EventScoreUpdate        = "score_update"
	EventGameRankings       = "game_rankings"
	EventPlayerDisconnected = "player_disconnected"
	EventPlayerReconnected  = "player_reconnected"
	EventGameCleanup        = "game_cleanup"
	EventRematchCreated     = "rematch_created"
)

// Lifecycle event types delivered to an EventSink.
const (
	LifecycleSessionCreated = "session_created"
	LifecyclePlayerJoined   = "player_joined"
	LifecycleGameStarted    = "game_started"
	LifecycleRoundStarted   = "round_started"
	LifecycleRoundScored    = "round_scored"
	LifecycleGameFinished   = "game_finished"
	LifecycleSessionClosed  = "session_closed"
)

type LifecycleEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	JoinCode  string    `json:"join_code"`
	Round     int       `json:"round,omitempty"`
	PlayerID  string    `json:"player_id,omitempty"`
	PromptID  string    `json:"prompt_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// EventSink receives session lifecycle events. Publishing is best effort.
type EventSink interface {
	Publish(ctx context.Context, event LifecycleEvent) error
}

// MultiSink fans one event out to every sink.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, event LifecycleEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type StateView struct {
	SessionID    string       `json:"sessionId"`
	JoinCode     string       `json:"joinCode"`
	Status       Status       `json:"status"`
	CurrentRound int          `json:"currentRound"`
	TotalRounds  int          `json:"totalRounds"`
	Round        *RoundView   `json:"round,omitempty"`
	Players      []PlayerView `json:"players"`
	Winner       *Winner      `json:"winner,omitempty"`
}

type RoundView struct {
	PromptID           string           `json:"promptId"`
	ContentRef         string           `json:"contentRef"`
	RequiredFieldCount int              `json:"requiredFieldCount"`
	Phase              Phase            `json:"status"`
	TimeLeft           int              `json:"timeLeft"`
	Submissions        []SubmissionView `json:"submissions"`
}

type SubmissionView struct {
	PlayerID string   `json:"playerId"`
	Username string   `json:"username"`
	Captions []string `json:"captions,omitempty"`
	Votes    int      `json:"votes"`
}

type PlayerView struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Score        int    `json:"score"`
	Connected    bool   `json:"connected"`
	HasSubmitted bool   `json:"hasSubmitted"`
	HasVoted     bool   `json:"hasVoted"`
}

type VotingSubmission struct {
	Template   TemplateView   `json:"template"`
	Submission SubmissionView `json:"submission"`
}

type TemplateView struct {
	ID                 string `json:"id"`
	ContentRef         string `json:"url"`
	RequiredFieldCount int    `json:"captionFields"`
}

type TimeUpdate struct {
	TimeLeft int   `json:"timeLeft"`
	Phase    Phase `json:"phase"`
}

type ScoreUpdate struct {
	Points     int     `json:"points"`
	Bonuses    []Bonus `json:"bonuses"`
	TotalScore int     `json:"totalScore"`
}

type PlayerNotice struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
}

type Cleanup struct {
	Message   string `json:"message"`
	SessionID string `json:"gameId"`
}

type RematchNotice struct {
	SessionID string `json:"gameId"`
	JoinCode  string `json:"passcode"`
}

// view builds the public state of s. The caller holds s.mu. Captions are only revealed once voting
// has opened so submitters cannot copy each other. Ineligible submissions
// are hidden while voting.
func (s *Session) view() StateView {
	out := StateView{
		SessionID:    s.ID,
		JoinCode:     s.JoinCode,
		Status:       s.Status,
		CurrentRound: s.CurrentRound,
		TotalRounds:  s.TotalRounds,
		Winner:       s.Winner,
		Players:      make([]PlayerView, 0, len(s.Players)),
	}
	for _, p := range s.Players {
		out.Players = append(out.Players, PlayerView{
			ID:           p.ID,
			Username:     p.Username,
			Score:        p.Score,
			Connected:    p.Connected,
			HasSubmitted: p.HasSubmitted,
			HasVoted:     p.HasVoted,
		})
	}
	if r := s.Round; r != nil {
		rv := &RoundView{
			PromptID:           r.PromptID,
			ContentRef:         r.ContentRef,
			RequiredFieldCount: r.RequiredFieldCount,
			Phase:              r.Phase,
			TimeLeft:           r.TimeLeft,
			Submissions:        make([]SubmissionView, 0, len(r.Submissions)),
		}
		for _, sub := range r.Submissions {
			if r.Phase == PhaseVoting && !IsEligible(sub, r.RequiredFieldCount) {
				continue
			}
			sv := SubmissionView{PlayerID: sub.PlayerID, Username: sub.Username}
			if r.Phase != PhaseSubmitting {
				sv.Captions = sub.Captions
			}
			if r.Phase == PhaseResults {
				sv.Votes = len(sub.Votes)
			}
			rv.Submissions = append(rv.Submissions, sv)
		}
		out.Round = rv
	}
	return out
}

func (r *Round) votingView(sub *Submission) VotingSubmission {
	return VotingSubmission{
		Template: TemplateView{
			ID:                 r.PromptID,
			ContentRef:         r.ContentRef,
			RequiredFieldCount: r.RequiredFieldCount,
		},
		Submission: SubmissionView{
			PlayerID: sub.PlayerID,
			Username: sub.Username,
			Captions: sub.Captions,
		},
	}
}
