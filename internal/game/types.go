package game

import (
	"sync"
	"time"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Phase string

const (
	PhaseSubmitting Phase = "submitting"
	PhaseVoting     Phase = "voting"
	PhaseResults    Phase = "results"
)

const (
	DefaultTotalRounds       = 5
	DefaultSubmissionSeconds = 60
	DefaultVotingSeconds     = 30
	DefaultResultsSeconds    = 6
	MaxPlayers               = 10
)

// Channel is a player's live push handle. Send must not block; transports
// are expected to queue or drop.
type Channel interface {
	Send(event string, payload any) error
}

// Session is one play-through from creation to finish. All fields are
// guarded by mu; callers reach a session through Store.Update.
type Session struct {
	mu sync.Mutex

	ID                string
	JoinCode          string
	Players           []*Player
	Status            Status
	CurrentRound      int
	TotalRounds       int
	SubmissionSeconds int
	VotingSeconds     int
	ResultsSeconds    int
	MaxPlayers        int
	Round             *Round
	Winner            *Winner
	CreatedAt         time.Time
	StartedAt         time.Time

	// live handles, keyed by player id; never serialized
	channels map[string]Channel
	closed   bool
}

// Player is the durable identity and score of a participant.
type Player struct {
	ID           string `json:"id"`
	AccountID    string `json:"accountId,omitempty"`
	Username     string `json:"username"`
	Token        string `json:"token"`
	Connected    bool   `json:"connected"`
	Score        int    `json:"score"`
	HasSubmitted bool   `json:"hasSubmitted"`
	HasVoted     bool   `json:"hasVoted"`
	VoteCursor   int    `json:"voteCursor"`
	WinStreak    int    `json:"winStreak"`
}

type Round struct {
	PromptID           string        `json:"promptId"`
	ContentRef         string        `json:"contentRef"`
	RequiredFieldCount int           `json:"requiredFieldCount"`
	Submissions        []*Submission `json:"submissions"`
	Phase              Phase         `json:"status"`
	TimeLeft           int           `json:"timeLeft"`
}

type Submission struct {
	PlayerID string   `json:"playerId"`
	Username string   `json:"username"`
	Captions []string `json:"captions"`
	Votes    []string `json:"votes"`
	// AutoFilled marks a placeholder added when the submission timer ran out.
	AutoFilled bool `json:"autoFilled,omitempty"`
}

type Winner struct {
	PlayerID  string `json:"playerId"`
	AccountID string `json:"accountId,omitempty"`
	Username  string `json:"username"`
	Score     int    `json:"score"`
}

// Summary is a lock-free copy of the fields listings need.
type Summary struct {
	ID       string `json:"gameId"`
	JoinCode string `json:"passcode"`
	Status   Status `json:"status"`
	Players  int    `json:"players"`
	Round    int    `json:"round"`
}

func (s *Session) player(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Round) submissionBy(playerID string) *Submission {
	if r == nil {
		return nil
	}
	for _, sub := range r.Submissions {
		if sub.PlayerID == playerID {
			return sub
		}
	}
	return nil
}

func (s *Submission) hasVoter(id string) bool {
	for _, v := range s.Votes {
		if v == id {
			return true
		}
	}
	return false
}

func (s *Session) summary() Summary {
	return Summary{
		ID:       s.ID,
		JoinCode: s.JoinCode,
		Status:   s.Status,
		Players:  len(s.Players),
		Round:    s.CurrentRound,
	}
}
