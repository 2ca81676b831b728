package game

import "context"

// Persister is the durable side of the engine. Implementations must be safe
// for concurrent use; the engine never calls them with a session lock held.
type Persister interface {
	SaveSnapshot(ctx context.Context, sessionID string, blob []byte) error
	// LoadSnapshot returns ErrSnapshotNotFound when nothing was saved.
	LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error)
	RecordGameResult(ctx context.Context, result GameResult) error
	RecordPlayerStatistics(ctx context.Context, stats []PlayerResult) error
}

type GameResult struct {
	SessionID       string
	JoinCode        string
	WinnerAccountID string
	WinnerName      string
	TotalRounds     int
	DurationSeconds int
	PlayerCount     int
}

// PlayerResult is one account's outcome of a finished game.
type PlayerResult struct {
	AccountID string
	Username  string
	Won       bool
	Points    int
}

func gameResults(s *Session, durationSeconds int) (GameResult, []PlayerResult) {
	result := GameResult{
		SessionID:       s.ID,
		JoinCode:        s.JoinCode,
		TotalRounds:     s.TotalRounds,
		DurationSeconds: durationSeconds,
		PlayerCount:     len(s.Players),
	}
	if s.Winner != nil {
		result.WinnerAccountID = s.Winner.AccountID
		result.WinnerName = s.Winner.Username
	}
	stats := make([]PlayerResult, 0, len(s.Players))
	for _, p := range s.Players {
		if p.AccountID == "" {
			continue
		}
		stats = append(stats, PlayerResult{
			AccountID: p.AccountID,
			Username:  p.Username,
			Won:       s.Winner != nil && s.Winner.PlayerID == p.ID,
			Points:    p.Score,
		})
	}
	return result, stats
}
