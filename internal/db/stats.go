package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// Standing is a player's aggregate record.
type Standing struct {
	AccountID    string  `json:"accountId"`
	Username     string  `json:"username"`
	GamesPlayed  int     `json:"gamesPlayed"`
	GamesWon     int     `json:"gamesWon"`
	TotalPoints  int     `json:"totalPoints"`
	HighestScore int     `json:"highestScore"`
	WinRate      float64 `json:"winRate"`
}

// Leaderboard lists the best accounts by wins, then by total points.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	var rows []PlayerStatistic
	err := r.conn.WithContext(ctx).
		Order("games_won DESC").
		Order("total_points DESC").
		Order("account_id").
		Limit(clampLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, standing(row))
	}
	return out, nil
}

func (r *Repository) PlayerStatistics(ctx context.Context, accountID string) (Standing, error) {
	var row PlayerStatistic
	err := r.conn.WithContext(ctx).Where("account_id = ?", accountID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Standing{}, ErrStatisticsNotFound
	}
	if err != nil {
		return Standing{}, err
	}
	return standing(row), nil
}

func standing(row PlayerStatistic) Standing {
	return Standing{
		AccountID:    row.AccountID,
		Username:     row.Username,
		GamesPlayed:  row.GamesPlayed,
		GamesWon:     row.GamesWon,
		TotalPoints:  row.TotalPoints,
		HighestScore: row.HighestScore,
		WinRate:      winRate(row.GamesWon, row.GamesPlayed),
	}
}

// winRate is wins over games as a percentage rounded to one decimal.
func winRate(won, played int) float64 {
	if played <= 0 {
		return 0
	}
	permille := (won*1000 + played/2) / played
	return float64(permille) / 10
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLeaderboardLimit
	case limit > maxLeaderboardLimit:
		return maxLeaderboardLimit
	default:
		return limit
	}
}
