package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meme-battle/internal/game"
)

// ErrStatisticsNotFound is returned for an account that has never finished a
// game.
var ErrStatisticsNotFound = fmt.Errorf("player statistics not found: %w", game.ErrNotFound)

// Repository is the Postgres side of the engine. It implements
// game.Persister and game.EventSink.
type Repository struct {
	conn *gorm.DB
}

var (
	_ game.Persister = (*Repository)(nil)
	_ game.EventSink = (*Repository)(nil)
)

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{conn: conn}
}

func (r *Repository) SaveSnapshot(ctx context.Context, sessionID string, blob []byte) error {
	record := GameSnapshot{
		SessionID: sessionID,
		JoinCode:  snapshotJoinCode(blob),
		State:     datatypes.JSON(blob),
	}
	return r.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"join_code", "state", "updated_at"}),
	}).Create(&record).Error
}

func (r *Repository) LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	var record GameSnapshot
	err := r.conn.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, game.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(record.State), nil
}

func (r *Repository) RecordGameResult(ctx context.Context, result game.GameResult) error {
	record := GameResult{
		SessionID:       result.SessionID,
		JoinCode:        result.JoinCode,
		WinnerAccountID: optionalString(result.WinnerAccountID),
		WinnerName:      result.WinnerName,
		TotalRounds:     result.TotalRounds,
		DurationSeconds: result.DurationSeconds,
		PlayerCount:     result.PlayerCount,
	}
	return r.conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
}

// RecordPlayerStatistics folds one finished game into each account's running
// totals in a single transaction.
func (r *Repository) RecordPlayerStatistics(ctx context.Context, stats []game.PlayerResult) error {
	if len(stats) == 0 {
		return nil
	}
	return r.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stat := range stats {
			record := statisticRow(stat)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "account_id"}},
				DoUpdates: clause.Assignments(statisticMerge),
			}).Create(&record).Error; err != nil {
				return fmt.Errorf("record statistics for %s: %w", stat.AccountID, err)
			}
		}
		return nil
	})
}

var statisticMerge = map[string]any{
	"username":      gorm.Expr("excluded.username"),
	"games_played":  gorm.Expr("player_statistics.games_played + excluded.games_played"),
	"games_won":     gorm.Expr("player_statistics.games_won + excluded.games_won"),
	"total_points":  gorm.Expr("player_statistics.total_points + excluded.total_points"),
	"highest_score": gorm.Expr("GREATEST(player_statistics.highest_score, excluded.highest_score)"),
	"updated_at":    gorm.Expr("excluded.updated_at"),
}

func statisticRow(stat game.PlayerResult) PlayerStatistic {
	won := 0
	if stat.Won {
		won = 1
	}
	return PlayerStatistic{
		AccountID:    stat.AccountID,
		Username:     stat.Username,
		GamesPlayed:  1,
		GamesWon:     won,
		TotalPoints:  stat.Points,
		HighestScore: stat.Points,
	}
}

// Publish stores a lifecycle event in the events table.
func (r *Repository) Publish(ctx context.Context, event game.LifecycleEvent) error {
	record, err := eventRow(event)
	if err != nil {
		return err
	}
	return r.conn.WithContext(ctx).Create(&record).Error
}

func eventRow(event game.LifecycleEvent) (Event, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Event{}, err
	}
	record := Event{
		SessionID: event.SessionID,
		PlayerID:  optionalString(event.PlayerID),
		Type:      event.Type,
		Payload:   datatypes.JSON(data),
		CreatedAt: event.At,
	}
	if event.Round > 0 {
		round := event.Round
		record.Round = &round
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return record, nil
}

// snapshotJoinCode pulls the join code out of an encoded session so it can be
// indexed next to the opaque blob.
func snapshotJoinCode(blob []byte) string {
	var head struct {
		JoinCode string `json:"joinCode"`
	}
	if err := json.Unmarshal(blob, &head); err != nil {
		return ""
	}
	return head.JoinCode
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
