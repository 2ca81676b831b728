package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const snapshotVersion = 1

// snapshot is the durable form of a session. Live channels are not part of
// it; they are rebound from a caller supplied map on decode.
type snapshot struct {
	Version           int       `json:"version"`
	ID                string    `json:"id"`
	JoinCode          string    `json:"joinCode"`
	Status            Status    `json:"status"`
	CurrentRound      int       `json:"currentRound"`
	TotalRounds       int       `json:"totalRounds"`
	SubmissionSeconds int       `json:"submissionSeconds"`
	VotingSeconds     int       `json:"votingSeconds"`
	ResultsSeconds    int       `json:"resultsSeconds"`
	MaxPlayers        int       `json:"maxPlayers"`
	Players           []Player  `json:"players"`
	Round             *Round    `json:"round,omitempty"`
	Winner            *Winner   `json:"winner,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	StartedAt         time.Time `json:"startedAt"`
}

// EncodeSnapshot serializes sess. The caller holds sess.mu.
func EncodeSnapshot(sess *Session) ([]byte, error) {
	snap := snapshot{
		Version:           snapshotVersion,
		ID:                sess.ID,
		JoinCode:          sess.JoinCode,
		Status:            sess.Status,
		CurrentRound:      sess.CurrentRound,
		TotalRounds:       sess.TotalRounds,
		SubmissionSeconds: sess.SubmissionSeconds,
		VotingSeconds:     sess.VotingSeconds,
		ResultsSeconds:    sess.ResultsSeconds,
		MaxPlayers:        sess.MaxPlayers,
		Players:           make([]Player, 0, len(sess.Players)),
		Round:             sess.Round,
		Winner:            sess.Winner,
		CreatedAt:         sess.CreatedAt,
		StartedAt:         sess.StartedAt,
	}
	for _, p := range sess.Players {
		snap.Players = append(snap.Players, *p)
	}
	return json.Marshal(snap)
}

// DecodeSnapshot rebuilds a session from blob. A player is connected iff
// channels holds a channel for them.
func DecodeSnapshot(blob []byte, channels map[string]Channel) (*Session, error) {
	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("decode snapshot: unsupported version %d", snap.Version)
	}
	if snap.ID == "" || !ValidJoinCode(snap.JoinCode) {
		return nil, fmt.Errorf("decode snapshot: %w", ErrInvalidCode)
	}
	if len(snap.Players) == 0 {
		return nil, fmt.Errorf("decode snapshot: %w", ErrPlayerNotFound)
	}
	sess := &Session{
		ID:                snap.ID,
		JoinCode:          snap.JoinCode,
		Status:            snap.Status,
		CurrentRound:      snap.CurrentRound,
		TotalRounds:       snap.TotalRounds,
		SubmissionSeconds: snap.SubmissionSeconds,
		VotingSeconds:     snap.VotingSeconds,
		ResultsSeconds:    snap.ResultsSeconds,
		MaxPlayers:        snap.MaxPlayers,
		Players:           make([]*Player, 0, len(snap.Players)),
		Round:             snap.Round,
		Winner:            snap.Winner,
		CreatedAt:         snap.CreatedAt,
		StartedAt:         snap.StartedAt,
		channels:          make(map[string]Channel),
	}
	for i := range snap.Players {
		p := snap.Players[i]
		ch := channels[p.ID]
		p.Connected = ch != nil
		if ch != nil {
			sess.channels[p.ID] = ch
		}
		sess.Players = append(sess.Players, &p)
	}
	return sess, nil
}

// SaveSnapshot encodes a session under its lock and hands the blob to the
// persister outside it. The blob is returned even when no persister is
// configured.
func (e *Engine) SaveSnapshot(ctx context.Context, idOrCode string) ([]byte, error) {
	var (
		blob []byte
		id   string
	)
	_, err := e.store.Update(idOrCode, func(sess *Session) error {
		var err error
		id = sess.ID
		blob, err = EncodeSnapshot(sess)
		return err
	})
	if err != nil {
		return nil, err
	}
	if e.persister == nil {
		return blob, nil
	}
	if err := e.persister.SaveSnapshot(ctx, id, blob); err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("save snapshot failed")
		return blob, err
	}
	log.Info().Str("session_id", id).Int("bytes", len(blob)).Msg("snapshot saved")
	return blob, nil
}

// RestoreSnapshot loads a saved session and registers it again.
func (e *Engine) RestoreSnapshot(ctx context.Context, sessionID string, channels map[string]Channel) (Summary, error) {
	if e.persister == nil {
		return Summary{}, ErrSnapshotNotFound
	}
	blob, err := e.persister.LoadSnapshot(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	return e.Restore(blob, channels)
}

// Restore registers the session encoded in blob. A playing session gets its
// countdown back; everyone connected receives the current state.
func (e *Engine) Restore(blob []byte, channels map[string]Channel) (Summary, error) {
	sess, err := DecodeSnapshot(blob, channels)
	if err != nil {
		return Summary{}, err
	}
	if err := e.store.Insert(sess); err != nil {
		return Summary{}, err
	}
	var summary Summary
	_, err = e.store.Update(sess.ID, func(sess *Session) error {
		summary = sess.summary()
		if sess.Status == StatusPlaying && sess.Round != nil {
			e.sched.Start(sess.ID)
		}
		for _, p := range sess.Players {
			if p.Connected {
				e.replay(sess, p)
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	log.Info().Str("session_id", summary.ID).Str("join_code", summary.JoinCode).Str("status", string(summary.Status)).Msg("session restored")
	return summary, nil
}
