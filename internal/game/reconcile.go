package game

import "github.com/rs/zerolog/log"

// Disconnect marks a player unreachable. When nobody is left the session
// is torn down.
func (e *Engine) Disconnect(sessionID, playerID string) error {
	return e.disconnect(sessionID, playerID, nil)
}

// DisconnectChannel is Disconnect for transports: it only applies while ch
// is still the player's bound channel, so a stale connection closing after
// a reconnect does not knock the player out.
func (e *Engine) DisconnectChannel(sessionID, playerID string, ch Channel) error {
	return e.disconnect(sessionID, playerID, ch)
}

func (e *Engine) disconnect(sessionID, playerID string, ch Channel) error {
	_, err := e.store.Update(sessionID, func(sess *Session) error {
		p := sess.player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if ch != nil && sess.channels[playerID] != ch {
			return nil
		}
		delete(sess.channels, playerID)
		if !p.Connected {
			return nil
		}
		p.Connected = false
		e.broadcast(sess, EventPlayerDisconnected, PlayerNotice{PlayerID: p.ID, Username: p.Username})
		log.Info().Str("session_id", sess.ID).Str("player_id", p.ID).Msg("player disconnected")

		for _, other := range sess.Players {
			if other.Connected {
				return nil
			}
		}
		e.teardown(sess, "all players disconnected")
		return nil
	})
	return err
}

// Reconnect rebinds a player's channel and replays the current state to
// that player alone.
func (e *Engine) Reconnect(sessionID, playerID string, ch Channel) error {
	if ch == nil {
		return ErrPlayerNotFound
	}
	_, err := e.store.Update(sessionID, func(sess *Session) error {
		p := sess.player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		wasConnected := p.Connected
		p.Connected = true
		sess.channels[p.ID] = ch
		e.replay(sess, p)
		if !wasConnected {
			notice := PlayerNotice{PlayerID: p.ID, Username: p.Username}
			for _, other := range sess.Players {
				if other.ID != p.ID {
					e.send(sess, other.ID, EventPlayerReconnected, notice)
				}
			}
		}
		log.Info().Str("session_id", sess.ID).Str("player_id", p.ID).Bool("was_connected", wasConnected).Msg("player reconnected")
		return nil
	})
	return err
}

// replay sends p everything needed to resume where the phase logic expects
// it. The vote feed resumes from the persisted cursor, so a replay never
// skips or repeats a submission.
func (e *Engine) replay(sess *Session, p *Player) {
	e.send(sess, p.ID, EventGameState, sess.view())
	switch {
	case sess.Status == StatusFinished:
		e.send(sess, p.ID, EventGameRankings, FinalRankings(sess.Players))
	case sess.Status == StatusPlaying && sess.Round != nil && sess.Round.Phase == PhaseVoting:
		if p.HasVoted {
			e.send(sess, p.ID, EventVotingComplete, nil)
			return
		}
		e.deliverNext(sess, p)
	}
}
