package game

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	tickInterval      = time.Second
	backgroundTimeout = 10 * time.Second
)

// Settings are fixed for the lifetime of a session.
type Settings struct {
	TotalRounds       int
	SubmissionSeconds int
	VotingSeconds     int
	// ResultsSeconds of zero starts the next round as soon as scores are out.
	ResultsSeconds int
	MaxPlayers     int
}

func DefaultSettings() Settings {
	return Settings{
		TotalRounds:       DefaultTotalRounds,
		SubmissionSeconds: DefaultSubmissionSeconds,
		VotingSeconds:     DefaultVotingSeconds,
		ResultsSeconds:    DefaultResultsSeconds,
		MaxPlayers:        MaxPlayers,
	}
}

func (s Settings) withDefaults() Settings {
	if s.TotalRounds <= 0 {
		s.TotalRounds = DefaultTotalRounds
	}
	if s.SubmissionSeconds <= 0 {
		s.SubmissionSeconds = DefaultSubmissionSeconds
	}
	if s.VotingSeconds <= 0 {
		s.VotingSeconds = DefaultVotingSeconds
	}
	if s.ResultsSeconds < 0 {
		s.ResultsSeconds = 0
	}
	if s.MaxPlayers <= 0 || s.MaxPlayers > MaxPlayers {
		s.MaxPlayers = MaxPlayers
	}
	return s
}

// Picker returns an index in [0, n).
type Picker func(n int) int

// Seat identifies a player inside a session. Token authenticates later
// actions and reconnects.
type Seat struct {
	SessionID string `json:"gameId"`
	JoinCode  string `json:"passcode"`
	PlayerID  string `json:"playerId"`
	Token     string `json:"token"`
}

// Engine runs sessions held in a Store. Player actions and scheduler ticks
// both mutate a session only under its lock and converge on advance.
type Engine struct {
	store     *Store
	catalog   Catalog
	settings  Settings
	persister Persister
	sink      EventSink
	clock     clockwork.Clock
	pick      Picker
	sched     *Scheduler

	pending sync.WaitGroup
}

type Option func(*Engine)

func WithPersister(p Persister) Option {
	return func(e *Engine) { e.persister = p }
}

func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithPicker(pick Picker) Option {
	return func(e *Engine) { e.pick = pick }
}

func NewEngine(store *Store, catalog Catalog, settings Settings, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		catalog:  catalog,
		settings: settings.withDefaults(),
		clock:    clockwork.NewRealClock(),
		pick:     rand.IntN,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.catalog == nil {
		e.catalog = StaticCatalog{}
	}
	e.sched = NewScheduler(e.clock, tickInterval, e.tick)
	return e
}

// Close stops every countdown, closes the store and waits for pending
// background writes.
func (e *Engine) Close() {
	e.sched.Stop()
	sessions := e.store.Close()
	e.pending.Wait()
	log.Info().Int("sessions", len(sessions)).Msg("engine closed")
}

func (e *Engine) CreateSession(joinCode string, founder Player, ch Channel) (Seat, error) {
	sess, err := e.store.Create(joinCode, founder, e.settings, e.clock.Now())
	if err != nil {
		return Seat{}, err
	}
	var seat Seat
	_, err = e.store.Update(sess.ID, func(sess *Session) error {
		p := sess.Players[0]
		e.bind(sess, p, ch)
		seat = seatOf(sess, p)
		e.broadcastState(sess)
		e.emit(sess, LifecycleEvent{Type: LifecycleSessionCreated, PlayerID: p.ID})
		return nil
	})
	if err != nil {
		return Seat{}, err
	}
	log.Info().Str("session_id", seat.SessionID).Str("join_code", seat.JoinCode).Msg("session created")
	return seat, nil
}

func (e *Engine) JoinSession(joinCode string, player Player, ch Channel) (Seat, error) {
	sess, added, err := e.store.Join(joinCode, player)
	if err != nil {
		return Seat{}, err
	}
	var seat Seat
	_, err = e.store.Update(sess.ID, func(sess *Session) error {
		p := sess.player(added.ID)
		if p == nil {
			return ErrPlayerNotFound
		}
		e.bind(sess, p, ch)
		seat = seatOf(sess, p)
		e.broadcastState(sess)
		e.emit(sess, LifecycleEvent{Type: LifecyclePlayerJoined, PlayerID: p.ID})
		return nil
	})
	if err != nil {
		return Seat{}, err
	}
	log.Info().Str("session_id", seat.SessionID).Str("player_id", seat.PlayerID).Msg("player joined")
	return seat, nil
}

// StartSession flips a waiting session to playing and begins round one.
func (e *Engine) StartSession(idOrCode string) error {
	if len(e.catalog.Templates()) == 0 {
		return ErrEmptyCatalog
	}
	sess, err := e.store.Update(idOrCode, func(sess *Session) error {
		if sess.Status != StatusWaiting {
			return ErrAlreadyStarted
		}
		sess.Status = StatusPlaying
		sess.StartedAt = e.clock.Now()
		e.emit(sess, LifecycleEvent{Type: LifecycleGameStarted})
		e.beginRound(sess)
		// started under the lock so a racing Teardown cannot leave a task behind
		e.sched.Start(sess.ID)
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Str("session_id", sess.ID).Str("join_code", sess.JoinCode).Msg("session started")
	return nil
}

func (e *Engine) Submit(sessionID, playerID string, captions []string) error {
	_, err := e.store.Update(sessionID, func(sess *Session) error {
		r := sess.Round
		if r == nil {
			return ErrRoundMissing
		}
		if sess.Status != StatusPlaying || r.Phase != PhaseSubmitting {
			return ErrWrongPhase
		}
		p := sess.player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if p.HasSubmitted || r.submissionBy(playerID) != nil {
			return ErrAlreadySubmitted
		}
		normalized, err := normalizeCaptions(captions, r.RequiredFieldCount)
		if err != nil {
			return err
		}
		r.Submissions = append(r.Submissions, &Submission{
			PlayerID: p.ID,
			Username: p.Username,
			Captions: normalized,
			Votes:    []string{},
		})
		p.HasSubmitted = true
		e.broadcastState(sess)
		e.advance(sess, false, reasonManual)
		return nil
	})
	return err
}

// Vote records voterID's vote for the submission owned by ownerID and
// delivers the voter's next submission.
func (e *Engine) Vote(sessionID, voterID, ownerID string) error {
	_, err := e.store.Update(sessionID, func(sess *Session) error {
		r, voter, err := votingTurn(sess, voterID)
		if err != nil {
			return err
		}
		if voter.HasVoted {
			return ErrAlreadyVoted
		}
		if ownerID == voterID {
			return ErrSelfVote
		}
		sub := r.submissionBy(ownerID)
		if sub == nil || !IsEligible(sub, r.RequiredFieldCount) {
			return ErrSubmissionNotFound
		}
		if sub.hasVoter(voterID) {
			return ErrAlreadyVoted
		}
		sub.Votes = append(sub.Votes, voterID)
		e.deliverNext(sess, voter)
		e.advance(sess, false, reasonManual)
		return nil
	})
	return err
}

// Skip passes on the submission currently shown to voterID without voting.
func (e *Engine) Skip(sessionID, voterID string) error {
	_, err := e.store.Update(sessionID, func(sess *Session) error {
		r, voter, err := votingTurn(sess, voterID)
		if err != nil {
			return err
		}
		if voter.HasVoted {
			return ErrNothingToSkip
		}
		_, idx, ok := NextVotable(r.Submissions, r.RequiredFieldCount, voter.ID, voter.VoteCursor)
		if !ok {
			return ErrNothingToSkip
		}
		voter.VoteCursor = idx + 1
		e.deliverNext(sess, voter)
		e.advance(sess, false, reasonManual)
		return nil
	})
	return err
}

func votingTurn(sess *Session, voterID string) (*Round, *Player, error) {
	r := sess.Round
	if r == nil {
		return nil, nil, ErrRoundMissing
	}
	if sess.Status != StatusPlaying || r.Phase != PhaseVoting {
		return nil, nil, ErrWrongPhase
	}
	voter := sess.player(voterID)
	if voter == nil {
		return nil, nil, ErrVoterNotFound
	}
	return r, voter, nil
}

// Teardown removes a session regardless of its state and tells every
// connected player.
func (e *Engine) Teardown(idOrCode string) error {
	_, err := e.store.Update(idOrCode, func(sess *Session) error {
		e.teardown(sess, "session closed")
		return nil
	})
	return err
}

// State returns the public view of a session.
func (e *Engine) State(idOrCode string) (StateView, error) {
	var view StateView
	_, err := e.store.Update(idOrCode, func(sess *Session) error {
		view = sess.view()
		return nil
	})
	return view, err
}

func (e *Engine) List() []Summary {
	return e.store.List()
}

// Authenticate checks a player's token in constant time. Unknown players
// and bad tokens are indistinguishable to the caller.
func (e *Engine) Authenticate(sessionID, playerID, token string) error {
	_, err := e.store.Update(sessionID, func(sess *Session) error {
		p := sess.player(playerID)
		if p == nil || token == "" || subtle.ConstantTimeCompare([]byte(p.Token), []byte(token)) != 1 {
			return ErrPlayerNotFound
		}
		return nil
	})
	return err
}

// Rematch opens a new waiting session for the players of a finished one,
// on a fresh join code, and retires the finished session.
func (e *Engine) Rematch(sessionID string) (Seat, error) {
	var seat Seat
	_, err := e.store.Update(sessionID, func(old *Session) error {
		if old.Status != StatusFinished {
			return ErrNotFinished
		}
		players := make([]*Player, 0, len(old.Players))
		channels := make(map[string]Channel, len(old.channels))
		for _, p := range old.Players {
			next := newPlayer(Player{ID: p.ID, AccountID: p.AccountID, Username: p.Username, Token: p.Token})
			if ch, ok := old.channels[p.ID]; ok {
				channels[p.ID] = ch
			} else {
				next.Connected = false
			}
			players = append(players, next)
		}
		sess, err := e.createOnFreeCode(players, channels)
		if err != nil {
			return err
		}
		seat = Seat{SessionID: sess.ID, JoinCode: sess.JoinCode, PlayerID: players[0].ID, Token: players[0].Token}
		e.broadcast(old, EventRematchCreated, RematchNotice{SessionID: sess.ID, JoinCode: sess.JoinCode})
		old.channels = make(map[string]Channel)
		e.store.remove(old)
		e.emit(old, LifecycleEvent{Type: LifecycleSessionClosed, Reason: "rematch"})
		return nil
	})
	if err != nil {
		return Seat{}, err
	}
	_, err = e.store.Update(seat.SessionID, func(sess *Session) error {
		e.broadcastState(sess)
		e.emit(sess, LifecycleEvent{Type: LifecycleSessionCreated, PlayerID: seat.PlayerID, Reason: "rematch"})
		return nil
	})
	log.Info().Str("from_session_id", sessionID).Str("session_id", seat.SessionID).Str("join_code", seat.JoinCode).Msg("rematch created")
	return seat, err
}

// createOnFreeCode registers a session on a random unclaimed code.
func (e *Engine) createOnFreeCode(players []*Player, channels map[string]Channel) (*Session, error) {
	start := e.pick(10000)
	for i := 0; i < 10000; i++ {
		code := fmt.Sprintf("%04d", (start+i)%10000)
		if !e.store.CodeAvailable(code) {
			continue
		}
		sess, err := e.store.create(code, players, channels, e.settings, e.clock.Now())
		if errors.Is(err, ErrCodeInUse) {
			continue
		}
		return sess, err
	}
	return nil, ErrCodeInUse
}

func (e *Engine) bind(sess *Session, p *Player, ch Channel) {
	if ch == nil {
		p.Connected = false
		delete(sess.channels, p.ID)
		return
	}
	p.Connected = true
	sess.channels[p.ID] = ch
}

func seatOf(sess *Session, p *Player) Seat {
	return Seat{SessionID: sess.ID, JoinCode: sess.JoinCode, PlayerID: p.ID, Token: p.Token}
}

func (e *Engine) send(sess *Session, playerID, event string, payload any) {
	ch, ok := sess.channels[playerID]
	if !ok {
		return
	}
	if err := ch.Send(event, payload); err != nil {
		log.Debug().Err(err).Str("session_id", sess.ID).Str("player_id", playerID).Str("event", event).Msg("push failed")
	}
}

func (e *Engine) broadcast(sess *Session, event string, payload any) {
	for _, p := range sess.Players {
		e.send(sess, p.ID, event, payload)
	}
}

func (e *Engine) broadcastState(sess *Session) {
	e.broadcast(sess, EventGameState, sess.view())
}

// emit publishes a lifecycle event in the background.
func (e *Engine) emit(sess *Session, event LifecycleEvent) {
	if e.sink == nil {
		return
	}
	event.SessionID = sess.ID
	event.JoinCode = sess.JoinCode
	if event.Round == 0 {
		event.Round = sess.CurrentRound
	}
	event.At = e.clock.Now().UTC()
	e.background(sess.ID, "publish "+event.Type, func(ctx context.Context) error {
		return e.sink.Publish(ctx, event)
	})
}

// background runs a persistence call off the session lock. Failures are
// logged and never touch game state.
func (e *Engine) background(sessionID, op string, fn func(ctx context.Context) error) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Str("op", op).Msg("background write failed")
		}
	}()
}
