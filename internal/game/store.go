package game

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the session registry. It indexes every live session by id and
// by join code; both indexes always point at the same *Session. Codes of
// waiting or playing sessions are claimed; a finished session stays
// addressable until its code is claimed again. The registry lock is never
// held while a session lock is being acquired.
type Store struct {
	mu      sync.RWMutex
	open    bool
	byID    map[string]*Session
	byCode  map[string]*Session
	claimed map[string]struct{}
}

func NewStore() *Store {
	s := &Store{}
	s.Open()
	return s
}

// Open (re)initializes an empty registry.
func (s *Store) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return
	}
	s.open = true
	s.byID = make(map[string]*Session)
	s.byCode = make(map[string]*Session)
	s.claimed = make(map[string]struct{})
}

// Close empties the registry and returns the sessions it held. Sessions are
// marked closed so in-flight callers observe them as gone.
func (s *Store) Close() []*Session {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.byID))
	for _, sess := range s.byID {
		sessions = append(sessions, sess)
	}
	s.open = false
	s.byID = nil
	s.byCode = nil
	s.claimed = nil
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		sess.closed = true
		sess.mu.Unlock()
	}
	return sessions
}

// Create registers a new waiting session founded by founder. A code held by
// a finished session is released to the new one.
func (s *Store) Create(joinCode string, founder Player, settings Settings, now time.Time) (*Session, error) {
	if !ValidJoinCode(joinCode) {
		return nil, ErrInvalidCode
	}
	name, err := validateName(founder.Username)
	if err != nil {
		return nil, err
	}
	founder.Username = name
	return s.create(joinCode, []*Player{newPlayer(founder)}, nil, settings, now)
}

// create registers a waiting session with an already built roster. The
// first player is the founder.
func (s *Store) create(joinCode string, players []*Player, channels map[string]Channel, settings Settings, now time.Time) (*Session, error) {
	if !ValidJoinCode(joinCode) {
		return nil, ErrInvalidCode
	}
	settings = settings.withDefaults()
	if channels == nil {
		channels = make(map[string]Channel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrStoreClosed
	}
	if _, ok := s.claimed[joinCode]; ok {
		return nil, ErrCodeInUse
	}

	sess := &Session{
		ID:                uuid.NewString(),
		JoinCode:          joinCode,
		Players:           players,
		Status:            StatusWaiting,
		TotalRounds:       settings.TotalRounds,
		SubmissionSeconds: settings.SubmissionSeconds,
		VotingSeconds:     settings.VotingSeconds,
		ResultsSeconds:    settings.ResultsSeconds,
		MaxPlayers:        settings.MaxPlayers,
		CreatedAt:         now,
		channels:          channels,
	}
	s.byID[sess.ID] = sess
	s.byCode[joinCode] = sess
	s.claimed[joinCode] = struct{}{}
	return sess, nil
}

// Join adds player to the waiting session addressed by joinCode.
func (s *Store) Join(joinCode string, player Player) (*Session, *Player, error) {
	name, err := validateName(player.Username)
	if err != nil {
		return nil, nil, err
	}
	player.Username = name
	var added *Player
	sess, err := s.Update(joinCode, func(sess *Session) error {
		if sess.Status != StatusWaiting {
			return ErrAlreadyStarted
		}
		if len(sess.Players) >= sess.MaxPlayers {
			return ErrSessionFull
		}
		if player.AccountID != "" {
			for _, p := range sess.Players {
				if p.AccountID == player.AccountID {
					return ErrAlreadyJoined
				}
			}
		}
		added = newPlayer(player)
		sess.Players = append(sess.Players, added)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, added, nil
}

// Insert registers an externally built session, e.g. one rehydrated from a
// snapshot. A finished session whose code has been claimed since is only
// addressable by id.
func (s *Store) Insert(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrStoreClosed
	}
	if _, ok := s.byID[sess.ID]; ok {
		return ErrCodeInUse
	}
	_, claimed := s.claimed[sess.JoinCode]
	if claimed && sess.Status != StatusFinished {
		return ErrCodeInUse
	}
	if sess.channels == nil {
		sess.channels = make(map[string]Channel)
	}
	s.byID[sess.ID] = sess
	if !claimed {
		s.byCode[sess.JoinCode] = sess
	}
	if sess.Status != StatusFinished {
		s.claimed[sess.JoinCode] = struct{}{}
	}
	return nil
}

// Get resolves a session by id or join code.
func (s *Store) Get(idOrCode string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.byID[idOrCode]; ok {
		return sess, true
	}
	sess, ok := s.byCode[idOrCode]
	return sess, ok
}

// Update runs fn with the session's lock held. fn is the only place session
// state may be mutated.
func (s *Store) Update(idOrCode string, fn func(sess *Session) error) (*Session, error) {
	sess, ok := s.Get(idOrCode)
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, ErrSessionNotFound
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// remove drops sess from both indexes. The caller holds sess.mu.
func (s *Store) remove(sess *Session) {
	s.mu.Lock()
	if s.byID[sess.ID] == sess {
		delete(s.byID, sess.ID)
	}
	if s.byCode[sess.JoinCode] == sess {
		delete(s.byCode, sess.JoinCode)
		delete(s.claimed, sess.JoinCode)
	}
	s.mu.Unlock()
	sess.closed = true
}

// release frees the join code of a finished session. The caller holds
// sess.mu.
func (s *Store) release(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byCode[sess.JoinCode] == sess {
		delete(s.claimed, sess.JoinCode)
	}
}

// CodeAvailable reports whether code could be used for a new session.
func (s *Store) CodeAvailable(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, claimed := s.claimed[code]
	return s.open && !claimed
}

func (s *Store) List() []Summary {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.byID))
	for _, sess := range s.byID {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	list := make([]Summary, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		list = append(list, sess.summary())
		sess.mu.Unlock()
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].JoinCode < list[j].JoinCode
	})
	return list
}

func newPlayer(p Player) *Player {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Token == "" {
		p.Token = uuid.NewString()
	}
	p.Connected = true
	p.Score = 0
	p.HasSubmitted = false
	p.HasVoted = false
	p.VoteCursor = 0
	p.WinStreak = 0
	return &p
}
