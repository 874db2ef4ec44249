// Package dialog tracks multi-step command conversations. A pending
// step is modeled as an explicit state with a transition table rather
// than ad-hoc per-update maps, so any front end can drive it.
package dialog

import (
	"sync"
	"time"
)

// State names the input a user is expected to provide next.
type State int

const (
	StateIdle State = iota
	StateAwaitingPlaylistName
	StateAwaitingShareToken
	StateAwaitingNewTitle
	StateAwaitingTrackNumber
	StateAwaitingCoverImage
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPlaylistName:
		return "awaiting_playlist_name"
	case StateAwaitingShareToken:
		return "awaiting_share_token"
	case StateAwaitingNewTitle:
		return "awaiting_new_title"
	case StateAwaitingTrackNumber:
		return "awaiting_track_number"
	case StateAwaitingCoverImage:
		return "awaiting_cover_image"
	}
	return "unknown"
}

// Event advances a pending conversation.
type Event int

const (
	EventInput Event = iota // the awaited value arrived
	EventCancel
	EventExpire
)

// transitions is the full table. Every awaiting state returns to idle
// on any event; the table exists so new multi-step flows stay explicit.
var transitions = map[State]map[Event]State{
	StateAwaitingPlaylistName: {EventInput: StateIdle, EventCancel: StateIdle, EventExpire: StateIdle},
	StateAwaitingShareToken:   {EventInput: StateIdle, EventCancel: StateIdle, EventExpire: StateIdle},
	StateAwaitingNewTitle:     {EventInput: StateIdle, EventCancel: StateIdle, EventExpire: StateIdle},
	StateAwaitingTrackNumber:  {EventInput: StateIdle, EventCancel: StateIdle, EventExpire: StateIdle},
	StateAwaitingCoverImage:   {EventInput: StateIdle, EventCancel: StateIdle, EventExpire: StateIdle},
}

// Next applies the transition table. Unknown combinations fall back
// to idle, which is always a safe place to land.
func Next(s State, e Event) State {
	if row, ok := transitions[s]; ok {
		if next, ok := row[e]; ok {
			return next
		}
	}
	return StateIdle
}

// Pending is one user's open conversation step.
type Pending struct {
	State      State
	PlaylistID int64
	StartedAt  time.Time
}

// Store holds pending conversation state per user with a TTL. Expired
// entries are dropped lazily on read.
type Store struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time

	pending map[int64]Pending
}

// NewStore builds a store whose entries expire after ttl. A zero ttl
// disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[int64]Pending),
	}
}

// Begin opens a conversation step for the user, replacing any prior
// pending step.
func (s *Store) Begin(userID int64, state State, playlistID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = Pending{State: state, PlaylistID: playlistID, StartedAt: s.now()}
}

// Get returns the user's pending step, or (Pending{}, false) when the
// user has none or it has expired.
func (s *Store) Get(userID int64) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[userID]
	if !ok {
		return Pending{}, false
	}
	if s.expired(p) {
		delete(s.pending, userID)
		return Pending{}, false
	}
	return p, true
}

// Resolve consumes the pending step when the awaited input arrives.
// Returns the step so the caller can act on it, and false when there
// was nothing pending.
func (s *Store) Resolve(userID int64) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[userID]
	if !ok || s.expired(p) {
		delete(s.pending, userID)
		return Pending{}, false
	}
	if Next(p.State, EventInput) == StateIdle {
		delete(s.pending, userID)
	}
	return p, true
}

// Cancel abandons the user's pending step. Returns false when there
// was nothing to cancel.
func (s *Store) Cancel(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[userID]
	if !ok || s.expired(p) {
		delete(s.pending, userID)
		return false
	}
	delete(s.pending, userID)
	return true
}

// Sweep removes every expired entry and reports how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, p := range s.pending {
		if s.expired(p) {
			delete(s.pending, id)
			dropped++
		}
	}
	return dropped
}

func (s *Store) expired(p Pending) bool {
	if s.ttl <= 0 {
		return false
	}
	return s.now().Sub(p.StartedAt) > s.ttl
}
