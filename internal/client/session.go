package client

import (
	"errors"
	"fmt"
	"sync"

	"budgettracker/internal/identity"
)

// State is where a Session sits in its sign-in lifecycle.
type State int

const (
	SignedOut State = iota
	SignedIn
	Refreshing
)

func (s State) String() string {
	switch s {
	case SignedOut:
		return "signed_out"
	case SignedIn:
		return "signed_in"
	case Refreshing:
		return "refreshing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrRefreshInProgress is returned when a refresh is requested while another one runs.
var ErrRefreshInProgress = errors.New("client: refresh already in progress")

// Listener receives every state change together with the user the session
// belongs to, which is nil once signed out.
type Listener func(state State, user *identity.User)

// Session holds the client's view of who is signed in. The API stays the
// authority; the session only mirrors what the last response said.
type Session struct {
	mu        sync.Mutex
	state     State
	user      *identity.User
	nextID    int
	listeners map[int]Listener
}

// NewSession returns a signed-out session.
func NewSession() *Session {
	return &Session{listeners: make(map[int]Listener)}
}

// Current returns the state and user.
func (s *Session) Current() (State, *identity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.user
}

// Subscribe registers fn for state changes and returns a func that removes it.
func (s *Session) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// beginRefresh moves to Refreshing unless a refresh already runs.
func (s *Session) beginRefresh() error {
	s.mu.Lock()
	if s.state == Refreshing {
		s.mu.Unlock()
		return ErrRefreshInProgress
	}
	s.state = Refreshing
	user := s.user
	listeners := s.snapshot()
	s.mu.Unlock()

	notify(listeners, Refreshing, user)
	return nil
}

func (s *Session) signIn(user *identity.User) {
	s.set(SignedIn, user)
}

func (s *Session) signOut() {
	s.set(SignedOut, nil)
}

// set changes state and notifies listeners. Repeating SignedOut is a no-op.
func (s *Session) set(state State, user *identity.User) {
	s.mu.Lock()
	if state == SignedOut && s.state == SignedOut {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.user = user
	listeners := s.snapshot()
	s.mu.Unlock()

	notify(listeners, state, user)
}

func (s *Session) snapshot() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.listeners[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(listeners []Listener, state State, user *identity.User) {
	for _, fn := range listeners {
		fn(state, user)
	}
}
