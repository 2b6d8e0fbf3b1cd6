package auth

import "sync"

// ViewKind names the two surfaces the gate routes between.
type ViewKind string

const (
	// ViewLogin is the public staff login surface.
	ViewLogin ViewKind = "login"
	// ViewEditor is the authenticated editor surface.
	ViewEditor ViewKind = "editor"
)

// SessionState is a live projection of the identity collaborator's session.
// It holds no credentials, only whether a session exists and its subject.
type SessionState struct {
	Authenticated bool
	Subject       string
}

// Unauthenticated is the initial gate state.
var Unauthenticated = SessionState{}

// Gate tracks the current session state and notifies subscribers on
// transitions. State changes are driven exclusively by push notifications
// from the identity collaborator (sign-in, sign-out, session restore); the
// gate never persists anything past process lifetime.
type Gate struct {
	mu          sync.Mutex
	current     SessionState
	subscribers map[int64]func(SessionState)
	nextID      int64
}

// NewGate constructs a Gate in the unauthenticated state.
func NewGate() *Gate {
	return &Gate{
		current:     Unauthenticated,
		subscribers: make(map[int64]func(SessionState)),
	}
}

// Current returns the gate's present state.
func (g *Gate) Current() SessionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Apply records a session state pushed by the identity collaborator.
// Subscribers are notified exactly once per transition; applying the state
// the gate already holds does not re-fire.
func (g *Gate) Apply(state SessionState) {
	g.mu.Lock()
	if g.current == state {
		g.mu.Unlock()
		return
	}
	g.current = state
	notify := make([]func(SessionState), 0, len(g.subscribers))
	for _, subscriber := range g.subscribers {
		notify = append(notify, subscriber)
	}
	g.mu.Unlock()

	for _, subscriber := range notify {
		subscriber(state)
	}
}

// Subscribe registers a transition listener and returns its remover.
// Listeners registered after a transition see only subsequent transitions.
func (g *Gate) Subscribe(listener func(SessionState)) func() {
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.subscribers[id] = listener
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.subscribers, id)
		g.mu.Unlock()
	}
}

// RedirectTarget implements the navigation policy between the two surfaces:
// an authenticated session on the login view moves to the editor, and a lost
// session in the editor moves back to login. Otherwise the view stands.
func RedirectTarget(state SessionState, view ViewKind) (ViewKind, bool) {
	switch {
	case state.Authenticated && view == ViewLogin:
		return ViewEditor, true
	case !state.Authenticated && view == ViewEditor:
		return ViewLogin, true
	default:
		return view, false
	}
}
