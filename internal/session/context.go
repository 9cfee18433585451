package session

import (
	"sync"

	"github.com/arwaypoint/engine/internal/model"
)

// Context holds the active recording session
type Context struct {
	mu      sync.RWMutex
	session *model.Session
	active  bool
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		session: &model.Session{Label: "no session active"},
	}
}

// Begin installs s as the active session
func (sc *Context) Begin(s *model.Session) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.session = s
	sc.active = true
}

// Current returns the session and whether one is active
func (sc *Context) Current() (*model.Session, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.session, sc.active
}

// End deactivates the running session and returns it
func (sc *Context) End() (*model.Session, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if !sc.active {
		return nil, false
	}
	sc.active = false
	return sc.session, true
}
