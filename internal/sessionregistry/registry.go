package sessionregistry

import (
	"sync"
	"time"
)

// Signal is emitted on every mutation a subscriber needs to observe.
type Signal struct {
	Kind           SignalKind
	Session        *Session // nil for focus_changed with no focused session
	FocusedID      string
}

type SignalKind string

const (
	SignalSessionUpdate  SignalKind = "session_update"
	SignalSessionRemoved SignalKind = "session_removed"
	SignalFocusChanged   SignalKind = "focus_changed"
)

// Registry is the process-wide singleton session store. All mutation
// paths go through its typed methods — no ambient mutation, per
// the "global mutable state" design note.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	terminalKeys map[string]string // terminalKey -> sessionID, live only
	focusedID string

	onSignal func(Signal)
}

// New constructs an empty Registry. onSignal is called for every
// registry mutation; pass nil to ignore (tests may want this).
func New(onSignal func(Signal)) *Registry {
	if onSignal == nil {
		onSignal = func(Signal) {}
	}
	return &Registry{
		sessions:     make(map[string]*Session),
		terminalKeys: make(map[string]string),
		onSignal:     onSignal,
	}
}

// Register implements register(evt): creates or
// replaces by sessionId. Initial state is active. Handles the
// auto-registration race: a synthesized session from a prior
// ContextUpdate is completed in place, preserving its id and
// registeredAt.
func (r *Registry) Register(evt StartEvent) *Session {
	r.mu.Lock()

	now := time.Now()
	existing, hadSynthetic := r.sessions[evt.SessionID]

	s := &Session{
		SessionID:            evt.SessionID,
		Title:                evt.Title,
		ProjectPath:          evt.ProjectPath,
		TranscriptPath:       evt.TranscriptPath,
		Terminal:             evt.Terminal,
		State:                StateActive,
		RegisteredAt:         now,
		LastActivityAt:       now,
		AutocompactEnabled:   evt.AutocompactEnabled,
		AutocompactThreshold: evt.AutocompactThreshold,
	}
	if hadSynthetic {
		s.RegisteredAt = existing.RegisteredAt
		s.UsedPct = existing.UsedPct
		s.LastActivityAt = existing.LastActivityAt
	}

	key := deriveTerminalKey(s.Terminal, s.SessionID)
	if owner, collides := r.terminalKeys[key]; collides && owner != s.SessionID {
		key = disambiguate(key, s.SessionID)
	}
	s.TerminalKey = key
	r.terminalKeys[key] = s.SessionID
	r.sessions[s.SessionID] = s

	focusChanged := r.maybeFocusOnRegister(s)
	focusedID := r.focusedID

	r.mu.Unlock()
	r.emitUpdate(s, focusChanged, focusedID)
	return s
}

// registerDiscovered creates a session from the startup scan with a
// DISCOVERED: prefixed terminal key startup
// discovery. A later real session_start for the same id replaces the
// terminalKey and preserves the id.
func (r *Registry) registerDiscovered(sessionID, projectPath, transcriptPath string) *Session {
	r.mu.Lock()
	now := time.Now()
	s := &Session{
		SessionID:      sessionID,
		ProjectPath:    projectPath,
		TranscriptPath: transcriptPath,
		State:          StateActive,
		RegisteredAt:   now,
		LastActivityAt: now,
		Discovered:     true,
		TerminalKey:    "DISCOVERED:" + sessionID,
	}
	r.sessions[sessionID] = s
	r.terminalKeys[s.TerminalKey] = sessionID
	focusChanged := r.maybeFocusOnRegister(s)
	focusedID := r.focusedID
	r.mu.Unlock()
	r.emitUpdate(s, focusChanged, focusedID)
	return s
}

func (r *Registry) maybeFocusOnRegister(s *Session) bool {
	if r.focusedID == "" {
		return r.setFocusLocked(s.SessionID)
	}
	if focused, ok := r.sessions[r.focusedID]; ok && focused.State == StateIdle {
		return r.setFocusLocked(s.SessionID)
	}
	return false
}

// UpdateActivity implements : activity transitions idle
// or active to working; repeated activity while already working just
// refreshes lastActivityAt. The synthesized-session race is handled
// the same way as Register for context_update arriving first.
func (r *Registry) UpdateActivity(evt ActivityEvent) {
	r.mu.Lock()
	s, ok := r.sessions[evt.SessionID]
	if !ok {
		s = &Session{SessionID: evt.SessionID, State: StateActive, RegisteredAt: evt.At}
		r.sessions[evt.SessionID] = s
	}
	s.State = StateWorking
	s.LastActivityAt = evt.At
	focusChanged := r.setFocusLocked(s.SessionID)
	focusedID := r.focusedID
	r.mu.Unlock()
	r.emitUpdate(s, focusChanged, focusedID)
}

// UpdateContext implements updateContext(evt): refreshes
// metrics without changing state. Synthesizes a minimal session if
// none is registered yet (the auto-registration race).
func (r *Registry) UpdateContext(evt ContextUpdateEvent) *Session {
	r.mu.Lock()
	s, ok := r.sessions[evt.SessionID]
	if !ok {
		s = &Session{
			SessionID:      evt.SessionID,
			State:          StateActive,
			RegisteredAt:   evt.At,
			LastActivityAt: evt.At,
		}
		r.sessions[evt.SessionID] = s
	}
	s.UsedPct = evt.UsedPct
	var focusChanged bool
	if s.State == StateWorking {
		focusChanged = r.setFocusLocked(s.SessionID)
	}
	focusedID := r.focusedID
	r.mu.Unlock()
	r.emitUpdate(s, focusChanged, focusedID)
	return s
}

// SetIdle implements setIdle: explicit transition to
// idle from any state.
func (r *Registry) SetIdle(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	s.State = StateIdle
	r.mu.Unlock()
	r.emitUpdate(s, false, "")
}

// Unregister implements unregister: idempotent removal,
// with focus handed to the most-recently-active remaining session.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sessionID)
	delete(r.terminalKeys, s.TerminalKey)

	wasFocused := r.focusedID == sessionID
	focusChanged := false
	if wasFocused {
		r.focusedID = ""
		focusChanged = true
		if next := r.mostRecentlyActiveLocked(); next != "" {
			r.setFocusLocked(next)
		}
	}
	focusedID := r.focusedID
	r.mu.Unlock()

	cp := *s
	r.onSignal(Signal{Kind: SignalSessionRemoved, Session: &cp})
	if focusChanged {
		r.onSignal(Signal{Kind: SignalFocusChanged, FocusedID: focusedID})
	}
}

func (r *Registry) mostRecentlyActiveLocked() string {
	var bestID string
	var bestTime time.Time
	for id, s := range r.sessions {
		if bestID == "" || s.LastActivityAt.After(bestTime) {
			bestID = id
			bestTime = s.LastActivityAt
		}
	}
	return bestID
}

// setFocusLocked must be called with mu held and returns true if the
// focused id actually changed, so callers can emit focus_changed
// after releasing the lock.
func (r *Registry) setFocusLocked(sessionID string) bool {
	if r.focusedID == sessionID {
		return false
	}
	r.focusedID = sessionID
	return true
}

// emitUpdate signals a session_update for s, plus a focus_changed if
// one happened, copying s first: onSignal runs after mu is released,
// so the signal must not carry the live *Session a later mutation
// could rewrite out from under an async subscriber.
func (r *Registry) emitUpdate(s *Session, focusChanged bool, focusedID string) {
	cp := *s
	r.onSignal(Signal{Kind: SignalSessionUpdate, Session: &cp})
	if focusChanged {
		r.onSignal(Signal{Kind: SignalFocusChanged, FocusedID: focusedID})
	}
}

// Get returns a copy of the session, or nil if not found.
func (r *Registry) Get(sessionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// List returns a snapshot of all live sessions.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

// GetFocused returns the focused session id, or "" if none.
func (r *Registry) GetFocused() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.focusedID
}
