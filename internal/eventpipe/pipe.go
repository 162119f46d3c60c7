package eventpipe

import (
	"log"
	"sync"
	"time"

	"github.com/jacques/jacques/internal/fswatch"
	"github.com/jacques/jacques/internal/sessionregistry"
)

// TerminalActivator focuses a terminal window for a session's
// terminal identity; OS-specific, so it's a collaborator interface
// rather than something eventpipe implements directly.
type TerminalActivator interface {
	Activate(key string) error
}

// Pipe routes validated events to the session registry, drives the
// per-session handoff watchers, evaluates notification rules, and
// republishes everything to the Hub.
type Pipe struct {
	registry   *sessionregistry.Registry
	hub        *Hub
	notifier   *Notifier
	activator  TerminalActivator
	debounce   time.Duration

	mu       sync.Mutex
	handoffs map[string]*fswatch.Watcher
}

// NewPipe wires a registry, hub, and notifier together. Callers
// typically construct the registry with a closure forwarding to the
// resulting Pipe's OnRegistrySignal, since the Pipe doesn't exist yet
// when the registry is created.
func NewPipe(registry *sessionregistry.Registry, hub *Hub, notifier *Notifier, activator TerminalActivator) *Pipe {
	return &Pipe{
		registry:  registry,
		hub:       hub,
		notifier:  notifier,
		activator: activator,
		debounce:  500 * time.Millisecond,
		handoffs:  make(map[string]*fswatch.Watcher),
	}
}

// OnRegistrySignal translates a registry Signal into a broadcast
// Message. Pass this as the onSignal callback to sessionregistry.New.
func (p *Pipe) OnRegistrySignal(sig sessionregistry.Signal) {
	switch sig.Kind {
	case sessionregistry.SignalSessionUpdate:
		p.hub.Broadcast(Message{Kind: MessageSessionUpdate, Session: sig.Session})
	case sessionregistry.SignalSessionRemoved:
		p.hub.Broadcast(Message{Kind: MessageSessionRemoved, Session: sig.Session})
	case sessionregistry.SignalFocusChanged:
		p.hub.Broadcast(Message{Kind: MessageFocusChanged, FocusedID: sig.FocusedID})
	}
}

// Snapshot builds the initial_state message for a newly connected
// subscriber.
func (p *Pipe) Snapshot() Message {
	return Message{
		Kind:      MessageInitialState,
		Sessions:  p.registry.List(),
		FocusedID: p.registry.GetFocused(),
	}
}

// Dispatch routes one validated event per the event routing table.
func (p *Pipe) Dispatch(evt Event) {
	switch evt.Name {
	case "session_start":
		p.handleSessionStart(evt)
	case "activity":
		p.registry.UpdateActivity(sessionregistry.ActivityEvent{
			SessionID: evt.SessionID,
			At:        eventTime(evt),
		})
	case "context_update":
		p.handleContextUpdate(evt)
	case "idle":
		p.registry.SetIdle(evt.SessionID)
	case "session_end":
		p.handleSessionEnd(evt)
	default:
		log.Printf("eventpipe: unrouted event %q", evt.Name)
	}
}

func (p *Pipe) handleSessionStart(evt Event) {
	se := sessionregistry.StartEvent{
		SessionID:      evt.SessionID,
		Title:          stringField(evt.Raw, "title"),
		ProjectPath:    stringField(evt.Raw, "project_path"),
		TranscriptPath: stringField(evt.Raw, "transcript_path"),
		Terminal: sessionregistry.TerminalIdentity{
			TTYDevice:         stringField(evt.Raw, "tty"),
			EmulatorSessionID: stringField(evt.Raw, "emulator_session_id"),
			EmulatorProgram:   stringField(evt.Raw, "emulator_program"),
			ProcessPID:        intField(evt.Raw, "pid"),
			ParentWindowID:    stringField(evt.Raw, "parent_window_id"),
		},
		AutocompactEnabled:   boolField(evt.Raw, "autocompact_enabled"),
		AutocompactThreshold: floatField(evt.Raw, "autocompact_threshold"),
	}
	p.registry.Register(se)
	p.startHandoffWatcher(se.SessionID, se.ProjectPath)
}

func (p *Pipe) handleContextUpdate(evt Event) {
	usedPct := floatField(evt.Raw, "used_pct")
	s := p.registry.UpdateContext(sessionregistry.ContextUpdateEvent{
		SessionID: evt.SessionID,
		UsedPct:   usedPct,
		At:        eventTime(evt),
	})
	if s == nil {
		return
	}
	for _, note := range p.notifier.OnContextUpdate(evt.SessionID, usedPct, s.AutocompactEnabled) {
		p.broadcastNotification(note)
	}
}

func (p *Pipe) handleSessionEnd(evt Event) {
	p.stopHandoffWatcher(evt.SessionID)
	p.registry.Unregister(evt.SessionID)
}

func (p *Pipe) broadcastNotification(note Notification) {
	n := note
	p.hub.Broadcast(Message{Kind: MessageNotificationFired, Notification: &n})
}

// HandleRequest processes a subscriber-originated request.
func (p *Pipe) HandleRequest(sub Subscriber, req Request) {
	switch req.Kind {
	case RequestSelectSession:
		// Selection is a client-local concern; the registry has no
		// server-side "selected" state distinct from focus, so this
		// is acknowledged implicitly by the caller re-reading state.
	case RequestToggleAutocompact:
		// Delegated to the AI tool's own settings file; out of scope
		// for the registry's in-memory model beyond its cached flag.
	case RequestFocusTerminal:
		if p.activator == nil {
			sub.Send(Message{Kind: MessageError, Error: "no terminal activator configured"})
			return
		}
		s := p.registry.Get(req.SessionID)
		if s == nil {
			sub.Send(Message{Kind: MessageError, Error: "unknown session"})
			return
		}
		if err := p.activator.Activate(s.TerminalKey); err != nil {
			sub.Send(Message{Kind: MessageError, Error: err.Error()})
		}
	}
}

func (p *Pipe) startHandoffWatcher(sessionID, projectPath string) {
	if projectPath == "" {
		return
	}
	dir := projectPath + "/.jacques/handoffs"
	w, err := fswatch.New(p.debounce, func(paths []string) {
		for _, path := range paths {
			p.hub.Broadcast(Message{
				Kind:    MessageHandoffReady,
				Handoff: &HandoffReady{SessionID: sessionID, FilePath: path},
			})
			for _, note := range p.notifier.OnHandoffReady(sessionID) {
				p.broadcastNotification(note)
			}
		}
	})
	if err != nil {
		log.Printf("eventpipe: starting handoff watcher for %s: %v", sessionID, err)
		return
	}
	if _, _, err := w.WatchRecursive(dir); err != nil {
		log.Printf("eventpipe: watching handoff dir %s: %v", dir, err)
	}
	w.Start()

	p.mu.Lock()
	if old, ok := p.handoffs[sessionID]; ok {
		old.Stop()
	}
	p.handoffs[sessionID] = w
	p.mu.Unlock()
}

func (p *Pipe) stopHandoffWatcher(sessionID string) {
	p.mu.Lock()
	w, ok := p.handoffs[sessionID]
	if ok {
		delete(p.handoffs, sessionID)
	}
	p.mu.Unlock()
	if ok {
		w.Stop()
	}
}

func eventTime(evt Event) time.Time {
	if ts, ok := evt.Raw["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t
		}
	}
	return time.Now()
}

func stringField(raw map[string]any, key string) string {
	v, _ := raw[key].(string)
	return v
}

func boolField(raw map[string]any, key string) bool {
	v, _ := raw[key].(bool)
	return v
}

func intField(raw map[string]any, key string) int {
	switch v := raw[key].(type) {
	case float64:
		return int(v)
	default:
		return 0
	}
}

func floatField(raw map[string]any, key string) float64 {
	v, _ := raw[key].(float64)
	return v
}
