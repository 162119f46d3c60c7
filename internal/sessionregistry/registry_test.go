package sessionregistry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(sink *[]Signal) *Registry {
	return New(func(s Signal) {
		*sink = append(*sink, s)
	})
}

func TestRegisterFocusesFirstSession(t *testing.T) {
	var sig []Signal
	r := newTestRegistry(&sig)

	s := r.Register(StartEvent{SessionID: "s1", ProjectPath: "/p"})
	assert.Equal(t, StateActive, s.State)
	assert.Equal(t, "s1", r.GetFocused())

	var gotFocusChanged bool
	for _, ev := range sig {
		if ev.Kind == SignalFocusChanged && ev.FocusedID == "s1" {
			gotFocusChanged = true
		}
	}
	assert.True(t, gotFocusChanged, "expected a focus_changed signal to s1")
}

func TestRegisterSecondSessionDoesNotStealFocusFromActive(t *testing.T) {
	var sig []Signal
	r := newTestRegistry(&sig)

	r.Register(StartEvent{SessionID: "s1", ProjectPath: "/p"})
	r.Register(StartEvent{SessionID: "s2", ProjectPath: "/p"})

	assert.Equal(t, "s1", r.GetFocused(), "active session keeps focus on second register")
}

func TestRegisterStealsFocusFromIdleSession(t *testing.T) {
	var sig []Signal
	r := newTestRegistry(&sig)

	r.Register(StartEvent{SessionID: "s1", ProjectPath: "/p"})
	r.SetIdle("s1")
	r.Register(StartEvent{SessionID: "s2", ProjectPath: "/p"})

	assert.Equal(t, "s2", r.GetFocused())
}

func TestUpdateActivityTransitionsToWorkingAndFocuses(t *testing.T) {
	var sig []Signal
	r := newTestRegistry(&sig)

	r.Register(StartEvent{SessionID: "s1", ProjectPath: "/p"})
	r.SetIdle("s1")
	r.Register(StartEvent{SessionID: "s2", ProjectPath: "/p"})
	assert.Equal(t, "s2", r.GetFocused())

	r.UpdateActivity(ActivityEvent{SessionID: "s1", At: time.Now()})
	s1 := r.Get("s1")
	require.NotNil(t, s1)
	assert.Equal(t, StateWorking, s1.State)
	assert.Equal(t, "s1", r.GetFocused(), "working session takes focus")
}

func TestSetIdleDoesNotChangeFocus(t *testing.T) {
	var sig []Signal
	r := newTestRegistry(&sig)

	r.Register(StartEvent{SessionID: "s1", ProjectPath: "/p"})
	r.UpdateActivity(ActivityEvent{SessionID: "s1", At: time.Now()})
	r.SetIdle("s1")

	assert.Equal(t, "s1", r.GetFocused(), "setIdle never moves focus by itself")
	assert.Equal(t, StateIdle, r.Get("s1").State)
}

func TestUnregisterHandsFocusToMostRecentlyActive(t *testing.T) {
	var sig []Signal
	r := newTestRegistry(&sig)

	r.Register(StartEvent{SessionID: "s1", ProjectPath: "/p"})
	r.SetIdle("s1")
	r.Register(StartEvent{SessionID: "s2", ProjectPath: "/p"})
	r.UpdateActivity(ActivityEvent{SessionID: "s1", At: time.Now().Add(-time.Minute)})
	r.UpdateActivity(ActivityEvent{SessionID: "s2", At: time.Now()})

	r.Unregister("s2")
	assert.Equal(t, "s1", r.GetFocused())

	r.Unregister("s1")
	assert.Equal(t, "", r.GetFocused())
}

func TestUnregisterOfNonFocusedSessionLeavesFocusAlone(t *testing.T) {
	var sig []Signal
	r := newTestRegistry(&sig)

	r.Register(StartEvent{SessionID: "s1", ProjectPath: "/p"})
	r.Register(StartEvent{SessionID: "s2", ProjectPath: "/p"})
	assert.Equal(t, "s1", r.GetFocused())

	r.Unregister("s2")
	assert.Equal(t, "s1", r.GetFocused())
}

func TestContextUpdateBeforeSessionStartSynthesizesSession(t *testing.T) {
	var sig []Signal
	r := newTestRegistry(&sig)

	at := time.Now()
	r.UpdateContext(ContextUpdateEvent{SessionID: "s1", UsedPct: 42, At: at})

	s := r.Get("s1")
	require.NotNil(t, s)
	assert.Equal(t, 42.0, s.UsedPct)
	assert.Equal(t, at, s.RegisteredAt)

	later := r.Register(StartEvent{SessionID: "s1", ProjectPath: "/p", Title: "real title"})
	assert.Equal(t, "s1", later.SessionID)
	assert.Equal(t, at, later.RegisteredAt, "synthesized registeredAt is preserved")
	assert.Equal(t, 42.0, later.UsedPct, "synthesized usedPct is preserved")
	assert.Equal(t, "real title", later.Title)
}

func TestTerminalKeyDerivationPriority(t *testing.T) {
	assert.Equal(t, "EMULATOR:abc", deriveTerminalKey(TerminalIdentity{EmulatorSessionID: "abc", TTYDevice: "/dev/ttys001"}, "s1"))
	assert.Equal(t, "TTY:/dev/ttys001", deriveTerminalKey(TerminalIdentity{TTYDevice: "/dev/ttys001"}, "s1"))
	assert.Equal(t, "PID:123", deriveTerminalKey(TerminalIdentity{ProcessPID: 123}, "s1"))
	assert.Equal(t, "UNKNOWN:sessioni", deriveTerminalKey(TerminalIdentity{}, "sessionid-rest"))
}

func TestTerminalKeyCollisionGetsDisambiguated(t *testing.T) {
	var sig []Signal
	r := newTestRegistry(&sig)

	r.Register(StartEvent{SessionID: "s1", ProjectPath: "/p", Terminal: TerminalIdentity{TTYDevice: "/dev/ttys001"}})
	s2 := r.Register(StartEvent{SessionID: "s2", ProjectPath: "/p", Terminal: TerminalIdentity{TTYDevice: "/dev/ttys001"}})

	assert.Equal(t, "TTY:/dev/ttys001", r.Get("s1").TerminalKey)
	assert.NotEqual(t, "TTY:/dev/ttys001", s2.TerminalKey)
	assert.Contains(t, s2.TerminalKey, "TTY:/dev/ttys001:")
}

func TestDiscoverFindsRecentJSONLAndRegisters(t *testing.T) {
	dir := t.TempDir()
	projectDir := dir + "/projects/-Users-alice-app"
	require.NoError(t, os.MkdirAll(projectDir, 0o755))
	require.NoError(t, os.WriteFile(projectDir+"/session-1.jsonl", []byte("{}\n"), 0o644))

	lister := func(ctx context.Context, name string) ([]Process, error) {
		return []Process{{PID: 1, CWD: "/Users/alice/app"}}, nil
	}

	var sig []Signal
	r := newTestRegistry(&sig)
	err := RunDiscovery(context.Background(), r, dir, "claude", lister)
	require.NoError(t, err)

	s := r.Get("session-1")
	require.NotNil(t, s)
	assert.True(t, s.Discovered)
	assert.Contains(t, s.TerminalKey, "DISCOVERED:")
}
