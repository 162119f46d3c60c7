package eventpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacques/jacques/internal/sessionregistry"
)

func newTestPipe() (*Pipe, *sessionregistry.Registry, *Hub) {
	hub := NewHub()
	var pipe *Pipe
	registry := sessionregistry.New(func(sig sessionregistry.Signal) {
		pipe.OnRegistrySignal(sig)
	})
	pipe = NewPipe(registry, hub, NewNotifier(DefaultNotifySettings()), nil)
	return pipe, registry, hub
}

func TestDispatchSessionStartRegistersSession(t *testing.T) {
	pipe, registry, _ := newTestPipe()

	pipe.Dispatch(Event{
		Name:      "session_start",
		SessionID: "s1",
		Raw: map[string]any{
			"event":        "session_start",
			"session_id":   "s1",
			"project_path": "/tmp/proj",
			"title":        "hello",
		},
	})

	s := registry.Get("s1")
	require.NotNil(t, s)
	assert.Equal(t, "hello", s.Title)
	assert.Equal(t, sessionregistry.StateActive, s.State)
}

func TestDispatchContextUpdateFiresNotification(t *testing.T) {
	pipe, registry, hub := newTestPipe()
	sub := &fakeSubscriber{}
	hub.Join(sub, Message{Kind: MessageInitialState})

	pipe.Dispatch(Event{Name: "session_start", SessionID: "s1", Raw: map[string]any{
		"event": "session_start", "session_id": "s1", "project_path": "/tmp/proj",
	}})
	pipe.Dispatch(Event{Name: "context_update", SessionID: "s1", Raw: map[string]any{
		"event": "context_update", "session_id": "s1", "used_pct": 40.0,
	}})
	pipe.Dispatch(Event{Name: "context_update", SessionID: "s1", Raw: map[string]any{
		"event": "context_update", "session_id": "s1", "used_pct": 60.0,
	}})

	s := registry.Get("s1")
	require.NotNil(t, s)
	assert.Equal(t, 60.0, s.UsedPct)

	var sawNotification bool
	for _, m := range sub.msgs {
		if m.Kind == MessageNotificationFired {
			sawNotification = true
		}
	}
	assert.True(t, sawNotification)
}

func TestDispatchSessionEndUnregisters(t *testing.T) {
	pipe, registry, _ := newTestPipe()
	pipe.Dispatch(Event{Name: "session_start", SessionID: "s1", Raw: map[string]any{
		"event": "session_start", "session_id": "s1",
	}})
	pipe.Dispatch(Event{Name: "session_end", SessionID: "s1", Raw: map[string]any{
		"event": "session_end", "session_id": "s1",
	}})

	assert.Nil(t, registry.Get("s1"))
}

func TestHandleRequestFocusTerminalWithoutActivatorErrors(t *testing.T) {
	pipe, registry, _ := newTestPipe()
	pipe.Dispatch(Event{Name: "session_start", SessionID: "s1", Raw: map[string]any{
		"event": "session_start", "session_id": "s1",
	}})
	require.NotNil(t, registry.Get("s1"))

	sub := &fakeSubscriber{}
	pipe.HandleRequest(sub, Request{Kind: RequestFocusTerminal, SessionID: "s1"})

	require.Len(t, sub.msgs, 1)
	assert.Equal(t, MessageError, sub.msgs[0].Kind)
}
