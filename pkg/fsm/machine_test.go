package fsm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachine_ListenerMayFire(t *testing.T) {
	sm := New(State("initial"))
	sm.AddTransition(State("initial"), State("intermediate"), Event("first"))
	sm.AddTransition(State("intermediate"), State("final"), Event("second"))

	sm.OnTransition(func(tr Transition) {
		if tr.To == State("intermediate") {
			assert.NoError(t, sm.Fire(Event("second")))
		}
	})

	done := make(chan struct{})
	go func() {
		assert.NoError(t, sm.Fire(Event("first")))
		close(done)
	}()

	select {
	case <-done:
		assert.Equal(t, State("final"), sm.Current())
	case <-time.After(time.Second):
		t.Fatal("Fire did not return within 1 second")
	}
}

func TestStateMachine_Basic(t *testing.T) {
	sm := New(State("off"))
	sm.AddTransition(State("off"), State("on"), Event("push"))

	assert.Equal(t, State("off"), sm.Current())
	require.NoError(t, sm.Fire(Event("push")))
	assert.Equal(t, State("on"), sm.Current())

	h := sm.History()
	require.Len(t, h, 1)
	assert.Equal(t, State("off"), h[0].From)
	assert.Equal(t, Event("push"), h[0].Event)
}

func TestStateMachine_InvalidTransition(t *testing.T) {
	sm := New(State("start"))
	assert.Error(t, sm.Fire(Event("unknown")))
	assert.Empty(t, sm.History())
}

func TestStateMachine_TerminalRejectsEvents(t *testing.T) {
	sm := New(State("A"))
	sm.AddTransition(State("A"), State("done"), Event("finish"))
	sm.AddTransition(State("done"), State("A"), Event("restart"))
	sm.MarkTerminal(State("done"))

	require.NoError(t, sm.Fire(Event("finish")))
	assert.True(t, sm.Terminal())
	assert.Error(t, sm.Fire(Event("restart")))
	assert.Equal(t, State("done"), sm.Current())
}

func TestStateMachine_ListenerSeesNewState(t *testing.T) {
	sm := New(State("A"))
	sm.AddTransition(State("A"), State("B"), Event("go"))

	var seen State
	sm.OnTransition(func(Transition) { seen = sm.Current() })

	require.NoError(t, sm.Fire(Event("go")))
	assert.Equal(t, State("B"), seen)
}
