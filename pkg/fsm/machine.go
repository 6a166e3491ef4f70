package fsm

import (
	"fmt"
	"sync"
	"time"
)

type State string
type Event string

// Listener observes a completed transition. Listeners run after the machine
// lock is released, so they may call back into the machine.
type Listener func(t Transition)

// Transition is one recorded state change.
type Transition struct {
	From  State
	To    State
	Event Event
	At    time.Time
}

type StateMachine struct {
	mu          sync.RWMutex
	current     State
	transitions map[State]map[Event]State
	terminal    map[State]bool
	listeners   []Listener
	history     []Transition
	now         func() time.Time
}

func New(initial State) *StateMachine {
	return &StateMachine{
		current:     initial,
		transitions: make(map[State]map[Event]State),
		terminal:    make(map[State]bool),
		now:         time.Now,
	}
}

func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

func (sm *StateMachine) AddTransition(from, to State, event Event) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.transitions[from]; !ok {
		sm.transitions[from] = make(map[Event]State)
	}
	sm.transitions[from][event] = to
}

// MarkTerminal declares states that accept no further events.
func (sm *StateMachine) MarkTerminal(states ...State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, s := range states {
		sm.terminal[s] = true
	}
}

// OnTransition registers a listener for every successful Fire.
func (sm *StateMachine) OnTransition(l Listener) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, l)
}

// Terminal reports whether the machine has reached a terminal state.
func (sm *StateMachine) Terminal() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.terminal[sm.current]
}

// History returns a copy of all transitions taken so far.
func (sm *StateMachine) History() []Transition {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]Transition, len(sm.history))
	copy(out, sm.history)
	return out
}

// Fire triggers a state transition. It is thread-safe.
func (sm *StateMachine) Fire(event Event) error {
	sm.mu.Lock()
	if sm.terminal[sm.current] {
		cur := sm.current
		sm.mu.Unlock()
		return fmt.Errorf("state %s is terminal, cannot handle %s", cur, event)
	}
	next, ok := sm.transitions[sm.current][event]
	if !ok {
		cur := sm.current
		sm.mu.Unlock()
		return fmt.Errorf("invalid transition from %s via %s", cur, event)
	}

	t := Transition{From: sm.current, To: next, Event: event, At: sm.now()}
	sm.current = next
	sm.history = append(sm.history, t)
	listeners := make([]Listener, len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	for _, l := range listeners {
		l(t)
	}
	return nil
}

// Personal.AI order the ending
