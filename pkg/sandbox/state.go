package sandbox

import (
	"fmt"
	"sync"
)

// State is a step of the process lifecycle
type State string

const (
	StatePending     State = "pending"
	StateSpawned     State = "spawned"
	StateSpawnFailed State = "spawn-failed"
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateTimedOut    State = "timed-out"
	StateKilled      State = "killed"
	StateReaped      State = "reaped"
)

var transitions = map[State][]State{
	StatePending:     {StateSpawned, StateSpawnFailed},
	StateSpawned:     {StateRunning},
	StateRunning:     {StateCompleted, StateTimedOut, StateKilled},
	StateTimedOut:    {StateKilled},
	StateCompleted:   {StateReaped},
	StateKilled:      {StateReaped},
	StateSpawnFailed: {StateReaped},
}

// lifecycle records the states one execution goes through. An illegal
// transition is a bug in the executor and panics.
type lifecycle struct {
	mu      sync.Mutex
	current State
	trace   []State
}

func newLifecycle() *lifecycle {
	return &lifecycle{current: StatePending, trace: []State{StatePending}}
}

func (l *lifecycle) to(next State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !canTransition(l.current, next) {
		panic(fmt.Sprintf("sandbox: illegal state transition %s -> %s", l.current, next))
	}
	l.current = next
	l.trace = append(l.trace, next)
}

func (l *lifecycle) state() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *lifecycle) states() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.trace...)
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
