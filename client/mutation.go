package client

import (
	"fmt"
	"sync"
)

type MutationState int

const (
	MutationIdle MutationState = iota
	MutationPending
	MutationCommitted
	MutationRolledBack
	MutationSettled
)

func (s MutationState) String() string {
	switch s {
	case MutationIdle:
		return "idle"
	case MutationPending:
		return "pending"
	case MutationCommitted:
		return "committed"
	case MutationRolledBack:
		return "rolled_back"
	case MutationSettled:
		return "settled"
	default:
		return fmt.Sprintf("MutationState(%d)", int(s))
	}
}

func isAllowedMutationTransition(from, to MutationState) bool {
	switch from {
	case MutationIdle:
		return to == MutationPending
	case MutationPending:
		return to == MutationCommitted || to == MutationRolledBack
	case MutationCommitted, MutationRolledBack:
		return to == MutationSettled
	default:
		return false
	}
}

// Mutation tracks one write against the server. It holds the cache snapshot
// taken when it went pending so a failure can restore it.
type Mutation struct {
	Name string

	mu       sync.Mutex
	state    MutationState
	history  []MutationState
	snapshot Snapshot
	err      error
}

func newMutation(name string) *Mutation {
	return &Mutation{Name: name, history: []MutationState{MutationIdle}}
}

func (m *Mutation) transition(to MutationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !isAllowedMutationTransition(m.state, to) {
		return fmt.Errorf("mutation %s: disallowed transition %s -> %s", m.Name, m.state, to)
	}
	m.state = to
	m.history = append(m.history, to)
	return nil
}

func (m *Mutation) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History lists every state the mutation has been in, oldest first.
func (m *Mutation) History() []MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MutationState(nil), m.history...)
}

// Err is the server error that caused a rollback.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}
