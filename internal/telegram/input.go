package telegram

import "sync"

// inputState is what the next free-text message of an owner answers.
type inputState int

const (
	inputNone inputState = iota
	inputPhone
	inputTarget
)

type inputStates struct {
	mu     sync.Mutex
	states map[int64]inputState
}

func newInputStates() *inputStates {
	return &inputStates{states: make(map[int64]inputState)}
}

func (s *inputStates) set(ownerID int64, st inputState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == inputNone {
		delete(s.states, ownerID)
		return
	}
	s.states[ownerID] = st
}

// take returns the pending state and clears it; a prompt is answered once.
func (s *inputStates) take(ownerID int64) inputState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[ownerID]
	delete(s.states, ownerID)
	return st
}
