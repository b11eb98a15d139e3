package bot

import "sync"

// State is the conversation state of one identity.
type State int

const (
	// StateAwaitingHandle accepts free text as a handle to check.
	StateAwaitingHandle State = iota
	// StateTerminated ignores free text until /start.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingHandle:
		return "awaiting_handle"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type session struct {
	state      State
	generation uint64
}

// Sessions tracks conversation state per identity. An identity never seen
// before is in StateAwaitingHandle.
type Sessions struct {
	mu    sync.Mutex
	items map[int64]*session
}

// NewSessions constructs an empty session table.
func NewSessions() *Sessions {
	return &Sessions{items: make(map[int64]*session)}
}

func (s *Sessions) get(identity int64) *session {
	item, ok := s.items[identity]
	if !ok {
		item = &session{state: StateAwaitingHandle}
		s.items[identity] = item
	}
	return item
}

// State returns the current state and generation for identity.
func (s *Sessions) State(identity int64) (State, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.get(identity)
	return item.state, item.generation
}

// Start moves identity to StateAwaitingHandle.
func (s *Sessions) Start(identity int64) {
	s.mu.Lock()
	s.get(identity).state = StateAwaitingHandle
	s.mu.Unlock()
}

// Cancel moves identity to StateTerminated and invalidates in-flight work.
func (s *Sessions) Cancel(identity int64) {
	s.mu.Lock()
	item := s.get(identity)
	item.state = StateTerminated
	item.generation++
	s.mu.Unlock()
}

// Current reports whether generation is still the identity's latest.
func (s *Sessions) Current(identity int64, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(identity).generation == generation
}
