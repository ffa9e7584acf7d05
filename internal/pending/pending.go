// Package pending tracks the one multi-step flow each user may be in.
package pending

import "sync"

type Kind int

const (
	Idle Kind = iota
	AwaitingDeleteIndex
	AwaitingClearConfirmation
	AwaitingArchiveSelection
	AwaitingGrantID
)

func (k Kind) String() string {
	switch k {
	case AwaitingDeleteIndex:
		return "awaiting_delete_index"
	case AwaitingClearConfirmation:
		return "awaiting_clear_confirmation"
	case AwaitingArchiveSelection:
		return "awaiting_archive_selection"
	case AwaitingGrantID:
		return "awaiting_grant_id"
	default:
		return "idle"
	}
}

// Action is the pending flow of a user. Archive is only set for
// AwaitingArchiveSelection and holds the file list shown to the user.
type Action struct {
	Kind    Kind
	Archive []string
}

// Store holds at most one Action per user.
type Store struct {
	mu      sync.Mutex
	actions map[int64]Action
}

func NewStore() *Store {
	return &Store{actions: make(map[int64]Action)}
}

// Set replaces whatever the user had pending. Setting Idle clears the slot.
func (s *Store) Set(userID int64, a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Kind == Idle {
		delete(s.actions, userID)
		return
	}
	s.actions[userID] = a
}

// Take returns the pending action and resets the slot to Idle.
func (s *Store) Take(userID int64) Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[userID]
	if !ok {
		return Action{Kind: Idle}
	}
	delete(s.actions, userID)
	return a
}
