package bot

import (
	"sync"
	"time"
)

// State is a step of the snipe conversation.
type State int

const (
	StateIdle State = iota
	StateWaitingToken
	StateWaitingAmount
	StateWaitingSlippage
)

func (s State) String() string {
	switch s {
	case StateWaitingToken:
		return "WAITING_TOKEN"
	case StateWaitingAmount:
		return "WAITING_AMOUNT"
	case StateWaitingSlippage:
		return "WAITING_SLIPPAGE"
	default:
		return "IDLE"
	}
}

// Conversation is the in-progress snipe of one user.
type Conversation struct {
	State     State
	Mint      string
	Symbol    string
	AmountSOL float64
	UpdatedAt time.Time
}

// ConversationStore keeps one conversation per user and forgets them after ttl.
type ConversationStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[int64]Conversation
}

// NewConversationStore creates an empty store.
func NewConversationStore(ttl time.Duration) *ConversationStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ConversationStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[int64]Conversation),
	}
}

func (s *ConversationStore) expired(c Conversation) bool {
	return s.now().Sub(c.UpdatedAt) > s.ttl
}

// Get returns the live conversation of a user.
func (s *ConversationStore) Get(userID int64) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[userID]
	if !ok {
		return Conversation{}, false
	}
	if s.expired(c) {
		delete(s.items, userID)
		return Conversation{}, false
	}
	return c, true
}

// Set stores c as the user's conversation and refreshes its deadline.
func (s *ConversationStore) Set(userID int64, c Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.UpdatedAt = s.now()
	s.items[userID] = c
}

// Delete ends a conversation and reports whether one was live.
func (s *ConversationStore) Delete(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[userID]
	delete(s.items, userID)
	return ok && !s.expired(c)
}

// Take removes and returns the user's conversation if it is live and in state.
// Only one caller can take a given conversation.
func (s *ConversationStore) Take(userID int64, state State) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[userID]
	if !ok || c.State != state {
		return Conversation{}, false
	}
	delete(s.items, userID)
	if s.expired(c) {
		return Conversation{}, false
	}
	return c, true
}

// Sweep drops expired conversations and returns how many were removed.
func (s *ConversationStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.items {
		if s.expired(c) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored conversations, expired or not.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
