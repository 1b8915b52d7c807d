package entry

import (
	"sync"
	"time"
)

// Conversation is the in-progress entry state for one chat. It is owned
// exclusively by the Store; callers only touch it inside Update mutators
// while the chat's lock is held.
type Conversation struct {
	ChatID    int64
	Kind      Kind
	StepIndex int
	Fields    map[string]string
	CreatedAt time.Time
}

// CurrentSpec returns the field spec for the conversation's current step.
// ok is false once every step has been collected.
func (c *Conversation) CurrentSpec() (FieldSpec, bool) {
	flow := Flow(c.Kind)
	if c.StepIndex < 0 || c.StepIndex >= len(flow) {
		return FieldSpec{}, false
	}
	return flow[c.StepIndex], true
}

// Complete reports whether every step of the flow has been collected.
func (c *Conversation) Complete() bool {
	return c.StepIndex >= len(Flow(c.Kind))
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

// Store holds active conversations keyed by chat. All access to a given
// chat's state is serialized through a per-chat lock, in lock acquisition
// order; operations on distinct chats proceed in parallel.
type Store struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
	convs map[int64]*Conversation
}

// NewStore constructs an empty in-memory conversation store.
func NewStore() *Store {
	return &Store{
		locks: make(map[int64]*chatLock),
		convs: make(map[int64]*Conversation),
	}
}

func (s *Store) acquire(chatID int64) *chatLock {
	s.mu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &chatLock{}
		s.locks[chatID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Store) release(chatID int64, l *chatLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, chatID)
	}
	s.mu.Unlock()
}

// Create inserts a new conversation for the chat. It fails with ErrConflict
// when a conversation is already active; the existing one is left untouched.
func (s *Store) Create(chatID int64, conv *Conversation) error {
	l := s.acquire(chatID)
	defer s.release(chatID, l)

	s.mu.Lock()
	_, exists := s.convs[chatID]
	if !exists {
		s.convs[chatID] = conv
	}
	s.mu.Unlock()

	if exists {
		return ErrConflict
	}
	return nil
}

// Update runs fn against the chat's conversation under its lock. The mutator
// reports whether the entry should be removed afterwards (regardless of its
// error). Update fails with ErrNoActiveConversation when no state exists.
func (s *Store) Update(chatID int64, fn func(conv *Conversation) (remove bool, err error)) error {
	l := s.acquire(chatID)
	defer s.release(chatID, l)

	s.mu.Lock()
	conv := s.convs[chatID]
	s.mu.Unlock()

	if conv == nil {
		return ErrNoActiveConversation
	}

	remove, err := fn(conv)
	if remove {
		s.mu.Lock()
		delete(s.convs, chatID)
		s.mu.Unlock()
	}
	return err
}

// Get returns a snapshot copy of the chat's conversation, if any.
func (s *Store) Get(chatID int64) (Conversation, bool) {
	l := s.acquire(chatID)
	defer s.release(chatID, l)

	s.mu.Lock()
	conv := s.convs[chatID]
	s.mu.Unlock()

	if conv == nil {
		return Conversation{}, false
	}
	snapshot := *conv
	snapshot.Fields = make(map[string]string, len(conv.Fields))
	for k, v := range conv.Fields {
		snapshot.Fields[k] = v
	}
	return snapshot, true
}

// Remove drops the chat's conversation. Removing an absent entry is a no-op.
func (s *Store) Remove(chatID int64) {
	l := s.acquire(chatID)
	defer s.release(chatID, l)

	s.mu.Lock()
	delete(s.convs, chatID)
	s.mu.Unlock()
}

// Len reports the number of active conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

// Expire removes conversations created before the cutoff and returns how
// many were dropped. Each candidate is re-checked under its chat lock so an
// in-flight event is never raced.
func (s *Store) Expire(cutoff time.Time) int {
	s.mu.Lock()
	candidates := make([]int64, 0)
	for chatID, conv := range s.convs {
		if conv.CreatedAt.Before(cutoff) {
			candidates = append(candidates, chatID)
		}
	}
	s.mu.Unlock()

	removed := 0
	for _, chatID := range candidates {
		l := s.acquire(chatID)
		s.mu.Lock()
		if conv, ok := s.convs[chatID]; ok && conv.CreatedAt.Before(cutoff) {
			delete(s.convs, chatID)
			removed++
		}
		s.mu.Unlock()
		s.release(chatID, l)
	}
	return removed
}
