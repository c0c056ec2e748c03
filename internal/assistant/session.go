package assistant

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Vovarama1992/notebot/internal/ai"
)

// PendingConfirmation is a destructive action waiting for a yes/no reply.
type PendingConfirmation struct {
	Action     Kind
	Topic      string
	NoteIDs    []int64
	Contents   []string
	NewContent string
}

func (p *PendingConfirmation) clone() *PendingConfirmation {
	if p == nil {
		return nil
	}
	c := *p
	c.NoteIDs = append([]int64(nil), p.NoteIDs...)
	c.Contents = append([]string(nil), p.Contents...)
	return &c
}

// Session is the mutable state of one conversation.
//
// turn serializes messages of the conversation for the whole round-trip.
// mu only guards the fields below it, so a reset never waits for a turn;
// generation tells a finishing turn that its state is gone.
type Session struct {
	id   string
	turn *semaphore.Weighted

	mu         sync.Mutex
	system     ai.Message
	history    []ai.Message
	pending    *PendingConfirmation
	generation uint64
	lastResult string
	lastActive time.Time
}

func newSession(id string, system ai.Message, now time.Time) *Session {
	return &Session{
		id:         id,
		turn:       semaphore.NewWeighted(1),
		system:     system,
		history:    []ai.Message{system},
		lastActive: now,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) state() (uint64, *PendingConfirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation, s.pending.clone()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// reset drops history and any pending confirmation and invalidates in-flight
// turns. It returns the new generation.
func (s *Session) reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = []ai.Message{s.system}
	s.pending = nil
	s.lastResult = ""
	s.generation++
	return s.generation
}

func (s *Session) takePending(gen uint64) *PendingConfirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return nil
	}
	p := s.pending
	s.pending = nil
	return p
}

func (s *Session) setPending(gen uint64, p *PendingConfirmation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.pending = p
	return true
}

func (s *Session) appendMessages(gen uint64, msgs ...ai.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.history = append(s.history, msgs...)
	return true
}

func (s *Session) recordResult(gen uint64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		s.lastResult = text
	}
}

// History returns a copy of the messages, system message first.
func (s *Session) History() []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ai.Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Pending() *PendingConfirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.clone()
}

func (s *Session) LastResult() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

// SessionStore owns the sessions of all conversations.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	system   ai.Message
	now      func() time.Time
}

func NewSessionStore(systemPrompt string) *SessionStore {
	return &SessionStore{
		sessions: map[string]*Session{},
		system:   ai.Message{Role: ai.RoleSystem, Text: systemPrompt},
		now:      time.Now,
	}
}

// Get returns the session for id, creating it on first use.
func (st *SessionStore) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		s = newSession(id, st.system, st.now())
		st.sessions[id] = s
	}
	return s
}

// Lookup returns the session for id without creating one.
func (st *SessionStore) Lookup(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Acquire takes the turn of the live session for id. A session evicted while
// the caller waited for its turn is released and the lookup starts over.
func (st *SessionStore) Acquire(ctx context.Context, id string) (*Session, error) {
	for {
		s := st.Get(id)
		if err := s.turn.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		st.mu.Lock()
		live := st.sessions[id] == s
		st.mu.Unlock()
		if live {
			return s, nil
		}
		s.turn.Release(1)
	}
}

// SystemHistory is the history of a conversation that has no session yet.
func (st *SessionStore) SystemHistory() []ai.Message {
	return []ai.Message{st.system}
}

// Reset clears the session for id. Unknown ids are left alone.
func (st *SessionStore) Reset(id string) {
	if s, ok := st.Lookup(id); ok {
		s.reset()
	}
}

// EvictIdle removes sessions inactive for longer than ttl. Sessions with a
// turn in flight are kept.
func (st *SessionStore) EvictIdle(ttl time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-ttl)
	evicted := 0
	for id, s := range st.sessions {
		if !s.idleSince().Before(cutoff) {
			continue
		}
		if !s.turn.TryAcquire(1) {
			continue
		}
		delete(st.sessions, id)
		s.reset()
		s.turn.Release(1)
		evicted++
	}
	return evicted
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
