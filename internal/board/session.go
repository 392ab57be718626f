package board

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrBlockNotFound = errors.New("block not found")

// Session is the ordered set of blocks belonging to one dashboard session.
type Session struct {
	ID string

	mu       sync.Mutex
	order    []string
	blocks   map[string]*Block
	lastSeen time.Time
}

func NewSession(id string) *Session {
	return &Session{
		ID:       id,
		blocks:   make(map[string]*Block),
		lastSeen: time.Now(),
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
	s.mu.Unlock()
}

// LastSeen is when the session was last looked up.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Add appends a block with cfg and returns a snapshot of it.
func (s *Session) Add(cfg BlockConfig) Block {
	b := &Block{
		ID:        uuid.NewString(),
		Config:    cfg,
		UpdatedAt: time.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.ID] = b
	s.order = append(s.order, b.ID)
	return *b
}

func (s *Session) Get(id string) (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[id]
	if !ok {
		return Block{}, ErrBlockNotFound
	}
	return *b, nil
}

// List returns snapshots in creation order.
func (s *Session) List() []Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Block, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.blocks[id])
	}
	return out
}

// Update runs fn on the stored block under the session lock.
func (s *Session) Update(id string, fn func(b *Block) error) (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[id]
	if !ok {
		return Block{}, ErrBlockNotFound
	}
	next := *b
	if err := fn(&next); err != nil {
		return *b, err
	}
	next.UpdatedAt = time.Now()
	s.blocks[id] = &next
	return next, nil
}

func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[id]; !ok {
		return ErrBlockNotFound
	}
	delete(s.blocks, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Sessions maps browser session ids to their Session. Sessions idle for
// longer than the sweep window are dropped by Expire.
type Sessions struct {
	mu   sync.RWMutex
	data map[string]*Session
	now  func() time.Time
}

func NewSessions() *Sessions {
	return &Sessions{data: make(map[string]*Session), now: time.Now}
}

// Get returns the session for id, creating it on first use.
func (r *Sessions) Get(id string) *Session {
	now := r.now()

	// Fast path
	r.mu.RLock()
	s, ok := r.data[id]
	r.mu.RUnlock()
	if ok {
		s.touch(now)
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.data[id]; !ok {
		s = NewSession(id)
		s.lastSeen = now
		r.data[id] = s
		return s
	}
	s.touch(now)
	return s
}

// Lookup returns the session only if it already exists.
func (r *Sessions) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.data[id]
	r.mu.RUnlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

func (r *Sessions) Drop(id string) {
	r.mu.Lock()
	delete(r.data, id)
	r.mu.Unlock()
}

// Expire drops every session not seen within idle and returns how many went.
func (r *Sessions) Expire(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.RLock()
	var stale []string
	for id, s := range r.data {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	dropped := 0
	for _, id := range stale {
		r.mu.Lock()
		// re-check under the write lock; a request may have touched it
		if s, ok := r.data[id]; ok && s.LastSeen().Before(cutoff) {
			delete(r.data, id)
			dropped++
		}
		r.mu.Unlock()
	}
	return dropped
}

func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
