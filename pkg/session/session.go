// Package session keeps session tokens scoped to a navigation context.
//
// A Holder is the single cell a workflow stores its bearer token in. Holders
// live in a Store, keyed by a random context id, and exist only in process
// memory: updating navigation state in place keeps the id and therefore the
// token, replacing the context discards it, and a process restart loses all
// of them. Nothing in this package writes to stable storage.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrContextNotFound = errors.New("navigation context not found")

// Holder stores at most one session token.
type Holder struct {
	mu    sync.RWMutex
	token string
}

func NewHolder() *Holder {
	return &Holder{}
}

// Set replaces any prior token. Setting the empty string clears the holder.
func (h *Holder) Set(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// Get returns the held token, or false if none is held.
func (h *Holder) Get() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token, h.token != ""
}

func (h *Holder) Clear() {
	h.Set("")
}

// Store maps navigation context ids to their holders.
type Store struct {
	mu       sync.Mutex
	contexts map[string]*Holder
}

func NewStore() *Store {
	return &Store{contexts: make(map[string]*Holder)}
}

// Open creates a new, empty navigation context.
func (s *Store) Open() (string, *Holder) {
	id := uuid.NewString()
	h := NewHolder()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[id] = h
	return id, h
}

// Holder returns the holder of an existing context. Looking a context up
// again after navigating within it yields the same holder and token.
func (s *Store) Holder(id string) (*Holder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.contexts[id]; ok {
		return h, nil
	}
	return nil, ErrContextNotFound
}

// Replace discards the context and its token and opens a fresh one.
func (s *Store) Replace(id string) (string, *Holder) {
	s.Close(id)
	return s.Open()
}

// Close drops the context. Closing an unknown id is a no-op.
func (s *Store) Close(id string) {
	s.mu.Lock()
	h, ok := s.contexts[id]
	delete(s.contexts, id)
	s.mu.Unlock()

	if ok {
		h.Clear()
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}
