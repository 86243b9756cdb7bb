package store

import (
	"context"
	"sync"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	kv      map[string]string
	letters []DeadLetter
}

func NewMemory() *MemoryStore {
	return &MemoryStore{kv: make(map[string]string)}
}

func (s *MemoryStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) PutDeadLetter(_ context.Context, id string, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters = append(s.letters, DeadLetter{ID: id, Record: append([]byte(nil), record...)})
	return nil
}

// DeadLetters returns up to limit records, newest first.
func (s *MemoryStore) DeadLetters(_ context.Context, limit int) ([]DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DeadLetter
	for i := len(s.letters) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.letters[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
