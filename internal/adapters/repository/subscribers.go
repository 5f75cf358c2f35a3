package repository

import "sync"

// Subscribers fans change notifications out to registered callbacks.
type Subscribers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(Change)
}

// Add registers fn and returns a function removing it.
func (s *Subscribers) Add(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Change))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

// Publish delivers c to every subscriber on the calling goroutine.
func (s *Subscribers) Publish(c Change) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Len returns the number of subscribers.
func (s *Subscribers) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fns)
}
