package harness

import "sync"

// sequence numbers trace events. Every run starts from a fresh sequence,
// so equal runs number their events identically and golden traces stay
// stable.
type sequence struct {
	mu  sync.Mutex
	seq int64
}

// next increments and returns the sequence number. The first call
// returns 1.
func (s *sequence) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *sequence) current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
