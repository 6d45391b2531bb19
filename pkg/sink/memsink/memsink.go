// Package memsink is an in-memory sink.Sink used by tests: it records
// every byte written instead of talking to a device, so pkg/engine
// tests can assert on exactly what the producer loop
// sent downstream without touching real audio hardware.
package memsink

import (
	"sync"

	"github.com/kestrelsound/jukebox/pkg/sink"
)

// Sink is a sink.Sink that appends every Write to an in-memory buffer.
type Sink struct {
	mu      sync.Mutex
	period  int
	written []byte
	dropped int
	drains  int
	closed  bool
}

// New returns a memory sink reporting periodSize bytes per period.
func New(periodSize int) *Sink {
	return &Sink{period: periodSize}
}

func (s *Sink) PeriodSize() int { return s.period }

func (s *Sink) Write(block []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, sink.ErrClosed
	}
	s.written = append(s.written, block...)
	return len(block), nil
}

func (s *Sink) Drop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped++
	s.written = s.written[:0]
	return nil
}

func (s *Sink) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drains++
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Bytes returns a copy of everything written so far.
func (s *Sink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.written))
	copy(out, s.written)
	return out
}

// Drops reports how many times Drop was called.
func (s *Sink) Drops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
