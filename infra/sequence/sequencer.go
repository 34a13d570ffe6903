package sequence

import "sync/atomic"

// Sequencer generates the strictly monotonic acceptance sequence for one
// market. The sequence is the sole tie-breaker for time priority and is
// stamped on every event a command produces.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer that will first hand out start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next sequence ID.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}
