package engine

import "fmt"

// Sequence allocates fallback record numbers for pushed creates that
// carry none. It is scoped to one run and passed by parameter, so
// repeated or concurrent runs cannot hand out colliding numbers: the
// prefix embeds the run ID.
type Sequence struct {
	prefix string
	next   int
}

// NewSequence creates a run-scoped sequence. Numbers look like
// "<prefix>-000001".
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Next returns the next number in the sequence.
func (s *Sequence) Next() string {
	s.next++
	return fmt.Sprintf("%s-%06d", s.prefix, s.next)
}
