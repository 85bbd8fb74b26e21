package idalloc

import "math/big"

// Sequence hands out several identifiers in a row for one prefix. Each
// allocated ID is recorded, so consecutive calls never collide with each
// other or with the seed set.
type Sequence struct {
	prefix string
	pad    int
	next   *big.Int
}

// NewSequence seeds a Sequence from the existing identifiers.
func NewSequence(prefix string, existing []string, padLength int) *Sequence {
	return &Sequence{
		prefix: prefix,
		pad:    padLength,
		next:   successor(maxSuffix(prefix, existing)),
	}
}

// Next returns the next identifier and advances the sequence.
func (s *Sequence) Next() string {
	id := format(s.prefix, s.next, s.pad)
	s.next = successor(s.next)
	return id
}

// Observe records an identifier allocated elsewhere so the sequence skips
// past it. Foreign identifiers are ignored.
func (s *Sequence) Observe(id string) {
	if n, ok := Suffix(s.prefix, id); ok && n.Cmp(s.next) >= 0 {
		s.next = successor(n)
	}
}
