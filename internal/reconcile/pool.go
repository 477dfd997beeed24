package reconcile

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// Pool interns line contents so identical lines on both sides share one
// buffer. Buffers handed out are never written again.
type Pool struct {
	buckets map[uint64][][]byte
	hits    int
	saved   int
}

func NewPool() *Pool {
	return &Pool{buckets: make(map[uint64][][]byte)}
}

// Intern returns a stable buffer equal to b. b itself is never retained.
func (p *Pool) Intern(b []byte) []byte {
	h := xxhash.Sum64(b)
	for _, cand := range p.buckets[h] {
		if bytes.Equal(cand, b) {
			p.hits++
			p.saved += len(b)
			return cand
		}
	}
	owned := append([]byte(nil), b...)
	p.buckets[h] = append(p.buckets[h], owned)
	return owned
}

// Hits is the number of Intern calls answered with an existing buffer.
func (p *Pool) Hits() int {
	return p.hits
}

// Saved is the number of bytes not duplicated thanks to sharing.
func (p *Pool) Saved() int {
	return p.saved
}
