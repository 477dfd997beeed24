// Package hdiff finds the differing spans inside a pair of changed lines.
//
// After trimming the common prefix and suffix, the middle of both lines is
// split recursively around their longest common substrings. What is left
// between the anchors is reported as brackets, one span per side.
package hdiff

import (
	"ydiff/internal/diffop"
	"ydiff/internal/lcs"
)

const (
	MinContext = 5
	Depth      = 10
)

// Span is a byte range within one line.
type Span struct {
	Off, Len int
}

func (s Span) End() int {
	return s.Off + s.Len
}

// Bracket pairs the differing spans of both lines.
type Bracket struct {
	Left, Right Span
}

func (b Bracket) Span(side diffop.Side) Span {
	if side == diffop.Left {
		return b.Left
	}
	return b.Right
}

// Scan returns the brackets that differ between s and t, in order. Common
// substrings shorter than minCtx are not used as anchors, and the split
// recurses at most depth levels.
func Scan(s, t []byte, minCtx, depth int) []Bracket {
	p := 0
	for p < len(s) && p < len(t) && s[p] == t[p] {
		p++
	}
	q := 0
	for q < len(s)-p && q < len(t)-p && s[len(s)-1-q] == t[len(t)-1-q] {
		q++
	}

	var out []Bracket
	multi(s[p:len(s)-q], t[p:len(t)-q], p, p, minCtx, depth, &out)
	return out
}

func multi(s, t []byte, sOff, tOff, minCtx, depth int, out *[]Bracket) {
	if len(s) == 0 && len(t) == 0 {
		return
	}

	if depth > 0 {
		z, pairs := lcs.Substr(s, t, minCtx)
		if len(pairs) > 0 {
			ps, pt := 0, 0
			for _, a := range pairs {
				if a.S < ps || a.T < pt {
					continue
				}
				multi(s[ps:a.S], t[pt:a.T], sOff+ps, tOff+pt, minCtx, depth-1, out)
				ps, pt = a.S+z, a.T+z
			}
			multi(s[ps:], t[pt:], sOff+ps, tOff+pt, minCtx, depth-1, out)
			return
		}
	}

	*out = append(*out, Bracket{
		Left:  Span{Off: sOff, Len: len(s)},
		Right: Span{Off: tOff, Len: len(t)},
	})
}

// Mask marks the bytes of one line that fall inside a bracket. n is the
// line length.
func Mask(brackets []Bracket, side diffop.Side, n int) []bool {
	mask := make([]bool, n)
	for _, b := range brackets {
		sp := b.Span(side)
		for i := sp.Off; i < sp.End() && i < n; i++ {
			mask[i] = true
		}
	}
	return mask
}
