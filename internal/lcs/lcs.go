// Package lcs finds the longest common substrings of two byte strings.
package lcs

// Pair locates one occurrence of a common substring: s[S:S+n] == t[T:T+n].
type Pair struct {
	S, T int
}

// Substr returns the length of the longest common substring of s and t and
// the anchors of its occurrences. Anchors are recorded in scan order and
// kept strictly increasing in both S and T: an occurrence that repeats a
// recorded S, or whose T does not lie past the last recorded T, is skipped.
//
// Matches shorter than minLen do not count. When either input is shorter
// than minLen the scan is skipped entirely. With no qualifying match the
// result is 0 and nil.
func Substr(s, t []byte, minLen int) (int, []Pair) {
	if minLen < 1 {
		minLen = 1
	}
	m, n := len(s), len(t)
	if m < minLen || n < minLen {
		return 0, nil
	}

	prev := make([]int, n+1)
	cur := make([]int, n+1)
	z := 0
	var pairs []Pair

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			if s[i] != t[j] {
				cur[j+1] = 0
				continue
			}
			v := prev[j] + 1
			cur[j+1] = v
			if v > z {
				z = v
				pairs = pairs[:0]
			}
			if v == z && z >= minLen {
				p := Pair{S: i - z + 1, T: j - z + 1}
				if accepts(pairs, p) {
					pairs = append(pairs, p)
				}
			}
		}
		prev, cur = cur, prev
	}

	if z < minLen {
		return 0, nil
	}
	return z, pairs
}

func accepts(pairs []Pair, p Pair) bool {
	for _, q := range pairs {
		if q.S == p.S || q.T >= p.T {
			return false
		}
	}
	return true
}
