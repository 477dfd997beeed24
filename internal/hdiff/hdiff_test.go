package hdiff

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ydiff/internal/diffop"
)

func TestScan_Identical(t *testing.T) {
	assert.Empty(t, Scan([]byte("same line\n"), []byte("same line\n"), MinContext, Depth))
}

func TestScan_TrimsPrefixAndSuffix(t *testing.T) {
	got := Scan([]byte("hello world"), []byte("hello there"), MinContext, Depth)
	assert.Equal(t, []Bracket{{Left: Span{6, 5}, Right: Span{6, 5}}}, got)
}

func TestScan_Insertion(t *testing.T) {
	got := Scan([]byte("abc"), []byte("abXc"), MinContext, Depth)
	assert.Equal(t, []Bracket{{Left: Span{2, 0}, Right: Span{2, 1}}}, got)
}

func TestScan_SplitsAroundCommonSubstring(t *testing.T) {
	s := []byte("AAAA the quick brown BBBB")
	u := []byte("CC the quick brown DDDDDD")

	got := Scan(s, u, MinContext, Depth)
	want := []Bracket{
		{Left: Span{0, 4}, Right: Span{0, 2}},
		{Left: Span{21, 4}, Right: Span{19, 6}},
	}
	assert.Equal(t, want, got)
}

func TestScan_DepthZeroIsOneBracket(t *testing.T) {
	s := []byte("AAAA the quick brown BBBB")
	u := []byte("CC the quick brown DDDDDD")

	got := Scan(s, u, MinContext, 0)
	assert.Equal(t, []Bracket{{Left: Span{0, 25}, Right: Span{0, 25}}}, got)
}

func TestScan_BracketsStayInBounds(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for iter := 0; iter < 300; iter++ {
		s := make([]byte, r.Intn(40))
		u := make([]byte, r.Intn(40))
		for i := range s {
			s[i] = "ab "[r.Intn(3)]
		}
		for i := range u {
			u[i] = "ab "[r.Intn(3)]
		}

		got := Scan(s, u, 2, Depth)
		lastL, lastR := 0, 0
		for _, b := range got {
			require.GreaterOrEqual(t, b.Left.Off, lastL, "s=%q t=%q", s, u)
			require.GreaterOrEqual(t, b.Right.Off, lastR, "s=%q t=%q", s, u)
			require.LessOrEqual(t, b.Left.End(), len(s))
			require.LessOrEqual(t, b.Right.End(), len(u))
			require.False(t, b.Left.Len == 0 && b.Right.Len == 0, "empty bracket")
			lastL, lastR = b.Left.End(), b.Right.End()
		}

		assert.Equal(t, got, Scan(s, u, 2, Depth), "scan must be deterministic")
	}
}

func TestMask(t *testing.T) {
	brackets := []Bracket{
		{Left: Span{1, 2}, Right: Span{0, 1}},
		{Left: Span{4, 1}, Right: Span{3, 0}},
	}

	assert.Equal(t, []bool{false, true, true, false, true}, Mask(brackets, diffop.Left, 5))
	assert.Equal(t, []bool{true, false, false}, Mask(brackets, diffop.Right, 3))
}

func TestCache(t *testing.T) {
	c := NewCache(0, -1)

	first := c.Get(7, []byte("hello world"), []byte("hello there"))
	require.Len(t, first, 1)
	assert.Equal(t, 1, c.Len())

	// cached by row: the inputs are not looked at again
	again := c.Get(7, []byte("x"), []byte("y"))
	assert.Equal(t, first, again)

	c.Invalidate()
	assert.Zero(t, c.Len())
	assert.Equal(t, []Bracket{{Left: Span{0, 1}, Right: Span{0, 1}}}, c.Get(7, []byte("x"), []byte("y")))
}
