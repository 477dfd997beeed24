package hdiff

// Cache memoizes brackets per row until invalidated.
type Cache struct {
	minCtx int
	depth  int
	rows   map[int][]Bracket
}

func NewCache(minCtx, depth int) *Cache {
	if minCtx <= 0 {
		minCtx = MinContext
	}
	if depth < 0 {
		depth = Depth
	}
	return &Cache{minCtx: minCtx, depth: depth, rows: make(map[int][]Bracket)}
}

// Get returns the brackets for row, scanning left and right on first use.
func (c *Cache) Get(row int, left, right []byte) []Bracket {
	if b, ok := c.rows[row]; ok {
		return b
	}
	b := Scan(left, right, c.minCtx, c.depth)
	c.rows[row] = b
	return b
}

func (c *Cache) Invalidate() {
	clear(c.rows)
}

func (c *Cache) Len() int {
	return len(c.rows)
}
