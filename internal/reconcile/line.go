package reconcile

// Kind classifies a row on one side of a two-file diff. Added marks
// content present only on this side, Deleted marks the padding that lines
// it up with the other side's Added content.
type Kind uint8

const (
	Equal Kind = iota
	Added
	Deleted
	Changed
)

func (k Kind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Changed:
		return "changed"
	}
	return "unknown"
}

// Char is the one-column marker used in text output.
func (k Kind) Char() byte {
	switch k {
	case Added:
		return '+'
	case Deleted:
		return '-'
	case Changed:
		return '*'
	}
	return ' '
}

// Storage says where a row's bytes live.
type Storage uint8

const (
	None   Storage = iota // padding, no content
	Inline                // held in memory
	InFile                // re-read from the source by offset
)

// Line is one row on one side.
type Line struct {
	Kind   Kind
	Number int   // 1-based line number, 0 for padding
	Offset int64 // byte offset in the source
	Len    int   // byte length including the newline, if any

	store Storage
	data  []byte
}

// Storage reports where the content lives.
func (l Line) Storage() Storage {
	return l.store
}

// Padding reports whether the row has no content on this side.
func (l Line) Padding() bool {
	return l.store == None
}

// Inline returns the in-memory bytes, if the row holds them. The slice
// may be shared with other rows and must not be modified.
func (l Line) Inline() ([]byte, bool) {
	if l.store != Inline {
		return nil, false
	}
	return l.data, true
}

func padding(kind Kind) Line {
	return Line{Kind: kind}
}
