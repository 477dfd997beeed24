package reconcile

import (
	"fmt"
	"io"
	"iter"

	"ydiff/internal/diffop"
	"ydiff/internal/fbuf"
)

// Result holds the two reconciled sides. Both sides always have the same
// number of rows.
type Result struct {
	sides [2][]Line
	files [2]*fbuf.File
	owned bool
}

// Row is one row of the side-by-side view.
type Row struct {
	Left, Right Line
}

// Hunk is a half-open run [Start, End) of rows that are not Equal.
type Hunk struct {
	Start, End int
}

type Stats struct {
	Added   int // rows present only on the right
	Deleted int // rows present only on the left
	Changed int
}

func (s Stats) Identical() bool {
	return s.Added == 0 && s.Deleted == 0 && s.Changed == 0
}

func (r *Result) Len() int {
	return len(r.sides[diffop.Left])
}

func (r *Result) Line(side diffop.Side, row int) Line {
	return r.sides[side][row]
}

// Side returns the rows of one side. The slice must not be modified.
func (r *Result) Side(side diffop.Side) []Line {
	return r.sides[side]
}

// Text returns the bytes of a row, reading them back from the source for
// InFile rows. Padding rows return nil.
func (r *Result) Text(side diffop.Side, row int) ([]byte, error) {
	l := r.sides[side][row]
	switch l.store {
	case None:
		return nil, nil
	case Inline:
		return l.data, nil
	}

	f := r.files[side]
	if f == nil {
		return nil, fmt.Errorf("no source file for %s side", side)
	}
	if _, err := f.Seek(l.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to line %d: %w", l.Number, err)
	}
	buf := make([]byte, l.Len)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("failed to read line %d: %w", l.Number, err)
	}
	return buf, nil
}

// Rows yields every row in order.
func (r *Result) Rows() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		for i := range r.sides[diffop.Left] {
			if !yield(i, Row{Left: r.sides[diffop.Left][i], Right: r.sides[diffop.Right][i]}) {
				return
			}
		}
	}
}

// Printer receives one side of one row. number is 0 for padding and data
// is nil for padding.
type Printer func(side diffop.Side, row int, kind Kind, number int, offset int64, data []byte) error

// Print hands both sides of every row to p, left first. It stops at the
// first error.
func (r *Result) Print(p Printer) error {
	for i := 0; i < r.Len(); i++ {
		for _, side := range []diffop.Side{diffop.Left, diffop.Right} {
			l := r.sides[side][i]
			data, err := r.Text(side, i)
			if err != nil {
				return err
			}
			if err := p(side, i, l.Kind, l.Number, l.Offset, data); err != nil {
				return err
			}
		}
	}
	return nil
}

// Hunks returns the runs of non-Equal rows.
func (r *Result) Hunks() []Hunk {
	var hunks []Hunk
	left := r.sides[diffop.Left]
	for i := 0; i < len(left); {
		if left[i].Kind == Equal {
			i++
			continue
		}
		start := i
		for i < len(left) && left[i].Kind != Equal {
			i++
		}
		hunks = append(hunks, Hunk{Start: start, End: i})
	}
	return hunks
}

func (r *Result) Stats() Stats {
	var s Stats
	for _, l := range r.sides[diffop.Left] {
		switch l.Kind {
		case Added:
			s.Deleted++
		case Deleted:
			s.Added++
		case Changed:
			s.Changed++
		}
	}
	return s
}

// Close releases files opened by ReconcileFiles. It is a no-op otherwise.
func (r *Result) Close() error {
	if !r.owned {
		return nil
	}
	r.owned = false
	var first error
	for _, f := range r.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
