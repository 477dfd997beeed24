package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"ydiff/internal/diffop"
	"ydiff/internal/hdiff"
	"ydiff/internal/reconcile"
)

// Source is what the side-by-side view reads rows and highlights from.
type Source interface {
	Result() *reconcile.Result
	Brackets(row int) ([]hdiff.Bracket, error)
}

type SideBySideOptions struct {
	// Width is the total line width; values below 40 are raised to 40.
	Width int
	Color ColorMode
	// Context is the number of equal rows shown around each hunk; negative
	// shows every row.
	Context    int
	LeftTitle  string
	RightTitle string
}

const (
	minWidth  = 40
	tabWidth  = 8
	separator = " │ "
	ellipsis  = "…"
)

type layout struct {
	numWidth  int
	textWidth int
}

func newLayout(res *reconcile.Result, width int) layout {
	if width < minWidth {
		width = minWidth
	}
	maxNum := 0
	for _, side := range []diffop.Side{diffop.Left, diffop.Right} {
		for _, l := range res.Side(side) {
			maxNum = max(maxNum, l.Number)
		}
	}
	nw := max(len(strconv.Itoa(maxNum)), 4)
	// number, space, marker, space on each side plus the separator
	tw := (width - 2*(nw+3) - runewidth.StringWidth(separator)) / 2
	return layout{numWidth: nw, textWidth: max(tw, 8)}
}

// SideBySide writes the two sides of src in columns. Changed rows with
// brackets get the differing spans highlighted.
func SideBySide(w io.Writer, src Source, opts SideBySideOptions) error {
	res := src.Result()
	st := newStyles(w, opts.Color)
	lay := newLayout(res, opts.Width)
	bw := bufio.NewWriter(w)

	if opts.LeftTitle != "" || opts.RightTitle != "" {
		colWidth := lay.numWidth + 3 + lay.textWidth
		left := runewidth.FillRight(runewidth.Truncate(opts.LeftTitle, colWidth, ellipsis), colWidth)
		right := runewidth.Truncate(opts.RightTitle, colWidth, ellipsis)
		fmt.Fprintf(bw, "%s%s%s\n", st.render(st.header, left), separator, st.render(st.header, right))
	}

	rows := visibleRows(res, opts.Context)
	prev := -1
	for _, row := range rows {
		if prev >= 0 && row != prev+1 {
			fmt.Fprintln(bw, st.render(st.number, strings.Repeat("┈", lay.numWidth)))
		}
		prev = row

		var brackets []hdiff.Bracket
		if res.Line(diffop.Left, row).Kind == reconcile.Changed {
			var err error
			if brackets, err = src.Brackets(row); err != nil {
				return err
			}
		}

		var line strings.Builder
		for _, side := range []diffop.Side{diffop.Left, diffop.Right} {
			if side == diffop.Right {
				line.WriteString(separator)
			}
			text, err := res.Text(side, row)
			if err != nil {
				return err
			}
			l := res.Line(side, row)
			line.WriteString(numberCell(st, l, lay.numWidth))
			line.WriteByte(' ')
			style := lineStyle(st, side, l)
			line.WriteString(st.render(style, string(sideMarker(side, l))))
			line.WriteByte(' ')

			var mask []bool
			if brackets != nil {
				mask = hdiff.Mask(brackets, side, len(text))
			}
			line.WriteString(textCell(st, text, mask, lay.textWidth, style))
		}
		bw.WriteString(strings.TrimRight(line.String(), " "))
		bw.WriteByte('\n')
	}

	return bw.Flush()
}

// visibleRows lists the rows to print, keeping context rows around hunks.
func visibleRows(res *reconcile.Result, context int) []int {
	n := res.Len()
	rows := make([]int, 0, n)
	if context < 0 {
		for i := 0; i < n; i++ {
			rows = append(rows, i)
		}
		return rows
	}

	next := 0
	for _, h := range res.Hunks() {
		start := max(h.Start-context, next)
		end := min(h.End+context, n)
		for i := start; i < end; i++ {
			rows = append(rows, i)
		}
		next = end
	}
	return rows
}

func lineStyle(st styles, side diffop.Side, l reconcile.Line) lipgloss.Style {
	switch l.Kind {
	case reconcile.Added:
		if side == diffop.Left {
			return st.removed
		}
		return st.added
	case reconcile.Changed:
		return st.changed
	}
	return st.equal
}

// sideMarker is the column marker of one side: '-' for lines only on the
// left, '+' for lines only on the right, '*' for changed lines.
func sideMarker(side diffop.Side, l reconcile.Line) byte {
	switch {
	case l.Padding():
		return ' '
	case l.Kind == reconcile.Added && side == diffop.Left:
		return '-'
	}
	return l.Kind.Char()
}

func numberCell(st styles, l reconcile.Line, width int) string {
	if l.Padding() {
		return strings.Repeat(" ", width)
	}
	return st.render(st.number, fmt.Sprintf("%*d", width, l.Number))
}

type glyph struct {
	text string
	w    int
	hl   bool
}

// textCell renders one line into exactly width columns. Tabs are
// expanded, control characters and invalid UTF-8 shown as '?', and an
// overlong line is cut with an ellipsis.
func textCell(st styles, line []byte, mask []bool, width int, base lipgloss.Style) string {
	line = trimEOL(line)

	glyphs := make([]glyph, 0, len(line))
	col := 0
	for i := 0; i < len(line); {
		r, size := utf8.DecodeRune(line[i:])
		g := glyph{hl: mask != nil && i < len(mask) && mask[i]}
		switch {
		case r == '\t':
			g.w = tabWidth - col%tabWidth
			g.text = strings.Repeat(" ", g.w)
		case r == utf8.RuneError && size == 1, unicode.IsControl(r):
			g.text, g.w = "?", 1
		default:
			g.text, g.w = string(r), runewidth.RuneWidth(r)
		}
		glyphs = append(glyphs, g)
		col += g.w
		i += size
	}

	limit := width
	if col > width {
		limit = width - runewidth.StringWidth(ellipsis)
	}

	var b, seg strings.Builder
	segHL := false
	flush := func() {
		if seg.Len() == 0 {
			return
		}
		style := base
		if segHL {
			style = st.highlight
		}
		b.WriteString(st.render(style, seg.String()))
		seg.Reset()
	}

	used := 0
	for _, g := range glyphs {
		if used+g.w > limit {
			break
		}
		if g.hl != segHL {
			flush()
			segHL = g.hl
		}
		seg.WriteString(g.text)
		used += g.w
	}
	flush()

	if col > width {
		b.WriteString(st.render(base, ellipsis))
		used += runewidth.StringWidth(ellipsis)
	}
	if used < width {
		b.WriteString(strings.Repeat(" ", width-used))
	}
	return b.String()
}

func trimEOL(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line
}
