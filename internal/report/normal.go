package report

import (
	"bufio"
	"bytes"
	"io"

	"ydiff/internal/diffop"
	"ydiff/internal/reconcile"
)

// Normal writes ops in diff's normal format. Without res only the
// statement lines are written; with it each statement is followed by the
// affected lines, "< " for the left side and "> " for the right.
func Normal(w io.Writer, ops []diffop.Op, res *reconcile.Result) error {
	if res == nil {
		return diffop.Format(w, ops)
	}

	index := [2][]int{lineIndex(res, diffop.Left), lineIndex(res, diffop.Right)}
	bw := bufio.NewWriter(w)

	writeLines := func(side diffop.Side, r diffop.Range, prefix string) error {
		for n := r.Lo; n <= r.Hi; n++ {
			text, err := res.Text(side, index[side][n])
			if err != nil {
				return err
			}
			bw.WriteString(prefix)
			bw.Write(text)
			if !bytes.HasSuffix(text, []byte("\n")) {
				bw.WriteString("\n\\ No newline at end of file\n")
			}
		}
		return nil
	}

	for _, op := range ops {
		bw.WriteString(op.String())
		bw.WriteByte('\n')
		if op.Cmd != 'a' {
			if err := writeLines(diffop.Left, op.Left, "< "); err != nil {
				return err
			}
		}
		if op.Cmd == 'c' {
			bw.WriteString("---\n")
		}
		if op.Cmd != 'd' {
			if err := writeLines(diffop.Right, op.Right, "> "); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// lineIndex maps 1-based line numbers of one side to rows.
func lineIndex(res *reconcile.Result, side diffop.Side) []int {
	lines := res.Side(side)
	index := make([]int, 1, len(lines)+1)
	for row, l := range lines {
		if !l.Padding() {
			index = append(index, row)
		}
	}
	return index
}
