package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pmezard/go-difflib/difflib"

	"ydiff/internal/diffop"
	"ydiff/internal/fbuf"
)

// Builtin compares files in process with go-difflib. Its opcodes are
// rendered through the same statement grammar the external tool emits
// and parsed back, so both engines feed the reconciler identically.
type Builtin struct {
	opts Options
}

func NewBuiltin(opts Options) *Builtin {
	return &Builtin{opts: opts}
}

func (b *Builtin) Diff(ctx context.Context, left, right string) ([]diffop.Op, error) {
	a, err := b.readKeys(left)
	if err != nil {
		return nil, err
	}
	c, err := b.readKeys(right)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := difflib.NewMatcherWithJunk(a, c, false, nil)
	var script bytes.Buffer
	for _, oc := range m.GetOpCodes() {
		switch oc.Tag {
		case 'i':
			fmt.Fprintf(&script, "%s\n", diffop.Op{
				Cmd:   'a',
				Left:  diffop.Range{Lo: oc.I1, Hi: oc.I1},
				Right: diffop.Range{Lo: oc.J1 + 1, Hi: oc.J2},
			})
		case 'd':
			fmt.Fprintf(&script, "%s\n", diffop.Op{
				Cmd:   'd',
				Left:  diffop.Range{Lo: oc.I1 + 1, Hi: oc.I2},
				Right: diffop.Range{Lo: oc.J1, Hi: oc.J1},
			})
		case 'r':
			fmt.Fprintf(&script, "%s\n", diffop.Op{
				Cmd:   'c',
				Left:  diffop.Range{Lo: oc.I1 + 1, Hi: oc.I2},
				Right: diffop.Range{Lo: oc.J1 + 1, Hi: oc.J2},
			})
		}
	}

	ops, err := diffop.Parse(&script)
	if err != nil {
		return nil, fmt.Errorf("failed to parse builtin diff: %w", err)
	}
	b.opts.logger().Debug("builtin diff finished", "left", left, "right", right, "ops", len(ops))
	return ops, nil
}

// readKeys returns one comparison key per line of path.
func (b *Builtin) readKeys(path string) ([]string, error) {
	f, err := fbuf.Open(path, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	keys := make([]string, 0, 256)
	var line []byte
	for {
		line, err = f.AppendLine(line[:0])
		if err == io.EOF {
			return keys, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		keys = append(keys, string(b.normalize(line)))
	}
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\v' || c == '\f' || c == '\r'
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c - 'A' + 'a'
	}
	return c
}

// normalize applies the comparison options to one line. The trailing
// newline stays part of the key so a final unterminated line differs from
// a terminated one, as with diff.
func (b *Builtin) normalize(line []byte) []byte {
	o := b.opts
	if !o.IgnoreCase && !o.IgnoreAllSpace && !o.IgnoreSpaceChange && !o.IgnoreTabExpansion && !o.StripTrailingCR {
		return line
	}

	body, nl := line, []byte(nil)
	if n := len(body); n > 0 && body[n-1] == '\n' {
		body, nl = body[:n-1], body[n-1:]
	}
	if o.StripTrailingCR && len(body) > 0 && body[len(body)-1] == '\r' {
		body = body[:len(body)-1]
	}

	out := make([]byte, 0, len(body)+1)
	col := 0
	pendingSpace := false
	for _, c := range body {
		switch {
		case o.IgnoreAllSpace && isBlank(c):
			continue
		case o.IgnoreSpaceChange && isBlank(c):
			pendingSpace = true
			continue
		case o.IgnoreTabExpansion && c == '\t':
			for w := 8 - col%8; w > 0; w-- {
				out = append(out, ' ')
				col++
			}
			continue
		}
		if pendingSpace {
			out = append(out, ' ')
			col++
			pendingSpace = false
		}
		if o.IgnoreCase {
			c = toLower(c)
		}
		out = append(out, c)
		col++
	}
	return append(out, nl...)
}
