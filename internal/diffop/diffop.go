// Package diffop parses and formats the normal-diff statement grammar:
//
//	NUMaNUM[,NUM]
//	NUM[,NUM]cNUM[,NUM]
//	NUM[,NUM]dNUM
package diffop

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Side selects one of the two compared files.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) Other() Side {
	return s ^ 1
}

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Range is an inclusive 1-based line range. For the point side of an
// 'a' or 'd' statement Lo == Hi names the line after which the other
// side's lines belong.
type Range struct {
	Lo, Hi int
}

// Len is the number of lines the range covers.
func (r Range) Len() int {
	return r.Hi - r.Lo + 1
}

func (r Range) String() string {
	if r.Lo == r.Hi {
		return strconv.Itoa(r.Lo)
	}
	return strconv.Itoa(r.Lo) + "," + strconv.Itoa(r.Hi)
}

// Op is one edit statement.
type Op struct {
	Cmd   byte // 'a', 'c' or 'd'
	Left  Range
	Right Range
}

// Range returns the range belonging to side.
func (op Op) Range(side Side) Range {
	if side == Left {
		return op.Left
	}
	return op.Right
}

func (op Op) String() string {
	return op.Left.String() + string(op.Cmd) + op.Right.String()
}

var ErrParse = errors.New("malformed diff statement")

// ParseError reports the statement that did not match the grammar.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

type scanner struct {
	s   string
	pos int
}

func (sc *scanner) number() (int, bool) {
	start := sc.pos
	for sc.pos < len(sc.s) && sc.s[sc.pos] >= '0' && sc.s[sc.pos] <= '9' {
		sc.pos++
	}
	if sc.pos == start {
		return 0, false
	}
	n, err := strconv.Atoi(sc.s[start:sc.pos])
	if err != nil {
		return 0, false
	}
	return n, true
}

// rng scans NUM[,NUM] and reports whether a second number was present.
func (sc *scanner) rng() (Range, bool, string) {
	lo, ok := sc.number()
	if !ok {
		return Range{}, false, "bad number"
	}
	if sc.pos < len(sc.s) && sc.s[sc.pos] == ',' {
		sc.pos++
		hi, ok := sc.number()
		if !ok {
			return Range{}, false, "bad number"
		}
		if hi < lo {
			return Range{}, false, "range end before start"
		}
		return Range{Lo: lo, Hi: hi}, true, ""
	}
	return Range{Lo: lo, Hi: lo}, false, ""
}

// ParseLine parses one statement. A single trailing newline is allowed.
func ParseLine(line string) (Op, error) {
	text := strings.TrimSuffix(line, "\n")
	fail := func(reason string) (Op, error) {
		return Op{}, &ParseError{Text: text, Reason: reason}
	}

	sc := &scanner{s: text}
	left, leftRange, reason := sc.rng()
	if reason != "" {
		return fail(reason)
	}

	if sc.pos >= len(text) {
		return fail("missing command")
	}
	cmd := text[sc.pos]
	sc.pos++
	switch cmd {
	case 'a':
		if leftRange {
			return fail("'a' takes a single source line")
		}
	case 'c', 'd':
	default:
		return fail("unknown command")
	}

	right, rightRange, reason := sc.rng()
	if reason != "" {
		return fail(reason)
	}
	if cmd == 'd' && rightRange {
		return fail("'d' takes a single destination line")
	}
	if sc.pos != len(text) {
		return fail("trailing characters")
	}

	return Op{Cmd: cmd, Left: left, Right: right}, nil
}

// Parse reads statements until r is exhausted. Blank lines are ignored;
// any other line must be a statement, and a statement without its
// terminating newline is an error.
func Parse(r io.Reader) ([]Op, error) {
	br := bufio.NewReader(r)
	ops := make([]Op, 0, 16)

	for lineno := 1; ; lineno++ {
		line, err := br.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			if !strings.HasSuffix(line, "\n") {
				return nil, &ParseError{Line: lineno, Text: line, Reason: "unterminated statement"}
			}
			op, perr := ParseLine(line)
			if perr != nil {
				var pe *ParseError
				if errors.As(perr, &pe) {
					pe.Line = lineno
				}
				return nil, perr
			}
			ops = append(ops, op)
		}
		if err == io.EOF {
			return ops, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read diff output: %w", err)
		}
	}
}

// Format writes ops in the statement grammar, one per line.
func Format(w io.Writer, ops []Op) error {
	bw := bufio.NewWriter(w)
	for _, op := range ops {
		bw.WriteString(op.String())
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write diff statements: %w", err)
	}
	return nil
}
