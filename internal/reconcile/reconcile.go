package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"ydiff/internal/diffop"
	"ydiff/internal/fbuf"
)

var ErrMismatch = errors.New("diff does not match the files")

type Options struct {
	// Storage is Inline (default) or InFile.
	Storage Storage
	// Pool, when set, shares identical Equal-row buffers. Only used with
	// Inline storage.
	Pool   *Pool
	Logger *slog.Logger
}

// replayer walks one file while ops are replayed against it.
type replayer struct {
	f     *fbuf.File
	side  diffop.Side
	opts  Options
	line  int
	off   int64
	buf   []byte
	lines []Line
}

// next reads one line and appends it as kind. It reports false at EOF.
func (r *replayer) next(kind Kind) (bool, error) {
	var err error
	r.buf, err = r.f.AppendLine(r.buf[:0])
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: failed to read %s line %d: %w", ErrMismatch, r.side, r.line+1, err)
	}

	r.line++
	l := Line{Kind: kind, Number: r.line, Offset: r.off, Len: len(r.buf), store: r.opts.Storage}
	if l.store == Inline {
		if kind == Equal && r.opts.Pool != nil {
			l.data = r.opts.Pool.Intern(r.buf)
		} else {
			l.data = append([]byte(nil), r.buf...)
		}
	}
	r.off += int64(len(r.buf))
	r.lines = append(r.lines, l)
	return true, nil
}

// copyUntil emits Equal rows until line n has been read.
func (r *replayer) copyUntil(n int) error {
	for r.line < n {
		ok, err := r.next(Equal)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	if r.line != n {
		return fmt.Errorf("%w: %s file ends at line %d, diff expects line %d", ErrMismatch, r.side, r.line, n)
	}
	return nil
}

// take emits n content rows of kind.
func (r *replayer) take(kind Kind, n int) error {
	for ; n > 0; n-- {
		ok, err := r.next(kind)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s file ends at line %d inside a hunk", ErrMismatch, r.side, r.line)
		}
	}
	return nil
}

func (r *replayer) pad(kind Kind, n int) {
	for ; n > 0; n-- {
		r.lines = append(r.lines, padding(kind))
	}
}

// replay rebuilds one side. The same op list is replayed for both sides
// with the roles of the two ranges swapped: on the left 'a' means the
// other side gained lines, on the right it means this side did.
func replay(ctx context.Context, ops []diffop.Op, side diffop.Side, f *fbuf.File, opts Options) ([]Line, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMismatch, err)
	}

	addCmd, delCmd := byte('a'), byte('d')
	if side == diffop.Right {
		addCmd, delCmd = 'd', 'a'
	}

	r := &replayer{f: f, side: side, opts: opts, lines: make([]Line, 0, 256)}
	for _, op := range ops {
		from, to := op.Range(side), op.Range(side.Other())

		n := from.Lo
		if op.Cmd != addCmd {
			n--
		}
		if err := r.copyUntil(n); err != nil {
			return nil, err
		}

		switch op.Cmd {
		case addCmd:
			r.pad(Deleted, to.Len())
		case delCmd:
			if err := r.take(Added, from.Len()); err != nil {
				return nil, err
			}
		case 'c':
			if err := r.take(Changed, from.Len()); err != nil {
				return nil, err
			}
			r.pad(Changed, (to.Hi-to.Lo)-(from.Hi-from.Lo))
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	for {
		ok, err := r.next(Equal)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	return r.lines, nil
}

// Reconcile replays ops against both files and returns the two lockstep
// row sequences. On any error nothing is returned. With InFile storage the
// result reads row bytes back through left and right, which must stay open
// for as long as the result is used.
func Reconcile(ctx context.Context, ops []diffop.Op, left, right *fbuf.File, opts Options) (*Result, error) {
	if opts.Storage == None {
		opts.Storage = Inline
	}

	var sides [2][]Line
	for _, side := range []diffop.Side{diffop.Left, diffop.Right} {
		f := left
		if side == diffop.Right {
			f = right
		}
		lines, err := replay(ctx, ops, side, f, opts)
		if err != nil {
			return nil, err
		}
		sides[side] = lines
	}

	if len(sides[diffop.Left]) != len(sides[diffop.Right]) {
		return nil, fmt.Errorf("%w: left has %d rows, right has %d", ErrMismatch, len(sides[diffop.Left]), len(sides[diffop.Right]))
	}

	if opts.Logger != nil {
		attrs := []any{"rows", len(sides[diffop.Left]), "ops", len(ops)}
		if opts.Pool != nil {
			attrs = append(attrs, "shared", opts.Pool.Hits())
		}
		opts.Logger.Debug("reconciled", attrs...)
	}

	return &Result{sides: sides, files: [2]*fbuf.File{left, right}}, nil
}

// ReconcileFiles opens both paths and reconciles them. The result owns the
// files and Close releases them.
func ReconcileFiles(ctx context.Context, ops []diffop.Op, leftPath, rightPath string, opts Options) (*Result, error) {
	left, err := fbuf.Open(leftPath, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	right, err := fbuf.Open(rightPath, os.O_RDONLY)
	if err != nil {
		left.Close()
		return nil, err
	}

	res, err := Reconcile(ctx, ops, left, right, opts)
	if err != nil {
		left.Close()
		right.Close()
		return nil, err
	}
	res.owned = true
	return res, nil
}
