// Package dirdiff compares two directory trees in sorted-name lockstep.
//
// The result is a flat, depth-first list of entries. A recursed
// subdirectory contributes its own Subdir row followed immediately by the
// rows of its contents.
package dirdiff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"ydiff/internal/fbuf"
)

type Kind uint8

const (
	Equal Kind = iota
	Added
	Deleted
	Changed
	Error
	Subdir
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
	case Error:
		return "error"
	case Subdir:
		return "subdir"
	}
	return "unknown"
}

// Marker is the one-character prefix used in text reports.
func (k Kind) Marker() byte {
	switch k {
	case Added:
		return '+'
	case Deleted:
		return '-'
	case Changed:
		return '~'
	case Error:
		return '!'
	case Subdir:
		return '/'
	}
	return '='
}

var (
	ErrCycle        = errors.New("directory cycle")
	ErrTypeMismatch = errors.New("file types differ")
)

// StatError is returned when the roots themselves cannot be examined.
type StatError struct {
	Path string
	Err  error
}

func (e *StatError) Error() string {
	return fmt.Sprintf("failed to stat %s: %v", e.Path, e.Err)
}

func (e *StatError) Unwrap() error {
	return e.Err
}

// Entry is one row of a directory comparison. Left and Right are paths
// relative to the roots; an empty string means the side is absent.
type Entry struct {
	Kind  Kind
	Left  string
	Right string
	Depth int // nesting level below the roots
	// Expanded is set on Subdir rows whose contents follow.
	Expanded bool
	// Regular is set when both sides are regular files; only then are
	// the sizes filled in.
	Regular             bool
	LeftSize, RightSize int64
	Err                 error
}

// Name returns whichever side is present.
func (e Entry) Name() string {
	if e.Left != "" {
		return e.Left
	}
	return e.Right
}

type Options struct {
	// MaxDepth is the number of subdirectory levels expanded below the
	// roots. 0 lists subdirectories without entering them, negative means
	// no limit.
	MaxDepth int
	Exclude  []string
	Logger   *slog.Logger
}

// blockSize is the chunk size of the regular file comparison.
const blockSize = 32 * 1024

type fileID struct {
	dev, ino uint64
}

type fileStat struct {
	typ  fs.FileMode
	size int64
	id   fileID
}

// frame is one directory pair on the current recursion path.
type frame struct {
	parent      *frame
	left, right fileID
}

type walker struct {
	ctx     context.Context
	opts    Options
	log     *slog.Logger
	left    string
	right   string
	entries []Entry
}

// Compare walks leftRoot and rightRoot together. Failing to stat either
// root, or to list a root directory, is returned as an error; problems
// further down become Error rows. A cancelled walk returns the context
// error and no entries.
func Compare(ctx context.Context, leftRoot, rightRoot string, opts Options) ([]Entry, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	w := &walker{ctx: ctx, opts: opts, log: log, left: leftRoot, right: rightRoot}

	if err := w.diffFile("", true, true, opts.MaxDepth, 0, nil); err != nil {
		return nil, err
	}
	log.Debug("directory walk finished", "left", leftRoot, "right", rightRoot, "entries", len(w.entries))
	return w.entries, nil
}

func (w *walker) paths(rel string) (string, string) {
	if rel == "" {
		return w.left, w.right
	}
	return filepath.Join(w.left, rel), filepath.Join(w.right, rel)
}

func (w *walker) emit(e Entry) {
	w.entries = append(w.entries, e)
}

// diffFile classifies one name pair. fr is nil only for the roots.
func (w *walker) diffFile(rel string, hasLeft, hasRight bool, depth, level int, fr *frame) error {
	top := fr == nil
	if !top && !hasLeft {
		w.emit(Entry{Kind: Added, Right: rel, Depth: level})
		return nil
	}
	if !top && !hasRight {
		w.emit(Entry{Kind: Deleted, Left: rel, Depth: level})
		return nil
	}

	lp, rp := w.paths(rel)
	row := Entry{Left: rel, Right: rel, Depth: level}
	if top {
		row.Left, row.Right = lp, rp
	}

	ls, err := statPath(lp)
	if err != nil {
		return w.statFailed(row, top, lp, err)
	}
	rs, err := statPath(rp)
	if err != nil {
		return w.statFailed(row, top, rp, err)
	}

	if ls.typ != rs.typ {
		row.Kind, row.Err = Error, fmt.Errorf("%w: %s is %s, %s is %s", ErrTypeMismatch, lp, typeName(ls.typ), rp, typeName(rs.typ))
		w.emit(row)
		return nil
	}

	switch {
	case ls.typ.IsDir():
		for f := fr; f != nil; f = f.parent {
			if f.left == ls.id || f.right == rs.id {
				row.Kind, row.Err = Error, fmt.Errorf("%w at %s", ErrCycle, rel)
				w.log.Debug("refusing to enter directory cycle", "path", rel)
				w.emit(row)
				return nil
			}
		}
		next := &frame{parent: fr, left: ls.id, right: rs.id}
		if top {
			return w.diffDirs(rel, depth, 0, next, nil)
		}
		if depth == 0 {
			row.Kind = Subdir
			w.emit(row)
			return nil
		}
		row.Kind, row.Expanded = Subdir, true
		return w.diffDirs(rel, depth-1, level+1, next, &row)

	case ls.typ.IsRegular():
		row.Regular = true
		row.LeftSize, row.RightSize = ls.size, rs.size
		row.Kind, row.Err = compareRegular(lp, rp, ls, rs)

	default:
		row.Kind = Changed
		if ls.id == rs.id {
			row.Kind = Equal
		}
	}

	w.emit(row)
	return nil
}

func (w *walker) statFailed(row Entry, top bool, path string, err error) error {
	serr := &StatError{Path: path, Err: err}
	if top {
		return serr
	}
	row.Kind, row.Err = Error, serr
	w.emit(row)
	return nil
}

// diffDirs merge-joins the listings of one directory pair. header is the
// Subdir row announcing the pair; it is emitted once both listings have
// been read, or replaced by an Error row if they cannot be.
func (w *walker) diffDirs(rel string, depth, level int, fr *frame, header *Entry) error {
	lp, rp := w.paths(rel)
	left, err := w.readDir(lp, rel)
	var right []string
	if err == nil {
		right, err = w.readDir(rp, rel)
	}
	if err != nil {
		if header == nil {
			return err
		}
		header.Kind, header.Expanded, header.Err = Error, false, err
		w.emit(*header)
		return nil
	}
	if header != nil {
		w.emit(*header)
	}

	i, j := 0, 0
	for i < len(left) || j < len(right) {
		var err error
		switch {
		case j >= len(right) || (i < len(left) && left[i] < right[j]):
			err = w.diffFile(filepath.Join(rel, left[i]), true, false, depth, level, fr)
			i++
		case i >= len(left) || right[j] < left[i]:
			err = w.diffFile(filepath.Join(rel, right[j]), false, true, depth, level, fr)
			j++
		default:
			err = w.diffFile(filepath.Join(rel, left[i]), true, true, depth, level, fr)
			i++
			j++
		}
		if err != nil {
			return err
		}
	}

	return w.ctx.Err()
}

// readDir lists dir sorted by name, without excluded entries.
func (w *walker) readDir(dir, rel string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	names := make([]string, 0, len(des))
	for _, de := range des {
		relPath := filepath.Join(rel, de.Name())
		if excluded(relPath, de.IsDir(), w.opts.Exclude) {
			w.log.Debug("excluded", "path", relPath)
			continue
		}
		names = append(names, de.Name())
	}
	return names, nil
}

// compareRegular reports whether two regular files hold the same bytes.
func compareRegular(lp, rp string, ls, rs fileStat) (Kind, error) {
	if ls.size != rs.size {
		return Changed, nil
	}
	if ls.id == rs.id {
		return Equal, nil
	}

	lf, err := fbuf.Open(lp, os.O_RDONLY)
	if err != nil {
		return Error, err
	}
	defer lf.Close()
	rf, err := fbuf.Open(rp, os.O_RDONLY)
	if err != nil {
		return Error, err
	}
	defer rf.Close()

	lb := make([]byte, blockSize)
	rb := make([]byte, blockSize)
	for {
		ln, lerr := io.ReadFull(lf, lb)
		if lerr != nil && lerr != io.EOF && lerr != io.ErrUnexpectedEOF {
			return Error, fmt.Errorf("failed to read %s: %w", lp, lerr)
		}
		rn, rerr := io.ReadFull(rf, rb)
		if rerr != nil && rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
			return Error, fmt.Errorf("failed to read %s: %w", rp, rerr)
		}
		if ln != rn || !bytes.Equal(lb[:ln], rb[:rn]) {
			return Changed, nil
		}
		if ln < blockSize {
			return Equal, nil
		}
	}
}

func typeName(m fs.FileMode) string {
	switch {
	case m.IsDir():
		return "a directory"
	case m.IsRegular():
		return "a regular file"
	case m&fs.ModeNamedPipe != 0:
		return "a named pipe"
	case m&fs.ModeSocket != 0:
		return "a socket"
	case m&fs.ModeDevice != 0:
		return "a device"
	}
	return "an irregular file"
}

// Counts tallies entries per kind. Unexpanded counts the Subdir rows whose
// contents were not compared because of the depth limit.
type Counts struct {
	Equal, Added, Deleted, Changed, Errors, Subdirs int
	Unexpanded                                      int
}

// Identical reports whether the walk found no difference and no error.
// Unexpanded subdirectories may hide differences, so they count against it.
func (c Counts) Identical() bool {
	return c.Added == 0 && c.Deleted == 0 && c.Changed == 0 && c.Errors == 0 && c.Unexpanded == 0
}

func Summary(entries []Entry) Counts {
	var c Counts
	for _, e := range entries {
		switch e.Kind {
		case Equal:
			c.Equal++
		case Added:
			c.Added++
		case Deleted:
			c.Deleted++
		case Changed:
			c.Changed++
		case Error:
			c.Errors++
		case Subdir:
			c.Subdirs++
			if !e.Expanded {
				c.Unexpanded++
			}
		}
	}
	return c
}
