// Package session ties one two-file comparison together: input
// materialization, the line diff, reconciliation, the fingerprint and the
// per-row horizontal diff cache.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"ydiff/internal/config"
	"ydiff/internal/diffop"
	"ydiff/internal/engine"
	"ydiff/internal/fbuf"
	"ydiff/internal/fingerprint"
	"ydiff/internal/hdiff"
	"ydiff/internal/reconcile"
)

var ErrNotOpen = errors.New("session is not open")

// input is one side as given by the user and as read by the differ.
type input struct {
	arg  string
	path string
	temp *fbuf.File
}

type Session struct {
	cfg    *config.Config
	log    *slog.Logger
	differ engine.Differ

	inputs [2]input
	files  [2]*fbuf.File
	ops    []diffop.Op
	res    *reconcile.Result
	hunks  []reconcile.Hunk
	fp     string
	cache  *hdiff.Cache
}

// NewDiffer returns the line-diff engine selected by cfg.
func NewDiffer(cfg *config.Config, logger *slog.Logger) engine.Differ {
	opts := engine.Options{
		Tool:               cfg.DiffTool,
		IgnoreCase:         cfg.IgnoreCase,
		IgnoreAllSpace:     cfg.IgnoreAllSpace,
		IgnoreSpaceChange:  cfg.IgnoreSpaceChange,
		IgnoreTabExpansion: cfg.IgnoreTabExpansion,
		StripTrailingCR:    cfg.StripTrailingCR,
		Quality:            engine.Quality(cfg.Quality),
		Logger:             logger,
	}
	if cfg.Engine == config.EngineBuiltin {
		return engine.NewBuiltin(opts)
	}
	return engine.NewExternal(opts)
}

func New(cfg *config.Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		cfg:    cfg,
		log:    logger,
		differ: NewDiffer(cfg, logger),
		cache:  hdiff.NewCache(cfg.HDiff.MinContext, cfg.HDiff.Depth),
	}
}

// Open compares left and right. Either may be "-" for standard input or a
// compressed file; those are copied into temp files owned by the session.
func (s *Session) Open(ctx context.Context, left, right string) error {
	if s.res != nil {
		return fmt.Errorf("session already open")
	}
	s.inputs[diffop.Left].arg = left
	s.inputs[diffop.Right].arg = right

	if err := s.prepare(false); err != nil {
		s.Close()
		return err
	}
	if err := s.run(ctx); err != nil {
		s.Close()
		return err
	}
	return nil
}

// Redo runs the comparison again, typically after one of the files was
// edited. Standard input is not read twice. On failure the previous result
// stays in place.
func (s *Session) Redo(ctx context.Context) error {
	if s.res == nil {
		return ErrNotOpen
	}
	if err := s.prepare(true); err != nil {
		return err
	}
	return s.run(ctx)
}

// prepare sets the path each side is read from, materializing inputs that
// cannot be read in place.
func (s *Session) prepare(again bool) error {
	for i := range s.inputs {
		in := &s.inputs[i]
		if !fbuf.NeedsMaterialize(in.arg) {
			in.path = in.arg
			continue
		}
		if again && in.arg == fbuf.Stdin {
			continue
		}

		tmp, err := fbuf.Materialize(in.arg)
		if err != nil {
			return fmt.Errorf("failed to materialize %s: %w", in.arg, err)
		}
		if in.temp != nil {
			in.temp.Close()
		}
		in.temp, in.path = tmp, tmp.Name()
		s.log.Debug("materialized input", "arg", in.arg, "path", in.path)
	}
	return nil
}

func (s *Session) run(ctx context.Context) error {
	lp, rp := s.inputs[diffop.Left].path, s.inputs[diffop.Right].path

	ops, err := s.differ.Diff(ctx, lp, rp)
	if err != nil {
		return fmt.Errorf("failed to diff %s and %s: %w", s.inputs[diffop.Left].arg, s.inputs[diffop.Right].arg, err)
	}

	lf, err := fbuf.Open(lp, os.O_RDONLY)
	if err != nil {
		return err
	}
	rf, err := fbuf.Open(rp, os.O_RDONLY)
	if err != nil {
		lf.Close()
		return err
	}

	opts := reconcile.Options{Storage: reconcile.Inline, Logger: s.log}
	if s.cfg.Content == config.ContentFile {
		opts.Storage = reconcile.InFile
	} else {
		opts.Pool = reconcile.NewPool()
	}

	res, err := reconcile.Reconcile(ctx, ops, lf, rf, opts)
	if err != nil {
		lf.Close()
		rf.Close()
		return fmt.Errorf("failed to reconcile: %w", err)
	}

	fp, err := fingerprint.ForResult(res)
	if err != nil {
		lf.Close()
		rf.Close()
		return err
	}

	if fp != s.fp {
		s.cache.Invalidate()
	}
	s.closeFiles()
	s.files = [2]*fbuf.File{lf, rf}
	s.ops, s.res, s.hunks, s.fp = ops, res, res.Hunks(), fp

	s.log.Debug("session ready", "rows", res.Len(), "hunks", len(s.hunks), "fingerprint", fp)
	return nil
}

func (s *Session) Result() *reconcile.Result {
	return s.res
}

func (s *Session) Ops() []diffop.Op {
	return s.ops
}

func (s *Session) Fingerprint() string {
	return s.fp
}

func (s *Session) Hunks() []reconcile.Hunk {
	return s.hunks
}

// Text returns the content of one side of a row, nil for padding.
func (s *Session) Text(side diffop.Side, row int) ([]byte, error) {
	if s.res == nil {
		return nil, ErrNotOpen
	}
	return s.res.Text(side, row)
}

// Brackets returns the differing spans of a changed row that has content
// on both sides. Other rows, and all rows when horizontal diff is
// disabled, have none.
func (s *Session) Brackets(row int) ([]hdiff.Bracket, error) {
	if s.res == nil {
		return nil, ErrNotOpen
	}
	if !s.cfg.HDiff.Enabled {
		return nil, nil
	}
	l, r := s.res.Line(diffop.Left, row), s.res.Line(diffop.Right, row)
	if l.Kind != reconcile.Changed || l.Padding() || r.Padding() {
		return nil, nil
	}

	lt, err := s.res.Text(diffop.Left, row)
	if err != nil {
		return nil, err
	}
	rt, err := s.res.Text(diffop.Right, row)
	if err != nil {
		return nil, err
	}
	return s.cache.Get(row, lt, rt), nil
}

// NextHunk returns the first hunk starting after row.
func (s *Session) NextHunk(row int) (reconcile.Hunk, bool) {
	i := sort.Search(len(s.hunks), func(i int) bool { return s.hunks[i].Start > row })
	if i == len(s.hunks) {
		return reconcile.Hunk{}, false
	}
	return s.hunks[i], true
}

// PrevHunk returns the last hunk starting before row.
func (s *Session) PrevHunk(row int) (reconcile.Hunk, bool) {
	i := sort.Search(len(s.hunks), func(i int) bool { return s.hunks[i].Start >= row })
	if i == 0 {
		return reconcile.Hunk{}, false
	}
	return s.hunks[i-1], true
}

func (s *Session) closeFiles() error {
	var first error
	for i, f := range s.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		s.files[i] = nil
	}
	return first
}

// Close releases the source readers and deletes temp files.
func (s *Session) Close() error {
	first := s.closeFiles()
	for i := range s.inputs {
		if s.inputs[i].temp == nil {
			continue
		}
		if err := s.inputs[i].temp.Close(); err != nil && first == nil {
			first = err
		}
		s.inputs[i].temp = nil
	}
	s.res, s.hunks, s.ops = nil, nil, nil
	s.cache.Invalidate()
	return first
}
