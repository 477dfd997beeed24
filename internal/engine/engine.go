package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ydiff/internal/diffop"
	"ydiff/internal/fbuf"
)

// Quality trades diff minimality for speed.
type Quality string

const (
	QualityNormal  Quality = "normal"
	QualityBest    Quality = "best"
	QualityFastest Quality = "fastest"
)

var ErrToolInvocation = errors.New("diff tool failed")

// Options controls how lines are compared.
type Options struct {
	Tool               string // external binary, default "diff"
	IgnoreCase         bool
	IgnoreAllSpace     bool
	IgnoreSpaceChange  bool
	IgnoreTabExpansion bool
	StripTrailingCR    bool
	Quality            Quality
	Logger             *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Differ produces the statement list that turns left into right.
type Differ interface {
	Diff(ctx context.Context, left, right string) ([]diffop.Op, error)
}

// Group formats that make GNU diff print exactly the statement grammar.
const (
	oldGroupFormat       = "%df%(f=l?:,%dl)d%dE\n"
	newGroupFormat       = "%dea%dF%(F=L?:,%dL)\n"
	changedGroupFormat   = "%df%(f=l?:,%dl)c%dF%(F=L?:,%dL)\n"
	unchangedGroupFormat = ""
)

// External runs a line-diff tool as a child process.
type External struct {
	opts Options
}

func NewExternal(opts Options) *External {
	if opts.Tool == "" {
		opts.Tool = "diff"
	}
	return &External{opts: opts}
}

// Args returns the tool arguments used to compare left and right.
func (e *External) Args(left, right string) []string {
	args := make([]string, 0, 16)
	if e.opts.IgnoreCase {
		args = append(args, "-i")
	}
	if e.opts.IgnoreAllSpace {
		args = append(args, "-w")
	}
	if e.opts.IgnoreSpaceChange {
		args = append(args, "-b")
	}
	if e.opts.IgnoreTabExpansion {
		args = append(args, "-E")
	}
	if e.opts.StripTrailingCR {
		args = append(args, "--strip-trailing-cr")
	}
	switch e.opts.Quality {
	case QualityBest:
		args = append(args, "-d")
	case QualityFastest:
		args = append(args, "--speed-large-files")
	}
	args = append(args,
		"--old-group-format="+oldGroupFormat,
		"--new-group-format="+newGroupFormat,
		"--changed-group-format="+changedGroupFormat,
		"--unchanged-group-format="+unchangedGroupFormat,
		"--", left, right,
	)
	return args
}

func (e *External) Diff(ctx context.Context, left, right string) ([]diffop.Op, error) {
	log := e.opts.logger()
	args := e.Args(left, right)
	log.Debug("running diff tool", "tool", e.opts.Tool, "args", strings.Join(args, " "))

	f, err := fbuf.OpenPipe(ctx, e.opts.Tool, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrToolInvocation, err)
	}

	ops, parseErr := diffop.Parse(f)
	// drain so the child never blocks on a full pipe
	if parseErr != nil {
		io.Copy(io.Discard, f)
	}
	closeErr := f.Close()
	// a cancelled child is killed; report the cancellation, not its status
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrToolInvocation, closeErr)
	}

	status := f.ExitStatus()
	if status != 0 && status != 1 {
		msg := strings.TrimSpace(f.Stderr())
		if msg == "" {
			msg = "no diagnostics"
		}
		return nil, fmt.Errorf("%w: %s exited with status %d: %s", ErrToolInvocation, e.opts.Tool, status, msg)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse diff output: %w", parseErr)
	}

	log.Debug("diff tool finished", "status", status, "ops", len(ops))
	return ops, nil
}
