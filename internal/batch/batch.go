// Package batch runs line diffs over the changed files of a directory
// comparison.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"ydiff/internal/config"
	"ydiff/internal/dirdiff"
	"ydiff/internal/progress"
	"ydiff/internal/reconcile"
	"ydiff/internal/session"
)

// Job is one pair of regular files to diff.
type Job struct {
	Name  string
	Left  string
	Right string
}

type Result struct {
	// Lines holds line statistics keyed by Job.Name.
	Lines map[string]reconcile.Stats
	// Failures holds per-file errors. A failed file does not stop the run.
	Failures map[string]error
}

type Options struct {
	Workers int
	// Progress receives the progress bar; nil disables it.
	Progress io.Writer
	Logger   *slog.Logger
}

// Jobs selects the Changed regular-file entries of a directory
// comparison; devices, FIFOs and sockets are left out. Entry names are
// joined to the roots unless the roots themselves are files.
func Jobs(entries []dirdiff.Entry, leftRoot, rightRoot string) []Job {
	var jobs []Job
	for _, e := range entries {
		if e.Kind != dirdiff.Changed || !e.Regular {
			continue
		}
		j := Job{Name: e.Name(), Left: e.Left, Right: e.Right}
		if e.Left != leftRoot || e.Right != rightRoot {
			j.Left = filepath.Join(leftRoot, e.Left)
			j.Right = filepath.Join(rightRoot, e.Right)
		}
		jobs = append(jobs, j)
	}
	return jobs
}

// Run diffs every job with at most opts.Workers sessions open at once. It
// returns an error only when ctx is done.
func Run(ctx context.Context, cfg *config.Config, jobs []Job, opts Options) (*Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	result := &Result{
		Lines:    make(map[string]reconcile.Stats, len(jobs)),
		Failures: make(map[string]error),
	}
	if len(jobs) == 0 {
		return result, nil
	}

	var bar *progress.Bar
	if opts.Progress != nil {
		bar = progress.New(int64(len(jobs)), opts.Progress)
		defer bar.Finish()
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if bar != nil {
				bar.Start(job.Name)
				defer bar.Done(job.Name)
			}

			stats, err := diffPair(gctx, cfg, job, log)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("file comparison failed", "path", job.Name, "error", err)
				result.Failures[job.Name] = err
				return nil
			}
			result.Lines[job.Name] = stats
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch interrupted: %w", err)
	}

	log.Debug("batch finished", "files", len(jobs), "failures", len(result.Failures))
	return result, nil
}

func diffPair(ctx context.Context, cfg *config.Config, job Job, log *slog.Logger) (reconcile.Stats, error) {
	s := session.New(cfg, log.With("path", job.Name))
	defer s.Close()

	if err := s.Open(ctx, job.Left, job.Right); err != nil {
		return reconcile.Stats{}, err
	}
	return s.Result().Stats(), nil
}
