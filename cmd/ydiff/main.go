package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ydiff/internal/batch"
	"ydiff/internal/config"
	"ydiff/internal/dirdiff"
	"ydiff/internal/fbuf"
	"ydiff/internal/fingerprint"
	"ydiff/internal/report"
	"ydiff/internal/session"
)

// Exit codes follow diff(1).
const (
	exitSame    = 0
	exitDiffer  = 1
	exitTrouble = 2
)

type options struct {
	config             string
	ignoreCase         bool
	ignoreAllSpace     bool
	ignoreSpaceChange  bool
	ignoreTabExpansion bool
	stripTrailingCR    bool
	quality            string
	engine             string
	content            string
	depth              int
	exclude            []string
	workers            int
	logLevel           string

	width     int
	color     string
	context   int
	normal    bool
	json      bool
	stats     bool
	showEqual bool
}

func newRootCmd(stdout, stderr io.Writer, code *int) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "ydiff [flags] LEFT RIGHT",
		Short: "Compare two files side by side, or two directory trees",
		Long: `Compare two files side by side, highlighting the changed part of each line,
or compare two directory trees.

Either file may be "-" for standard input or a .gz or .bz2 file.
The exit status is 0 when the inputs are identical, 1 when they differ and
2 on trouble. Subdirectories left unexpanded by --depth may hide
differences, so they count as differing.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := execute(cmd.Context(), cmd.Flags(), &opts, args[0], args[1], stdout, stderr)
			*code = c
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", config.DefaultPath, "config file path")
	f.BoolVarP(&opts.ignoreCase, "ignore-case", "i", false, "ignore case differences")
	f.BoolVarP(&opts.ignoreAllSpace, "ignore-all-space", "w", false, "ignore all white space")
	f.BoolVarP(&opts.ignoreSpaceChange, "ignore-space-change", "b", false, "ignore changes in the amount of white space")
	f.BoolVarP(&opts.ignoreTabExpansion, "ignore-tab-expansion", "E", false, "ignore changes due to tab expansion")
	f.BoolVar(&opts.stripTrailingCR, "strip-trailing-cr", false, "strip trailing carriage return on input")
	f.StringVar(&opts.quality, "quality", "normal", "diff quality: best, normal or fastest")
	f.StringVar(&opts.engine, "engine", config.EngineExternal, "line diff engine: external or builtin")
	f.StringVar(&opts.content, "content", config.ContentMemory, "where line content is kept: memory or file")
	f.IntVar(&opts.depth, "depth", -1, "subdirectory levels to expand, -1 for all")
	f.StringSliceVar(&opts.exclude, "exclude", nil, "patterns to leave out of directory comparisons")
	f.IntVarP(&opts.workers, "workers", "j", 4, "files compared at once with --stats")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	f.IntVar(&opts.width, "width", 0, "output width, 0 to use the terminal width")
	f.StringVar(&opts.color, "color", string(report.ColorAuto), "color output: auto, always or never")
	f.IntVar(&opts.context, "context", -1, "equal lines shown around changes, -1 for all")
	f.BoolVar(&opts.normal, "normal", false, "write diff statements instead of columns")
	f.BoolVar(&opts.json, "json", false, "write a JSON report")
	f.BoolVar(&opts.stats, "stats", false, "count changed lines of every changed file in a directory comparison")
	f.BoolVar(&opts.showEqual, "show-equal", false, "list equal entries in a directory comparison")

	return cmd
}

// loadConfig reads the config file and applies the flags that were set on
// the command line over it.
func loadConfig(flags *pflag.FlagSet, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flags.Changed("ignore-case") {
		cfg.IgnoreCase = opts.ignoreCase
	}
	if flags.Changed("ignore-all-space") {
		cfg.IgnoreAllSpace = opts.ignoreAllSpace
	}
	if flags.Changed("ignore-space-change") {
		cfg.IgnoreSpaceChange = opts.ignoreSpaceChange
	}
	if flags.Changed("ignore-tab-expansion") {
		cfg.IgnoreTabExpansion = opts.ignoreTabExpansion
	}
	if flags.Changed("strip-trailing-cr") {
		cfg.StripTrailingCR = opts.stripTrailingCR
	}
	if flags.Changed("quality") {
		cfg.Quality = opts.quality
	}
	if flags.Changed("engine") {
		cfg.Engine = opts.engine
	}
	if flags.Changed("content") {
		cfg.Content = opts.content
	}
	if flags.Changed("depth") {
		cfg.Dir.MaxDepth = opts.depth
	}
	if flags.Changed("exclude") {
		cfg.Dir.Exclude = append(cfg.Dir.Exclude, opts.exclude...)
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func isDir(path string) bool {
	if path == fbuf.Stdin {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func execute(ctx context.Context, flags *pflag.FlagSet, opts *options, left, right string, stdout, stderr io.Writer) (int, error) {
	cfg, err := loadConfig(flags, opts)
	if err != nil {
		return exitTrouble, err
	}
	log, err := newLogger(stderr, opts.logLevel)
	if err != nil {
		return exitTrouble, err
	}
	color, err := report.ParseColorMode(opts.color)
	if err != nil {
		return exitTrouble, err
	}

	leftDir, rightDir := isDir(left), isDir(right)
	switch {
	case leftDir && rightDir:
		return compareDirs(ctx, cfg, log, opts, color, left, right, stdout, stderr)
	case leftDir && right != fbuf.Stdin:
		left = filepath.Join(left, filepath.Base(right))
	case rightDir && left != fbuf.Stdin:
		right = filepath.Join(right, filepath.Base(left))
	case leftDir || rightDir:
		return exitTrouble, fmt.Errorf("cannot compare standard input with a directory")
	}
	return compareFiles(ctx, cfg, log, opts, color, left, right, stdout)
}

func compareFiles(ctx context.Context, cfg *config.Config, log *slog.Logger, opts *options, color report.ColorMode, left, right string, stdout io.Writer) (int, error) {
	s := session.New(cfg, log)
	if err := s.Open(ctx, left, right); err != nil {
		return exitTrouble, err
	}
	defer s.Close()

	res := s.Result()
	var err error
	switch {
	case opts.json:
		err = report.WriteJSON(stdout, report.FileDocument(left, right, s.Fingerprint(), s.Ops(), res))
	case opts.normal:
		err = report.Normal(stdout, s.Ops(), res)
	default:
		err = report.SideBySide(stdout, s, report.SideBySideOptions{
			Width:      outputWidth(stdout, opts.width),
			Color:      color,
			Context:    opts.context,
			LeftTitle:  left,
			RightTitle: right,
		})
	}
	if err != nil {
		return exitTrouble, err
	}

	if res.Stats().Identical() {
		return exitSame, nil
	}
	return exitDiffer, nil
}

func compareDirs(ctx context.Context, cfg *config.Config, log *slog.Logger, opts *options, color report.ColorMode, left, right string, stdout, stderr io.Writer) (int, error) {
	entries, err := dirdiff.Compare(ctx, left, right, dirdiff.Options{
		MaxDepth: cfg.Dir.MaxDepth,
		Exclude:  cfg.Dir.Exclude,
		Logger:   log,
	})
	if err != nil {
		return exitTrouble, err
	}

	br := &batch.Result{}
	if opts.stats {
		br, err = batch.Run(ctx, cfg, batch.Jobs(entries, left, right), batch.Options{
			Workers:  cfg.Workers,
			Progress: stderr,
			Logger:   log,
		})
		if err != nil {
			return exitTrouble, err
		}
	}

	if opts.json {
		fp, err := fingerprint.ForEntries(entries)
		if err != nil {
			return exitTrouble, err
		}
		doc := report.DirectoryDocument(left, right, fp, entries, br.Lines, br.Failures)
		if err := report.WriteJSON(stdout, doc); err != nil {
			return exitTrouble, err
		}
	} else {
		err := report.Directory(stdout, entries, report.DirectoryOptions{
			Color:     color,
			ShowEqual: opts.showEqual,
			Lines:     br.Lines,
		})
		if err != nil {
			return exitTrouble, err
		}
		for path, ferr := range br.Failures {
			log.Error("failed to count lines", "path", path, "error", ferr)
		}
	}

	c := dirdiff.Summary(entries)
	switch {
	case c.Errors > 0 || len(br.Failures) > 0:
		return exitTrouble, nil
	case c.Identical():
		return exitSame, nil
	}
	return exitDiffer, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code := exitSame
	cmd := newRootCmd(stdout, stderr, &code)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitTrouble
	}
	return code
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
