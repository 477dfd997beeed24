package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ydiff/internal/config"
	"ydiff/internal/dirdiff"
	"ydiff/internal/reconcile"
)

func builtinConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Engine = config.EngineBuiltin
	return cfg
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
}

func TestJobs(t *testing.T) {
	entries := []dirdiff.Entry{
		{Kind: dirdiff.Equal, Left: "a", Right: "a", Regular: true},
		{Kind: dirdiff.Changed, Left: "b", Right: "b", Regular: true},
		{Kind: dirdiff.Subdir, Left: "sub", Right: "sub"},
		{Kind: dirdiff.Changed, Left: filepath.Join("sub", "c"), Right: filepath.Join("sub", "c"), Depth: 1, Regular: true},
		{Kind: dirdiff.Changed, Left: "pipe", Right: "pipe"},
		{Kind: dirdiff.Added, Right: "d"},
	}

	jobs := Jobs(entries, "L", "R")
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	want := Job{Name: filepath.Join("sub", "c"), Left: filepath.Join("L", "sub", "c"), Right: filepath.Join("R", "sub", "c")}
	if jobs[1] != want {
		t.Errorf("Expected %+v, got %+v", want, jobs[1])
	}
}

func TestJobs_FileRoots(t *testing.T) {
	entries := []dirdiff.Entry{{Kind: dirdiff.Changed, Left: "x.txt", Right: "y.txt", Regular: true}}

	jobs := Jobs(entries, "x.txt", "y.txt")
	if len(jobs) != 1 || jobs[0].Left != "x.txt" || jobs[0].Right != "y.txt" {
		t.Errorf("Expected root paths kept, got %+v", jobs)
	}
}

func TestRun(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	writeFiles(t, left, map[string]string{
		"one.txt":      "a\nb\nc\n",
		"sub/two.txt":  "x\ny\n",
		"same.txt":     "same\n",
		"three.txt":    "1\n2\n3\n",
		"only-old.txt": "gone\n",
	})
	writeFiles(t, right, map[string]string{
		"one.txt":     "a\nB\nc\n",
		"sub/two.txt": "x\ny\nz\n",
		"same.txt":    "same\n",
		"three.txt":   "1\n3\n",
	})

	entries, err := dirdiff.Compare(context.Background(), left, right, dirdiff.Options{MaxDepth: -1})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	jobs := Jobs(entries, left, right)
	if len(jobs) != 3 {
		t.Fatalf("Expected 3 jobs, got %d", len(jobs))
	}

	var out bytes.Buffer
	res, err := Run(context.Background(), builtinConfig(), jobs, Options{Workers: 2, Progress: &out})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("Unexpected failures: %v", res.Failures)
	}

	two := filepath.Join("sub", "two.txt")
	want := map[string]reconcile.Stats{
		"one.txt":   {Changed: 1},
		two:         {Added: 1},
		"three.txt": {Deleted: 1},
	}
	for name, stats := range want {
		if got := res.Lines[name]; got != stats {
			t.Errorf("%s: expected %+v, got %+v", name, stats, got)
		}
	}
	if out.Len() != 0 {
		t.Errorf("Progress should stay silent on a buffer, got %q", out.String())
	}
}

func TestRun_FailureIsRecorded(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a": "1\n", "b": "2\n"})

	jobs := []Job{
		{Name: "ok", Left: filepath.Join(dir, "a"), Right: filepath.Join(dir, "b")},
		{Name: "missing", Left: filepath.Join(dir, "a"), Right: filepath.Join(dir, "nope")},
	}

	res, err := Run(context.Background(), builtinConfig(), jobs, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, ok := res.Lines["ok"]; !ok {
		t.Error("Expected stats for ok")
	}
	if res.Failures["missing"] == nil {
		t.Error("Expected failure for missing")
	}
}

func TestRun_Empty(t *testing.T) {
	res, err := Run(context.Background(), builtinConfig(), nil, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Lines) != 0 || len(res.Failures) != 0 {
		t.Errorf("Expected empty result, got %+v", res)
	}
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a": "1\n", "b": "2\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{{Name: "x", Left: filepath.Join(dir, "a"), Right: filepath.Join(dir, "b")}}
	_, err := Run(ctx, builtinConfig(), jobs, Options{Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
