package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"ydiff/internal/diffop"
	"ydiff/internal/dirdiff"
	"ydiff/internal/reconcile"
)

const generator = "ydiff"

type Document struct {
	Generator   string         `json:"generator"`
	Created     time.Time      `json:"created"`
	Left        string         `json:"left"`
	Right       string         `json:"right"`
	Fingerprint string         `json:"fingerprint"`
	Identical   bool           `json:"identical"`
	Summary     *DirSummary    `json:"summary,omitempty"`
	Entries     []EntryDoc     `json:"entries,omitempty"`
	Stats       *LineStats     `json:"stats,omitempty"`
	Ops         []string       `json:"ops,omitempty"`
	Failures    []BatchFailure `json:"failures,omitempty"`
}

type DirSummary struct {
	Equal      int `json:"equal"`
	Added      int `json:"added"`
	Deleted    int `json:"deleted"`
	Changed    int `json:"changed"`
	Errors     int `json:"errors"`
	Subdirs    int `json:"subdirs"`
	Unexpanded int `json:"unexpanded"`
}

type LineStats struct {
	Added   int `json:"added"`
	Deleted int `json:"deleted"`
	Changed int `json:"changed"`
}

type EntryDoc struct {
	Kind      string     `json:"kind"`
	Left      string     `json:"left,omitempty"`
	Right     string     `json:"right,omitempty"`
	Depth     int        `json:"depth"`
	LeftSize  string     `json:"left_size,omitempty"`
	RightSize string     `json:"right_size,omitempty"`
	Lines     *LineStats `json:"lines,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type BatchFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func lineStats(s reconcile.Stats) *LineStats {
	return &LineStats{Added: s.Added, Deleted: s.Deleted, Changed: s.Changed}
}

// DirectoryDocument describes a directory comparison. lines and failures
// come from an optional batch run and may be nil.
func DirectoryDocument(left, right, fingerprint string, entries []dirdiff.Entry, lines map[string]reconcile.Stats, failures map[string]error) Document {
	c := dirdiff.Summary(entries)
	doc := Document{
		Generator:   generator,
		Created:     time.Now(),
		Left:        left,
		Right:       right,
		Fingerprint: fingerprint,
		Identical:   c.Identical(),
		Summary: &DirSummary{
			Equal:      c.Equal,
			Added:      c.Added,
			Deleted:    c.Deleted,
			Changed:    c.Changed,
			Errors:     c.Errors,
			Subdirs:    c.Subdirs,
			Unexpanded: c.Unexpanded,
		},
		Entries: make([]EntryDoc, 0, len(entries)),
	}

	for _, e := range entries {
		ed := EntryDoc{
			Kind:  e.Kind.String(),
			Left:  e.Left,
			Right: e.Right,
			Depth: e.Depth,
		}
		if e.Regular {
			ed.LeftSize, ed.RightSize = formatSize(e.LeftSize), formatSize(e.RightSize)
		}
		if s, ok := lines[e.Name()]; ok {
			ed.Lines = lineStats(s)
		}
		if e.Err != nil {
			ed.Error = e.Err.Error()
		}
		doc.Entries = append(doc.Entries, ed)
	}

	for path, err := range failures {
		doc.Failures = append(doc.Failures, BatchFailure{Path: path, Error: err.Error()})
	}
	sort.Slice(doc.Failures, func(i, j int) bool {
		return doc.Failures[i].Path < doc.Failures[j].Path
	})
	return doc
}

// FileDocument describes a two-file comparison.
func FileDocument(left, right, fingerprint string, ops []diffop.Op, res *reconcile.Result) Document {
	s := res.Stats()
	doc := Document{
		Generator:   generator,
		Created:     time.Now(),
		Left:        left,
		Right:       right,
		Fingerprint: fingerprint,
		Identical:   s.Identical(),
		Stats:       lineStats(s),
		Ops:         make([]string, len(ops)),
	}
	for i, op := range ops {
		doc.Ops[i] = op.String()
	}
	return doc
}

func WriteJSON(w io.Writer, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
