package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ydiff/internal/dirdiff"
	"ydiff/internal/reconcile"
)

type DirectoryOptions struct {
	Color ColorMode
	// Equal rows are left out unless ShowEqual is set.
	ShowEqual bool
	// Lines holds per-file line statistics keyed by entry name, as
	// collected by a batch run.
	Lines map[string]reconcile.Stats
}

// Directory writes one line per entry, indented by depth and prefixed with
// the entry's marker, followed by a summary line.
func Directory(w io.Writer, entries []dirdiff.Entry, opts DirectoryOptions) error {
	st := newStyles(w, opts.Color)
	bw := bufio.NewWriter(w)

	for _, e := range entries {
		if e.Kind == dirdiff.Equal && !opts.ShowEqual {
			continue
		}

		line := strings.Repeat("  ", e.Depth) + string(e.Kind.Marker()) + " " + e.Name()
		if e.Kind == dirdiff.Subdir {
			line += "/"
		}
		if s, ok := opts.Lines[e.Name()]; ok {
			line += fmt.Sprintf(" (+%d -%d ~%d)", s.Added, s.Deleted, s.Changed)
		}
		if e.Err != nil {
			line += ": " + e.Err.Error()
		}
		bw.WriteString(st.render(entryStyle(st, e.Kind), line))
		bw.WriteByte('\n')
	}

	c := dirdiff.Summary(entries)
	fmt.Fprintf(bw, "%d equal, %d added, %d deleted, %d changed, %d errors",
		c.Equal, c.Added, c.Deleted, c.Changed, c.Errors)
	if c.Unexpanded > 0 {
		fmt.Fprintf(bw, ", %d not expanded", c.Unexpanded)
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

func entryStyle(st styles, k dirdiff.Kind) lipgloss.Style {
	switch k {
	case dirdiff.Added:
		return st.added
	case dirdiff.Deleted:
		return st.removed
	case dirdiff.Changed:
		return st.changed
	case dirdiff.Error:
		return st.errorRow
	case dirdiff.Subdir:
		return st.subdir
	}
	return st.equal
}
