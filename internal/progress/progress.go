package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Bar is a single-line progress bar for batch comparisons. It is safe for
// concurrent use.
type Bar struct {
	total      int64
	current    int64
	width      int
	writer     io.Writer
	mu         sync.Mutex
	active     map[string]bool
	enabled    bool
	lastUpdate time.Time
}

// New returns a bar writing to w. It stays silent unless w is a terminal.
func New(total int64, w io.Writer) *Bar {
	return &Bar{
		total:      total,
		width:      40,
		writer:     w,
		active:     make(map[string]bool),
		enabled:    isTerminal(w),
		lastUpdate: time.Now(),
	}
}

// Force enables or disables rendering regardless of the writer.
func (b *Bar) Force(enabled bool) {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start marks name as being worked on.
func (b *Bar) Start(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.active[name] = true
	if b.enabled {
		b.render()
	}
}

// Done marks name as finished and advances the bar.
func (b *Bar) Done(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.active, name)
	b.current++

	if !b.enabled {
		return
	}
	// at most every 100ms
	now := time.Now()
	if now.Sub(b.lastUpdate) > 100*time.Millisecond || b.current == b.total {
		b.lastUpdate = now
		b.render()
	}
}

// Current returns the number of finished items.
func (b *Bar) Current() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// render must be called with mu held.
func (b *Bar) render() {
	if b.total == 0 {
		return
	}

	percent := float64(b.current) / float64(b.total) * 100
	filledWidth := int(float64(b.width) * float64(b.current) / float64(b.total))
	if filledWidth > b.width {
		filledWidth = b.width
	}

	bar := strings.Repeat("█", filledWidth) + strings.Repeat("░", b.width-filledWidth)

	names := make([]string, 0, len(b.active))
	for name := range b.active {
		names = append(names, filepath.Base(name))
	}
	sort.Strings(names)

	var display string
	if len(names) > 3 {
		display = fmt.Sprintf(" | %s, %s, %s +%d more", names[0], names[1], names[2], len(names)-3)
	} else if len(names) > 0 {
		display = " | " + strings.Join(names, ", ")
	}

	fmt.Fprintf(b.writer, "\r\033[K[%s] %3d%% (%d/%d)%s", bar, int(percent), b.current, b.total, display)
}

func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled {
		return
	}
	b.current = b.total
	b.render()
	fmt.Fprintf(b.writer, "\n")
}
