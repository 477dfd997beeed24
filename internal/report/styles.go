package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(s); m {
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	}
	return "", fmt.Errorf("invalid color mode %q: must be auto, always or never", s)
}

type styles struct {
	plain bool

	number    lipgloss.Style
	equal     lipgloss.Style
	added     lipgloss.Style
	removed   lipgloss.Style
	changed   lipgloss.Style
	highlight lipgloss.Style
	header    lipgloss.Style
	errorRow  lipgloss.Style
	subdir    lipgloss.Style
}

func newStyles(w io.Writer, mode ColorMode) styles {
	if mode == ColorNever {
		return styles{plain: true}
	}

	r := lipgloss.NewRenderer(w)
	if mode == ColorAlways {
		r.SetColorProfile(termenv.ANSI256)
	}
	base := r.NewStyle()

	return styles{
		number:    base.Copy().Faint(true),
		equal:     base,
		added:     base.Copy().Foreground(lipgloss.Color("34")),
		removed:   base.Copy().Foreground(lipgloss.Color("196")),
		changed:   base.Copy().Foreground(lipgloss.Color("178")),
		highlight: base.Copy().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("178")),
		header:    base.Copy().Bold(true),
		errorRow:  base.Copy().Foreground(lipgloss.Color("196")),
		subdir:    base.Copy().Foreground(lipgloss.Color("63")),
	}
}

func (s styles) render(st lipgloss.Style, text string) string {
	if s.plain || text == "" {
		return text
	}
	return st.Render(text)
}
