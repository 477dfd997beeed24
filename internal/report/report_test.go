package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ydiff/internal/diffop"
	"ydiff/internal/dirdiff"
	"ydiff/internal/hdiff"
	"ydiff/internal/reconcile"
)

type source struct {
	res *reconcile.Result
}

func (s source) Result() *reconcile.Result { return s.res }

func (s source) Brackets(row int) ([]hdiff.Bracket, error) {
	l, _ := s.res.Text(diffop.Left, row)
	r, _ := s.res.Text(diffop.Right, row)
	return hdiff.Scan(l, r, hdiff.MinContext, hdiff.Depth), nil
}

func reconcilePair(t *testing.T, left, right, script string) ([]diffop.Op, *reconcile.Result) {
	t.Helper()
	dir := t.TempDir()
	lp := filepath.Join(dir, "left")
	rp := filepath.Join(dir, "right")
	require.NoError(t, os.WriteFile(lp, []byte(left), 0644))
	require.NoError(t, os.WriteFile(rp, []byte(right), 0644))

	ops, err := diffop.Parse(strings.NewReader(script))
	require.NoError(t, err)
	res, err := reconcile.ReconcileFiles(context.Background(), ops, lp, rp, reconcile.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { res.Close() })
	return ops, res
}

func TestSideBySide_Plain(t *testing.T) {
	_, res := reconcilePair(t, "a\nb\nc\n", "a\nx\nc\n", "2c2\n")

	var buf bytes.Buffer
	err := SideBySide(&buf, source{res}, SideBySideOptions{Width: 40, Color: ColorNever, Context: -1})
	require.NoError(t, err)

	// width 40: four digit numbers, eleven columns of text per side
	want := []string{
		fmt.Sprintf("%4d %c %-11s │ %4d %c %s", 1, ' ', "a", 1, ' ', "a"),
		fmt.Sprintf("%4d %c %-11s │ %4d %c %s", 2, '*', "b", 2, '*', "x"),
		fmt.Sprintf("%4d %c %-11s │ %4d %c %s", 3, ' ', "c", 3, ' ', "c"),
	}
	assert.Equal(t, strings.Join(want, "\n")+"\n", buf.String())
}

func TestSideBySide_PaddingAndTitles(t *testing.T) {
	_, res := reconcilePair(t, "a\nc\n", "a\nb\nc\n", "1a2\n")

	var buf bytes.Buffer
	err := SideBySide(&buf, source{res}, SideBySideOptions{
		Width:      40,
		Color:      ColorNever,
		Context:    -1,
		LeftTitle:  "old",
		RightTitle: "new",
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "old "))
	assert.True(t, strings.HasSuffix(lines[0], "│ new"))
	assert.Equal(t, fmt.Sprintf("%4s %c %-11s │ %4d %c %s", "", ' ', "", 2, '+', "b"), lines[2])
}

func TestSideBySide_LeftOnlyLine(t *testing.T) {
	_, res := reconcilePair(t, "a\nb\n", "a\n", "2d1\n")

	var buf bytes.Buffer
	require.NoError(t, SideBySide(&buf, source{res}, SideBySideOptions{Width: 40, Color: ColorNever, Context: -1}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, fmt.Sprintf("%4d %c %-11s │", 2, '-', "b"), lines[1])
}

func TestSideBySide_Context(t *testing.T) {
	left := "1\n2\n3\n4\n5\n6\n7\n8\n9\n"
	right := "1\n2\n3\n4\nX\n6\n7\n8\n9\n"
	_, res := reconcilePair(t, left, right, "5c5\n")

	var buf bytes.Buffer
	require.NoError(t, SideBySide(&buf, source{res}, SideBySideOptions{Width: 40, Color: ColorNever, Context: 1}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "   4   4")
	assert.Contains(t, lines[1], "X")
	assert.Contains(t, lines[2], "   6   6")
}

func TestVisibleRows_SeparatesDistantHunks(t *testing.T) {
	left := "1\n2\n3\n4\n5\n6\n7\n8\n9\n"
	right := "X\n2\n3\n4\n5\n6\n7\n8\nY\n"
	_, res := reconcilePair(t, left, right, "1c1\n9c9\n")

	assert.Equal(t, []int{0, 1, 7, 8}, visibleRows(res, 1))
	assert.Len(t, visibleRows(res, -1), 9)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, visibleRows(res, 4))
}

func TestSideBySide_ColorAlways(t *testing.T) {
	_, res := reconcilePair(t, "hello world\n", "hello there\n", "1c1\n")

	var buf bytes.Buffer
	require.NoError(t, SideBySide(&buf, source{res}, SideBySideOptions{Width: 60, Color: ColorAlways, Context: -1}))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestTextCell(t *testing.T) {
	st := styles{plain: true}
	base := lipgloss.NewStyle()

	tests := []struct {
		name  string
		line  string
		width int
		want  string
	}{
		{"pads", "ab\n", 5, "ab   "},
		{"truncates", "abcdefghijklmnop\n", 11, "abcdefghij…"},
		{"exact fit", "abcde", 5, "abcde"},
		{"tabs", "a\tb", 12, "a       b   "},
		{"wide runes", "日本語", 5, "日本…"},
		{"control", "a\x01b\r\n", 4, "a?b "},
		{"invalid utf8", "a\xffb", 3, "a?b"},
	}

	for _, tt := range tests {
		got := textCell(st, []byte(tt.line), nil, tt.width, base)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestNormal(t *testing.T) {
	ops, res := reconcilePair(t, "a\nb\nc\nd", "a\nx\nc\n", "2c2\n4d3\n")

	var buf bytes.Buffer
	require.NoError(t, Normal(&buf, ops, nil))
	assert.Equal(t, "2c2\n4d3\n", buf.String())

	buf.Reset()
	require.NoError(t, Normal(&buf, ops, res))
	want := "2c2\n< b\n---\n> x\n4d3\n< d\n\\ No newline at end of file\n"
	assert.Equal(t, want, buf.String())
}

func TestNormal_Insertion(t *testing.T) {
	ops, res := reconcilePair(t, "a\nc\n", "a\nb\nb2\nc\n", "1a2,3\n")

	var buf bytes.Buffer
	require.NoError(t, Normal(&buf, ops, res))
	assert.Equal(t, "1a2,3\n> b\n> b2\n", buf.String())
}

func dirEntries() []dirdiff.Entry {
	return []dirdiff.Entry{
		{Kind: dirdiff.Equal, Left: "a.txt", Right: "a.txt", Regular: true, LeftSize: 10, RightSize: 10},
		{Kind: dirdiff.Changed, Left: "b.txt", Right: "b.txt", Regular: true, LeftSize: 2048, RightSize: 100},
		{Kind: dirdiff.Subdir, Left: "sub", Right: "sub", Expanded: true},
		{Kind: dirdiff.Added, Right: filepath.Join("sub", "new"), Depth: 1},
		{Kind: dirdiff.Error, Left: "loop", Right: "loop", Err: errors.New("directory cycle")},
	}
}

func TestDirectory(t *testing.T) {
	var buf bytes.Buffer
	err := Directory(&buf, dirEntries(), DirectoryOptions{
		Color: ColorNever,
		Lines: map[string]reconcile.Stats{"b.txt": {Added: 1, Deleted: 2, Changed: 3}},
	})
	require.NoError(t, err)

	want := strings.Join([]string{
		"~ b.txt (+1 -2 ~3)",
		"/ sub/",
		"  + " + filepath.Join("sub", "new"),
		"! loop: directory cycle",
		"1 equal, 1 added, 0 deleted, 1 changed, 1 errors",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())

	buf.Reset()
	require.NoError(t, Directory(&buf, dirEntries(), DirectoryOptions{Color: ColorNever, ShowEqual: true}))
	assert.True(t, strings.HasPrefix(buf.String(), "= a.txt\n"))
}

func TestDirectoryDocument(t *testing.T) {
	doc := DirectoryDocument("L", "R", "abcd", dirEntries(),
		map[string]reconcile.Stats{"b.txt": {Changed: 1}},
		map[string]error{"z": errors.New("boom"), "y": errors.New("bang")})

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "ydiff", got["generator"])
	assert.Equal(t, "abcd", got["fingerprint"])
	assert.Equal(t, false, got["identical"])

	entries := got["entries"].([]any)
	require.Len(t, entries, 5)
	changed := entries[1].(map[string]any)
	assert.Equal(t, "changed", changed["kind"])
	assert.Equal(t, "2.00 KB", changed["left_size"])
	assert.Equal(t, "100 B", changed["right_size"])
	assert.Equal(t, float64(1), changed["lines"].(map[string]any)["changed"])
	assert.Equal(t, "directory cycle", entries[4].(map[string]any)["error"])

	failures := got["failures"].([]any)
	require.Len(t, failures, 2)
	assert.Equal(t, "y", failures[0].(map[string]any)["path"])

	summary := got["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["subdirs"])
	assert.Equal(t, float64(0), summary["unexpanded"])
}

func TestDirectory_Unexpanded(t *testing.T) {
	entries := []dirdiff.Entry{{Kind: dirdiff.Subdir, Left: "sub", Right: "sub"}}

	var buf bytes.Buffer
	require.NoError(t, Directory(&buf, entries, DirectoryOptions{Color: ColorNever}))
	assert.Equal(t, "/ sub/\n0 equal, 0 added, 0 deleted, 0 changed, 0 errors, 1 not expanded\n", buf.String())

	doc := DirectoryDocument("L", "R", "", entries, nil, nil)
	assert.False(t, doc.Identical)
	assert.Equal(t, 1, doc.Summary.Unexpanded)
}

func TestFileDocument(t *testing.T) {
	ops, res := reconcilePair(t, "a\nb\n", "a\nx\ny\n", "2c2,3\n")

	doc := FileDocument("l", "r", "ff", ops, res)
	assert.False(t, doc.Identical)
	assert.Equal(t, []string{"2c2,3"}, doc.Ops)
	assert.Equal(t, &LineStats{Changed: 2}, doc.Stats)
	assert.Nil(t, doc.Summary)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.50 KB", formatSize(1536))
	assert.Equal(t, "2.00 MB", formatSize(2*1024*1024))
	assert.Equal(t, "1.00 GB", formatSize(1024*1024*1024))
}

func TestParseColorMode(t *testing.T) {
	m, err := ParseColorMode("always")
	require.NoError(t, err)
	assert.Equal(t, ColorAlways, m)

	_, err = ParseColorMode("sometimes")
	assert.Error(t, err)
}
