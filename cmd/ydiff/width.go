package main

import (
	"io"
	"os"
	"strconv"
)

const defaultWidth = 80

// outputWidth resolves the --width flag: a positive value wins, then the
// terminal size of w, then $COLUMNS.
func outputWidth(w io.Writer, flag int) int {
	if flag > 0 {
		return flag
	}
	if f, ok := w.(*os.File); ok {
		if cols, ok := terminalWidth(f); ok {
			return cols
		}
	}
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		return cols
	}
	return defaultWidth
}
