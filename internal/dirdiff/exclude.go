package dirdiff

import (
	"path/filepath"
	"strings"
)

// excluded reports whether the entry at relPath matches one of the
// patterns. A pattern ending in "/" applies to directories only and is
// matched against every path component. Other patterns match the base name,
// or the whole relative path when they contain a slash.
func excluded(relPath string, isDir bool, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			if !isDir {
				continue
			}
			dirPattern := strings.TrimSuffix(pattern, "/")
			for _, part := range strings.Split(relPath, string(filepath.Separator)) {
				if matched, _ := filepath.Match(dirPattern, part); matched || part == dirPattern {
					return true
				}
			}
			continue
		}

		if matched, err := filepath.Match(pattern, filepath.Base(relPath)); err == nil && matched {
			return true
		}
		if strings.Contains(pattern, "/") {
			if matched, err := filepath.Match(pattern, filepath.ToSlash(relPath)); err == nil && matched {
				return true
			}
		}
	}
	return false
}
