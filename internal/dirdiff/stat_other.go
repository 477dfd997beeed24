//go:build !unix

package dirdiff

import (
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// statPath stats path, following symlinks. Without inode numbers the file
// id is derived from the resolved absolute path.
func statPath(path string) (fileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStat{}, err
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fileStat{}, err
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return fileStat{}, err
	}

	return fileStat{
		typ:  info.Mode().Type(),
		size: info.Size(),
		id:   fileID{ino: xxhash.Sum64String(abs)},
	}, nil
}
