//go:build unix

package dirdiff

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

// statPath stats path, following symlinks.
func statPath(path string) (fileStat, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fileStat{}, &fs.PathError{Op: "stat", Path: path, Err: err}
	}

	var typ fs.FileMode
	switch uint32(st.Mode) & unix.S_IFMT {
	case unix.S_IFDIR:
		typ = fs.ModeDir
	case unix.S_IFREG:
		typ = 0
	case unix.S_IFIFO:
		typ = fs.ModeNamedPipe
	case unix.S_IFSOCK:
		typ = fs.ModeSocket
	case unix.S_IFCHR:
		typ = fs.ModeDevice | fs.ModeCharDevice
	case unix.S_IFBLK:
		typ = fs.ModeDevice
	default:
		typ = fs.ModeIrregular
	}

	return fileStat{
		typ:  typ,
		size: st.Size,
		id:   fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)},
	}, nil
}
