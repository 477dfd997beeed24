package fbuf

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stdin is the path that names standard input.
const Stdin = "-"

// NeedsMaterialize reports whether path has to be copied into a temp file
// before an external tool can read it and rows can be re-read by offset:
// standard input, FIFOs and other non-regular files, and compressed files.
func NeedsMaterialize(path string) bool {
	if path == Stdin || isCompressed(path) {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.Mode().IsRegular()
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".bz2")
}

// Materialize copies path (decompressing .gz and .bz2) into a new temp
// file and rewinds it. The caller owns the result and must Close it.
func Materialize(path string) (*File, error) {
	var src io.Reader
	if path == Stdin {
		src = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		src = f

		switch {
		case strings.HasSuffix(path, ".gz"):
			zr, err := gzip.NewReader(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read gzip header: %w", err)
			}
			defer zr.Close()
			src = zr
		case strings.HasSuffix(path, ".bz2"):
			src = bzip2.NewReader(f)
		}
	}

	tmp, err := OpenTemp()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, BufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				tmp.Close()
				return nil, werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			tmp.Close()
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if err := tmp.Truncate(); err != nil {
		tmp.Close()
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, err
	}
	return tmp, nil
}
