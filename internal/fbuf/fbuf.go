package fbuf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// BufferSize is the read-ahead window. Diff replay seeks back and forth
// within a few of these, so keep it in line with the block size used for
// file comparison.
const BufferSize = 32 * 1024

// maxStderr bounds how much of a child's stderr is kept for error messages.
const maxStderr = 4 * 1024

var (
	ErrSeekPipe  = errors.New("cannot seek outside the buffer of a pipe")
	ErrClosed    = errors.New("file already closed")
	ErrNegOffset = errors.New("negative offset")
)

// File is a buffered reader/writer over a plain file, a temp file or the
// stdout of a child process.
type File struct {
	f    *os.File
	buf  []byte
	pos  int   // next unread byte in buf
	n    int   // valid bytes in buf
	off  int64 // file offset of buf[0]
	name string

	temp   bool
	cmd    *exec.Cmd
	stderr *limitedBuffer
	status int
	closed bool

	seeks int
}

// Open opens path with the given os.O_* flags.
func Open(path string, flag int) (*File, error) {
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return newFile(f, path), nil
}

// OpenTemp creates a scratch file that is removed on Close.
func OpenTemp() (*File, error) {
	f, err := os.CreateTemp("", "ydiff-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	fb := newFile(f, f.Name())
	fb.temp = true
	return fb, nil
}

// OpenPipe starts name with args and returns a File reading its stdout.
// Close waits for the process; ExitStatus reports how it ended.
func OpenPipe(ctx context.Context, name string, args ...string) (*File, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}

	stderr := &limitedBuffer{max: maxStderr}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = pw
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	// the child holds its own copy of the write end
	pw.Close()

	fb := newFile(pr, name)
	fb.cmd = cmd
	fb.stderr = stderr
	fb.status = -1
	return fb, nil
}

func newFile(f *os.File, name string) *File {
	return &File{
		f:    f,
		buf:  make([]byte, BufferSize),
		name: name,
	}
}

// Name returns the path (or command name for pipes).
func (fb *File) Name() string {
	return fb.name
}

// IsPipe reports whether fb reads from a child process.
func (fb *File) IsPipe() bool {
	return fb.cmd != nil
}

// Seeks returns how many times the underlying descriptor was repositioned.
func (fb *File) Seeks() int {
	return fb.seeks
}

// Offset returns the logical read/write position.
func (fb *File) Offset() int64 {
	return fb.off + int64(fb.pos)
}

func (fb *File) fill() error {
	fb.off += int64(fb.n)
	fb.pos, fb.n = 0, 0
	n, err := fb.f.Read(fb.buf)
	fb.n = n
	if n > 0 {
		return nil
	}
	if err == nil {
		return io.ErrNoProgress
	}
	return err
}

// Read copies up to len(p) bytes. It returns 0, io.EOF at end of input.
func (fb *File) Read(p []byte) (int, error) {
	if fb.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if fb.pos >= fb.n {
		if err := fb.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, fb.buf[fb.pos:fb.n])
	fb.pos += n
	return n, nil
}

// ReadLine copies bytes up to and including the next '\n' into p. It
// returns fewer bytes when p is full or input ends without a newline, and
// 0, io.EOF at end of input.
func (fb *File) ReadLine(p []byte) (int, error) {
	if fb.closed {
		return 0, ErrClosed
	}
	total := 0
	for total < len(p) {
		if fb.pos >= fb.n {
			if err := fb.fill(); err != nil {
				if total > 0 && err == io.EOF {
					return total, nil
				}
				return total, err
			}
		}
		chunk := fb.buf[fb.pos:fb.n]
		if room := len(p) - total; len(chunk) > room {
			chunk = chunk[:room]
		}
		if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
			chunk = chunk[:i+1]
			total += copy(p[total:], chunk)
			fb.pos += len(chunk)
			return total, nil
		}
		total += copy(p[total:], chunk)
		fb.pos += len(chunk)
	}
	return total, nil
}

// AppendLine appends one whole line (including its '\n', if any) to dst.
// It returns io.EOF only when no byte was read.
func (fb *File) AppendLine(dst []byte) ([]byte, error) {
	if fb.closed {
		return dst, ErrClosed
	}
	start := len(dst)
	for {
		if fb.pos >= fb.n {
			if err := fb.fill(); err != nil {
				if err == io.EOF && len(dst) > start {
					return dst, nil
				}
				return dst, err
			}
		}
		chunk := fb.buf[fb.pos:fb.n]
		if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
			dst = append(dst, chunk[:i+1]...)
			fb.pos += i + 1
			return dst, nil
		}
		dst = append(dst, chunk...)
		fb.pos = fb.n
	}
}

// Seek repositions the logical offset. A target inside the current buffer
// is served without touching the descriptor.
func (fb *File) Seek(offset int64, whence int) (int64, error) {
	if fb.closed {
		return 0, ErrClosed
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = fb.Offset() + offset
	case io.SeekEnd:
		if fb.IsPipe() {
			return 0, ErrSeekPipe
		}
		info, err := fb.f.Stat()
		if err != nil {
			return 0, fmt.Errorf("failed to stat file: %w", err)
		}
		target = info.Size() + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if target < 0 {
		return 0, ErrNegOffset
	}

	if target >= fb.off && target <= fb.off+int64(fb.n) {
		fb.pos = int(target - fb.off)
		return target, nil
	}
	if fb.IsPipe() {
		return 0, ErrSeekPipe
	}

	if _, err := fb.f.Seek(target, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek: %w", err)
	}
	fb.seeks++
	fb.off, fb.pos, fb.n = target, 0, 0
	return target, nil
}

// sync moves the descriptor to the logical offset and drops read-ahead.
func (fb *File) sync() error {
	if fb.pos == fb.n {
		fb.off += int64(fb.n)
		fb.pos, fb.n = 0, 0
		return nil
	}
	target := fb.Offset()
	if _, err := fb.f.Seek(target, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	fb.seeks++
	fb.off, fb.pos, fb.n = target, 0, 0
	return nil
}

// Write writes p at the logical offset.
func (fb *File) Write(p []byte) (int, error) {
	if fb.closed {
		return 0, ErrClosed
	}
	if fb.IsPipe() {
		return 0, fmt.Errorf("failed to write: %w", os.ErrInvalid)
	}
	if err := fb.sync(); err != nil {
		return 0, err
	}
	n, err := fb.f.Write(p)
	fb.off += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write: %w", err)
	}
	return n, nil
}

// Truncate cuts the file at the logical offset.
func (fb *File) Truncate() error {
	if fb.closed {
		return ErrClosed
	}
	if fb.IsPipe() {
		return fmt.Errorf("failed to truncate: %w", os.ErrInvalid)
	}
	if err := fb.sync(); err != nil {
		return err
	}
	if err := fb.f.Truncate(fb.off); err != nil {
		return fmt.Errorf("failed to truncate: %w", err)
	}
	return nil
}

// Close releases the descriptor. For pipes it waits for the child and
// records its exit status; a non-zero exit is not an error here. Temp
// files are removed.
func (fb *File) Close() error {
	if fb.closed {
		return ErrClosed
	}
	fb.closed = true
	closeErr := fb.f.Close()

	if fb.cmd != nil {
		err := fb.cmd.Wait()
		if fb.cmd.ProcessState != nil {
			fb.status = fb.cmd.ProcessState.ExitCode()
		}
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return fmt.Errorf("failed to wait for %s: %w", fb.name, err)
		}
		return nil
	}

	if fb.temp {
		if err := os.Remove(fb.name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove temp file: %w", err)
		}
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close file: %w", closeErr)
	}
	return nil
}

// ExitStatus returns the child's exit code after Close, or -1 when the
// child was killed, has not been waited for, or fb is not a pipe.
func (fb *File) ExitStatus() int {
	if fb.cmd == nil {
		return -1
	}
	return fb.status
}

// Stderr returns what the child wrote to stderr (truncated).
func (fb *File) Stderr() string {
	if fb.stderr == nil {
		return ""
	}
	return fb.stderr.String()
}

type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
