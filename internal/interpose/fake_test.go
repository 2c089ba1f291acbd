package interpose

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/majorcontext/interpose/internal/symbols"
)

// fakeCalls performs real system calls and records what it was asked to do.
// Streams are small integers mapped to descriptors.
type fakeCalls struct {
	mu      sync.Mutex
	calls   []string
	modes   []uint32
	streams map[Stream]int
	next    Stream

	// beforeClose runs inside Close/Fclose before the descriptor is closed.
	beforeClose func(fd int)
}

func newFakeCalls() *fakeCalls {
	return &fakeCalls{streams: make(map[Stream]int), next: 1}
}

func (f *fakeCalls) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *fakeCalls) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCalls) Modes() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.modes...)
}

func (f *fakeCalls) Open(op symbols.Op, path string, flags int, mode uint32) (int, error) {
	f.record("%s %s", op, path)
	f.mu.Lock()
	f.modes = append(f.modes, mode)
	f.mu.Unlock()
	return unix.Open(path, flags, mode)
}

func (f *fakeCalls) OpenAt(op symbols.Op, dirfd int, path string, flags int, mode uint32) (int, error) {
	f.record("%s %d %s", op, dirfd, path)
	f.mu.Lock()
	f.modes = append(f.modes, mode)
	f.mu.Unlock()
	return unix.Openat(dirfd, path, flags, mode)
}

func (f *fakeCalls) Creat(op symbols.Op, path string, mode uint32) (int, error) {
	f.record("%s %s", op, path)
	return unix.Creat(path, mode)
}

func streamFlags(mode string) int {
	switch {
	case strings.HasPrefix(mode, "r+"):
		return unix.O_RDWR
	case strings.HasPrefix(mode, "r"):
		return unix.O_RDONLY
	case strings.HasPrefix(mode, "w+"):
		return unix.O_RDWR | unix.O_CREAT | unix.O_TRUNC
	case strings.HasPrefix(mode, "w"):
		return unix.O_WRONLY | unix.O_CREAT | unix.O_TRUNC
	case strings.HasPrefix(mode, "a"):
		return unix.O_WRONLY | unix.O_CREAT | unix.O_APPEND
	}
	return unix.O_RDONLY
}

func (f *fakeCalls) Fopen(op symbols.Op, path, mode string) (Stream, error) {
	f.record("%s %s %s", op, path, mode)
	fd, err := unix.Open(path, streamFlags(mode), 0644)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.next
	f.next++
	f.streams[s] = fd
	return s, nil
}

func (f *fakeCalls) Freopen(op symbols.Op, path *string, mode string, s Stream) (Stream, error) {
	name := "<nil>"
	if path != nil {
		name = *path
	}
	f.record("%s %s %s", op, name, mode)

	f.mu.Lock()
	oldFD, ok := f.streams[s]
	f.mu.Unlock()
	if !ok {
		return 0, unix.EBADF
	}

	target := name
	if path == nil {
		target = "/proc/self/fd/" + strconv.Itoa(oldFD)
	}
	fd, err := unix.Open(target, streamFlags(mode), 0644)
	_ = unix.Close(oldFD)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		delete(f.streams, s)
		return 0, err
	}
	f.streams[s] = fd
	return s, nil
}

func (f *fakeCalls) Fileno(s Stream) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fd, ok := f.streams[s]; ok {
		return fd
	}
	return -1
}

func (f *fakeCalls) Close(fd int) error {
	f.record("close %d", fd)
	if f.beforeClose != nil {
		f.beforeClose(fd)
	}
	return unix.Close(fd)
}

func (f *fakeCalls) Fclose(s Stream) error {
	f.record("fclose %d", s)
	f.mu.Lock()
	fd, ok := f.streams[s]
	delete(f.streams, s)
	f.mu.Unlock()
	if !ok {
		return unix.EBADF
	}
	if f.beforeClose != nil {
		f.beforeClose(fd)
	}
	return unix.Close(fd)
}

func (f *fakeCalls) Read(fd int, p []byte) (int, error) {
	return unix.Read(fd, p)
}

func (f *fakeCalls) Write(fd int, p []byte) (int, error) {
	return unix.Write(fd, p)
}

var _ Calls = (*fakeCalls)(nil)
