package interpose

import (
	"golang.org/x/sys/unix"

	"github.com/majorcontext/interpose/internal/symbols"
)

// Dispatch sends each call to Bound when the next binding of its symbol
// resolves and to Fallback when it does not. Bound may assume the symbol of
// every call it receives has resolved.
type Dispatch struct {
	Resolver *symbols.Resolver
	Bound    Calls
	Fallback Calls
}

func (d *Dispatch) pick(op symbols.Op) Calls {
	if _, err := d.Resolver.Resolve(op); err != nil {
		return d.Fallback
	}
	return d.Bound
}

func (d *Dispatch) Open(op symbols.Op, path string, flags int, mode uint32) (int, error) {
	return d.pick(op).Open(op, path, flags, mode)
}

func (d *Dispatch) OpenAt(op symbols.Op, dirfd int, path string, flags int, mode uint32) (int, error) {
	return d.pick(op).OpenAt(op, dirfd, path, flags, mode)
}

func (d *Dispatch) Creat(op symbols.Op, path string, mode uint32) (int, error) {
	return d.pick(op).Creat(op, path, mode)
}

func (d *Dispatch) Fopen(op symbols.Op, path, mode string) (Stream, error) {
	return d.pick(op).Fopen(op, path, mode)
}

func (d *Dispatch) Freopen(op symbols.Op, path *string, mode string, s Stream) (Stream, error) {
	return d.pick(op).Freopen(op, path, mode, s)
}

// Fileno is not interposed, so it always goes to Bound.
func (d *Dispatch) Fileno(s Stream) int {
	return d.Bound.Fileno(s)
}

func (d *Dispatch) Close(fd int) error {
	return d.pick(symbols.Close).Close(fd)
}

func (d *Dispatch) Fclose(s Stream) error {
	return d.pick(symbols.Fclose).Fclose(s)
}

func (d *Dispatch) Read(fd int, p []byte) (int, error) {
	return d.pick(symbols.Read).Read(fd, p)
}

func (d *Dispatch) Write(fd int, p []byte) (int, error) {
	return d.pick(symbols.Write).Write(fd, p)
}

// Syscalls performs descriptor calls as raw system calls. Streams live in
// libc, so without a libc binding they fail with ENOSYS.
type Syscalls struct{}

func (Syscalls) Open(_ symbols.Op, path string, flags int, mode uint32) (int, error) {
	return unix.Open(path, flags, mode)
}

func (Syscalls) OpenAt(_ symbols.Op, dirfd int, path string, flags int, mode uint32) (int, error) {
	return unix.Openat(dirfd, path, flags, mode)
}

func (Syscalls) Creat(_ symbols.Op, path string, mode uint32) (int, error) {
	return unix.Creat(path, mode)
}

func (Syscalls) Fopen(symbols.Op, string, string) (Stream, error) {
	return 0, unix.ENOSYS
}

func (Syscalls) Freopen(symbols.Op, *string, string, Stream) (Stream, error) {
	return 0, unix.ENOSYS
}

func (Syscalls) Fileno(Stream) int { return -1 }

func (Syscalls) Close(fd int) error { return unix.Close(fd) }

func (Syscalls) Fclose(Stream) error { return unix.ENOSYS }

func (Syscalls) Read(fd int, p []byte) (int, error) { return unix.Read(fd, p) }

func (Syscalls) Write(fd int, p []byte) (int, error) { return unix.Write(fd, p) }

var (
	_ Calls = (*Dispatch)(nil)
	_ Calls = Syscalls{}
)
