package interpose

import "github.com/majorcontext/interpose/internal/symbols"

// Stream is an opaque C stdio stream (FILE *). Zero is the NULL stream.
type Stream uintptr

// Calls performs the real, untraced implementations of the interposed
// functions. The preload library backs it with the next libc binding of each
// symbol; tests substitute fakes.
//
// Failed calls return a syscall.Errno error so the caller can hand the exact
// errno back to the host.
type Calls interface {
	// Open performs open or open64, selected by op.
	Open(op symbols.Op, path string, flags int, mode uint32) (int, error)
	// OpenAt performs openat or openat64, selected by op.
	OpenAt(op symbols.Op, dirfd int, path string, flags int, mode uint32) (int, error)
	// Creat performs creat or creat64, selected by op.
	Creat(op symbols.Op, path string, mode uint32) (int, error)
	// Fopen performs fopen or fopen64, selected by op.
	Fopen(op symbols.Op, path, mode string) (Stream, error)
	// Freopen performs freopen or freopen64. A nil path reopens the
	// stream's current file with a new mode.
	Freopen(op symbols.Op, path *string, mode string, s Stream) (Stream, error)
	// Fileno returns the descriptor behind a stream, or -1.
	Fileno(s Stream) int

	Close(fd int) error
	Fclose(s Stream) error
	Read(fd int, p []byte) (int, error)
	Write(fd int, p []byte) (int, error)
}
