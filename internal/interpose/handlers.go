package interpose

import (
	"golang.org/x/sys/unix"

	"github.com/majorcontext/interpose/internal/symbols"
)

// DefaultMode is passed as the creation mode when the caller did not ask
// for file creation and therefore supplied no mode argument.
const DefaultMode uint32 = 0o700

// NeedsMode reports whether open flags carry a creation mode argument.
func NeedsMode(flags int) bool {
	return flags&unix.O_CREAT != 0 || flags&unix.O_TMPFILE == unix.O_TMPFILE
}

// EffectiveMode returns the mode to hand to the real open.
func EffectiveMode(flags int, mode uint32) uint32 {
	if NeedsMode(flags) {
		return mode
	}
	return DefaultMode
}

// strategy selects how a freshly opened descriptor is mapped to a path.
type strategy int

const (
	// byPath canonicalizes the path argument of the call.
	byPath strategy = iota
	// byDescriptor asks the kernel for the path behind the new descriptor,
	// for calls whose path is relative to another directory descriptor.
	byDescriptor
)

// openLike runs the real open call and, when it succeeds, starts a record
// for the new descriptor.
func (t *Tracer) openLike(op symbols.Op, how strategy, path string, flags int, call func() (int, error)) (int, error) {
	fd, err := call()
	if err != nil || fd < 0 {
		return fd, err
	}
	if !t.Enabled() {
		return fd, nil
	}
	if flags&unix.O_TMPFILE == unix.O_TMPFILE {
		// Anonymous inode: there is no path to report.
		return fd, nil
	}
	t.track(op, how, path, fd)
	return fd, nil
}

func (t *Tracer) track(op symbols.Op, how strategy, path string, fd int) {
	var (
		canonical string
		err       error
	)
	switch how {
	case byDescriptor:
		canonical, err = t.canon.ByDescriptor(fd)
	default:
		canonical, err = t.canon.ByPath(path)
	}
	if err != nil {
		t.log.Warn("unable to get real path", "op", op, "fd", fd, "error", err)
		return
	}
	if t.filter.Ignored(canonical) {
		return
	}
	if stale, ok := t.table.Lookup(fd); ok {
		t.log.Debug("replacing stale descriptor record", "fd", fd, "stale", stale.Path, "path", canonical)
	}
	if !t.table.Register(fd, canonical) {
		t.log.Debug("descriptor beyond table capacity", "fd", fd, "path", canonical, "capacity", t.table.Capacity())
	}
}

// closeLike retires the record of fd while the descriptor is still valid,
// then runs the real close.
func (t *Tracer) closeLike(fd int, call func() error) error {
	t.retireFD(fd)
	return call()
}

func (t *Tracer) retireFD(fd int) {
	if fd < 0 || !t.Enabled() {
		return
	}
	t.lifecycle.RLock()
	defer t.lifecycle.RUnlock()
	if !t.Enabled() {
		return
	}
	if rec, ok := t.table.Take(fd); ok {
		t.retire(fd, rec)
	}
}

// Open handles open and open64.
func (t *Tracer) Open(op symbols.Op, path string, flags int, mode uint32) (int, error) {
	mode = EffectiveMode(flags, mode)
	return t.openLike(op, byPath, path, flags, func() (int, error) {
		return t.calls.Open(op, path, flags, mode)
	})
}

// OpenAt handles openat and openat64.
func (t *Tracer) OpenAt(op symbols.Op, dirfd int, path string, flags int, mode uint32) (int, error) {
	mode = EffectiveMode(flags, mode)
	return t.openLike(op, byDescriptor, path, flags, func() (int, error) {
		return t.calls.OpenAt(op, dirfd, path, flags, mode)
	})
}

// Creat handles creat and creat64.
func (t *Tracer) Creat(op symbols.Op, path string, mode uint32) (int, error) {
	return t.openLike(op, byPath, path, unix.O_CREAT|unix.O_WRONLY|unix.O_TRUNC, func() (int, error) {
		return t.calls.Creat(op, path, mode)
	})
}

// Fopen handles fopen and fopen64.
func (t *Tracer) Fopen(op symbols.Op, path, mode string) (Stream, error) {
	var s Stream
	_, err := t.openLike(op, byPath, path, 0, func() (int, error) {
		var err error
		if s, err = t.calls.Fopen(op, path, mode); err != nil {
			return -1, err
		}
		return t.calls.Fileno(s), nil
	})
	return s, err
}

// Freopen handles freopen and freopen64. The real call always closes the
// stream's old descriptor, so its record is retired first. A nil path keeps
// the same file, which is then found through the new descriptor.
func (t *Tracer) Freopen(op symbols.Op, path *string, mode string, old Stream) (Stream, error) {
	if old != 0 {
		t.retireFD(t.calls.Fileno(old))
	}

	how, name := byDescriptor, ""
	if path != nil {
		how, name = byPath, *path
	}

	var s Stream
	_, err := t.openLike(op, how, name, 0, func() (int, error) {
		var err error
		if s, err = t.calls.Freopen(op, path, mode, old); err != nil {
			return -1, err
		}
		return t.calls.Fileno(s), nil
	})
	return s, err
}

// Close handles close.
func (t *Tracer) Close(fd int) error {
	return t.closeLike(fd, func() error {
		return t.calls.Close(fd)
	})
}

// Fclose handles fclose. A NULL stream is passed through untouched.
func (t *Tracer) Fclose(s Stream) error {
	fd := -1
	if s != 0 {
		fd = t.calls.Fileno(s)
	}
	return t.closeLike(fd, func() error {
		return t.calls.Fclose(s)
	})
}

// Read handles read. Only a positive count is accounted.
func (t *Tracer) Read(fd int, p []byte) (int, error) {
	n, err := t.calls.Read(fd, p)
	if n > 0 && t.Enabled() {
		t.table.AddRead(fd, uint64(n))
	}
	return n, err
}

// Write handles write. Only a positive count is accounted.
func (t *Tracer) Write(fd int, p []byte) (int, error) {
	n, err := t.calls.Write(fd, p)
	if n > 0 && t.Enabled() {
		t.table.AddWritten(fd, uint64(n))
	}
	return n, err
}
