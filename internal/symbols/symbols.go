// Package symbols resolves the next binding of the interposed libc functions.
//
// Each operation is looked up once for the lifetime of the process. The
// lookup backend is pluggable so tests can count and fake resolutions; the
// preload library wires it to dlsym(RTLD_NEXT, name).
package symbols

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/majorcontext/interpose/internal/log"
)

// Op identifies one interposed function.
type Op int

const (
	Open Op = iota
	Open64
	OpenAt
	OpenAt64
	Creat
	Creat64
	Fopen
	Fopen64
	Freopen
	Freopen64
	Close
	Fclose
	Read
	Write

	numOps
)

var names = [numOps]string{
	Open:      "open",
	Open64:    "open64",
	OpenAt:    "openat",
	OpenAt64:  "openat64",
	Creat:     "creat",
	Creat64:   "creat64",
	Fopen:     "fopen",
	Fopen64:   "fopen64",
	Freopen:   "freopen",
	Freopen64: "freopen64",
	Close:     "close",
	Fclose:    "fclose",
	Read:      "read",
	Write:     "write",
}

// String returns the C symbol name of the operation.
func (o Op) String() string {
	if o < 0 || o >= numOps {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return names[o]
}

// ParseOp returns the operation for a C symbol name.
func ParseOp(name string) (Op, bool) {
	for o := Op(0); o < numOps; o++ {
		if names[o] == name {
			return o, true
		}
	}
	return 0, false
}

// ErrNotFound is returned when the backend has no next binding for a symbol.
var ErrNotFound = errors.New("symbol not found")

// Lookup finds the address of the next definition of a symbol.
type Lookup func(name string) (uintptr, error)

type entry struct {
	addr uintptr
	err  error
	done bool
}

// Resolver memoizes lookups per operation.
type Resolver struct {
	lookup  Lookup
	log     *slog.Logger
	mu      sync.Mutex
	entries [numOps]entry
}

// NewResolver creates a resolver backed by lookup. A failed lookup is
// reported once on logger; nil means the package logger.
func NewResolver(lookup Lookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = log.Logger()
	}
	return &Resolver{lookup: lookup, log: logger}
}

// Resolve returns the address of the real implementation of op. The backend
// runs at most once per op; failures are cached as well.
func (r *Resolver) Resolve(op Op) (uintptr, error) {
	if op < 0 || op >= numOps {
		return 0, fmt.Errorf("resolve %s: unknown operation", op)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e := &r.entries[op]
	if !e.done {
		addr, err := r.lookup(op.String())
		if err == nil && addr == 0 {
			err = ErrNotFound
		}
		if err != nil {
			err = fmt.Errorf("resolve %s: %w", op, err)
			r.log.Warn("resolving real symbol", "op", op.String(), "error", err)
		}
		e.addr, e.err, e.done = addr, err, true
	}
	return e.addr, e.err
}
