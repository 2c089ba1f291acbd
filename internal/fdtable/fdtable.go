// Package fdtable keeps per-descriptor I/O accounting for traced files.
package fdtable

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/sys/unix"
)

// Record is the accounting state of one open descriptor.
type Record struct {
	Path         string
	BytesRead    uint64
	BytesWritten uint64
}

// Entry pairs a drained record with its descriptor number.
type Entry struct {
	FD     int
	Record Record
}

// Table maps descriptor numbers to records. Descriptors outside
// [0, Capacity) are never tracked.
type Table struct {
	mu       sync.Mutex
	capacity int
	records  map[int]*Record
}

// New creates a table for descriptors below capacity.
func New(capacity int) *Table {
	if capacity < 0 {
		capacity = 0
	}
	return &Table{
		capacity: capacity,
		records:  make(map[int]*Record),
	}
}

// LimitCapacity returns the hard RLIMIT_NOFILE of the process, the largest
// descriptor count it can ever reach.
func LimitCapacity() (int, error) {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return 0, fmt.Errorf("getrlimit RLIMIT_NOFILE: %w", err)
	}
	if lim.Max == unix.RLIM_INFINITY || lim.Max > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	return int(lim.Max), nil
}

// Capacity returns the descriptor bound of the table.
func (t *Table) Capacity() int {
	return t.capacity
}

func (t *Table) inRange(fd int) bool {
	return fd >= 0 && fd < t.capacity
}

// Register starts a zeroed record for fd, replacing any stale one.
// It reports false when fd is outside the table.
func (t *Table) Register(fd int, path string) bool {
	if !t.inRange(fd) {
		return false
	}
	t.mu.Lock()
	t.records[fd] = &Record{Path: path}
	t.mu.Unlock()
	return true
}

// AddRead adds n to the bytes read on fd, if it is tracked.
func (t *Table) AddRead(fd int, n uint64) {
	t.mu.Lock()
	if r, ok := t.records[fd]; ok {
		r.BytesRead += n
	}
	t.mu.Unlock()
}

// AddWritten adds n to the bytes written on fd, if it is tracked.
func (t *Table) AddWritten(fd int, n uint64) {
	t.mu.Lock()
	if r, ok := t.records[fd]; ok {
		r.BytesWritten += n
	}
	t.mu.Unlock()
}

// Take removes the record for fd and returns it.
func (t *Table) Take(fd int) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[fd]
	if !ok {
		return Record{}, false
	}
	delete(t.records, fd)
	return *r, true
}

// Lookup returns a copy of the record for fd without removing it.
func (t *Table) Lookup(fd int) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[fd]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Drain removes every live record and returns them by ascending descriptor.
func (t *Table) Drain() []Entry {
	t.mu.Lock()
	entries := make([]Entry, 0, len(t.records))
	for fd, r := range t.records {
		entries = append(entries, Entry{FD: fd, Record: *r})
	}
	clear(t.records)
	t.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].FD < entries[j].FD })
	return entries
}

// Len returns the number of live records.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
