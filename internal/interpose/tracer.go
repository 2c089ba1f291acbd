// Package interpose is the accounting engine of the preload library: the
// per-process Tracer context, its start/stop lifecycle, and the handlers the
// interposed libc entry points forward to.
//
// A Tracer moves through Uninitialized, Active, Finalizing and Closed.
// Descriptor records are only created or updated while Active; in every other
// state the handlers simply perform the real call.
package interpose

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/majorcontext/interpose/internal/config"
	"github.com/majorcontext/interpose/internal/fdtable"
	"github.com/majorcontext/interpose/internal/log"
	"github.com/majorcontext/interpose/internal/pathcanon"
	"github.com/majorcontext/interpose/internal/procstat"
	"github.com/majorcontext/interpose/internal/trace"
)

// State is the lifecycle state of a Tracer.
type State int32

const (
	Uninitialized State = iota
	Active
	Finalizing
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Finalizing:
		return "finalizing"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// DefaultCapacity sizes the descriptor table when RLIMIT_NOFILE is unreadable.
const DefaultCapacity = 1024

// Options configures a Tracer. Zero fields take production defaults.
type Options struct {
	Config        *config.Config
	PID           int
	Canonicalizer *pathcanon.Canonicalizer
	Collector     *procstat.Collector
	Capacity      func() (int, error)
	Now           func() time.Time
	Stat          func(string) (fs.FileInfo, error)
	Logger        *slog.Logger
}

// Tracer is the per-process tracing context.
type Tracer struct {
	calls     Calls
	cfg       *config.Config
	pid       int
	canon     *pathcanon.Canonicalizer
	filter    *pathcanon.Filter
	collector *procstat.Collector
	capacity  func() (int, error)
	now       func() time.Time
	stat      func(string) (fs.FileInfo, error)
	log       *slog.Logger

	// Held exclusively by Start and Stop and shared by retireFD, so a close
	// racing Stop emits its file: line before stop: or not at all.
	lifecycle sync.RWMutex
	state     atomic.Int32

	// Set once in Start, before the state becomes Active.
	sink  *trace.Sink
	table *fdtable.Table
}

// New creates an Uninitialized tracer that performs real I/O through calls.
func New(calls Calls, opts Options) *Tracer {
	t := &Tracer{
		calls:     calls,
		cfg:       opts.Config,
		pid:       opts.PID,
		canon:     opts.Canonicalizer,
		collector: opts.Collector,
		capacity:  opts.Capacity,
		now:       opts.Now,
		stat:      opts.Stat,
		log:       opts.Logger,
	}
	if t.cfg == nil {
		t.cfg = config.Default()
	}
	if t.pid == 0 {
		t.pid = os.Getpid()
	}
	if t.canon == nil {
		t.canon = pathcanon.New()
	}
	if t.collector == nil {
		t.collector = procstat.NewCollector()
	}
	if t.capacity == nil {
		t.capacity = fdtable.LimitCapacity
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.stat == nil {
		t.stat = os.Stat
	}
	if t.log == nil {
		t.log = log.Logger()
	}
	t.filter = pathcanon.NewFilter(t.cfg.FilterPrefixes)
	return t
}

// State returns the current lifecycle state.
func (t *Tracer) State() State {
	return State(t.state.Load())
}

// Enabled reports whether calls are currently being accounted.
func (t *Tracer) Enabled() bool {
	return t.State() == Active && t.sink != nil
}

// TracePath returns the trace file being written, or "" when disabled.
func (t *Tracer) TracePath() string {
	return t.sink.Path()
}

// Start opens the trace sink, sizes the descriptor table and emits the exe:
// and start: lines. Setup failures disable tracing but are not returned:
// the host must keep running. Start returns an error only when called twice.
func (t *Tracer) Start() error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	if s := t.State(); s != Uninitialized {
		return fmt.Errorf("tracer start: already %s", s)
	}

	if prefix, err := t.cfg.TracePrefix(); err != nil {
		t.log.Warn("unable to open trace file", "error", err)
	} else if sink, err := trace.Open(trace.PathFor(prefix, t.pid)); err != nil {
		t.log.Warn("unable to open trace file", "error", err)
	} else {
		t.sink = sink
	}

	capacity, err := t.capacity()
	if err != nil {
		t.log.Warn("unable to read descriptor limit", "error", err, "capacity", DefaultCapacity)
		capacity = DefaultCapacity
	}
	t.table = fdtable.New(capacity)

	if t.sink != nil {
		if exe, err := t.collector.Executable(); err == nil {
			t.sink.EmitExe(exe)
		} else if !errors.Is(err, fs.ErrNotExist) {
			t.log.Warn("unable to read executable path", "error", err)
		}
		t.sink.EmitStart(t.now())
	}

	t.state.Store(int32(Active))
	t.log.Debug("tracer started", "pid", t.pid, "trace", t.TracePath(), "capacity", capacity, "filter", t.filter.Prefixes())
	return nil
}

// Stop retires every descriptor the host never closed, emits the resource
// snapshot and the stop: line, and closes the sink. Only the first call after
// Start does anything.
func (t *Tracer) Stop() error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	if t.State() != Active {
		return nil
	}
	t.state.Store(int32(Finalizing))

	unclosed := t.table.Len()
	for _, e := range t.table.Drain() {
		t.retire(e.FD, e.Record)
	}

	if t.sink != nil {
		snap, err := t.collector.Collect()
		if err != nil {
			t.log.Warn("incomplete resource snapshot", "error", err)
		}
		snap.WriteTo(t.sink)
		t.sink.EmitStop(t.now())
	}

	var err error
	if cerr := t.sink.Close(); cerr != nil {
		err = fmt.Errorf("closing trace file: %w", cerr)
	}
	t.state.Store(int32(Closed))
	t.log.Debug("tracer stopped", "pid", t.pid, "trace", t.TracePath(), "unclosed", unclosed)
	return err
}

// retire writes the file: line of a record already removed from the table.
func (t *Tracer) retire(fd int, rec fdtable.Record) {
	info, err := t.stat(rec.Path)
	if err != nil {
		t.log.Warn("unable to stat traced file", "fd", fd, "path", rec.Path, "error", err)
		return
	}
	t.sink.EmitFile(trace.FileEvent{
		Path:         rec.Path,
		Size:         info.Size(),
		BytesRead:    rec.BytesRead,
		BytesWritten: rec.BytesWritten,
	})
}
