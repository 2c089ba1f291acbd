// Package procstat collects the end-of-life resource snapshot of the traced
// process from procfs. Every source is optional: a file the running kernel
// does not provide is skipped without error.
package procstat

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/prometheus/procfs"

	"github.com/majorcontext/interpose/internal/trace"
)

// DefaultClockTicks is USER_HZ, the unit of the CPU times in /proc/<pid>/stat.
const DefaultClockTicks = 100

// Snapshot is the resource usage of the process at the time of collection.
type Snapshot struct {
	HasCPU bool
	UTime  float64 // seconds
	STime  float64 // seconds

	// Status holds the selected /proc/<pid>/status lines verbatim,
	// without trailing newline, in kernel order.
	Status []string

	IO *procfs.ProcIO
}

// Collector reads snapshots for the current process.
type Collector struct {
	ProcRoot   string
	ClockTicks int64
}

// NewCollector returns a Collector for /proc with the default tick rate.
func NewCollector() *Collector {
	return &Collector{ProcRoot: procfs.DefaultMountPoint, ClockTicks: DefaultClockTicks}
}

func (c *Collector) root() string {
	if c.ProcRoot == "" {
		return procfs.DefaultMountPoint
	}
	return c.ProcRoot
}

func (c *Collector) ticks() float64 {
	if c.ClockTicks <= 0 {
		return DefaultClockTicks
	}
	return float64(c.ClockTicks)
}

// Executable returns the absolute path of the running executable.
func (c *Collector) Executable() (string, error) {
	proc, err := c.self()
	if err != nil {
		return "", err
	}
	exe, err := proc.Executable()
	if err != nil {
		return "", fmt.Errorf("reading exe link: %w", err)
	}
	if exe == "" {
		return "", fmt.Errorf("reading exe link: %w", fs.ErrNotExist)
	}
	return exe, nil
}

func (c *Collector) self() (procfs.Proc, error) {
	pfs, err := procfs.NewFS(c.root())
	if err != nil {
		return procfs.Proc{}, fmt.Errorf("opening procfs: %w", err)
	}
	proc, err := pfs.Self()
	if err != nil {
		return procfs.Proc{}, fmt.Errorf("resolving /proc/self: %w", err)
	}
	return proc, nil
}

// Collect gathers whatever the kernel exposes. The returned snapshot is never
// nil; the error joins failures other than a missing source.
func (c *Collector) Collect() (*Snapshot, error) {
	snap := &Snapshot{}

	if _, err := os.Stat(c.root()); missing(err) {
		return snap, nil
	}
	proc, err := c.self()
	if err != nil {
		if missing(err) {
			return snap, nil
		}
		return snap, err
	}

	var errs []error

	if lines, err := c.statusLines(proc.PID); err == nil {
		snap.Status = lines
	} else if !missing(err) {
		errs = append(errs, fmt.Errorf("status: %w", err))
	}

	if stat, err := proc.Stat(); err == nil {
		snap.HasCPU = true
		snap.UTime = float64(stat.UTime) / c.ticks()
		snap.STime = float64(stat.STime) / c.ticks()
	} else if !missing(err) {
		errs = append(errs, fmt.Errorf("stat: %w", err))
	}

	// /proc/<pid>/io needs task I/O accounting in the kernel.
	if pio, err := proc.IO(); err == nil {
		snap.IO = &pio
	} else if !missing(err) {
		errs = append(errs, fmt.Errorf("io: %w", err))
	}

	return snap, errors.Join(errs...)
}

func (c *Collector) statusLines(pid int) ([]string, error) {
	f, err := os.Open(filepath.Join(c.root(), fmt.Sprint(pid), "status"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, _, ok := strings.Cut(line, ":")
		if ok && slices.Contains(trace.StatusKeys, key) {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// IOLines renders the I/O counters in the kernel's "key: value" form.
func (s *Snapshot) IOLines() []string {
	if s.IO == nil {
		return nil
	}
	values := map[string]uint64{
		"rchar":                 s.IO.RChar,
		"wchar":                 s.IO.WChar,
		"syscr":                 s.IO.SyscR,
		"syscw":                 s.IO.SyscW,
		"read_bytes":            s.IO.ReadBytes,
		"write_bytes":           s.IO.WriteBytes,
		"cancelled_write_bytes": uint64(s.IO.CancelledWriteBytes),
	}
	lines := make([]string, 0, len(trace.IOKeys))
	for _, key := range trace.IOKeys {
		lines = append(lines, fmt.Sprintf("%s: %d", key, values[key]))
	}
	return lines
}

// WriteTo emits the snapshot to sink: CPU times, then status, then I/O.
func (s *Snapshot) WriteTo(sink *trace.Sink) {
	if s.HasCPU {
		sink.EmitCPU(s.UTime, s.STime)
	}
	for _, line := range s.Status {
		sink.Emit(line)
	}
	for _, line := range s.IOLines() {
		sink.Emit(line)
	}
}

func missing(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
