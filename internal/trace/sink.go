package trace

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// PathFor returns the trace file name for a process: "<prefix>.<pid>".
func PathFor(prefix string, pid int) string {
	return fmt.Sprintf("%s.%d", prefix, pid)
}

// Sink is an append-only trace writer. All methods are safe on a nil *Sink
// and do nothing, which is how a disabled trace behaves.
type Sink struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	closed   bool
	writeErr error
}

// Open creates (or truncates) the trace file at path.
func Open(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	return &Sink{file: f, path: path}, nil
}

// Path returns the file the sink writes to.
func (s *Sink) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Emit writes one line. A trailing newline is added when missing. Each line
// is a single write so concurrent emitters never interleave within a line.
func (s *Sink) Emit(line string) {
	if s == nil {
		return
	}
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, err := s.file.WriteString(line); err != nil && s.writeErr == nil {
		// Reported once; later failures on a broken sink are expected.
		s.writeErr = err
		slog.Warn("trace write failed", "path", s.path, "error", err)
	}
}

// EmitExe writes the exe: line.
func (s *Sink) EmitExe(path string) {
	s.Emit(labelLine(LabelExe, path))
}

// EmitStart writes the start: line.
func (s *Sink) EmitStart(t time.Time) {
	s.Emit(labelLine(LabelStart, formatFloat(Epoch(t))))
}

// EmitStop writes the stop: line.
func (s *Sink) EmitStop(t time.Time) {
	s.Emit(labelLine(LabelStop, formatFloat(Epoch(t))))
}

// EmitFile writes a file: line.
func (s *Sink) EmitFile(e FileEvent) {
	s.Emit(e.Line())
}

// EmitCPU writes the utime: and stime: lines.
func (s *Sink) EmitCPU(utime, stime float64) {
	s.Emit(labelLine(LabelUTime, formatFloat(utime)))
	s.Emit(labelLine(LabelSTime, formatFloat(stime)))
}

// Err returns the first write error, if any.
func (s *Sink) Err() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeErr
}

// Close closes the file. Later emissions are dropped.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
