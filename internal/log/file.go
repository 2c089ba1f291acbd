package log

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// FileWriter appends JSON log lines to dir/interpose.<pid>.jsonl.
type FileWriter struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// FileName returns the debug log name for pid.
func FileName(pid int) string {
	return fmt.Sprintf("interpose.%d.jsonl", pid)
}

// NewFileWriter creates the debug log for pid inside dir.
func NewFileWriter(dir string, pid int) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating debug log dir: %w", err)
	}

	path := filepath.Join(dir, FileName(pid))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return &FileWriter{file: f, path: path}, nil
}

// Path returns the log file path.
func (fw *FileWriter) Path() string {
	return fw.path
}

// Write implements io.Writer.
func (fw *FileWriter) Write(p []byte) (n int, err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.file == nil {
		return 0, os.ErrClosed
	}
	return fw.file.Write(p)
}

// Close closes the underlying file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.file == nil {
		return nil
	}
	err := fw.file.Close()
	fw.file = nil
	return err
}

// logPattern matches interpose.<pid>.jsonl filenames.
var logPattern = regexp.MustCompile(`^interpose\.\d+\.jsonl$`)

// Cleanup removes debug logs not modified within retentionDays.
func Cleanup(dir string, retentionDays int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return // Directory doesn't exist or can't be read
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	for _, entry := range entries {
		if entry.IsDir() || !logPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}
