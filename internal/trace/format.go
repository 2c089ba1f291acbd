package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Trace is the parsed content of one trace file.
type Trace struct {
	Exe    string            `json:"exe,omitempty"`
	Start  time.Time         `json:"start"`
	Stop   time.Time         `json:"stop"`
	Files  []FileEvent       `json:"files"`
	UTime  float64           `json:"utime"`
	STime  float64           `json:"stime"`
	Status map[string]string `json:"status,omitempty"`
	IO     map[string]uint64 `json:"io,omitempty"`
	Extra  []string          `json:"extra,omitempty"` // lines with an unknown label
}

// Complete reports whether the traced process reached its stop hook.
func (t *Trace) Complete() bool {
	return !t.Stop.IsZero()
}

// Duration is the wall-clock time between the start and stop lines.
func (t *Trace) Duration() time.Duration {
	if t.Start.IsZero() || t.Stop.IsZero() {
		return 0
	}
	return t.Stop.Sub(t.Start)
}

// Load reads a trace from a file.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return t, nil
}

// Parse reads a trace from r.
func Parse(r io.Reader) (*Trace, error) {
	t := &Trace{
		Files:  make([]FileEvent, 0),
		Status: make(map[string]string),
		IO:     make(map[string]uint64),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := t.parseLine(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trace) parseLine(line string) error {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		t.Extra = append(t.Extra, line)
		return nil
	}
	value = strings.TrimSpace(value)

	switch Label(key) {
	case LabelExe:
		t.Exe = value
	case LabelStart, LabelStop:
		sec, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if Label(key) == LabelStart {
			t.Start = FromEpoch(sec)
		} else {
			t.Stop = FromEpoch(sec)
		}
	case LabelUTime, LabelSTime:
		sec, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if Label(key) == LabelUTime {
			t.UTime = sec
		} else {
			t.STime = sec
		}
	case LabelFile:
		ev, err := parseFileValue(value)
		if err != nil {
			return err
		}
		t.Files = append(t.Files, ev)
	default:
		switch {
		case slices.Contains(StatusKeys, key):
			t.Status[key] = value
		case slices.Contains(IOKeys, key):
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			t.IO[key] = n
		default:
			t.Extra = append(t.Extra, line)
		}
	}
	return nil
}

// parseFileValue splits "<path> <size> <read> <written>". The path may
// contain spaces, so the numbers are taken from the right.
func parseFileValue(value string) (FileEvent, error) {
	var nums [3]string
	rest := value
	for i := 2; i >= 0; i-- {
		idx := strings.LastIndexByte(rest, ' ')
		if idx < 0 {
			return FileEvent{}, fmt.Errorf("file: malformed value %q", value)
		}
		nums[i] = rest[idx+1:]
		rest = rest[:idx]
	}
	if rest == "" {
		return FileEvent{}, fmt.Errorf("file: missing path in %q", value)
	}

	size, err := strconv.ParseInt(nums[0], 10, 64)
	if err != nil {
		return FileEvent{}, fmt.Errorf("file: size: %w", err)
	}
	read, err := strconv.ParseUint(nums[1], 10, 64)
	if err != nil {
		return FileEvent{}, fmt.Errorf("file: bytes read: %w", err)
	}
	written, err := strconv.ParseUint(nums[2], 10, 64)
	if err != nil {
		return FileEvent{}, fmt.Errorf("file: bytes written: %w", err)
	}
	return FileEvent{Path: rest, Size: size, BytesRead: read, BytesWritten: written}, nil
}
