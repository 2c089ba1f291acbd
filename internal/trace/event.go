package trace

import (
	"strconv"
	"strings"
	"time"
)

// Label is the leading key of a trace line.
type Label string

const (
	LabelExe   Label = "exe"
	LabelStart Label = "start"
	LabelFile  Label = "file"
	LabelUTime Label = "utime"
	LabelSTime Label = "stime"
	LabelStop  Label = "stop"
)

// StatusKeys are the /proc/<pid>/status fields passed through to the trace.
var StatusKeys = []string{"Pid", "PPid", "Tgid", "VmPeak", "VmHWM", "Threads"}

// IOKeys are the /proc/<pid>/io fields passed through to the trace.
var IOKeys = []string{
	"rchar", "wchar", "syscr", "syscw",
	"read_bytes", "write_bytes", "cancelled_write_bytes",
}

// FileEvent is one retired descriptor.
type FileEvent struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	BytesRead    uint64 `json:"bytes_read"`
	BytesWritten uint64 `json:"bytes_written"`
}

// Line renders the event as a file: line without the trailing newline.
func (e FileEvent) Line() string {
	var b strings.Builder
	b.WriteString(string(LabelFile))
	b.WriteString(": ")
	b.WriteString(e.Path)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(e.Size, 10))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(e.BytesRead, 10))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(e.BytesWritten, 10))
	return b.String()
}

// Epoch converts t to fractional seconds since the Unix epoch.
func Epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromEpoch converts fractional epoch seconds back to a time.
func FromEpoch(sec float64) time.Time {
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*1e9))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func labelLine(l Label, value string) string {
	return string(l) + ": " + value
}
