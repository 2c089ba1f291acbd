package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/majorcontext/interpose/internal/trace"
	"github.com/majorcontext/interpose/internal/ui"
)

const traceA = `exe: /usr/bin/cp
start: 1700000000.000000
file: /data/in.txt 4096 4096 0
file: /data/out.txt 4096 0 4096
file: /data/in.txt 4096 100 0
utime: 0.020000
stime: 0.010000
stop: 1700000001.500000
`

const traceB = `exe: /usr/bin/cat
start: 1700000002.000000
file: /data/in.txt 4096 50 0
`

func writeTrace(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ui.SetColorEnabled(false)
	jsonOut, verbose, filesSort = false, false, "path"
	t.Cleanup(func() { jsonOut, verbose, filesSort = false, false, "path" })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestShow(t *testing.T) {
	dir := t.TempDir()
	a := writeTrace(t, dir, "ks.100", traceA)

	out, err := run(t, "show", a)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{
		"Executable: /usr/bin/cp",
		"Duration:   1.5s",
		"CPU:        0.020s user, 0.010s system",
		"4.1 KiB read, 4.0 KiB written in 3 files",
		"/data/out.txt",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestShowIncomplete(t *testing.T) {
	b := writeTrace(t, t.TempDir(), "ks.200", traceB)

	out, err := run(t, "show", b)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "incomplete (no stop line)") {
		t.Errorf("incomplete trace not flagged:\n%s", out)
	}
}

func TestShowJSON(t *testing.T) {
	dir := t.TempDir()
	a := writeTrace(t, dir, "ks.100", traceA)
	b := writeTrace(t, dir, "ks.200", traceB)

	out, err := run(t, "show", "--json", a, b)
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}

	var got []struct {
		File            string            `json:"file"`
		Exe             string            `json:"exe"`
		Files           []trace.FileEvent `json:"files"`
		DurationSeconds float64           `json:"duration_seconds"`
		Complete        bool              `json:"complete"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d traces, want 2", len(got))
	}
	if got[0].File != a || got[0].Exe != "/usr/bin/cp" || !got[0].Complete || got[0].DurationSeconds != 1.5 {
		t.Errorf("first trace = %+v", got[0])
	}
	if len(got[0].Files) != 3 {
		t.Errorf("first trace files = %d, want 3", len(got[0].Files))
	}
	if got[1].Complete {
		t.Error("second trace reported complete without a stop line")
	}
}

func TestShowMissingFile(t *testing.T) {
	_, err := run(t, "show", filepath.Join(t.TempDir(), "ks.404"))
	if err == nil {
		t.Fatal("expected an error for a missing trace")
	}
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeTrace(t, dir, "ks.100", traceA)
	b := writeTrace(t, dir, "ks.200", traceB)

	out, err := run(t, "files", "--json", a, b)
	if err != nil {
		t.Fatalf("files: %v", err)
	}

	var got []trace.FileSummary
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	want := []trace.FileSummary{
		{Path: "/data/in.txt", Opens: 3, LastSize: 4096, BytesRead: 4246},
		{Path: "/data/out.txt", Opens: 1, LastSize: 4096, BytesWritten: 4096},
	}
	if len(got) != len(want) {
		t.Fatalf("files = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("files[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFilesSortWritten(t *testing.T) {
	a := writeTrace(t, t.TempDir(), "ks.100", traceA)

	out, err := run(t, "files", "--sort", "written", a)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header and 2 rows:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "/data/out.txt") {
		t.Errorf("largest writer not first:\n%s", out)
	}
}

func TestFilesBadSort(t *testing.T) {
	a := writeTrace(t, t.TempDir(), "ks.100", traceA)

	if _, err := run(t, "files", "--sort", "size", a); err == nil {
		t.Fatal("expected an error for an unknown sort order")
	}
}
