package trace

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFor(t *testing.T) {
	assert.Equal(t, "/tmp/ks.1234", PathFor("/tmp/ks", 1234))
}

func TestSinkWritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.42")
	sink, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, sink.Path())

	start := time.Unix(1700000000, 250000000)
	sink.EmitExe("/usr/bin/cat")
	sink.EmitStart(start)
	sink.EmitFile(FileEvent{Path: "/data/in.txt", Size: 4096, BytesRead: 150})
	sink.EmitCPU(0.12, 0.01)
	sink.Emit("Pid:\t42\n")
	sink.Emit("rchar: 8123")
	sink.EmitStop(start.Add(1500 * time.Millisecond))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Err())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := strings.Join([]string{
		"exe: /usr/bin/cat",
		"start: 1700000000.250000",
		"file: /data/in.txt 4096 150 0",
		"utime: 0.120000",
		"stime: 0.010000",
		"Pid:\t42",
		"rchar: 8123",
		"stop: 1700000001.750000",
	}, "\n") + "\n"
	assert.Equal(t, want, string(data))
}

func TestSinkTruncatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.1")
	require.NoError(t, os.WriteFile(path, []byte("stale content\n"), 0644))

	sink, err := Open(path)
	require.NoError(t, err)
	sink.EmitExe("/bin/true")
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "exe: /bin/true\n", string(data))
}

func TestNilSinkIsNoop(t *testing.T) {
	var sink *Sink
	assert.NotPanics(t, func() {
		sink.Emit("x")
		sink.EmitExe("/bin/true")
		sink.EmitStart(time.Now())
		sink.EmitFile(FileEvent{Path: "/a"})
		sink.EmitCPU(1, 2)
		sink.EmitStop(time.Now())
	})
	assert.NoError(t, sink.Close())
	assert.NoError(t, sink.Err())
	assert.Equal(t, "", sink.Path())
}

func TestSinkOpenFails(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "trace.1"))
	assert.Error(t, err)
}

func TestSinkCloseIdempotentAndDropsLateLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.2")
	sink, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	sink.EmitExe("/late")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSinkConcurrentLinesStayWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.3")
	sink, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				sink.EmitFile(FileEvent{Path: "/data/concurrent file", Size: 1, BytesRead: 2, BytesWritten: 3})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, sink.Close())

	tr, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, tr.Files, 500)
	for _, f := range tr.Files {
		assert.Equal(t, "/data/concurrent file", f.Path)
	}
}
