package pathcanon

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByPathResolvesSymlinksAndDots(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	target := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(target, link))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	c := New()

	got, err := c.ByPath(link)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	got, err = c.ByPath(filepath.Join(dir, "sub", "..", "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, target, got)
}

func TestByPathRelative(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rel.txt"), nil, 0644))
	t.Chdir(dir)

	got, err := New().ByPath("rel.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rel.txt"), got)
}

func TestByPathMissing(t *testing.T) {
	_, err := New().ByPath(filepath.Join(t.TempDir(), "gone"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = New().ByPath("")
	assert.Error(t, err)
}

func TestByDescriptor(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("requires /proc/self/fd")
	}
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(dir, "fd.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := New().ByDescriptor(int(f.Fd()))
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestByDescriptorFakeProc(t *testing.T) {
	root := t.TempDir()
	fdDir := filepath.Join(root, "self", "fd")
	require.NoError(t, os.MkdirAll(fdDir, 0755))
	require.NoError(t, os.Symlink("/data/in.txt", filepath.Join(fdDir, "7")))

	c := &Canonicalizer{ProcRoot: root}
	got, err := c.ByDescriptor(7)
	require.NoError(t, err)
	assert.Equal(t, "/data/in.txt", got)

	_, err = c.ByDescriptor(8)
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	f := NewFilter(DefaultFilterPrefixes)

	tests := []struct {
		path    string
		ignored bool
	}{
		{"/etc/hosts", true},
		{"/usr/lib/libc.so.6", true},
		{"/lib64/ld-linux-x86-64.so.2", true},
		{"/dev/null", true},
		{"/proc/self/status", true},
		{"/sys/kernel/mm", true},
		{"/data/in.txt", false},
		{"/tmp/out.txt", false},
		{"/home/user/etc/file", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignored, f.Ignored(tt.path))
		})
	}
}

func TestFilterCustomAndNil(t *testing.T) {
	f := NewFilter([]string{" /scratch ", "", "/opt"})
	assert.Equal(t, []string{"/scratch", "/opt"}, f.Prefixes())
	assert.True(t, f.Ignored("/scratch/x"))
	assert.False(t, f.Ignored("/etc/hosts"))

	var none *Filter
	assert.False(t, none.Ignored("/etc/hosts"))
	assert.Nil(t, none.Prefixes())
}
