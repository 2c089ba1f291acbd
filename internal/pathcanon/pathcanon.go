// Package pathcanon turns the paths and descriptors seen by interposed calls
// into canonical absolute paths, and decides which of them are system noise.
package pathcanon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultFilterPrefixes are the system locations whose files are never traced.
var DefaultFilterPrefixes = []string{"/lib", "/usr", "/dev", "/etc", "/proc", "/sys"}

// Canonicalizer resolves paths. ProcRoot is the mount point of procfs.
type Canonicalizer struct {
	ProcRoot string
}

// New returns a Canonicalizer reading descriptors from /proc.
func New() *Canonicalizer {
	return &Canonicalizer{ProcRoot: "/proc"}
}

// ByPath returns the absolute, symlink-free form of path. Relative paths are
// resolved against the current working directory. The file must exist.
func (c *Canonicalizer) ByPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("canonicalize %q: empty path", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("canonicalize %q: %w", path, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("canonicalize %q: %w", path, err)
	}
	return real, nil
}

// ByDescriptor returns the path the kernel currently associates with fd.
func (c *Canonicalizer) ByDescriptor(fd int) (string, error) {
	link := filepath.Join(c.procRoot(), "self", "fd", strconv.Itoa(fd))
	target, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("canonicalize fd %d: %w", fd, err)
	}
	if target == "" {
		return "", fmt.Errorf("canonicalize fd %d: empty link target", fd)
	}
	return target, nil
}

func (c *Canonicalizer) procRoot() string {
	if c.ProcRoot == "" {
		return "/proc"
	}
	return c.ProcRoot
}

// Filter classifies canonical paths. A path starting with any prefix is noise.
// Matching is a plain string prefix test, so "/lib" also covers "/lib64".
type Filter struct {
	prefixes []string
}

// NewFilter builds a filter from prefixes, dropping empty entries.
func NewFilter(prefixes []string) *Filter {
	f := &Filter{}
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			f.prefixes = append(f.prefixes, p)
		}
	}
	return f
}

// Ignored reports whether path is system noise.
func (f *Filter) Ignored(path string) bool {
	if f == nil {
		return false
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Prefixes returns a copy of the configured prefixes.
func (f *Filter) Prefixes() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.prefixes...)
}
