package trace

import "sort"

// FileSummary aggregates every file: line of one path.
type FileSummary struct {
	Path         string `json:"path"`
	Opens        int    `json:"opens"`
	LastSize     int64  `json:"last_size"`
	BytesRead    uint64 `json:"bytes_read"`
	BytesWritten uint64 `json:"bytes_written"`
}

// Summary groups file events by path, sorted by path. A file opened several
// times appears once with summed counters and the size seen at its last close.
func (t *Trace) Summary() []FileSummary {
	byPath := make(map[string]*FileSummary)
	for _, f := range t.Files {
		s, ok := byPath[f.Path]
		if !ok {
			s = &FileSummary{Path: f.Path}
			byPath[f.Path] = s
		}
		s.Opens++
		s.LastSize = f.Size
		s.BytesRead += f.BytesRead
		s.BytesWritten += f.BytesWritten
	}

	out := make([]FileSummary, 0, len(byPath))
	for _, s := range byPath {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Totals returns the bytes read and written across all file events.
func (t *Trace) Totals() (read, written uint64) {
	for _, f := range t.Files {
		read += f.BytesRead
		written += f.BytesWritten
	}
	return read, written
}
