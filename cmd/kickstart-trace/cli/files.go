package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/majorcontext/interpose/internal/trace"
	"github.com/majorcontext/interpose/internal/ui"
)

var filesSort string

var filesCmd = &cobra.Command{
	Use:   "files <trace>...",
	Short: "Summarize file I/O per path across traces",
	Long: `Aggregate the file lines of one or more traces by path. A path opened
several times, by one process or many, is reported once with summed byte
counts and the size seen at its last close.

Examples:
  kickstart-trace files /tmp/ks.*
  kickstart-trace files --sort written /tmp/ks.*`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFiles,
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.Flags().StringVar(&filesSort, "sort", "path", "sort order: path, read, or written")
}

// mergeFiles returns the aggregated per-path totals of traces, ordered by key.
func mergeFiles(traces []shownTrace, key string) ([]trace.FileSummary, error) {
	merged := &trace.Trace{}
	for _, st := range traces {
		if !st.Complete {
			ui.Warnf("%s is incomplete; totals cover descriptors closed before it was read", st.File)
		}
		merged.Files = append(merged.Files, st.Files...)
	}
	summary := merged.Summary()

	switch key {
	case "path":
	case "read":
		sort.SliceStable(summary, func(i, j int) bool { return summary[i].BytesRead > summary[j].BytesRead })
	case "written":
		sort.SliceStable(summary, func(i, j int) bool { return summary[i].BytesWritten > summary[j].BytesWritten })
	default:
		return nil, fmt.Errorf("unknown sort order %q (want path, read, or written)", key)
	}
	return summary, nil
}

func runFiles(cmd *cobra.Command, args []string) error {
	traces, err := loadAll(args)
	if err != nil {
		return err
	}
	summary, err := mergeFiles(traces, filesSort)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(w).Encode(summary)
	}

	if len(summary) == 0 {
		fmt.Fprintln(w, "No files traced")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tOPENS\tSIZE\tREAD\tWRITTEN")
	pathWidth := pathColumn(w)
	for _, s := range summary {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			ui.TruncateLeft(s.Path, pathWidth),
			s.Opens,
			s.LastSize,
			ui.Bytes(s.BytesRead),
			ui.Bytes(s.BytesWritten),
		)
	}
	return tw.Flush()
}
