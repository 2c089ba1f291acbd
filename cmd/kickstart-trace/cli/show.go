package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/majorcontext/interpose/internal/log"
	"github.com/majorcontext/interpose/internal/trace"
	"github.com/majorcontext/interpose/internal/ui"
)

var showCmd = &cobra.Command{
	Use:   "show <trace>...",
	Short: "Print the contents of trace files",
	Long: `Print the executable, timing, CPU usage and per-file byte counts of
one or more trace files.

A trace without a stop line belongs to a process that is still running or
was killed before its exit hook ran; it is shown as incomplete.

Examples:
  kickstart-trace show /tmp/ks.4242
  kickstart-trace show --json /tmp/ks.*`,
	Args: cobra.MinimumNArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// shownTrace is the JSON form of one trace file.
type shownTrace struct {
	File string `json:"file"`
	*trace.Trace
	DurationSeconds float64 `json:"duration_seconds"`
	Complete        bool    `json:"complete"`
}

// maxParallelLoads bounds how many trace files are parsed at once.
const maxParallelLoads = 8

// loadAll parses paths concurrently and returns them in argument order.
func loadAll(paths []string) ([]shownTrace, error) {
	out := make([]shownTrace, len(paths))

	var eg errgroup.Group
	eg.SetLimit(maxParallelLoads)
	for i, p := range paths {
		eg.Go(func() error {
			tr, err := trace.Load(p)
			if err != nil {
				return fmt.Errorf("loading trace: %w", err)
			}
			log.Debug("loaded trace", "path", p, "files", len(tr.Files), "complete", tr.Complete())
			out[i] = shownTrace{
				File:            p,
				Trace:           tr,
				DurationSeconds: tr.Duration().Seconds(),
				Complete:        tr.Complete(),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	traces, err := loadAll(args)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(traces)
	}

	for i, st := range traces {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := printTrace(w, st.File, st.Trace); err != nil {
			return err
		}
	}
	return nil
}

func printTrace(w io.Writer, name string, tr *trace.Trace) error {
	ui.Section(w, name)

	if tr.Exe != "" {
		fmt.Fprintf(w, "Executable: %s\n", tr.Exe)
	}
	if !tr.Start.IsZero() {
		fmt.Fprintf(w, "Started:    %s\n", tr.Start.Local().Format("2006-01-02 15:04:05.000"))
	}
	if tr.Complete() {
		fmt.Fprintf(w, "Duration:   %s\n", tr.Duration().Round(time.Millisecond))
	} else {
		fmt.Fprintf(w, "Duration:   %s\n", ui.Yellow("incomplete (no stop line)"))
	}
	if tr.UTime != 0 || tr.STime != 0 {
		fmt.Fprintf(w, "CPU:        %.3fs user, %.3fs system\n", tr.UTime, tr.STime)
	}
	read, written := tr.Totals()
	fmt.Fprintf(w, "I/O:        %s read, %s written in %d files\n",
		ui.Bytes(read), ui.Bytes(written), len(tr.Files))

	if len(tr.Files) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSIZE\tREAD\tWRITTEN")
	pathWidth := pathColumn(w)
	for _, f := range tr.Files {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n",
			ui.TruncateLeft(f.Path, pathWidth),
			f.Size,
			f.BytesRead,
			f.BytesWritten,
		)
	}
	return tw.Flush()
}

// pathColumn returns how wide the path column may be on a terminal, or 0
// when the output is not a terminal.
func pathColumn(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width := ui.Width(f)
	if width == 0 {
		return 0
	}
	// Leave room for three numeric columns and padding.
	if width -= 40; width < 20 {
		width = 20
	}
	return width
}
