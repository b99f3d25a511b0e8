package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/fieldcrm/listsync/internal/loader"
	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
	"github.com/fieldcrm/listsync/internal/stats"
	"github.com/fieldcrm/listsync/internal/trigger"
	"github.com/fieldcrm/listsync/internal/view"
)

func init() {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Scroll through reports interactively",
		Long: `Scroll through reports a window at a time. More pages are fetched as the
window nears the end of what is loaded.

Commands:
  n, <enter>       next window
  /text            search (a bare / clears it)
  o asc|desc       sort order by date
  m                toggle between my reports and all reports
  r START END      date range (a bare r clears it)
  s                show counts per classification
  q                quit`,
		Run: runBrowse,
	}

	addQueryFlags(cmd)
	cmd.Flags().IntP("window", "w", 10, "Rows shown per step")

	RootCmd.AddCommand(cmd)
}

func runBrowse(cmd *cobra.Command, args []string) {
	d, err := queryFromFlags(cmd)
	if err != nil {
		exitErr("query", err)
	}
	local, _ := cmd.Flags().GetBool("local")
	window, _ := cmd.Flags().GetInt("window")

	pages, sf, cleanup, err := fetchers(local)
	if err != nil {
		exitErr("browse", err)
	}
	defer cleanup()

	v := newReportView(pages, sf, cfg.PageSize, os.Stderr)
	if err := browse(withContext(cmd), os.Stdin, os.Stdout, v, d, window); err != nil {
		exitErr("browse", err)
	}
}

// newReportView wires a reports view whose failures are reported to errOut.
func newReportView(pages loader.Fetcher[model.Report], sf stats.Fetcher, pageSize int, errOut io.Writer) *view.View[string, model.Report] {
	// The loader and tracker report from different goroutines during a reload.
	errOut = &lockedWriter{w: errOut}
	l := loader.New[string, model.Report](pages,
		loader.WithPageSize(pageSize),
		loader.WithErrorHandler(func(err error) {
			fmt.Fprintf(errOut, "failed to load reports: %v\n", err)
		}),
	)
	tr := stats.NewTracker(sf, func(err error) {
		fmt.Fprintf(errOut, "failed to load stats: %v\n", err)
	})
	return view.New[string, model.Report](l, tr)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

type browser struct {
	view   *view.View[string, model.Report]
	trig   trigger.Proximity
	out    io.Writer
	window int
	shown  int
}

// browse runs the command loop until q or end of input.
func browse(ctx context.Context, in io.Reader, out io.Writer, v *view.View[string, model.Report], d query.Descriptor, window int) error {
	if window < 1 {
		window = 1
	}
	b := &browser{
		view:   v,
		trig:   trigger.Proximity{Threshold: trigger.DefaultThreshold, Load: v.LoadMore},
		out:    out,
		window: window,
	}

	// Load failures are reported by the view's handlers.
	if err := v.Open(ctx, d); errors.Is(err, query.ErrInvalid) {
		return err
	}
	b.header()
	b.next(ctx)

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "q" {
			return nil
		}
		if err := b.command(ctx, line); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	return sc.Err()
}

func (b *browser) command(ctx context.Context, line string) error {
	d := b.view.Descriptor()
	switch {
	case line == "" || line == "n":
		b.next(ctx)
		return nil
	case line == "s":
		b.printStats()
		return nil
	case strings.HasPrefix(line, "/"):
		d.Search = strings.TrimSpace(line[1:])
	case line == "m":
		if d.Scope == query.All {
			d.Scope = query.Mine
		} else {
			d.Scope = query.All
		}
	case line == "o" || strings.HasPrefix(line, "o "):
		d.Sort = query.SortOrder(strings.TrimSpace(strings.TrimPrefix(line, "o")))
		if d.Sort == "" {
			return fmt.Errorf("usage: o asc|desc")
		}
	case line == "r":
		d.Range = query.DateRange{}
	case strings.HasPrefix(line, "r "):
		f := strings.Fields(line)
		if len(f) != 3 {
			return fmt.Errorf("usage: r START END")
		}
		d.Range = query.DateRange{Start: f[1], End: f[2]}
	default:
		return fmt.Errorf("unknown command %q", line)
	}
	return b.apply(ctx, d)
}

func (b *browser) apply(ctx context.Context, d query.Descriptor) error {
	changed, err := b.view.SetDescriptor(ctx, d)
	if errors.Is(err, query.ErrInvalid) {
		return err
	}
	if !changed {
		return nil
	}
	b.shown = 0
	b.header()
	b.next(ctx)
	return nil
}

// next prints the following window of loaded rows, then lets the proximity
// trigger fetch another page if the window got close to the end.
func (b *browser) next(ctx context.Context) {
	items := b.view.Loader.Items()
	if b.shown >= len(items) && !b.view.Loader.HasMore() {
		if len(items) == 0 {
			fmt.Fprintln(b.out, "(no reports)")
		} else {
			fmt.Fprintln(b.out, "(end of list)")
		}
		return
	}

	end := min(b.shown+b.window, len(items))
	for i := b.shown; i < end; i++ {
		fmt.Fprintf(b.out, "%4d  %s\n", i+1, formatReport(items[i]))
	}
	b.shown = end

	// A failure is reported by the loader's handler; the next step retries.
	_, _ = b.trig.OnScroll(ctx, b.shown-1, len(items))
}

func (b *browser) header() {
	d := b.view.Descriptor()
	scope := "mine"
	if d.Scope == query.All {
		scope = "all"
	}
	line := fmt.Sprintf("-- %s, %s", scope, d.Sort)
	if d.Search != "" {
		line += fmt.Sprintf(", search %q", d.Search)
	}
	if !d.Range.IsZero() {
		line += fmt.Sprintf(", %s..%s", d.Range.Start, d.Range.End)
	}
	if snap := b.view.Stats.Current(); snap.Loaded && snap.Descriptor == d {
		line += fmt.Sprintf(" (%d reports)", snap.Stats.Total)
	}
	fmt.Fprintln(b.out, line)
}

func (b *browser) printStats() {
	snap := b.view.Stats.Current()
	if !snap.Loaded {
		fmt.Fprintln(b.out, "(stats not loaded)")
		return
	}
	fmt.Fprintf(b.out, "total: %d\n", snap.Stats.Total)
	classes := make([]string, 0, len(snap.Stats.PerCategory))
	for c := range snap.Stats.PerCategory {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	for _, c := range classes {
		fmt.Fprintf(b.out, "  %-18s %d\n", c, snap.Stats.PerCategory[c])
	}
}
