package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldcrm/listsync/internal/loader"
	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/view"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Load a report list page by page",
		Long:  "Load reports page by page until the list is exhausted or --max-pages is reached, then print them.",
		Run:   runList,
	}

	addQueryFlags(cmd)
	cmd.Flags().Int("max-pages", 0, "Stop after this many pages (0 = all)")
	cmd.Flags().StringP("format", "f", "json", "Output format: json or text")
	cmd.Flags().Bool("ids-only", false, "Only output report ids")

	RootCmd.AddCommand(cmd)
}

type listOutput struct {
	Query   string         `json:"query"`
	Pages   int            `json:"pages"`
	HasMore bool           `json:"has_more"`
	Reports []model.Report `json:"reports"`
}

func runList(cmd *cobra.Command, args []string) {
	d, err := queryFromFlags(cmd)
	if err != nil {
		exitErr("query", err)
	}
	local, _ := cmd.Flags().GetBool("local")
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	format, _ := cmd.Flags().GetString("format")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	pages, _, cleanup, err := fetchers(local)
	if err != nil {
		exitErr("list", err)
	}
	defer cleanup()

	ctx := withContext(cmd)
	v := view.New[string, model.Report](loader.New[string, model.Report](pages, loader.WithPageSize(cfg.PageSize)), nil)
	if err := v.Open(ctx, d); err != nil {
		exitErr("list", err)
	}
	for v.Loader.HasMore() && (maxPages == 0 || v.Loader.State().CurrentPage < maxPages) {
		if err := v.LoadMore(ctx); err != nil {
			exitErr("list", err)
		}
	}

	st := v.Loader.State()
	if idsOnly {
		for _, r := range st.Items {
			fmt.Println(r.ID)
		}
		return
	}
	if format == "text" {
		for _, r := range st.Items {
			fmt.Println(formatReport(r))
		}
		if st.HasMore {
			fmt.Fprintf(os.Stderr, "(more after page %d)\n", st.CurrentPage)
		}
		return
	}

	b, _ := json.MarshalIndent(listOutput{
		Query:   d.Key(),
		Pages:   st.CurrentPage,
		HasMore: st.HasMore,
		Reports: st.Items,
	}, "", "  ")
	fmt.Println(string(b))
}

func formatReport(r model.Report) string {
	return fmt.Sprintf("%s  %-18s  %s  [%s]", r.Date, r.Classification, r.Address, r.ID)
}
