package cli

import (
	"github.com/spf13/cobra"

	"github.com/fieldcrm/listsync/internal/query"
)

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("search", "q", "", "Search text (address, date, classification, filename)")
	cmd.Flags().StringP("order", "o", "desc", "Sort order by date: asc or desc")
	cmd.Flags().BoolP("all", "a", false, "Include reports of all users")
	cmd.Flags().String("from", "", "Start date (YYYY-MM-DD), requires --to")
	cmd.Flags().String("to", "", "End date (YYYY-MM-DD), requires --from")
	cmd.Flags().Bool("local", false, "Read the local database instead of the list API")
}

func queryFromFlags(cmd *cobra.Command) (query.Descriptor, error) {
	search, _ := cmd.Flags().GetString("search")
	order, _ := cmd.Flags().GetString("order")
	all, _ := cmd.Flags().GetBool("all")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	d := query.Descriptor{
		Search: search,
		Sort:   query.SortOrder(order),
		Scope:  query.Mine,
		Range:  query.DateRange{Start: from, End: to},
	}
	if all {
		d.Scope = query.All
	}
	d = d.Normalize()
	return d, d.Validate()
}
