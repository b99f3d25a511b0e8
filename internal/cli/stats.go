package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldcrm/listsync/internal/stats"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show report counts for a query",
		Run:   runStats,
	}

	addQueryFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	d, err := queryFromFlags(cmd)
	if err != nil {
		exitErr("query", err)
	}
	local, _ := cmd.Flags().GetBool("local")

	_, sf, cleanup, err := fetchers(local)
	if err != nil {
		exitErr("stats", err)
	}
	defer cleanup()

	tr := stats.NewTracker(sf, nil)
	if err := tr.Refresh(withContext(cmd), d); err != nil {
		exitErr("stats", err)
	}

	b, _ := json.MarshalIndent(tr.Current().Stats, "", "  ")
	fmt.Println(string(b))
}
