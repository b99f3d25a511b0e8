package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export reports as JSON",
		Long:  "Export reports from the local database as a JSON array. Limit to the current user with --mine.",
		Run:   runExport,
	}

	cmd.Flags().Bool("mine", false, "Only export reports of --user")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	mine, _ := cmd.Flags().GetBool("mine")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	owner := ""
	if mine {
		owner = cfg.User
	}
	reports, err := s.ExportAll(withContext(cmd), owner)
	if err != nil {
		exitErr("export", err)
	}

	b, _ := json.MarshalIndent(reports, "", "  ")
	fmt.Println(string(b))
}
