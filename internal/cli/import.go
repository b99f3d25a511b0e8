package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import reports from JSON",
		Long:  "Import reports from a JSON array (file or stdin). Expects the format produced by export.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open file", err)
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		exitErr("read input", err)
	}

	var reports []model.Report
	if err := json.Unmarshal(data, &reports); err != nil {
		exitErr("parse json", err)
	}

	s, closeFn, err := openWriter()
	if err != nil {
		exitErr("open store", err)
	}
	defer closeFn()

	imported, err := s.Import(withContext(cmd), reportParams(reports, cfg.User))
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d,"skipped":%d}`+"\n", imported, len(reports)-imported)
}

// reportParams converts exported reports back to put params. Reports
// without an owner are assigned to defaultUser.
func reportParams(reports []model.Report, defaultUser string) []store.PutParams {
	ps := make([]store.PutParams, 0, len(reports))
	for _, r := range reports {
		user := r.UserID
		if user == "" {
			user = defaultUser
		}
		ps = append(ps, store.PutParams{
			ID:             r.ID,
			UserID:         user,
			Address:        r.Address,
			Classification: r.Classification,
			Date:           r.Date,
			Filename:       r.Filename,
		})
	}
	return ps
}
