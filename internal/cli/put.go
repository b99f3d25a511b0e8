package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldcrm/listsync/internal/query"
	"github.com/fieldcrm/listsync/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [address]",
		Short: "Store a report",
		Long:  "Store a report in the local database. The address is the positional argument.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPut,
	}

	cmd.Flags().StringP("class", "k", "ТО", "Classification: ТО, ТО Китчен, ТО Пекарня, ТО Китчен/Пекарня, АВ, ПНР")
	cmd.Flags().String("date", "", "Report date YYYY-MM-DD (default: today)")
	cmd.Flags().String("file", "", "Attached file name")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	class, _ := cmd.Flags().GetString("class")
	date, _ := cmd.Flags().GetString("date")
	file, _ := cmd.Flags().GetString("file")

	if cfg.User == "" {
		exitErr("put", fmt.Errorf("user is required (--user or $LISTSYNC_USER)"))
	}
	if date == "" {
		date = time.Now().Format(query.DateLayout)
	}

	s, closeFn, err := openWriter()
	if err != nil {
		exitErr("open store", err)
	}
	defer closeFn()

	r, err := s.Put(withContext(cmd), store.PutParams{
		UserID:         cfg.User,
		Address:        strings.Join(args, " "),
		Classification: class,
		Date:           date,
		Filename:       file,
	})
	if err != nil {
		exitErr("put", err)
	}

	b, _ := json.Marshal(r)
	fmt.Println(string(b))
}
