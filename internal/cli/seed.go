package cli

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
	"github.com/fieldcrm/listsync/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with sample reports",
		Run:   runSeed,
	}

	cmd.Flags().IntP("count", "n", 50, "Number of reports to create")
	cmd.Flags().String("users", "", "Comma-separated owner ids (default: --user)")
	cmd.Flags().Int64("seed", 0, "Random seed (default: current time)")

	RootCmd.AddCommand(cmd)
}

var (
	seedStreets = []string{"ул. Ленина", "пр. Мира", "ул. Гагарина", "ул. Советская", "наб. Реки Фонтанки", "ул. Садовая"}
	seedClasses = []string{
		model.ClassMaintenance,
		model.ClassKitchen,
		model.ClassBakery,
		model.ClassKitchenBakery,
		model.ClassEmergency,
		model.ClassCommissioning,
	}
)

func runSeed(cmd *cobra.Command, args []string) {
	count, _ := cmd.Flags().GetInt("count")
	usersFlag, _ := cmd.Flags().GetString("users")
	seed, _ := cmd.Flags().GetInt64("seed")

	var users []string
	for _, u := range strings.Split(usersFlag, ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	if len(users) == 0 {
		if cfg.User == "" {
			exitErr("seed", fmt.Errorf("--users or --user is required"))
		}
		users = []string{cfg.User}
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s, closeFn, err := openWriter()
	if err != nil {
		exitErr("open store", err)
	}
	defer closeFn()

	n, err := s.Import(withContext(cmd), sampleReports(rand.New(rand.NewSource(seed)), users, count, time.Now()))
	if err != nil {
		exitErr("seed", err)
	}
	fmt.Printf(`{"ok":true,"created":%d}`+"\n", n)
}

// sampleReports generates count reports spread over the year before now.
func sampleReports(rng *rand.Rand, users []string, count int, now time.Time) []store.PutParams {
	ps := make([]store.PutParams, 0, count)
	for i := 0; i < count; i++ {
		date := now.AddDate(0, 0, -rng.Intn(365))
		p := store.PutParams{
			UserID:         users[rng.Intn(len(users))],
			Address:        fmt.Sprintf("%s, %d", seedStreets[rng.Intn(len(seedStreets))], 1+rng.Intn(120)),
			Classification: seedClasses[rng.Intn(len(seedClasses))],
			Date:           date.Format(query.DateLayout),
		}
		if rng.Intn(3) == 0 {
			p.Filename = fmt.Sprintf("report_%s_%03d.pdf", date.Format("20060102"), i)
		}
		ps = append(ps, p)
	}
	return ps
}
