// Package cli implements the listsync CLI commands.
package cli

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fieldcrm/listsync/internal/client"
	"github.com/fieldcrm/listsync/internal/config"
	"github.com/fieldcrm/listsync/internal/loader"
	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/stats"
	"github.com/fieldcrm/listsync/internal/store"
)

var (
	configPath string
	dbPath     string
	serverURL  string
	userFlag   string
	logLevel   string

	cfg config.Config
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "listsync",
	Short: "Incremental CRM report lists",
	Long:  "Browse CRM report lists page by page, and run a reference list API backed by SQLite.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $LISTSYNC_CONFIG or ~/.listsync/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $LISTSYNC_DB or ~/.listsync/reports.db)")
	RootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "List API base URL (default: $LISTSYNC_SERVER)")
	RootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User id for the mine scope (default: $LISTSYNC_USER)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warning, error")
}

func loadConfig(cmd *cobra.Command) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		c.DB = dbPath
	}
	if flags.Changed("server") {
		c.Server = serverURL
	}
	if flags.Changed("user") {
		c.User = userFlag
	}
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}

	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	cfg = c
	return nil
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DB)
}

// openWriter opens the store for writes. When a Redis cache is configured,
// writes go through it so cached stats are evicted.
func openWriter() (store.Store, func(), error) {
	s, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Serve.Redis == "" {
		return s, func() { s.Close() }, nil
	}
	rc := newRedis(cfg.Serve.Redis)
	c := store.NewCache(s, rc, cfg.Serve.CacheTTL)
	return c, func() {
		rc.Close()
		s.Close()
	}, nil
}

// newRedis accepts a redis:// URL or "host:port[,password=...][,ssl=true]".
func newRedis(conn string) *redis.Client {
	opts, err := redis.ParseURL(conn)
	if err != nil {
		parts := strings.Split(conn, ",")
		opts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				opts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					opts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	return redis.NewClient(opts)
}

// fetchers returns the report page and stats fetchers, either over HTTP or
// straight from the local database.
func fetchers(local bool) (loader.Fetcher[model.Report], stats.Fetcher, func(), error) {
	if cfg.User == "" {
		return nil, nil, nil, fmt.Errorf("user is required (--user or $LISTSYNC_USER)")
	}
	if local {
		s, err := openStore()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open store: %w", err)
		}
		l := client.NewLocal(s, cfg.User)
		return l.Reports(), l.Stats(), func() { s.Close() }, nil
	}
	c := client.New(cfg.Server,
		client.WithUserID(cfg.User),
		client.WithBearer(cfg.Token),
		client.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	return c.Reports(), c.Stats(), func() {}, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// withContext returns the command context, or Background when unset.
func withContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
