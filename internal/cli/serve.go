package cli

import (
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fieldcrm/listsync/internal/server"
	"github.com/fieldcrm/listsync/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference list API",
		Long:  "Serve the reports list, stats and create endpoints from the local database.",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: $LISTSYNC_ADDR or :8080)")
	cmd.Flags().String("redis", "", "Redis URL for the stats cache (default: $LISTSYNC_REDIS)")
	cmd.Flags().Duration("cache-ttl", 0, "Stats cache TTL (default from config)")
	cmd.Flags().Bool("json-logs", true, "Log requests as JSON")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr := cfg.Serve.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}
	redisURL := cfg.Serve.Redis
	if v, _ := cmd.Flags().GetString("redis"); v != "" {
		redisURL = v
	}
	ttl := cfg.Serve.CacheTTL
	if v, _ := cmd.Flags().GetDuration("cache-ttl"); v > 0 {
		ttl = v
	}

	logger := log.StandardLogger()
	if jsonLogs, _ := cmd.Flags().GetBool("json-logs"); jsonLogs {
		logger.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var backend server.Backend = s
	if redisURL != "" {
		rc := newRedis(redisURL)
		defer rc.Close()
		if err := rc.Ping(withContext(cmd)).Err(); err != nil {
			logger.WithError(err).Warn("redis unavailable, stats served uncached")
		}
		backend = store.NewCache(s, rc, ttl)
		logger.WithField("ttl", ttl).Info("stats cache enabled")
	}

	ctx, stop := signal.NotifyContext(withContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(backend, logger).Run(ctx, addr); err != nil {
		exitErr("serve", err)
	}
}
