package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotamail/quotamail/internal/api"
	"github.com/quotamail/quotamail/internal/config"
	"github.com/quotamail/quotamail/internal/logging"
	"github.com/quotamail/quotamail/internal/mailer"
	"github.com/quotamail/quotamail/internal/metrics"
	"github.com/quotamail/quotamail/internal/opsalert"
	"github.com/quotamail/quotamail/internal/pipeline"
	"github.com/quotamail/quotamail/internal/store"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the quotamail server",
	Long: `Start the quotamail server in main mode.

This command starts the HTTP server that receives quota usage updates,
detects threshold crossings and mails affected users.

Example:
  quotamaild serve --config config.yaml

The server will start listening on the address configured in the config file.`,
	RunE: runServe,
}

var serveFlags struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", 30*time.Second, "Shutdown timeout")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting quotamail server...")
		log.Printf("Config path: %s", globalFlags.Config)
	}

	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}

	logger := logging.NewLogger(logging.WithLevel(logging.LogLevel(cfg.Server.LogLevel)))

	historyStore, err := buildStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to create history store: %w", err)
	}

	thresholds, err := cfg.Quota.ThresholdSet()
	if err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}

	resolver := mailer.NewDirectoryResolver(cfg.Mail.Recipients, cfg.Mail.DefaultDomain)
	transport := mailer.NewSMTPTransport(cfg.Mail.SMTP)
	notifierOpts := []mailer.NotifierOption{mailer.WithLogger(logger)}
	if cfg.Mail.Subject != "" {
		notifierOpts = append(notifierOpts, mailer.WithSubject(cfg.Mail.Subject))
	}
	notifier := mailer.NewNotifier(resolver, transport, notifierOpts...)

	m := metrics.NewMetrics("quotamail")

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
	}
	if cfg.Telegram.Enabled {
		alerter := opsalert.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		pipelineOpts = append(pipelineOpts, pipeline.WithAlerter(alerter))
	}

	p := pipeline.New(historyStore, notifier, thresholds, cfg.Quota.GracePeriod, pipelineOpts...)

	// Hot-reload thresholds and grace period on config changes.
	loader.SetOnChange(func(updated *config.Config) {
		set, err := updated.Quota.ThresholdSet()
		if err != nil {
			logger.Error("ignoring config reload", "error", err.Error())
			return
		}
		p.Reconfigure(set, updated.Quota.GracePeriod)
	})
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if err := loader.Watch(watchCtx); err != nil {
		logger.Warn("config watcher unavailable", "error", err.Error())
	}

	server := api.NewServer(cfg.Server, cfg.API, p, historyStore, m, logger)

	shutdownTimeout := serveFlags.Timeout
	if cfg.Server.ShutdownTimeout > 0 {
		shutdownTimeout = cfg.Server.ShutdownTimeout
	}

	go func() {
		sig := api.WaitForSignal(api.SetupSignalHandler())
		logger.Info("received shutdown signal", "signal", sig.String())

		cancelWatch()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err.Error())
		}
	}()

	log.Printf("Starting quotamail HTTP server on %s:%d", cfg.Server.Host, cfg.Server.HTTPPort)

	if err := server.Run(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// buildStore creates the configured history store backend.
func buildStore(cfg config.StoreConfig) (store.HistoryStore, error) {
	switch cfg.Backend {
	case "sqlite":
		if cfg.RetentionDays > 0 {
			return store.NewSQLiteStoreWithRetention(cfg.Path, cfg.RetentionDays)
		}
		return store.NewSQLiteStore(cfg.Path)
	default:
		return store.NewMemoryStore(), nil
	}
}
