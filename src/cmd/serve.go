package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spendwise-server/src/api"
	"spendwise-server/src/config"
	"spendwise-server/src/db"
	"spendwise-server/src/logging"
	"spendwise-server/src/metrics"
	"spendwise-server/src/notify"
	"spendwise-server/src/plaid"
	"spendwise-server/src/service"
	"spendwise-server/src/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var flagMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&flagMigrate, "migrate", false, "Apply the schema before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.L().Named("serve")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("DB connection failed: %w", err)
	}
	defer store.Close()
	if flagMigrate {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	cache, err := db.NewCache(cfg.CacheMaxCost)
	if err != nil {
		return err
	}
	defer cache.Close()

	m := metrics.New("spendwise")
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	queue := worker.New("budget-evaluation", worker.Config{
		QueueSize: cfg.EvalQueueSize,
		Workers:   cfg.EvalWorkers,
	}, m)

	recorder := service.NewRecorder(store, cache,
		service.WithQueue(queue),
		service.WithNotifier(newNotifier(cfg, m, logger)),
		service.WithObserver(m),
	)
	budgets := service.NewBudgets(store, cache)

	deps := api.Deps{
		Store:       store,
		Cache:       cache,
		Recorder:    recorder,
		Budgets:     budgets,
		Catalog:     service.NewCatalog(store, cache),
		Dashboards:  service.NewDashboards(store, cache, budgets),
		Queue:       queue,
		Metrics:     m,
		Gatherer:    reg,
		Logger:      logging.L(),
		JWTSecret:   []byte(cfg.JWTSecret),
		CORSOrigins: cfg.CORSOrigins,
		DemoMode:    cfg.DemoMode,
	}

	if cfg.PlaidEnabled() {
		client, err := plaid.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
		if err != nil {
			return fmt.Errorf("plaid client: %w", err)
		}
		deps.Plaid = plaid.NewService(plaid.NewAPIFeed(client), store, recorder)
		deps.Webhooks = plaid.NewWebhookVerifier(plaid.APIKeyFetcher(client))
		logger.Info("plaid enabled", zap.String("env", cfg.PlaidEnv))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server running", zap.String("port", cfg.Port), zap.String("driver", cfg.DBDriver), zap.Bool("demo", cfg.DemoMode))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			queue.Close()
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	// Pending evaluations still run against the open store.
	queue.Close()
	logger.Info("stopped", zap.Any("queue", queue.Stats()))
	return nil
}

func newNotifier(cfg config.Config, m *metrics.Metrics, logger *logging.Logger) notify.Notifier {
	if cfg.TelegramBotToken == "" {
		return notify.Nop{}
	}
	tg, err := notify.NewTelegramNotifier(cfg.TelegramBotToken)
	if err != nil {
		logger.Warn("telegram disabled", zap.Error(err))
		return notify.Nop{}
	}
	return notify.NewBreakerNotifier("telegram", tg, notify.BreakerConfig{}, m)
}
