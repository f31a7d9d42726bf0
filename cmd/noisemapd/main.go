package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	ledgeradapter "github.com/noisemap/noisemap/internal/adapter/driven/ledger"
	relayeradapter "github.com/noisemap/noisemap/internal/adapter/driven/relayer"
	sqliteadapter "github.com/noisemap/noisemap/internal/adapter/driven/sqlite"
	httphandler "github.com/noisemap/noisemap/internal/adapter/driving/http"
	"github.com/noisemap/noisemap/internal/application"
	"github.com/noisemap/noisemap/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"ledger_url", cfg.LedgerGatewayURL,
		"relayer_url", cfg.RelayerURL,
		"contract", cfg.ContractAddress,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the local record cache (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("record cache opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	recordCache := sqliteadapter.NewRecordRepo(db)
	ledger := ledgeradapter.NewClient(cfg.LedgerGatewayURL, cfg.ConfirmWait)
	relayer := relayeradapter.NewClient(cfg.RelayerURL)

	// 6. Wire application services.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := application.NewMetrics(registry)
	notifier := application.NewNotifier(
		application.DefaultSuccessClearDelay,
		application.DefaultErrorClearDelay,
	)
	gate := application.NewSessionGate(relayer, notifier, slog.Default())
	records := application.NewRecordService(ledger, recordCache, gate, notifier, metrics, slog.Default())
	submit := application.NewSubmitService(gate, relayer, ledger, records, notifier,
		application.NewRecordIDGenerator(), metrics, slog.Default(), cfg.ContractAddress)
	decrypt := application.NewDecryptService(gate, ledger, ledger, relayer, records,
		notifier, metrics, slog.Default(), cfg.ContractAddress)

	// 7. Warm the in-memory store from the cache so the map renders before
	// the first ledger reload.
	if err := records.WarmLoad(ctx); err != nil {
		slog.Warn("cache warm load failed, starting empty", "error", err)
	}

	// 8. Create HTTP handler and register routes.
	tokens := httphandler.NewSessionTokens([]byte(cfg.SessionSecret), cfg.SessionTTL)
	apiHandler := httphandler.NewHandler(gate, records, submit, decrypt, notifier, ledger, tokens, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, registry, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("noisemapd started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout to drain in-flight workflows.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
