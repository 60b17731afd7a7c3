package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cajapos/internal/config"
	"cajapos/internal/infra"
	"cajapos/internal/pos"
	"cajapos/internal/repository"
	"cajapos/internal/router"
	"cajapos/internal/service"
	"cajapos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger — dev: pretty, prod: JSON
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	if err := os.MkdirAll(cfg.PDFStoragePath, 0o755); err != nil {
		log.Fatal().Err(err).Str("path", cfg.PDFStoragePath).Msg("failed to create PDF directory")
	}

	// ── Billing backend and local state ──────────────────────────────────────
	backend := infra.NewBillingClient(cfg.BackendURL, cfg.BackendTimeout())
	breaker := infra.NewBreaker(infra.DefaultBreakerConfig())
	journal := repository.NewEnvioRepository(db)

	catalog := service.NewCatalogService(backend, rdb, cfg.ProductCacheTTL())
	shift := pos.NewShiftSession(backend)
	submitter := pos.NewInvoiceSubmitter(backend, shift, journal, cfg.PDFStoragePath)
	term := pos.NewTerminal(pos.TerminalDeps{
		Catalog:   catalog,
		Shift:     shift,
		Submitter: submitter,
		Scanner: pos.ScannerConfig{
			AmbientTimeout: cfg.ScanTimeout(),
			ManualTimeout:  cfg.ManualScanTimeout(),
			MinCodeLength:  cfg.MinCodeLength,
		},
	})

	if _, err := shift.Refresh(ctx); err != nil {
		// the backend may come up later; the first request refreshes again
		log.Warn().Err(err).Msg("could not fetch shift state at startup")
	}

	// ── Async work: report mail queue and movement retries ───────────────────
	mailer := infra.NewMailer(cfg)
	if !mailer.Enabled() {
		log.Warn().Msg("SMTP_HOST not set: shift reports will not be mailed")
	}
	dispatcher := worker.NewDispatcher(rdb)
	pool := worker.NewPool(rdb, map[string]worker.Handler{
		worker.JobShiftReport: worker.NewEmailWorker(mailer).Process,
	})
	pool.Start(ctx, cfg.WorkerPoolSize)

	worker.StartRetryCron(ctx, worker.RetryCronConfig{
		Journal: journal,
		Retrier: submitter,
		Breaker: breaker,
		RDB:     rdb,
	})

	caja := service.NewCajaService(shift, dispatcher, cfg.PDFStoragePath, cfg.ReportRecipients())

	r := router.New(cfg, router.Deps{
		DB:        db,
		Redis:     rdb,
		Breaker:   breaker,
		Terminal:  term,
		Catalog:   catalog,
		Caja:      caja,
		Journal:   journal,
		Submitter: submitter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2*cfg.BackendTimeout() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("backend", cfg.BackendURL).Msgf("cajapos terminal listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	pool.Wait()
	_ = rdb.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server exited")
}
