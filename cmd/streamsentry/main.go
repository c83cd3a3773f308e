// Command streamsentry: playlist ingestion and stream-health probing engine.
//
// Loads playlist sources from SQLite, refreshes their content hourly, and
// serves the channel/category/probe HTTP API. Zero interaction after .env.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamsentry/streamsentry/internal/account"
	"github.com/streamsentry/streamsentry/internal/config"
	"github.com/streamsentry/streamsentry/internal/httpclient"
	"github.com/streamsentry/streamsentry/internal/probe"
	"github.com/streamsentry/streamsentry/internal/refresh"
	"github.com/streamsentry/streamsentry/internal/server"
	"github.com/streamsentry/streamsentry/internal/store"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Printf("main: .env: %v", err)
	}
	cfg := config.Load()

	st, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("main: open store %s: %v", cfg.DBPath, err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := refresh.NewOrchestrator(st, refresh.Options{
		FetchTimeout: cfg.RefreshTimeout,
		Concurrency:  cfg.RefreshConcurrency,
		RatePerSec:   cfg.RefreshRatePerSec,
		UserAgent:    cfg.UserAgent,
	})
	sched := refresh.NewScheduler(orch, cfg.RefreshInterval)
	sched.Start(ctx)
	defer sched.Stop()

	prober := probe.New(httpclient.Default(), cfg.ProbeTimeout, log.Printf)
	deep := probe.NewDeep(&probe.FFprobeInspector{Path: cfg.FFprobePath}, cfg.DeepProbeTimeout)
	accounts := account.New(httpclient.Default(), cfg.AccountTimeout, cfg.UserAgent)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(st, prober, deep, accounts, sched),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("main: listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main: serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("main: shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("main: shutdown: %v", err)
	}
}
