package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"enjoygifts/backend/internal/config"
	"enjoygifts/backend/internal/local"
	localmem "enjoygifts/backend/internal/local/memory"
	"enjoygifts/backend/internal/local/sqlite"
	"enjoygifts/backend/internal/posapi"
	"enjoygifts/backend/internal/reconcile"
	"enjoygifts/backend/internal/remote/httpclient"
	"enjoygifts/backend/internal/service"
	"enjoygifts/backend/internal/session"
)

func main() {
	cfg := config.LoadClient()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var store local.Store
	if cfg.LocalDBPath == ":memory:" {
		store = localmem.New()
		log.Println("local store: in-memory")
	} else {
		s, err := sqlite.New(ctx, cfg.LocalDBPath)
		if err != nil {
			log.Fatalf("local store unavailable at %s: %v", cfg.LocalDBPath, err)
		}
		store = s
		log.Printf("local store: sqlite (%s)", cfg.LocalDBPath)
	}

	client := httpclient.New(cfg.RemoteURL, time.Duration(cfg.RequestTimeoutSecs)*time.Second)
	monitor := reconcile.NewMonitor(client.Ping, time.Duration(cfg.ProbeIntervalSeconds)*time.Second)
	engine := reconcile.New(store, client, monitor)
	sessions := session.New(store, client, engine)
	svc := service.New(engine)

	monitor.OnOnline(func(ctx context.Context) {
		if err := engine.Drain(ctx); err != nil {
			log.Printf("[pos] WARN: drain failed: %v", err)
		}
	})

	if storeID, err := sessions.Restore(ctx); err != nil {
		log.Printf("[pos] WARN: session restore failed: %v", err)
	} else if storeID != "" {
		log.Printf("[pos] resumed session for %s", storeID)
	} else {
		log.Println("[pos] no saved session; create or join a store to begin syncing")
	}

	runCtx, stop := context.WithCancel(context.Background())
	monitor.Start(runCtx)

	api := posapi.New(svc, sessions, engine, client)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("pos agent listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	stop()
	monitor.Stop()
	if err := store.Close(); err != nil {
		log.Printf("close error: %v", err)
	}
	log.Println("pos agent stopped")
}
