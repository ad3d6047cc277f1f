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

	"github.com/joho/godotenv"

	"github.com/wenqianl/facegate/backend/internal/config"
	"github.com/wenqianl/facegate/backend/internal/handler"
	"github.com/wenqianl/facegate/backend/internal/service/extract"
	"github.com/wenqianl/facegate/backend/internal/service/hub"
	"github.com/wenqianl/facegate/backend/internal/service/verify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	connHub := hub.New()
	store := verify.NewStore(cfg.Verify.SweepInterval)
	verifySvc := verify.NewService(store, connHub, connHub, verify.Options{
		Threshold:   cfg.Verify.MatchThreshold,
		Capacity:    cfg.Verify.Capacity,
		MinDuration: cfg.Verify.MinDuration,
		MaxDuration: cfg.Verify.MaxDuration,
	})

	var extractor extract.Extractor
	if cfg.Extractor.Enabled {
		extractor = extract.NewClient(cfg.Extractor.BaseURL, cfg.Extractor.Timeout)
		log.Printf("embedding extractor configured at %s", cfg.Extractor.BaseURL)
	} else {
		log.Println("no embedding extractor configured; clients must supply embeddings")
	}

	go store.Run(ctx)

	router := handler.NewRouter(verifySvc, connHub, extractor)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Facegate backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
