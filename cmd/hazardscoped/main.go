// Command hazardscoped is the Hazardscope HTTP service. It loads the
// configured records, serves the scoring API and reloads on a timer or on
// POST /v1/reload.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hazardscope/hazardscope/internal/api"
	"github.com/hazardscope/hazardscope/internal/logger"
	"github.com/hazardscope/hazardscope/internal/service"
	"github.com/hazardscope/hazardscope/pkg/config"
)

func main() {
	_ = godotenv.Load()
	log := logger.Setup()

	cfgPath := envOrDefault("HAZARDSCOPE_CONFIG", "")
	if cfgPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfgPath = config.FindConfigFile(cwd)
		}
	}
	cfg := config.DefaultConfig()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			log.Error("config_load_failed", "path", cfgPath, "err", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv(os.Getenv)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := service.New(ctx, cfg, log)
	if err != nil {
		log.Error("service_init_failed", "err", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Serve while the first load runs; /healthz reports 503 until it lands.
	go func() {
		if _, err := svc.Reload(ctx); err != nil {
			log.Error("initial_load_failed", "err", err)
		}
	}()
	if every := reloadInterval(); every > 0 {
		go reloadLoop(ctx, svc, every)
	}

	handler := api.NewHandler(svc, log, nil, os.Getenv("HAZARDSCOPE_API_KEY"))
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server_start", "addr", cfg.Server.Addr, "backend", cfg.Backend.Kind, "source", cfg.Data.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen_failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown_failed", "err", err)
	}
}

// reloadInterval reads HAZARDSCOPE_RELOAD_INTERVAL, e.g. "15m". Zero or
// unset disables periodic reloads.
func reloadInterval() time.Duration {
	d, err := time.ParseDuration(envOrDefault("HAZARDSCOPE_RELOAD_INTERVAL", "0s"))
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func reloadLoop(ctx context.Context, svc *service.Service, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// Failures keep the previous snapshot and are logged by Reload.
			_, _ = svc.Reload(ctx)
		}
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
