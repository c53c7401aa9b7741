package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filmsync/internal/filmsync"
	"filmsync/internal/platform/config"
	"filmsync/internal/platform/logger"
	"filmsync/internal/platform/metrics"
	"filmsync/internal/timeline"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	debounce := config.GetEnvMillis("SWITCH_DEBOUNCE_MS", filmsync.DefaultDebounceWindow)
	seekLock := config.GetEnvMillis("SEEK_LOCK_MS", filmsync.DefaultSeekLockWindow)
	virtualTick := config.GetEnvMillis("VIRTUAL_TICK_MS", filmsync.DefaultVirtualTick)
	manifestPath := config.GetEnv("TIMELINE_MANIFEST", "")

	log := logger.New(logLevel, logFormat)

	library := timeline.NewLibrary()
	if manifestPath != "" {
		t, err := timeline.LoadManifest(manifestPath)
		if err != nil {
			log.Error("timeline manifest", "path", manifestPath, "error", err)
			os.Exit(1)
		}
		if err := library.Replace(t); err != nil {
			log.Error("timeline manifest", "path", manifestPath, "error", err)
			os.Exit(1)
		}
		log.Info("timeline loaded", "path", manifestPath, "lanes", len(t.Lanes))
	}

	met := metrics.New()
	manager := filmsync.NewManager(library, log, filmsync.Options{
		Metrics:        met,
		DebounceWindow: debounce,
		SeekLockWindow: seekLock,
		VirtualTick:    virtualTick,
	})
	h := filmsync.NewHandler(manager, library, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(manager.Count()) }).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"switch_debounce_ms", debounce.Milliseconds(),
		"seek_lock_ms", seekLock.Milliseconds(),
		"virtual_tick_ms", virtualTick.Milliseconds(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	manager.Close()
	log.Info("server stopped")
}
