package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/AngelCh415/attribution-go/internal/attribution"
	"github.com/AngelCh415/attribution-go/internal/config"
	"github.com/AngelCh415/attribution-go/internal/httpx"
	"github.com/AngelCh415/attribution-go/internal/ingest"
	"github.com/AngelCh415/attribution-go/internal/report"
	"github.com/AngelCh415/attribution-go/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	cl := ingest.NewHTTPClient(cfg.HTTPTimeout)
	st := store.NewMemoryStore()
	feed := ingest.NewFeed(cl, st, logger, cfg)
	attr := attribution.NewService(st, logger, cfg.Attribution)
	rep := report.NewService(attr)

	r := httpx.NewRouter(logger, feed, rep)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting server", slog.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
