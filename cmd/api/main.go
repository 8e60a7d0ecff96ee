package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"cinerank/config"
	"cinerank/handlers"
	"cinerank/internal/database"
	"cinerank/services/recommender"
	"cinerank/utils"
)

func main() {
	configPath := flag.String("config", "data/settings.json", "path to the settings file")
	flag.Parse()

	manager := config.NewManager(*configPath)
	settings, err := manager.Load()
	if err != nil {
		slog.Error("startup.config_failed", "error", err)
		os.Exit(1)
	}

	setupLogging(settings.Log)

	db, err := database.New(database.Config{DatabasePath: settings.Database.Path})
	if err != nil {
		slog.Error("startup.database_failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	recSvc := recommender.NewService(
		db.Catalog, db.Preferences, db.Activity, db.Recommendations,
		recommender.Options{
			MaxAge:             time.Duration(settings.Recommender.MaxAgeHours) * time.Hour,
			MaxStored:          settings.Recommender.MaxStored,
			CandidateLimit:     settings.Recommender.CandidateLimit,
			RefreshConcurrency: settings.Recommender.RefreshConcurrency,
		})

	router := utils.NewRouter()
	handlers.NewRecommendationsHandler(recSvc, db.Preferences).Register(router)
	handlers.NewPreferencesHandler(db.Preferences, db.Catalog).Register(router)
	handlers.NewActivityHandler(db.Activity).Register(router)

	srv := &http.Server{
		Addr:         settings.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server.listening", "addr", settings.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server.failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("server.shutting_down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("server.shutdown_error", "error", err)
	}
}

// setupLogging sends structured logs to stdout and a rotating file.
func setupLogging(cfg config.LogSettings) {
	var out io.Writer = os.Stdout
	if cfg.Path != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})))
}
