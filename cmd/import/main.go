package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"cinerank/internal/database"
	"cinerank/services/importer"
)

func main() {
	dbPath := flag.String("db", "data/cinerank.db", "path to the catalog database")
	dataDir := flag.String("data", "data/imdb", "directory holding the TSV dataset files")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	db, err := database.New(database.Config{DatabasePath: *dbPath})
	if err != nil {
		slog.Error("import.database_failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	svc := importer.NewService(afero.NewOsFs(), db.Catalog)
	stats, err := svc.Run(context.Background(), *dataDir)
	if err != nil {
		slog.Error("import.failed", "error", err,
			"media", stats.Media, "people", stats.People)
		os.Exit(1)
	}

	slog.Info("import.complete",
		"media", stats.Media,
		"people", stats.People,
		"ratings", stats.Ratings,
		"credits", stats.Credits,
		"skipped", stats.Skipped)
}
