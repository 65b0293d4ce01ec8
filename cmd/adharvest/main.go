// Command adharvest collects ad-library listings and loads them into SQLite.
//
// Usage:
//
//	adharvest -config harvest.yaml                     # full run over the keywords file
//	adharvest -config harvest.yaml -keyword "curso"    # single keyword end to end
//	adharvest -config harvest.yaml -process raw.csv    # re-enrich an existing raw CSV
//	adharvest -config harvest.yaml -insert proc.csv    # load an existing processed CSV
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/adlibra/adharvest/harvest"
)

func main() {
	configPath := flag.String("config", "harvest.yaml", "path to harvest.yaml config file")
	keyword := flag.String("keyword", "", "harvest a single keyword instead of the keywords file")
	country := flag.String("country", "", "override the configured country filter")
	processCSV := flag.String("process", "", "enrich an existing raw CSV and exit")
	insertCSV := flag.String("insert", "", "load an existing processed CSV and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *keyword, *country, *processCSV, *insertCSV); err != nil {
		logger.Error("adharvest: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, keyword, country, processCSV, insertCSV string) error {
	cfg, err := harvest.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if country != "" {
		cfg.Country = country
	}

	r := harvest.NewRunner(cfg, logger)

	switch {
	case insertCSV != "":
		return r.Insert(ctx, insertCSV)
	case processCSV != "":
		processed, err := r.Process(ctx, processCSV)
		if err != nil {
			return err
		}
		return r.Insert(ctx, processed)
	case keyword != "":
		return r.RunKeyword(ctx, keyword)
	default:
		return r.RunAll(ctx)
	}
}
