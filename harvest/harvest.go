// Package harvest collects ad-library listings for a set of keywords,
// enriches them against external metadata and classification services, and
// loads the surviving rows into a local SQLite store. Each stage writes its
// output to disk, so a run interrupted mid-keyword leaves resumable CSVs
// behind.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adlibra/adharvest/harvest/internal/browser"
	"github.com/adlibra/adharvest/harvest/internal/enrich"
	"github.com/adlibra/adharvest/harvest/internal/extract"
	"github.com/adlibra/adharvest/harvest/internal/records"
	"github.com/adlibra/adharvest/harvest/internal/store"
)

// Runner drives the scrape → enrich → load pipeline. Stages are exposed
// individually so partial reruns (re-enrich an existing raw CSV, reload a
// processed CSV) don't need a browser.
type Runner struct {
	cfg *Config
	log *slog.Logger
}

// NewRunner builds a Runner. The config must already be validated.
func NewRunner(cfg *Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cfg: cfg, log: log}
}

// RunAll harvests every keyword in the configured keywords file. A failing
// keyword is logged and skipped; it never aborts the remaining keywords.
// Context cancellation stops the run between keywords and inside any
// blocking stage.
func (r *Runner) RunAll(ctx context.Context) error {
	keywords, err := LoadKeywords(r.cfg.KeywordsFile)
	if err != nil {
		return err
	}
	var failed int
	for _, kw := range keywords {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.RunKeyword(ctx, kw); err != nil {
			if ctx.Err() != nil {
				return err
			}
			failed++
			r.log.Error("keyword failed", "keyword", kw, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("harvest: %d of %d keywords failed", failed, len(keywords))
	}
	return nil
}

// RunKeyword runs one keyword end to end: scrape, enrich, load.
func (r *Runner) RunKeyword(ctx context.Context, keyword string) error {
	rawPath, err := r.Scrape(ctx, keyword)
	if err != nil {
		return err
	}
	processedPath, err := r.Process(ctx, rawPath)
	if err != nil {
		return err
	}
	return r.Insert(ctx, processedPath)
}

// Scrape opens an authenticated ad-library tab for the keyword, runs the
// bounded collection loop and writes the raw CSV. The browser is always
// torn down before returning.
func (r *Runner) Scrape(ctx context.Context, keyword string) (path string, err error) {
	r.log.Info("scrape start", "keyword", keyword, "country", r.cfg.Country)

	mgr := browser.NewManager(browser.Config{
		RemoteURL: r.cfg.Browser.RemoteURL,
		Headless:  r.cfg.Browser.Headless,
		Logger:    r.log,
	})
	b, err := mgr.Start()
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := mgr.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sess := browser.NewSession(b, browser.NewCookieJar(r.cfg.CookiePath), browser.SessionConfig{
		Email:    r.cfg.Credentials.Email(),
		Password: r.cfg.Credentials.Password(),
		Logger:   r.log,
	})
	if err := sess.Authenticate(ctx); err != nil {
		return "", err
	}

	tab, err := sess.OpenTab(ctx, extract.QueryURL(keyword, r.cfg.Country))
	if err != nil {
		return "", err
	}
	defer tab.Close()

	ext := extract.New(extract.Config{
		TargetCount: r.cfg.Scrape.TargetCount,
		MaxStagnant: r.cfg.Scrape.MaxStagnant,
		Logger:      r.log,
	})
	ads, err := ext.Run(ctx, extract.RodPage{P: tab})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.cfg.DataDir, 0o755); err != nil {
		return "", fmt.Errorf("harvest: create data dir: %w", err)
	}
	path = filepath.Join(r.cfg.DataDir, records.RawFilename(keyword, time.Now()))
	w, err := records.NewWriter(path, records.RawHeader, r.cfg.Enrich.SyncEvery)
	if err != nil {
		return "", err
	}
	for _, ad := range ads {
		if err := w.Append(ad.Row()); err != nil {
			w.Close()
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	r.log.Info("scrape done", "keyword", keyword, "ads", len(ads), "path", path)
	return path, nil
}

// Process enriches a raw CSV and writes the processed CSV next to it.
func (r *Runner) Process(ctx context.Context, rawPath string) (string, error) {
	detector, err := enrich.NewHTTPDetector(r.cfg.Endpoints.TechDetect, 0)
	if err != nil {
		return "", err
	}
	p := enrich.New(
		enrich.NewDetailsClient(r.cfg.Endpoints.AdDetails, 0),
		detector,
		enrich.NewRelocator(r.cfg.Endpoints.MediaRelocate, 0),
		enrich.Config{
			BatchSize:             r.cfg.Enrich.BatchSize,
			TargetTechnologies:    r.cfg.Enrich.TargetTechnologies,
			NonDetectableKeywords: r.cfg.Enrich.NonDetectableKeywords,
			SyncEvery:             r.cfg.Enrich.SyncEvery,
			Logger:                r.log,
		},
	)
	return p.Process(ctx, rawPath)
}

// Insert loads a processed CSV into the SQLite store. Reruns are
// idempotent: rows whose LibraryID already exists are skipped.
func (r *Runner) Insert(ctx context.Context, processedPath string) error {
	db, err := store.Open(r.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	g := store.NewGateway(db, store.Config{
		BatchSize: r.cfg.Store.BatchSize,
		Logger:    r.log,
	})
	inserted, skipped, err := g.Load(ctx, processedPath)
	if err != nil {
		return err
	}
	r.log.Info("insert done", "path", processedPath, "inserted", inserted, "skipped", skipped)
	return nil
}
