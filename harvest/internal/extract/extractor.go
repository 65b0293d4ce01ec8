// Package extract drives a live ad-library search page through a bounded
// scroll loop and performs one bulk in-page extraction of the qualifying
// ad containers.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/ysmood/gson"

	"github.com/adlibra/adharvest/harvest/internal/records"
)

// Page is the slice of the browsing capability the extractor needs. All page
// work goes through in-page evaluation, so one method suffices and the loop
// is testable without Chrome.
type Page interface {
	Eval(ctx context.Context, js string) (gson.JSON, error)
}

// QueryURL builds the ad-library search URL for a keyword and country.
func QueryURL(keyword, country string) string {
	return "https://www.facebook.com/ads/library/?active_status=active&ad_type=all" +
		"&country=" + url.QueryEscape(country) +
		"&is_targeted_country=false&media_type=all" +
		"&q=" + url.QueryEscape(keyword) +
		"&search_type=keyword_unordered" +
		"&sort_data[direction]=desc&sort_data[mode]=total_impressions"
}

// containerPresentScript checks that the structural container class has
// rendered at all.
const containerPresentScript = `() => document.querySelector('div.xh8yej3') !== null`

// countScript counts fully-qualified ad items. A container only counts when
// it has the direct structural child marker, which excludes
// partially-rendered placeholders.
const countScript = `() => {
	let divs = document.querySelectorAll('div.xh8yej3');
	let count = 0;
	for (let div of divs) {
		let child = div.querySelector(':scope > div[class*="x1plvlek"]');
		if (child) count++;
	}
	return count;
}`

const scrollScript = `() => window.scrollTo(0, document.body.scrollHeight)`

// extractionScript scans qualifying containers in one pass and returns the
// three raw fields per ad. One round trip instead of hundreds of per-element
// driver calls.
const extractionScript = `() => {
	let results = [];
	let containers = document.querySelectorAll('div.xh8yej3');

	let libIdRegex = /Library ID:\s*(\d+)/;
	let dateRegex = /Started running on\s+(.*)/;
	let dupeRegex = /(\d+)\s+ads/;

	for (let container of containers) {
		if (results.length >= %d) break;

		let child = container.querySelector(':scope > div[class*="x1plvlek"]');
		if (!child) continue;

		let textContent = container.innerText;

		let libId = "N/A";
		let libIdMatch = textContent.match(libIdRegex);
		if (libIdMatch) libId = libIdMatch[1];

		let startDate = "N/A";
		let dateMatch = textContent.match(dateRegex);
		if (dateMatch) startDate = dateMatch[1].trim();

		let duplicates = 0;
		let strongTags = container.getElementsByTagName('strong');
		for (let strong of strongTags) {
			let match = strong.innerText.match(dupeRegex);
			if (match) {
				duplicates = parseInt(match[1]);
				break;
			}
		}

		results.push({libraryID: libId, startDate: startDate, Duplicates: duplicates});
	}
	return results;
}`

// Config bounds the collection loop.
type Config struct {
	// TargetCount is the hard cap of qualifying items. Default 100.
	TargetCount int
	// MaxStagnant terminates the loop after this many consecutive scrolls
	// that yield no new items. Default 5.
	MaxStagnant int
	// InitialWait bounds each of the two initial-load gates. Default 30s.
	InitialWait time.Duration
	// ScrollWait bounds the post-scroll wait for new content. Default 5s.
	ScrollWait time.Duration
	// PollInterval is the in-page count re-check cadence. Default 250ms.
	PollInterval time.Duration
	// RenderBuffer is the settle pause after new content appears. Default 300ms.
	RenderBuffer time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.TargetCount <= 0 {
		c.TargetCount = 100
	}
	if c.MaxStagnant <= 0 {
		c.MaxStagnant = 5
	}
	if c.InitialWait <= 0 {
		c.InitialWait = 30 * time.Second
	}
	if c.ScrollWait <= 0 {
		c.ScrollWait = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.RenderBuffer <= 0 {
		c.RenderBuffer = 300 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor harvests raw ad records from a navigated search page.
type Extractor struct {
	cfg Config
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{cfg: cfg}
}

// Run waits for the page's initial load, scrolls until the target count or
// stagnation cap is reached, then extracts all qualifying containers in one
// bulk evaluation. An initial-load timeout is fatal: there is no data.
func (e *Extractor) Run(ctx context.Context, page Page) ([]records.RawAd, error) {
	log := e.cfg.Logger

	if err := e.waitInitialLoad(ctx, page); err != nil {
		return nil, err
	}

	count, _, err := e.count(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("extract: count: %w", err)
	}
	log.Info("extract: first ads visible", "count", count)

	stagnant := 0
	for count < e.cfg.TargetCount {
		last := count
		if _, err := page.Eval(ctx, scrollScript); err != nil {
			return nil, fmt.Errorf("extract: scroll: %w", err)
		}

		grown, ok := e.waitCountAbove(ctx, page, last, e.cfg.ScrollWait)
		if ok {
			stagnant = 0
			count = grown
			// Let rendering settle before the next scroll.
			if err := sleep(ctx, e.cfg.RenderBuffer); err != nil {
				return nil, err
			}
		} else {
			stagnant++
			if stagnant >= e.cfg.MaxStagnant {
				log.Info("extract: content exhausted", "count", count, "stagnant", stagnant)
				break
			}
		}

		if count, _, err = e.count(ctx, page); err != nil {
			return nil, fmt.Errorf("extract: count: %w", err)
		}
		log.Info("extract: scrolled", "count", count)
	}

	return e.extract(ctx, page)
}

// waitInitialLoad gates on the structural container appearing, then on at
// least one fully-qualified ad item.
func (e *Extractor) waitInitialLoad(ctx context.Context, page Page) error {
	ok, err := e.poll(ctx, e.cfg.InitialWait, func() (bool, error) {
		v, err := page.Eval(ctx, containerPresentScript)
		if err != nil {
			return false, err
		}
		return v.Bool(), nil
	})
	if err != nil {
		return fmt.Errorf("extract: container probe: %w", err)
	}
	if !ok {
		return fmt.Errorf("extract: container not rendered within %s", e.cfg.InitialWait)
	}

	ok, err = e.poll(ctx, e.cfg.InitialWait, func() (bool, error) {
		n, _, err := e.count(ctx, page)
		if err != nil {
			return false, err
		}
		return n > 0, nil
	})
	if err != nil {
		return fmt.Errorf("extract: initial count: %w", err)
	}
	if !ok {
		return fmt.Errorf("extract: no qualifying ads within %s", e.cfg.InitialWait)
	}
	return nil
}

// waitCountAbove polls until the qualified count exceeds last or the wait
// window closes. Eval errors during the window count as "no growth yet".
func (e *Extractor) waitCountAbove(ctx context.Context, page Page, last int, window time.Duration) (int, bool) {
	var latest int
	ok, err := e.poll(ctx, window, func() (bool, error) {
		n, _, err := e.count(ctx, page)
		if err != nil {
			return false, nil
		}
		latest = n
		return n > last, nil
	})
	if err != nil || !ok {
		return latest, false
	}
	return latest, true
}

func (e *Extractor) count(ctx context.Context, page Page) (int, bool, error) {
	v, err := page.Eval(ctx, countScript)
	if err != nil {
		return 0, false, err
	}
	return v.Int(), true, nil
}

// poll runs cond at the configured interval until it returns true or the
// window elapses. Context cancellation is the only error path.
func (e *Extractor) poll(ctx context.Context, window time.Duration, cond func() (bool, error)) (bool, error) {
	deadline := time.Now().Add(window)
	for {
		ok, err := cond()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		if err := sleep(ctx, e.cfg.PollInterval); err != nil {
			return false, err
		}
	}
}

func (e *Extractor) extract(ctx context.Context, page Page) ([]records.RawAd, error) {
	v, err := page.Eval(ctx, fmt.Sprintf(extractionScript, e.cfg.TargetCount))
	if err != nil {
		return nil, fmt.Errorf("extract: bulk extraction: %w", err)
	}

	items := v.Arr()
	ads := make([]records.RawAd, 0, len(items))
	for _, item := range items {
		ads = append(ads, records.RawAd{
			LibraryID:  item.Get("libraryID").Str(),
			StartDate:  item.Get("startDate").Str(),
			Duplicates: item.Get("Duplicates").Int(),
		})
	}
	e.cfg.Logger.Info("extract: done", "records", len(ads))
	return ads, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
