package extract

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ysmood/gson"
)

// fakePage simulates the in-page scripts: the qualified count grows by
// perScroll on every scroll, capped at maxCount.
type fakePage struct {
	count            int
	perScroll        int
	maxCount         int
	containerPresent bool
	scrolls          int
	items            []any
}

func (f *fakePage) Eval(_ context.Context, js string) (gson.JSON, error) {
	switch {
	case strings.Contains(js, "scrollTo"):
		f.scrolls++
		f.count += f.perScroll
		if f.count > f.maxCount {
			f.count = f.maxCount
		}
		return gson.New(nil), nil
	case strings.Contains(js, "!== null"):
		return gson.New(f.containerPresent), nil
	case strings.Contains(js, "results.push"):
		return gson.New(f.items), nil
	default:
		return gson.New(f.count), nil
	}
}

func fastConfig() Config {
	return Config{
		TargetCount:  100,
		MaxStagnant:  5,
		InitialWait:  50 * time.Millisecond,
		ScrollWait:   10 * time.Millisecond,
		PollInterval: time.Millisecond,
		RenderBuffer: time.Millisecond,
	}
}

func TestRunStopsAtTargetCap(t *testing.T) {
	page := &fakePage{
		count:            10,
		perScroll:        30,
		maxCount:         150,
		containerPresent: true,
		items: []any{
			map[string]any{"libraryID": "123456", "startDate": "Dec 12, 2024", "Duplicates": 4},
			map[string]any{"libraryID": "654321", "startDate": "2025-01-01", "Duplicates": 0},
		},
	}
	e := New(fastConfig())

	ads, err := e.Run(context.Background(), page)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 10 → 40 → 70 → 100: three scrolls reach the cap.
	if page.scrolls != 3 {
		t.Errorf("scrolls = %d, want 3", page.scrolls)
	}
	if len(ads) != 2 {
		t.Fatalf("got %d ads, want 2", len(ads))
	}
	if ads[0].LibraryID != "123456" || ads[0].StartDate != "Dec 12, 2024" || ads[0].Duplicates != 4 {
		t.Errorf("first ad mismatch: %+v", ads[0])
	}
}

func TestRunStopsAfterStagnation(t *testing.T) {
	// WHAT: a page that stops yielding content terminates after exactly
	// MaxStagnant scroll attempts instead of waiting forever.
	page := &fakePage{
		count:            7,
		perScroll:        0,
		maxCount:         7,
		containerPresent: true,
		items:            []any{map[string]any{"libraryID": "1", "startDate": "N/A", "Duplicates": 0}},
	}
	e := New(fastConfig())

	ads, err := e.Run(context.Background(), page)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if page.scrolls != 5 {
		t.Errorf("scrolls = %d, want 5", page.scrolls)
	}
	if len(ads) != 1 {
		t.Errorf("got %d ads, want 1", len(ads))
	}
}

func TestRunFatalWhenContainerNeverRenders(t *testing.T) {
	page := &fakePage{containerPresent: false}
	e := New(fastConfig())

	if _, err := e.Run(context.Background(), page); err == nil {
		t.Fatal("Run succeeded on a page with no container")
	}
}

func TestRunFatalWhenNothingQualifies(t *testing.T) {
	// Container present but every item is a partially-rendered placeholder.
	page := &fakePage{containerPresent: true, count: 0}
	e := New(fastConfig())

	if _, err := e.Run(context.Background(), page); err == nil {
		t.Fatal("Run succeeded with zero qualifying ads")
	}
}

func TestQueryURL(t *testing.T) {
	got := QueryURL("emagrecimento rápido", "BR")
	for _, want := range []string{
		"country=BR",
		"q=emagrecimento+r%C3%A1pido",
		"active_status=active",
		"sort_data[mode]=total_impressions",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("QueryURL missing %q in %q", want, got)
		}
	}
}
