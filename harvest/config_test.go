package harvest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
country: BR
endpoints:
  ad_details: https://api.example.com/details
  media_relocate: https://api.example.com/relocate
  tech_detect: https://api.example.com/detect
enrich:
  sync_every: 50
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Country != "BR" {
		t.Errorf("Country = %q, want BR", cfg.Country)
	}
	if cfg.Enrich.SyncEvery != 50 {
		t.Errorf("SyncEvery = %d, want 50", cfg.Enrich.SyncEvery)
	}
	// Untouched fields keep defaults.
	if cfg.Scrape.TargetCount != 100 {
		t.Errorf("TargetCount = %d, want 100", cfg.Scrape.TargetCount)
	}
	if cfg.Store.BatchSize != 10 {
		t.Errorf("Store.BatchSize = %d, want 10", cfg.Store.BatchSize)
	}
	if len(cfg.Enrich.TargetTechnologies) == 0 {
		t.Error("TargetTechnologies default missing")
	}
}

func TestLoadConfigRejectsMissingEndpoints(t *testing.T) {
	path := writeFile(t, "config.yaml", `
endpoints:
  ad_details: https://api.example.com/details
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for missing endpoints")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadKeywords(t *testing.T) {
	path := writeFile(t, "keywords.csv", "keyword\nemagrecimento\n\ncurso online\n")
	kws, err := LoadKeywords(path)
	if err != nil {
		t.Fatalf("LoadKeywords: %v", err)
	}
	want := []string{"emagrecimento", "curso online"}
	if len(kws) != len(want) {
		t.Fatalf("got %d keywords, want %d", len(kws), len(want))
	}
	for i := range want {
		if kws[i] != want[i] {
			t.Errorf("keyword[%d] = %q, want %q", i, kws[i], want[i])
		}
	}
}

func TestLoadKeywordsEmpty(t *testing.T) {
	path := writeFile(t, "keywords.csv", "keyword\n")
	if _, err := LoadKeywords(path); err == nil {
		t.Fatal("expected error for empty keyword list")
	}
}
