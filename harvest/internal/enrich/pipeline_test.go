package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adlibra/adharvest/harvest/internal/records"
)

type fakeDetector struct {
	calls []string
	techs map[string][]string
	err   error
}

func (f *fakeDetector) Detect(_ context.Context, link string) ([]string, error) {
	f.calls = append(f.calls, link)
	if f.err != nil {
		return nil, f.err
	}
	return f.techs[link], nil
}

type fakeRelocator struct {
	calls  int
	result string
	err    error
}

func (f *fakeRelocator) Relocate(_ context.Context, srcURL, baseName string) (string, error) {
	f.calls++
	return f.result, f.err
}

func writeRaw(t *testing.T, name string, ads []records.RawAd) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	w, err := records.NewWriter(path, records.RawHeader, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, a := range ads {
		if err := w.Append(a.Row()); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func detailsServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProcessKeywordScenario(t *testing.T) {
	// WHAT: two raw rows for keyword "tools": row A links an allowlisted
	// checkout platform, row B links instagram. Only A survives, with the
	// literal classifier output, and B never reaches the classifier.
	rawPath := writeRaw(t, "20260101_000000_tools.csv", []records.RawAd{
		{LibraryID: "111", StartDate: "Dec 12, 2024", Duplicates: 2},
		{LibraryID: "222", StartDate: "Jan 5, 2025", Duplicates: 0},
	})

	srv := detailsServer(t, `[
		{"LibraryID": "111", "link_url": "https://loja.exemplo.com/checkout",
		 "cta_text": "Comprar", "cta_type": "SHOP_NOW", "title": "Oferta",
		 "AdCreative": "https://cdn.exemplo.com/v.mp4", "Active": true,
		 "pageName": "Loja Exemplo", "pageID": 987654},
		{"id": 222, "link_url": "https://www.instagram.com/lojab"}
	]`)

	det := &fakeDetector{techs: map[string][]string{
		"https://loja.exemplo.com/checkout": {"Wordpress", "Shopify-Checkout"},
	}}
	rel := &fakeRelocator{result: "https://bucket.example/111_123.mp4"}

	p := New(NewDetailsClient(srv.URL, 0), det, rel, Config{
		now: func() time.Time { return time.Date(2026, 1, 2, 10, 0, 0, 0, time.Local) },
	})

	outPath, err := p.Process(context.Background(), rawPath)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	rows, err := records.ReadRows(outPath)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d output rows, want 1", len(rows))
	}
	row := rows[0]

	if row["libraryID"] != "111" {
		t.Errorf("libraryID = %q", row["libraryID"])
	}
	if !strings.Contains(strings.ToLower(row["codeBelongs"]), "shopify") {
		t.Errorf("codeBelongs = %q, want shopify match", row["codeBelongs"])
	}
	// The stored value is the literal classifier output, not the allowlist term.
	if row["codeBelongs"] != "Wordpress,Shopify-Checkout" {
		t.Errorf("codeBelongs = %q, want literal classifier output", row["codeBelongs"])
	}
	if row["Keyword"] != "tools" {
		t.Errorf("Keyword = %q, want tools", row["Keyword"])
	}
	if row["publisherPlatform"] != "facebook" {
		t.Errorf("publisherPlatform = %q", row["publisherPlatform"])
	}
	if row["AdCreative"] != "https://bucket.example/111_123.mp4" {
		t.Errorf("AdCreative = %q, want relocated URL", row["AdCreative"])
	}
	if row["AdMedia"] != row["AdCreative"] {
		t.Errorf("AdMedia = %q, want mirror of AdCreative", row["AdMedia"])
	}
	if row["Active"] != "true" || row["Estatus"] != "true" {
		t.Errorf("Active/Estatus = %q/%q, want mirrored true", row["Active"], row["Estatus"])
	}
	if row["pageID"] != "987654" {
		t.Errorf("pageID = %q", row["pageID"])
	}
	if row["ahref"] != "" {
		t.Errorf("ahref = %q, want empty", row["ahref"])
	}
	if row["startDate"] == "0" {
		t.Error("startDate did not parse")
	}
	if row["lazy_load"] != "true" || row["contains_details"] != "true" {
		t.Errorf("fixed booleans wrong: %q/%q", row["lazy_load"], row["contains_details"])
	}

	// Row B: excluded without a classifier invocation.
	if len(det.calls) != 1 || det.calls[0] != "https://loja.exemplo.com/checkout" {
		t.Errorf("detector calls = %v, want exactly the row-A link", det.calls)
	}
}

func TestProcessRelocationFallback(t *testing.T) {
	rawPath := writeRaw(t, "20260101_000000_tools.csv", []records.RawAd{
		{LibraryID: "333", StartDate: "2025-03-01"},
	})
	srv := detailsServer(t, `[
		{"LibraryID": "333", "link_url": "https://pay.exemplo.com/x",
		 "URLCreative": "https://cdn.exemplo.com/img.jpg"}
	]`)

	det := &fakeDetector{techs: map[string][]string{
		"https://pay.exemplo.com/x": {"Kiwify"},
	}}
	rel := &fakeRelocator{result: ""} // relocation yields nothing usable

	p := New(NewDetailsClient(srv.URL, 0), det, rel, Config{})
	outPath, err := p.Process(context.Background(), rawPath)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	rows, _ := records.ReadRows(outPath)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0]["AdCreative"] != "https://cdn.exemplo.com/img.jpg" {
		t.Errorf("AdCreative = %q, want original source URL", rows[0]["AdCreative"])
	}
	if rows[0]["AdMedia"] != "https://cdn.exemplo.com/img.jpg" {
		t.Errorf("AdMedia = %q, want original source URL", rows[0]["AdMedia"])
	}
	if rel.calls != 1 {
		t.Errorf("relocator calls = %d, want 1", rel.calls)
	}
}

func TestProcessDetailsFailureUsesDefaults(t *testing.T) {
	// WHAT: a failed lookup enriches the batch with defaults instead of
	// aborting; defaults have no landing link, so every row filters out.
	rawPath := writeRaw(t, "20260101_000000_x.csv", []records.RawAd{
		{LibraryID: "444", StartDate: "2025-01-01"},
	})
	srv := detailsServer(t, `oops not json`)

	det := &fakeDetector{}
	p := New(NewDetailsClient(srv.URL, 0), det, &fakeRelocator{}, Config{})

	outPath, err := p.Process(context.Background(), rawPath)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	rows, _ := records.ReadRows(outPath)
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
	if len(det.calls) != 0 {
		t.Errorf("detector invoked %d times for undetectable rows", len(det.calls))
	}
}

func TestProcessClassifierFailureExcludesRow(t *testing.T) {
	rawPath := writeRaw(t, "20260101_000000_x.csv", []records.RawAd{
		{LibraryID: "555", StartDate: "2025-01-01"},
	})
	srv := detailsServer(t, `[{"LibraryID": "555", "link_url": "https://shop.exemplo.com"}]`)

	det := &fakeDetector{err: context.DeadlineExceeded}
	p := New(NewDetailsClient(srv.URL, 0), det, &fakeRelocator{}, Config{})

	outPath, err := p.Process(context.Background(), rawPath)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	rows, _ := records.ReadRows(outPath)
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0 (classifier failure = no technologies)", len(rows))
	}
}

func TestProcessSkipsBatchWithoutIDs(t *testing.T) {
	rawPath := writeRaw(t, "20260101_000000_x.csv", []records.RawAd{
		{LibraryID: "", StartDate: "2025-01-01"},
	})
	var lookups int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lookups++
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p := New(NewDetailsClient(srv.URL, 0), &fakeDetector{}, &fakeRelocator{}, Config{})
	if _, err := p.Process(context.Background(), rawPath); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if lookups != 0 {
		t.Errorf("lookup issued for an empty-ID batch")
	}
}
