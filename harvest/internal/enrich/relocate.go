package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Relocator asks the relocation service to fetch a media asset and store a
// durable copy, returning its new location.
type Relocator struct {
	endpoint string
	client   *http.Client
	now      func() time.Time
}

// NewRelocator creates a Relocator against the given endpoint.
func NewRelocator(endpoint string, timeout time.Duration) *Relocator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Relocator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

// Relocate requests a durable copy of srcURL. The generated filename is
// <baseName>_<unix millis><ext>; the millisecond stamp keeps names unique
// across retries of the same creative. The extension is a crude content
// guess: ".mp4" when the source URL mentions mp4, ".jpg" otherwise.
// Returns the relocated URL, or "" with an error on any failure — callers
// fall back to the source URL.
func (r *Relocator) Relocate(ctx context.Context, srcURL, baseName string) (string, error) {
	if srcURL == "" {
		return "", nil
	}
	if baseName == "" {
		baseName = "media"
	}

	ext := ".jpg"
	if strings.Contains(srcURL, "mp4") {
		ext = ".mp4"
	}
	filename := fmt.Sprintf("%s_%d%s", baseName, r.now().UnixMilli(), ext)

	reqURL := r.endpoint + "?filename=" + url.QueryEscape(filename) +
		"&URLCreative=" + url.QueryEscape(srcURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("enrich: relocate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("enrich: relocate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("enrich: relocate: http %d", resp.StatusCode)
	}

	var out struct {
		S3URL string `json:"s3_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("enrich: relocate decode: %w", err)
	}
	return out.S3URL, nil
}
