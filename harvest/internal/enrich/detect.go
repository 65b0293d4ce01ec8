package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultTargetTechnologies is the fixed allowlist of checkout/video/funnel
// platforms worth persisting (matched case-insensitively as substrings of
// the classifier output).
var DefaultTargetTechnologies = []string{
	"hotmart", "kiwify", "shopify", "panda", "stripe", "clickfunnels",
	"vturb", "pandavideo", "vidalytics", "atomicat", "vimeo", "youtube",
	"digistore24",
}

// DefaultNonDetectableKeywords marks landing domains where classification is
// pointless (social platforms, redirectors, marketplaces). A link matching
// any of these is excluded without ever invoking the classifier.
var DefaultNonDetectableKeywords = []string{
	"instagram", "facebook", "fb", "ig", "api", "messenger",
	"whatsapp", "google", "youtube", "drive.google",
	"bitly", "tinyurl", "rebrandly", "temu", "amazon",
}

// Detectable reports whether a landing URL is worth classifying.
func Detectable(link string, nonDetectable []string) bool {
	if link == "" {
		return false
	}
	lower := strings.ToLower(link)
	for _, kw := range nonDetectable {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// MatchesTarget reports whether the literal classifier output intersects the
// allowlist, case-insensitively.
func MatchesTarget(code string, targets []string) bool {
	if code == "" {
		return false
	}
	lower := strings.ToLower(code)
	for _, t := range targets {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// Detector reports which checkout/video platforms a landing page uses.
// The empty set is a valid answer.
type Detector interface {
	Detect(ctx context.Context, link string) ([]string, error)
}

// HTTPDetector calls the external classifier endpoint, caching results per
// landing URL for the run so repeated creatives pointing at the same page
// cost one remote call.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
	cache    *lru.Cache[string, []string]
}

// NewHTTPDetector creates a detector against the given endpoint.
func NewHTTPDetector(endpoint string, timeout time.Duration) (*HTTPDetector, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cache, err := lru.New[string, []string](256)
	if err != nil {
		return nil, fmt.Errorf("enrich: detector cache: %w", err)
	}
	return &HTTPDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		cache:    cache,
	}, nil
}

// Detect returns the technologies attributed to link.
func (d *HTTPDetector) Detect(ctx context.Context, link string) ([]string, error) {
	if cached, ok := d.cache.Get(link); ok {
		return cached, nil
	}

	reqURL := d.endpoint + "?url=" + url.QueryEscape(link)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("enrich: detect request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrich: detect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrich: detect: http %d", resp.StatusCode)
	}

	var out struct {
		Technologies []string `json:"technologies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("enrich: detect decode: %w", err)
	}

	d.cache.Add(link, out.Technologies)
	return out.Technologies, nil
}
