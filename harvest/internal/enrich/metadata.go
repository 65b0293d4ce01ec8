package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Metadata is one remote ad-details record. Identifier and numeric-ish
// fields are declared loosely because the API is inconsistent about
// strings versus numbers.
type Metadata struct {
	LibraryID             any    `json:"LibraryID"`
	ID                    any    `json:"id"`
	CTAText               string `json:"cta_text"`
	CTAType               string `json:"cta_type"`
	HTML                  string `json:"__html"`
	PageProfileURI        string `json:"page_profile_uri"`
	URLCreative           string `json:"URLCreative"`
	URLPreviewCreative    string `json:"url_preview_creative"`
	AdCreative            string `json:"AdCreative"`
	ProfilePict           string `json:"profilePict"`
	PageProfilePictureURL string `json:"page_profile_picture_url"`
	Active                any    `json:"Active"`
	LinkURL               string `json:"link_url"`
	PageName              string `json:"pageName"`
	PageID                any    `json:"pageID"`
	Title                 string `json:"title"`
}

// Key returns the record's identifier, accepting either key spelling.
func (m Metadata) Key() string {
	if s := looseString(m.LibraryID); s != "" {
		return s
	}
	return looseString(m.ID)
}

// looseString renders a loosely-typed JSON value as the string the CSV and
// store layers expect. Numbers keep their integer spelling.
func looseString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", x)
	}
}

// DetailsClient looks up ad metadata in batches against the remote
// ad-details API.
type DetailsClient struct {
	endpoint string
	client   *http.Client
}

// NewDetailsClient creates a client against the given endpoint.
func NewDetailsClient(endpoint string, timeout time.Duration) *DetailsClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DetailsClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Lookup fetches metadata for the given identifiers in one request and
// returns it keyed by identifier. Identifiers absent from the response are
// simply not in the map — a normal outcome, not an error.
func (c *DetailsClient) Lookup(ctx context.Context, ids []string) (map[string]Metadata, error) {
	reqURL := c.endpoint + "?ids=" + strings.Join(ids, ",")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("enrich: details request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrich: details: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrich: details: http %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var items []Metadata
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("enrich: details decode: %w", err)
	}

	lookup := make(map[string]Metadata, len(items))
	for _, item := range items {
		if key := item.Key(); key != "" {
			lookup[key] = item
		}
	}
	return lookup, nil
}
