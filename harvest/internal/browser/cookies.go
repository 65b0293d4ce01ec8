package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/proto"
)

// CookieLoadResult distinguishes "no persisted cookies" (a normal first-run
// outcome) from an actual load failure.
type CookieLoadResult int

const (
	CookiesMissing CookieLoadResult = iota
	CookiesLoaded
)

// CookieJar persists one domain's cookie set as a JSON file.
type CookieJar struct {
	path string
}

// NewCookieJar creates a jar backed by path. The parent directory is
// created on first save.
func NewCookieJar(path string) *CookieJar {
	return &CookieJar{path: path}
}

// Path returns the backing file path.
func (j *CookieJar) Path() string { return j.path }

// Load reads the persisted cookie set. A missing file is CookiesMissing with
// a nil error; anything else unreadable or unparseable is an error.
func (j *CookieJar) Load() ([]*proto.NetworkCookieParam, CookieLoadResult, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, CookiesMissing, nil
	}
	if err != nil {
		return nil, CookiesMissing, fmt.Errorf("browser: read cookies %s: %w", j.path, err)
	}

	var saved []*proto.NetworkCookie
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, CookiesMissing, fmt.Errorf("browser: parse cookies %s: %w", j.path, err)
	}

	params := make([]*proto.NetworkCookieParam, 0, len(saved))
	for _, c := range saved {
		// SameSite and expiry are dropped on re-injection: restored
		// sessions behave as fresh session cookies, which the platform
		// accepts, while stale attributes can make injection fail.
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return params, CookiesLoaded, nil
}

// Save overwrites the jar with the given cookie set. The write is atomic
// (tmp file + rename) so a crash never leaves a truncated jar.
func (j *CookieJar) Save(cookies []*proto.NetworkCookie) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("browser: mkdir cookie dir: %w", err)
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("browser: marshal cookies: %w", err)
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("browser: write cookies tmp: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("browser: rename cookies: %w", err)
	}
	return nil
}
