package harvest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/adlibra/adharvest/harvest/internal/enrich"
)

// Config holds the full harvester configuration. Credentials are named by
// env var here and resolved once per run; nothing below this layer reads
// process-wide state.
type Config struct {
	// Country is the ad-library region filter, e.g. "BR" or "ALL".
	Country string `yaml:"country"`
	// DataDir receives the raw and processed CSV files.
	DataDir string `yaml:"data_dir"`
	// DBPath is the SQLite store location.
	DBPath string `yaml:"db_path"`
	// CookiePath is the persisted cookie jar location.
	CookiePath string `yaml:"cookie_path"`
	// KeywordsFile is the CSV of keywords to harvest (column "keyword").
	KeywordsFile string `yaml:"keywords_file"`

	Credentials CredentialsConfig `yaml:"credentials"`
	Endpoints   EndpointsConfig   `yaml:"endpoints"`
	Browser     BrowserConfig     `yaml:"browser"`
	Scrape      ScrapeConfig      `yaml:"scrape"`
	Enrich      EnrichConfig      `yaml:"enrich"`
	Store       StoreConfig       `yaml:"store"`
}

// CredentialsConfig names the env vars holding platform credentials.
type CredentialsConfig struct {
	EmailEnv    string `yaml:"email_env"`
	PasswordEnv string `yaml:"password_env"`
}

// EndpointsConfig locates the external collaborators.
type EndpointsConfig struct {
	// AdDetails is the remote metadata lookup.
	AdDetails string `yaml:"ad_details"`
	// MediaRelocate is the media relocation service.
	MediaRelocate string `yaml:"media_relocate"`
	// TechDetect is the technology classifier.
	TechDetect string `yaml:"tech_detect"`
}

// BrowserConfig configures Chrome.
type BrowserConfig struct {
	// Headless runs Chrome without a window. Login verification needs a
	// visible window, so this defaults to false.
	Headless bool `yaml:"headless"`
	// RemoteURL connects to an external Chrome instead of launching one.
	RemoteURL string `yaml:"remote_url"`
}

// ScrapeConfig bounds the collection loop.
type ScrapeConfig struct {
	TargetCount int `yaml:"target_count"`
	MaxStagnant int `yaml:"max_stagnant"`
}

// EnrichConfig configures the enrichment pipeline.
type EnrichConfig struct {
	BatchSize int `yaml:"batch_size"`
	// SyncEvery is the processed-CSV fsync cadence in rows. 1 = every row.
	SyncEvery             int      `yaml:"sync_every"`
	TargetTechnologies    []string `yaml:"target_technologies"`
	NonDetectableKeywords []string `yaml:"non_detectable_keywords"`
}

// StoreConfig configures the persistence gateway.
type StoreConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Country:      "ALL",
		DataDir:      "data",
		DBPath:       "db/ads.db",
		CookiePath:   "cookies/fb_cookies.json",
		KeywordsFile: "ads_keywords.csv",
		Credentials: CredentialsConfig{
			EmailEnv:    "FB_EMAIL",
			PasswordEnv: "FB_PASSWORD",
		},
		Scrape: ScrapeConfig{
			TargetCount: 100,
			MaxStagnant: 5,
		},
		Enrich: EnrichConfig{
			BatchSize:             5,
			SyncEvery:             1,
			TargetTechnologies:    enrich.DefaultTargetTechnologies,
			NonDetectableKeywords: enrich.DefaultNonDetectableKeywords,
		},
		Store: StoreConfig{
			BatchSize: 10,
		},
	}
}

// LoadConfig reads a YAML config file merged over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harvest: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("harvest: parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.CookiePath == "" {
		return fmt.Errorf("cookie_path is required")
	}
	if c.Endpoints.AdDetails == "" {
		return fmt.Errorf("endpoints.ad_details is required")
	}
	if c.Endpoints.MediaRelocate == "" {
		return fmt.Errorf("endpoints.media_relocate is required")
	}
	if c.Endpoints.TechDetect == "" {
		return fmt.Errorf("endpoints.tech_detect is required")
	}
	return nil
}

// Email resolves the configured credential env vars.
func (c *CredentialsConfig) Email() string { return os.Getenv(c.EmailEnv) }

// Password resolves the configured credential env vars.
func (c *CredentialsConfig) Password() string { return os.Getenv(c.PasswordEnv) }
