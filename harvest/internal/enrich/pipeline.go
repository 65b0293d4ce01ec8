// Package enrich joins raw scraped ad rows against the remote ad-details
// API, classifies their landing pages, relocates media, and materializes
// the surviving rows to the processed CSV.
//
// Remote failures never abort a batch: a failed details lookup enriches the
// batch with defaults, a failed classification counts as "no technologies",
// and a failed relocation keeps the original media URL.
package enrich

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/adlibra/adharvest/harvest/internal/records"
)

// DetailsLookup resolves a batch of library IDs to remote metadata.
type DetailsLookup interface {
	Lookup(ctx context.Context, ids []string) (map[string]Metadata, error)
}

// MediaRelocator stores a durable copy of a media asset.
type MediaRelocator interface {
	Relocate(ctx context.Context, srcURL, baseName string) (string, error)
}

// Config configures the pipeline.
type Config struct {
	// BatchSize is the details-lookup batch size. Default 5.
	BatchSize int
	// TargetTechnologies is the persistence allowlist.
	// Default DefaultTargetTechnologies.
	TargetTechnologies []string
	// NonDetectableKeywords short-circuit classification.
	// Default DefaultNonDetectableKeywords.
	NonDetectableKeywords []string
	// SyncEvery is the processed-CSV durability policy: fsync after every
	// N surviving rows. Default 1 (every row), favouring survivability of
	// partial output over throughput.
	SyncEvery int

	Logger *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if len(c.TargetTechnologies) == 0 {
		c.TargetTechnologies = DefaultTargetTechnologies
	}
	if len(c.NonDetectableKeywords) == 0 {
		c.NonDetectableKeywords = DefaultNonDetectableKeywords
	}
	if c.SyncEvery == 0 {
		c.SyncEvery = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
}

// Pipeline enriches raw rows in batches.
type Pipeline struct {
	details   DetailsLookup
	detector  Detector
	relocator MediaRelocator
	cfg       Config
}

// New creates a Pipeline.
func New(details DetailsLookup, detector Detector, relocator MediaRelocator, cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{details: details, detector: detector, relocator: relocator, cfg: cfg}
}

// Process reads the raw CSV at rawPath and writes surviving enriched rows to
// processed_<name>.csv next to it. Returns the output path.
func (p *Pipeline) Process(ctx context.Context, rawPath string) (string, error) {
	log := p.cfg.Logger
	keyword := records.KeywordFromFilename(rawPath)

	rows, err := records.ReadRaw(rawPath)
	if err != nil {
		return "", err
	}
	log.Info("enrich: starting", "rows", len(rows), "keyword", keyword)

	outPath := records.ProcessedFilename(rawPath)
	out, err := records.NewWriter(outPath, records.EnrichedHeader, p.cfg.SyncEvery)
	if err != nil {
		return "", err
	}
	defer out.Close()

	var kept, excluded int
	for start := 0; start < len(rows); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		ids := make([]string, 0, len(batch))
		for _, row := range batch {
			if row.LibraryID != "" {
				ids = append(ids, row.LibraryID)
			}
		}
		if len(ids) == 0 {
			continue
		}

		lookup, err := p.details.Lookup(ctx, ids)
		if err != nil {
			// The batch still goes through, enriched with defaults.
			log.Warn("enrich: details lookup failed", "ids", strings.Join(ids, ","), "error", err)
			lookup = map[string]Metadata{}
		}
		log.Info("enrich: batch", "number", start/p.cfg.BatchSize+1, "ids", strings.Join(ids, ","))

		for _, row := range batch {
			ad, ok := p.enrichRow(ctx, row, lookup[row.LibraryID], keyword)
			if !ok {
				excluded++
				continue
			}
			if err := out.Append(ad.Row()); err != nil {
				return "", err
			}
			kept++
		}
	}

	if err := out.Close(); err != nil {
		return "", err
	}
	log.Info("enrich: done", "kept", kept, "excluded", excluded, "output", outPath)
	return outPath, nil
}

// enrichRow classifies and populates one row. ok=false means the row is
// excluded by the technology filter — a filtering outcome, not an error.
func (p *Pipeline) enrichRow(ctx context.Context, row records.RawAd, meta Metadata, keyword string) (records.EnrichedAd, bool) {
	log := p.cfg.Logger

	// Classification gates everything else: filtered rows must not cost a
	// relocation call.
	var code string
	if Detectable(meta.LinkURL, p.cfg.NonDetectableKeywords) {
		techs, err := p.detector.Detect(ctx, meta.LinkURL)
		if err != nil {
			log.Warn("enrich: detection failed", "url", meta.LinkURL, "error", err)
		} else {
			code = strings.Join(techs, ",")
		}
	}
	if !MatchesTarget(code, p.cfg.TargetTechnologies) {
		return records.EnrichedAd{}, false
	}

	now := p.cfg.now()
	epoch, daysSince := ParseStartDate(row.StartDate, now)

	apiLibID := looseString(meta.LibraryID)
	if apiLibID == "" {
		apiLibID = row.LibraryID
	}

	// Relocate the creative; the source URL is an already-workable
	// fallback when relocation fails or returns nothing.
	source := meta.AdCreative
	if source == "" {
		source = meta.URLCreative
	}
	media := source
	if source != "" {
		relocated, err := p.relocator.Relocate(ctx, source, row.LibraryID)
		if err != nil {
			log.Warn("enrich: relocation failed", "url", source, "error", err)
		} else if relocated != "" {
			media = relocated
		}
	}

	stamp := now.Format("2006-01-02 15:04:05")
	active := looseString(meta.Active)

	return records.EnrichedAd{
		LibraryID:             row.LibraryID,
		StartDate:             epoch,
		Duplicates:            row.Duplicates,
		Keyword:               keyword,
		CTAText:               meta.CTAText,
		CTAType:               meta.CTAType,
		HTML:                  meta.HTML,
		PageProfileURI:        meta.PageProfileURI,
		PublisherPlatform:     "facebook",
		URLCreative:           meta.URLCreative,
		URLPreviewCreative:    meta.URLPreviewCreative,
		AdCreative:            media,
		AdMedia:               media, // deliberately mirrors AdCreative
		ProfilePict:           meta.ProfilePict,
		PageProfilePictureURL: meta.PageProfilePictureURL,
		Active:                active,
		Estatus:               active, // mirrors Active
		CollectionCount:       0,
		CollationID:           0,
		EndDate:               0,
		APILibraryID:          apiLibID,
		Ahref:                 "",
		PageName:              meta.PageName,
		PageID:                looseString(meta.PageID),
		AdDescription:         "",
		AdTitle:               meta.Title,
		Age:                   0,
		Gender:                "",
		Languages:             "",
		Countries:             "",
		LazyLoad:              true,
		ContainsDetails:       true,
		Domain:                "",
		CreatedAt:             stamp,
		UpdatedAt:             stamp,
		AdDescriptionPlain:    "",
		AdTitlePlain:          "",
		DaysSincePublication:  daysSince,
		CodeBelongs:           code,
	}, true
}
