// Package records defines the two intermediate record shapes that cross
// stage boundaries — the raw scrape row and the enriched row — plus the
// flat CSV files they are materialized to between stages.
package records

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// RawAd is one harvested item as extracted from the ad library page.
// Immutable after extraction.
type RawAd struct {
	LibraryID  string
	StartDate  string // freeform, as rendered by the platform
	Duplicates int
}

// RawHeader is the raw CSV schema.
var RawHeader = []string{"libraryID", "startDate", "Duplicates"}

// Row returns the raw CSV row in RawHeader order.
func (r RawAd) Row() []string {
	return []string{r.LibraryID, r.StartDate, strconv.Itoa(r.Duplicates)}
}

// EnrichedAd is a raw row joined with ad-details metadata, classified and
// dated. Only rows whose CodeBelongs matched the target allowlist are ever
// materialized.
type EnrichedAd struct {
	LibraryID  string
	StartDate  int64 // epoch seconds, 0 when unparseable
	Duplicates int
	Keyword    string

	CTAText               string
	CTAType               string
	HTML                  string
	PageProfileURI        string
	PublisherPlatform     string
	URLCreative           string
	URLPreviewCreative    string
	AdCreative            string
	AdMedia               string
	ProfilePict           string
	PageProfilePictureURL string
	Active                string
	Estatus               string
	CollectionCount       int
	CollationID           int
	EndDate               int64
	APILibraryID          string
	Ahref                 string
	PageName              string
	PageID                string
	AdDescription         string
	AdTitle               string
	Age                   int
	Gender                string
	Languages             string
	Countries             string
	LazyLoad              bool
	ContainsDetails       bool
	Domain                string
	CreatedAt             string
	UpdatedAt             string
	AdDescriptionPlain    string
	AdTitlePlain          string
	DaysSincePublication  int64
	CodeBelongs           string
}

// EnrichedHeader is the processed CSV schema. Column names and order are the
// downstream contract; the store maps them by name.
var EnrichedHeader = []string{
	"libraryID", "startDate", "Duplicates", "Keyword",
	"cta_text", "cta_type", "__html", "page_profile_uri", "publisherPlatform",
	"URLCreative", "url_preview_creative", "AdCreative", "AdMedia",
	"profilePict", "page_profile_picture_url", "Active", "Estatus",
	"CollectionCount", "CollationID", "endDate", "LibraryID", "ahref",
	"pageName", "pageID", "AdDescription", "AdTitle", "age", "gender",
	"languages", "countries", "lazy_load", "contains_details", "domain",
	"createdAt", "updatedAt", "AdDescription_plain", "AdTitle_plain",
	"daysSincePublication", "codeBelongs",
}

// Row returns the processed CSV row in EnrichedHeader order.
func (e EnrichedAd) Row() []string {
	return []string{
		e.LibraryID,
		strconv.FormatInt(e.StartDate, 10),
		strconv.Itoa(e.Duplicates),
		e.Keyword,
		e.CTAText,
		e.CTAType,
		e.HTML,
		e.PageProfileURI,
		e.PublisherPlatform,
		e.URLCreative,
		e.URLPreviewCreative,
		e.AdCreative,
		e.AdMedia,
		e.ProfilePict,
		e.PageProfilePictureURL,
		e.Active,
		e.Estatus,
		strconv.Itoa(e.CollectionCount),
		strconv.Itoa(e.CollationID),
		strconv.FormatInt(e.EndDate, 10),
		e.APILibraryID,
		e.Ahref,
		e.PageName,
		e.PageID,
		e.AdDescription,
		e.AdTitle,
		strconv.Itoa(e.Age),
		e.Gender,
		e.Languages,
		e.Countries,
		strconv.FormatBool(e.LazyLoad),
		strconv.FormatBool(e.ContainsDetails),
		e.Domain,
		e.CreatedAt,
		e.UpdatedAt,
		e.AdDescriptionPlain,
		e.AdTitlePlain,
		strconv.FormatInt(e.DaysSincePublication, 10),
		e.CodeBelongs,
	}
}

var (
	keywordStemRe  = regexp.MustCompile(`^\d{8}_\d{6}_(.+)$`)
	alphaRe        = regexp.MustCompile(`[A-Za-zÀ-ÖØ-öø-ÿ]`)
	unsafeFilename = regexp.MustCompile(`[^\w\-]`)
)

// RawFilename builds the raw CSV filename for a keyword:
// YYYYMMDD_HHMMSS_<sanitized keyword>.csv
func RawFilename(keyword string, now time.Time) string {
	safe := unsafeFilename.ReplaceAllString(keyword, "_")
	return fmt.Sprintf("%s_%s.csv", now.Format("20060102_150405"), safe)
}

// ProcessedFilename derives the processed CSV name from a raw CSV path.
func ProcessedFilename(rawPath string) string {
	dir, name := filepath.Split(rawPath)
	return filepath.Join(dir, "processed_"+name)
}

// KeywordFromFilename recovers the keyword from a raw CSV path named by
// RawFilename. Falls back to the whole stem when it contains letters,
// otherwise returns "".
func KeywordFromFilename(path string) string {
	stem := filepath.Base(path)
	if ext := filepath.Ext(stem); ext != "" {
		stem = stem[:len(stem)-len(ext)]
	}
	if m := keywordStemRe.FindStringSubmatch(stem); m != nil {
		return m[1]
	}
	if alphaRe.MatchString(stem) {
		return stem
	}
	return ""
}
