// Package store loads processed CSV rows into the adsdomains table,
// skipping identifiers that already exist. Inserts run in batches inside
// one transaction: a malformed batch is logged and skipped, an error
// outside the per-batch handling rolls the whole run back.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/adlibra/adharvest/harvest/internal/records"
)

// insertFields is the insert column order. The two *_plain columns of the
// production table are generated and never inserted.
var insertFields = []string{
	"cta_text", "cta_type", "__html", "page_profile_uri", "publisherPlatform",
	"URLCreative", "url_preview_creative", "AdCreative", "AdMedia", "profilePict",
	"page_profile_picture_url", "Active", "Estatus", "CollectionCount", "CollationID",
	"startDate", "endDate", "LibraryID", "ahref", "pageName", "pageID", "AdDescription",
	"AdTitle", "age", "gender", "languages", "countries", "daysSincePublication",
	"lazy_load", "contains_details", "domain", "codeBelongs", "keywords", "duplicates",
	"createdAt", "updatedAt",
}

// csvName maps a store column back to its CSV column where the names
// diverge.
var csvName = map[string]string{
	"LibraryID":  "libraryID",
	"keywords":   "Keyword",
	"duplicates": "Duplicates",
}

var intFields = set("CollectionCount", "CollationID", "startDate", "endDate",
	"daysSincePublication", "duplicates")

var boolFields = set("Active", "Estatus", "lazy_load", "contains_details")

var jsonFields = set("publisherPlatform", "AdDescription", "AdTitle", "age",
	"languages", "countries")

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Config configures the gateway.
type Config struct {
	// BatchSize is rows per insert statement. Default 10.
	BatchSize int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Gateway performs idempotent batched loads.
type Gateway struct {
	db  *sql.DB
	cfg Config
}

// NewGateway creates a Gateway on an open store handle.
func NewGateway(db *sql.DB, cfg Config) *Gateway {
	cfg.defaults()
	return &Gateway{db: db, cfg: cfg}
}

// Load reads the processed CSV fully and inserts the rows whose LibraryID is
// not yet present. Returns inserted and skipped counts.
func (g *Gateway) Load(ctx context.Context, csvPath string) (inserted, skipped int, err error) {
	log := g.cfg.Logger

	rows, err := records.ReadRows(csvPath)
	if err != nil {
		return 0, 0, err
	}
	log.Info("store: loading", "rows", len(rows), "source", csvPath)
	if len(rows) == 0 {
		return 0, 0, nil
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for start := 0; start < len(rows); start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batchNum := start/g.cfg.BatchSize + 1

		ins, skp, batchErr := g.insertBatch(ctx, tx, rows[start:end])
		if batchErr != nil {
			// Batch-level failure: log, skip, keep going.
			log.Warn("store: batch failed", "batch", batchNum, "error", batchErr)
			continue
		}
		inserted += ins
		skipped += skp
		log.Info("store: batch done", "batch", batchNum, "inserted", ins, "skipped", skp)
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("store: commit: %w", err)
	}
	log.Info("store: done", "inserted", inserted, "skipped", skipped)
	return inserted, skipped, nil
}

func (g *Gateway) insertBatch(ctx context.Context, tx *sql.Tx, batch []map[string]string) (int, int, error) {
	ids := make([]string, 0, len(batch))
	for _, row := range batch {
		if id := rowLibraryID(row); id != "" {
			ids = append(ids, id)
		}
	}

	existing, err := existingIDs(ctx, tx, ids)
	if err != nil {
		return 0, 0, err
	}

	var newRows []map[string]string
	skipped := 0
	for _, row := range batch {
		if existing[rowLibraryID(row)] {
			skipped++
			continue
		}
		newRows = append(newRows, row)
	}
	if len(newRows) == 0 {
		return 0, skipped, nil
	}

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(insertFields)), ",") + ")"
	query := "INSERT INTO adsdomains (" + strings.Join(insertFields, ", ") + ") VALUES " +
		strings.TrimSuffix(strings.Repeat(placeholders+",", len(newRows)), ",")

	args := make([]any, 0, len(newRows)*len(insertFields))
	for _, row := range newRows {
		for _, field := range insertFields {
			args = append(args, coerce(csvValue(row, field), field))
		}
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, 0, fmt.Errorf("insert: %w", err)
	}
	return len(newRows), skipped, nil
}

// existingIDs returns which of the given identifiers already have a row.
func existingIDs(ctx context.Context, tx *sql.Tx, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := "SELECT LibraryID FROM adsdomains WHERE LibraryID IN (" +
		strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("existence check: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// rowLibraryID accepts either identifier column spelling.
func rowLibraryID(row map[string]string) string {
	if id := row["libraryID"]; id != "" {
		return id
	}
	return row["LibraryID"]
}

// csvValue resolves a store column to its CSV cell, applying the rename
// table.
func csvValue(row map[string]string, field string) string {
	if name, ok := csvName[field]; ok {
		return row[name]
	}
	return row[field]
}

// coerce converts a CSV cell to the store's declared field class. nil means
// SQL NULL.
func coerce(value, field string) any {
	// JSON fields must carry valid JSON; empty cells take documented
	// default arrays.
	if jsonFields[field] {
		if value == "" {
			switch field {
			case "publisherPlatform":
				return `["facebook"]`
			case "AdTitle", "AdDescription":
				return `["Sin titulo"]`
			default:
				return `[]`
			}
		}
		if json.Valid([]byte(value)) {
			return value
		}
		wrapped, err := json.Marshal([]string{value})
		if err != nil {
			return nil
		}
		return string(wrapped)
	}

	if value == "" {
		return nil
	}

	if intFields[field] {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil
		}
		return int64(f)
	}

	if boolFields[field] {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return 1
		case "false", "0", "no":
			return 0
		default:
			return nil
		}
	}

	return value
}
