package records

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Writer appends rows to a flat CSV file with a header row and a tunable
// durability policy. With SyncEvery=1 every appended row is flushed and
// fsynced before the next one is processed, so a run killed mid-batch loses
// at most the row being written.
type Writer struct {
	file      *os.File
	w         *csv.Writer
	syncEvery int
	pending   int
	closed    bool
}

// NewWriter creates path (truncating any previous content), writes the
// header row, and returns a Writer. syncEvery <= 0 disables per-row fsync;
// the file is still flushed and synced on Close.
func NewWriter(path string, header []string, syncEvery int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("records: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("records: write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("records: flush header: %w", err)
	}
	return &Writer{file: f, w: w, syncEvery: syncEvery}, nil
}

// Append writes one row, honouring the sync policy.
func (w *Writer) Append(row []string) error {
	if err := w.w.Write(row); err != nil {
		return fmt.Errorf("records: write row: %w", err)
	}
	if w.syncEvery <= 0 {
		return nil
	}
	w.pending++
	if w.pending < w.syncEvery {
		return nil
	}
	w.pending = 0
	return w.sync()
}

func (w *Writer) sync() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("records: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("records: fsync: %w", err)
	}
	return nil
}

// Close flushes, syncs, and closes the underlying file. Safe to call twice,
// so it can sit in a defer alongside an error-checked explicit call.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// ReadRaw loads a raw CSV produced by the extractor.
func ReadRaw(path string) ([]RawAd, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}
	ads := make([]RawAd, 0, len(rows))
	for _, row := range rows {
		dup, _ := strconv.Atoi(row["Duplicates"])
		ads = append(ads, RawAd{
			LibraryID:  row["libraryID"],
			StartDate:  row["startDate"],
			Duplicates: dup,
		})
	}
	return ads, nil
}

// ReadRows loads any header-rowed CSV as a sequence of column-name-keyed
// maps. Short records are tolerated; missing cells read as "".
func ReadRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("records: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("records: read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	header := all[0]
	rows := make([]map[string]string, 0, len(all)-1)
	for _, rec := range all[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
