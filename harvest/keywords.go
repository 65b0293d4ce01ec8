package harvest

import (
	"fmt"
	"strings"

	"github.com/adlibra/adharvest/harvest/internal/records"
)

// LoadKeywords reads the keyword list CSV. The file needs a "keyword"
// column; blank rows are skipped.
func LoadKeywords(path string) ([]string, error) {
	rows, err := records.ReadRows(path)
	if err != nil {
		return nil, fmt.Errorf("harvest: read keywords %s: %w", path, err)
	}
	var out []string
	for _, row := range rows {
		kw := strings.TrimSpace(row["keyword"])
		if kw == "" {
			continue
		}
		out = append(out, kw)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("harvest: no keywords in %s", path)
	}
	return out, nil
}
