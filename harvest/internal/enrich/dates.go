package enrich

import (
	"strings"
	"time"
)

// startDateFormats is the ordered candidate list for the platform-rendered
// start date. First successful parse wins.
var startDateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006", // day-first
	"01/02/2006", // month-first
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseStartDate converts a freeform start-date string to epoch seconds and
// whole days elapsed versus now (floor division). Unparseable input yields
// (0, 0) — a defined fallback, not an error.
func ParseStartDate(raw string, now time.Time) (epoch, daysSince int64) {
	trimmed := strings.TrimSpace(raw)
	for _, format := range startDateFormats {
		t, err := time.ParseInLocation(format, trimmed, time.Local)
		if err != nil {
			continue
		}
		epoch = t.Unix()
		daysSince = floorDiv(now.Unix()-epoch, 24*3600)
		return epoch, daysSince
	}
	return 0, 0
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
