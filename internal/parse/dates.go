package parse

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/soundledger/stream-ingest-iq/internal/platform"
)

// knownDateLayouts is the shared fallback list, tried in this fixed order
// after any platform-declared layout. No two platforms agree on a date
// convention, and several vary within the same file era, so the order is
// part of the contract: the European dd/mm layout sits before the US
// mm/dd layout.
var knownDateLayouts = []string{
	"2006-01-02",                 // ISO date
	"01/02/06",                   // US short
	"2006-01-02 15:04:05",        // ISO datetime
	"2006-01-02 15:04:05.000-07", // ISO datetime with microseconds and offset
	"02/01/2006",                 // European dd/mm/yyyy
	"20060102",                   // compact yyyymmdd
	"01/02/2006",                 // US mm/dd/yyyy
}

// dateColumnTokens flag a column as date-bearing by name.
var dateColumnTokens = []string{"date", "time", "timestamp", "created", "updated", "period"}

// nonDateColumns are known false positives for the token heuristic: they
// carry durations, not points in time.
var nonDateColumns = map[string]bool{
	"watch_time":  true,
	"play_time":   true,
	"listen_time": true,
	"stream_time": true,
}

// DateNormalizer converts heterogeneous date strings into canonical
// timestamps, best effort. Unparseable values become nulls, never errors;
// they surface later as validation issues.
type DateNormalizer struct{}

// NewDateNormalizer creates a date normalizer.
func NewDateNormalizer() *DateNormalizer {
	return &DateNormalizer{}
}

// Parse attempts to convert value into a timestamp. The platform layout is
// tried first when declared, then the shared layout list, then a lenient
// general-purpose parser.
func (n *DateNormalizer) Parse(value, platformLayout string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if platformLayout != "" {
		if ts, err := time.Parse(platformLayout, value); err == nil {
			return ts, true
		}
	}
	for _, layout := range knownDateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	if ts, err := dateparse.ParseAny(value); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// DateColumns returns the columns of the table that should be treated as
// dates: the platform's declared date columns plus any column name carrying
// a date token, minus the known false positives.
func (n *DateNormalizer) DateColumns(columns []string, cfg *platform.Config) []string {
	declared := make(map[string]bool)
	if cfg != nil {
		for _, c := range cfg.DateColumns {
			declared[c] = true
		}
	}

	var out []string
	seen := make(map[string]bool)
	for _, col := range columns {
		lower := strings.ToLower(col)
		if seen[col] {
			continue
		}
		if declared[col] || (hasDateToken(lower) && !nonDateColumns[lower]) {
			seen[col] = true
			out = append(out, col)
		}
	}
	return out
}

// NormalizeTable rewrites every date column of the table in place to the
// canonical rendering. Values that cannot be parsed become empty (null).
func (n *DateNormalizer) NormalizeTable(t *Table, cfg *platform.Config) {
	if t.IsEmpty() {
		return
	}
	layout := ""
	if cfg != nil {
		layout = cfg.DateFormat
	}
	for _, col := range n.DateColumns(t.Columns, cfg) {
		idx := t.ColumnIndex(col)
		for _, row := range t.Rows {
			if row[idx] == "" {
				continue
			}
			if ts, ok := n.Parse(row[idx], layout); ok {
				row[idx] = Canonical(ts)
			} else {
				row[idx] = ""
			}
		}
	}
}

// Canonical renders a timestamp as a date when it carries no clock
// component, else as a full datetime.
func Canonical(ts time.Time) string {
	if h, m, s := ts.Clock(); h == 0 && m == 0 && s == 0 && ts.Nanosecond() == 0 {
		return ts.Format("2006-01-02")
	}
	return ts.Format("2006-01-02 15:04:05")
}

func hasDateToken(lower string) bool {
	for _, token := range dateColumnTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
