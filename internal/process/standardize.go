package process

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/soundledger/stream-ingest-iq/internal/parse"
	"github.com/soundledger/stream-ingest-iq/internal/platform"
)

// demographicPrefix marks column mappings whose canonical target is a
// demographic dimension rather than a record field.
const demographicPrefix = "demographic."

// StandardRow is one usage row reshaped into the canonical field set. Text
// fields stay empty when the source column is missing or null; the metric
// value is always a valid non-negative decimal.
type StandardRow struct {
	ArtistName       string
	TrackTitle       string
	AlbumName        string
	ISRC             string
	EventDate        time.Time
	MetricValue      decimal.Decimal
	Geography        string
	DeviceType       string
	SubscriptionType string
	ContextType      string
	Demographics     map[string]string
	Raw              map[string]string
}

// StandardizeTable maps every table row through the platform's column
// mappings into canonical rows. Rows are never dropped here; resolution
// failures are the processor's call.
func StandardizeTable(t *parse.Table, cfg *platform.Config, defaultDate time.Time) []StandardRow {
	indexes := make(map[string]int, len(cfg.ColumnMappings))
	for source := range cfg.ColumnMappings {
		if idx := t.ColumnIndex(source); idx >= 0 {
			indexes[source] = idx
		}
	}

	rows := make([]StandardRow, 0, len(t.Rows))
	for _, raw := range t.Rows {
		row := StandardRow{
			EventDate:   defaultDate,
			MetricValue: decimal.Zero,
			Raw:         make(map[string]string, len(t.Columns)),
		}
		for i, col := range t.Columns {
			if raw[i] != "" {
				row.Raw[col] = raw[i]
			}
		}

		for source, target := range cfg.ColumnMappings {
			idx, ok := indexes[source]
			if !ok {
				continue
			}
			value := strings.TrimSpace(raw[idx])
			if value == "" {
				continue
			}
			assignField(&row, target, value)
		}
		rows = append(rows, row)
	}
	return rows
}

func assignField(row *StandardRow, target, value string) {
	if strings.HasPrefix(target, demographicPrefix) {
		if row.Demographics == nil {
			row.Demographics = make(map[string]string)
		}
		row.Demographics[strings.TrimPrefix(target, demographicPrefix)] = value
		return
	}
	switch target {
	case "artist_name":
		row.ArtistName = value
	case "track_title":
		row.TrackTitle = value
	case "album_name":
		row.AlbumName = value
	case "isrc":
		row.ISRC = strings.ToUpper(value)
	case "date":
		if ts, ok := parseCanonicalDate(value); ok {
			row.EventDate = ts
		}
	case "metric_value":
		if d, err := decimal.NewFromString(value); err == nil {
			if d.IsNegative() {
				d = decimal.Zero
			}
			row.MetricValue = d
		}
	case "geography":
		row.Geography = value
	case "device_type":
		row.DeviceType = value
	case "subscription_type":
		row.SubscriptionType = value
	case "context_type":
		row.ContextType = value
	}
}

// parseCanonicalDate reads the canonical renderings date normalization
// produces upstream.
func parseCanonicalDate(value string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// NormalizeName lowercases a name and collapses internal whitespace so the
// same artist or title matches across reports with different spacing or
// casing.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
