package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundledger/stream-ingest-iq/internal/detect"
	"github.com/soundledger/stream-ingest-iq/internal/platform"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	registry, err := platform.NewRegistry()
	require.NoError(t, err)
	return NewParser(registry, detect.NewDetector(registry, 0), NewDateNormalizer())
}

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFile_QuoteWrappedRows(t *testing.T) {
	p := newTestParser(t)

	content := "\"artist_name\tsong_name\treport_date\tquantity\"\n" +
		"\"Taylor Swift\tShake It Off\t2024-01-15\t1250\"\n"
	path := writeFixture(t, "apple_daily.txt", content)

	result := p.ParseFile(path)
	require.True(t, result.Success, "quote-wrapped file should parse: %s", result.ErrorMessage)
	assert.Equal(t, "apl-apple", result.Platform)
	assert.Equal(t, "quote_wrapped_tsv", result.Format)
	assert.Equal(t, 1, result.RowsParsed)

	require.Equal(t, []string{"artist_name", "song_name", "report_date", "quantity"}, result.Table.Columns)
	row := result.Table.Rows[0]
	assert.Equal(t, "Taylor Swift", row[0])
	assert.Equal(t, "Shake It Off", row[1])
	assert.Equal(t, "2024-01-15", row[2], "report_date should normalize to the canonical date")
	assert.Equal(t, "1250", row[3])
}

func TestParseFile_QuoteUnwrapCollapsesDoubledQuotes(t *testing.T) {
	p := newTestParser(t)

	content := "\"artist_name\tsong_name\treport_date\tquantity\"\n" +
		"\"The \"\"Band\"\"\tSong\t2024-01-15\t5\"\n"
	path := writeFixture(t, "apple_escaped.txt", content)

	result := p.ParseFile(path)
	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, `The "Band"`, result.Table.Rows[0][0])
}

func TestParseFile_FullyQuotedCSV(t *testing.T) {
	p := newTestParser(t)

	content := "\"isrc\",\"date\",\"product_type\",\"plays\"\n" +
		"\"USRC17607839\",\"2024-01-15\",\"FB_REELS\",\"10\"\n" +
		"\"GBUM71505078\",\"2024-01-16\",\"IG_MUSIC_STICKER\",\"3\"\n"
	path := writeFixture(t, "facebook_reels.csv", content)

	result := p.ParseFile(path)
	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, "fbk-facebook", result.Platform)
	assert.Equal(t, "quoted_csv", result.Format)
	assert.Equal(t, 2, result.RowsParsed)
	assert.Equal(t, "USRC17607839", result.Table.Rows[0][0])
	assert.Equal(t, "2024-01-15", result.Table.Rows[0][1])
}

func TestParseFile_GenericTSV(t *testing.T) {
	p := newTestParser(t)

	content := "track_name\tartist_name\tstreams\tdate\n" +
		"Anti-Hero\tTaylor Swift\t5000\t2024-01-15\n" +
		"Flowers\tMiley Cyrus\t4000\t2024-01-15\n"
	path := writeFixture(t, "spotify_weekly.tsv", content)

	result := p.ParseFile(path)
	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, "spo-spotify", result.Platform)
	assert.Equal(t, "tsv", result.Format)
	assert.Equal(t, 2, result.RowsParsed)
	assert.Greater(t, result.QualityScore, 90.0, "complete well-shaped file should score high")
}

func TestParseFile_ShortRowsPadded(t *testing.T) {
	p := newTestParser(t)

	content := "track_name\tartist_name\tstreams\n" +
		"Song A\tArtist A\t10\n" +
		"Song B\n"
	path := writeFixture(t, "spotify_ragged.tsv", content)

	result := p.ParseFile(path)
	require.True(t, result.Success, result.ErrorMessage)
	require.Equal(t, 2, result.RowsParsed)
	assert.Equal(t, []string{"Song B", "", ""}, result.Table.Rows[1])
}

func TestParseFile_EuropeanDates(t *testing.T) {
	p := newTestParser(t)

	content := "song_id\tsong_name\tartist_name\tcountry\tdate\tstreams\n" +
		"123\tSoco\tStarboy\tNG\t01/12/2024\t900\n"
	path := writeFixture(t, "boomplay_daily.tsv", content)

	result := p.ParseFile(path)
	require.True(t, result.Success, result.ErrorMessage)
	dateIdx := result.Table.ColumnIndex("date")
	assert.Equal(t, "2024-12-01", result.Table.Rows[0][dateIdx],
		"dd/mm/yyyy platform layout must win over the US reading")
}

func TestParseFile_UnknownPlatformFails(t *testing.T) {
	p := newTestParser(t)

	path := writeFixture(t, "mystery_export.tsv", "a\tb\n1\t2\n")
	result := p.ParseFile(path)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "could not detect platform")
}

func TestParseFile_MissingFileFails(t *testing.T) {
	p := newTestParser(t)

	result := p.ParseFile("/nonexistent/spotify.tsv")
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "file not found")
}

func TestParseFile_NeverPanicsOnGarbage(t *testing.T) {
	p := newTestParser(t)

	// Arbitrary bytes must yield a failed Result, not a panic or error.
	garbage := string([]byte{0x00, 0xff, 0xfe, 0x01, 0x02, 0x7f, 0x80})
	path := writeFixture(t, "spotify_garbage.tsv", garbage)

	assert.NotPanics(t, func() {
		result := p.ParseFile(path)
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.ErrorMessage)
	})
}

func TestParseFile_HeaderOnlyFails(t *testing.T) {
	p := newTestParser(t)

	path := writeFixture(t, "deezer_empty.tsv", "isrc\ttrack_name\tstreams\n")
	result := p.ParseFile(path)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "no usable rows")
}
