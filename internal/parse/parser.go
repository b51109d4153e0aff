// Package parse turns raw platform export files into uniform text tables,
// tolerating the structural quirks of each source: quote-wrapped rows,
// fully-quoted CSV, inconsistent delimiters, and mixed date conventions.
package parse

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/soundledger/stream-ingest-iq/internal/detect"
	"github.com/soundledger/stream-ingest-iq/internal/platform"
)

// Parse-quality weighting. Tunable: column presence, cell completeness, and
// numeric-column convertibility contribute 30/40/30.
const (
	qualityWeightColumns      = 0.3
	qualityWeightCompleteness = 0.4
	qualityWeightConsistency  = 0.3

	// numericConsistencyPenalty is deducted once per declared numeric
	// column whose values are mostly non-numeric.
	numericConsistencyPenalty = 20.0

	// defaultSampleLines feeds delimiter detection.
	defaultSampleLines = 10
)

// Result reports one parse attempt. It is owned by the caller and never
// reused; a failure carries a message instead of an error value so the
// orchestrator can fold it into its own result without unwrapping.
type Result struct {
	Success      bool
	Table        *Table
	Platform     string
	Encoding     string
	Format       string
	RowsParsed   int
	QualityScore float64
	ErrorMessage string
}

// Parser applies the platform-selected parsing strategy to a file. All
// strategies yield a Table of text values plus a parse-quality score, and
// none of them propagate decoding or structural errors to the caller.
type Parser struct {
	registry    *platform.Registry
	detector    *detect.Detector
	dates       *DateNormalizer
	sampleLines int
}

// NewParser creates a parser over the given registry and detector.
func NewParser(registry *platform.Registry, detector *detect.Detector, dates *DateNormalizer) *Parser {
	return &Parser{
		registry:    registry,
		detector:    detector,
		dates:       dates,
		sampleLines: defaultSampleLines,
	}
}

// ParseFile parses one export file end to end: platform detection, encoding
// detection, strategy parsing, and date normalization. It always returns a
// Result; it never panics or returns an error for malformed input.
func (p *Parser) ParseFile(path string) Result {
	if _, err := os.Stat(path); err != nil {
		return failed("", fmt.Sprintf("file not found: %s", path))
	}

	code, ok := p.detector.DetectPlatform(path)
	if !ok {
		return failed("", fmt.Sprintf("could not detect platform from path: %s", path))
	}
	cfg, ok := p.registry.Get(code)
	if !ok {
		return failed(code, fmt.Sprintf("platform %s is not in the catalog", code))
	}

	enc := p.detector.DetectEncoding(path, cfg)
	text, err := p.detector.DecodeFile(path, enc)
	if err != nil {
		return failed(code, fmt.Sprintf("could not read file: %v", err))
	}

	var (
		table  *Table
		format string
	)
	switch cfg.Strategy {
	case platform.StrategyQuoteUnwrap:
		table = parseDelimited(unwrapQuotedLines(text), cfg.DelimiterRune())
		format = "quote_wrapped_tsv"
	case platform.StrategyFullyQuoted:
		table = parseDelimited(text, cfg.DelimiterRune())
		format = "quoted_csv"
	default:
		delim := p.detector.DetectDelimiter(detect.SampleLines(text, p.sampleLines), cfg)
		table = parseDelimited(text, delim)
		format = formatLabel(delim)
	}

	if table.IsEmpty() {
		r := failed(code, "no usable rows parsed")
		r.Encoding = enc
		r.Format = format
		return r
	}

	p.dates.NormalizeTable(table, cfg)

	return Result{
		Success:      true,
		Table:        table,
		Platform:     code,
		Encoding:     enc,
		Format:       format,
		RowsParsed:   table.RowCount(),
		QualityScore: parseQualityScore(table, cfg),
	}
}

// unwrapQuotedLines strips the single outer quote pair some sources wrap
// around every row and collapses doubled inner quotes, yielding plain
// delimited text.
func unwrapQuotedLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) >= 2 && strings.HasPrefix(line, `"`) && strings.HasSuffix(line, `"`) {
			line = line[1 : len(line)-1]
			line = strings.ReplaceAll(line, `""`, `"`)
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// parseDelimited reads header plus data rows with a tolerant CSV reader.
// Rows shorter than the header are padded with nulls, longer rows truncated,
// and unreadable lines skipped. A nil-safe empty table is returned when no
// header can be read.
func parseDelimited(text string, delim rune) *Table {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return &Table{}
	}
	columns := make([]string, len(header))
	for i, c := range header {
		columns[i] = strings.TrimSpace(c)
	}

	table := &Table{Columns: columns}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Structurally broken line: skip it, keep the rest of the file.
			continue
		}
		row := make([]string, len(columns))
		for i := range columns {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		if allEmpty(row) {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// parseQualityScore grades how well the file matched the platform's declared
// shape: expected columns present, cells populated, numeric columns numeric.
func parseQualityScore(t *Table, cfg *platform.Config) float64 {
	if t.IsEmpty() {
		return 0
	}

	columnScore := 100.0
	if len(cfg.ExpectedColumns) > 0 {
		present := 0
		for _, c := range cfg.ExpectedColumns {
			if t.HasColumn(c) {
				present++
			}
		}
		columnScore = float64(present) / float64(len(cfg.ExpectedColumns)) * 100
	}

	nonEmpty := 0
	total := len(t.Rows) * len(t.Columns)
	for _, row := range t.Rows {
		for _, cell := range row {
			if cell != "" {
				nonEmpty++
			}
		}
	}
	completenessScore := 0.0
	if total > 0 {
		completenessScore = float64(nonEmpty) / float64(total) * 100
	}

	consistencyScore := 100.0
	for _, col := range cfg.NumericColumns {
		values := t.Values(col)
		if values == nil {
			continue
		}
		numeric, seen := 0, 0
		for _, v := range values {
			if v == "" {
				continue
			}
			seen++
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				numeric++
			}
		}
		if seen > 0 && float64(numeric)/float64(seen) < 0.5 {
			consistencyScore -= numericConsistencyPenalty
		}
	}
	if consistencyScore < 0 {
		consistencyScore = 0
	}

	return qualityWeightColumns*columnScore +
		qualityWeightCompleteness*completenessScore +
		qualityWeightConsistency*consistencyScore
}

func formatLabel(delim rune) string {
	switch delim {
	case '\t':
		return "tsv"
	case ',':
		return "csv"
	default:
		return "delimited"
	}
}

func failed(platformCode, message string) Result {
	return Result{Success: false, Platform: platformCode, ErrorMessage: message}
}

func allEmpty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
