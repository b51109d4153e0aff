// Package validate runs the rule-based quality checks over parsed report
// tables. Every rule produces issues instead of errors; the engine always
// returns a Result so a low-quality file can still be scored, logged, and
// stored.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/soundledger/stream-ingest-iq/internal/parse"
	"github.com/soundledger/stream-ingest-iq/internal/platform"
)

// Severity classifies an issue. Severities drive both the score penalty and
// how the orchestrator reports the file.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Issue is one finding from one rule. Column is empty for table-level rules.
// RowCount is how many values or rows offended, Percentage is that count
// over the values the rule examined, and SampleValues holds up to
// sampleLimit offending values verbatim.
type Issue struct {
	Rule         string   `json:"rule"`
	Severity     Severity `json:"severity"`
	Column       string   `json:"column,omitempty"`
	Message      string   `json:"message"`
	RowCount     int      `json:"row_count,omitempty"`
	SampleValues []string `json:"sample_values,omitempty"`
	Percentage   float64  `json:"percentage,omitempty"`
}

// sampleLimit caps how many offending values an issue carries.
const sampleLimit = 5

func takeSample(samples []string, v string) []string {
	if len(samples) < sampleLimit {
		return append(samples, v)
	}
	return samples
}

func pct(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}

// Scores are the three quality axes plus their weighted blend, each 0-100.
type Scores struct {
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Validity     float64 `json:"validity"`
	Overall      float64 `json:"overall"`
}

// Result is the outcome of validating one table.
type Result struct {
	RulesPassed int                `json:"rules_passed"`
	RulesTotal  int                `json:"rules_total"`
	Issues      []Issue            `json:"issues"`
	Scores      Scores             `json:"scores"`
	Metrics     map[string]float64 `json:"metrics"`
}

// HasCritical reports whether any issue is critical.
func (r Result) HasCritical() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Thresholds hold the tunable cut points for the ratio-based rules. The
// defaults reflect operational experience with real label feeds; override
// them through configuration, not code.
type Thresholds struct {
	// NullWarnRatio and NullErrorRatio grade per-column emptiness.
	NullWarnRatio  float64
	NullErrorRatio float64

	// Mixed-type detection: a declared numeric column whose numeric share
	// falls inside [low, high) is flagged as mixed.
	MixedTypeLowRatio  float64
	MixedTypeHighRatio float64

	// Date parseability samples the first DateSampleSize values per date
	// column; an unparseable share above DateCriticalRatio is critical.
	DateSampleSize    int
	DateCriticalRatio float64

	// DuplicateErrorRatio escalates duplicate rows from warning to error.
	DuplicateErrorRatio float64
}

// DefaultThresholds returns the standard cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NullWarnRatio:       0.80,
		NullErrorRatio:      0.95,
		MixedTypeLowRatio:   0.50,
		MixedTypeHighRatio:  0.95,
		DateSampleSize:      100,
		DateCriticalRatio:   0.10,
		DuplicateErrorRatio: 0.05,
	}
}

// Engine validates tables against the shared rule set plus the platform's
// declared vocabulary. Safe for concurrent use.
type Engine struct {
	thresholds Thresholds
	dates      *parse.DateNormalizer
}

// NewEngine creates a validation engine with the given thresholds.
func NewEngine(thresholds Thresholds) *Engine {
	return &Engine{
		thresholds: thresholds,
		dates:      parse.NewDateNormalizer(),
	}
}

// ValidateTable runs every applicable rule over the table and returns the
// findings plus the derived quality scores. Rules never abort each other:
// a missing required column still lets the remaining rules run.
func (e *Engine) ValidateTable(t *parse.Table, cfg *platform.Config) Result {
	run := &ruleRun{metrics: make(map[string]float64)}

	if t == nil || t.IsEmpty() {
		run.record("empty_dataset", []Issue{{
			Rule:     "empty_dataset",
			Severity: SeverityCritical,
			Message:  "no rows to validate",
		}})
		return run.finish()
	}

	run.metrics["rows"] = float64(t.RowCount())
	run.metrics["columns"] = float64(len(t.Columns))

	e.checkRequiredColumns(run, t, cfg)
	e.checkNullRatios(run, t)
	e.checkMixedTypes(run, t, cfg)
	e.checkDates(run, t, cfg)
	e.checkNumericRanges(run, t)
	e.checkTextLengths(run, t)
	e.checkISRC(run, t)
	e.checkVocabularies(run, t, cfg)
	e.checkDuplicates(run, t)
	e.checkCaseConsistency(run, t)

	return run.finish()
}

// ruleRun accumulates findings across one validation pass.
type ruleRun struct {
	passed  int
	total   int
	issues  []Issue
	metrics map[string]float64
}

// record closes one rule check: nil issues means it passed.
func (r *ruleRun) record(rule string, issues []Issue) {
	r.total++
	if len(issues) == 0 {
		r.passed++
		return
	}
	r.issues = append(r.issues, issues...)
}

func (r *ruleRun) finish() Result {
	return Result{
		RulesPassed: r.passed,
		RulesTotal:  r.total,
		Issues:      r.issues,
		Scores:      scoreIssues(r.issues),
		Metrics:     r.metrics,
	}
}

func (e *Engine) checkRequiredColumns(run *ruleRun, t *parse.Table, cfg *platform.Config) {
	if cfg == nil || len(cfg.RequiredColumns) == 0 {
		return
	}
	var missing []string
	for _, col := range cfg.RequiredColumns {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	var issues []Issue
	if len(missing) > 0 {
		issues = append(issues, Issue{
			Rule:       "required_columns",
			Severity:   SeverityCritical,
			Message:    fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
			RowCount:   t.RowCount(),
			Percentage: 100,
		})
	}
	run.record("required_columns", issues)
}

func (e *Engine) checkNullRatios(run *ruleRun, t *parse.Table) {
	rows := float64(t.RowCount())
	for i, col := range t.Columns {
		empty := 0
		for _, row := range t.Rows {
			if row[i] == "" {
				empty++
			}
		}
		ratio := float64(empty) / rows

		var issues []Issue
		if ratio > e.thresholds.NullWarnRatio {
			severity := SeverityWarning
			if ratio > e.thresholds.NullErrorRatio {
				severity = SeverityError
			}
			issues = append(issues, Issue{
				Rule:       "null_ratio",
				Severity:   severity,
				Column:     col,
				Message:    fmt.Sprintf("column %s is %.0f%% null", col, ratio*100),
				RowCount:   empty,
				Percentage: ratio * 100,
			})
		}
		run.record("null_ratio", issues)
	}
}

func (e *Engine) checkMixedTypes(run *ruleRun, t *parse.Table, cfg *platform.Config) {
	if cfg == nil {
		return
	}
	for _, col := range cfg.NumericColumns {
		values := t.Values(col)
		if values == nil {
			continue
		}
		numeric, seen := 0, 0
		var samples []string
		for _, v := range values {
			if v == "" {
				continue
			}
			seen++
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				numeric++
			} else {
				samples = takeSample(samples, v)
			}
		}
		if seen == 0 {
			continue
		}
		ratio := float64(numeric) / float64(seen)

		var issues []Issue
		if ratio >= e.thresholds.MixedTypeLowRatio && ratio < e.thresholds.MixedTypeHighRatio {
			issues = append(issues, Issue{
				Rule:         "mixed_types",
				Severity:     SeverityWarning,
				Column:       col,
				Message:      fmt.Sprintf("column %s is only %.0f%% numeric", col, ratio*100),
				RowCount:     seen - numeric,
				SampleValues: samples,
				Percentage:   pct(seen-numeric, seen),
			})
		}
		run.record("mixed_types", issues)
	}
}

func (e *Engine) checkDates(run *ruleRun, t *parse.Table, cfg *platform.Config) {
	layout := ""
	if cfg != nil {
		layout = cfg.DateFormat
	}
	for _, col := range e.dates.DateColumns(t.Columns, cfg) {
		values := t.Values(col)
		sampled, bad := 0, 0
		var samples []string
		for _, v := range values {
			if v == "" {
				continue
			}
			sampled++
			if _, ok := e.dates.Parse(v, layout); !ok {
				bad++
				samples = takeSample(samples, v)
			}
			if sampled >= e.thresholds.DateSampleSize {
				break
			}
		}
		if sampled == 0 {
			continue
		}
		ratio := float64(bad) / float64(sampled)
		run.metrics["unparseable_dates."+col] = ratio

		var issues []Issue
		if bad > 0 {
			severity := SeverityWarning
			if ratio > e.thresholds.DateCriticalRatio {
				severity = SeverityCritical
			}
			issues = append(issues, Issue{
				Rule:         "date_parseability",
				Severity:     severity,
				Column:       col,
				Message:      fmt.Sprintf("%d of %d sampled values in %s are not parseable dates", bad, sampled, col),
				RowCount:     bad,
				SampleValues: samples,
				Percentage:   ratio * 100,
			})
		}
		run.record("date_parseability", issues)
	}
}

func (e *Engine) checkNumericRanges(run *ruleRun, t *parse.Table) {
	for _, rule := range numericRules {
		values := t.Values(rule.Column)
		if values == nil {
			continue
		}
		outOfRange, seen := 0, 0
		var samples []string
		for _, v := range values {
			if v == "" {
				continue
			}
			seen++
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			if f < rule.Min || f > rule.Max {
				outOfRange++
				samples = takeSample(samples, v)
			}
		}
		var issues []Issue
		if outOfRange > 0 {
			issues = append(issues, Issue{
				Rule:     "numeric_range",
				Severity: SeverityError,
				Column:   rule.Column,
				Message: fmt.Sprintf("%d values in %s fall outside [%g, %g]",
					outOfRange, rule.Column, rule.Min, rule.Max),
				RowCount:     outOfRange,
				SampleValues: samples,
				Percentage:   pct(outOfRange, seen),
			})
		}
		run.record("numeric_range", issues)
	}
}

func (e *Engine) checkTextLengths(run *ruleRun, t *parse.Table) {
	for _, rule := range textRules {
		values := t.Values(rule.Column)
		if values == nil {
			continue
		}
		bad, seen := 0, 0
		var samples []string
		for _, v := range values {
			if v == "" && rule.MinLen == 0 {
				continue
			}
			seen++
			if len([]rune(v)) < rule.MinLen || len([]rune(v)) > rule.MaxLen {
				bad++
				samples = takeSample(samples, v)
			}
		}
		var issues []Issue
		if bad > 0 {
			issues = append(issues, Issue{
				Rule:     "text_length",
				Severity: SeverityWarning,
				Column:   rule.Column,
				Message: fmt.Sprintf("%d values in %s fall outside length [%d, %d]",
					bad, rule.Column, rule.MinLen, rule.MaxLen),
				RowCount:     bad,
				SampleValues: samples,
				Percentage:   pct(bad, seen),
			})
		}
		run.record("text_length", issues)
	}
}

func (e *Engine) checkISRC(run *ruleRun, t *parse.Table) {
	values := t.Values("isrc")
	if values == nil {
		return
	}
	invalid, seen := 0, 0
	var samples []string
	for _, v := range values {
		if v == "" {
			continue
		}
		seen++
		if !isrcPattern.MatchString(v) {
			invalid++
			samples = takeSample(samples, v)
		}
	}
	var issues []Issue
	if invalid > 0 {
		issues = append(issues, Issue{
			Rule:         "invalid_isrc_format",
			Severity:     SeverityError,
			Column:       "isrc",
			Message:      fmt.Sprintf("%d values are not valid ISRC codes", invalid),
			RowCount:     invalid,
			SampleValues: samples,
			Percentage:   pct(invalid, seen),
		})
	}
	run.record("invalid_isrc_format", issues)
}

func (e *Engine) checkVocabularies(run *ruleRun, t *parse.Table, cfg *platform.Config) {
	if cfg == nil {
		return
	}
	for _, rule := range vocabularyRules(cfg) {
		col, values := firstPresentColumn(t, rule.Columns)
		if values == nil {
			continue
		}
		invalid, seen, samples := countOutsideVocabulary(values, rule)
		var issues []Issue
		if invalid > 0 {
			issues = append(issues, Issue{
				Rule:         rule.Name,
				Severity:     rule.Severity,
				Column:       col,
				Message:      fmt.Sprintf("%d values in %s are outside the expected %s set", invalid, col, rule.Label),
				RowCount:     invalid,
				SampleValues: samples,
				Percentage:   pct(invalid, seen),
			})
		}
		run.record(rule.Name, issues)
	}
}

func (e *Engine) checkDuplicates(run *ruleRun, t *parse.Table) {
	seen := make(map[string]bool, t.RowCount())
	dups := 0
	for _, row := range t.Rows {
		key := strings.Join(row, "\x1f")
		if seen[key] {
			dups++
			continue
		}
		seen[key] = true
	}
	ratio := float64(dups) / float64(t.RowCount())
	run.metrics["duplicate_ratio"] = ratio

	var issues []Issue
	if dups > 0 {
		severity := SeverityWarning
		if ratio > e.thresholds.DuplicateErrorRatio {
			severity = SeverityError
		}
		issues = append(issues, Issue{
			Rule:       "duplicate_rows",
			Severity:   severity,
			Message:    fmt.Sprintf("%d duplicate rows (%.1f%%)", dups, ratio*100),
			RowCount:   dups,
			Percentage: ratio * 100,
		})
	}
	run.record("duplicate_rows", issues)
}

func (e *Engine) checkCaseConsistency(run *ruleRun, t *parse.Table) {
	for _, rule := range textRules {
		values := t.Values(rule.Column)
		if values == nil {
			continue
		}
		forms := make(map[string]string)
		inconsistent, seen := 0, 0
		var samples []string
		for _, v := range values {
			if v == "" {
				continue
			}
			seen++
			lower := strings.ToLower(v)
			if prev, ok := forms[lower]; ok {
				if prev != v {
					inconsistent++
					samples = takeSample(samples, v)
				}
				continue
			}
			forms[lower] = v
		}
		var issues []Issue
		if inconsistent > 0 {
			issues = append(issues, Issue{
				Rule:     "case_inconsistency",
				Severity: SeverityWarning,
				Column:   rule.Column,
				Message: fmt.Sprintf("%d values in %s differ from earlier rows only by letter case",
					inconsistent, rule.Column),
				RowCount:     inconsistent,
				SampleValues: samples,
				Percentage:   pct(inconsistent, seen),
			})
		}
		run.record("case_inconsistency", issues)
	}
}

// firstPresentColumn returns the first candidate column that exists in the
// table, with its values.
func firstPresentColumn(t *parse.Table, candidates []string) (string, []string) {
	for _, col := range candidates {
		if values := t.Values(col); values != nil {
			return col, values
		}
	}
	return "", nil
}

func countOutsideVocabulary(values []string, rule vocabularyRule) (int, int, []string) {
	invalid, seen := 0, 0
	var samples []string
	for _, v := range values {
		if v == "" {
			continue
		}
		seen++
		if !rule.accepts(v) {
			invalid++
			samples = takeSample(samples, v)
		}
	}
	return invalid, seen, samples
}
