package validate

import (
	"regexp"

	"github.com/soundledger/stream-ingest-iq/internal/platform"
)

// isrcPattern matches a well-formed ISRC: country, registrant, year, and
// designation segments, uppercase only.
var isrcPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}[0-9]{2}[0-9]{5}$`)

// numericRule bounds a well-known numeric column. Values outside the bounds
// are data errors, not format quirks, so they carry error severity.
type numericRule struct {
	Column string
	Min    float64
	Max    float64
}

// numericRules is the ordered shared table. Bounds are generous by intent:
// they catch corrupt values, not outliers.
var numericRules = []numericRule{
	{Column: "streams", Min: 0, Max: 1_000_000_000},
	{Column: "plays", Min: 0, Max: 1_000_000_000},
	{Column: "duration", Min: 0, Max: 86_400},
	{Column: "price", Min: 0, Max: 1_000},
	{Column: "age", Min: 0, Max: 120},
}

// textRule bounds the length of a well-known text column in runes.
type textRule struct {
	Column string
	MinLen int
	MaxLen int
}

var textRules = []textRule{
	{Column: "artist_name", MinLen: 1, MaxLen: 500},
	{Column: "track_name", MinLen: 1, MaxLen: 1000},
	{Column: "song_name", MinLen: 1, MaxLen: 1000},
	{Column: "track_title", MinLen: 1, MaxLen: 1000},
	{Column: "album_name", MinLen: 0, MaxLen: 1000},
}

// vocabularyRule checks a column against a platform-declared value set or
// pattern list.
type vocabularyRule struct {
	Name     string
	Label    string
	Columns  []string
	Severity Severity
	allowed  map[string]bool
	patterns []*regexp.Regexp
}

func (r vocabularyRule) accepts(value string) bool {
	if r.allowed != nil {
		return r.allowed[value]
	}
	for _, p := range r.patterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// vocabularyRules builds the applicable vocabulary checks for one platform.
// Device names vary endlessly, so unrecognized devices are informational;
// the closed sets are graded as warnings.
func vocabularyRules(cfg *platform.Config) []vocabularyRule {
	var rules []vocabularyRule

	if len(cfg.CountryCodes) > 0 {
		rules = append(rules, vocabularyRule{
			Name:     "country_codes",
			Label:    "country code",
			Columns:  []string{"country", "country_code", "geography"},
			Severity: SeverityWarning,
			allowed:  toSet(cfg.CountryCodes),
		})
	}
	if len(cfg.ProductTypes) > 0 {
		rules = append(rules, vocabularyRule{
			Name:     "product_types",
			Label:    "product type",
			Columns:  []string{"product_type"},
			Severity: SeverityWarning,
			allowed:  toSet(cfg.ProductTypes),
		})
	}
	if len(cfg.UserTypes) > 0 {
		rules = append(rules, vocabularyRule{
			Name:     "user_types",
			Label:    "user type",
			Columns:  []string{"user_type", "subscription"},
			Severity: SeverityWarning,
			allowed:  toSet(cfg.UserTypes),
		})
	}
	if len(cfg.ContextTypes) > 0 {
		rules = append(rules, vocabularyRule{
			Name:     "context_types",
			Label:    "context type",
			Columns:  []string{"class_type", "context_type"},
			Severity: SeverityWarning,
			allowed:  toSet(cfg.ContextTypes),
		})
	}
	if len(cfg.DevicePatterns) > 0 {
		rule := vocabularyRule{
			Name:     "device_patterns",
			Label:    "device pattern",
			Columns:  []string{"device", "device_type"},
			Severity: SeverityInfo,
		}
		for _, raw := range cfg.DevicePatterns {
			if p, err := regexp.Compile(raw); err == nil {
				rule.patterns = append(rule.patterns, p)
			}
		}
		if len(rule.patterns) > 0 {
			rules = append(rules, rule)
		}
	}
	return rules
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
