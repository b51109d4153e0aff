package platform

import (
	_ "embed"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Strategy selects how a platform's export files are parsed. It is a closed
// set: adding a platform means adding a catalog entry, never new parse code.
type Strategy string

const (
	// StrategyQuoteUnwrap handles files where every tab-delimited row is
	// additionally wrapped in one outer pair of quotes.
	StrategyQuoteUnwrap Strategy = "quote_unwrap"
	// StrategyFullyQuoted handles CSV files where every individual field is quoted.
	StrategyFullyQuoted Strategy = "fully_quoted"
	// StrategyGeneric runs delimiter detection and parses as plain delimited text.
	StrategyGeneric Strategy = "generic"
)

// Config is the immutable parsing and validation configuration for one
// platform. Instances are created once at startup from the embedded catalog
// and never mutated afterwards.
type Config struct {
	Code             string   `yaml:"code" validate:"required"`
	Name             string   `yaml:"name" validate:"required"`
	Aliases          []string `yaml:"aliases" validate:"required,min=1"`
	Strategy         Strategy `yaml:"strategy" validate:"required,oneof=quote_unwrap fully_quoted generic"`
	Delimiter        string   `yaml:"delimiter" validate:"required,len=1"`
	EncodingPriority []string `yaml:"encoding_priority"`

	// DateFormat is a Go layout tried before the shared format list.
	// Empty means the platform declares no explicit date format.
	DateFormat  string   `yaml:"date_format"`
	DateColumns []string `yaml:"date_columns"`

	RequiredColumns []string `yaml:"required_columns"`
	NumericColumns  []string `yaml:"numeric_columns"`
	ExpectedColumns []string `yaml:"expected_columns"`

	// MetricType is the canonical metric recorded for this platform's rows.
	MetricType string `yaml:"metric_type" validate:"required,oneof=streams plays saves shares video_views social_interactions fitness_plays"`

	// ColumnMappings maps source column names to canonical record fields
	// (artist_name, track_title, album_name, isrc, date, metric_value,
	// geography, device_type, subscription_type, context_type, or a
	// "demographic."-prefixed demographic key).
	ColumnMappings map[string]string `yaml:"column_mappings"`

	// Platform-specific validation vocabularies. Empty slices disable the
	// corresponding rule for this platform.
	CountryCodes   []string `yaml:"country_codes"`
	ProductTypes   []string `yaml:"product_types"`
	DevicePatterns []string `yaml:"device_patterns"`
	UserTypes      []string `yaml:"user_types"`
	ContextTypes   []string `yaml:"context_types"`
}

// DelimiterRune returns the configured delimiter as a rune.
func (c *Config) DelimiterRune() rune {
	return []rune(c.Delimiter)[0]
}

//go:embed catalog.yaml
var catalogYAML []byte

// Registry holds the platform catalog, indexed by code and preserving
// catalog order for alias scanning.
type Registry struct {
	byCode map[string]*Config
	order  []*Config
}

// NewRegistry parses and validates the embedded platform catalog.
func NewRegistry() (*Registry, error) {
	var doc struct {
		Platforms []*Config `yaml:"platforms"`
	}
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse platform catalog: %w", err)
	}
	if len(doc.Platforms) == 0 {
		return nil, fmt.Errorf("platform catalog is empty")
	}

	validate := validator.New()
	r := &Registry{byCode: make(map[string]*Config, len(doc.Platforms))}
	for _, cfg := range doc.Platforms {
		if err := validate.Struct(cfg); err != nil {
			return nil, fmt.Errorf("invalid catalog entry %q: %w", cfg.Code, err)
		}
		if _, dup := r.byCode[cfg.Code]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", cfg.Code)
		}
		r.byCode[cfg.Code] = cfg
		r.order = append(r.order, cfg)
	}
	return r, nil
}

// Get returns the config for a platform code.
func (r *Registry) Get(code string) (*Config, bool) {
	cfg, ok := r.byCode[code]
	return cfg, ok
}

// All returns every platform config in catalog order.
func (r *Registry) All() []*Config {
	return r.order
}
