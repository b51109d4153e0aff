package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_LoadsCatalog(t *testing.T) {
	// The embedded catalog must load and contain all nine platforms
	registry, err := NewRegistry()
	require.NoError(t, err, "embedded catalog should parse and validate")

	assert.Len(t, registry.All(), 9, "catalog should define nine platforms")

	expectedCodes := []string{
		"apl-apple", "fbk-facebook", "scu-soundcloud", "spo-spotify",
		"boo-boomplay", "awa-awa", "vvo-vevo", "plt-peloton", "dzr-deezer",
	}
	for _, code := range expectedCodes {
		cfg, ok := registry.Get(code)
		require.True(t, ok, "platform %s should be in the catalog", code)
		assert.Equal(t, code, cfg.Code)
		assert.NotEmpty(t, cfg.Name)
		assert.NotEmpty(t, cfg.Aliases)
		assert.NotEmpty(t, cfg.MetricType)
	}
}

func TestNewRegistry_Strategies(t *testing.T) {
	// Apple is the only quote-wrapped source, Facebook the only fully-quoted one
	registry, err := NewRegistry()
	require.NoError(t, err)

	apple, _ := registry.Get("apl-apple")
	assert.Equal(t, StrategyQuoteUnwrap, apple.Strategy)
	assert.Equal(t, "\t", apple.Delimiter)

	facebook, _ := registry.Get("fbk-facebook")
	assert.Equal(t, StrategyFullyQuoted, facebook.Strategy)
	assert.Equal(t, ",", facebook.Delimiter)

	for _, cfg := range registry.All() {
		if cfg.Code == "apl-apple" || cfg.Code == "fbk-facebook" {
			continue
		}
		assert.Equal(t, StrategyGeneric, cfg.Strategy, "platform %s should use the generic strategy", cfg.Code)
	}
}

func TestNewRegistry_DateFormats(t *testing.T) {
	// Boomplay declares European dd/mm/yyyy, AWA the compact yyyymmdd layout
	registry, err := NewRegistry()
	require.NoError(t, err)

	boomplay, _ := registry.Get("boo-boomplay")
	assert.Equal(t, "02/01/2006", boomplay.DateFormat)

	awa, _ := registry.Get("awa-awa")
	assert.Equal(t, "20060102", awa.DateFormat)

	spotify, _ := registry.Get("spo-spotify")
	assert.Empty(t, spotify.DateFormat, "spotify declares no explicit date format")
}

func TestConfig_DelimiterRune(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	apple, _ := registry.Get("apl-apple")
	assert.Equal(t, '\t', apple.DelimiterRune())

	facebook, _ := registry.Get("fbk-facebook")
	assert.Equal(t, ',', facebook.DelimiterRune())
}

func TestRegistry_Get_Unknown(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	_, ok := registry.Get("tik-tiktok")
	assert.False(t, ok)
}
