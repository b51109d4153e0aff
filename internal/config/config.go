package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Ingest     IngestConfig
	Validation ValidationConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type IngestConfig struct {
	// ReportDir is the default directory scanned for report files.
	ReportDir string
	// FilePattern selects report files within ReportDir.
	FilePattern string
	// SampleBytes bounds how much of a file encoding detection reads.
	SampleBytes int
}

// ValidationConfig carries the rule thresholds. Ratios are 0-1 fractions.
type ValidationConfig struct {
	NullWarnRatio       float64
	NullErrorRatio      float64
	MixedTypeLowRatio   float64
	MixedTypeHighRatio  float64
	DateSampleSize      int
	DateCriticalRatio   float64
	DuplicateErrorRatio float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "ingestiq"),
			Password: getEnv("DB_PASSWORD", "ingestiq_dev_password"),
			DBName:   getEnv("DB_NAME", "ingestiq"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("DB_MAX_CONNS", 20),
		},
		Ingest: IngestConfig{
			ReportDir:   getEnv("INGEST_REPORT_DIR", "./reports"),
			FilePattern: getEnv("INGEST_FILE_PATTERN", "*"),
			SampleBytes: getIntEnv("INGEST_SAMPLE_BYTES", 64*1024),
		},
		Validation: ValidationConfig{
			NullWarnRatio:       getFloatEnv("VALIDATION_NULL_WARN_RATIO", 0.80),
			NullErrorRatio:      getFloatEnv("VALIDATION_NULL_ERROR_RATIO", 0.95),
			MixedTypeLowRatio:   getFloatEnv("VALIDATION_MIXED_LOW_RATIO", 0.50),
			MixedTypeHighRatio:  getFloatEnv("VALIDATION_MIXED_HIGH_RATIO", 0.95),
			DateSampleSize:      getIntEnv("VALIDATION_DATE_SAMPLE_SIZE", 100),
			DateCriticalRatio:   getFloatEnv("VALIDATION_DATE_CRITICAL_RATIO", 0.10),
			DuplicateErrorRatio: getFloatEnv("VALIDATION_DUPLICATE_ERROR_RATIO", 0.05),
		},
	}
}

// DSN returns the Postgres connection string.
func (d *DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password +
		"@" + d.Host + ":" + d.Port +
		"/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
