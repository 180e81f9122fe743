package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"ratfun/tripgraph/internal/graph"
)

var validate = validator.New()

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Graph    GraphConfig    `mapstructure:"graph"`
	Rebuild  RebuildConfig  `mapstructure:"rebuild"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type GraphConfig struct {
	MinValuePercent     float64        `mapstructure:"min_value_percent" validate:"gte=0,lte=100"`
	BucketBounds        []int64        `mapstructure:"bucket_bounds"`
	BeneficialItemDelta float64        `mapstructure:"beneficial_item_delta" validate:"gte=0"`
	Workers             int            `mapstructure:"workers" validate:"gte=0"`
	Success             SuccessConfig  `mapstructure:"success"`
	Patterns            PatternsConfig `mapstructure:"patterns"`
}

type SuccessConfig struct {
	MinTrips       int   `mapstructure:"min_trips" validate:"gte=1"`
	MinValueGained int64 `mapstructure:"min_value_gained"`
	MinPeakValue   int64 `mapstructure:"min_peak_value" validate:"gte=0"`
	MustSurvive    bool  `mapstructure:"must_survive"`
}

type PatternsConfig struct {
	MinOccurrences int `mapstructure:"min_occurrences" validate:"gte=1"`
	MaxLength      int `mapstructure:"max_length" validate:"gte=2"`
	Limit          int `mapstructure:"limit" validate:"gte=1"`
}

type RebuildConfig struct {
	MaxOutcomes int           `mapstructure:"max_outcomes" validate:"gte=0"`
	MaxAge      time.Duration `mapstructure:"max_age" validate:"gte=0"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	b := graph.DefaultBuildOptions()
	v.SetDefault("graph.min_value_percent", b.MinValuePercent)
	v.SetDefault("graph.bucket_bounds", b.Buckets.Bounds[:])
	v.SetDefault("graph.beneficial_item_delta", b.BeneficialItemDelta)
	v.SetDefault("graph.workers", 0)
	v.SetDefault("graph.success.min_trips", b.Success.MinTrips)
	v.SetDefault("graph.success.min_value_gained", b.Success.MinValueGained)
	v.SetDefault("graph.success.min_peak_value", b.Success.MinPeakValue)
	v.SetDefault("graph.success.must_survive", b.Success.MustSurvive)
	v.SetDefault("graph.patterns.min_occurrences", b.PatternMinOccurrences)
	v.SetDefault("graph.patterns.max_length", b.PatternMaxLength)
	v.SetDefault("graph.patterns.limit", b.PatternLimit)

	p := graph.DefaultConfig().Staleness
	v.SetDefault("rebuild.max_outcomes", p.MaxOutcomes)
	v.SetDefault("rebuild.max_age", p.MaxAge)

	v.SetDefault("server.addr", ":8420")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// defaults always validate
		panic(err)
	}
	return cfg
}

// Load reads configuration from file and environment. An empty path uses
// defaults and TRIPGRAPH_* environment variables only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TRIPGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

// Validate checks configuration for issues that are legal but likely wrong
// and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if n := len(c.Graph.BucketBounds); n != 0 && n != 4 {
		warnings = append(warnings, fmt.Sprintf("graph.bucket_bounds has %d entries, need 4; using defaults", n))
	}
	for i := 1; i < len(c.Graph.BucketBounds); i++ {
		if c.Graph.BucketBounds[i] <= c.Graph.BucketBounds[i-1] {
			warnings = append(warnings, "graph.bucket_bounds is not strictly increasing")
			break
		}
	}

	if c.Graph.Success.MinValueGained < 0 {
		warnings = append(warnings, fmt.Sprintf("graph.success.min_value_gained %d admits losing journeys", c.Graph.Success.MinValueGained))
	}

	if c.Graph.Patterns.MinOccurrences == 1 {
		warnings = append(warnings, "graph.patterns.min_occurrences of 1 turns every journey into a pattern")
	}

	if c.Rebuild.MaxOutcomes == 0 && c.Rebuild.MaxAge == 0 {
		warnings = append(warnings, "rebuild policy is empty; staleness will never recommend a rebuild")
	}

	return warnings
}

// BuildOptions converts the graph section into build options.
func (c *Config) BuildOptions(logger *slog.Logger) graph.BuildOptions {
	return graph.BuildOptions{
		MinValuePercent:     c.Graph.MinValuePercent,
		Buckets:             graph.NewBucketScheme(c.Graph.BucketBounds),
		BeneficialItemDelta: c.Graph.BeneficialItemDelta,
		Success: graph.SuccessCriteria{
			MinTrips:       c.Graph.Success.MinTrips,
			MinValueGained: c.Graph.Success.MinValueGained,
			MinPeakValue:   c.Graph.Success.MinPeakValue,
			MustSurvive:    c.Graph.Success.MustSurvive,
		},
		PatternMinOccurrences: c.Graph.Patterns.MinOccurrences,
		PatternMaxLength:      c.Graph.Patterns.MaxLength,
		PatternLimit:          c.Graph.Patterns.Limit,
		Workers:               c.Graph.Workers,
		Logger:                logger,
	}
}

// StalenessPolicy converts the rebuild section.
func (c *Config) StalenessPolicy() graph.StalenessPolicy {
	return graph.StalenessPolicy{
		MaxOutcomes: c.Rebuild.MaxOutcomes,
		MaxAge:      c.Rebuild.MaxAge,
	}
}

// NewLogger builds the process logger from the log section.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
