package graph

import "log/slog"

// SuccessCriteria decides which journeys count as proven routes.
type SuccessCriteria struct {
	MinTrips       int
	MinValueGained int64
	MinPeakValue   int64
	MustSurvive    bool
}

// DefaultSuccessCriteria returns the stock thresholds: 3 trips, +300 value, 500 peak.
func DefaultSuccessCriteria() SuccessCriteria {
	return SuccessCriteria{
		MinTrips:       3,
		MinValueGained: 300,
		MinPeakValue:   500,
	}
}

// BuildOptions holds graph build parameters
type BuildOptions struct {
	MinValuePercent       float64
	Buckets               BucketScheme
	BeneficialItemDelta   float64
	Success               SuccessCriteria
	PatternMinOccurrences int
	PatternMaxLength      int
	PatternLimit          int
	// Workers bounds concurrent node statistics; <= 0 means NumCPU.
	Workers int
	Logger  *slog.Logger
}

// DefaultBuildOptions returns sensible defaults
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		MinValuePercent:       10,
		Buckets:               DefaultBucketScheme(),
		BeneficialItemDelta:   50,
		Success:               DefaultSuccessCriteria(),
		PatternMinOccurrences: 3,
		PatternMaxLength:      5,
		PatternLimit:          50,
	}
}

func (o BuildOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
