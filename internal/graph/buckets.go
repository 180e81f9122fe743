package graph

import "sort"

// ValueBucket partitions agent value at trip entry.
type ValueBucket string

const (
	BucketVeryLow  ValueBucket = "very_low"
	BucketLow      ValueBucket = "low"
	BucketMedium   ValueBucket = "medium"
	BucketHigh     ValueBucket = "high"
	BucketVeryHigh ValueBucket = "very_high"
)

// AllBuckets lists the buckets in ascending order.
var AllBuckets = []ValueBucket{BucketVeryLow, BucketLow, BucketMedium, BucketHigh, BucketVeryHigh}

// BucketScheme holds the exclusive upper bounds of every bucket but the last.
// Values at or above the last bound fall into BucketVeryHigh.
type BucketScheme struct {
	Bounds [4]int64
}

// DefaultBucketScheme returns the stock boundaries 100, 250, 500, 1000.
func DefaultBucketScheme() BucketScheme {
	return BucketScheme{Bounds: [4]int64{100, 250, 500, 1000}}
}

// NewBucketScheme builds a scheme from four ascending bounds. Unsorted input is sorted.
func NewBucketScheme(bounds []int64) BucketScheme {
	if len(bounds) != 4 {
		return DefaultBucketScheme()
	}
	sorted := append([]int64(nil), bounds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var s BucketScheme
	copy(s.Bounds[:], sorted)
	return s
}

// BucketFor returns the bucket containing value.
func (s BucketScheme) BucketFor(value int64) ValueBucket {
	for i, bound := range s.Bounds {
		if value < bound {
			return AllBuckets[i]
		}
	}
	return BucketVeryHigh
}

// Range returns the inclusive lower and exclusive upper bound of a bucket.
// The upper bound of BucketVeryHigh is -1.
func (s BucketScheme) Range(b ValueBucket) (int64, int64) {
	for i, candidate := range AllBuckets {
		if candidate != b {
			continue
		}
		var lo int64
		if i > 0 {
			lo = s.Bounds[i-1]
		}
		if i == len(AllBuckets)-1 {
			return lo, -1
		}
		return lo, s.Bounds[i]
	}
	return 0, -1
}
