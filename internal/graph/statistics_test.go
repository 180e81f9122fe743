package graph

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestCalculateStatistics_NoOutcomesIsNeutral(t *testing.T) {
	s := CalculateStatistics("t1", nil, nil, DefaultBucketScheme())
	if s.SurvivalRate != 0.5 {
		t.Errorf("survival rate = %v, want 0.5", s.SurvivalRate)
	}
	if s.AvgValueChange != 0 || s.Count != 0 {
		t.Errorf("avg=%v count=%d, want zeros", s.AvgValueChange, s.Count)
	}
	if s.ByBucket == nil {
		t.Error("ByBucket should be an empty map, not nil")
	}
}

func TestCalculateStatistics_Metrics(t *testing.T) {
	outs := []Outcome{
		single("a", "t1", 100, 10),
		single("b", "t1", 100, 20),
		single("c", "t1", 100, 30),
		single("d", "t1", 40, -40),
	}
	s := CalculateStatistics("t1", outs, outs, DefaultBucketScheme())

	if s.Count != 4 || s.Survivals != 3 || s.Deaths != 1 {
		t.Fatalf("count=%d survivals=%d deaths=%d", s.Count, s.Survivals, s.Deaths)
	}
	checks := []struct {
		name      string
		got, want float64
	}{
		{"avg", s.AvgValueChange, 5},
		{"median", s.MedianValueChange, 15},
		{"survival", s.SurvivalRate, 0.75},
		{"gain on survival", s.AvgGainOnSurvival, 20},
		{"loss on death", s.AvgLossOnDeath, 40},
		{"stddev", s.StdDevValueChange, math.Sqrt((25 + 225 + 625 + 2025) / 4.0)},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > eps {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	low := s.ByBucket[BucketLow]
	if low.Count != 3 {
		t.Errorf("low bucket count = %d, want 3 (entry value 100)", low.Count)
	}
	veryLow := s.ByBucket[BucketVeryLow]
	if veryLow.Count != 1 || veryLow.Deaths != 1 {
		t.Errorf("very_low bucket = %+v, want the single death", veryLow)
	}
}

func TestUpdateWithOutcome_MatchesFullRecompute(t *testing.T) {
	changes := []int64{40, -10, 75, -200, 5, 0, 120, -35, 60, 15, -90, 33}
	var outs []Outcome
	for i, c := range changes {
		before := int64(150 + i*70)
		if c == -200 {
			before = 200
		}
		outs = append(outs, single(string(rune('a'+i)), "t1", before, c))
	}

	buckets := DefaultBucketScheme()
	inc := NeutralStatistics()
	for _, o := range outs {
		UpdateWithOutcome(&inc, o, buckets)
	}
	full := CalculateStatistics("t1", outs, outs, buckets)

	if inc.Count != full.Count || inc.Survivals != full.Survivals || inc.Deaths != full.Deaths {
		t.Fatalf("counts differ: incremental %+v, full %+v", inc.Metrics, full.Metrics)
	}
	if math.Abs(inc.AvgValueChange-full.AvgValueChange) > eps {
		t.Errorf("avg: incremental %v, full %v", inc.AvgValueChange, full.AvgValueChange)
	}
	if math.Abs(inc.SurvivalRate-full.SurvivalRate) > eps {
		t.Errorf("survival: incremental %v, full %v", inc.SurvivalRate, full.SurvivalRate)
	}
	if math.Abs(inc.AvgLossOnDeath-full.AvgLossOnDeath) > eps {
		t.Errorf("loss on death: incremental %v, full %v", inc.AvgLossOnDeath, full.AvgLossOnDeath)
	}
	for b, m := range full.ByBucket {
		if math.Abs(inc.ByBucket[b].AvgValueChange-m.AvgValueChange) > eps {
			t.Errorf("bucket %s avg: incremental %v, full %v", b, inc.ByBucket[b].AvgValueChange, m.AvgValueChange)
		}
	}
	if !inc.Stale {
		t.Error("incremental updates should mark statistics stale")
	}
	if full.Stale {
		t.Error("a full computation is never stale")
	}
}

func TestCalculateStatistics_Relations(t *testing.T) {
	outs := concat(
		walk("r1", 100, 0, hop{trip: "A", change: 10}, hop{trip: "B", change: 20}),
		walk("r2", 100, 10, hop{trip: "A", change: 10}, hop{trip: "B", change: 40}),
		walk("r3", 100, 20, hop{trip: "C", change: 10}, hop{trip: "B", change: 0}),
	)
	var onB []Outcome
	for _, o := range outs {
		if o.TripID == "B" {
			onB = append(onB, o)
		}
	}
	s := CalculateStatistics("B", onB, outs, DefaultBucketScheme())
	if len(s.Predecessors) != 2 {
		t.Fatalf("predecessors = %+v, want A and C", s.Predecessors)
	}
	a := s.Predecessors[0]
	if a.TripID != "A" || a.Count != 2 {
		t.Errorf("top predecessor = %+v, want A x2", a)
	}
	if math.Abs(a.AvgValueChange-30) > eps {
		t.Errorf("value change on B after A = %v, want 30", a.AvgValueChange)
	}
	if len(s.Successors) != 0 {
		t.Errorf("B is always last, got successors %+v", s.Successors)
	}
}

func TestItemInfluences(t *testing.T) {
	outs := []Outcome{
		walk("a", 100, 0, hop{trip: "t1", change: 100, items: []string{"Lamp"}})[0],
		walk("b", 100, 0, hop{trip: "t1", change: 80, items: []string{"Lamp"}})[0],
		walk("c", 100, 0, hop{trip: "t1", change: -100})[0],
		walk("d", 100, 0, hop{trip: "t1", change: 0})[0],
	}
	inf := computeItemInfluences(outs)
	if len(inf) != 1 {
		t.Fatalf("influences = %+v, want Lamp only", inf)
	}
	got := inf[0]
	if got.Item != "Lamp" || got.CountWith != 2 || got.CountWithout != 2 {
		t.Errorf("influence = %+v", got)
	}
	want := InfluenceScore(90, -50, 1, 0.5)
	if math.Abs(got.InfluenceScore-want) > eps {
		t.Errorf("score = %v, want %v", got.InfluenceScore, want)
	}
}

func TestItemInfluences_NeedTwoOnEachSide(t *testing.T) {
	outs := []Outcome{
		walk("a", 100, 0, hop{trip: "t1", change: 100, items: []string{"Lamp"}})[0],
		walk("b", 100, 0, hop{trip: "t1", change: 10})[0],
		walk("c", 100, 0, hop{trip: "t1", change: 10})[0],
	}
	if inf := computeItemInfluences(outs); len(inf) != 0 {
		t.Errorf("one sample with the item is not enough, got %+v", inf)
	}
}

func TestItemAwards(t *testing.T) {
	var outs []Outcome
	for i := 0; i < 10; i++ {
		o := single(string(rune('a'+i)), "t1", 100, 20)
		if i < 4 {
			o.Gained = []Item{{ID: "x", Name: "Key", Value: 25}}
		}
		outs = append(outs, o)
	}
	awards := computeItemAwards(outs)
	if len(awards) != 1 {
		t.Fatalf("awards = %+v", awards)
	}
	a := awards[0]
	if a.Item != "Key" || a.Count != 4 || math.Abs(a.Frequency-0.4) > eps || a.AvgValue != 25 {
		t.Errorf("award = %+v", a)
	}
	if !a.ConditionalOnSuccess {
		t.Error("every award came with a profitable survival")
	}
}

func TestBucketScheme(t *testing.T) {
	s := DefaultBucketScheme()
	cases := map[int64]ValueBucket{
		0: BucketVeryLow, 99: BucketVeryLow, 100: BucketLow, 249: BucketLow,
		250: BucketMedium, 999: BucketHigh, 1000: BucketVeryHigh, 1 << 40: BucketVeryHigh,
	}
	for v, want := range cases {
		if got := s.BucketFor(v); got != want {
			t.Errorf("BucketFor(%d) = %s, want %s", v, got, want)
		}
	}

	custom := NewBucketScheme([]int64{40, 10, 30, 20})
	if custom.Bounds != [4]int64{10, 20, 30, 40} {
		t.Errorf("bounds should be sorted, got %v", custom.Bounds)
	}
	if NewBucketScheme([]int64{1, 2}) != DefaultBucketScheme() {
		t.Error("wrong bound count should fall back to defaults")
	}
	if lo, hi := s.Range(BucketVeryHigh); lo != 1000 || hi != -1 {
		t.Errorf("very_high range = %d..%d", lo, hi)
	}
}
