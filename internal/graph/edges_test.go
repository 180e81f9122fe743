package graph

import (
	"fmt"
	"math"
	"testing"
)

func TestBuildEdges(t *testing.T) {
	var outs []Outcome
	for i := 0; i < 6; i++ {
		var items []string
		gain := int64(20)
		if i < 3 {
			items = []string{"Lamp"}
			gain = 200
		}
		outs = append(outs, walk(fmt.Sprintf("r%d", i), 100, 0,
			hop{trip: "A", change: 10},
			hop{trip: "B", change: gain, items: items},
		)...)
	}
	// seen once: dropped
	outs = append(outs, walk("solo", 100, 0, hop{trip: "C", change: 10}, hop{trip: "D", change: 10})...)
	// transition out of a death step never happens
	outs = append(outs, walk("dead", 100, 0, hop{trip: "E", change: -100}, hop{trip: "F", change: 10})...)
	outs = append(outs, walk("dead2", 100, 0, hop{trip: "E", change: -100}, hop{trip: "F", change: 10})...)

	edges := BuildEdges(ReconstructJourneys(outs, nil), 0)
	if len(edges) != 1 {
		t.Fatalf("edges from %d trips, want only A: %+v", len(edges), edges)
	}
	ab := edges["A"]
	if len(ab) != 1 || ab[0].To != "B" || ab[0].Count != 6 {
		t.Fatalf("A edges = %+v", ab)
	}
	if ab[0].SurvivalRate != 1 {
		t.Errorf("survival = %v, want 1", ab[0].SurvivalRate)
	}
	if math.Abs(ab[0].AvgValueGained-110) > eps {
		t.Errorf("avg gained = %v, want 110", ab[0].AvgValueGained)
	}
	bi := ab[0].BeneficialItems
	if len(bi) != 1 || bi[0].Item != "Lamp" || math.Abs(bi[0].Delta-180) > eps {
		t.Errorf("beneficial items = %+v, want Lamp +180", bi)
	}
}

func TestBuildEdges_DeltaThreshold(t *testing.T) {
	var outs []Outcome
	for i := 0; i < 6; i++ {
		var items []string
		gain := int64(20)
		if i < 3 {
			items = []string{"Lamp"}
			gain = 60
		}
		outs = append(outs, walk(fmt.Sprintf("r%d", i), 100, 0,
			hop{trip: "A", change: 10},
			hop{trip: "B", change: gain, items: items},
		)...)
	}
	journeys := ReconstructJourneys(outs, nil)

	if bi := BuildEdges(journeys, 0)["A"][0].BeneficialItems; len(bi) != 0 {
		t.Errorf("delta 40 is below the default 50, got %+v", bi)
	}
	if bi := BuildEdges(journeys, 30)["A"][0].BeneficialItems; len(bi) != 1 {
		t.Errorf("delta 40 clears a threshold of 30, got %+v", bi)
	}
}

func TestBuildEdges_Ordering(t *testing.T) {
	var outs []Outcome
	for i, to := range []string{"C", "B", "B", "C", "B", "D", "D"} {
		outs = append(outs, walk(fmt.Sprintf("r%d", i), 100, 0, hop{trip: "A", change: 10}, hop{trip: to, change: 10})...)
	}
	edges := BuildEdges(ReconstructJourneys(outs, nil), 0)["A"]
	var got []string
	for _, e := range edges {
		got = append(got, fmt.Sprintf("%s:%d", e.To, e.Count))
	}
	want := []string{"B:3", "C:2", "D:2"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("edges = %v, want %v", got, want)
	}
}
