package attribution

import (
	"testing"

	"github.com/AngelCh415/attribution-go/internal/config"
	"github.com/AngelCh415/attribution-go/internal/models"
)

func convertedJourney(t *testing.T, e *Engine, tps ...models.Touchpoint) models.Journey {
	t.Helper()
	j := journey(t, tps...)
	if !j.Converted {
		t.Fatal("fixture journey did not convert")
	}
	j.Credits = e.Distribute(j)
	return j
}

func TestAggregateAssistCounting(t *testing.T) {
	e := NewEngine(config.Defaults())
	acc := NewAccumulator()

	// google_ads and email assist, organic is the closer; the first-touch
	// channel still counts as an assist
	acc.Add(convertedJourney(t, e, tp("google_ads", 0, 0), tp("email", 3, 0), tp("organic", 6, 100)))

	sums := acc.Summarize(day0, day0.AddDate(0, 0, 7), nil, config.Defaults())
	byChannel := map[string]models.ChannelSummary{}
	for _, s := range sums {
		byChannel[s.Channel] = s
	}

	if byChannel["google_ads"].AssistedConversions != 1 {
		t.Errorf("google_ads assists: %d", byChannel["google_ads"].AssistedConversions)
	}
	if byChannel["email"].AssistedConversions != 1 {
		t.Errorf("email assists: %d", byChannel["email"].AssistedConversions)
	}
	if byChannel["organic"].AssistedConversions != 0 {
		t.Errorf("organic assists: %d", byChannel["organic"].AssistedConversions)
	}
	if byChannel["organic"].LastClickConversions != 1 {
		t.Errorf("organic last-click conversions: %d", byChannel["organic"].LastClickConversions)
	}
	if byChannel["google_ads"].FirstClickConversions != 1 {
		t.Errorf("google_ads first-click conversions: %d", byChannel["google_ads"].FirstClickConversions)
	}
}

func TestAggregateFractionalConversions(t *testing.T) {
	e := NewEngine(config.Defaults())
	acc := NewAccumulator()
	acc.Add(convertedJourney(t, e, tp("a", 0, 0), tp("b", 1, 0), tp("c", 2, 300)))

	sums := acc.Summarize(day0, day0.AddDate(0, 0, 3), nil, config.Defaults())
	var totalLinearConv float64
	for _, s := range sums {
		totalLinearConv += s.LinearConversions
	}
	// fractional conversions across channels sum to one conversion
	if !approx(totalLinearConv, 1) {
		t.Fatalf("fractional conversions sum: %v", totalLinearConv)
	}
}

func TestAggregateCreditDifferentialFlags(t *testing.T) {
	e := NewEngine(config.Defaults())
	acc := NewAccumulator()

	// organic closes every journey, the others only assist: last-click
	// overcredits organic heavily
	for i := 0; i < 5; i++ {
		acc.Add(convertedJourney(t, e, tp("google_ads", 0, 0), tp("email", 1, 0), tp("organic", 2, 100)))
	}

	sums := acc.Summarize(day0, day0.AddDate(0, 0, 3), nil, config.Defaults())
	byChannel := map[string]models.ChannelSummary{}
	for _, s := range sums {
		byChannel[s.Channel] = s
	}

	org := byChannel["organic"]
	if !org.IsOvercredited || org.IsUndercredited {
		t.Errorf("organic flags: over=%v under=%v diff=%v", org.IsOvercredited, org.IsUndercredited, org.CreditDifferencePct)
	}
	// organic: 100% last-click share vs 33.3% linear share
	if org.CreditDifferencePct > -60 {
		t.Errorf("organic differential: %v", org.CreditDifferencePct)
	}
	for _, ch := range []string{"google_ads", "email"} {
		if !byChannel[ch].IsUndercredited {
			t.Errorf("%s should be undercredited: %+v", ch, byChannel[ch])
		}
	}
}

func TestAggregateSortedByLinearRevenue(t *testing.T) {
	e := NewEngine(config.Defaults())
	acc := NewAccumulator()
	acc.Add(convertedJourney(t, e, tp("small", 0, 10)))
	acc.Add(convertedJourney(t, e, tp("big", 0, 500)))
	acc.Add(convertedJourney(t, e, tp("mid", 0, 100)))

	sums := acc.Summarize(day0, day0.AddDate(0, 0, 1), nil, config.Defaults())
	want := []string{"big", "mid", "small"}
	for i, s := range sums {
		if s.Channel != want[i] {
			t.Fatalf("order: got %v at %d, want %v", s.Channel, i, want[i])
		}
	}
}

func TestAggregateROASWithSpend(t *testing.T) {
	e := NewEngine(config.Defaults())
	acc := NewAccumulator()
	acc.Add(convertedJourney(t, e, tp("google_ads", 0, 0), tp("email", 1, 200)))

	spend := map[string]float64{"google_ads": 50}
	sums := acc.Summarize(day0, day0.AddDate(0, 0, 2), spend, config.Defaults())
	byChannel := map[string]models.ChannelSummary{}
	for _, s := range sums {
		byChannel[s.Channel] = s
	}

	ga := byChannel["google_ads"]
	if ga.TrueROAS == nil || !approx(*ga.TrueROAS, 2) { // 100 linear / 50 spend
		t.Fatalf("true ROAS: %v", ga.TrueROAS)
	}
	if ga.ReportedROAS == nil || !approx(*ga.ReportedROAS, 0) { // no last-click revenue
		t.Fatalf("reported ROAS: %v", ga.ReportedROAS)
	}
	if byChannel["email"].TrueROAS != nil {
		t.Fatal("email has no spend, ROAS must be nil")
	}
}

func TestAccumulatorMergeMatchesSequential(t *testing.T) {
	e := NewEngine(config.Defaults())
	j1 := convertedJourney(t, e, tp("a", 0, 0), tp("b", 1, 100))
	j2 := convertedJourney(t, e, tp("b", 0, 0), tp("a", 2, 60))
	j3 := convertedJourney(t, e, tp("a", 0, 40))

	seq := NewAccumulator()
	for _, j := range []models.Journey{j1, j2, j3} {
		seq.Add(j)
	}

	p1, p2 := NewAccumulator(), NewAccumulator()
	p1.Add(j1)
	p2.Add(j2)
	p2.Add(j3)
	merged := NewAccumulator()
	merged.Merge(p1)
	merged.Merge(p2)

	end := day0.AddDate(0, 0, 3)
	a := seq.Summarize(day0, end, nil, config.Defaults())
	b := merged.Summarize(day0, end, nil, config.Defaults())
	if len(a) != len(b) {
		t.Fatalf("row counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d differs:\nseq:    %+v\nmerged: %+v", i, a[i], b[i])
		}
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	acc := NewAccumulator()
	sums := acc.Summarize(day0, day0.AddDate(0, 0, 1), nil, config.Defaults())
	if len(sums) != 0 {
		t.Fatalf("expected no rows, got %d", len(sums))
	}
}

func TestAggregateAssistRatio(t *testing.T) {
	e := NewEngine(config.Defaults())
	acc := NewAccumulator()
	// email assists twice, closes once
	acc.Add(convertedJourney(t, e, tp("email", 0, 0), tp("organic", 1, 100)))
	acc.Add(convertedJourney(t, e, tp("email", 0, 0), tp("direct", 1, 100)))
	acc.Add(convertedJourney(t, e, tp("organic", 0, 0), tp("email", 1, 100)))

	sums := acc.Summarize(day0, day0.AddDate(0, 0, 2), nil, config.Defaults())
	for _, s := range sums {
		if s.Channel == "email" {
			if s.AssistedConversions != 2 || s.LastClickConversions != 1 {
				t.Fatalf("email counts: %+v", s)
			}
			if !approx(s.AssistRatio, 2) {
				t.Fatalf("assist ratio: %v", s.AssistRatio)
			}
			return
		}
	}
	t.Fatal("email row missing")
}
