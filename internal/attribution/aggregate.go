package attribution

import (
	"math"
	"sort"
	"time"

	"github.com/AngelCh415/attribution-go/internal/config"
	"github.com/AngelCh415/attribution-go/internal/models"
)

// channelAcc is one channel's running totals. Accumulation is pure addition,
// so partial accumulators from parallel workers merge commutatively.
type channelAcc struct {
	lastClickConversions  int
	lastClickRevenue      float64
	firstClickConversions int
	firstClickRevenue     float64
	linearConversions     float64
	linearRevenue         float64
	timeDecayConversions  float64
	timeDecayRevenue      float64
	positionConversions   float64
	positionRevenue       float64
	assistedConversions   int
}

// Accumulator reduces converted journeys into per-channel totals.
type Accumulator struct {
	channels map[string]*channelAcc
}

func NewAccumulator() *Accumulator {
	return &Accumulator{channels: make(map[string]*channelAcc)}
}

func (a *Accumulator) get(channel string) *channelAcc {
	acc, ok := a.channels[channel]
	if !ok {
		acc = &channelAcc{}
		a.channels[channel] = acc
	}
	return acc
}

// Add folds one converted journey (credits already computed) into the totals.
func (a *Accumulator) Add(j models.Journey) {
	if !j.Converted || j.ConversionRevenue <= 0 {
		return
	}

	last := a.get(j.LastTouchChannel)
	last.lastClickConversions++
	last.lastClickRevenue += j.ConversionRevenue

	first := a.get(j.FirstTouchChannel)
	first.firstClickConversions++
	first.firstClickRevenue += j.ConversionRevenue

	for ch, rev := range j.Credits[models.ModelLinear] {
		acc := a.get(ch)
		acc.linearRevenue += rev
		acc.linearConversions += rev / j.ConversionRevenue
	}
	for ch, rev := range j.Credits[models.ModelTimeDecay] {
		acc := a.get(ch)
		acc.timeDecayRevenue += rev
		acc.timeDecayConversions += rev / j.ConversionRevenue
	}
	for ch, rev := range j.Credits[models.ModelPosition] {
		acc := a.get(ch)
		acc.positionRevenue += rev
		acc.positionConversions += rev / j.ConversionRevenue
	}

	// every distinct channel except the last touch assisted, including the
	// first-touch channel
	for _, ch := range j.Channels {
		if ch != j.LastTouchChannel {
			a.get(ch).assistedConversions++
		}
	}
}

// Merge folds another accumulator's totals into this one.
func (a *Accumulator) Merge(other *Accumulator) {
	for ch, o := range other.channels {
		acc := a.get(ch)
		acc.lastClickConversions += o.lastClickConversions
		acc.lastClickRevenue += o.lastClickRevenue
		acc.firstClickConversions += o.firstClickConversions
		acc.firstClickRevenue += o.firstClickRevenue
		acc.linearConversions += o.linearConversions
		acc.linearRevenue += o.linearRevenue
		acc.timeDecayConversions += o.timeDecayConversions
		acc.timeDecayRevenue += o.timeDecayRevenue
		acc.positionConversions += o.positionConversions
		acc.positionRevenue += o.positionRevenue
		acc.assistedConversions += o.assistedConversions
	}
}

// Summarize finalizes the totals into one row per channel, sorted by linear
// revenue descending (channel ascending on ties, for determinism). Spend is
// optional; ROAS fields stay nil without it.
func (a *Accumulator) Summarize(periodStart, periodEnd time.Time, spend map[string]float64, cfg config.Attribution) []models.ChannelSummary {
	var totalLastClick, totalLinear float64
	for _, acc := range a.channels {
		totalLastClick += acc.lastClickRevenue
		totalLinear += acc.linearRevenue
	}

	out := make([]models.ChannelSummary, 0, len(a.channels))
	for ch, acc := range a.channels {
		lastPct := sharePct(acc.lastClickRevenue, totalLastClick)
		linearPct := sharePct(acc.linearRevenue, totalLinear)
		diff := linearPct - lastPct

		s := models.ChannelSummary{
			Channel:     ch,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,

			LastClickConversions:  acc.lastClickConversions,
			LastClickRevenue:      round2(acc.lastClickRevenue),
			LastClickCreditPct:    round1(lastPct),
			FirstClickConversions: acc.firstClickConversions,
			FirstClickRevenue:     round2(acc.firstClickRevenue),
			LinearConversions:     round2(acc.linearConversions),
			LinearRevenue:         round2(acc.linearRevenue),
			LinearCreditPct:       round1(linearPct),
			TimeDecayConversions:  round2(acc.timeDecayConversions),
			TimeDecayRevenue:      round2(acc.timeDecayRevenue),
			PositionConversions:   round2(acc.positionConversions),
			PositionRevenue:       round2(acc.positionRevenue),

			AssistedConversions: acc.assistedConversions,

			CreditDifferencePct: round1(diff),
			IsOvercredited:      diff <= -cfg.OvercreditThreshold,
			IsUndercredited:     diff >= cfg.UndercreditThreshold,
		}

		if acc.lastClickConversions > 0 {
			s.AssistRatio = round2(float64(acc.assistedConversions) / float64(acc.lastClickConversions))
		}

		if sp, ok := spend[ch]; ok && sp > 0 {
			s.TotalSpend = sp
			trueROAS := round2(acc.linearRevenue / sp)
			reportedROAS := round2(acc.lastClickRevenue / sp)
			s.TrueROAS = &trueROAS
			s.ReportedROAS = &reportedROAS
		}

		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LinearRevenue != out[j].LinearRevenue {
			return out[i].LinearRevenue > out[j].LinearRevenue
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

func sharePct(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
func round2(f float64) float64 { return math.Round(f*100) / 100 }
