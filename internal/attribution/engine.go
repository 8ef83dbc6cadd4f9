package attribution

import (
	"math"

	"github.com/AngelCh415/attribution-go/internal/config"
	"github.com/AngelCh415/attribution-go/internal/models"
)

// Engine computes per-journey credit distributions. All five models satisfy
// the conservation law: credited revenue sums to the journey's conversion
// revenue. A zero-revenue journey yields empty maps for every model.
type Engine struct {
	halfLifeDays float64
	firstCredit  float64
	lastCredit   float64
}

func NewEngine(cfg config.Attribution) *Engine {
	return &Engine{
		halfLifeDays: cfg.HalfLifeDays,
		firstCredit:  cfg.FirstTouchCredit,
		lastCredit:   cfg.LastTouchCredit,
	}
}

// Distribute runs every model against one converted journey.
func (e *Engine) Distribute(j models.Journey) map[models.Model]models.CreditMap {
	return map[models.Model]models.CreditMap{
		models.ModelLastClick:  e.LastClick(j),
		models.ModelFirstClick: e.FirstClick(j),
		models.ModelLinear:     e.Linear(j),
		models.ModelTimeDecay:  e.TimeDecay(j),
		models.ModelPosition:   e.PositionBased(j),
	}
}

func (e *Engine) LastClick(j models.Journey) models.CreditMap {
	if degenerate(j) {
		return models.CreditMap{}
	}
	return models.CreditMap{j.LastTouchChannel: j.ConversionRevenue}
}

func (e *Engine) FirstClick(j models.Journey) models.CreditMap {
	if degenerate(j) {
		return models.CreditMap{}
	}
	return models.CreditMap{j.FirstTouchChannel: j.ConversionRevenue}
}

// Linear splits revenue equally across touchpoints; a channel touched twice
// earns a double share.
func (e *Engine) Linear(j models.Journey) models.CreditMap {
	if degenerate(j) {
		return models.CreditMap{}
	}
	credit := j.ConversionRevenue / float64(len(j.Touchpoints))
	out := models.CreditMap{}
	for _, tp := range j.Touchpoints {
		out[tp.Channel] += credit
	}
	return out
}

// TimeDecay weights each touchpoint by 2^(-Δdays/halfLife), Δdays measured
// to the journey's final touchpoint, then normalizes weights to 1.
func (e *Engine) TimeDecay(j models.Journey) models.CreditMap {
	if degenerate(j) {
		return models.CreditMap{}
	}
	if len(j.Touchpoints) == 1 {
		return models.CreditMap{j.Touchpoints[0].Channel: j.ConversionRevenue}
	}

	lastTS := j.Touchpoints[len(j.Touchpoints)-1].Timestamp
	weights := make([]float64, len(j.Touchpoints))
	var total float64
	for i, tp := range j.Touchpoints {
		days := float64(wholeDays(tp.Timestamp, lastTS))
		weights[i] = math.Pow(2, -days/e.halfLifeDays)
		total += weights[i]
	}

	out := models.CreditMap{}
	for i, tp := range j.Touchpoints {
		out[tp.Channel] += (weights[i] / total) * j.ConversionRevenue
	}
	return out
}

// PositionBased is the U-shaped model: fixed shares to the first and last
// touchpoints, the remainder split equally across the interior. One
// touchpoint takes everything; two split 50/50 regardless of configuration.
func (e *Engine) PositionBased(j models.Journey) models.CreditMap {
	if degenerate(j) {
		return models.CreditMap{}
	}
	n := len(j.Touchpoints)
	switch n {
	case 1:
		return models.CreditMap{j.Touchpoints[0].Channel: j.ConversionRevenue}
	case 2:
		out := models.CreditMap{}
		out[j.Touchpoints[0].Channel] += j.ConversionRevenue * 0.5
		out[j.Touchpoints[1].Channel] += j.ConversionRevenue * 0.5
		return out
	}

	out := models.CreditMap{}
	out[j.Touchpoints[0].Channel] += j.ConversionRevenue * e.firstCredit
	out[j.Touchpoints[n-1].Channel] += j.ConversionRevenue * e.lastCredit

	middleShare := 1 - e.firstCredit - e.lastCredit
	perMiddle := (j.ConversionRevenue * middleShare) / float64(n-2)
	for _, tp := range j.Touchpoints[1 : n-1] {
		out[tp.Channel] += perMiddle
	}
	return out
}

func degenerate(j models.Journey) bool {
	return len(j.Touchpoints) == 0 || j.ConversionRevenue <= 0
}
