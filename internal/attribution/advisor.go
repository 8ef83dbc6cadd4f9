package attribution

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/attribution-go/internal/config"
	"github.com/AngelCh415/attribution-go/internal/models"
)

const (
	maxDonors     = 3
	maxRecipients = 3
	maxProposals  = 5
)

// Advisor turns channel summaries into bounded budget-move proposals. The
// caps keep any single recommendation actionable rather than disruptive.
type Advisor struct {
	capPct decimal.Decimal
	capAbs decimal.Decimal
}

func NewAdvisor(cfg config.Attribution) *Advisor {
	return &Advisor{
		capPct: decimal.NewFromFloat(cfg.ReallocationCapPct),
		capAbs: decimal.NewFromFloat(cfg.ReallocationCapAbs),
	}
}

// Recommend pairs the top overcredited channels (with recorded spend) against
// the top undercredited ones and keeps the five best positive-impact moves.
func (a *Advisor) Recommend(summaries []models.ChannelSummary) []models.Recommendation {
	var donors, recipients []models.ChannelSummary
	for _, s := range summaries {
		if s.IsOvercredited && s.TotalSpend > 0 {
			donors = append(donors, s)
		}
		if s.IsUndercredited {
			recipients = append(recipients, s)
		}
	}

	sort.Slice(donors, func(i, j int) bool {
		di, dj := math.Abs(donors[i].CreditDifferencePct), math.Abs(donors[j].CreditDifferencePct)
		if di != dj {
			return di > dj
		}
		return donors[i].Channel < donors[j].Channel
	})
	sort.Slice(recipients, func(i, j int) bool {
		if recipients[i].CreditDifferencePct != recipients[j].CreditDifferencePct {
			return recipients[i].CreditDifferencePct > recipients[j].CreditDifferencePct
		}
		return recipients[i].Channel < recipients[j].Channel
	})

	if len(donors) > maxDonors {
		donors = donors[:maxDonors]
	}
	if len(recipients) > maxRecipients {
		recipients = recipients[:maxRecipients]
	}

	var out []models.Recommendation
	for _, from := range donors {
		for _, to := range recipients {
			amount := decimal.NewFromFloat(from.TotalSpend).Mul(a.capPct)
			if amount.GreaterThan(a.capAbs) {
				amount = a.capAbs
			}
			amount = amount.Round(2)

			impact := amount.Mul(decimal.NewFromFloat(roasOrZero(to.TrueROAS)).
				Sub(decimal.NewFromFloat(roasOrZero(from.TrueROAS)))).Round(2)
			if impact.LessThanOrEqual(decimal.Zero) {
				continue
			}

			amt, _ := amount.Float64()
			imp, _ := impact.Float64()
			out = append(out, models.Recommendation{
				FromChannel: from.Channel,
				ToChannel:   to.Channel,
				Amount:      amt,
				Reason: fmt.Sprintf("%s is overcredited by %.1f%%, %s is undercredited by %.1f%%",
					from.Channel, math.Abs(from.CreditDifferencePct), to.Channel, to.CreditDifferencePct),
				ExpectedNetImpact: imp,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpectedNetImpact != out[j].ExpectedNetImpact {
			return out[i].ExpectedNetImpact > out[j].ExpectedNetImpact
		}
		if out[i].FromChannel != out[j].FromChannel {
			return out[i].FromChannel < out[j].FromChannel
		}
		return out[i].ToChannel < out[j].ToChannel
	})
	if len(out) > maxProposals {
		out = out[:maxProposals]
	}
	return out
}

func roasOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
