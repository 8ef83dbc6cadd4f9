package attribution

import (
	"sort"
	"strings"
	"time"

	"github.com/AngelCh415/attribution-go/internal/models"
)

// DropStats counts touchpoints excluded during journey construction.
type DropStats struct {
	MissingIdentity  int
	MissingTimestamp int
	MissingChannel   int
}

func (d DropStats) Total() int {
	return d.MissingIdentity + d.MissingTimestamp + d.MissingChannel
}

// GroupByIdentity splits touchpoints by identity key, dropping malformed
// records. Feed order within each group is preserved so the later stable
// sort keeps ties in original order.
func GroupByIdentity(tps []models.Touchpoint) (map[string][]models.Touchpoint, DropStats) {
	var drops DropStats
	groups := make(map[string][]models.Touchpoint)
	for _, tp := range tps {
		switch {
		case tp.IdentityKey == "":
			drops.MissingIdentity++
		case tp.Timestamp.IsZero():
			drops.MissingTimestamp++
		case tp.Channel == "":
			drops.MissingChannel++
		default:
			groups[tp.IdentityKey] = append(groups[tp.IdentityKey], tp)
		}
	}
	return groups, drops
}

// BuildJourney assembles one identity's journey from its touchpoints.
// Returns ok=false for an empty group.
func BuildJourney(identity string, tps []models.Touchpoint) (models.Journey, bool) {
	if len(tps) == 0 {
		return models.Journey{}, false
	}

	ordered := make([]models.Touchpoint, len(tps))
	copy(ordered, tps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	first := ordered[0]
	last := ordered[len(ordered)-1]

	var revenue float64
	var conversionTime time.Time
	for _, tp := range ordered {
		if tp.Revenue > 0 {
			revenue += tp.Revenue
			// the revenue-bearing event marks the conversion; with several
			// charged events the latest one wins
			conversionTime = tp.Timestamp
		}
	}
	converted := revenue > 0

	channels := make([]string, 0, len(ordered))
	seen := make(map[string]struct{}, len(ordered))
	path := make([]string, len(ordered))
	for i, tp := range ordered {
		path[i] = tp.Channel
		if _, ok := seen[tp.Channel]; !ok {
			seen[tp.Channel] = struct{}{}
			channels = append(channels, tp.Channel)
		}
	}

	j := models.Journey{
		IdentityKey:       identity,
		Touchpoints:       ordered,
		TouchpointCount:   len(ordered),
		Path:              strings.Join(path, " -> "),
		FirstTouchChannel: first.Channel,
		LastTouchChannel:  last.Channel,
		Channels:          channels,
		Converted:         converted,
		ConversionRevenue: revenue,
	}
	if converted {
		j.ConversionTime = conversionTime
		j.DaysToConversion = wholeDays(first.Timestamp, conversionTime)
	}
	return j, true
}

// wholeDays is the floored day count between two instants; negative gaps
// clamp to zero.
func wholeDays(from, to time.Time) int {
	d := int(to.Sub(from).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
