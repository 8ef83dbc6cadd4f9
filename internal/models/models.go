package models

import "time"

// Model identifies one of the supported attribution models.
type Model string

const (
	ModelLastClick  Model = "last_click"
	ModelFirstClick Model = "first_click"
	ModelLinear     Model = "linear"
	ModelTimeDecay  Model = "time_decay"
	ModelPosition   Model = "position_based"
)

// Models lists every supported model in a fixed order.
var Models = []Model{ModelLastClick, ModelFirstClick, ModelLinear, ModelTimeDecay, ModelPosition}

// Touchpoint is a single normalized interaction event from the feed.
// Immutable once ingested.
type Touchpoint struct {
	IdentityKey string    `json:"identity_key"`
	Timestamp   time.Time `json:"timestamp"`
	Channel     string    `json:"channel"`
	Source      string    `json:"source"`
	Medium      string    `json:"medium"`
	Campaign    string    `json:"campaign,omitempty"`
	Revenue     float64   `json:"revenue"`
}

// CreditMap maps channel -> attributed revenue for one journey under one model.
// For every redistributing model its values sum to the journey's conversion
// revenue (1e-6 relative tolerance).
type CreditMap map[string]float64

// Total returns the sum of all credited revenue.
func (c CreditMap) Total() float64 {
	var t float64
	for _, v := range c {
		t += v
	}
	return t
}

// Journey is the ordered sequence of one identity's touchpoints within the
// analysis window, plus derived facts. Built fresh per run, never mutated.
type Journey struct {
	IdentityKey       string              `json:"identity_key"`
	Touchpoints       []Touchpoint        `json:"-"`
	TouchpointCount   int                 `json:"touchpoint_count"`
	Path              string              `json:"path"`
	FirstTouchChannel string              `json:"first_touch_channel"`
	LastTouchChannel  string              `json:"last_touch_channel"`
	Channels          []string            `json:"channels"`
	Converted         bool                `json:"converted"`
	ConversionRevenue float64             `json:"conversion_revenue"`
	ConversionTime    time.Time           `json:"conversion_time,omitempty"`
	DaysToConversion  int                 `json:"days_to_conversion"`
	Credits           map[Model]CreditMap `json:"credits,omitempty"`
}

// ChannelSummary is one row per (channel, period): per-model totals plus the
// credit differential against the last-click baseline.
type ChannelSummary struct {
	Channel     string    `json:"channel"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	LastClickConversions  int     `json:"last_click_conversions"`
	LastClickRevenue      float64 `json:"last_click_revenue"`
	LastClickCreditPct    float64 `json:"last_click_credit_pct"`
	FirstClickConversions int     `json:"first_click_conversions"`
	FirstClickRevenue     float64 `json:"first_click_revenue"`
	LinearConversions     float64 `json:"linear_conversions"`
	LinearRevenue         float64 `json:"linear_revenue"`
	LinearCreditPct       float64 `json:"linear_credit_pct"`
	TimeDecayConversions  float64 `json:"time_decay_conversions"`
	TimeDecayRevenue      float64 `json:"time_decay_revenue"`
	PositionConversions   float64 `json:"position_conversions"`
	PositionRevenue       float64 `json:"position_revenue"`

	AssistedConversions int     `json:"assisted_conversions"`
	AssistRatio         float64 `json:"assist_ratio"`

	CreditDifferencePct float64 `json:"credit_difference_pct"`
	IsOvercredited      bool    `json:"is_overcredited"`
	IsUndercredited     bool    `json:"is_undercredited"`

	TotalSpend   float64  `json:"total_spend"`
	TrueROAS     *float64 `json:"true_roas,omitempty"`
	ReportedROAS *float64 `json:"reported_roas,omitempty"`
}

// Recommendation proposes moving spend from an overcredited channel to an
// undercredited one.
type Recommendation struct {
	FromChannel       string  `json:"from_channel"`
	ToChannel         string  `json:"to_channel"`
	Amount            float64 `json:"amount"`
	Reason            string  `json:"reason"`
	ExpectedNetImpact float64 `json:"expected_net_impact"`
}

// PathCount is one entry in the journey-pattern report.
type PathCount struct {
	Path       string  `json:"path"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PatternReport summarizes common journey shapes for a period.
type PatternReport struct {
	TotalJourneys        int         `json:"total_journeys"`
	AverageTouchpoints   float64     `json:"average_touchpoints"`
	AverageDaysToConvert float64     `json:"average_days_to_conversion"`
	MostCommonPaths      []PathCount `json:"most_common_paths"`
	TouchpointCounts     map[int]int `json:"touchpoint_distribution"`
}
