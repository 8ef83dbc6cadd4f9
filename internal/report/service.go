package report

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/AngelCh415/attribution-go/internal/attribution"
	"github.com/AngelCh415/attribution-go/internal/models"
)

// Service exposes attribution results as query endpoints. Each call runs the
// pure pipeline for the requested period; callers own any caching.
type Service struct {
	attr *attribution.Service
}

func NewService(attr *attribution.Service) *Service {
	return &Service{attr: attr}
}

// Insights is the combined envelope: flagged channels, proposals and all rows.
type Insights struct {
	PeriodStart          time.Time               `json:"period_start"`
	PeriodEnd            time.Time               `json:"period_end"`
	NoData               bool                    `json:"no_data"`
	TotalChannels        int                     `json:"total_channels"`
	OvercreditedCount    int                     `json:"overcredited_count"`
	UndercreditedCount   int                     `json:"undercredited_count"`
	OvercreditedChannels []models.ChannelSummary `json:"overcredited_channels"`
	Undercredited        []models.ChannelSummary `json:"undercredited_channels"`
	Recommendations      []models.Recommendation `json:"budget_recommendations"`
	AllChannels          []models.ChannelSummary `json:"all_channels"`
}

// ChannelsResult wraps summaries so an empty period is explicit, not a crash.
type ChannelsResult struct {
	PeriodStart time.Time               `json:"period_start"`
	PeriodEnd   time.Time               `json:"period_end"`
	NoData      bool                    `json:"no_data"`
	Channels    []models.ChannelSummary `json:"channels"`
}

func (s *Service) QueryChannels(ctx context.Context, v url.Values) (ChannelsResult, error) {
	from, to := period(v)
	res, err := s.attr.Run(ctx, from, to)
	if err != nil {
		return ChannelsResult{}, err
	}
	return ChannelsResult{
		PeriodStart: res.PeriodStart,
		PeriodEnd:   res.PeriodEnd,
		NoData:      res.NoData,
		Channels:    res.Summaries,
	}, nil
}

func (s *Service) QueryRecommendations(ctx context.Context, v url.Values) ([]models.Recommendation, error) {
	from, to := period(v)
	res, err := s.attr.Run(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if res.Recommendations == nil {
		return []models.Recommendation{}, nil
	}
	return res.Recommendations, nil
}

// QueryJourneys exports the period's journeys, paginated, identity order.
func (s *Service) QueryJourneys(ctx context.Context, v url.Values) ([]models.Journey, error) {
	from, to := period(v)
	limit := atoiDef(v.Get("limit"), 100)
	offset := atoiDef(v.Get("offset"), 0)

	res, err := s.attr.Run(ctx, from, to)
	if err != nil {
		return nil, err
	}
	limit, offset = clampLimitOffset(limit, offset, len(res.Journeys))
	return paginate(res.Journeys, limit, offset), nil
}

// QueryPatterns reports common paths across the period's converted journeys.
func (s *Service) QueryPatterns(ctx context.Context, v url.Values) (models.PatternReport, error) {
	from, to := period(v)
	res, err := s.attr.Run(ctx, from, to)
	if err != nil {
		return models.PatternReport{}, err
	}

	report := models.PatternReport{
		MostCommonPaths:  []models.PathCount{},
		TouchpointCounts: map[int]int{},
	}

	pathCounts := map[string]int{}
	var touchpoints, days int
	for _, j := range res.Journeys {
		if !j.Converted {
			continue
		}
		report.TotalJourneys++
		pathCounts[j.Path]++
		report.TouchpointCounts[j.TouchpointCount]++
		touchpoints += j.TouchpointCount
		days += j.DaysToConversion
	}
	if report.TotalJourneys == 0 {
		return report, nil
	}

	report.AverageTouchpoints = round1(float64(touchpoints) / float64(report.TotalJourneys))
	report.AverageDaysToConvert = round1(float64(days) / float64(report.TotalJourneys))

	paths := make([]models.PathCount, 0, len(pathCounts))
	for p, c := range pathCounts {
		paths = append(paths, models.PathCount{
			Path:       p,
			Count:      c,
			Percentage: round1(float64(c) / float64(report.TotalJourneys) * 100),
		})
	}
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Count != paths[j].Count {
			return paths[i].Count > paths[j].Count
		}
		return paths[i].Path < paths[j].Path
	})
	if len(paths) > 10 {
		paths = paths[:10]
	}
	report.MostCommonPaths = paths
	return report, nil
}

// QueryInsights assembles the full envelope with top-5 flagged channels.
func (s *Service) QueryInsights(ctx context.Context, v url.Values) (Insights, error) {
	from, to := period(v)
	res, err := s.attr.Run(ctx, from, to)
	if err != nil {
		return Insights{}, err
	}

	ins := Insights{
		PeriodStart:          res.PeriodStart,
		PeriodEnd:            res.PeriodEnd,
		NoData:               res.NoData,
		TotalChannels:        len(res.Summaries),
		OvercreditedChannels: []models.ChannelSummary{},
		Undercredited:        []models.ChannelSummary{},
		Recommendations:      res.Recommendations,
		AllChannels:          res.Summaries,
	}
	if ins.Recommendations == nil {
		ins.Recommendations = []models.Recommendation{}
	}

	var over, under []models.ChannelSummary
	for _, s := range res.Summaries {
		if s.IsOvercredited {
			over = append(over, s)
		}
		if s.IsUndercredited {
			under = append(under, s)
		}
	}
	ins.OvercreditedCount = len(over)
	ins.UndercreditedCount = len(under)

	sort.Slice(over, func(i, j int) bool {
		a, b := -over[i].CreditDifferencePct, -over[j].CreditDifferencePct
		if a != b {
			return a > b
		}
		return over[i].Channel < over[j].Channel
	})
	sort.Slice(under, func(i, j int) bool {
		if under[i].CreditDifferencePct != under[j].CreditDifferencePct {
			return under[i].CreditDifferencePct > under[j].CreditDifferencePct
		}
		return under[i].Channel < under[j].Channel
	})
	if len(over) > 5 {
		over = over[:5]
	}
	if len(under) > 5 {
		under = under[:5]
	}
	ins.OvercreditedChannels = append(ins.OvercreditedChannels, over...)
	ins.Undercredited = append(ins.Undercredited, under...)
	return ins, nil
}

// period parses from/to, defaulting to the trailing 30 days.
func period(v url.Values) (time.Time, time.Time) {
	to := time.Now().UTC()
	if t, err := time.Parse("2006-01-02", v.Get("to")); err == nil {
		// include the whole end day
		to = t.Add(24*time.Hour - time.Nanosecond)
	}
	from := to.AddDate(0, 0, -30)
	if t, err := time.Parse("2006-01-02", v.Get("from")); err == nil {
		from = t
	}
	return from, to
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func atoiDef(s string, d int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset > n {
		offset = n
	}
	return limit, offset
}

func round1(f float64) float64 { return float64(int64(f*10+0.5)) / 10 }
