package attribution

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/AngelCh415/attribution-go/internal/config"
	"github.com/AngelCh415/attribution-go/internal/models"
	"github.com/AngelCh415/attribution-go/internal/store"
)

var (
	runsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attribution_runs_total",
		Help: "Completed attribution pipeline runs.",
	})
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "attribution_run_duration_seconds",
		Help:    "Wall time of attribution pipeline runs.",
		Buckets: prometheus.DefBuckets,
	})
	journeyDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attribution_journey_drops_total",
		Help: "Touchpoints excluded during journey construction, by reason.",
	}, []string{"reason"})
)

// Result is the complete output of one attribution run. NoData distinguishes
// an empty period from a failure.
type Result struct {
	RunID           string                  `json:"run_id"`
	PeriodStart     time.Time               `json:"period_start"`
	PeriodEnd       time.Time               `json:"period_end"`
	NoData          bool                    `json:"no_data"`
	DroppedRecords  int                     `json:"dropped_records"`
	Journeys        []models.Journey        `json:"journeys"`
	Summaries       []models.ChannelSummary `json:"summaries"`
	Recommendations []models.Recommendation `json:"recommendations"`
}

// Service runs the full pipeline: journeys, credits, channel summaries and
// reallocation proposals. It holds no state between runs; recomputing the
// same period over the same store contents yields identical output.
type Service struct {
	st      *store.MemoryStore
	log     *slog.Logger
	cfg     config.Attribution
	engine  *Engine
	advisor *Advisor
}

func NewService(st *store.MemoryStore, log *slog.Logger, cfg config.Attribution) *Service {
	return &Service{
		st:      st,
		log:     log,
		cfg:     cfg,
		engine:  NewEngine(cfg),
		advisor: NewAdvisor(cfg),
	}
}

// Run computes attribution for every identity with touchpoints in [from, to].
// Journey construction and per-journey attribution fan out across bounded
// workers; each worker owns a private partial accumulator merged at the end.
func (s *Service) Run(ctx context.Context, from, to time.Time) (Result, error) {
	start := time.Now()
	res := Result{
		RunID:       uuid.NewString(),
		PeriodStart: from,
		PeriodEnd:   to,
	}

	tps := s.st.Touchpoints(from, to)
	groups, drops := GroupByIdentity(tps)
	res.DroppedRecords = drops.Total()
	countDrops(drops)

	if len(groups) == 0 {
		res.NoData = true
		s.log.Warn("no touchpoints in period",
			slog.Time("from", from), slog.Time("to", to))
		return res, nil
	}

	identities := make([]string, 0, len(groups))
	for id := range groups {
		identities = append(identities, id)
	}
	sort.Strings(identities)

	shards := shard(identities, s.cfg.Workers)
	journeyShards := make([][]models.Journey, len(shards))
	accShards := make([]*Accumulator, len(shards))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, ids := range shards {
		i, ids := i, ids
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			acc := NewAccumulator()
			journeys := make([]models.Journey, 0, len(ids))
			for _, id := range ids {
				j, ok := BuildJourney(id, groups[id])
				if !ok {
					continue
				}
				if j.Converted {
					j.Credits = s.engine.Distribute(j)
					acc.Add(j)
				}
				journeys = append(journeys, j)
			}
			journeyShards[i] = journeys
			accShards[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	acc := NewAccumulator()
	var converted int
	for i, js := range journeyShards {
		res.Journeys = append(res.Journeys, js...)
		acc.Merge(accShards[i])
		for _, j := range js {
			if j.Converted {
				converted++
			}
		}
	}

	if converted == 0 {
		res.NoData = true
		s.log.Warn("no converted journeys in period",
			slog.Time("from", from), slog.Time("to", to),
			slog.Int("journeys", len(res.Journeys)))
		return res, nil
	}

	res.Summaries = acc.Summarize(from, to, s.st.Spend(), s.cfg)
	res.Recommendations = s.advisor.Recommend(res.Summaries)

	runsTotal.Inc()
	runDuration.Observe(time.Since(start).Seconds())
	s.log.Info("attribution run complete",
		slog.String("run_id", res.RunID),
		slog.Int("journeys", len(res.Journeys)),
		slog.Int("converted", converted),
		slog.Int("channels", len(res.Summaries)),
		slog.Int("recommendations", len(res.Recommendations)),
		slog.Int("dropped", res.DroppedRecords),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

// shard splits identities into up to n contiguous chunks. The split is
// deterministic so reruns accumulate in the same order.
func shard(ids []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	if len(ids) < n {
		n = len(ids)
	}
	out := make([][]string, 0, n)
	size := (len(ids) + n - 1) / n
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[i:end])
	}
	return out
}

func countDrops(d DropStats) {
	if d.MissingIdentity > 0 {
		journeyDrops.WithLabelValues("missing_identity").Add(float64(d.MissingIdentity))
	}
	if d.MissingTimestamp > 0 {
		journeyDrops.WithLabelValues("missing_timestamp").Add(float64(d.MissingTimestamp))
	}
	if d.MissingChannel > 0 {
		journeyDrops.WithLabelValues("missing_channel").Add(float64(d.MissingChannel))
	}
}
