package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AngelCh415/attribution-go/internal/config"
	"github.com/AngelCh415/attribution-go/internal/models"
	"github.com/AngelCh415/attribution-go/internal/store"
	"github.com/AngelCh415/attribution-go/internal/utils"
)

var (
	ingestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attribution_touchpoints_ingested_total",
		Help: "Touchpoints accepted into the store.",
	})
	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attribution_touchpoints_dropped_total",
		Help: "Feed records dropped during normalization, by reason.",
	}, []string{"reason"})
)

// Feed pulls the touchpoint (and optional spend) feeds, normalizes records
// and loads them into the store. Malformed records are dropped and counted,
// never fatal.
type Feed struct {
	c   HTTPClient
	st  *store.MemoryStore
	log *slog.Logger
	cfg config.Config
}

func NewFeed(c HTTPClient, st *store.MemoryStore, log *slog.Logger, cfg config.Config) *Feed {
	return &Feed{c: c, st: st, log: log, cfg: cfg}
}

type touchpointResp []struct {
	IdentityKey string  `json:"identity_key"`
	Timestamp   string  `json:"timestamp"`
	Channel     string  `json:"channel"`
	Source      string  `json:"source"`
	Medium      string  `json:"medium"`
	Campaign    string  `json:"campaign"`
	Revenue     float64 `json:"revenue"`
}

type spendResp []struct {
	Channel string  `json:"channel"`
	Spend   float64 `json:"spend"`
}

// Run fetches both feeds. Records before since (when non-nil) are skipped.
func (f *Feed) Run(ctx context.Context, since *time.Time) error {
	var tResp touchpointResp
	if err := f.fetch(ctx, f.cfg.FeedURL, &tResp); err != nil {
		return err
	}

	var accepted, dropped int
	for _, r := range tResp {
		tp, reason := normalize(r.IdentityKey, r.Timestamp, r.Channel, r.Source, r.Medium, r.Campaign, r.Revenue)
		if reason != "" {
			droppedTotal.WithLabelValues(reason).Inc()
			dropped++
			continue
		}
		if since != nil && dayUTC(tp.Timestamp).Before(dayUTC(*since)) {
			continue
		}
		key := "tp|" + tp.IdentityKey + "|" + tp.Timestamp.Format(time.RFC3339Nano) + "|" + tp.Channel
		if !f.st.MarkSeen(key) {
			continue
		}
		f.st.AddTouchpoint(tp)
		ingestedTotal.Inc()
		accepted++
	}

	if f.cfg.SpendURL != "" {
		var sResp spendResp
		if err := f.fetch(ctx, f.cfg.SpendURL, &sResp); err != nil {
			return err
		}
		for _, r := range sResp {
			ch := strings.TrimSpace(r.Channel)
			if ch == "" {
				continue
			}
			f.st.SetSpend(ch, r.Spend)
		}
	}

	f.log.Info("ingest complete",
		slog.Int("accepted", accepted),
		slog.Int("dropped", dropped),
		slog.Int("store_size", f.st.Len()))
	return nil
}

func (f *Feed) fetch(ctx context.Context, url string, dst any) error {
	b := utils.NewBackoff(100*time.Millisecond, 150*time.Millisecond, 2)
	return b.Do(func(i int) error {
		if i > 0 {
			f.log.Debug("feed retry", slog.String("url", url), slog.Int("attempt", i))
		}
		return getJSON(ctx, f.c, url, dst)
	})
}

// normalize validates and cleans a raw feed record. A non-empty reason means
// the record must be dropped.
func normalize(identity, ts, channel, source, medium, campaign string, revenue float64) (models.Touchpoint, string) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return models.Touchpoint{}, "missing_identity"
	}
	t, err := parseTimestamp(ts)
	if err != nil {
		return models.Touchpoint{}, "bad_timestamp"
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return models.Touchpoint{}, "missing_channel"
	}
	return models.Touchpoint{
		IdentityKey: identity,
		Timestamp:   t.UTC(),
		Channel:     channel,
		Source:      coalesce(source, "unknown"),
		Medium:      coalesce(medium, "unknown"),
		Campaign:    strings.TrimSpace(campaign),
		Revenue:     maxf(revenue),
	}, ""
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func coalesce(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func dayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func maxf(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
