package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AngelCh415/attribution-go/internal/config"
	"github.com/AngelCh415/attribution-go/internal/store"
)

const feedBody = `[
 {"identity_key": "u1", "timestamp": "2025-08-01T10:00:00Z", "channel": "google_ads", "source": "google", "medium": "cpc"},
 {"identity_key": "u1", "timestamp": "2025-08-04T09:00:00Z", "channel": "email", "source": "klaviyo", "medium": "email"},
 {"identity_key": "u1", "timestamp": "2025-08-07T12:00:00Z", "channel": "organic", "revenue": 100},
 {"identity_key": "", "timestamp": "2025-08-07T12:00:00Z", "channel": "direct"},
 {"identity_key": "u2", "timestamp": "not-a-date", "channel": "email"},
 {"identity_key": "u2", "timestamp": "2025-08-02T08:00:00Z", "channel": ""}
]`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestFeed(feedURL, spendURL string) (*Feed, *store.MemoryStore) {
	st := store.NewMemoryStore()
	cfg := config.Config{FeedURL: feedURL, SpendURL: spendURL, Attribution: config.Defaults()}
	return NewFeed(NewHTTPClient(2*time.Second), st, quietLogger(), cfg), st
}

func TestFeedRunNormalizesAndDrops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	f, st := newTestFeed(srv.URL, "")
	if err := f.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if st.Len() != 3 {
		t.Fatalf("accepted: %d, want 3 (malformed rows dropped)", st.Len())
	}

	tps := st.Touchpoints(time.Time{}, time.Now())
	if tps[0].Source != "google" || tps[2].Source != "unknown" {
		t.Fatalf("normalization: %+v", tps)
	}
	if tps[2].Revenue != 100 {
		t.Fatalf("revenue: %v", tps[2].Revenue)
	}
}

func TestFeedRunIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	f, st := newTestFeed(srv.URL, "")
	for i := 0; i < 3; i++ {
		if err := f.Run(context.Background(), nil); err != nil {
			t.Fatal(err)
		}
	}
	if st.Len() != 3 {
		t.Fatalf("re-runs must not duplicate records: %d", st.Len())
	}
}

func TestFeedRunSinceFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	f, st := newTestFeed(srv.URL, "")
	since := time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)
	if err := f.Run(context.Background(), &since); err != nil {
		t.Fatal(err)
	}
	if st.Len() != 1 {
		t.Fatalf("since filter: %d records, want 1", st.Len())
	}
}

func TestFeedRunSpend(t *testing.T) {
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer feedSrv.Close()
	spendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"channel": "google_ads", "spend": 500}, {"channel": "", "spend": 100}, {"channel": "email", "spend": -5}]`))
	}))
	defer spendSrv.Close()

	f, st := newTestFeed(feedSrv.URL, spendSrv.URL)
	if err := f.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	spend := st.Spend()
	if spend["google_ads"] != 500 {
		t.Fatalf("spend: %v", spend)
	}
	if _, ok := spend[""]; ok {
		t.Fatal("empty channel must be skipped")
	}
	if spend["email"] != 0 {
		t.Fatalf("negative spend must clamp: %v", spend["email"])
	}
}

func TestFeedRunRetriesThenFails(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, _ := newTestFeed(srv.URL, "")
	if err := f.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error after retries")
	}
	if calls != 3 {
		t.Fatalf("calls: %d, want 3", calls)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name   string
		id     string
		ts     string
		ch     string
		reason string
	}{
		{"ok", "u1", "2025-08-01T00:00:00Z", "email", ""},
		{"date-only ok", "u1", "2025-08-01", "email", ""},
		{"missing identity", " ", "2025-08-01", "email", "missing_identity"},
		{"bad timestamp", "u1", "yesterday", "email", "bad_timestamp"},
		{"missing channel", "u1", "2025-08-01", "  ", "missing_channel"},
	}
	for _, c := range cases {
		_, reason := normalize(c.id, c.ts, c.ch, "", "", "", 0)
		if reason != c.reason {
			t.Errorf("%s: reason %q, want %q", c.name, reason, c.reason)
		}
	}
}
