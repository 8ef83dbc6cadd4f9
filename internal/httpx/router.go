package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/attribution-go/internal/ingest"
	"github.com/AngelCh415/attribution-go/internal/report"
	"github.com/AngelCh415/attribution-go/internal/utils"
)

func NewRouter(log *slog.Logger, feed *ingest.Feed, rep *report.Service) http.Handler {
	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.Post("/ingest/run", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("since")
		var since *time.Time
		if q != "" {
			if t, err := time.Parse("2006-01-02", q); err == nil {
				since = &t
			}
		}
		if err := feed.Run(r.Context(), since); err != nil {
			http.Error(w, err.Error(), 502)
			return
		}
		w.WriteHeader(202)
		w.Write([]byte("ingest complete"))
	})

	mux.Get("/attribution/channels", func(w http.ResponseWriter, r *http.Request) {
		res, err := rep.QueryChannels(r.Context(), r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, res)
	})

	mux.Get("/attribution/recommendations", func(w http.ResponseWriter, r *http.Request) {
		recs, err := rep.QueryRecommendations(r.Context(), r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, recs)
	})

	mux.Get("/attribution/journeys", func(w http.ResponseWriter, r *http.Request) {
		rows, err := rep.QueryJourneys(r.Context(), r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, rows)
	})

	mux.Get("/attribution/patterns", func(w http.ResponseWriter, r *http.Request) {
		pat, err := rep.QueryPatterns(r.Context(), r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, pat)
	})

	mux.Get("/attribution/insights", func(w http.ResponseWriter, r *http.Request) {
		ins, err := rep.QueryInsights(r.Context(), r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, ins)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
