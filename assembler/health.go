package assembler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inetrg/spoki/printer"
)

var (
	batchesWrittenGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spoki_assembler_batches_written_total",
		Help: "Number of hourly output batches written since startup.",
	})
	recordsWrittenGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spoki_assembler_records_written_total",
		Help: "Number of output records written since startup.",
	})
	eventsCachedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spoki_assembler_events_cached",
		Help: "Events currently held in the confirmation matcher's cache.",
	})
	confirmationsCachedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spoki_assembler_confirmations_cached",
		Help: "Confirmations currently held in the confirmation matcher's cache.",
	})
	secondsSinceCheckpointGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spoki_assembler_seconds_since_checkpoint",
		Help: "Seconds since the last checkpoint was written.",
	})
)

// serveHealth starts a /health and /metrics endpoint reporting stats, and
// returns a func that shuts the server down. If addr is empty, no server is
// started and the returned stop func is a no-op.
func serveHealth(addr string, stats *Stats) func() {
	if addr == "" {
		return func() {}
	}

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		updateGauges(stats)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	}).Methods("GET")
	metrics := promhttp.Handler()
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		updateGauges(stats)
		metrics.ServeHTTP(w, r)
	}).Methods("GET")

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			printer.Errorf("health endpoint stopped: %v\n", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func updateGauges(stats *Stats) {
	batchesWrittenGauge.Set(float64(stats.BatchesWritten))
	recordsWrittenGauge.Set(float64(stats.RecordsWritten))
	eventsCachedGauge.Set(float64(stats.EventsCached))
	confirmationsCachedGauge.Set(float64(stats.ConfirmationsCached))
	if !stats.LastCheckpoint.IsZero() {
		secondsSinceCheckpointGauge.Set(time.Since(stats.LastCheckpoint).Seconds())
	}
}
