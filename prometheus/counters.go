package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansIngested    *prom.CounterVec
	deliveryAttempts *prom.CounterVec
	abandonedEntries prom.Counter
	hubOnline        prom.Gauge
)

func init() {
	scansIngested = promauto.NewCounterVec(prom.CounterOpts{
		Name: "scanner_relay_scans_ingested_total",
		Help: "Scans received from the device, by ingest outcome",
	}, []string{"status"})

	deliveryAttempts = promauto.NewCounterVec(prom.CounterOpts{
		Name: "scanner_relay_delivery_attempts_total",
		Help: "Delivery attempts made by the worker, by sink and outcome",
	}, []string{"sink", "outcome"})

	abandonedEntries = promauto.NewCounter(prom.CounterOpts{
		Name: "scanner_relay_abandoned_entries_total",
		Help: "Entries moved to the dead letter table after exhausting their retries",
	})

	hubOnline = promauto.NewGauge(prom.GaugeOpts{
		Name: "scanner_relay_online",
		Help: "Whether the unit currently believes the hub is reachable (1) or not (0)",
	})
}

func CountScanIngested(status string) {
	scansIngested.WithLabelValues(status).Inc()
}

func CountDeliveryAttempt(sink, outcome string) {
	deliveryAttempts.WithLabelValues(sink, outcome).Inc()
}

func CountAbandonedEntry() {
	abandonedEntries.Inc()
}

func SetOnline(online bool) {
	if online {
		hubOnline.Set(1)
		return
	}
	hubOnline.Set(0)
}
