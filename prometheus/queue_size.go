package prometheus

import (
	"context"
	"fieldscan/scanner-relay/log"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var outboxPendingSize prom.Gauge

type pendingSizer interface {
	PendingCount() (uint, error)
}

func init() {
	outboxPendingSize = promauto.NewGauge(prom.GaugeOpts{
		Name: "scanner_relay_outbox_pending_size",
		Help: "The current size of the outbox (all undelivered scan events)",
	})
}

func ObservePendingSize(sizer pendingSizer, ctx context.Context) {
	for {
		size, err := sizer.PendingCount()
		if err != nil {
			log.Logger.WithError(err).Error("an error occurred determining the size of the outbox")
			time.Sleep(time.Second * 1)
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
			outboxPendingSize.Set(float64(size))

			time.Sleep(time.Second * 1)
		}
	}
}
