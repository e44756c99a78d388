package prometheus

import (
	"context"
	"fieldscan/scanner-relay/log"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deadLetterSize prom.Gauge

type deadLetterSizer interface {
	DeadLetterCount() (uint, error)
}

func init() {
	deadLetterSize = promauto.NewGauge(prom.GaugeOpts{
		Name: "scanner_relay_dead_letter_size",
		Help: "The number of scan events abandoned after exhausting their retries",
	})
}

func ObserveDeadLetterSize(sizer deadLetterSizer, ctx context.Context) {
	for {
		size, err := sizer.DeadLetterCount()
		if err != nil {
			log.Logger.WithError(err).Error("an error occurred determining the size of the dead letter store")
			time.Sleep(time.Second * 1)
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
			deadLetterSize.Set(float64(size))

			time.Sleep(time.Second * 1)
		}
	}
}
