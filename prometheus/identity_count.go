package prometheus

import (
	"context"
	"fieldscan/scanner-relay/log"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var knownIdentities prom.Gauge

type identityCounter interface {
	IdentityCount() (uint, error)
}

func init() {
	knownIdentities = promauto.NewGauge(prom.GaugeOpts{
		Name: "scanner_relay_known_identities",
		Help: "The number of identities this unit has provisioned or restored",
	})
}

func ObserveIdentityCount(counter identityCounter, ctx context.Context) {
	for {
		size, err := counter.IdentityCount()
		if err != nil {
			log.Logger.WithError(err).Error("an error occurred counting known identities")
			time.Sleep(time.Second * 1)
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
			knownIdentities.Set(float64(size))

			time.Sleep(time.Second * 1)
		}
	}
}
