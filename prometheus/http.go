package prometheus

import (
	"fieldscan/scanner-relay/config"
	h "fieldscan/scanner-relay/http"
	"fieldscan/scanner-relay/log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func StartHttpServer(cfg *config.Config, db h.Pinger, ingest http.Handler, identities http.Handler) {
	http.Handle("/metrics", promhttp.Handler())
	http.Handle("/healthz", h.NewHealthzHandler(cfg.GetDependencySystemAddresses(), db))
	http.Handle("/v1/scan", ingest)
	http.Handle("/v1/identities/", identities)

	err := http.ListenAndServe(cfg.ListenAddr, nil)
	if err != nil {
		log.Logger.Fatalf("failed to start relay HTTP server: %s", err)
	}
}
