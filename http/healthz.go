package http

import (
	"net"
	"net/http"
	"time"

	"fieldscan/scanner-relay/log"
)

type healthzHandler struct {
	hubAddrs []string
	store    Pinger
}

type Pinger interface {
	Ping() error
}

// NewHealthzHandler reports liveness from the local store alone, and
// readiness from the store plus TCP reachability of the hub hosts.
func NewHealthzHandler(hubAddrs []string, store Pinger) http.Handler {
	return &healthzHandler{
		hubAddrs: hubAddrs,
		store:    store,
	}
}

func (h healthzHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	healthy := true
	if req.URL.Query().Get("readiness") == "1" {
		healthy = h.checkHub() && h.checkStore()
	} else {
		healthy = h.checkStore()
	}

	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}

func (h healthzHandler) checkStore() bool {
	if err := h.store.Ping(); err != nil {
		log.Logger.Debug("the local store is not available")
		return false
	}
	return true
}

func (h healthzHandler) checkHub() bool {
	healthy := true
	for _, host := range h.hubAddrs {
		log.Logger.Debugf("checking connectivity to hub host %s", host)
		conn, err := net.DialTimeout("tcp", host, 1*time.Second)
		if err != nil {
			healthy = false
			log.Logger.Debugf("unable to connect to hub host %s", host)
		} else {
			_ = conn.Close()
		}
	}
	return healthy
}
