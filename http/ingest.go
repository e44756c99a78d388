package http

import (
	"context"
	"encoding/json"
	"net/http"

	"fieldscan/scanner-relay/log"
	"fieldscan/scanner-relay/scan"
)

type Ingester interface {
	Ingest(ctx context.Context, sub scan.Submission) (scan.Result, error)
}

type ingestHandler struct {
	svc Ingester
}

// NewIngestHandler accepts scans over HTTP for devices whose scanner
// firmware posts instead of writing to the local socket. Accepted and
// queued scans both answer 202: from the device's point of view the
// scan is safe either way.
func NewIngestHandler(svc Ingester) http.Handler {
	return &ingestHandler{svc: svc}
}

func (h ingestHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var sub scan.Submission
	if err := json.NewDecoder(req.Body).Decode(&sub); err != nil {
		writeJson(w, http.StatusBadRequest, scan.Result{Status: scan.Rejected, Reason: "the request body is not valid JSON"})
		return
	}

	res, err := h.svc.Ingest(req.Context(), sub)
	if err != nil {
		log.Logger.WithError(err).Error("failed to ingest a scan received over HTTP")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	code := http.StatusAccepted
	if res.Status == scan.Rejected {
		code = http.StatusUnprocessableEntity
	}

	writeJson(w, code, res)
}

func writeJson(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Logger.WithError(err).Error("failed to write response body")
	}
}
