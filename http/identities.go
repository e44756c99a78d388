package http

import (
	"context"
	"net/http"
	"strings"

	"fieldscan/scanner-relay/identity"
	"fieldscan/scanner-relay/log"

	"github.com/pkg/errors"
)

type Deactivator interface {
	Deactivate(ctx context.Context, id string) error
}

type identitiesHandler struct {
	resolver Deactivator
}

// NewIdentitiesHandler retires identities. Scans of a retired identity's
// code are refused at ingest from then on.
func NewIdentitiesHandler(resolver Deactivator) http.Handler {
	return &identitiesHandler{resolver: resolver}
}

func (h identitiesHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(req.URL.Path, "/v1/identities/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err := h.resolver.Deactivate(req.Context(), id); err != nil {
		if errors.Is(err, identity.ErrInvalidCode) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		log.Logger.WithError(err).Errorf("failed to deactivate identity %s", id)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
