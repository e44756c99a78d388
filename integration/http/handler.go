//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// ScanCall is one recorded POST /scan from the relay.
type ScanCall struct {
	DeviceId string
	Code     string
	Quantity int
}

// Backend fakes the management backend, the provisioning endpoint and the
// sidecar proxy in a single handler, so integration runs need no external
// services.
type Backend struct {
	mu            sync.Mutex
	scans         []ScanCall
	registrations []string
	provisions    map[string]int
	quits         int
}

func NewBackend() *Backend {
	return &Backend{
		provisions: map[string]int{},
	}
}

func (b *Backend) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/scan":
			b.handleScan(w, r)
		case "/registration/confirm":
			b.handleRegistration(w, r)
		case "/provision":
			b.handleProvision(w, r)
		case "/quitquitquit":
			b.handleQuit(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scans = nil
	b.registrations = nil
	b.provisions = map[string]int{}
	b.quits = 0
}

func (b *Backend) Scans() []ScanCall {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]ScanCall{}, b.scans...)
}

func (b *Backend) Registrations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string{}, b.registrations...)
}

func (b *Backend) ProvisionCount(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.provisions[id]
}

func (b *Backend) QuitCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.quits
}

func (b *Backend) handleScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceId string `json:"deviceId"`
		Code     string `json:"code"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.scans = append(b.scans, ScanCall{DeviceId: req.DeviceId, Code: req.Code, Quantity: req.Quantity})
	b.mu.Unlock()

	writeSuccess(w)
}

func (b *Backend) handleRegistration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceId string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.registrations = append(b.registrations, req.DeviceId)
	b.mu.Unlock()

	writeSuccess(w)
}

func (b *Backend) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IdentityId string `json:"identityId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.provisions[req.IdentityId]++
	created := b.provisions[req.IdentityId] == 1
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"credential": "hosts=localhost:9092;identityId=%s;sharedAccessKey=integration-key", "created": %t}`, req.IdentityId, created)
}

func (b *Backend) handleQuit(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.quits++
	b.mu.Unlock()

	w.WriteHeader(200)
}

func writeSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"success": true, "message": "ok"}`)
}
