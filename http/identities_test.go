package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fieldscan/scanner-relay/identity"
)

func TestIdentitiesHandler_ServeHTTP_Deactivates(t *testing.T) {
	d := &mockDeactivator{}
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/identities/0000123456789", nil)

	NewIdentitiesHandler(d).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected 204 response code, but got %d", recorder.Code)
	}

	if d.deactivated != "0000123456789" {
		t.Errorf("expected identity 0000123456789 to be deactivated, but got %q", d.deactivated)
	}
}

func TestIdentitiesHandler_ServeHTTP_MissingId(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/identities/", nil)

	NewIdentitiesHandler(&mockDeactivator{}).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404 response code, but got %d", recorder.Code)
	}
}

func TestIdentitiesHandler_ServeHTTP_InvalidId(t *testing.T) {
	d := &mockDeactivator{err: identity.ErrInvalidCode}
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/identities/%20%20", nil)

	NewIdentitiesHandler(d).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected 400 response code, but got %d", recorder.Code)
	}
}

func TestIdentitiesHandler_ServeHTTP_StoreError(t *testing.T) {
	d := &mockDeactivator{err: errors.New("oops")}
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/identities/0000123456789", nil)

	NewIdentitiesHandler(d).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 response code, but got %d", recorder.Code)
	}
}

func TestIdentitiesHandler_ServeHTTP_MethodNotAllowed(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/identities/0000123456789", nil)

	NewIdentitiesHandler(&mockDeactivator{}).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 response code, but got %d", recorder.Code)
	}
}

type mockDeactivator struct {
	err         error
	deactivated string
}

func (m *mockDeactivator) Deactivate(ctx context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.deactivated = id

	return nil
}
