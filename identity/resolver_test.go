package identity_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/identity"
	"fieldscan/scanner-relay/identity/test"

	"github.com/pkg/errors"
)

const testCredential = "hosts=hub1:9092;identityId=5356a1840b0e;sharedAccessKey=abc123"

func TestResolver_Resolve_RejectsInvalidCodes(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{
			name: "empty code",
			code: "",
		},
		{
			name: "whitespace only",
			code: "   \t ",
		},
		{
			name: "shorter than the minimum length",
			code: "ab12",
		},
		{
			name: "unsupported characters",
			code: "abc123!?*",
		},
		{
			name: "longer than the maximum length",
			code: strings.Repeat("a", 65),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := test.NewMockStore()
			prov := test.NewMockProvisioner(testCredential, true)
			r := identity.NewResolver(store, prov, newTestConfig())

			_, err := r.Resolve(context.Background(), tt.code)
			if !errors.Is(err, identity.ErrInvalidCode) {
				t.Errorf("expected ErrInvalidCode, got %v", err)
			}

			if prov.CallCount() > 0 {
				t.Error("the provisioner should not be called for an invalid code")
			}
		})
	}
}

func TestResolver_Resolve_IgnoresReservedTestCode(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{
			name: "exact match",
			code: "817994ccfe14",
		},
		{
			name: "uppercase with surrounding whitespace",
			code: "  817994CCFE14 ",
		},
		{
			name: "scanner injected interior whitespace",
			code: "8179 94cc fe14",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := test.NewMockStore()
			prov := test.NewMockProvisioner(testCredential, true)
			r := identity.NewResolver(store, prov, newTestConfig())

			res, err := r.Resolve(context.Background(), tt.code)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !res.TestCode {
				t.Error("expected the resolution to be flagged as a test code")
			}

			if prov.CallCount() > 0 {
				t.Error("a reserved test code should never be provisioned")
			}
		})
	}
}

func TestResolver_Resolve_RejectsNearMissesOfReservedTestCode(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{
			name: "one character dropped",
			code: "817994ccfe1",
		},
		{
			name: "one character substituted",
			code: "817994ccfe15",
		},
		{
			name: "two characters truncated",
			code: "817994ccfe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := test.NewMockStore()
			prov := test.NewMockProvisioner(testCredential, true)
			r := identity.NewResolver(store, prov, newTestConfig())

			_, err := r.Resolve(context.Background(), tt.code)
			if !errors.Is(err, identity.ErrInvalidCode) {
				t.Errorf("expected ErrInvalidCode, got %v", err)
			}
		})
	}
}

func TestResolver_Resolve_AcceptsCodesFarFromReservedTestCode(t *testing.T) {
	store := test.NewMockStore()
	prov := test.NewMockProvisioner(testCredential, true)
	r := identity.NewResolver(store, prov, newTestConfig())

	res, err := r.Resolve(context.Background(), "x17994ccfe99")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.IdentityId != "x17994ccfe99" {
		t.Errorf("unexpected identity id %q", res.IdentityId)
	}

	if prov.CallCount() != 1 {
		t.Errorf("expected 1 provisioning call, got %d", prov.CallCount())
	}
}

func TestResolver_Resolve_ProvisionsOnFirstSight(t *testing.T) {
	store := test.NewMockStore()
	prov := test.NewMockProvisioner(testCredential, true)
	r := identity.NewResolver(store, prov, newTestConfig())

	res, err := r.Resolve(context.Background(), " 5356A1840B0E ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.IdentityId != "5356a1840b0e" {
		t.Errorf("unexpected identity id %q", res.IdentityId)
	}

	if res.Credential != testCredential {
		t.Errorf("unexpected credential %q", res.Credential)
	}

	if !res.FirstSeen {
		t.Error("a newly created identity should be reported as first seen")
	}

	stored, ok := store.Stored("5356a1840b0e")
	if !ok {
		t.Fatal("the identity was not persisted")
	}

	if stored.Status != identity.StatusPending {
		t.Errorf("a freshly created identity should be pending until its registration is delivered, got %q", stored.Status)
	}

	res, err = r.Resolve(context.Background(), "5356a1840b0e")
	if err != nil {
		t.Fatalf("unexpected error on second resolve: %v", err)
	}

	if res.FirstSeen {
		t.Error("an already known identity should not be reported as first seen")
	}

	if got := prov.CallCount(); got != 1 {
		t.Errorf("expected exactly 1 provisioning call, got %d", got)
	}

	if got := store.GetCount(); got != 1 {
		t.Errorf("the cached path should not read from the store, got %d reads", got)
	}

	waitFor(t, func() bool {
		return store.TouchCount() >= 1
	})
}

func TestResolver_Resolve_HubKnownIdentityStartsActive(t *testing.T) {
	store := test.NewMockStore()
	prov := test.NewMockProvisioner(testCredential, false)
	r := identity.NewResolver(store, prov, newTestConfig())

	res, err := r.Resolve(context.Background(), "5356a1840b0e")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.FirstSeen {
		t.Error("an identity the hub already knew must not trigger a registration")
	}

	stored, ok := store.Stored("5356a1840b0e")
	if !ok {
		t.Fatal("the identity was not persisted")
	}

	if stored.Status != identity.StatusActive {
		t.Errorf("an identity fetched from the hub has no registration to wait for, got %q", stored.Status)
	}
}

func TestResolver_Resolve_SharedProvisioningUnderConcurrentScans(t *testing.T) {
	store := test.NewMockStore()
	prov := test.NewMockProvisioner(testCredential, true)
	prov.SetDelay(100 * time.Millisecond)
	r := identity.NewResolver(store, prov, newTestConfig())

	const scans = 5

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []identity.Resolution
	)

	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := r.Resolve(context.Background(), "5356a1840b0e")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if got := prov.CallCount(); got != 1 {
		t.Errorf("expected a single shared provisioning call, got %d", got)
	}

	firstSeen := 0
	for _, res := range results {
		if res.FirstSeen {
			firstSeen++
		}
	}

	if firstSeen != 1 {
		t.Errorf("expected exactly one resolution to be first seen, got %d", firstSeen)
	}
}

func TestResolver_Resolve_ReturnsExistingIdentityFromStore(t *testing.T) {
	store := test.NewMockStore()
	store.Seed(identity.Identity{
		Id:            "5356a1840b0e",
		Credential:    testCredential,
		ProvisionedAt: time.Now().UTC().Add(-24 * time.Hour),
		LastSeenAt:    time.Now().UTC().Add(-time.Hour),
		Status:        identity.StatusActive,
	})
	prov := test.NewMockProvisioner(testCredential, true)
	r := identity.NewResolver(store, prov, newTestConfig())

	res, err := r.Resolve(context.Background(), "5356a1840b0e")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.FirstSeen {
		t.Error("an identity restored from the store is not first seen")
	}

	if res.Credential != testCredential {
		t.Errorf("unexpected credential %q", res.Credential)
	}

	if prov.CallCount() != 0 {
		t.Error("a locally known identity should not be provisioned again")
	}
}

func TestResolver_Resolve_RejectsDeactivatedIdentity(t *testing.T) {
	store := test.NewMockStore()
	store.Seed(identity.Identity{
		Id:         "5356a1840b0e",
		Credential: testCredential,
		Status:     identity.StatusDeactivated,
	})
	prov := test.NewMockProvisioner(testCredential, true)
	r := identity.NewResolver(store, prov, newTestConfig())

	_, err := r.Resolve(context.Background(), "5356a1840b0e")
	if !errors.Is(err, identity.ErrDeactivated) {
		t.Errorf("expected ErrDeactivated, got %v", err)
	}
}

func TestResolver_Resolve_ProvisioningOutageSurfaces(t *testing.T) {
	store := test.NewMockStore()
	prov := test.NewMockProvisioner(testCredential, true)
	prov.ReturnError(errors.Wrap(identity.ErrProvisioningUnavailable, "dial tcp 10.0.0.1:443: i/o timeout"))
	r := identity.NewResolver(store, prov, newTestConfig())

	_, err := r.Resolve(context.Background(), "5356a1840b0e")
	if !errors.Is(err, identity.ErrProvisioningUnavailable) {
		t.Errorf("expected ErrProvisioningUnavailable, got %v", err)
	}

	if store.UpsertCount() != 0 {
		t.Error("nothing should be persisted when provisioning fails")
	}

	_, err = r.Resolve(context.Background(), "5356a1840b0e")
	if !errors.Is(err, identity.ErrProvisioningUnavailable) {
		t.Errorf("expected ErrProvisioningUnavailable, got %v", err)
	}

	if got := prov.CallCount(); got != 2 {
		t.Errorf("a failed provisioning attempt must not be cached, expected 2 calls but got %d", got)
	}
}

func TestResolver_Deactivate(t *testing.T) {
	store := test.NewMockStore()
	prov := test.NewMockProvisioner(testCredential, true)
	r := identity.NewResolver(store, prov, newTestConfig())

	if _, err := r.Resolve(context.Background(), "5356a1840b0e"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Deactivate(context.Background(), "5356A1840B0E"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := store.Stored("5356a1840b0e")
	if stored.Status != identity.StatusDeactivated {
		t.Errorf("the stored identity should be deactivated, got %q", stored.Status)
	}

	_, err := r.Resolve(context.Background(), "5356a1840b0e")
	if !errors.Is(err, identity.ErrDeactivated) {
		t.Errorf("expected ErrDeactivated, got %v", err)
	}
}

func newTestConfig() *config.Config {
	return &config.Config{
		ReservedTestCodes:    []string{"817994ccfe14"},
		MinCodeLength:        6,
		ProvisionTimeoutSecs: 2,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Error("condition was not met in time")
}
