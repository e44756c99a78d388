package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/identity"
	"fieldscan/scanner-relay/log"

	"github.com/pkg/errors"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProvisioningClient obtains hub credentials for scanned codes. A 4xx
// answer means the hub refused the code outright; anything else that
// goes wrong is an outage, which callers treat as retryable.
type ProvisioningClient struct {
	url    string
	client httpDoer
}

func NewProvisioningClient(cfg *config.Config) *ProvisioningClient {
	return &ProvisioningClient{
		url:    cfg.HubProvisionUrl,
		client: &http.Client{Timeout: cfg.GetProvisionTimeout()},
	}
}

func NewProvisioningClientWithDoer(cfg *config.Config, doer httpDoer) *ProvisioningClient {
	return &ProvisioningClient{
		url:    cfg.HubProvisionUrl,
		client: doer,
	}
}

type provisionRequest struct {
	IdentityId string `json:"identityId"`
}

type provisionResponse struct {
	Credential string `json:"credential"`
	Created    bool   `json:"created"`
}

func (c *ProvisioningClient) ProvisionOrFetch(ctx context.Context, id string) (string, bool, error) {
	body, err := json.Marshal(provisionRequest{IdentityId: id})
	if err != nil {
		return "", false, errors.Wrap(err, "hub: encoding provision request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", false, errors.Wrap(err, "hub: building provision request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, errors.Wrapf(identity.ErrProvisioningUnavailable, "provision request failed: %s", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", false, errors.Wrapf(identity.ErrProvisionRejected, "the provisioning service answered %d for identity %s", resp.StatusCode, id)
	default:
		return "", false, errors.Wrapf(identity.ErrProvisioningUnavailable, "the provisioning service answered %d", resp.StatusCode)
	}

	var pr provisionResponse
	if err = json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", false, errors.Wrapf(identity.ErrProvisioningUnavailable, "decoding provision response: %s", err)
	}

	// A syntactically broken credential would poison the store, so it is
	// refused here and retried as an outage.
	if _, err = ParseCredential(pr.Credential); err != nil {
		return "", false, errors.Wrapf(identity.ErrProvisioningUnavailable, "the provisioning service returned an unusable credential: %s", err)
	}

	log.Logger.Debugf("provision request for identity %s answered (created: %t)", id, pr.Created)

	return pr.Credential, pr.Created, nil
}
