package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/log"

	"github.com/pkg/errors"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the REST backend. Both endpoints are idempotent, so
// the delivery worker can safely retry any call that fails.
type Client struct {
	baseUrl string
	client  httpDoer
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseUrl: strings.TrimRight(cfg.ApiBaseUrl, "/"),
		client:  &http.Client{Timeout: cfg.GetDeliveryTimeout()},
	}
}

func NewClientWithDoer(cfg *config.Config, doer httpDoer) *Client {
	return &Client{
		baseUrl: strings.TrimRight(cfg.ApiBaseUrl, "/"),
		client:  doer,
	}
}

type scanRequest struct {
	DeviceId string `json:"deviceId"`
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

type confirmRequest struct {
	DeviceId string `json:"deviceId"`
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SendScan reports a quantity change observed for an identity.
func (c *Client) SendScan(ctx context.Context, identityId, code string, quantity int) error {
	return c.post(ctx, "/scan", scanRequest{DeviceId: identityId, Code: code, Quantity: quantity})
}

// ConfirmRegistration tells the backend that a newly scanned identity
// has been provisioned on the hub.
func (c *Client) ConfirmRegistration(ctx context.Context, identityId string) error {
	return c.post(ctx, "/registration/confirm", confirmRequest{DeviceId: identityId})
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "backend: encoding request for %s", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "backend: building request for %s", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "backend: request to %s failed", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("backend: %s answered %d", path, resp.StatusCode)
	}

	var ar apiResponse
	if err = json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return errors.Wrapf(err, "backend: decoding response from %s", path)
	}

	if !ar.Success {
		return errors.Errorf("backend: %s reported failure: %s", path, ar.Message)
	}

	log.Logger.Debugf("backend accepted %s request", path)

	return nil
}
