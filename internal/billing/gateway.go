package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/app-platform/internal/config"
	apperrors "github.com/spec-kit/app-platform/pkg/util/errorutil"
)

// Subscription is the provider-owned record read through the gateway. The
// service never persists subscription data of its own.
type Subscription struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Template string `json:"template,omitempty"`
}

// CheckoutParams describes a checkout session request.
type CheckoutParams struct {
	CustomerID string `json:"customerId"`
	Template   string `json:"template"`
	AppName    string `json:"appName"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
	Locale     string `json:"locale,omitempty"`
}

// Gateway is the contract around the external billing provider. The provider
// is an unreliable peer: callers log failures and degrade, they never treat
// it as a source of truth for local state.
type Gateway interface {
	UpsertCustomer(ctx context.Context, email, userID, displayName string) (string, error)
	CustomerSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	CreatePortalURL(ctx context.Context, customerID, returnURL, locale string) (string, error)
}

type httpGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPGateway builds a JSON-over-HTTP gateway implementation.
func NewHTTPGateway(cfg config.BillingConfig, logger *zap.Logger) Gateway {
	return &httpGateway{
		baseURL: cfg.APIURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout()},
		logger:  logger,
	}
}

func (g *httpGateway) UpsertCustomer(ctx context.Context, email, userID, displayName string) (string, error) {
	payload := map[string]string{
		"email":  email,
		"userId": userID,
		"name":   displayName,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := g.do(ctx, http.MethodPost, "/v1/customers", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (g *httpGateway) CustomerSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	var out struct {
		Data []Subscription `json:"data"`
	}
	path := fmt.Sprintf("/v1/customers/%s/subscriptions", customerID)
	if err := g.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (g *httpGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	path := fmt.Sprintf("/v1/subscriptions/%s", subscriptionID)
	return g.do(ctx, http.MethodDelete, path, nil, nil)
}

func (g *httpGateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := g.do(ctx, http.MethodPost, "/v1/checkout/sessions", params, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (g *httpGateway) CreatePortalURL(ctx context.Context, customerID, returnURL, locale string) (string, error) {
	payload := map[string]string{
		"customerId": customerID,
		"returnUrl":  returnURL,
		"locale":     locale,
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := g.do(ctx, http.MethodPost, "/v1/portal/sessions", payload, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (g *httpGateway) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return apperrors.NewExternalSystemError("billing provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.NewExternalSystemError("billing provider",
			fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, string(raw)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
