// Package billing talks to the hosted billing functions that own premium
// entitlement: checkout sessions, the customer portal and subscription checks.
package billing

//go:generate mockgen -destination=mock/client.go -package=mock github.com/oggyb/muzz-connect/internal/billing Client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oggyb/muzz-connect/internal/config"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
)

// Tier is a subscription plan tier.
type Tier string

const (
	TierMonthly Tier = "monthly"
	TierYearly  Tier = "yearly"
)

// Plan describes the price of a tier.
type Plan struct {
	Tier       Tier
	PriceCents int64
	Interval   string
}

// Plans lists every purchasable tier.
var Plans = map[Tier]Plan{
	TierMonthly: {Tier: TierMonthly, PriceCents: 999, Interval: "month"},
	TierYearly:  {Tier: TierYearly, PriceCents: 9900, Interval: "year"},
}

var (
	ErrUnknownTier = fmt.Errorf("%w: unknown plan tier", svcErr.ErrInvalid)
	ErrUnavailable = fmt.Errorf("%w: billing unavailable", svcErr.ErrRetryable)
)

// Client is the billing collaborator. It is invoked, never implemented, by this service.
type Client interface {
	StartCheckout(ctx context.Context, userID string, tier Tier) (string, error)
	OpenBillingPortal(ctx context.Context, userID string) (string, error)
	RefreshEntitlement(ctx context.Context, userID string) (bool, error)
}

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Plans[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}

// HTTPClient calls the billing functions over JSON/HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient builds a client from the Billing config section.
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	timeout := time.Duration(cfg.Billing.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.Billing.BaseURL, "/"),
		apiKey:  cfg.Billing.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type urlResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

type subscriptionResponse struct {
	IsPremium bool   `json:"is_premium"`
	Error     string `json:"error,omitempty"`
}

func (c *HTTPClient) StartCheckout(ctx context.Context, userID string, tier Tier) (string, error) {
	if _, ok := Plans[tier]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	var resp urlResponse
	if err := c.call(ctx, "create-checkout", userID, map[string]any{"priceType": tier}, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("create-checkout: no checkout url returned")
	}
	return resp.URL, nil
}

func (c *HTTPClient) OpenBillingPortal(ctx context.Context, userID string) (string, error) {
	var resp urlResponse
	if err := c.call(ctx, "customer-portal", userID, nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("customer-portal: no portal url returned")
	}
	return resp.URL, nil
}

func (c *HTTPClient) RefreshEntitlement(ctx context.Context, userID string) (bool, error) {
	var resp subscriptionResponse
	if err := c.call(ctx, "check-subscription", userID, nil, &resp); err != nil {
		return false, err
	}
	return resp.IsPremium, nil
}

// call POSTs body to the named function. Transport failures and 5xx answers
// wrap ErrUnavailable.
func (c *HTTPClient) call(ctx context.Context, function, userID string, body any, out any) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", function, err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+function, payload)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", function, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", userID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", function, ErrUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: %w: read body: %w", function, ErrUnavailable, err)
	}

	if res.StatusCode >= 500 {
		return fmt.Errorf("%s: %w: status %d: %s", function, ErrUnavailable, res.StatusCode, errorText(raw))
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d: %s", function, res.StatusCode, errorText(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: malformed response: %w", function, err)
	}
	return nil
}

func errorText(raw []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}
