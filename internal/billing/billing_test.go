package billing_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-connect/internal/billing"
	"github.com/oggyb/muzz-connect/internal/config"
)

func newClient(t *testing.T, h http.HandlerFunc) *billing.HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Billing.BaseURL = srv.URL + "/"
	cfg.Billing.APIKey = "secret"
	return billing.NewHTTPClient(cfg)
}

func TestStartCheckout(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/create-checkout", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "u1", r.Header.Get("X-User-Id"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "yearly", body["priceType"])

		_, _ = w.Write([]byte(`{"url":"https://pay.example/session"}`))
	})

	url, err := c.StartCheckout(context.Background(), "u1", billing.TierYearly)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/session", url)

	_, err = c.StartCheckout(context.Background(), "u1", billing.Tier("weekly"))
	assert.ErrorIs(t, err, billing.ErrUnknownTier)
}

func TestRefreshEntitlement(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/check-subscription", r.URL.Path)
		_, _ = w.Write([]byte(`{"is_premium":true}`))
	})

	premium, err := c.RefreshEntitlement(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, premium)
}

func TestServerErrorIsUnavailable(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"stripe key missing"}`))
	})

	_, err := c.OpenBillingPortal(context.Background(), "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrUnavailable)
	assert.Contains(t, err.Error(), "stripe key missing")
}

func TestClientErrorIsNotRetryable(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"no customer"}`))
	})

	_, err := c.OpenBillingPortal(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, billing.ErrUnavailable)
}

func TestParseTier(t *testing.T) {
	tier, err := billing.ParseTier(" Monthly ")
	require.NoError(t, err)
	assert.Equal(t, billing.TierMonthly, tier)
	assert.Equal(t, int64(999), billing.Plans[tier].PriceCents)

	_, err = billing.ParseTier("lifetime")
	assert.ErrorIs(t, err, billing.ErrUnknownTier)
}

type fixedPremium map[string]bool

func (f fixedPremium) IsPremium(_ context.Context, userID string) (bool, error) {
	return f[userID], nil
}

func TestOffline(t *testing.T) {
	o := billing.NewOffline(fixedPremium{"p": true})

	premium, err := o.RefreshEntitlement(context.Background(), "p")
	require.NoError(t, err)
	assert.True(t, premium)

	_, err = o.StartCheckout(context.Background(), "p", billing.TierMonthly)
	assert.ErrorIs(t, err, billing.ErrUnavailable)
}
