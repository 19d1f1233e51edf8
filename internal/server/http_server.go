package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oggyb/muzz-connect/internal/config"
)

// WebhookSecretHeader carries the shared secret of the billing webhook.
const WebhookSecretHeader = "X-Webhook-Secret"

// Check is one dependency probed by /healthz.
type Check func(ctx context.Context) error

// EntitlementRefresher re-reads a user's premium state; see entitlement.Gate.
type EntitlementRefresher interface {
	Refresh(ctx context.Context, userID string) (bool, error)
}

// NewOpsRouter serves health, metrics and the checkout-complete webhook.
func NewOpsRouter(cfg *config.Config, checks map[string]Check, gate EntitlementRefresher, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz(checks))
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/billing/checkout-complete", checkoutComplete(cfg.Billing.WebhookSecret, gate, log))
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func healthz(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		code := http.StatusOK
		result := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				code = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		writeJSON(w, code, result)
	}
}

type checkoutCompleteRequest struct {
	UserID string `json:"user_id"`
}

// checkoutComplete refreshes the entitlement of the user named in the body
// once billing reports a finished checkout.
func checkoutComplete(secret string, gate EntitlementRefresher, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "webhook disabled"})
			return
		}
		got := r.Header.Get(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad webhook secret"})
			return
		}

		var req checkoutCompleteRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)
		if req.UserID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
			return
		}

		premium, err := gate.Refresh(r.Context(), req.UserID)
		if err != nil {
			log.Error("checkout-complete refresh failed", "user", req.UserID, "err", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "entitlement refresh failed"})
			return
		}
		log.Info("checkout completed", "user", req.UserID, "premium", premium)
		writeJSON(w, http.StatusOK, map[string]any{"user_id": req.UserID, "is_premium": premium})
	}
}

// ServeHTTP serves handler on the configured ops address until ctx is done.
func ServeHTTP(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
