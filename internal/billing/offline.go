package billing

import (
	"context"
	"fmt"
)

// PremiumReader reads the stored premium flag of a profile.
type PremiumReader interface {
	IsPremium(ctx context.Context, userID string) (bool, error)
}

// Offline is used when no billing endpoint is configured. Entitlement comes
// from the stored profile flag and checkout is unavailable.
type Offline struct {
	profiles PremiumReader
}

func NewOffline(profiles PremiumReader) *Offline {
	return &Offline{profiles: profiles}
}

func (o *Offline) StartCheckout(context.Context, string, Tier) (string, error) {
	return "", fmt.Errorf("checkout: %w: no billing endpoint configured", ErrUnavailable)
}

func (o *Offline) OpenBillingPortal(context.Context, string) (string, error) {
	return "", fmt.Errorf("billing portal: %w: no billing endpoint configured", ErrUnavailable)
}

func (o *Offline) RefreshEntitlement(ctx context.Context, userID string) (bool, error) {
	return o.profiles.IsPremium(ctx, userID)
}
