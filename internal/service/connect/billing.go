package connect

import (
	"context"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/oggyb/muzz-connect/internal/billing"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	pb "github.com/oggyb/muzz-connect/internal/proto/connect"
)

func (s *Service) StartCheckout(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	tier, err := billing.ParseTier(pb.String(req, "tier"))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	url, err := s.appCtx.Billing.StartCheckout(ctx, user, tier)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	s.logger(ctx).Info("checkout started", "tier", tier)
	return pb.Make("UrlResponse", pb.Fields{"url": url}), nil
}

func (s *Service) OpenBillingPortal(ctx context.Context, _ *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	url, err := s.appCtx.Billing.OpenBillingPortal(ctx, user)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return pb.Make("UrlResponse", pb.Fields{"url": url}), nil
}

// RefreshEntitlement asks billing again and updates the cached and stored flag.
func (s *Service) RefreshEntitlement(ctx context.Context, _ *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	premium, err := s.appCtx.Gate.Refresh(ctx, user)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return pb.Make("RefreshEntitlementResponse", pb.Fields{"is_premium": premium}), nil
}
