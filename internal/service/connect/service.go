package connect

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/auth"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/logger"
	"github.com/oggyb/muzz-connect/internal/match"
	"github.com/oggyb/muzz-connect/internal/profile"
	pb "github.com/oggyb/muzz-connect/internal/proto/connect"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service implements the Connect gRPC API on top of the domain components in
// AppContext. The acting user always comes from the authenticated context,
// never from the request.
type Service struct {
	appCtx *app.AppContext
	log    *slog.Logger
}

// NewConnectService creates a new Connect service with dependencies from AppContext.
func NewConnectService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx, log: appCtx.Logger.With("service", "connect")}
}

func (s *Service) handlers() pb.Handlers {
	return pb.Handlers{
		Unary: map[string]pb.UnaryFunc{
			"GetProfile":         s.GetProfile,
			"UpdateProfile":      s.UpdateProfile,
			"Discover":           s.Discover,
			"Like":               s.Like,
			"Pass":               s.Pass,
			"ListLikedYou":       s.ListLikedYou,
			"ListNewLikedYou":    s.ListNewLikedYou,
			"CountLikedYou":      s.CountLikedYou,
			"ListMatches":        s.ListMatches,
			"Connect":            s.Connect,
			"SendMessage":        s.SendMessage,
			"ListConversations":  s.ListConversations,
			"MarkRead":           s.MarkRead,
			"CreateStream":       s.CreateStream,
			"ListStreams":        s.ListStreams,
			"EndStream":          s.EndStream,
			"JoinStream":         s.JoinStream,
			"LeaveStream":        s.LeaveStream,
			"CountViewers":       s.CountViewers,
			"SendStreamMessage":  s.SendStreamMessage,
			"StartCheckout":      s.StartCheckout,
			"OpenBillingPortal":  s.OpenBillingPortal,
			"RefreshEntitlement": s.RefreshEntitlement,
		},
		Stream: map[string]pb.StreamFunc{
			"WatchConversation":  s.WatchConversation,
			"WatchConversations": s.WatchConversations,
			"WatchStream":        s.WatchStream,
		},
	}
}

// actor is the authenticated user of the call.
func actor(ctx context.Context) (string, error) {
	id, ok := auth.UserFrom(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "no acting user")
	}
	return id, nil
}

func (s *Service) logger(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx, s.log)
}

func required(req proto.Message, field string) (string, error) {
	v := strings.TrimSpace(pb.String(req, field))
	if v == "" {
		return "", svcErr.InvalidArgument(field + " is required")
	}
	return v, nil
}

func pageSize(req proto.Message, field string) int {
	n := int(pb.Int(req, field))
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	}
	return n
}

// GetProfile returns the caller's profile, created on first use, or the
// profile named by user_id.
func (s *Service) GetProfile(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	target := strings.TrimSpace(pb.String(req, "user_id"))
	if target == "" || target == user {
		p, _, err := s.appCtx.Profiles.Ensure(ctx, user)
		if err != nil {
			return nil, svcErr.Map(err)
		}
		return profileMsg(p), nil
	}

	p, err := s.appCtx.Profiles.Get(ctx, target)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return profileMsg(p), nil
}

// UpdateProfile applies the fields listed in "fields" from the given profile.
func (s *Service) UpdateProfile(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	src := pb.Message(req, "profile")
	var patch profile.Patch
	for _, f := range pb.Strings(req, "fields") {
		switch f {
		case "display_name":
			v := pb.String(src, f)
			patch.DisplayName = &v
		case "bio":
			v := pb.String(src, f)
			patch.Bio = &v
		case "age":
			v := int(pb.Int(src, f))
			patch.Age = &v
		case "location":
			v := pb.String(src, f)
			patch.Location = &v
		case "interests":
			patch.Interests = pb.Strings(src, f)
		case "avatar_url":
			v := pb.String(src, f)
			patch.AvatarURL = &v
		case "gender":
			g := profile.Some(pb.String(src, f))
			patch.Gender = &g
		default:
			return nil, svcErr.InvalidArgument("unknown profile field " + f)
		}
	}

	p, err := s.appCtx.Profiles.Update(ctx, user, user, patch)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return profileMsg(p), nil
}

// Discover returns upcoming candidates of the caller's deck.
func (s *Service) Discover(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	deck, err := s.appCtx.Decks.Get(ctx, user)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	candidates, err := deck.Peek(ctx, pageSize(req, "limit"))
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := pb.New("DiscoverResponse")
	for i := range candidates {
		pb.Set(resp, "profiles", profileMsg(&candidates[i]))
	}
	return resp, nil
}

// Like likes target_user_id. Liking twice is reported, not rejected.
func (s *Service) Like(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	target, err := required(req, "target_user_id")
	if err != nil {
		return nil, err
	}

	deck, err := s.appCtx.Decks.Get(ctx, user)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	res, err := deck.Like(ctx, target)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	s.logger(ctx).Debug("Like result", "target", target, "result", res)
	return pb.Make("LikeResponse", pb.Fields{
		"result":      res.String(),
		"mutual_like": res == match.MutualMatch,
	}), nil
}

// Pass skips target_user_id for the rest of the discovery session.
func (s *Service) Pass(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	target, err := required(req, "target_user_id")
	if err != nil {
		return nil, err
	}

	deck, err := s.appCtx.Decks.Get(ctx, user)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	deck.Pass(target)
	return pb.New("Empty"), nil
}

func tokenOf(req proto.Message) *string {
	token := pb.String(req, "pagination_token")
	if token == "" {
		return nil
	}
	return &token
}

// ListLikedYou pages through everyone who liked the caller.
func (s *Service) ListLikedYou(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	likes, next, err := s.appCtx.Ledger.ListLikedYou(ctx, user, tokenOf(req), pageSize(req, "limit"))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	s.logger(ctx).Debug("ListLikedYou result", "liker_count", len(likes), "has_next", next != nil)
	return likersMsg(likes, next), nil
}

// ListNewLikedYou is ListLikedYou without the users the caller liked back.
func (s *Service) ListNewLikedYou(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	likes, next, err := s.appCtx.Ledger.ListNewLikedYou(ctx, user, tokenOf(req), pageSize(req, "limit"))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return likersMsg(likes, next), nil
}

func (s *Service) CountLikedYou(ctx context.Context, _ *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.appCtx.Ledger.CountLikedYou(ctx, user)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return pb.Make("CountLikedYouResponse", pb.Fields{"count": n}), nil
}

func (s *Service) ListMatches(ctx context.Context, _ *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	likes, err := s.appCtx.Ledger.ListMatches(ctx, user)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := pb.New("ListMatchesResponse")
	for _, l := range likes {
		pb.Set(resp, "matches", pb.Make("Match", pb.Fields{
			"user_id":        l.LikedID,
			"unix_timestamp": unixMilli(l.UpdatedAt),
		}))
	}
	return resp, nil
}

// Connect likes target_user_id and sends the opener in one step.
func (s *Service) Connect(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	target, err := required(req, "target_user_id")
	if err != nil {
		return nil, err
	}

	res, err := s.appCtx.Connector.Connect(ctx, user, target, pb.String(req, "opener"))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if res.Like != 0 {
		if deck, err := s.appCtx.Decks.Get(ctx, user); err == nil {
			deck.MarkLiked(target)
		}
	}

	resp := pb.Make("ConnectResponse", pb.Fields{"send": sendResultMsg(res.Send)})
	if res.Like != 0 {
		pb.Set(resp, "like_result", res.Like.String())
	}
	return resp, nil
}
