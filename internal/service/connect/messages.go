package connect

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"

	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/messaging"
	"github.com/oggyb/muzz-connect/internal/repository"
	pb "github.com/oggyb/muzz-connect/internal/proto/connect"
)

// SendMessage sends a direct message. Rejections come back as a result with
// a reason, not as an error.
func (s *Service) SendMessage(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	receiver, err := required(req, "receiver_id")
	if err != nil {
		return nil, err
	}

	res, err := s.appCtx.Messaging.SendDirect(ctx, user, receiver, pb.String(req, "body"))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	s.logger(ctx).Debug("SendMessage result", "receiver", receiver, "delivered", res.Delivered(), "reason", res.Reason)
	return sendResultMsg(res), nil
}

func (s *Service) ListConversations(ctx context.Context, _ *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := s.appCtx.Messaging.Conversations(ctx, user)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	return conversationsMsg(summaries), nil
}

// WatchConversations streams the caller's conversation list: the current
// list first, then a fresh one whenever a message arrives, is sent or is
// read. Lists produced while the client is slow are coalesced into the
// latest one.
func (s *Service) WatchConversations(_ *dynamicpb.Message, stream grpc.ServerStream) error {
	ctx := stream.Context()
	user, err := actor(ctx)
	if err != nil {
		return err
	}

	q := newQueue[[]repository.ConversationSummary]()
	inbox, err := s.appCtx.Messaging.OpenInbox(ctx, user, q.push)
	if err != nil {
		return svcErr.Map(err)
	}
	defer func() {
		if err := inbox.Close(); err != nil {
			s.logger(ctx).Warn("failed to close inbox", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.ready:
			lists := q.drain()
			if len(lists) == 0 {
				continue
			}
			if err := stream.SendMsg(conversationsMsg(lists[len(lists)-1])); err != nil {
				s.logger(ctx).Debug("WatchConversations send failed", "err", err)
				return err
			}
		}
	}
}

// MarkRead marks every message partner_id sent to the caller as read.
func (s *Service) MarkRead(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	partner, err := required(req, "partner_id")
	if err != nil {
		return nil, err
	}

	n, err := s.appCtx.Messaging.MarkRead(ctx, user, partner)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return pb.Make("MarkReadResponse", pb.Fields{"marked": n}), nil
}

// WatchConversation focuses the caller's session on partner_id and streams
// the transcript: a snapshot first, then additions and updates. Focusing
// another conversation from a second call ends this one with Aborted.
func (s *Service) WatchConversation(req *dynamicpb.Message, stream grpc.ServerStream) error {
	ctx := stream.Context()
	user, err := actor(ctx)
	if err != nil {
		return err
	}
	partner, err := required(req, "partner_id")
	if err != nil {
		return err
	}

	q := newQueue[messaging.Change]()
	v, err := s.appCtx.Sessions.Focus(ctx, user, partner, q.push)
	if err != nil {
		return svcErr.Map(err)
	}
	defer func() {
		if err := s.appCtx.Sessions.Release(user, v); err != nil {
			s.logger(ctx).Warn("failed to release conversation view", "partner", partner, "err", err)
		}
	}()

	log := s.logger(ctx).With("partner", partner)
	log.Debug("WatchConversation opened", "state", v.State())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-v.Done():
			// flush what the view produced before it was replaced
			if err := s.sendChanges(stream, q.drain()); err != nil {
				return err
			}
			return status.Error(codes.Aborted, "conversation view replaced or closed")
		case <-q.ready:
			if err := s.sendChanges(stream, q.drain()); err != nil {
				log.Debug("WatchConversation send failed", "err", err)
				return err
			}
		}
	}
}

func (s *Service) sendChanges(stream grpc.ServerStream, changes []messaging.Change) error {
	for _, c := range changes {
		ev := pb.Make("ConversationEvent", pb.Fields{
			"kind":     c.Kind.String(),
			"messages": messageMsgs(c.Messages),
		})
		if err := stream.SendMsg(ev); err != nil {
			return err
		}
	}
	return nil
}
