package connect

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/messaging"
	"github.com/oggyb/muzz-connect/internal/presence"
	pb "github.com/oggyb/muzz-connect/internal/proto/connect"
)

// CreateStream starts a live stream hosted by the caller. Hosting requires premium.
func (s *Service) CreateStream(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.appCtx.Streams.Create(ctx, user, pb.String(req, "title"), pb.String(req, "description"), pb.Bool(req, "premium_only"))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return streamMsg(st), nil
}

func (s *Service) ListStreams(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	if _, err := actor(ctx); err != nil {
		return nil, err
	}
	offset := int(pb.Int(req, "offset"))
	if offset < 0 {
		return nil, svcErr.InvalidArgument("offset must not be negative")
	}

	streams, err := s.appCtx.Streams.ListActive(ctx, offset, pageSize(req, "limit"))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	resp := pb.New("ListStreamsResponse")
	for i := range streams {
		pb.Set(resp, "streams", streamMsg(&streams[i]))
	}
	return resp, nil
}

// EndStream stops the caller's stream. Ending an ended stream returns it unchanged.
func (s *Service) EndStream(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := required(req, "stream_id")
	if err != nil {
		return nil, err
	}
	st, err := s.appCtx.Streams.End(ctx, user, id)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return streamMsg(st), nil
}

func (s *Service) JoinStream(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := required(req, "stream_id")
	if err != nil {
		return nil, err
	}

	if _, err := s.appCtx.Viewers.CheckAccess(ctx, id, user); err != nil {
		return nil, svcErr.Map(err)
	}
	res, err := s.appCtx.Viewers.Join(ctx, id, user)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return pb.Make("JoinStreamResponse", pb.Fields{
		"already_joined": res.AlreadyJoined,
		"viewer_count":   res.Count,
	}), nil
}

func (s *Service) LeaveStream(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := required(req, "stream_id")
	if err != nil {
		return nil, err
	}
	n, err := s.appCtx.Viewers.Leave(ctx, id, user)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return pb.Make("ViewerCountResponse", pb.Fields{"viewer_count": n}), nil
}

func (s *Service) CountViewers(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	if _, err := actor(ctx); err != nil {
		return nil, err
	}
	id, err := required(req, "stream_id")
	if err != nil {
		return nil, err
	}
	n, err := s.appCtx.Viewers.Count(ctx, id)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return pb.Make("ViewerCountResponse", pb.Fields{"viewer_count": n}), nil
}

func (s *Service) SendStreamMessage(ctx context.Context, req *dynamicpb.Message) (proto.Message, error) {
	user, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := required(req, "stream_id")
	if err != nil {
		return nil, err
	}
	res, err := s.appCtx.Messaging.SendStream(ctx, id, user, pb.String(req, "body"))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return sendResultMsg(res), nil
}

// WatchStream joins the stream for as long as the call lasts and streams
// viewer counts, chat changes and finally the end of the stream. The viewer
// record is dropped on every exit path.
func (s *Service) WatchStream(req *dynamicpb.Message, stream grpc.ServerStream) error {
	ctx := stream.Context()
	user, err := actor(ctx)
	if err != nil {
		return err
	}
	id, err := required(req, "stream_id")
	if err != nil {
		return err
	}
	log := s.logger(ctx).With("stream", id)

	q := newQueue[*dynamicpb.Message]()
	att, err := s.appCtx.Viewers.Attend(ctx, id, user, func(u presence.Update) {
		switch u.Kind {
		case presence.ViewerCount:
			q.push(pb.Make("StreamEvent", pb.Fields{"kind": "viewers", "viewer_count": u.Count}))
		case presence.Ended:
			q.push(pb.Make("StreamEvent", pb.Fields{"kind": "ended", "stream": streamMsg(u.Stream)}))
		}
	})
	if err != nil {
		return svcErr.Map(err)
	}
	defer func() {
		if err := att.Close(); err != nil {
			log.Warn("stream attendance teardown failed", "err", err)
		}
	}()

	v, err := s.appCtx.Messaging.Open(ctx, user, db.StreamKey(id), func(c messaging.Change) {
		q.push(pb.Make("StreamEvent", pb.Fields{
			"kind":     "chat_" + c.Kind.String(),
			"messages": messageMsgs(c.Messages),
		}))
	})
	if err != nil {
		return svcErr.Map(err)
	}
	defer func() {
		if err := v.Close(); err != nil {
			log.Warn("stream chat view close failed", "err", err)
		}
	}()

	// a remote feed may deliver our own join late
	q.push(pb.Make("StreamEvent", pb.Fields{"kind": "viewers", "viewer_count": att.Joined().Count}))
	log.Debug("WatchStream opened", "already_joined", att.Joined().AlreadyJoined)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.ready:
			for _, ev := range q.drain() {
				if err := stream.SendMsg(ev); err != nil {
					return err
				}
				if pb.String(ev, "kind") == "ended" {
					return nil
				}
			}
		}
	}
}
