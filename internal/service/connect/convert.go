package connect

import (
	"time"

	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/messaging"
	"github.com/oggyb/muzz-connect/internal/profile"
	pb "github.com/oggyb/muzz-connect/internal/proto/connect"
	"github.com/oggyb/muzz-connect/internal/repository"
)

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func profileMsg(p *db.Profile) *dynamicpb.Message {
	gender, _ := profile.GenderFrom(p.Gender).Get()
	return pb.Make("Profile", pb.Fields{
		"user_id":      p.UserID,
		"display_name": p.DisplayName,
		"bio":          p.Bio,
		"age":          p.Age,
		"location":     p.Location,
		"interests":    []string(p.Interests),
		"avatar_url":   p.AvatarURL,
		"gender":       gender,
		"is_premium":   p.IsPremium,
	})
}

func messageMsg(m db.Message) *dynamicpb.Message {
	return pb.Make("Message", pb.Fields{
		"id":               m.ID,
		"conversation_key": m.ConversationKey,
		"sender_id":        m.SenderID,
		"receiver_id":      m.ReceiverID,
		"stream_id":        m.StreamID,
		"body":             m.Body,
		"read":             m.Read,
		"created_unix_ms":  unixMilli(m.CreatedAt),
	})
}

func messageMsgs(ms []db.Message) []*dynamicpb.Message {
	out := make([]*dynamicpb.Message, len(ms))
	for i, m := range ms {
		out[i] = messageMsg(m)
	}
	return out
}

func sendResultMsg(res messaging.SendResult) *dynamicpb.Message {
	out := pb.Make("SendResult", pb.Fields{
		"delivered": res.Delivered(),
		"reason":    string(res.Reason),
	})
	if res.Message != nil {
		pb.Set(out, "message", messageMsg(*res.Message))
	}
	return out
}

func conversationsMsg(summaries []repository.ConversationSummary) *dynamicpb.Message {
	resp := pb.New("ListConversationsResponse")
	for _, c := range summaries {
		pb.Set(resp, "conversations", conversationMsg(c))
	}
	return resp
}

func conversationMsg(c repository.ConversationSummary) *dynamicpb.Message {
	return pb.Make("Conversation", pb.Fields{
		"partner_id": c.PartnerID,
		"last":       messageMsg(c.Last),
		"unread":     c.Unread,
	})
}

func streamMsg(st *db.Stream) *dynamicpb.Message {
	out := pb.Make("Stream", pb.Fields{
		"id":              st.ID,
		"streamer_id":     st.StreamerID,
		"title":           st.Title,
		"description":     st.Description,
		"is_active":       st.IsActive,
		"premium_only":    st.PremiumOnly,
		"viewer_count":    st.ViewerCount,
		"created_unix_ms": unixMilli(st.CreatedAt),
	})
	if st.EndedAt != nil {
		pb.Set(out, "ended_unix_ms", unixMilli(*st.EndedAt))
	}
	return out
}

func likersMsg(likes []db.Like, next *string) *dynamicpb.Message {
	out := pb.New("ListLikedYouResponse")
	for _, l := range likes {
		pb.Set(out, "likers", pb.Make("Liker", pb.Fields{
			"actor_id":       l.LikerID,
			"unix_timestamp": unixMilli(l.CreatedAt),
			"mutual":         l.Status == db.LikeReciprocated,
		}))
	}
	if next != nil {
		pb.Set(out, "next_pagination_token", *next)
	}
	return out
}
