// Package connect holds the muzz.connect.v1 API schema. The published
// contract is muzz/connect/v1/connect.proto next to this file; schema()
// declares the same descriptor in code and a test keeps the two identical.
// The file descriptor is assembled at init and registered globally, so gRPC
// reflection and grpcurl see the same API as the server. Messages are
// dynamicpb messages.
package connect

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	Package     = "muzz.connect.v1"
	ServiceName = Package + ".Connect"
	FileName    = "muzz/connect/v1/connect.proto"
)

// File is the registered descriptor of the API.
var File protoreflect.FileDescriptor

func init() {
	fd, err := protodesc.NewFile(schema(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("connect: invalid schema: %v", err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("connect: register schema: %v", err))
	}
	msgs := fd.Messages()
	for i := 0; i < msgs.Len(); i++ {
		if err := protoregistry.GlobalTypes.RegisterMessage(dynamicpb.NewMessageType(msgs.Get(i))); err != nil {
			panic(fmt.Sprintf("connect: register %s: %v", msgs.Get(i).FullName(), err))
		}
	}
	File = fd
}

type field = *descriptorpb.FieldDescriptorProto

func scalar(name string, num int32, t descriptorpb.FieldDescriptorProto_Type) field {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   t.Enum(),
	}
}

func str(name string, num int32) field {
	return scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_STRING)
}

func i32(name string, num int32) field {
	return scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_INT32)
}

func i64(name string, num int32) field {
	return scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_INT64)
}

func boolean(name string, num int32) field {
	return scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_BOOL)
}

func msg(name string, num int32, typ string) field {
	f := scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String("." + Package + "." + typ)
	return f
}

func repeated(f field) field {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func message(name string, fields ...field) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func method(name, in, out string, serverStreaming bool) *descriptorpb.MethodDescriptorProto {
	m := &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String("." + Package + "." + in),
		OutputType: proto.String("." + Package + "." + out),
	}
	if serverStreaming {
		m.ServerStreaming = proto.Bool(true)
	}
	return m
}

func schema() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(FileName),
		Package: proto.String(Package),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/oggyb/muzz-connect/internal/proto/connect"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			message("Empty"),

			// profiles
			message("Profile",
				str("user_id", 1),
				str("display_name", 2),
				str("bio", 3),
				i32("age", 4),
				str("location", 5),
				repeated(str("interests", 6)),
				str("avatar_url", 7),
				str("gender", 8), // empty when not declared
				boolean("is_premium", 9),
			),
			message("GetProfileRequest", str("user_id", 1)),
			message("UpdateProfileRequest",
				msg("profile", 1, "Profile"),
				repeated(str("fields", 2)), // Profile field names to apply
			),
			message("DiscoverRequest", i32("limit", 1)),
			message("DiscoverResponse", repeated(msg("profiles", 1, "Profile"))),

			// likes
			message("LikeRequest", str("target_user_id", 1)),
			message("LikeResponse", str("result", 1), boolean("mutual_like", 2)),
			message("PassRequest", str("target_user_id", 1)),
			message("ListLikedYouRequest", str("pagination_token", 1), i32("limit", 2)),
			message("Liker", str("actor_id", 1), i64("unix_timestamp", 2), boolean("mutual", 3)),
			message("ListLikedYouResponse",
				repeated(msg("likers", 1, "Liker")),
				str("next_pagination_token", 2),
			),
			message("CountLikedYouResponse", i64("count", 1)),
			message("Match", str("user_id", 1), i64("unix_timestamp", 2)),
			message("ListMatchesResponse", repeated(msg("matches", 1, "Match"))),

			// messaging
			message("Message",
				str("id", 1),
				str("conversation_key", 2),
				str("sender_id", 3),
				str("receiver_id", 4),
				str("stream_id", 5),
				str("body", 6),
				boolean("read", 7),
				i64("created_unix_ms", 8),
			),
			message("SendResult",
				boolean("delivered", 1),
				msg("message", 2, "Message"),
				str("reason", 3),
			),
			message("ConnectRequest", str("target_user_id", 1), str("opener", 2)),
			message("ConnectResponse", str("like_result", 1), msg("send", 2, "SendResult")),
			message("SendMessageRequest", str("receiver_id", 1), str("body", 2)),
			message("Conversation",
				str("partner_id", 1),
				msg("last", 2, "Message"),
				i64("unread", 3),
			),
			message("ListConversationsResponse", repeated(msg("conversations", 1, "Conversation"))),
			message("MarkReadRequest", str("partner_id", 1)),
			message("MarkReadResponse", i32("marked", 1)),
			message("WatchConversationRequest", str("partner_id", 1)),
			message("ConversationEvent",
				str("kind", 1),
				repeated(msg("messages", 2, "Message")),
			),

			// streams
			message("Stream",
				str("id", 1),
				str("streamer_id", 2),
				str("title", 3),
				str("description", 4),
				boolean("is_active", 5),
				boolean("premium_only", 6),
				i64("viewer_count", 7),
				i64("created_unix_ms", 8),
				i64("ended_unix_ms", 9),
			),
			message("CreateStreamRequest",
				str("title", 1),
				str("description", 2),
				boolean("premium_only", 3),
			),
			message("ListStreamsRequest", i32("offset", 1), i32("limit", 2)),
			message("ListStreamsResponse", repeated(msg("streams", 1, "Stream"))),
			message("StreamRequest", str("stream_id", 1)),
			message("JoinStreamResponse", boolean("already_joined", 1), i64("viewer_count", 2)),
			message("ViewerCountResponse", i64("viewer_count", 1)),
			message("SendStreamMessageRequest", str("stream_id", 1), str("body", 2)),
			message("StreamEvent",
				str("kind", 1),
				i64("viewer_count", 2),
				repeated(msg("messages", 3, "Message")),
				msg("stream", 4, "Stream"),
			),

			// billing
			message("StartCheckoutRequest", str("tier", 1)),
			message("UrlResponse", str("url", 1)),
			message("RefreshEntitlementResponse", boolean("is_premium", 1)),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Connect"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("GetProfile", "GetProfileRequest", "Profile", false),
				method("UpdateProfile", "UpdateProfileRequest", "Profile", false),
				method("Discover", "DiscoverRequest", "DiscoverResponse", false),
				method("Like", "LikeRequest", "LikeResponse", false),
				method("Pass", "PassRequest", "Empty", false),
				method("ListLikedYou", "ListLikedYouRequest", "ListLikedYouResponse", false),
				method("ListNewLikedYou", "ListLikedYouRequest", "ListLikedYouResponse", false),
				method("CountLikedYou", "Empty", "CountLikedYouResponse", false),
				method("ListMatches", "Empty", "ListMatchesResponse", false),
				method("Connect", "ConnectRequest", "ConnectResponse", false),
				method("SendMessage", "SendMessageRequest", "SendResult", false),
				method("ListConversations", "Empty", "ListConversationsResponse", false),
				method("MarkRead", "MarkReadRequest", "MarkReadResponse", false),
				method("WatchConversation", "WatchConversationRequest", "ConversationEvent", true),
				method("WatchConversations", "Empty", "ListConversationsResponse", true),
				method("CreateStream", "CreateStreamRequest", "Stream", false),
				method("ListStreams", "ListStreamsRequest", "ListStreamsResponse", false),
				method("EndStream", "StreamRequest", "Stream", false),
				method("JoinStream", "StreamRequest", "JoinStreamResponse", false),
				method("LeaveStream", "StreamRequest", "ViewerCountResponse", false),
				method("CountViewers", "StreamRequest", "ViewerCountResponse", false),
				method("SendStreamMessage", "SendStreamMessageRequest", "SendResult", false),
				method("WatchStream", "StreamRequest", "StreamEvent", true),
				method("StartCheckout", "StartCheckoutRequest", "UrlResponse", false),
				method("OpenBillingPortal", "Empty", "UrlResponse", false),
				method("RefreshEntitlement", "Empty", "RefreshEntitlementResponse", false),
			},
		}},
	}
}
