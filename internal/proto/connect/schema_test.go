package connect_test

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/oggyb/muzz-connect/internal/proto/connect"
)

func TestSchemaRegistered(t *testing.T) {
	fd, err := protoregistry.GlobalFiles.FindFileByPath(connect.FileName)
	require.NoError(t, err)
	assert.Equal(t, connect.File, fd)

	svc := fd.Services().ByName("Connect")
	require.NotNil(t, svc)
	assert.True(t, svc.Methods().ByName("WatchStream").IsStreamingServer())
	assert.False(t, svc.Methods().ByName("Like").IsStreamingServer())
}

func TestMessageHelpers(t *testing.T) {
	p := connect.Make("Profile", connect.Fields{
		"user_id":   "u1",
		"age":       31,
		"interests": []string{"hiking", "jazz"},
		"gender":    nil,
	})
	ev := connect.Make("StreamEvent", connect.Fields{
		"kind":     "chat",
		"messages": []*dynamicpb.Message{connect.Make("Message", connect.Fields{"body": "hi"})},
	})

	b, err := proto.Marshal(p)
	require.NoError(t, err)
	back := connect.New("Profile")
	require.NoError(t, proto.Unmarshal(b, back))

	assert.Equal(t, "u1", connect.String(back, "user_id"))
	assert.Equal(t, int64(31), connect.Int(back, "age"))
	assert.Equal(t, []string{"hiking", "jazz"}, connect.Strings(back, "interests"))
	assert.False(t, connect.Has(back, "gender"))
	assert.False(t, connect.Bool(back, "is_premium"))

	msgs := connect.Messages(ev, "messages")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", connect.String(msgs[0], "body"))
	assert.False(t, connect.Has(ev, "stream"))
	assert.Empty(t, connect.String(connect.Message(ev, "stream"), "id"))

	assert.Panics(t, func() { connect.Set(p, "nope", "x") })
}

func TestServiceDescNeedsEveryHandler(t *testing.T) {
	_, err := connect.ServiceDesc(connect.Handlers{})
	assert.Error(t, err)

	h := connect.Handlers{Unary: map[string]connect.UnaryFunc{}, Stream: map[string]connect.StreamFunc{}}
	methods := connect.File.Services().ByName("Connect").Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		if md.IsStreamingServer() {
			h.Stream[string(md.Name())] = nil
		} else {
			h.Unary[string(md.Name())] = func(context.Context, *dynamicpb.Message) (proto.Message, error) { return nil, nil }
		}
	}
	sd, err := connect.ServiceDesc(h)
	require.NoError(t, err)
	assert.Equal(t, connect.ServiceName, sd.ServiceName)
	assert.Len(t, sd.Streams, 3)
	assert.Len(t, sd.Methods, methods.Len()-3)
}

var (
	protoMessage = regexp.MustCompile(`^message (\w+) \{`)
	protoField   = regexp.MustCompile(`^\s+(repeated )?(\w+) (\w+) = (\d+);`)
	protoRPC     = regexp.MustCompile(`^\s+rpc (\w+)\((\w+)\) returns \((stream )?(\w+)\);`)
)

// The checked-in .proto is the published contract; the runtime schema must
// declare exactly the same messages, fields and methods.
func TestProtoFileMatchesSchema(t *testing.T) {
	src, err := os.ReadFile(filepath.FromSlash(connect.FileName))
	require.NoError(t, err)

	var fromFile []string
	current := ""
	sc := bufio.NewScanner(bytes.NewReader(src))
	for sc.Scan() {
		line := sc.Text()
		if m := protoMessage.FindStringSubmatch(line); m != nil {
			current = m[1]
			fromFile = append(fromFile, "message "+current)
		} else if m := protoRPC.FindStringSubmatch(line); m != nil {
			fromFile = append(fromFile, fmt.Sprintf("rpc %s(%s) returns (%s%s)", m[1], m[2], m[3], m[4]))
		} else if m := protoField.FindStringSubmatch(line); m != nil {
			require.NotEmpty(t, current, line)
			fromFile = append(fromFile, fmt.Sprintf("%s.%s %s%s = %s", current, m[3], m[1], m[2], m[4]))
		}
	}
	require.NoError(t, sc.Err())

	var fromSchema []string
	msgs := connect.File.Messages()
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		fromSchema = append(fromSchema, "message "+string(md.Name()))
		fields := md.Fields()
		for j := 0; j < fields.Len(); j++ {
			fd := fields.Get(j)
			label := ""
			if fd.Cardinality() == protoreflect.Repeated {
				label = "repeated "
			}
			typ := fd.Kind().String()
			if fd.Kind() == protoreflect.MessageKind {
				typ = string(fd.Message().Name())
			}
			fromSchema = append(fromSchema, fmt.Sprintf("%s.%s %s%s = %d", md.Name(), fd.Name(), label, typ, fd.Number()))
		}
	}
	methods := connect.File.Services().ByName("Connect").Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		stream := ""
		if md.IsStreamingServer() {
			stream = "stream "
		}
		fromSchema = append(fromSchema, fmt.Sprintf("rpc %s(%s) returns (%s%s)", md.Name(), md.Input().Name(), stream, md.Output().Name()))
	}

	assert.ElementsMatch(t, fromSchema, fromFile)
}
