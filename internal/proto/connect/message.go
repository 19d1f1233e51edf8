package connect

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Fields maps field names to Go values for Make.
type Fields map[string]any

// New returns an empty message of the named API type.
func New(name string) *dynamicpb.Message {
	md := File.Messages().ByName(protoreflect.Name(name))
	if md == nil {
		panic("connect: unknown message " + name)
	}
	return dynamicpb.NewMessage(md)
}

// Make builds a message of the named type with fields set.
func Make(name string, fields Fields) *dynamicpb.Message {
	m := New(name)
	for k, v := range fields {
		Set(m, k, v)
	}
	return m
}

func fieldOf(m protoreflect.Message, name string) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic(fmt.Sprintf("connect: %s has no field %q", m.Descriptor().FullName(), name))
	}
	return fd
}

// Set assigns v to the named field. Slices append to repeated fields; nil
// values are skipped.
func Set(m proto.Message, name string, v any) {
	r := m.ProtoReflect()
	fd := fieldOf(r, name)

	switch x := v.(type) {
	case nil:
	case string:
		r.Set(fd, protoreflect.ValueOfString(x))
	case bool:
		r.Set(fd, protoreflect.ValueOfBool(x))
	case int:
		r.Set(fd, intValue(fd, int64(x)))
	case int32:
		r.Set(fd, intValue(fd, int64(x)))
	case int64:
		r.Set(fd, intValue(fd, x))
	case []string:
		list := r.Mutable(fd).List()
		for _, s := range x {
			list.Append(protoreflect.ValueOfString(s))
		}
	case []*dynamicpb.Message:
		list := r.Mutable(fd).List()
		for _, e := range x {
			list.Append(protoreflect.ValueOfMessage(e))
		}
	case proto.Message:
		if fd.IsList() {
			r.Mutable(fd).List().Append(protoreflect.ValueOfMessage(x.ProtoReflect()))
			return
		}
		r.Set(fd, protoreflect.ValueOfMessage(x.ProtoReflect()))
	default:
		panic(fmt.Sprintf("connect: cannot set %s from %T", fd.FullName(), v))
	}
}

func intValue(fd protoreflect.FieldDescriptor, n int64) protoreflect.Value {
	if fd.Kind() == protoreflect.Int32Kind {
		return protoreflect.ValueOfInt32(int32(n))
	}
	return protoreflect.ValueOfInt64(n)
}

func String(m proto.Message, name string) string {
	r := m.ProtoReflect()
	return r.Get(fieldOf(r, name)).String()
}

func Bool(m proto.Message, name string) bool {
	r := m.ProtoReflect()
	return r.Get(fieldOf(r, name)).Bool()
}

// Int reads an int32 or int64 field.
func Int(m proto.Message, name string) int64 {
	r := m.ProtoReflect()
	return r.Get(fieldOf(r, name)).Int()
}

func Strings(m proto.Message, name string) []string {
	r := m.ProtoReflect()
	list := r.Get(fieldOf(r, name)).List()
	out := make([]string, list.Len())
	for i := range out {
		out[i] = list.Get(i).String()
	}
	return out
}

// Has reports whether a field is set; for repeated fields, non-empty.
func Has(m proto.Message, name string) bool {
	r := m.ProtoReflect()
	return r.Has(fieldOf(r, name))
}

// Message reads a singular message field. An unset field reads as an empty
// message.
func Message(m proto.Message, name string) proto.Message {
	r := m.ProtoReflect()
	return r.Get(fieldOf(r, name)).Message().Interface()
}

func Messages(m proto.Message, name string) []proto.Message {
	r := m.ProtoReflect()
	list := r.Get(fieldOf(r, name)).List()
	out := make([]proto.Message, list.Len())
	for i := range out {
		out[i] = list.Get(i).Message().Interface()
	}
	return out
}
