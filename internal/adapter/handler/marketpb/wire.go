package marketpb

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

func infoOf(v any) (*messageInfo, reflect.Value, error) {
	rv := reflect.ValueOf(v)
	info, ok := messages[rv.Type()]
	if !ok || rv.IsNil() {
		return nil, reflect.Value{}, fmt.Errorf("marketpb: unsupported message %T", v)
	}
	return info, rv.Elem(), nil
}

// newMessage returns an empty wire message of v's type.
func newMessage(v any) (*dynamicpb.Message, error) {
	info, _, err := infoOf(v)
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessage(info.desc), nil
}

// toMessage copies a message struct into its wire form.
func toMessage(v any) (*dynamicpb.Message, error) {
	info, rv, err := infoOf(v)
	if err != nil {
		return nil, err
	}

	msg := dynamicpb.NewMessage(info.desc)
	for _, f := range info.fields {
		fv := rv.Field(f.index)
		switch f.desc.Kind() {
		case protoreflect.StringKind:
			if s := fv.String(); s != "" {
				msg.Set(f.desc, protoreflect.ValueOfString(s))
			}
		case protoreflect.BoolKind:
			if fv.Bool() {
				msg.Set(f.desc, protoreflect.ValueOfBool(true))
			}
		}
	}
	return msg, nil
}

// fromMessage copies a wire message into v, which must be a pointer to the
// struct of the same message type.
func fromMessage(m protoreflect.ProtoMessage, v any) error {
	info, rv, err := infoOf(v)
	if err != nil {
		return err
	}
	pm := m.ProtoReflect()
	if got, want := pm.Descriptor().FullName(), info.desc.FullName(); got != want {
		return fmt.Errorf("marketpb: got %s, want %s", got, want)
	}

	for _, f := range info.fields {
		val := pm.Get(f.desc)
		switch f.desc.Kind() {
		case protoreflect.StringKind:
			rv.Field(f.index).SetString(val.String())
		case protoreflect.BoolKind:
			rv.Field(f.index).SetBool(val.Bool())
		}
	}
	return nil
}
