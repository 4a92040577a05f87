// Package marketpb defines the marketplace.v1.Marketplace gRPC service described
// by marketplace.proto. Messages travel in the standard protobuf encoding: the
// file descriptor is assembled at init from the message structs' protobuf tags,
// registered with protoregistry.GlobalFiles, and each call is carried as a
// dynamicpb message, so any gRPC client built from the .proto can talk to it.
package marketpb

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	protoPackage = "marketplace.v1"
	protoFile    = "marketplace/v1/marketplace.proto"
	goPackage    = "github.com/rl1809/nft-marketplace/internal/adapter/handler/marketpb"
)

// File is the descriptor of marketplace.proto.
var File protoreflect.FileDescriptor

var messageTypes = []any{
	(*Reply)(nil),
	(*ListItemRequest)(nil),
	(*CancelListingRequest)(nil),
	(*UpdateListingRequest)(nil),
	(*BuyItemRequest)(nil),
	(*WithdrawProceedsRequest)(nil),
	(*GetListingRequest)(nil),
	(*GetListingResponse)(nil),
	(*GetProceedsRequest)(nil),
	(*GetProceedsResponse)(nil),
}

var serviceMethods = []struct {
	name, input, output string
}{
	{"ListItem", "ListItemRequest", "Reply"},
	{"CancelListing", "CancelListingRequest", "Reply"},
	{"UpdateListing", "UpdateListingRequest", "Reply"},
	{"BuyItem", "BuyItemRequest", "Reply"},
	{"WithdrawProceeds", "WithdrawProceedsRequest", "Reply"},
	{"GetListing", "GetListingRequest", "GetListingResponse"},
	{"GetProceeds", "GetProceedsRequest", "GetProceedsResponse"},
}

type tagField struct {
	index  int
	name   string
	number int32
	kind   descriptorpb.FieldDescriptorProto_Type
}

type messageInfo struct {
	desc   protoreflect.MessageDescriptor
	fields []wireField
}

type wireField struct {
	index int
	desc  protoreflect.FieldDescriptor
}

var messages = make(map[reflect.Type]*messageInfo)

func init() {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(protoFile),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{GoPackage: proto.String(goPackage)},
	}

	tagged := make(map[reflect.Type][]tagField, len(messageTypes))
	for _, m := range messageTypes {
		t := reflect.TypeOf(m).Elem()
		fields := tagFields(t)
		tagged[t] = fields

		msg := &descriptorpb.DescriptorProto{Name: proto.String(t.Name())}
		for _, f := range fields {
			msg.Field = append(msg.Field, &descriptorpb.FieldDescriptorProto{
				Name:   proto.String(f.name),
				Number: proto.Int32(f.number),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   f.kind.Enum(),
			})
		}
		fdp.MessageType = append(fdp.MessageType, msg)
	}

	svc := &descriptorpb.ServiceDescriptorProto{Name: proto.String("Marketplace")}
	for _, m := range serviceMethods {
		svc.Method = append(svc.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.name),
			InputType:  proto.String("." + protoPackage + "." + m.input),
			OutputType: proto.String("." + protoPackage + "." + m.output),
		})
	}
	fdp.Service = []*descriptorpb.ServiceDescriptorProto{svc}

	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		panic(fmt.Sprintf("marketpb: build %s: %v", protoFile, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("marketpb: register %s: %v", protoFile, err))
	}
	File = fd

	for t, fields := range tagged {
		md := fd.Messages().ByName(protoreflect.Name(t.Name()))
		info := &messageInfo{desc: md}
		for _, f := range fields {
			info.fields = append(info.fields, wireField{index: f.index, desc: md.Fields().ByNumber(protoreflect.FieldNumber(f.number))})
		}
		messages[reflect.PointerTo(t)] = info
	}
}

// tagFields reads `protobuf:"bytes,1,opt,name=collection,proto3"` struct tags.
func tagFields(t reflect.Type) []tagField {
	var fields []tagField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("protobuf")
		if !ok {
			continue
		}
		parts := strings.Split(tag, ",")
		number, err := strconv.Atoi(parts[1])
		if err != nil {
			panic(fmt.Sprintf("marketpb: %s.%s: bad field number %q", t.Name(), sf.Name, parts[1]))
		}

		f := tagField{index: i, number: int32(number)}
		for _, p := range parts[2:] {
			if name, ok := strings.CutPrefix(p, "name="); ok {
				f.name = name
			}
		}
		switch sf.Type.Kind() {
		case reflect.String:
			f.kind = descriptorpb.FieldDescriptorProto_TYPE_STRING
		case reflect.Bool:
			f.kind = descriptorpb.FieldDescriptorProto_TYPE_BOOL
		default:
			panic(fmt.Sprintf("marketpb: %s.%s: unsupported kind %s", t.Name(), sf.Name, sf.Type.Kind()))
		}
		fields = append(fields, f)
	}
	return fields
}
