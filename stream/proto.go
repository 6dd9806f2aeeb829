package stream

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// the wire schema of the subscribe service, equivalent to:
//
//	syntax = "proto3";
//	package ddbstream;
//	service DdbStream {
//	  rpc Subscribe(SubscribeRequest) returns (stream SubscribeResponse);
//	}
//	message SubscribeRequest {}
//	message SubscribeResponse {
//	  string type = 1;
//	  string data = 2;
//	}
var protoFile = func() protoreflect.FileDescriptor {
	stringField := func(name string, number int32) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			JsonName: proto.String(name),
			Number:   proto.Int32(number),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
		}
	}
	file, err := protodesc.NewFile(&descriptorpb.FileDescriptorProto{
		Name:    proto.String("ddbstream.proto"),
		Package: proto.String("ddbstream"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("SubscribeRequest")},
			{
				Name: proto.String("SubscribeResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					stringField("type", 1),
					stringField("data", 2),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("DdbStream"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:            proto.String("Subscribe"),
				InputType:       proto.String(".ddbstream.SubscribeRequest"),
				OutputType:      proto.String(".ddbstream.SubscribeResponse"),
				ServerStreaming: proto.Bool(true),
			}},
		}},
	}, new(protoregistry.Files))
	if err != nil {
		panic(err)
	}
	return file
}()

var (
	subscribeRequestDesc  = protoFile.Messages().ByName("SubscribeRequest")
	subscribeResponseDesc = protoFile.Messages().ByName("SubscribeResponse")
	responseTypeField     = subscribeResponseDesc.Fields().ByName("type")
	responseDataField     = subscribeResponseDesc.Fields().ByName("data")
)

func newSubscribeRequest() *dynamicpb.Message {
	return dynamicpb.NewMessage(subscribeRequestDesc)
}

func newSubscribeResponse() *dynamicpb.Message {
	return dynamicpb.NewMessage(subscribeResponseDesc)
}

func (m Message) toProto() *dynamicpb.Message {
	resp := newSubscribeResponse()
	resp.Set(responseTypeField, protoreflect.ValueOfString(m.Type))
	resp.Set(responseDataField, protoreflect.ValueOfString(m.Data))
	return resp
}

func messageFromProto(resp *dynamicpb.Message) Message {
	return Message{
		Type: resp.Get(responseTypeField).String(),
		Data: resp.Get(responseDataField).String(),
	}
}
