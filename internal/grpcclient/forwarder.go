package grpcclient

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Descriptor en tiempo de ejecución de forwarder.proto:
//
//	service Forwarder { rpc SendData(DataRequest) returns (DataResponse); }
//	message DataRequest  { string device_id = 1; string payload = 2; }
//	message DataResponse { bool success = 1; }
const SendDataMethod = "/forwarder.Forwarder/SendData"

var (
	DataRequest  protoreflect.MessageDescriptor
	DataResponse protoreflect.MessageDescriptor
)

func init() {
	fd, err := protodesc.NewFile(forwarderFile(), new(protoregistry.Files))
	if err != nil {
		panic("grpcclient: build forwarder descriptor: " + err.Error())
	}
	DataRequest = fd.Messages().ByName("DataRequest")
	DataResponse = fd.Messages().ByName("DataResponse")
}

func scalar(name, jsonName string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName),
		Number:   proto.Int32(num),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func forwarderFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("forwarder.proto"),
		Package: proto.String("forwarder"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("DataRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("device_id", "deviceId", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("payload", "payload", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
			{
				Name: proto.String("DataResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("success", "success", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Forwarder"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:       proto.String("SendData"),
				InputType:  proto.String(".forwarder.DataRequest"),
				OutputType: proto.String(".forwarder.DataResponse"),
			}},
		}},
	}
}

// NewDataRequest arma un DataRequest.
func NewDataRequest(deviceID, payload string) *dynamicpb.Message {
	m := dynamicpb.NewMessage(DataRequest)
	m.Set(DataRequest.Fields().ByName("device_id"), protoreflect.ValueOfString(deviceID))
	m.Set(DataRequest.Fields().ByName("payload"), protoreflect.ValueOfString(payload))
	return m
}

func NewDataResponse(success bool) *dynamicpb.Message {
	m := dynamicpb.NewMessage(DataResponse)
	m.Set(DataResponse.Fields().ByName("success"), protoreflect.ValueOfBool(success))
	return m
}

func stringField(m *dynamicpb.Message, name protoreflect.Name) string {
	return m.Get(m.Descriptor().Fields().ByName(name)).String()
}

func boolField(m *dynamicpb.Message, name protoreflect.Name) bool {
	return m.Get(m.Descriptor().Fields().ByName(name)).Bool()
}
