package grpc_control

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct converts a JSON-tagged model into a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// toList converts a JSON-tagged slice into a ListValue. A nil slice
// becomes an empty list.
func toList(v interface{}) (*structpb.ListValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return &structpb.ListValue{}, nil
	}
	out := &structpb.ListValue{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromMessage decodes a Struct or ListValue into a JSON-tagged model.
func fromMessage(msg proto.Message, v interface{}) error {
	data, err := protojson.Marshal(msg)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return nil
}
