package portal

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ErrSerialization wraps any payload encode/decode failure.
var ErrSerialization = errors.New("payload serialization failed")

// Codec is the explicit serialization boundary between application values
// and the byte-oriented transport core. The core never inspects payloads;
// the caller picks the codec both sides agree on.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

// JSONCodec is the default cross-language encoding. Any peer that can parse
// JSON can interoperate with it.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}

// ProtoCodec encodes protobuf messages in their binary wire form, for peers
// that share a schema and want a denser encoding than JSON.
type ProtoCodec struct{}

func (ProtoCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a proto.Message", ErrSerialization, v)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

func (ProtoCodec) Decode(data []byte, out any) error {
	msg, ok := out.(proto.Message)
	if !ok {
		return fmt.Errorf("%w: %T is not a proto.Message", ErrSerialization, out)
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}
