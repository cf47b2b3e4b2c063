package rec

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype used by the recording service.
const CodecName = "slwire"

type wireMarshaler interface {
	MarshalWire() ([]byte, error)
}

type wireUnmarshaler interface {
	UnmarshalWire([]byte) error
}

// wireCodec carries the hand-encoded recording messages over gRPC.
type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMarshaler)
	if !ok {
		return nil, fmt.Errorf("%s codec: cannot marshal %T", CodecName, v)
	}
	return m.MarshalWire()
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireUnmarshaler)
	if !ok {
		return fmt.Errorf("%s codec: cannot unmarshal into %T", CodecName, v)
	}
	return m.UnmarshalWire(data)
}

func (wireCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(wireCodec{})
}
