package indexservice

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype of the index service. Gob
// keeps NaN pixels intact on the wire.
const CodecName = "gob"

type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(gobCodec{})
}
