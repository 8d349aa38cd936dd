package managedcache

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype this driver registers and selects
// via grpc.CallContentSubtype. No .proto ships in this repository for a
// managed-cache service, so request/response framing goes through gRPC's
// pluggable encoding.Codec mechanism instead of protoc-generated stubs.
const codecName = "cachebench-gob"

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// gobCodec marshals plain Go structs (Request/Response, below) with
// encoding/gob rather than protobuf wire format.
type gobCodec struct{}

func (gobCodec) Name() string { return codecName }

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("managedcache: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("managedcache: gob decode: %w", err)
	}
	return nil
}

// Request is the unified request envelope for every managed-cache
// operation; Op selects which fields are meaningful.
type Request struct {
	Op     string
	Key    []byte
	Field  []byte
	Fields [][]byte
	Value  []byte
	TTL    int64
	Delta  int64

	Topic   []byte
	Message []byte
}

// Response is the unified reply envelope. Status drives hit/miss/error
// classification in Exchange.
type Response struct {
	Status string // "HIT", "MISS", "STORED", "DELETED", "OK", "ERROR"
	Value  []byte
	Values [][]byte
	Error  string
}
