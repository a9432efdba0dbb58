package prefstore

import (
	"encoding/json"
	"fmt"
)

// Codec converts a binding's values to and from stored bytes.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec stores strings as a JSON string and every other type wrapped
// as {"state": value}, so scalars and nulls always decode from an object.
type JSONCodec[T any] struct{}

type stateValue[T any] struct {
	State T `json:"state"`
}

func isString[T any]() bool {
	var zero T
	_, ok := any(zero).(string)
	return ok
}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	if isString[T]() {
		return json.Marshal(v)
	}
	return json.Marshal(stateValue[T]{State: v})
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	if isString[T]() {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return v, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return v, nil
	}
	var sv stateValue[T]
	if err := json.Unmarshal(data, &sv); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return sv.State, nil
}

// RawCodec stores byte slices verbatim.
type RawCodec struct{}

func (RawCodec) Encode(v []byte) ([]byte, error) { return clone(v), nil }

func (RawCodec) Decode(data []byte) ([]byte, error) { return clone(data), nil }

// StringCodec stores text verbatim.
type StringCodec struct{}

func (StringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }

func (StringCodec) Decode(data []byte) (string, error) { return string(data), nil }
