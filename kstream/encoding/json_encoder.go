package encoding

import (
	"encoding/json"

	"github.com/tryfix/errors"
)

// JsonEncoder marshals any value to JSON and decodes back into T. A pointer
// to T is accepted on Encode as well.
type JsonEncoder[T any] struct{}

func NewJsonEncoder[T any]() Builder {
	return func() Encoder {
		return JsonEncoder[T]{}
	}
}

func (JsonEncoder[T]) Encode(v interface{}) ([]byte, error) {
	byt, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithPrevious(err, `json encode failed`)
	}

	return byt, nil
}

func (JsonEncoder[T]) Decode(data []byte) (interface{}, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.WithPrevious(err, `json decode failed`)
	}

	return v, nil
}
