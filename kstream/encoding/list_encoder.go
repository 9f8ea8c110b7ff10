package encoding

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/tryfix/errors"
)

// ListEncoder encodes a []interface{} element by element with Inner. Each
// element is written as a 4 byte big endian length followed by its bytes.
type ListEncoder struct {
	Inner Encoder
}

func NewListEncoder(inner Builder) Builder {
	return func() Encoder {
		return ListEncoder{Inner: inner()}
	}
}

func (l ListEncoder) Encode(v interface{}) ([]byte, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, errors.Errorf(`invalid type [%v] expected []interface{}`, reflect.TypeOf(v))
	}

	out := make([]byte, 0, 4*len(list))
	for i, item := range list {
		byt, err := l.Inner.Encode(item)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot encode element %d`, i))
		}

		out = binary.BigEndian.AppendUint32(out, uint32(len(byt)))
		out = append(out, byt...)
	}

	return out, nil
}

func (l ListEncoder) Decode(data []byte) (interface{}, error) {
	list := make([]interface{}, 0)
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, errors.New(`truncated list element header`)
		}

		n := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < n {
			return nil, errors.New(`truncated list element`)
		}

		item, err := l.Inner.Decode(data[:n])
		if err != nil {
			return nil, errors.WithPrevious(err, `cannot decode list element`)
		}

		list = append(list, item)
		data = data[n:]
	}

	return list, nil
}
