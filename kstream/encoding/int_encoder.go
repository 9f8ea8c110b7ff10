package encoding

import (
	"reflect"
	"strconv"

	"github.com/tryfix/errors"
)

type IntEncoder struct{}

func (IntEncoder) Encode(v interface{}) ([]byte, error) {
	i, ok := v.(int)
	if !ok {
		return nil, errors.Errorf(`invalid type [%v] expected int`, reflect.TypeOf(v))
	}

	return []byte(strconv.Itoa(i)), nil
}

func (IntEncoder) Decode(data []byte) (interface{}, error) {
	i, err := strconv.Atoi(string(data))
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot decode data`)
	}

	return i, nil
}

type Int64Encoder struct{}

func (Int64Encoder) Encode(v interface{}) ([]byte, error) {
	i, ok := v.(int64)
	if !ok {
		return nil, errors.Errorf(`invalid type [%v] expected int64`, reflect.TypeOf(v))
	}

	return []byte(strconv.FormatInt(i, 10)), nil
}

func (Int64Encoder) Decode(data []byte) (interface{}, error) {
	i, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot decode data`)
	}

	return i, nil
}

type Float64Encoder struct{}

func (Float64Encoder) Encode(v interface{}) ([]byte, error) {
	f, ok := v.(float64)
	if !ok {
		return nil, errors.Errorf(`invalid type [%v] expected float64`, reflect.TypeOf(v))
	}

	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func (Float64Encoder) Decode(data []byte) (interface{}, error) {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot decode data`)
	}

	return f, nil
}
