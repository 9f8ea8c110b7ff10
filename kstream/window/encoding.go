package window

import (
	"encoding/binary"
	"reflect"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/encoding"
)

func putTime(b []byte, t time.Time) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(t.UnixNano()))
}

func readTime(b []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(b))).UTC()
}

// WindowKeyEncoder writes a WindowKey as a 2 byte key length, the encoded
// group key and the start as 8 byte big endian unix nanos. Instances of one
// group key therefore sort by start time.
type WindowKeyEncoder struct {
	Key encoding.Encoder
}

func NewWindowKeyEncoder(key encoding.Builder) encoding.Builder {
	return func() encoding.Encoder {
		return WindowKeyEncoder{Key: key()}
	}
}

func (e WindowKeyEncoder) Encode(v interface{}) ([]byte, error) {
	wk, ok := v.(WindowKey)
	if !ok {
		return nil, errors.Errorf(`invalid type [%v] expected window.WindowKey`, reflect.TypeOf(v))
	}

	k, err := e.Key.Encode(wk.Key)
	if err != nil {
		return nil, err
	}

	if len(k) > 1<<16-1 {
		return nil, errors.New(`window key too long`)
	}

	out := make([]byte, 0, 2+len(k)+8)
	out = binary.BigEndian.AppendUint16(out, uint16(len(k)))
	out = append(out, k...)
	return putTime(out, wk.Start), nil
}

func (e WindowKeyEncoder) Decode(data []byte) (interface{}, error) {
	if len(data) < 10 {
		return nil, errors.New(`invalid window key length`)
	}

	n := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) != 2+n+8 {
		return nil, errors.New(`invalid window key length`)
	}

	k, err := e.Key.Decode(data[2 : 2+n])
	if err != nil {
		return nil, err
	}

	return WindowKey{Key: k, Start: readTime(data[2+n:])}, nil
}

// BufferEncoder writes the start time followed by the events encoded with
// Events.
type BufferEncoder struct {
	Events encoding.Encoder
}

func NewBufferEncoder(events encoding.Builder) encoding.Builder {
	return func() encoding.Encoder {
		return BufferEncoder{Events: events()}
	}
}

func (e BufferEncoder) Encode(v interface{}) ([]byte, error) {
	buf, ok := v.(Buffer)
	if !ok {
		return nil, errors.Errorf(`invalid type [%v] expected window.Buffer`, reflect.TypeOf(v))
	}

	events, err := encoding.ListEncoder{Inner: e.Events}.Encode(buf.Events)
	if err != nil {
		return nil, err
	}

	return append(putTime(make([]byte, 0, 8+len(events)), buf.Start), events...), nil
}

func (e BufferEncoder) Decode(data []byte) (interface{}, error) {
	if len(data) < 8 {
		return nil, errors.New(`invalid window buffer length`)
	}

	events, err := encoding.ListEncoder{Inner: e.Events}.Decode(data[8:])
	if err != nil {
		return nil, err
	}

	return Buffer{Start: readTime(data[:8]), Events: events.([]interface{})}, nil
}

// SessionEncoder writes start and last event time followed by the events.
type SessionEncoder struct {
	Events encoding.Encoder
}

func NewSessionEncoder(events encoding.Builder) encoding.Builder {
	return func() encoding.Encoder {
		return SessionEncoder{Events: events()}
	}
}

func (e SessionEncoder) Encode(v interface{}) ([]byte, error) {
	s, ok := v.(Session)
	if !ok {
		return nil, errors.Errorf(`invalid type [%v] expected window.Session`, reflect.TypeOf(v))
	}

	events, err := encoding.ListEncoder{Inner: e.Events}.Encode(s.Events)
	if err != nil {
		return nil, err
	}

	out := putTime(putTime(make([]byte, 0, 16+len(events)), s.Start), s.Last)
	return append(out, events...), nil
}

func (e SessionEncoder) Decode(data []byte) (interface{}, error) {
	if len(data) < 16 {
		return nil, errors.New(`invalid session length`)
	}

	events, err := encoding.ListEncoder{Inner: e.Events}.Decode(data[16:])
	if err != nil {
		return nil, err
	}

	return Session{Start: readTime(data[:8]), Last: readTime(data[8:16]), Events: events.([]interface{})}, nil
}
