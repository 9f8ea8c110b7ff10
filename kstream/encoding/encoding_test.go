package encoding

import (
	"reflect"
	"testing"
)

func TestIntEncoder_Decode(t *testing.T) {
	type args struct {
		data []byte
	}
	tests := []struct {
		name    string
		args    args
		want    interface{}
		wantErr bool
	}{
		{name: `should_decode`, args: args{data: []byte(`1`)}, want: 1, wantErr: false},
		{name: `should_return_error`, args: args{data: []byte(`ss`)}, want: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := IntEncoder{}
			got, err := in.Decode(tt.args.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncoders_Encode(t *testing.T) {
	tests := []struct {
		name    string
		encoder Encoder
		in      interface{}
		want    []byte
		wantErr bool
	}{
		{name: `int`, encoder: IntEncoder{}, in: 100, want: []byte(`100`)},
		{name: `int_wrong_type`, encoder: IntEncoder{}, in: `100`, wantErr: true},
		{name: `int_nil`, encoder: IntEncoder{}, in: nil, wantErr: true},
		{name: `int64`, encoder: Int64Encoder{}, in: int64(-7), want: []byte(`-7`)},
		{name: `int64_wrong_type`, encoder: Int64Encoder{}, in: 7, wantErr: true},
		{name: `float64`, encoder: Float64Encoder{}, in: 1.5, want: []byte(`1.5`)},
		{name: `float64_wrong_type`, encoder: Float64Encoder{}, in: float32(1.5), wantErr: true},
		{name: `string`, encoder: StringEncoder{}, in: `abc`, want: []byte(`abc`)},
		{name: `string_wrong_type`, encoder: StringEncoder{}, in: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.encoder.Encode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("Encode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Encode() got = %s, want %s", got, tt.want)
			}
		})
	}
}

type account struct {
	ID      string  `json:"id"`
	Balance float64 `json:"balance"`
}

func TestJsonEncoder_Decode(t *testing.T) {
	enc := NewJsonEncoder[account]()()

	got, err := enc.Decode([]byte(`{"id":"a1","balance":12.5}`))
	if err != nil {
		t.Fatal(err)
	}

	want := account{ID: `a1`, Balance: 12.5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() got = %#v, want %#v", got, want)
	}

	if _, err := enc.Decode([]byte(`{`)); err == nil {
		t.Error(`expected error on malformed json`)
	}
}

func TestListEncoder(t *testing.T) {
	enc := NewListEncoder(func() Encoder { return StringEncoder{} })()

	byt, err := enc.Encode([]interface{}{`a`, ``, `ccc`})
	if err != nil {
		t.Fatal(err)
	}

	got, err := enc.Decode(byt)
	if err != nil {
		t.Fatal(err)
	}

	want := []interface{}{`a`, ``, `ccc`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := enc.Encode([]interface{}{1}); err == nil {
		t.Error(`expected inner encoder error`)
	}

	if _, err := enc.Encode(`not a list`); err == nil {
		t.Error(`expected type error`)
	}

	if _, err := enc.Decode(byt[:len(byt)-1]); err == nil {
		t.Error(`expected error on truncated input`)
	}
}
