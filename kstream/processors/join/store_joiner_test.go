package join

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/kstream/encoding"
	"github.com/tryfix/estream/kstream/store"
	"github.com/tryfix/estream/kstream/topology"
)

type rightRecord struct {
	PrimaryKey int `json:"primary_key"`
	ForeignKey int `json:"foreign_key"`
}

type leftRecord struct {
	PrimaryKey int `json:"primary_key"`
	ForeignKey int `json:"foreign_key"`
}

type joinedRecord struct {
	left  leftRecord
	right *rightRecord
}

func (rightRecord) Decode(data []byte) (interface{}, error) {
	v := rightRecord{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (rightRecord) Encode(data interface{}) ([]byte, error) {
	return json.Marshal(data)
}

func makeJoiner(t *testing.T, typ Type) (topology.Node, store.Store, *topology.MockNode) {
	t.Helper()

	rightStore := store.NewMockStore(`right`, encoding.IntEncoder{}, rightRecord{}, backend.NewMockBackend(`right`, 0))
	reg := store.NewRegistry(&store.RegistryConfig{})
	if err := reg.Register(rightStore); err != nil {
		t.Fatal(err)
	}

	builder := &StoreJoiner{
		Store:    `right`,
		Registry: reg,
		KeyMapper: func(key interface{}, value interface{}) (mappedKey interface{}, err error) {
			v, _ := value.(leftRecord)
			return v.ForeignKey, nil
		},
		ValueMapper: func(left interface{}, right interface{}) (joined interface{}, err error) {
			l, _ := left.(leftRecord)
			j := joinedRecord{left: l}
			if r, ok := right.(rightRecord); ok {
				j.right = &r
			}
			return j, nil
		},
		Typ: typ,
	}

	sink := &topology.MockNode{}
	builder.AddChildBuilder(sink)

	node, err := builder.Build()
	if err != nil {
		t.Fatal(err)
	}

	return node, rightStore, sink
}

func TestStoreJoiner_Inner(t *testing.T) {
	node, rightStore, sink := makeJoiner(t, InnerJoin)

	left := leftRecord{PrimaryKey: 1000, ForeignKey: 2000}
	right := rightRecord{PrimaryKey: 2000, ForeignKey: 3000}

	if err := rightStore.Set(context.Background(), 2000, right, 0); err != nil {
		t.Fatal(err)
	}

	_, v, next, err := node.Run(context.Background(), nil, left)
	if err != nil {
		t.Fatal(err)
	}

	want := joinedRecord{left: left, right: &right}
	if !next || !reflect.DeepEqual(v, want) {
		t.Errorf(`expected %v, got %v (next %v)`, want, v, next)
	}

	if len(sink.Records()) != 1 {
		t.Errorf(`expected one forwarded record, got %d`, len(sink.Records()))
	}
}

func TestStoreJoiner_Inner_Miss_Is_Silent(t *testing.T) {
	node, _, sink := makeJoiner(t, InnerJoin)

	_, _, next, err := node.Run(context.Background(), nil, leftRecord{PrimaryKey: 1, ForeignKey: 9999})
	if err != nil {
		t.Errorf(`inner join miss must not fail, got %v`, err)
	}

	if next {
		t.Error(`inner join miss must not continue`)
	}

	if len(sink.Records()) != 0 {
		t.Errorf(`expected no forwarded records, got %d`, len(sink.Records()))
	}
}

func TestStoreJoiner_Left_Miss(t *testing.T) {
	node, _, sink := makeJoiner(t, LeftJoin)

	left := leftRecord{PrimaryKey: 1, ForeignKey: 9999}
	_, v, next, err := node.Run(context.Background(), nil, left)
	if err != nil {
		t.Fatal(err)
	}

	want := joinedRecord{left: left}
	if !next || !reflect.DeepEqual(v, want) {
		t.Errorf(`expected %v, got %v`, want, v)
	}

	if len(sink.Records()) != 1 {
		t.Errorf(`expected one forwarded record, got %d`, len(sink.Records()))
	}
}

func TestStoreJoiner_Errors(t *testing.T) {
	boom := errors.New(`boom`)
	rightStore := store.NewMockStore(`right`, encoding.IntEncoder{}, rightRecord{}, backend.NewMockBackend(`right`, 0))
	reg := store.NewRegistry(&store.RegistryConfig{})
	if err := reg.Register(rightStore); err != nil {
		t.Fatal(err)
	}

	builder := &StoreJoiner{
		Store:    `right`,
		Registry: reg,
		KeyMapper: func(key, value interface{}) (interface{}, error) {
			return nil, boom
		},
		ValueMapper: func(left, right interface{}) (interface{}, error) {
			return left, nil
		},
	}

	node, err := builder.Build()
	if err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := node.Run(context.Background(), nil, leftRecord{}); !errors.Is(err, boom) {
		t.Errorf(`expected key mapper error, got %v`, err)
	}

	missing := &StoreJoiner{Store: `unknown`, Registry: reg}
	if _, err := missing.Build(); !errors.Is(err, store.ErrStoreNotFound) {
		t.Errorf(`expected ErrStoreNotFound, got %v`, err)
	}
}
