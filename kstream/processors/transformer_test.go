package processors

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/tryfix/estream/kstream/topology"
)

func build(t *testing.T, builder topology.NodeBuilder) (topology.Node, *topology.MockNode) {
	t.Helper()
	sink := &topology.MockNode{}
	builder.AddChildBuilder(sink)

	node, err := builder.Build()
	if err != nil {
		t.Fatal(err)
	}

	return node, sink
}

func TestTransformer_Run(t *testing.T) {
	node, sink := build(t, &Transformer{
		TransFunc: func(ctx context.Context, key, value interface{}) (interface{}, interface{}, error) {
			return strings.ToUpper(key.(string)), value.(int) * 2, nil
		},
	})

	k, v, next, err := node.Run(context.Background(), `a`, 2)
	if err != nil {
		t.Fatal(err)
	}

	if k != `A` || v != 4 || !next {
		t.Errorf(`unexpected output %v %v %v`, k, v, next)
	}

	want := []topology.MockRecord{{Key: `A`, Value: 4}}
	if !reflect.DeepEqual(sink.Records(), want) {
		t.Errorf(`got %v, want %v`, sink.Records(), want)
	}
}

func TestTransformer_Nil_Value(t *testing.T) {
	node, sink := build(t, &Transformer{
		TransFunc: func(ctx context.Context, key, value interface{}) (interface{}, interface{}, error) {
			return key, value, nil
		},
	})

	_, _, _, err := node.Run(context.Background(), `a`, nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf(`expected ErrInvalidInput, got %v`, err)
	}

	if len(sink.Records()) != 0 {
		t.Error(`nil value must not be forwarded`)
	}
}

func TestTransformer_Error_Propagates(t *testing.T) {
	boom := errors.New(`boom`)
	node, _ := build(t, &Transformer{
		TransFunc: func(ctx context.Context, key, value interface{}) (interface{}, interface{}, error) {
			return nil, nil, boom
		},
	})

	if _, _, _, err := node.Run(context.Background(), `a`, 1); !errors.Is(err, boom) {
		t.Errorf(`expected %v, got %v`, boom, err)
	}
}

func TestTransformer_Child_Error_Propagates(t *testing.T) {
	boom := errors.New(`child`)
	builder := &Transformer{
		TransFunc: func(ctx context.Context, key, value interface{}) (interface{}, interface{}, error) {
			return key, value, nil
		},
	}
	builder.AddChildBuilder(&topology.MockNode{Err: boom})

	node, err := builder.Build()
	if err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := node.Run(context.Background(), `a`, 1); err != boom {
		t.Errorf(`expected child error, got %v`, err)
	}
}

func TestValueTransformer_Run(t *testing.T) {
	node, sink := build(t, &ValueTransformer{
		ValueTransformFunc: func(ctx context.Context, key, value interface{}) (interface{}, error) {
			return value.(int) + 1, nil
		},
	})

	if _, _, _, err := node.Run(context.Background(), `k`, 1); err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := node.Run(context.Background(), `k`, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf(`expected ErrInvalidInput, got %v`, err)
	}

	want := []topology.MockRecord{{Key: `k`, Value: 2}}
	if !reflect.DeepEqual(sink.Records(), want) {
		t.Errorf(`got %v, want %v`, sink.Records(), want)
	}
}

func TestKeySelector_Run(t *testing.T) {
	node, sink := build(t, &KeySelector{
		SelectKeyFunc: func(ctx context.Context, key, value interface{}) (interface{}, error) {
			return value.(string)[:1], nil
		},
	})

	k, v, _, err := node.Run(context.Background(), nil, `abc`)
	if err != nil {
		t.Fatal(err)
	}

	if k != `a` || v != `abc` {
		t.Errorf(`unexpected output %v %v`, k, v)
	}

	if got := sink.Records(); len(got) != 1 || got[0].Key != `a` {
		t.Errorf(`unexpected forwarded records %v`, got)
	}
}

func TestProcessor_Peek(t *testing.T) {
	var seen []interface{}
	node, sink := build(t, &Processor{
		ProcessFunc: func(ctx context.Context, key, value interface{}) error {
			seen = append(seen, value)
			return nil
		},
	})

	if _, _, _, err := node.Run(context.Background(), `k`, 1); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 1 || len(sink.Records()) != 1 || sink.Records()[0].Value != 1 {
		t.Errorf(`unexpected peek %v %v`, seen, sink.Records())
	}
}

func TestFlatMap_Run(t *testing.T) {
	node, sink := build(t, &FlatMap{
		FlatMapFunc: func(ctx context.Context, key, value interface{}) ([]KeyValue, error) {
			var out []KeyValue
			for _, w := range strings.Fields(value.(string)) {
				out = append(out, KeyValue{Key: w, Value: 1})
			}
			return out, nil
		},
	})

	if _, _, _, err := node.Run(context.Background(), nil, `a b c`); err != nil {
		t.Fatal(err)
	}

	want := []topology.MockRecord{{Key: `a`, Value: 1}, {Key: `b`, Value: 1}, {Key: `c`, Value: 1}}
	if !reflect.DeepEqual(sink.Records(), want) {
		t.Errorf(`got %v, want %v`, sink.Records(), want)
	}

	_, _, next, err := node.Run(context.Background(), nil, ``)
	if err != nil || next {
		t.Errorf(`empty expansion must forward nothing, got %v %v`, next, err)
	}

	if len(sink.Records()) != 3 {
		t.Errorf(`empty expansion forwarded records`)
	}
}

func TestFlatMap_Child_Error_Stops_Remaining(t *testing.T) {
	boom := errors.New(`boom`)
	child := &topology.MockNode{Err: boom}
	builder := &FlatMap{
		FlatMapFunc: func(ctx context.Context, key, value interface{}) ([]KeyValue, error) {
			return []KeyValue{{Key: 1}, {Key: 2}}, nil
		},
	}
	builder.AddChildBuilder(child)

	node, err := builder.Build()
	if err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := node.Run(context.Background(), nil, nil); err != boom {
		t.Errorf(`expected child error, got %v`, err)
	}

	if len(child.Records()) != 1 {
		t.Errorf(`expected remaining outputs to be skipped, got %d calls`, len(child.Records()))
	}
}
