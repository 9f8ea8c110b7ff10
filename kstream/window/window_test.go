package window

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	kContext "github.com/tryfix/estream/kstream/context"
	"github.com/tryfix/estream/kstream/encoding"
	"github.com/tryfix/estream/kstream/store"
	"github.com/tryfix/estream/kstream/topology"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func stringEnc() encoding.Encoder { return encoding.StringEncoder{} }
func intEnc() encoding.Encoder    { return encoding.IntEncoder{} }

func newRegistry(t *testing.T) store.Registry {
	t.Helper()
	reg := store.NewRegistry(&store.RegistryConfig{})
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func mustStore(t *testing.T, reg store.Registry, name string, key, val encoding.Builder) store.Store {
	t.Helper()
	s, err := reg.New(name, key, val)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sum(ctx context.Context, key interface{}, events []interface{}) (interface{}, error) {
	total := 0
	for _, e := range events {
		total += e.(int)
	}
	return total, nil
}

func run(t *testing.T, node topology.Node, key string, value int) bool {
	t.Helper()
	_, _, cont, err := node.Run(context.Background(), key, value)
	if err != nil {
		t.Fatal(err)
	}
	return cont
}

// runAt pushes a record stamped with the given event time.
func runAt(t *testing.T, node topology.Node, at time.Time, key string, value int) bool {
	t.Helper()
	ctx := kContext.WithMeta(context.Background(), &kContext.RecordMeta{Source: `test`, Timestamp: at})
	_, _, cont, err := node.Run(ctx, key, value)
	if err != nil {
		t.Fatal(err)
	}
	return cont
}

func assertResult(t *testing.T, r topology.MockRecord, key string, start, end time.Time, value interface{}) {
	t.Helper()
	k, ok := r.Key.(Key)
	if !ok {
		t.Fatalf(`expected window.Key, got %T`, r.Key)
	}

	if k.Key != key || !k.Start.Equal(start) || !k.End.Equal(end) {
		t.Errorf(`unexpected window %s, want %s@[%s, %s)`, k, key, start, end)
	}

	if !reflect.DeepEqual(r.Value, value) {
		t.Errorf(`unexpected result %v, want %v`, r.Value, value)
	}
}

func buildTumbling(t *testing.T, reg store.Registry, clock Clock, result string, opts ...Option) (*TumblingWindow, *topology.MockNode) {
	t.Helper()
	sink := new(topology.MockNode)
	b := &TumblingWindow{
		Id:          1,
		Name:        `tumbling`,
		Size:        5 * time.Second,
		Func:        sum,
		BufferStore: `buffer`,
		ResultStore: result,
		Registry:    reg,
		Options:     append([]Option{WithClock(clock)}, opts...),
	}
	b.AddChildBuilder(sink)

	node, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	return node.(*TumblingWindow), sink
}

func TestTumblingWindow_Punctuate(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `buffer`, stringEnc, NewBufferEncoder(intEnc))
	clock := NewManualClock(t0)
	w, sink := buildTumbling(t, reg, clock, ``)

	run(t, w, `a`, 1)
	clock.Advance(time.Second)
	run(t, w, `a`, 2)
	run(t, w, `b`, 10)

	ctx := context.Background()
	if err := w.Punctuate(ctx, t0.Add(4*time.Second)); err != nil {
		t.Fatal(err)
	}

	if len(sink.Records()) != 0 {
		t.Fatalf(`no window is due yet, got %v`, sink.Records())
	}

	if err := w.Punctuate(ctx, t0.Add(5*time.Second)); err != nil {
		t.Fatal(err)
	}

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf(`expected one closed window, got %v`, records)
	}
	assertResult(t, records[0], `a`, t0, t0.Add(5*time.Second), 3)

	if err := w.Punctuate(ctx, t0.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	records = sink.Records()
	if len(records) != 2 {
		t.Fatalf(`expected two closed windows, got %v`, records)
	}
	assertResult(t, records[1], `b`, t0.Add(time.Second), t0.Add(6*time.Second), 10)

	buffer, _ := reg.Store(`buffer`)
	if v, _ := buffer.Get(ctx, `a`); v != nil {
		t.Errorf(`closed window buffer must be deleted, got %v`, v)
	}
}

func TestTumblingWindow_Inline_Close(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `buffer`, stringEnc, NewBufferEncoder(intEnc))
	clock := NewManualClock(t0)
	w, sink := buildTumbling(t, reg, clock, ``)

	if run(t, w, `a`, 1) {
		t.Error(`an event that closes nothing must not continue`)
	}

	// exactly at the boundary the event belongs to the next window
	clock.Set(t0.Add(5 * time.Second))
	if !run(t, w, `a`, 2) {
		t.Error(`an event that closed a window must continue`)
	}

	if err := w.Punctuate(context.Background(), clock.Now()); err != nil {
		t.Fatal(err)
	}

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf(`window must be emitted once, got %v`, records)
	}
	assertResult(t, records[0], `a`, t0, t0.Add(5*time.Second), 1)

	if err := w.Punctuate(context.Background(), t0.Add(10*time.Second)); err != nil {
		t.Fatal(err)
	}

	records = sink.Records()
	if len(records) != 2 {
		t.Fatalf(`expected the second window, got %v`, records)
	}
	assertResult(t, records[1], `a`, t0.Add(5*time.Second), t0.Add(10*time.Second), 2)
}

func TestTumblingWindow_Late_Event(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `buffer`, stringEnc, NewBufferEncoder(intEnc))
	clock := NewManualClock(t0)
	offset := func(ctx context.Context, key, value interface{}) (time.Time, error) {
		return t0.Add(time.Duration(value.(int)) * time.Second), nil
	}
	w, sink := buildTumbling(t, reg, clock, ``, WithTimestampExtractor(offset))

	run(t, w, `a`, 10)
	run(t, w, `a`, 2)
	run(t, w, `a`, 12)

	if err := w.Punctuate(context.Background(), t0.Add(15*time.Second)); err != nil {
		t.Fatal(err)
	}

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf(`expected one window, got %v`, records)
	}
	assertResult(t, records[0], `a`, t0.Add(10*time.Second), t0.Add(15*time.Second), 22)
}

func TestTumblingWindow_Result_Store(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `buffer`, stringEnc, NewBufferEncoder(intEnc))
	results := mustStore(t, reg, `results`, NewWindowKeyEncoder(stringEnc), intEnc)
	clock := NewManualClock(t0)
	w, sink := buildTumbling(t, reg, clock, `results`)

	ctx := context.Background()
	if err := results.Set(ctx, WindowKey{Key: `a`, Start: t0}, 99, 0); err != nil {
		t.Fatal(err)
	}

	run(t, w, `a`, 1)
	run(t, w, `b`, 2)

	if err := w.Punctuate(ctx, t0.Add(5*time.Second)); err != nil {
		t.Fatal(err)
	}

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf(`an emitted window must not be emitted again, got %v`, records)
	}
	assertResult(t, records[0], `b`, t0, t0.Add(5*time.Second), 2)

	got, err := results.Get(ctx, WindowKey{Key: `b`, Start: t0})
	if err != nil {
		t.Fatal(err)
	}

	if got != 2 {
		t.Errorf(`result must be persisted, got %v`, got)
	}

	buffer, _ := reg.Store(`buffer`)
	if v, _ := buffer.Get(ctx, `a`); v != nil {
		t.Errorf(`skipped window buffer must be dropped, got %v`, v)
	}
}

func TestTumblingWindow_Func_Error(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `buffer`, stringEnc, NewBufferEncoder(intEnc))
	clock := NewManualClock(t0)

	fail := errors.New(`boom`)
	sink := new(topology.MockNode)
	b := &TumblingWindow{
		Name:        `failing`,
		Size:        time.Second,
		Func:        func(context.Context, interface{}, []interface{}) (interface{}, error) { return nil, fail },
		BufferStore: `buffer`,
		Registry:    reg,
		Options:     []Option{WithClock(clock)},
	}
	b.AddChildBuilder(sink)
	node, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	run(t, node, `a`, 1)
	err = node.(*TumblingWindow).Punctuate(context.Background(), t0.Add(time.Second))
	if !errors.Is(err, fail) {
		t.Fatalf(`expected window function error, got %v`, err)
	}

	buffer, _ := reg.Store(`buffer`)
	if v, _ := buffer.Get(context.Background(), `a`); v == nil {
		t.Error(`buffer must be kept when the window function fails`)
	}

	if len(sink.Records()) != 0 {
		t.Errorf(`nothing must be forwarded, got %v`, sink.Records())
	}
}

func TestTumblingWindow_Build(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `buffer`, stringEnc, NewBufferEncoder(intEnc))
	mustStore(t, reg, `plain-results`, stringEnc, intEnc)

	cases := map[string]*TumblingWindow{
		`zero size`:            {Name: `w`, Func: sum, BufferStore: `buffer`, Registry: reg},
		`no function`:          {Name: `w`, Size: time.Second, BufferStore: `buffer`, Registry: reg},
		`no store`:             {Name: `w`, Size: time.Second, Func: sum, Registry: reg},
		`unknown store`:        {Name: `w`, Size: time.Second, Func: sum, BufferStore: `missing`, Registry: reg},
		`unknown result store`: {Name: `w`, Size: time.Second, Func: sum, BufferStore: `buffer`, ResultStore: `missing`, Registry: reg},
		`plain result store`:   {Name: `w`, Size: time.Second, Func: sum, BufferStore: `buffer`, ResultStore: `plain-results`, Registry: reg},
	}

	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := b.Build(); err == nil {
				t.Error(`expected build error`)
			}
		})
	}
}

func TestTumblingWindow_Restart(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `buffer`, stringEnc, NewBufferEncoder(intEnc))
	clock := NewManualClock(t0)

	first, _ := buildTumbling(t, reg, clock, ``)
	run(t, first, `a`, 1)
	run(t, first, `a`, 2)
	if err := first.Stop(); err != nil {
		t.Fatal(err)
	}

	second, sink := buildTumbling(t, reg, clock, ``, WithScanInterval(time.Hour))
	ctx := context.Background()
	if err := second.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer second.Stop()

	if err := second.Punctuate(ctx, t0.Add(5*time.Second)); err != nil {
		t.Fatal(err)
	}

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf(`recovered window must close, got %v`, records)
	}
	assertResult(t, records[0], `a`, t0, t0.Add(5*time.Second), 3)
}

func TestTumblingWindow_Timer_Race(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `buffer`, stringEnc, NewBufferEncoder(intEnc))
	clock := NewManualClock(t0)
	w, sink := buildTumbling(t, reg, clock, ``, WithScanInterval(time.Millisecond))

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	const windows = 50
	for i := 0; i < windows; i++ {
		run(t, w, `a`, 1)
		clock.Advance(5 * time.Second)
		time.Sleep(100 * time.Microsecond)
	}

	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}

	if err := w.Punctuate(ctx, clock.Now()); err != nil {
		t.Fatal(err)
	}

	records := sink.Records()
	if len(records) != windows {
		t.Fatalf(`every window must be emitted exactly once, got %d`, len(records))
	}

	for i, r := range records {
		start := t0.Add(time.Duration(i) * 5 * time.Second)
		assertResult(t, r, `a`, start, start.Add(5*time.Second), 1)
	}
}

func buildSliding(t *testing.T, reg store.Registry, clock Clock, opts ...Option) (*SlidingWindow, *topology.MockNode) {
	t.Helper()
	sink := new(topology.MockNode)
	b := &SlidingWindow{
		Id:          2,
		Name:        `sliding`,
		Size:        10 * time.Second,
		Advance:     5 * time.Second,
		Func:        sum,
		BufferStore: `instances`,
		Registry:    reg,
		Options:     append([]Option{WithClock(clock)}, opts...),
	}
	b.AddChildBuilder(sink)

	node, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	return node.(*SlidingWindow), sink
}

func TestSlidingWindow_Overlap(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `instances`, NewWindowKeyEncoder(stringEnc), NewBufferEncoder(intEnc))
	clock := NewManualClock(t0)
	w, sink := buildSliding(t, reg, clock)

	run(t, w, `a`, 1)
	clock.Set(t0.Add(6 * time.Second))
	run(t, w, `a`, 2)

	ctx := context.Background()
	if err := w.Punctuate(ctx, t0.Add(10*time.Second)); err != nil {
		t.Fatal(err)
	}

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf(`expected the first instance, got %v`, records)
	}
	assertResult(t, records[0], `a`, t0, t0.Add(10*time.Second), 3)

	if err := w.Punctuate(ctx, t0.Add(15*time.Second)); err != nil {
		t.Fatal(err)
	}

	records = sink.Records()
	if len(records) != 2 {
		t.Fatalf(`expected the second instance, got %v`, records)
	}
	assertResult(t, records[1], `a`, t0.Add(5*time.Second), t0.Add(15*time.Second), 2)
}

func TestSlidingWindow_Restart(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `instances`, NewWindowKeyEncoder(stringEnc), NewBufferEncoder(intEnc))
	clock := NewManualClock(t0)

	first, _ := buildSliding(t, reg, clock)
	run(t, first, `a`, 1)
	clock.Set(t0.Add(6 * time.Second))
	run(t, first, `a`, 2)

	second, sink := buildSliding(t, reg, clock)
	ctx := context.Background()
	if err := second.restore(ctx); err != nil {
		t.Fatal(err)
	}

	if err := second.Punctuate(ctx, t0.Add(15*time.Second)); err != nil {
		t.Fatal(err)
	}

	if len(sink.Records()) != 2 {
		t.Fatalf(`both recovered instances must close, got %v`, sink.Records())
	}
}

func TestSlidingWindow_Event_Time(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `instances`, NewWindowKeyEncoder(stringEnc), NewBufferEncoder(intEnc))
	// the wall clock is far ahead of the replayed events
	clock := NewManualClock(t0.Add(time.Hour))
	w, sink := buildSliding(t, reg, clock, WithTimestampExtractor(RecordTimestamp))

	runAt(t, w, t0, `a`, 1)
	runAt(t, w, t0.Add(3*time.Second), `a`, 2)
	runAt(t, w, t0.Add(7*time.Second), `a`, 3)

	if len(sink.Records()) != 0 {
		t.Fatalf(`no instance is due in event time yet, got %v`, sink.Records())
	}

	if !runAt(t, w, t0.Add(25*time.Second), `a`, 4) {
		t.Error(`an event that closed instances must continue`)
	}

	records := sink.Records()
	if len(records) != 2 {
		t.Fatalf(`expected two closed instances, got %v`, records)
	}
	assertResult(t, records[0], `a`, t0, t0.Add(10*time.Second), 6)
	assertResult(t, records[1], `a`, t0.Add(5*time.Second), t0.Add(15*time.Second), 3)

	// behind every open instance of the key
	runAt(t, w, t0.Add(12*time.Second), `a`, 100)

	if err := w.Punctuate(context.Background(), clock.Now()); err != nil {
		t.Fatal(err)
	}

	records = sink.Records()
	if len(records) != 3 {
		t.Fatalf(`expected the last instance, got %v`, records)
	}
	assertResult(t, records[2], `a`, t0.Add(25*time.Second), t0.Add(35*time.Second), 4)
}

func TestSlidingWindow_Build(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `plain`, stringEnc, NewBufferEncoder(intEnc))
	mustStore(t, reg, `instances`, NewWindowKeyEncoder(stringEnc), NewBufferEncoder(intEnc))

	cases := map[string]*SlidingWindow{
		`plain key encoder`:   {Name: `w`, Size: 10 * time.Second, Advance: time.Second, Func: sum, BufferStore: `plain`, Registry: reg},
		`advance above size`:  {Name: `w`, Size: time.Second, Advance: 2 * time.Second, Func: sum, BufferStore: `instances`, Registry: reg},
		`zero advance`:        {Name: `w`, Size: time.Second, Func: sum, BufferStore: `instances`, Registry: reg},
		`missing window func`: {Name: `w`, Size: time.Second, Advance: time.Second, BufferStore: `instances`, Registry: reg},
		`plain result store`:  {Name: `w`, Size: time.Second, Advance: time.Second, Func: sum, BufferStore: `instances`, ResultStore: `plain`, Registry: reg},
	}

	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := b.Build(); err == nil {
				t.Error(`expected build error`)
			}
		})
	}
}

func buildSession(t *testing.T, reg store.Registry, clock Clock, opts ...Option) (*SessionWindow, *topology.MockNode) {
	t.Helper()
	sink := new(topology.MockNode)
	b := &SessionWindow{
		Id:           3,
		Name:         `session`,
		Gap:          3 * time.Second,
		Func:         sum,
		SessionStore: `sessions`,
		Registry:     reg,
		Options:      append([]Option{WithClock(clock)}, opts...),
	}
	b.AddChildBuilder(sink)

	node, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	return node.(*SessionWindow), sink
}

func TestSessionWindow_Merge_And_Split(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `sessions`, stringEnc, NewSessionEncoder(intEnc))
	clock := NewManualClock(t0)
	w, sink := buildSession(t, reg, clock)

	for i, at := range []time.Duration{0, 2 * time.Second, 5 * time.Second} {
		clock.Set(t0.Add(at))
		if run(t, w, `a`, i+1) {
			t.Error(`events within the gap must not close the session`)
		}
	}

	clock.Set(t0.Add(9 * time.Second))
	if !run(t, w, `a`, 10) {
		t.Error(`an event after the gap must close the session`)
	}

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf(`expected one session, got %v`, records)
	}
	assertResult(t, records[0], `a`, t0, t0.Add(5*time.Second+time.Nanosecond), 6)

	ctx := context.Background()
	// a session closes only once more than the gap has passed
	if err := w.Punctuate(ctx, t0.Add(12*time.Second)); err != nil {
		t.Fatal(err)
	}

	if len(sink.Records()) != 1 {
		t.Fatalf(`session must still be open, got %v`, sink.Records())
	}

	if err := w.Punctuate(ctx, t0.Add(12*time.Second+time.Nanosecond)); err != nil {
		t.Fatal(err)
	}

	records = sink.Records()
	if len(records) != 2 {
		t.Fatalf(`expected the second session, got %v`, records)
	}
	assertResult(t, records[1], `a`, t0.Add(9*time.Second), t0.Add(9*time.Second+time.Nanosecond), 10)
}

func TestSessionWindow_Event_Time(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `sessions`, stringEnc, NewSessionEncoder(intEnc))
	clock := NewManualClock(t0.Add(time.Hour))
	w, sink := buildSession(t, reg, clock, WithTimestampExtractor(RecordTimestamp))

	runAt(t, w, t0, `a`, 1)
	runAt(t, w, t0.Add(2*time.Second), `a`, 2)
	// out of order but within the gap of the session start
	runAt(t, w, t0.Add(time.Second), `a`, 3)

	if !runAt(t, w, t0.Add(10*time.Second), `a`, 4) {
		t.Error(`an event after the gap must close the session`)
	}

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf(`expected one session, got %v`, records)
	}
	assertResult(t, records[0], `a`, t0, t0.Add(2*time.Second+time.Nanosecond), 6)

	if err := w.Punctuate(context.Background(), clock.Now()); err != nil {
		t.Fatal(err)
	}

	records = sink.Records()
	if len(records) != 2 {
		t.Fatalf(`expected the second session, got %v`, records)
	}
	assertResult(t, records[1], `a`, t0.Add(10*time.Second), t0.Add(10*time.Second+time.Nanosecond), 4)
}

func TestSessionWindow_Restart(t *testing.T) {
	reg := newRegistry(t)
	mustStore(t, reg, `sessions`, stringEnc, NewSessionEncoder(intEnc))
	clock := NewManualClock(t0)

	first, _ := buildSession(t, reg, clock)
	run(t, first, `a`, 4)

	second, sink := buildSession(t, reg, clock)
	ctx := context.Background()
	if err := second.restore(ctx); err != nil {
		t.Fatal(err)
	}

	if err := second.Punctuate(ctx, t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf(`recovered session must close, got %v`, records)
	}
	assertResult(t, records[0], `a`, t0, t0.Add(time.Nanosecond), 4)
}

func TestScheduler_Stop(t *testing.T) {
	var ticks int32
	errs := make(chan error, 10)
	s := newScheduler(time.Millisecond, SystemClock{}, nil, func(err error) {
		select {
		case errs <- err:
		default:
		}
	}, func(ctx context.Context, now time.Time) error {
		if atomic.AddInt32(&ticks, 1) == 1 {
			panic(`tick failed`)
		}
		return nil
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		if err == nil {
			t.Error(`expected panic to be observed`)
		}
	case <-time.After(5 * time.Second):
		t.Fatal(`panic was not observed`)
	}

	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&ticks) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if atomic.LoadInt32(&ticks) < 2 {
		t.Fatal(`scheduler must keep running after a panic`)
	}

	s.Stop()
	s.Stop()

	after := atomic.LoadInt32(&ticks)
	time.Sleep(10 * time.Millisecond)
	if atomic.LoadInt32(&ticks) != after {
		t.Error(`no tick may run after stop`)
	}

	if err := s.Start(context.Background()); err == nil {
		t.Error(`a stopped scheduler must not start again`)
	}
}

func TestWindowKeyEncoder(t *testing.T) {
	enc := NewWindowKeyEncoder(stringEnc)()

	early, err := enc.Encode(WindowKey{Key: `a`, Start: t0})
	if err != nil {
		t.Fatal(err)
	}

	late, err := enc.Encode(WindowKey{Key: `a`, Start: t0.Add(time.Second)})
	if err != nil {
		t.Fatal(err)
	}

	if string(early) >= string(late) {
		t.Error(`instances of a key must sort by start`)
	}

	v, err := enc.Decode(late)
	if err != nil {
		t.Fatal(err)
	}

	wk := v.(WindowKey)
	if wk.Key != `a` || !wk.Start.Equal(t0.Add(time.Second)) {
		t.Errorf(`unexpected window key %v`, wk)
	}

	if _, err := enc.Encode(`a`); err == nil {
		t.Error(`expected error for a non window key`)
	}

	if _, err := enc.Decode([]byte{0, 9, 1}); err == nil {
		t.Error(`expected error for a truncated key`)
	}
}

func TestSessionEncoder(t *testing.T) {
	enc := NewSessionEncoder(intEnc)()
	in := Session{Start: t0, Last: t0.Add(time.Second), Events: []interface{}{1, 2}}

	byt, err := enc.Encode(in)
	if err != nil {
		t.Fatal(err)
	}

	v, err := enc.Decode(byt)
	if err != nil {
		t.Fatal(err)
	}

	out := v.(Session)
	if !out.Start.Equal(in.Start) || !out.Last.Equal(in.Last) || !reflect.DeepEqual(out.Events, in.Events) {
		t.Errorf(`unexpected session %v`, out)
	}
}
