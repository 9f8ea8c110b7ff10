package topology

import (
	"context"
	"sync"
)

type MockRecord struct {
	Key   interface{}
	Value interface{}
}

// MockNode records every record it receives. It is its own builder, so the
// same instance stays observable after a topology is built. Err and Drop
// control what Run reports back.
type MockNode struct {
	Chain
	Err     error
	Drop    bool
	mu      sync.Mutex
	records []MockRecord
}

func (m *MockNode) Build() (Node, error) {
	return m, nil
}

func (m *MockNode) Type() Type {
	return `mock`
}

func (m *MockNode) Run(ctx context.Context, kIn, vIn interface{}) (interface{}, interface{}, bool, error) {
	m.mu.Lock()
	m.records = append(m.records, MockRecord{Key: kIn, Value: vIn})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, nil, false, m.Err
	}

	return kIn, vIn, !m.Drop, nil
}

func (m *MockNode) Records() []MockRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockRecord(nil), m.records...)
}
