package mocks

import (
	"context"
	"sync"

	"github.com/suitedirector/suitedirector/types"
)

// MockReporter collects every reported result.
type MockReporter struct {
	mu      sync.Mutex
	Results []types.DeviceResult
	Chunks  []*types.SuiteChunk
}

func (m *MockReporter) Report(ctx context.Context, chunk *types.SuiteChunk, result types.DeviceResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Chunks = append(m.Chunks, chunk)
	m.Results = append(m.Results, result)
}

// MockAlerter collects alerts and optionally fails them.
type MockAlerter struct {
	AlertFunc func(ctx context.Context, alert types.Alert) error

	mu     sync.Mutex
	Alerts []types.Alert
}

func (m *MockAlerter) Alert(ctx context.Context, alert types.Alert) error {
	m.mu.Lock()
	m.Alerts = append(m.Alerts, alert)
	m.mu.Unlock()
	if m.AlertFunc != nil {
		return m.AlertFunc(ctx, alert)
	}
	return nil
}

// MockPublisher records published chunks. When Err is set, every publish
// after the first FailAfter succeeds returns Err.
type MockPublisher struct {
	FailAfter int
	Err       error

	mu        sync.Mutex
	Published []*types.SuiteChunk
}

func (m *MockPublisher) Publish(ctx context.Context, chunk *types.SuiteChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil && len(m.Published) >= m.FailAfter {
		return m.Err
	}
	m.Published = append(m.Published, chunk)
	return nil
}

// MockRunStore records ledger rows.
type MockRunStore struct {
	Err error

	mu   sync.Mutex
	Runs []*types.DeviceRun
}

func (m *MockRunStore) Record(ctx context.Context, run *types.DeviceRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Runs = append(m.Runs, run)
	return nil
}

// MockRunLister serves canned ledger rows.
type MockRunLister struct {
	Runs map[string][]types.DeviceRun
	Err  error
}

func (m *MockRunLister) RunsForSuite(ctx context.Context, suiteName string) ([]types.DeviceRun, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	runs, ok := m.Runs[suiteName]
	if !ok {
		return []types.DeviceRun{}, nil
	}
	return runs, nil
}
