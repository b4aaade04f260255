package mocks

import (
	"context"
	"sync"

	"github.com/suitedirector/suitedirector/remote"
)

// MockExecutor - mock implementation of remote.Executor for testing
type MockExecutor struct {
	ConnectFunc func(ctx context.Context, address string) (remote.Conn, error)
	// Conn is returned by Connect when ConnectFunc is nil.
	Conn *MockConn

	mu           sync.Mutex
	ConnectCalls []string
}

var _ remote.Executor = (*MockExecutor)(nil)

// Connect implements Executor.Connect
func (m *MockExecutor) Connect(ctx context.Context, address string) (remote.Conn, error) {
	m.mu.Lock()
	m.ConnectCalls = append(m.ConnectCalls, address)
	if m.ConnectFunc == nil && m.Conn == nil {
		m.Conn = &MockConn{}
	}
	conn := m.Conn
	m.mu.Unlock()

	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx, address)
	}
	return conn, nil
}

// RunScriptCall records the arguments passed to RunScript
type RunScriptCall struct {
	Script []byte
	Args   []string
}

// MockConn - mock implementation of remote.Conn for testing
type MockConn struct {
	RunScriptFunc func(ctx context.Context, script []byte, args ...string) (*remote.Result, error)

	mu             sync.Mutex
	RunScriptCalls []RunScriptCall
	CloseCalls     int
}

var _ remote.Conn = (*MockConn)(nil)

// RunScript implements Conn.RunScript. By default the script exits 0 with no
// output.
func (m *MockConn) RunScript(ctx context.Context, script []byte, args ...string) (*remote.Result, error) {
	m.mu.Lock()
	m.RunScriptCalls = append(m.RunScriptCalls, RunScriptCall{Script: script, Args: args})
	m.mu.Unlock()
	if m.RunScriptFunc != nil {
		return m.RunScriptFunc(ctx, script, args...)
	}
	return &remote.Result{}, nil
}

// Close implements Conn.Close
func (m *MockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}
