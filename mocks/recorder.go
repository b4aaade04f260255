package mocks

import (
	"context"
	"sync"

	"github.com/suitedirector/suitedirector/recorder"
	"github.com/suitedirector/suitedirector/types"
)

// RecordCall records the arguments passed to Record
type RecordCall struct {
	Session types.DeploymentSession
	DBURL   string
}

// MockRecorder - mock implementation of recorder.Recorder for testing
type MockRecorder struct {
	RecordFunc func(ctx context.Context, session types.DeploymentSession, dbURL string) (string, error)

	mu          sync.Mutex
	RecordCalls []RecordCall
}

var _ recorder.Recorder = (*MockRecorder)(nil)

// Record implements Recorder.Record
func (m *MockRecorder) Record(ctx context.Context, session types.DeploymentSession, dbURL string) (string, error) {
	m.mu.Lock()
	m.RecordCalls = append(m.RecordCalls, RecordCall{Session: session, DBURL: dbURL})
	m.mu.Unlock()
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, session, dbURL)
	}
	return "rec-" + session.SessionID, nil
}
