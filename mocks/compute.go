package mocks

import (
	"context"
	"sync"

	"github.com/suitedirector/suitedirector/compute"
)

// MockProvisioner - mock implementation of compute.Provisioner for testing
type MockProvisioner struct {
	ProvisionFunc func(ctx context.Context, req compute.ProvisionRequest) (*compute.Instance, error)
	WaitReadyFunc func(ctx context.Context, instance *compute.Instance) (string, error)
	TerminateFunc func(ctx context.Context, instance *compute.Instance) error

	mu sync.Mutex
	// Call tracking
	ProvisionCalls []compute.ProvisionRequest
	WaitReadyCalls []string
	TerminateCalls []string
}

// Ensure MockProvisioner implements Provisioner
var _ compute.Provisioner = (*MockProvisioner)(nil)

// Provision implements Provisioner.Provision. By default it returns an
// instance named after the session.
func (m *MockProvisioner) Provision(ctx context.Context, req compute.ProvisionRequest) (*compute.Instance, error) {
	m.mu.Lock()
	m.ProvisionCalls = append(m.ProvisionCalls, req)
	m.mu.Unlock()
	if m.ProvisionFunc != nil {
		return m.ProvisionFunc(ctx, req)
	}
	return &compute.Instance{ID: "i-" + req.SessionID, ImageID: req.Device.OSType, InstanceType: req.Device.OSVersion}, nil
}

// WaitReady implements Provisioner.WaitReady
func (m *MockProvisioner) WaitReady(ctx context.Context, instance *compute.Instance) (string, error) {
	m.mu.Lock()
	m.WaitReadyCalls = append(m.WaitReadyCalls, instance.ID)
	m.mu.Unlock()
	if m.WaitReadyFunc != nil {
		return m.WaitReadyFunc(ctx, instance)
	}
	return instance.ID + ".internal", nil
}

// Terminate implements Provisioner.Terminate
func (m *MockProvisioner) Terminate(ctx context.Context, instance *compute.Instance) error {
	m.mu.Lock()
	m.TerminateCalls = append(m.TerminateCalls, instance.ID)
	m.mu.Unlock()
	if m.TerminateFunc != nil {
		return m.TerminateFunc(ctx, instance)
	}
	return nil
}

// Terminations returns how many times instanceID was terminated.
func (m *MockProvisioner) Terminations(instanceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range m.TerminateCalls {
		if id == instanceID {
			n++
		}
	}
	return n
}
