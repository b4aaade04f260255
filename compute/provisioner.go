package compute

import (
	"context"

	"github.com/suitedirector/suitedirector/types"
)

// Instance is a handle on one provisioned compute instance.
type Instance struct {
	ID           string
	ImageID      string
	InstanceType string
}

// ProvisionRequest describes the instance to launch for one device run.
type ProvisionRequest struct {
	Device    types.DeviceUnit
	SuiteName string
	TenantID  string
	SessionID string
}

// Provisioner acquires, readies and releases compute instances.
//
// Provision must only return a non-nil Instance when the instance exists and
// therefore has to be terminated.
type Provisioner interface {
	Provision(ctx context.Context, req ProvisionRequest) (*Instance, error)
	// WaitReady blocks until the instance is running and returns the network
	// address to connect to.
	WaitReady(ctx context.Context, instance *Instance) (string, error)
	Terminate(ctx context.Context, instance *Instance) error
}
