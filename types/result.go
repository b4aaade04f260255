package types

import "time"

// DeviceState is a step of the per-device deployment state machine.
type DeviceState string

const (
	StatePending       DeviceState = "Pending"
	StateProvisioning  DeviceState = "Provisioning"
	StateAwaitingReady DeviceState = "AwaitingReady"
	StateConnected     DeviceState = "Connected"
	StateExecuting     DeviceState = "Executing"
	StateCollected     DeviceState = "Collected"
	StateTerminated    DeviceState = "Terminated"
	StateFailed        DeviceState = "Failed"
)

// Terminal reports whether no further transition is possible.
func (s DeviceState) Terminal() bool {
	return s == StateTerminated || s == StateFailed
}

// DeviceResult is what the pipeline returns for each device in a chunk.
type DeviceResult struct {
	SessionID     string
	Device        DeviceUnit
	InstanceID    string
	DeviceAddress string
	State         DeviceState
	// FailedIn is the state the run was in when it failed.
	FailedIn    DeviceState
	ErrorKind   ErrorKind
	Reason      string
	Session     *DeploymentSession
	RecordID    string
	RecordError string
	TornDown    bool
	// TeardownError is set when the instance could not be released.
	TeardownError string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Succeeded is true when the device ran its script, regardless of exit code.
func (r DeviceResult) Succeeded() bool {
	return r.State == StateTerminated
}

// DeviceRun is the ledger row written for every DeviceResult.
type DeviceRun struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	SuiteName     string    `gorm:"index" json:"suite_name"`
	TenantID      string    `json:"tenant_id"`
	SessionID     string    `json:"session_id"`
	OSType        string    `json:"os_type"`
	OSVersion     string    `json:"os_version"`
	InstanceID    string    `json:"instance_id"`
	DeviceAddress string    `json:"device_address"`
	State         string    `json:"state"`
	FailedIn      string    `json:"failed_in,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ExitCode      *int      `json:"exit_code,omitempty"`
	RecordID      string    `json:"record_id,omitempty"`
	TornDown      bool      `json:"torn_down"`
	TeardownError string    `json:"teardown_error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	CreatedAt     time.Time `json:"created_at"`
}
