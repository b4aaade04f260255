package types

import "time"

// Alert is an escalation for a condition an operator must act on, such as an
// instance that could not be terminated.
type Alert struct {
	Kind       ErrorKind `json:"kind"`
	Summary    string    `json:"summary"`
	SessionID  string    `json:"sessionId"`
	SuiteName  string    `json:"suiteName"`
	TenantID   string    `json:"tenantId"`
	InstanceID string    `json:"instanceId,omitempty"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}
