package types

import "time"

// DeploymentSession is the record of one device's deploy-and-execute run.
// SessionID is five random digits used for log correlation only.
type DeploymentSession struct {
	SessionID      string
	SuiteName      string
	TenantID       string
	Device         DeviceUnit
	DeviceAddress  string
	Output         []byte
	StartTimestamp time.Time
	EndTimestamp   time.Time
	ExitCode       int
}
