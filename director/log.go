package director

import (
	log "github.com/sirupsen/logrus"
)

type LogHolder struct {
	SessionID     string
	SuiteName     string
	TenantID      string
	OSType        string
	OSVersion     string
	InstanceID    string
	DeviceAddress string
	State         string
	ErrorKind     string
	Message       string
	Metric        string
}

func processFields(logholder LogHolder) *log.Entry {
	fields := log.Fields{}
	add := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}

	add("session_id", logholder.SessionID)
	add("suite_name", logholder.SuiteName)
	add("tenant_id", logholder.TenantID)
	add("os_type", logholder.OSType)
	add("os_version", logholder.OSVersion)
	add("instance_id", logholder.InstanceID)
	add("device_address", logholder.DeviceAddress)
	add("state", logholder.State)
	add("error_kind", logholder.ErrorKind)
	add("metric", logholder.Metric)

	return log.WithFields(fields)
}

func DebugLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Debug(logholder.Message)
}

func InfoLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Info(logholder.Message)
}

func WarnLogger(logholder LogHolder) {
	logger := processFields(logholder)

	logger.Warn(logholder.Message)
}

func ErrorLogger(logholder LogHolder) {
	logger := processFields(logholder)

	logger.Error(logholder.Message)
}
