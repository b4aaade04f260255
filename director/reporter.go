package director

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/suitedirector/suitedirector/types"
)

// Reporter receives the final result of every device run. It is the
// operator-facing channel for per-device outcomes, including failures.
type Reporter interface {
	Report(ctx context.Context, chunk *types.SuiteChunk, result types.DeviceResult)
}

// RunStore persists ledger rows.
type RunStore interface {
	Record(ctx context.Context, run *types.DeviceRun) error
}

// NewDeviceRun converts a result into its ledger row.
func NewDeviceRun(chunk *types.SuiteChunk, result types.DeviceResult) *types.DeviceRun {
	run := &types.DeviceRun{
		ID:            uuid.New().String(),
		SuiteName:     chunk.SuiteName,
		TenantID:      chunk.TenantID,
		SessionID:     result.SessionID,
		OSType:        result.Device.OSType,
		OSVersion:     result.Device.OSVersion,
		InstanceID:    result.InstanceID,
		DeviceAddress: result.DeviceAddress,
		State:         string(result.State),
		FailedIn:      string(result.FailedIn),
		ErrorKind:     string(result.ErrorKind),
		Reason:        result.Reason,
		RecordID:      result.RecordID,
		TornDown:      result.TornDown,
		TeardownError: result.TeardownError,
		StartedAt:     result.StartedAt,
		FinishedAt:    result.FinishedAt,
	}
	if result.Session != nil {
		exitCode := result.Session.ExitCode
		run.ExitCode = &exitCode
	}
	return run
}

// LedgerReporter writes every result to a RunStore.
type LedgerReporter struct {
	Store RunStore
}

func (r LedgerReporter) Report(ctx context.Context, chunk *types.SuiteChunk, result types.DeviceResult) {
	if err := r.Store.Record(ctx, NewDeviceRun(chunk, result)); err != nil {
		ErrorLogger(LogHolder{
			SessionID: result.SessionID,
			SuiteName: chunk.SuiteName,
			ErrorKind: string(types.KindOf(err)),
			Message:   err.Error(),
		})
	}
}

// LogReporter emits the success or failure line for each device, keyed by
// session id.
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, chunk *types.SuiteChunk, result types.DeviceResult) {
	holder := LogHolder{
		SessionID:     result.SessionID,
		SuiteName:     chunk.SuiteName,
		TenantID:      chunk.TenantID,
		OSType:        result.Device.OSType,
		OSVersion:     result.Device.OSVersion,
		InstanceID:    result.InstanceID,
		DeviceAddress: result.DeviceAddress,
		State:         string(result.State),
		ErrorKind:     string(result.ErrorKind),
	}

	if result.Succeeded() {
		exitCode := 0
		if result.Session != nil {
			exitCode = result.Session.ExitCode
		}
		holder.Message = fmt.Sprintf("Test suite %s finished successfully (SID: %s)", chunk.SuiteName, result.SessionID)
		holder.Metric = fmt.Sprintf("exitCode=%d", exitCode)
		InfoLogger(holder)
		return
	}

	holder.Message = fmt.Sprintf("Test suite %s finished unsuccessfully (SID: %s) in %s: %s",
		chunk.SuiteName, result.SessionID, result.FailedIn, result.Reason)
	ErrorLogger(holder)
}

// MultiReporter fans a result out to each Reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, chunk *types.SuiteChunk, result types.DeviceResult) {
	for _, reporter := range m {
		reporter.Report(ctx, chunk, result)
	}
}
