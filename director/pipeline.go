package director

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/suitedirector/suitedirector/compute"
	"github.com/suitedirector/suitedirector/recorder"
	"github.com/suitedirector/suitedirector/remote"
	"github.com/suitedirector/suitedirector/types"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultReadyTimeout    = 10 * time.Minute
	DefaultExecTimeout     = 60 * time.Minute
	DefaultTeardownTimeout = 5 * time.Minute
)

type PipelineOptions struct {
	// Script is fed to the remote shell with exeBucketUri and tenantId as
	// positional arguments.
	Script          []byte
	ReadyTimeout    time.Duration
	ExecTimeout     time.Duration
	TeardownTimeout time.Duration
	// DeviceConcurrency is how many devices of one chunk run at once. 1 runs
	// them in order.
	DeviceConcurrency int
}

// Pipeline runs every device of a chunk through provision, execute, record
// and teardown.
type Pipeline struct {
	provisioner compute.Provisioner
	executor    remote.Executor
	recorder    recorder.Recorder
	reporter    Reporter
	alerter     Alerter
	opts        PipelineOptions

	newSessionID func() string
	now          func() time.Time
}

// NewPipeline wires a pipeline. A nil alerter logs alerts. Results always go
// to a LogReporter first, then to reporter when given.
func NewPipeline(provisioner compute.Provisioner, executor remote.Executor, rec recorder.Recorder, reporter Reporter, alerter Alerter, opts PipelineOptions) *Pipeline {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.ExecTimeout <= 0 {
		opts.ExecTimeout = DefaultExecTimeout
	}
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = DefaultTeardownTimeout
	}
	if opts.DeviceConcurrency < 1 {
		opts.DeviceConcurrency = 1
	}

	reporters := MultiReporter{LogReporter{}}
	if reporter != nil {
		reporters = append(reporters, reporter)
	}
	if alerter == nil {
		alerter = LogAlerter{}
	}

	return &Pipeline{
		provisioner:  provisioner,
		executor:     executor,
		recorder:     rec,
		reporter:     reporters,
		alerter:      alerter,
		opts:         opts,
		newSessionID: NewSessionID,
		now:          time.Now,
	}
}

// Run deploys every device in chunk and returns one result per device, in
// device order. A failed device never stops its siblings.
func (p *Pipeline) Run(ctx context.Context, chunk *types.SuiteChunk) []types.DeviceResult {
	results := make([]types.DeviceResult, len(chunk.Devices))

	var g errgroup.Group
	g.SetLimit(p.opts.DeviceConcurrency)
	for i := range chunk.Devices {
		i := i
		g.Go(func() error {
			results[i] = p.DeployDevice(ctx, chunk, chunk.Devices[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// deviceRun is the mutable state of one device's pass through the state
// machine. It is owned by a single goroutine.
type deviceRun struct {
	chunk  *types.SuiteChunk
	result types.DeviceResult
}

func (r *deviceRun) holder(message string) LogHolder {
	return LogHolder{
		SessionID:     r.result.SessionID,
		SuiteName:     r.chunk.SuiteName,
		TenantID:      r.chunk.TenantID,
		OSType:        r.result.Device.OSType,
		OSVersion:     r.result.Device.OSVersion,
		InstanceID:    r.result.InstanceID,
		DeviceAddress: r.result.DeviceAddress,
		State:         string(r.result.State),
		Message:       message,
	}
}

func (r *deviceRun) transition(state types.DeviceState) {
	r.result.State = state
	DebugLogger(r.holder("State changed"))
}

// fail moves the run to Failed. err's kind is used when it has one.
func (r *deviceRun) fail(kind types.ErrorKind, err error) {
	if k := types.KindOf(err); k != "" {
		kind = k
	}
	r.result.FailedIn = r.result.State
	r.result.State = types.StateFailed
	r.result.ErrorKind = kind
	r.result.Reason = err.Error()

	holder := r.holder(err.Error())
	holder.ErrorKind = string(kind)
	ErrorLogger(holder)
}

// DeployDevice runs one device through the state machine. Once an instance
// handle exists it is terminated exactly once, whatever happens after.
func (p *Pipeline) DeployDevice(ctx context.Context, chunk *types.SuiteChunk, device types.DeviceUnit) (result types.DeviceResult) {
	run := &deviceRun{
		chunk: chunk,
		result: types.DeviceResult{
			SessionID: p.newSessionID(),
			Device:    device,
			State:     types.StatePending,
			StartedAt: p.now(),
		},
	}
	InfoLogger(run.holder(fmt.Sprintf("Starting test suite: %s (SID: %s)", chunk.SuiteName, run.result.SessionID)))

	defer func() {
		run.result.FinishedAt = p.now()
		p.observe(run.result)
		p.reporter.Report(context.WithoutCancel(ctx), chunk, run.result)
		result = run.result
	}()

	run.transition(types.StateProvisioning)
	InfoLogger(run.holder("Creating new device"))
	startTimestamp := p.now()
	instance, err := p.provisioner.Provision(ctx, compute.ProvisionRequest{
		Device:    device,
		SuiteName: chunk.SuiteName,
		TenantID:  chunk.TenantID,
		SessionID: run.result.SessionID,
	})
	if instance != nil {
		run.result.InstanceID = instance.ID
		defer p.teardown(ctx, run, instance)
	}
	if err != nil {
		run.fail(types.ProvisioningFailure, err)
		if instance == nil {
			DebugLogger(run.holder("No instance was created, nothing to tear down"))
		}
		return
	}
	if instance == nil {
		run.fail(types.ProvisioningFailure, errors.New("Provision returned no instance"))
		return
	}
	InfoLogger(run.holder("Deploying new ec2 instance"))

	run.transition(types.StateAwaitingReady)
	address, err := p.waitReady(ctx, instance)
	if err != nil {
		run.fail(types.ProvisioningFailure, err)
		return
	}
	run.result.DeviceAddress = address

	execCtx, cancel := context.WithTimeout(ctx, p.opts.ExecTimeout)
	defer cancel()

	run.transition(types.StateConnected)
	conn, err := p.executor.Connect(execCtx, address)
	if err != nil {
		run.fail(types.ExecutionFailure, p.timeoutError(execCtx, err, "connection", p.opts.ExecTimeout))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			WarnLogger(run.holder("closing remote session: " + err.Error()))
		}
	}()

	run.transition(types.StateExecuting)
	InfoLogger(run.holder("Running suite deployment script"))
	res, err := conn.RunScript(execCtx, p.opts.Script, chunk.ExeBucketURI, chunk.TenantID)
	if err != nil {
		run.fail(types.ExecutionFailure, p.timeoutError(execCtx, err, "script", p.opts.ExecTimeout))
		return
	}

	session := types.DeploymentSession{
		SessionID:      run.result.SessionID,
		SuiteName:      chunk.SuiteName,
		TenantID:       chunk.TenantID,
		Device:         device,
		DeviceAddress:  address,
		Output:         res.Output,
		StartTimestamp: startTimestamp,
		EndTimestamp:   p.now(),
		ExitCode:       res.ExitCode,
	}
	run.result.Session = &session
	run.transition(types.StateCollected)

	holder := run.holder(fmt.Sprintf("Suite finished execution (exitCode: %d), inserting session logs to db", res.ExitCode))
	holder.Metric = strconv.Itoa(res.ExitCode)
	InfoLogger(holder)

	recordID, err := p.recorder.Record(ctx, session, chunk.DBURL)
	if err != nil {
		// the run still counts, only the session record is lost
		PersistenceFailures.Inc()
		run.result.RecordError = err.Error()
		holder := run.holder("Failed to insert session logs: " + err.Error())
		holder.ErrorKind = string(types.PersistenceError)
		ErrorLogger(holder)
		return
	}
	run.result.RecordID = recordID
	holder = run.holder("Session logs inserted to db, document id")
	holder.Metric = recordID
	InfoLogger(holder)
	return
}

func (p *Pipeline) waitReady(ctx context.Context, instance *compute.Instance) (string, error) {
	readyCtx, cancel := context.WithTimeout(ctx, p.opts.ReadyTimeout)
	defer cancel()

	address, err := p.provisioner.WaitReady(readyCtx, instance)
	if err != nil {
		return "", p.timeoutError(readyCtx, err, "instance readiness", p.opts.ReadyTimeout)
	}
	if address == "" {
		return "", types.Errorf(types.ProvisioningFailure, "WaitReady: %s has no address", instance.ID)
	}
	return address, nil
}

// timeoutError names the bound that expired when ctx hit its deadline.
func (p *Pipeline) timeoutError(ctx context.Context, err error, what string, limit time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(err, "%s timed out after %s", what, limit)
	}
	return err
}

// teardown terminates instance on a context detached from ctx's
// cancellation. A failure is a ResourceLeakRisk and is escalated.
func (p *Pipeline) teardown(ctx context.Context, run *deviceRun, instance *compute.Instance) {
	base := context.WithoutCancel(ctx)
	teardownCtx, cancel := context.WithTimeout(base, p.opts.TeardownTimeout)
	defer cancel()

	InfoLogger(run.holder("Shutting down instance"))
	err := p.provisioner.Terminate(teardownCtx, instance)
	if err == nil {
		run.result.TornDown = true
		if run.result.State == types.StateCollected {
			run.transition(types.StateTerminated)
		}
		return
	}

	TeardownFailures.Inc()
	err = p.timeoutError(teardownCtx, err, "teardown", p.opts.TeardownTimeout)
	run.result.TeardownError = err.Error()
	if run.result.State != types.StateFailed {
		run.fail(types.ResourceLeakRisk, types.NewError(types.ResourceLeakRisk, err))
	} else {
		holder := run.holder("Instance could not be terminated: " + err.Error())
		holder.ErrorKind = string(types.ResourceLeakRisk)
		ErrorLogger(holder)
	}

	alertCtx, cancelAlert := context.WithTimeout(base, p.opts.TeardownTimeout)
	defer cancelAlert()
	alertErr := p.alerter.Alert(alertCtx, types.Alert{
		Kind:       types.ResourceLeakRisk,
		Summary:    "instance was not terminated and may still be running",
		SessionID:  run.result.SessionID,
		SuiteName:  run.chunk.SuiteName,
		TenantID:   run.chunk.TenantID,
		InstanceID: instance.ID,
		Error:      err.Error(),
		Time:       p.now(),
	})
	if alertErr != nil {
		holder := run.holder("Failed to send alert: " + alertErr.Error())
		holder.ErrorKind = string(types.ResourceLeakRisk)
		ErrorLogger(holder)
	}
}

func (p *Pipeline) observe(result types.DeviceResult) {
	outcome := "success"
	if !result.Succeeded() {
		outcome = string(result.ErrorKind)
	}
	DeviceRuns.WithLabelValues(outcome).Inc()
	DeviceRunDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
}
