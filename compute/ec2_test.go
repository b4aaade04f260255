package compute

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suitedirector/suitedirector/types"
)

// fakeEC2 records calls and replays a scripted sequence of instance states.
type fakeEC2 struct {
	mu sync.Mutex

	runErr       error
	runInstances []ec2types.Instance
	states       []ec2types.InstanceStateName
	describeErr  error
	publicDNS    string
	publicIP     string
	terminateErr error

	runCalls       []*ec2.RunInstancesInput
	describeCalls  int
	terminateCalls []*ec2.TerminateInstancesInput
}

func (f *fakeEC2) RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runCalls = append(f.runCalls, params)
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &ec2.RunInstancesOutput{Instances: f.runInstances}, nil
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describeCalls++
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	state := ec2types.InstanceStateNameRunning
	if len(f.states) > 0 {
		state = f.states[0]
		if len(f.states) > 1 {
			f.states = f.states[1:]
		}
	}
	inst := ec2types.Instance{
		InstanceId: aws.String(params.InstanceIds[0]),
		State:      &ec2types.InstanceState{Name: state},
	}
	if state == ec2types.InstanceStateNameRunning {
		if f.publicDNS != "" {
			inst.PublicDnsName = aws.String(f.publicDNS)
		}
		if f.publicIP != "" {
			inst.PublicIpAddress = aws.String(f.publicIP)
		}
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{inst}}},
	}, nil
}

func (f *fakeEC2) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminateCalls = append(f.terminateCalls, params)
	return &ec2.TerminateInstancesOutput{}, f.terminateErr
}

func newTestProvisioner(api EC2API) *EC2Provisioner {
	return NewEC2Provisioner(api, EC2Options{
		KeyName:         "suite-key",
		Images:          ImageCatalog{"ubuntu22": "ami-0a1b2c3d4e5f67890"},
		PollInterval:    10 * time.Millisecond,
		MaxPollInterval: 20 * time.Millisecond,
		MaxWait:         2 * time.Second,
	})
}

func TestEC2Provisioner_Provision(t *testing.T) {
	api := &fakeEC2{runInstances: []ec2types.Instance{{InstanceId: aws.String("i-0123456789abcdef0")}}}
	p := newTestProvisioner(api)

	instance, err := p.Provision(context.Background(), ProvisionRequest{
		Device:    types.DeviceUnit{OSType: "ubuntu22", OSVersion: "t2.micro"},
		SuiteName: "smoke",
		TenantID:  "t1",
		SessionID: "01234",
	})
	require.NoError(t, err)

	assert.Equal(t, "i-0123456789abcdef0", instance.ID)
	assert.Equal(t, "ami-0a1b2c3d4e5f67890", instance.ImageID)
	assert.Equal(t, "t2.micro", instance.InstanceType)

	require.Len(t, api.runCalls, 1)
	input := api.runCalls[0]
	assert.Equal(t, "ami-0a1b2c3d4e5f67890", aws.ToString(input.ImageId))
	assert.Equal(t, ec2types.InstanceType("t2.micro"), input.InstanceType)
	assert.Equal(t, int32(1), aws.ToInt32(input.MinCount))
	assert.Equal(t, int32(1), aws.ToInt32(input.MaxCount))
	assert.Equal(t, "suite-key", aws.ToString(input.KeyName))

	require.Len(t, input.TagSpecifications, 1)
	tags := map[string]string{}
	for _, tag := range input.TagSpecifications[0].Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	assert.Equal(t, map[string]string{
		"Name":     "smoke-01234",
		TagSuite:   "smoke",
		TagTenant:  "t1",
		TagSession: "01234",
	}, tags)
}

func TestEC2Provisioner_Provision_UnmappedImage(t *testing.T) {
	api := &fakeEC2{runInstances: []ec2types.Instance{{InstanceId: aws.String("i-1")}}}
	p := newTestProvisioner(api)

	instance, err := p.Provision(context.Background(), ProvisionRequest{
		Device: types.DeviceUnit{OSType: "ami-custom", OSVersion: "t3.small"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ami-custom", instance.ImageID)
	assert.Equal(t, "ami-custom", aws.ToString(api.runCalls[0].ImageId))
}

func TestEC2Provisioner_Provision_Errors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		p := newTestProvisioner(&fakeEC2{runErr: errors.New("InsufficientInstanceCapacity")})
		instance, err := p.Provision(context.Background(), ProvisionRequest{Device: types.DeviceUnit{OSType: "ubuntu22", OSVersion: "t2.micro"}})
		assert.Nil(t, instance)
		require.Error(t, err)
		assert.Equal(t, types.ProvisioningFailure, types.KindOf(err))
		assert.Equal(t, "RunInstances: InsufficientInstanceCapacity", err.Error())
	})

	t.Run("no instance returned", func(t *testing.T) {
		p := newTestProvisioner(&fakeEC2{})
		instance, err := p.Provision(context.Background(), ProvisionRequest{Device: types.DeviceUnit{OSType: "ubuntu22", OSVersion: "t2.micro"}})
		assert.Nil(t, instance)
		assert.Equal(t, types.ProvisioningFailure, types.KindOf(err))
	})
}

func TestEC2Provisioner_WaitReady(t *testing.T) {
	api := &fakeEC2{
		states: []ec2types.InstanceStateName{
			ec2types.InstanceStateNamePending,
			ec2types.InstanceStateNamePending,
			ec2types.InstanceStateNameRunning,
		},
		publicDNS: "ec2-3-91-0-1.compute-1.amazonaws.com",
	}
	p := newTestProvisioner(api)

	address, err := p.WaitReady(context.Background(), &Instance{ID: "i-1"})
	require.NoError(t, err)
	assert.Equal(t, "ec2-3-91-0-1.compute-1.amazonaws.com", address)
	assert.Equal(t, 3, api.describeCalls)
}

func TestEC2Provisioner_WaitReady_FallsBackToPublicIP(t *testing.T) {
	api := &fakeEC2{publicIP: "3.91.0.1"}
	p := newTestProvisioner(api)

	address, err := p.WaitReady(context.Background(), &Instance{ID: "i-1"})
	require.NoError(t, err)
	assert.Equal(t, "3.91.0.1", address)
}

func TestEC2Provisioner_WaitReady_Failures(t *testing.T) {
	t.Run("instance terminated while waiting", func(t *testing.T) {
		p := newTestProvisioner(&fakeEC2{states: []ec2types.InstanceStateName{ec2types.InstanceStateNameTerminated}})
		_, err := p.WaitReady(context.Background(), &Instance{ID: "i-1"})
		require.Error(t, err)
		assert.Equal(t, types.ProvisioningFailure, types.KindOf(err))
	})

	t.Run("timeout", func(t *testing.T) {
		p := newTestProvisioner(&fakeEC2{states: []ec2types.InstanceStateName{ec2types.InstanceStateNamePending}})
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, err := p.WaitReady(ctx, &Instance{ID: "i-1"})
		require.Error(t, err)
		assert.Equal(t, types.ProvisioningFailure, types.KindOf(err))
	})

	t.Run("running without an address", func(t *testing.T) {
		p := newTestProvisioner(&fakeEC2{})
		_, err := p.WaitReady(context.Background(), &Instance{ID: "i-1"})
		require.Error(t, err)
		assert.Equal(t, "WaitReady: i-1 is running but has no address", err.Error())
	})
}

func TestEC2Provisioner_Terminate(t *testing.T) {
	api := &fakeEC2{}
	p := newTestProvisioner(api)

	require.NoError(t, p.Terminate(context.Background(), &Instance{ID: "i-1"}))
	require.Len(t, api.terminateCalls, 1)
	assert.Equal(t, []string{"i-1"}, api.terminateCalls[0].InstanceIds)

	api.terminateErr = errors.New("UnauthorizedOperation")
	err := p.Terminate(context.Background(), &Instance{ID: "i-2"})
	assert.EqualError(t, err, "TerminateInstances: i-2: UnauthorizedOperation")
}
