package compute

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/pkg/errors"
	"github.com/suitedirector/suitedirector/log"
	"github.com/suitedirector/suitedirector/types"
)

// Tag keys set on every launched instance so a leaked one can be traced back
// to its suite and session.
const (
	TagSuite   = "suitedirector:suite"
	TagTenant  = "suitedirector:tenant"
	TagSession = "suitedirector:session"
)

// EC2API is the subset of the EC2 client used by EC2Provisioner.
type EC2API interface {
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

type EC2Options struct {
	KeyName string
	Images  ImageCatalog
	// PollInterval and MaxPollInterval bound the delay between readiness checks.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	// MaxWait is used when the context passed to WaitReady has no deadline.
	MaxWait time.Duration
}

type EC2Provisioner struct {
	api  EC2API
	opts EC2Options
}

var _ Provisioner = (*EC2Provisioner)(nil)

func NewEC2Provisioner(api EC2API, opts EC2Options) *EC2Provisioner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxPollInterval < opts.PollInterval {
		opts.MaxPollInterval = 30 * time.Second
		if opts.MaxPollInterval < opts.PollInterval {
			opts.MaxPollInterval = opts.PollInterval
		}
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 10 * time.Minute
	}
	return &EC2Provisioner{api: api, opts: opts}
}

// NewEC2ProvisionerFromConfig builds a provisioner on the default AWS
// credential chain.
func NewEC2ProvisionerFromConfig(ctx context.Context, region string, opts EC2Options) (*EC2Provisioner, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "NewEC2ProvisionerFromConfig: load AWS config")
	}
	return NewEC2Provisioner(ec2.NewFromConfig(cfg), opts), nil
}

// Provision launches one instance. osType selects the image and osVersion is
// used as the instance type.
func (p *EC2Provisioner) Provision(ctx context.Context, req ProvisionRequest) (*Instance, error) {
	imageID := p.opts.Images.ImageFor(req.Device.OSType)
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(imageID),
		InstanceType: ec2types.InstanceType(req.Device.OSVersion),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeInstance,
				Tags:         instanceTags(req),
			},
		},
	}
	if p.opts.KeyName != "" {
		input.KeyName = aws.String(p.opts.KeyName)
	}

	out, err := p.api.RunInstances(ctx, input)
	if err != nil {
		return nil, types.NewError(types.ProvisioningFailure, errors.Wrap(err, "RunInstances"))
	}
	if len(out.Instances) == 0 || aws.ToString(out.Instances[0].InstanceId) == "" {
		return nil, types.Errorf(types.ProvisioningFailure, "RunInstances: no instance returned for image %s", imageID)
	}

	instance := &Instance{
		ID:           aws.ToString(out.Instances[0].InstanceId),
		ImageID:      imageID,
		InstanceType: req.Device.OSVersion,
	}
	log.Debugf("launched instance %s from %s (%s)", instance.ID, imageID, instance.InstanceType)
	return instance, nil
}

// WaitReady waits for the running state and resolves the public DNS name,
// falling back to the public then the private IP address.
func (p *EC2Provisioner) WaitReady(ctx context.Context, instance *Instance) (string, error) {
	maxWait := p.opts.MaxWait
	if deadline, ok := ctx.Deadline(); ok {
		maxWait = time.Until(deadline)
	}
	if maxWait <= 0 {
		return "", types.Errorf(types.ProvisioningFailure, "WaitReady: no time left to wait for %s", instance.ID)
	}

	waiter := ec2.NewInstanceRunningWaiter(p.api, func(o *ec2.InstanceRunningWaiterOptions) {
		o.MinDelay = p.opts.PollInterval
		o.MaxDelay = p.opts.MaxPollInterval
	})
	out, err := waiter.WaitForOutput(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instance.ID},
	}, maxWait)
	if err != nil {
		return "", types.NewError(types.ProvisioningFailure, errors.Wrapf(err, "WaitReady: %s", instance.ID))
	}

	address := instanceAddress(out)
	if address == "" {
		return "", types.Errorf(types.ProvisioningFailure, "WaitReady: %s is running but has no address", instance.ID)
	}
	return address, nil
}

func (p *EC2Provisioner) Terminate(ctx context.Context, instance *Instance) error {
	_, err := p.api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instance.ID},
	})
	if err != nil {
		return errors.Wrapf(err, "TerminateInstances: %s", instance.ID)
	}
	return nil
}

func instanceAddress(out *ec2.DescribeInstancesOutput) string {
	if out == nil {
		return ""
	}
	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			for _, candidate := range []*string{inst.PublicDnsName, inst.PublicIpAddress, inst.PrivateIpAddress} {
				if addr := aws.ToString(candidate); addr != "" {
					return addr
				}
			}
		}
	}
	return ""
}

func instanceTags(req ProvisionRequest) []ec2types.Tag {
	values := map[string]string{
		"Name":     req.SuiteName + "-" + req.SessionID,
		TagSuite:   req.SuiteName,
		TagTenant:  req.TenantID,
		TagSession: req.SessionID,
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]ec2types.Tag, 0, len(keys))
	for _, k := range keys {
		if values[k] == "" {
			continue
		}
		tags = append(tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(values[k])})
	}
	return tags
}
