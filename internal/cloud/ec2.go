// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud allocates the virtual machines of a cloud mode consortium and
// publishes credential bundles to object storage.
package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

// Provider runs count virtual machines of an instance class on the given
// network and returns them once they are running with a public address.
type Provider interface {
	RunInstances(ctx context.Context, network, class fftypes.FFEnum, count int) ([]*types.Instance, error)
}

// EC2Provider runs instances from the configured image. Consortiums on the
// vpc network are placed in the configured subnet; classics instances get
// no subnet and land wherever the account defaults put them.
type EC2Provider struct {
	client ec2iface.EC2API
	cfg    config.CloudConfig
}

func NewEC2Provider(cfg config.CloudConfig) (*EC2Provider, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, errors.Wrap(err, "aws session")
	}
	return NewEC2ProviderWithClient(ec2.New(sess), cfg), nil
}

func NewEC2ProviderWithClient(client ec2iface.EC2API, cfg config.CloudConfig) *EC2Provider {
	return &EC2Provider{client: client, cfg: cfg}
}

func (p *EC2Provider) instanceType(class fftypes.FFEnum) string {
	if class == types.InstanceClassHigh {
		return p.cfg.HighInstanceType
	}
	return p.cfg.NormalInstanceType
}

func (p *EC2Provider) RunInstances(ctx context.Context, network, class fftypes.FFEnum, count int) ([]*types.Instance, error) {
	if count <= 0 {
		return nil, nil
	}
	if network == types.CloudNetworkVPC && p.cfg.SubnetID == "" {
		return nil, errdefs.Invalidf("the vpc network needs cloud.subnetId to be configured")
	}
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(p.cfg.ImageID),
		InstanceType: aws.String(p.instanceType(class)),
		MinCount:     aws.Int64(int64(count)),
		MaxCount:     aws.Int64(int64(count)),
		TagSpecifications: []*ec2.TagSpecification{{
			ResourceType: aws.String(ec2.ResourceTypeInstance),
			Tags: []*ec2.Tag{
				{Key: aws.String("leizu:class"), Value: aws.String(class.String())},
			},
		}},
	}
	if p.cfg.KeyName != "" {
		input.KeyName = aws.String(p.cfg.KeyName)
	}
	if network == types.CloudNetworkVPC {
		input.SubnetId = aws.String(p.cfg.SubnetID)
	}
	if len(p.cfg.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = aws.StringSlice(p.cfg.SecurityGroupIDs)
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("running %d %s instances", count, aws.StringValue(input.InstanceType)))
	reservation, err := p.client.RunInstancesWithContext(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(err, "run %d %s instances", count, class)
	}
	ids := make([]*string, 0, len(reservation.Instances))
	for _, i := range reservation.Instances {
		ids = append(ids, i.InstanceId)
	}
	describe := &ec2.DescribeInstancesInput{InstanceIds: ids}
	if err := p.client.WaitUntilInstanceRunningWithContext(ctx, describe); err != nil {
		return nil, errdefs.Timeoutf("waiting for %s instances: %s", class, err)
	}
	out, err := p.client.DescribeInstancesWithContext(ctx, describe)
	if err != nil {
		return nil, errors.Wrapf(err, "describe %s instances", class)
	}
	instances := []*types.Instance{}
	for _, r := range out.Reservations {
		for _, i := range r.Instances {
			instances = append(instances, &types.Instance{
				ID:       aws.StringValue(i.InstanceId),
				PublicIP: aws.StringValue(i.PublicIpAddress),
			})
		}
	}
	return instances, nil
}
