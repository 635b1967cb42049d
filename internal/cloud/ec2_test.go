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

package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEC2 struct {
	ec2iface.EC2API
	run      *ec2.RunInstancesInput
	waited   []string
	describe int
}

func (f *fakeEC2) RunInstancesWithContext(ctx aws.Context, in *ec2.RunInstancesInput, opts ...request.Option) (*ec2.Reservation, error) {
	f.run = in
	r := &ec2.Reservation{}
	for i := int64(0); i < aws.Int64Value(in.MaxCount); i++ {
		r.Instances = append(r.Instances, &ec2.Instance{InstanceId: aws.String(fmt.Sprintf("i-%d", i))})
	}
	return r, nil
}

func (f *fakeEC2) WaitUntilInstanceRunningWithContext(ctx aws.Context, in *ec2.DescribeInstancesInput, opts ...request.WaiterOption) error {
	f.waited = aws.StringValueSlice(in.InstanceIds)
	return nil
}

func (f *fakeEC2) DescribeInstancesWithContext(ctx aws.Context, in *ec2.DescribeInstancesInput, opts ...request.Option) (*ec2.DescribeInstancesOutput, error) {
	f.describe++
	r := &ec2.Reservation{}
	for i, id := range in.InstanceIds {
		r.Instances = append(r.Instances, &ec2.Instance{InstanceId: id, PublicIpAddress: aws.String(fmt.Sprintf("54.0.0.%d", i+1))})
	}
	return &ec2.DescribeInstancesOutput{Reservations: []*ec2.Reservation{r}}, nil
}

func TestEC2RunInstances(t *testing.T) {
	fake := &fakeEC2{}
	cfg := config.CloudConfig{
		ImageID:            "ami-123",
		NormalInstanceType: "t3.medium",
		HighInstanceType:   "m5.xlarge",
		KeyName:            "leizu",
		SubnetID:           "subnet-1",
		SecurityGroupIDs:   []string{"sg-1"},
	}
	p := NewEC2ProviderWithClient(fake, cfg)

	instances, err := p.RunInstances(context.Background(), types.CloudNetworkVPC, types.InstanceClassHigh, 2)
	require.NoError(t, err)
	assert.Equal(t, []*types.Instance{{ID: "i-0", PublicIP: "54.0.0.1"}, {ID: "i-1", PublicIP: "54.0.0.2"}}, instances)
	assert.Equal(t, "m5.xlarge", aws.StringValue(fake.run.InstanceType))
	assert.Equal(t, "subnet-1", aws.StringValue(fake.run.SubnetId))
	assert.Equal(t, []string{"sg-1"}, aws.StringValueSlice(fake.run.SecurityGroupIds))
	assert.Equal(t, []string{"i-0", "i-1"}, fake.waited)

	classic := NewEC2ProviderWithClient(&fakeEC2{}, cfg)
	_, err = classic.RunInstances(context.Background(), types.CloudNetworkClassics, types.InstanceClassNormal, 1)
	require.NoError(t, err)
	assert.Nil(t, classic.client.(*fakeEC2).run.SubnetId)

	noSubnet := &fakeEC2{}
	cfg.SubnetID = ""
	_, err = NewEC2ProviderWithClient(noSubnet, cfg).RunInstances(context.Background(), types.CloudNetworkVPC, types.InstanceClassNormal, 1)
	assert.ErrorIs(t, err, errdefs.ErrInvalid)
	assert.Nil(t, noSubnet.run)

	none, err := p.RunInstances(context.Background(), types.CloudNetworkVPC, types.InstanceClassNormal, 0)
	assert.NoError(t, err)
	assert.Empty(t, none)
}

type fakeUploader struct {
	s3manageriface.UploaderAPI
	key  string
	body string
}

func (f *fakeUploader) UploadWithContext(ctx aws.Context, in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.key = aws.StringValue(in.Bucket) + "/" + aws.StringValue(in.Key)
	f.body = string(b)
	return &s3manager.UploadOutput{Location: "s3://" + f.key}, nil
}

func TestArchiveStores(t *testing.T) {
	src := filepath.Join(t.TempDir(), "msp.zip")
	require.NoError(t, os.WriteFile(src, []byte("zip"), 0644))

	up := &fakeUploader{}
	require.NoError(t, NewS3ArchiveStore(up, "bucket", "leizu").Upload(context.Background(), "c1/org1/msp.zip", src))
	assert.Equal(t, "bucket/leizu/c1/org1/msp.zip", up.key)
	assert.Equal(t, "zip", up.body)

	dir := t.TempDir()
	fs := &FileArchiveStore{Dir: dir}
	require.NoError(t, fs.Upload(context.Background(), "c1/org1/msp.zip", src))
	b, err := os.ReadFile(filepath.Join(dir, "c1", "org1", "msp.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zip", string(b))

	assert.Error(t, fs.Upload(context.Background(), "missing", filepath.Join(dir, "nope")))

	none, err := NewArchiveStore(config.Default())
	assert.NoError(t, err)
	assert.Nil(t, none)
}
