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

package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/docker"
	"github.com/hyperledger/leizu/internal/docker/mocks"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateImage(t *testing.T) {
	assert.NoError(t, ValidateImage("hyperledger/fabric-peer:1.4.9"))
	assert.NoError(t, ValidateImage("consul@sha256:0000000000000000000000000000000000000000000000000000000000000000"))
	err := ValidateImage("Bad Image:")
	assert.ErrorIs(t, err, errdefs.ErrInvalid)
}

func TestCheckImagePullsWhenMissing(t *testing.T) {
	dm := mocks.NewDockerManager()
	g := NewLocalGateway(dm)
	err := g.CheckImage(context.Background(), "hyperledger/fabric-ca:1.4.9")
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"docker image ls hyperledger/fabric-ca:1.4.9 -q",
		"docker pull hyperledger/fabric-ca:1.4.9",
	}, dm.CommandLines())
}

func TestCheckImagePresent(t *testing.T) {
	dm := mocks.NewDockerManager()
	dm.Outputs["docker image ls"] = "3f1c2a"
	g := NewLocalGateway(dm)
	assert.NoError(t, g.CheckImage(context.Background(), "consul:1.6.2"))
	assert.Len(t, dm.Commands, 1)
}

func TestCreateContainerStartsIt(t *testing.T) {
	dm := mocks.NewDockerManager()
	dm.Outputs["docker create"] = "abc123"
	g := NewLocalGateway(dm)
	id, err := g.CreateContainer(context.Background(), &docker.Service{ContainerName: "ca-org1", Image: "hyperledger/fabric-ca:1.4.9"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
	lines := dm.CommandLines()
	assert.Equal(t, "docker create --name ca-org1 hyperledger/fabric-ca:1.4.9", lines[0])
	assert.Equal(t, "docker start abc123", lines[1])
}

func TestCreateContainerFailure(t *testing.T) {
	dm := mocks.NewDockerManager()
	dm.Errors["docker create"] = fmt.Errorf("conflict: name in use")
	g := NewLocalGateway(dm)
	_, err := g.CreateContainer(context.Background(), &docker.Service{ContainerName: "ca-org1", Image: "x"})
	assert.Regexp(t, "failed to create container ca-org1 on localhost", err)
}

func TestCreateContainerNetworkAlreadyExists(t *testing.T) {
	dm := mocks.NewDockerManager()
	dm.Errors["docker network create"] = fmt.Errorf("Error response from daemon: network with name fabric_network already exists")
	g := NewLocalGateway(dm)
	assert.NoError(t, g.CreateContainerNetwork(context.Background(), "fabric_network"))

	dm.Errors["docker network create"] = fmt.Errorf("daemon not running")
	assert.Error(t, g.CreateContainerNetwork(context.Background(), "fabric_network"))
}

func TestDeliverArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "peer1.zip")
	require.NoError(t, os.WriteFile(src, []byte("zip"), 0644))
	dm := mocks.NewDockerManager()
	g := NewLocalGateway(dm)

	target := filepath.Join(dir, "remote", "peers", "peer1")
	err := DeliverArchive(context.Background(), g, src, target)
	require.NoError(t, err)
	b, err := os.ReadFile(target + ".zip")
	require.NoError(t, err)
	assert.Equal(t, "zip", string(b))
	assert.Equal(t, []string{fmt.Sprintf("bash -c unzip -o %s.zip -d %s", target, target)}, dm.CommandLines())
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "/etc/hyperledger/fabric", shellQuote("/etc/hyperledger/fabric"))
	assert.Equal(t, "'peer node start'", shellQuote("peer node start"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, "''", shellQuote(""))
	assert.Equal(t, "create --name x -e 'A=b c'", shellJoin([]string{"create", "--name", "x", "-e", "A=b c"}))
}

func TestNewDialer(t *testing.T) {
	cfg := config.Default()
	d := NewDialer(cfg, mocks.NewDockerManager())
	_, ok := d.Gateway(&types.HostSpec{IP: "10.0.0.1"}).(*LocalGateway)
	assert.True(t, ok)

	cfg.RunMode = "remote"
	d = NewDialer(cfg, mocks.NewDockerManager())
	g, ok := d.Gateway(&types.HostSpec{IP: "10.0.0.1", SSHUsername: "root", SSHPassword: "pw"}).(*SSHGateway)
	require.True(t, ok)
	assert.Equal(t, 22, g.opts.Port)
	assert.Equal(t, "root", g.opts.Username)
}
