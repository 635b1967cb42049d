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

package fabric

import (
	"context"
	"fmt"
	"path"

	"github.com/hyperledger/leizu/internal/docker"
	"github.com/pkg/errors"
)

type GenesisRequest struct {
	// ToolsImage is the fabric-tools image matching the consortium release.
	ToolsImage string
	ConfigDir  string
	Profile    string
	ChannelID  string
	// OutputFile is created inside ConfigDir.
	OutputFile string
}

// GenesisGenerator renders a profile of a staged configtx.yaml into a block.
type GenesisGenerator interface {
	Generate(ctx context.Context, req *GenesisRequest) error
}

const configtxMount = "/etc/hyperledger/configtx"

// ConfigtxgenRunner runs configtxgen in a throwaway tools container with the
// staged directory mounted as its config path.
type ConfigtxgenRunner struct {
	dockerManager docker.IDockerManager
}

func NewConfigtxgenRunner(dockerManager docker.IDockerManager) *ConfigtxgenRunner {
	return &ConfigtxgenRunner{dockerManager: dockerManager}
}

func (r *ConfigtxgenRunner) Generate(ctx context.Context, req *GenesisRequest) error {
	err := r.dockerManager.RunDockerCommand(ctx, req.ConfigDir,
		"run", "--rm",
		"-v", fmt.Sprintf("%s:%s", req.ConfigDir, configtxMount),
		"-e", "FABRIC_CFG_PATH="+configtxMount,
		"-w", configtxMount,
		req.ToolsImage,
		"configtxgen",
		"-profile", req.Profile,
		"-channelID", req.ChannelID,
		"-outputBlock", path.Join(configtxMount, req.OutputFile),
	)
	return errors.Wrapf(err, "configtxgen %s", req.Profile)
}
