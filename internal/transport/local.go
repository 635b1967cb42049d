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
	"os"
	"path/filepath"

	"github.com/hyperledger/leizu/internal/docker"
	"github.com/otiai10/copy"
	"github.com/pkg/errors"
)

// LocalGateway runs everything on this machine. Used when all nodes share one
// docker daemon.
type LocalGateway struct {
	*containerHost
}

func NewLocalGateway(dockerManager docker.IDockerManager) *LocalGateway {
	return &LocalGateway{
		containerHost: &containerHost{
			runner: &localRunner{dockerManager: dockerManager},
			label:  "localhost",
		},
	}
}

func (g *LocalGateway) TransferFile(ctx context.Context, localPath, remotePath string) error {
	if filepath.Clean(localPath) == filepath.Clean(remotePath) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(remotePath), 0755); err != nil {
		return err
	}
	if err := copy.Copy(localPath, remotePath); err != nil {
		return errors.Wrapf(err, "failed to copy %s to %s", localPath, remotePath)
	}
	return nil
}

type localRunner struct {
	dockerManager docker.IDockerManager
}

func (r *localRunner) runDocker(ctx context.Context, args ...string) (string, error) {
	return r.dockerManager.RunDockerCommandBuffered(ctx, "", args...)
}

func (r *localRunner) runShell(ctx context.Context, commandLine string) (string, error) {
	return r.dockerManager.RunShellCommand(ctx, "", commandLine)
}
