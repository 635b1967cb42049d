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

package docker

import (
	"context"
)

type IDockerManager interface {
	RunDockerCommand(ctx context.Context, workingDir string, command ...string) error
	RunDockerCommandBuffered(ctx context.Context, workingDir string, command ...string) (string, error)
	RunShellCommand(ctx context.Context, workingDir string, commandLine string) (string, error)
	CheckDockerConfig(ctx context.Context) error
}

type DockerManager struct{}

func NewDockerManager() *DockerManager {
	return &DockerManager{}
}

func (mgr *DockerManager) RunDockerCommand(ctx context.Context, workingDir string, command ...string) error {
	return RunDockerCommand(ctx, workingDir, command...)
}

func (mgr *DockerManager) RunDockerCommandBuffered(ctx context.Context, workingDir string, command ...string) (string, error) {
	return RunDockerCommandBuffered(ctx, workingDir, command...)
}

func (mgr *DockerManager) RunShellCommand(ctx context.Context, workingDir string, commandLine string) (string, error) {
	return RunShellCommand(ctx, workingDir, commandLine)
}

func (mgr *DockerManager) CheckDockerConfig(ctx context.Context) error {
	return CheckDockerConfig(ctx)
}
