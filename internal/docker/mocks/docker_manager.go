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

package mocks

import (
	"context"
	"strings"
	"sync"
)

// DockerManager records every command instead of running it. Canned outputs
// and errors are matched against the space-joined command line by prefix.
type DockerManager struct {
	Commands [][]string
	Outputs  map[string]string
	Errors   map[string]error
	mux      sync.Mutex
}

func NewDockerManager() *DockerManager {
	return &DockerManager{
		Outputs: map[string]string{},
		Errors:  map[string]error{},
	}
}

func (mgr *DockerManager) RunDockerCommand(ctx context.Context, workingDir string, command ...string) error {
	_, err := mgr.RunDockerCommandBuffered(ctx, workingDir, command...)
	return err
}

func (mgr *DockerManager) RunDockerCommandBuffered(ctx context.Context, workingDir string, command ...string) (string, error) {
	return mgr.record(append([]string{"docker"}, command...))
}

func (mgr *DockerManager) RunShellCommand(ctx context.Context, workingDir string, commandLine string) (string, error) {
	return mgr.record([]string{"bash", "-c", commandLine})
}

func (mgr *DockerManager) CheckDockerConfig(ctx context.Context) error {
	return nil
}

func (mgr *DockerManager) record(command []string) (string, error) {
	mgr.mux.Lock()
	defer mgr.mux.Unlock()
	mgr.Commands = append(mgr.Commands, command)
	line := strings.Join(command, " ")
	for prefix, err := range mgr.Errors {
		if strings.HasPrefix(line, prefix) {
			return "", err
		}
	}
	for prefix, out := range mgr.Outputs {
		if strings.HasPrefix(line, prefix) {
			return out, nil
		}
	}
	return "", nil
}

func (mgr *DockerManager) CommandLines() []string {
	mgr.mux.Lock()
	defer mgr.mux.Unlock()
	lines := make([]string, len(mgr.Commands))
	for i, c := range mgr.Commands {
		lines[i] = strings.Join(c, " ")
	}
	return lines
}
