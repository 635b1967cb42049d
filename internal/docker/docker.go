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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/hyperledger/leizu/internal/log"
	"github.com/pkg/errors"
)

// RunDockerCommand runs the docker CLI in workingDir. Output is echoed to the
// terminal when the context is verbose.
func RunDockerCommand(ctx context.Context, workingDir string, command ...string) error {
	_, err := runCommand(ctx, workingDir, "docker", command...)
	return err
}

// RunDockerCommandBuffered runs the docker CLI and returns its trimmed stdout.
func RunDockerCommandBuffered(ctx context.Context, workingDir string, command ...string) (string, error) {
	return runCommand(ctx, workingDir, "docker", command...)
}

// RunShellCommand runs a bash command line on the local host.
func RunShellCommand(ctx context.Context, workingDir string, commandLine string) (string, error) {
	return runCommand(ctx, workingDir, "bash", "-c", commandLine)
}

func runCommand(ctx context.Context, workingDir string, name string, args ...string) (string, error) {
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("%s %s", name, strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workingDir
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	if log.VerbosityFromContext(ctx) {
		cmd.Stdout = io.MultiWriter(stdout, os.Stdout)
		cmd.Stderr = io.MultiWriter(stderr, os.Stderr)
	} else {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	}
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", errors.Wrapf(err, "%s %s failed: %s", name, firstArg(args), msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
