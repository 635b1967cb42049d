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
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/docker"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

// Gateway runs container and file operations on one host.
type Gateway interface {
	CheckImage(ctx context.Context, image string) error
	CreateContainer(ctx context.Context, svc *docker.Service) (string, error)
	CreateContainerNetwork(ctx context.Context, name string) error
	TransferFile(ctx context.Context, localPath, remotePath string) error
	Exec(ctx context.Context, commandLine string) (string, error)
}

// Dialer hands out a gateway for a host described in a network request.
type Dialer interface {
	Gateway(host *types.HostSpec) Gateway
}

// NewDialer picks SSH or local execution from the run mode.
func NewDialer(cfg *config.Config, dockerManager docker.IDockerManager) Dialer {
	if cfg.IsRemote() {
		return &sshDialer{port: cfg.SSH.Port, timeout: cfg.SSH.Timeout}
	}
	return &localDialer{dockerManager: dockerManager}
}

type localDialer struct {
	dockerManager docker.IDockerManager
}

func (d *localDialer) Gateway(host *types.HostSpec) Gateway {
	return NewLocalGateway(d.dockerManager)
}

func ValidateImage(image string) error {
	if _, err := name.ParseReference(image); err != nil {
		return errdefs.Invalidf("invalid image reference '%s': %s", image, err)
	}
	return nil
}

// DeliverArchive copies a zip to <remoteDir>.zip and extracts it into remoteDir.
func DeliverArchive(ctx context.Context, g Gateway, localZip, remoteDir string) error {
	remoteZip := remoteDir + ".zip"
	if err := g.TransferFile(ctx, localZip, remoteZip); err != nil {
		return err
	}
	_, err := g.Exec(ctx, fmt.Sprintf("unzip -o %s -d %s", shellQuote(remoteZip), shellQuote(remoteDir)))
	return err
}

// commandRunner is the transport specific part of a gateway.
type commandRunner interface {
	runDocker(ctx context.Context, args ...string) (string, error)
	runShell(ctx context.Context, commandLine string) (string, error)
}

// containerHost implements the docker side of Gateway on top of any runner.
type containerHost struct {
	runner commandRunner
	label  string
}

func (h *containerHost) CheckImage(ctx context.Context, image string) error {
	if err := ValidateImage(image); err != nil {
		return err
	}
	id, err := h.runner.runDocker(ctx, "image", "ls", image, "-q")
	if err != nil {
		return errors.Wrapf(err, "failed to list image %s on %s", image, h.label)
	}
	if id != "" {
		return nil
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("pulling %s on %s", image, h.label))
	if _, err := h.runner.runDocker(ctx, "pull", image); err != nil {
		return errors.Wrapf(err, "failed to pull image %s on %s", image, h.label)
	}
	return nil
}

func (h *containerHost) CreateContainer(ctx context.Context, svc *docker.Service) (string, error) {
	id, err := h.runner.runDocker(ctx, svc.CreateArgs()...)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create container %s on %s", svc.ContainerName, h.label)
	}
	if id == "" {
		return "", errdefs.Fatalf("docker returned no id for container %s on %s", svc.ContainerName, h.label)
	}
	if _, err := h.runner.runDocker(ctx, "start", id); err != nil {
		return "", errors.Wrapf(err, "failed to start container %s on %s", svc.ContainerName, h.label)
	}
	return id, nil
}

func (h *containerHost) CreateContainerNetwork(ctx context.Context, networkName string) error {
	id, err := h.runner.runDocker(ctx, docker.NetworkCreateArgs(networkName, constants.DefaultNetworkDriver)...)
	if err != nil {
		if strings.Contains(err.Error(), fmt.Sprintf("network with name %s already exists", networkName)) {
			log.LoggerFromContext(ctx).Warn(fmt.Sprintf("docker network %s already exists on %s", networkName, h.label))
			return nil
		}
		return errors.Wrapf(err, "failed to create docker network %s on %s", networkName, h.label)
	}
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("docker network %s created on %s", id, h.label))
	return nil
}

func (h *containerHost) Exec(ctx context.Context, commandLine string) (string, error) {
	return h.runner.runShell(ctx, commandLine)
}

func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r == '/' || r == '.' || r == '-' || r == '_' || r == ':' || r == '=' || r == ',' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func remoteDir(path string) string {
	return filepath.ToSlash(filepath.Dir(path))
}
