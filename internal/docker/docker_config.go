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
	"fmt"
	"sort"
)

type LoggingConfig struct {
	Driver  string            `yaml:"driver,omitempty"`
	Options map[string]string `yaml:"options,omitempty"`
}

var StandardLogOptions = &LoggingConfig{
	Driver: "json-file",
	Options: map[string]string{
		"max-size": "10m",
		"max-file": "1",
	},
}

// Service describes one container to be created with `docker create`.
type Service struct {
	ContainerName string            `yaml:"container_name,omitempty"`
	Hostname      string            `yaml:"hostname,omitempty"`
	Image         string            `yaml:"image,omitempty"`
	Network       string            `yaml:"network,omitempty"`
	WorkingDir    string            `yaml:"working_dir,omitempty"`
	Privileged    bool              `yaml:"privileged,omitempty"`
	Environment   map[string]string `yaml:"environment,omitempty"`
	Volumes       []string          `yaml:"volumes,omitempty"`
	Ports         []string          `yaml:"ports,omitempty"`
	DNS           []string          `yaml:"dns,omitempty"`
	DNSSearch     []string          `yaml:"dns_search,omitempty"`
	ExtraHosts    []string          `yaml:"extra_hosts,omitempty"`
	Logging       *LoggingConfig    `yaml:"logging,omitempty"`
	// A single entry is run through `/bin/bash -c`, several are passed as-is.
	Command []string `yaml:"command,omitempty"`
}

// CreateArgs renders the service as docker CLI arguments starting with
// "create". Environment variables are emitted in key order so the same
// service always yields the same command line.
func (s *Service) CreateArgs() []string {
	args := []string{"create", "--name", s.ContainerName}
	if s.Hostname != "" {
		args = append(args, "--hostname", s.Hostname)
	}
	if s.Network != "" {
		args = append(args, "--network", s.Network)
	}
	if s.Privileged {
		args = append(args, "--privileged=true")
	}
	if s.WorkingDir != "" {
		args = append(args, "-w", s.WorkingDir)
	}
	for _, p := range s.Ports {
		args = append(args, "-p", p)
	}
	keys := make([]string, 0, len(s.Environment))
	for k := range s.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, s.Environment[k]))
	}
	for _, v := range s.Volumes {
		args = append(args, "-v", v)
	}
	for _, d := range s.DNS {
		args = append(args, "--dns", d)
	}
	for _, d := range s.DNSSearch {
		args = append(args, "--dns-search", d)
	}
	for _, h := range s.ExtraHosts {
		args = append(args, "--add-host", h)
	}
	if s.Logging != nil {
		args = append(args, "--log-driver", s.Logging.Driver)
		opts := make([]string, 0, len(s.Logging.Options))
		for k, v := range s.Logging.Options {
			opts = append(opts, fmt.Sprintf("%s=%s", k, v))
		}
		sort.Strings(opts)
		for _, o := range opts {
			args = append(args, "--log-opt", o)
		}
	}
	args = append(args, s.Image)
	switch len(s.Command) {
	case 0:
	case 1:
		args = append(args, "/bin/bash", "-c", s.Command[0])
	default:
		args = append(args, s.Command...)
	}
	return args
}

func NetworkCreateArgs(name, driver string) []string {
	return []string{"network", "create", "--driver", driver, name}
}
