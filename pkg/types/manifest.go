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

package types

import "fmt"

// VersionManifest pins the container images used for one fabric release.
type VersionManifest struct {
	Version   string         `json:"version" yaml:"version"`
	CA        *ManifestEntry `json:"ca,omitempty" yaml:"ca,omitempty"`
	Peer      *ManifestEntry `json:"peer,omitempty" yaml:"peer,omitempty"`
	Orderer   *ManifestEntry `json:"orderer,omitempty" yaml:"orderer,omitempty"`
	Tools     *ManifestEntry `json:"tools,omitempty" yaml:"tools,omitempty"`
	Kafka     *ManifestEntry `json:"kafka,omitempty" yaml:"kafka,omitempty"`
	Zookeeper *ManifestEntry `json:"zookeeper,omitempty" yaml:"zookeeper,omitempty"`
	Consul    *ManifestEntry `json:"consul,omitempty" yaml:"consul,omitempty"`
	CAdvisor  *ManifestEntry `json:"cadvisor,omitempty" yaml:"cadvisor,omitempty"`
}

type ManifestEntry struct {
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
	Tag   string `json:"tag,omitempty" yaml:"tag,omitempty"`
	SHA   string `json:"sha,omitempty" yaml:"sha,omitempty"`
}

func (m *ManifestEntry) GetDockerImageString() string {
	if m.SHA != "" {
		return fmt.Sprintf("%s@sha256:%s", m.Image, m.SHA)
	} else if m.Tag != "" {
		return fmt.Sprintf("%s:%s", m.Image, m.Tag)
	}
	return m.Image
}
