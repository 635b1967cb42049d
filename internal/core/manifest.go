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

package core

import (
	"context"
	"fmt"
	"os"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"gopkg.in/yaml.v3"
)

// GetManifestForVersion returns the default images of a fabric release.
func GetManifestForVersion(version string) (*types.VersionManifest, error) {
	tag, ok := constants.FabricImageTags[version]
	if !ok {
		return nil, errdefs.Invalidf("fabric version %s is not supported", version)
	}
	return &types.VersionManifest{
		Version:   version,
		CA:        &types.ManifestEntry{Image: constants.CAImageName, Tag: tag},
		Peer:      &types.ManifestEntry{Image: constants.PeerImageName, Tag: tag},
		Orderer:   &types.ManifestEntry{Image: constants.OrdererImageName, Tag: tag},
		Tools:     &types.ManifestEntry{Image: constants.ToolsImageName, Tag: tag},
		Kafka:     &types.ManifestEntry{Image: constants.KafkaImageName, Tag: constants.ThirdPartyImageTag},
		Zookeeper: &types.ManifestEntry{Image: constants.ZookeeperImageName, Tag: constants.ThirdPartyImageTag},
		Consul:    &types.ManifestEntry{Image: constants.ConsulImageName, Tag: constants.ConsulImageTag},
		CAdvisor:  &types.ManifestEntry{Image: constants.CAdvisorImageName, Tag: constants.CAdvisorImageTag},
	}, nil
}

// ReadManifestFile overlays the entries of a yaml or json manifest file onto
// the defaults of its version. Entries left out keep their default image.
func ReadManifestFile(ctx context.Context, p string) (*types.VersionManifest, error) {
	d, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var override types.VersionManifest
	if err := yaml.Unmarshal(d, &override); err != nil {
		return nil, errdefs.Invalidf("manifest %s: %s", p, err)
	}
	manifest, err := GetManifestForVersion(override.Version)
	if err != nil {
		return nil, err
	}
	logger := log.LoggerFromContext(ctx)
	for _, e := range []struct {
		dst **types.ManifestEntry
		src *types.ManifestEntry
	}{
		{&manifest.CA, override.CA},
		{&manifest.Peer, override.Peer},
		{&manifest.Orderer, override.Orderer},
		{&manifest.Tools, override.Tools},
		{&manifest.Kafka, override.Kafka},
		{&manifest.Zookeeper, override.Zookeeper},
		{&manifest.Consul, override.Consul},
		{&manifest.CAdvisor, override.CAdvisor},
	} {
		if e.src != nil {
			*e.dst = e.src
		}
	}
	if err := ValidateManifest(manifest); err != nil {
		return nil, err
	}
	logger.Debug(fmt.Sprintf("using image manifest %s for fabric %s", p, manifest.Version))
	return manifest, nil
}

// ValidateManifest checks that every entry is a well formed image reference.
func ValidateManifest(m *types.VersionManifest) error {
	for _, e := range []*types.ManifestEntry{m.CA, m.Peer, m.Orderer, m.Tools, m.Kafka, m.Zookeeper, m.Consul, m.CAdvisor} {
		if e == nil {
			continue
		}
		if _, err := name.ParseReference(e.GetDockerImageString()); err != nil {
			return errdefs.Invalidf("image %s: %s", e.GetDockerImageString(), err)
		}
	}
	return nil
}
