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

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseRequest = `
name: supply
mode: bare
version: "1.4"
consensus: solo
ordererOrg:
  name: ord
  ca:
    ip: 10.0.0.1
  orderer:
    - ip: 10.0.0.2
peerOrgs:
  - name: org1
    ca:
      ip: 10.0.1.1
    peers:
      - ip: 10.0.1.2
channel:
  name: mychannel
`

const overlay = `
version: "1.4.2"
channel:
  name: otherchannel
`

func writeFile(t *testing.T, dir, name, content string) string {
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadNetworkRequestOverlays(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "network.yaml", baseRequest)
	over := writeFile(t, dir, "override.yaml", overlay)

	req, err := loadNetworkRequest([]string{base})
	require.NoError(t, err)
	assert.Equal(t, "supply", req.Name)
	assert.Equal(t, types.RunModeBare, req.Mode)
	assert.Equal(t, "1.4", req.Version)
	require.Len(t, req.PeerOrgs, 1)
	assert.Equal(t, "10.0.1.2", req.PeerOrgs[0].Peers[0].IP)
	assert.Equal(t, "mychannel", req.Channel.Name)

	req, err = loadNetworkRequest([]string{base, over})
	require.NoError(t, err)
	assert.Equal(t, "supply", req.Name)
	assert.Equal(t, "1.4.2", req.Version)
	assert.Equal(t, "otherchannel", req.Channel.Name)
}

func TestLoadNetworkRequestErrors(t *testing.T) {
	_, err := loadNetworkRequest(nil)
	assert.Error(t, err)

	_, err = loadNetworkRequest([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	s, err := openStore(ctx, config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = openStore(ctx, config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "leizu.db")})
	require.NoError(t, err)
	require.NoError(t, s.Consortiums.Create(ctx, &types.Consortium{ID: "c1", Name: "supply"}))
	require.NoError(t, s.Close())

	_, err = openStore(ctx, config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)
}

func TestPeerHosts(t *testing.T) {
	defer func() { peerIPs, peerNames = nil, nil }()

	peerIPs = nil
	_, err := peerHosts()
	assert.Error(t, err)

	peerIPs = []string{"10.0.1.3", "10.0.1.4"}
	peerNames = []string{"a", "b", "c"}
	_, err = peerHosts()
	assert.Error(t, err)

	peerNames = []string{"anchor"}
	peerSSH.SSHUsername = "ubuntu"
	hosts, err := peerHosts()
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, "anchor", hosts[0].Name)
	assert.Equal(t, "", hosts[1].Name)
	assert.Equal(t, "10.0.1.4", hosts[1].IP)
	assert.Equal(t, "ubuntu", hosts[1].SSHUsername)
	hosts[0].SSHUsername = "root"
	assert.Equal(t, "ubuntu", hosts[1].SSHUsername)
}

func TestInitLogger(t *testing.T) {
	defer func() { logFormat, logLevel, verbose = "text", "info", false }()

	logFormat, logLevel = "json", "warn"
	require.NoError(t, initLogger())
	assert.IsType(t, &log.LogrusLogger{}, logger)

	logFormat, logLevel, verbose = "text", "info", true
	require.NoError(t, initLogger())
	assert.Equal(t, log.Debug, logger.(*log.StdoutLogger).LogLevel)

	logFormat = "xml"
	assert.Error(t, initLogger())
	logFormat, logLevel = "text", "loud"
	assert.Error(t, initLogger())
}

func TestVersionCmd(t *testing.T) {
	BuildVersionOverride = "v0.1.0"
	defer func() { BuildVersionOverride = "" }()

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())

	var info Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, "v0.1.0", info.Version)
	assert.Equal(t, "Apache-2.0", info.License)

	out.Reset()
	rootCmd.SetArgs([]string{"version", "--short"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "v0.1.0\n", out.String())
	shortened = false
}
