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

package constants

import (
	"os"
	"path/filepath"
	"time"
)

var homeDir, _ = os.UserHomeDir()
var DataDir = filepath.Join(homeDir, ".leizu")
var CryptoDir = filepath.Join(DataDir, "data")

const (
	PortCA             = 7054
	PortOrderer        = 7050
	PortPeer           = 7051
	PortPeerChaincode  = 7052
	PortKafkaBroker    = 9092
	PortZookeeper      = 2181
	PortPeerMetrics    = 9443
	PortOrdererMetrics = 8443
	PortConsul         = 8500
	PortCAdvisor       = 8081
	PortSSH            = 22
)

const (
	DefaultNetworkName   = "fabric_network"
	DefaultNetworkDriver = "bridge"
	BaseDomainName       = "example.com"
	SystemChannel        = "systemchainid"
	GenesisProfile       = "OrdererGenesis"
	ChannelProfile       = "OrgsChannel"
	ConfigTxFile         = "configtx.yaml"
	GenesisBlockFile     = "genesis.block"
	AffiliationRoot      = "leizu"
)

// Paths inside the fabric containers.
const (
	FabricCfgPath   = "/etc/hyperledger/fabric"
	CACfgPath       = "/etc/hyperledger/fabric-ca-server"
	FabricWorkDir   = "/opt/gopath/src/github.com/hyperledger/fabric"
	LocalFabricPath = "/tmp/hyperledger/fabric"
	LocalCAPath     = "/tmp/hyperledger/fabric-ca-server"
)

const (
	BootstrapUser   = "admin"
	BootstrapSecret = "adminpw"
	AdminUser       = "admin-user"
	AdminSecret     = "passw0rd"
)

const (
	WaitDelay    = 5 * time.Second
	WaitInterval = 1 * time.Second
	WaitTimeout  = 30 * time.Second
	// RequestTimeout bounds one call to a CA or consul agent.
	RequestTimeout = 30 * time.Second
)

const (
	RunModeLocal  = "local"
	RunModeRemote = "remote"
)

const (
	CAImageName        = "hyperledger/fabric-ca"
	PeerImageName      = "hyperledger/fabric-peer"
	OrdererImageName   = "hyperledger/fabric-orderer"
	ToolsImageName     = "hyperledger/fabric-tools"
	KafkaImageName     = "hyperledger/fabric-kafka"
	ZookeeperImageName = "hyperledger/fabric-zookeeper"
	ConsulImageName    = "consul"
	CAdvisorImageName  = "google/cadvisor"
)

const (
	ThirdPartyImageTag = "0.4.18"
	ConsulImageTag     = "1.6.2"
	CAdvisorImageTag   = "v0.33.0"
)

// FabricImageTags maps each supported fabric release to the tag of its
// peer, orderer, ca and tools images.
var FabricImageTags = map[string]string{
	"1.2": "1.2.1",
	"1.3": "1.3.0",
	"1.4": "1.4.9",
}

// Instance quotas of a cloud consortium when the request sets none.
const (
	DefaultNormalInstanceLimit = 20
	DefaultHighInstanceLimit   = 10
)
