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

// Package config builds the immutable runtime configuration that is handed to
// every component explicitly. Nothing in the core reads viper directly.
package config

import (
	"fmt"
	"time"

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/spf13/viper"
)

type StoreConfig struct {
	Driver string
	DSN    string
}

type WaitConfig struct {
	Delay    time.Duration
	Interval time.Duration
	Timeout  time.Duration
}

type SSHConfig struct {
	Port    int
	Timeout time.Duration
}

type IdentityConfig struct {
	AffiliationRoot string
}

type CloudConfig struct {
	Region             string
	ImageID            string
	NormalInstanceType string
	HighInstanceType   string
	KeyName            string
	SubnetID           string
	SecurityGroupIDs   []string
	SSHUsername        string
	SSHKeyPath         string
}

type ArchiveConfig struct {
	Bucket string
	Prefix string
	Dir    string
}

type ChainConfig struct {
	GatewayURL string
	Timeout    time.Duration
}

type HTTPConfig struct {
	RequestTimeout time.Duration
}

type SidecarConfig struct {
	ConsulServer string
}

type APIConfig struct {
	Address string
}

type Config struct {
	RunMode        string
	TLSEnabled     bool
	FabricLogLevel string
	BaseDomain     string
	CryptoPath     string
	MetricsEnabled bool
	Store          StoreConfig
	HTTP           HTTPConfig
	Wait           WaitConfig
	SSH            SSHConfig
	Identity       IdentityConfig
	Cloud          CloudConfig
	Archive        ArchiveConfig
	Chain          ChainConfig
	Sidecar        SidecarConfig
	API            APIConfig
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("runMode", constants.RunModeLocal)
	v.SetDefault("tlsEnabled", false)
	v.SetDefault("fabricLogLevel", "INFO")
	v.SetDefault("baseDomain", constants.BaseDomainName)
	v.SetDefault("cryptoPath", constants.CryptoDir)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("http.requestTimeout", constants.RequestTimeout)
	v.SetDefault("wait.delay", constants.WaitDelay)
	v.SetDefault("wait.interval", constants.WaitInterval)
	v.SetDefault("wait.timeout", constants.WaitTimeout)
	v.SetDefault("ssh.port", constants.PortSSH)
	v.SetDefault("ssh.timeout", 30*time.Second)
	v.SetDefault("identity.affiliationRoot", constants.AffiliationRoot)
	v.SetDefault("cloud.region", "us-east-1")
	v.SetDefault("cloud.normalInstanceType", "t3.medium")
	v.SetDefault("cloud.highInstanceType", "m5.xlarge")
	v.SetDefault("cloud.sshUsername", "ubuntu")
	v.SetDefault("chain.timeout", 2*time.Minute)
	v.SetDefault("sidecar.consulServer", "127.0.0.1")
	v.SetDefault("api.address", "0.0.0.0:8080")
}

// Load reads the configuration out of v, after applying defaults.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	cfg := &Config{
		RunMode:        v.GetString("runMode"),
		TLSEnabled:     v.GetBool("tlsEnabled"),
		FabricLogLevel: v.GetString("fabricLogLevel"),
		BaseDomain:     v.GetString("baseDomain"),
		CryptoPath:     v.GetString("cryptoPath"),
		MetricsEnabled: v.GetBool("metrics.enabled"),
		Store: StoreConfig{
			Driver: v.GetString("store.driver"),
			DSN:    v.GetString("store.dsn"),
		},
		HTTP: HTTPConfig{
			RequestTimeout: v.GetDuration("http.requestTimeout"),
		},
		Wait: WaitConfig{
			Delay:    v.GetDuration("wait.delay"),
			Interval: v.GetDuration("wait.interval"),
			Timeout:  v.GetDuration("wait.timeout"),
		},
		SSH: SSHConfig{
			Port:    v.GetInt("ssh.port"),
			Timeout: v.GetDuration("ssh.timeout"),
		},
		Identity: IdentityConfig{
			AffiliationRoot: v.GetString("identity.affiliationRoot"),
		},
		Cloud: CloudConfig{
			Region:             v.GetString("cloud.region"),
			ImageID:            v.GetString("cloud.imageId"),
			NormalInstanceType: v.GetString("cloud.normalInstanceType"),
			HighInstanceType:   v.GetString("cloud.highInstanceType"),
			KeyName:            v.GetString("cloud.keyName"),
			SubnetID:           v.GetString("cloud.subnetId"),
			SecurityGroupIDs:   v.GetStringSlice("cloud.securityGroupIds"),
			SSHUsername:        v.GetString("cloud.sshUsername"),
			SSHKeyPath:         v.GetString("cloud.sshKeyPath"),
		},
		Archive: ArchiveConfig{
			Bucket: v.GetString("archive.bucket"),
			Prefix: v.GetString("archive.prefix"),
			Dir:    v.GetString("archive.dir"),
		},
		Chain: ChainConfig{
			GatewayURL: v.GetString("chain.gatewayURL"),
			Timeout:    v.GetDuration("chain.timeout"),
		},
		Sidecar: SidecarConfig{
			ConsulServer: v.GetString("sidecar.consulServer"),
		},
		API: APIConfig{
			Address: v.GetString("api.address"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration obtained with no file and no environment.
func Default() *Config {
	cfg, _ := Load(viper.New())
	return cfg
}

func (c *Config) Validate() error {
	if c.RunMode != constants.RunModeLocal && c.RunMode != constants.RunModeRemote {
		return fmt.Errorf("\"%s\" is not a valid run mode. valid options are: [%s %s]", c.RunMode, constants.RunModeLocal, constants.RunModeRemote)
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("\"%s\" is not a valid store driver. valid options are: [memory sqlite postgres]", c.Store.Driver)
	}
	if c.Wait.Interval <= 0 || c.Wait.Timeout <= 0 {
		return fmt.Errorf("wait interval and timeout must be positive")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("http request timeout must be positive")
	}
	return nil
}

func (c *Config) IsRemote() bool {
	return c.RunMode == constants.RunModeRemote
}

// FabricHostPath is the directory on a node host that holds peer and orderer
// material. Local runs keep everything under /tmp.
func (c *Config) FabricHostPath() string {
	if c.IsRemote() {
		return constants.FabricCfgPath
	}
	return constants.LocalFabricPath
}

func (c *Config) CAHostPath() string {
	if c.IsRemote() {
		return constants.CACfgPath
	}
	return constants.LocalCAPath
}
