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

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Equal(t, constants.RunModeLocal, cfg.RunMode)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Wait.Delay)
	assert.Equal(t, time.Second, cfg.Wait.Interval)
	assert.Equal(t, 30*time.Second, cfg.Wait.Timeout)
	assert.Equal(t, 30*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "leizu", cfg.Identity.AffiliationRoot)
	assert.Equal(t, constants.LocalFabricPath, cfg.FabricHostPath())
	assert.Equal(t, constants.LocalCAPath, cfg.CAHostPath())
}

func TestLoadFromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	err := v.ReadConfig(strings.NewReader(`
runMode: remote
tlsEnabled: true
store:
  driver: sqlite
  dsn: file::memory:
wait:
  delay: 0s
  interval: 200ms
  timeout: 2s
http:
  requestTimeout: 5s
cloud:
  securityGroupIds: [sg-1, sg-2]
`))
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.True(t, cfg.IsRemote())
	assert.True(t, cfg.TLSEnabled)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 200*time.Millisecond, cfg.Wait.Interval)
	assert.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, []string{"sg-1", "sg-2"}, cfg.Cloud.SecurityGroupIDs)
	assert.Equal(t, constants.FabricCfgPath, cfg.FabricHostPath())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		Name string
		Key  string
		Val  interface{}
	}{
		{Name: "run mode", Key: "runMode", Val: "cluster"},
		{Name: "store driver", Key: "store.driver", Val: "mongodb"},
		{Name: "wait interval", Key: "wait.interval", Val: "0s"},
		{Name: "request timeout", Key: "http.requestTimeout", Val: "0s"},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			v := viper.New()
			v.Set(tc.Key, tc.Val)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}
