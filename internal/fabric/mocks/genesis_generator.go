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
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperledger/leizu/internal/fabric"
)

// GenesisGenerator writes a placeholder block and keeps the staged
// configtx.yaml of every request.
type GenesisGenerator struct {
	Requests []*fabric.GenesisRequest
	ConfigTx []string
	Err      error
	mux      sync.Mutex
}

func (g *GenesisGenerator) Generate(ctx context.Context, req *fabric.GenesisRequest) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.Requests = append(g.Requests, req)
	if g.Err != nil {
		return g.Err
	}
	configtx, err := os.ReadFile(filepath.Join(req.ConfigDir, "configtx.yaml"))
	if err != nil {
		return err
	}
	g.ConfigTx = append(g.ConfigTx, string(configtx))
	return os.WriteFile(filepath.Join(req.ConfigDir, req.OutputFile), []byte(fmt.Sprintf("block:%s:%s", req.Profile, req.ChannelID)), 0644)
}
