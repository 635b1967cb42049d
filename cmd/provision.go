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
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/miracl/conflate"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var requestFiles []string

// loadNetworkRequest merges the files in order, later ones overriding
// earlier ones, and decodes the result.
func loadNetworkRequest(files []string) (*types.NetworkRequest, error) {
	if len(files) == 0 {
		return nil, errors.New("no network request file specified")
	}
	c, err := conflate.FromFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("failed merging network request files: %s", err)
	}
	merged, err := c.MarshalYAML()
	if err != nil {
		return nil, err
	}
	var req types.NetworkRequest
	if err := yaml.Unmarshal(merged, &req); err != nil {
		return nil, fmt.Errorf("invalid network request: %s", err)
	}
	return &req, nil
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision a consortium",
	Long: `Provision a consortium

Runs a network request to completion: certificate authorities, peers,
orderers and the channel are created in that order. Several files may be
given with -f; each one overrides the keys of the previous ones.

A failed request is rolled back and printed with its error.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := loadNetworkRequest(requestFiles)
		if err != nil {
			return err
		}

		var spin *spinner.Spinner
		if fancyFeatures && !verbose && output == "json" {
			spin = spinner.New(spinner.CharSets[11], 100*time.Millisecond)
			logger = log.NewSpinnerLogger(spin)
		}
		ctx := commandContext()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.checkDocker(ctx); err != nil {
			return err
		}
		if spin != nil {
			spin.Start()
		}
		pr, err := a.orchestrator.Provision(ctx, req)
		if spin != nil {
			spin.Stop()
		}
		if pr != nil {
			if perr := printResult(cmd.OutOrStdout(), pr); perr != nil {
				return perr
			}
		}
		return err
	},
}

var requestCmd = &cobra.Command{
	Use:   "request <request_id>",
	Short: "Show a provisioning request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		pr, err := a.orchestrator.Request(ctx, args[0])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), pr)
	},
}

func init() {
	provisionCmd.Flags().StringArrayVarP(&requestFiles, "file", "f", nil, "network request file, may be repeated to layer overrides")
	provisionCmd.Flags().StringVarP(&output, "output", "o", "json", "output format (\"yaml\"|\"json\")")
	requestCmd.Flags().StringVarP(&output, "output", "o", "json", "output format (\"yaml\"|\"json\")")

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(requestCmd)
}
