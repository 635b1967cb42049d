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
	"fmt"
	"os"

	"github.com/hyperledger/leizu/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	orgFile    string
	peerIPs    []string
	peerNames  []string
	peerSSH    types.HostSpec
	peerChanID string
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage the organizations of a consortium",
}

var orgAddCmd = &cobra.Command{
	Use:   "add <consortium_id>",
	Short: "Add a peer organization to a running consortium",
	Long: `Add a peer organization to a running consortium

The organization is read from a YAML file with the same shape as an entry of
peerOrgs in a network request. Its certificate authority is started and its
admin enrolled; peers are added afterwards with "peer add".
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if orgFile == "" {
			return fmt.Errorf("no organization file specified")
		}
		raw, err := os.ReadFile(orgFile)
		if err != nil {
			return err
		}
		var spec types.OrgSpec
		if err := yaml.Unmarshal(raw, &spec); err != nil {
			return fmt.Errorf("invalid organization file: %s", err)
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
		org, err := a.orchestrator.AddOrganization(ctx, args[0], &spec)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), org)
	},
}

var orgListCmd = &cobra.Command{
	Use:   "list <consortium_id>",
	Short: "List the organizations of a consortium",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		orgs, err := a.services.Organizations.List(ctx, args[0])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), orgs)
	},
}

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Manage the peers of an organization",
}

// peerHosts pairs every --ip with the --name at the same position, if any.
func peerHosts() ([]*types.HostSpec, error) {
	if len(peerIPs) == 0 {
		return nil, fmt.Errorf("at least one --ip is required")
	}
	if len(peerNames) > len(peerIPs) {
		return nil, fmt.Errorf("got %d names for %d peers", len(peerNames), len(peerIPs))
	}
	hosts := make([]*types.HostSpec, len(peerIPs))
	for i, ip := range peerIPs {
		h := peerSSH
		h.IP = ip
		if i < len(peerNames) {
			h.Name = peerNames[i]
		}
		hosts[i] = &h
	}
	return hosts, nil
}

var peerAddCmd = &cobra.Command{
	Use:   "add <organization_id>",
	Short: "Add peers to an organization",
	Long: `Add peers to an organization

Each --ip starts one peer. With --channel the new peers join that channel,
and the organization is added to the channel first when it is not a member.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hosts, err := peerHosts()
		if err != nil {
			return err
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
		nodes, err := a.orchestrator.AddPeers(ctx, args[0], hosts, peerChanID)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), nodes)
	},
}

var peerListCmd = &cobra.Command{
	Use:   "list <organization_id>",
	Short: "List the peers of an organization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		peers, err := a.services.Peers.List(ctx, args[0])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), peers)
	},
}

func init() {
	orgAddCmd.Flags().StringVarP(&orgFile, "file", "f", "", "organization file")
	for _, c := range []*cobra.Command{orgAddCmd, orgListCmd, peerAddCmd, peerListCmd} {
		c.Flags().StringVarP(&output, "output", "o", "json", "output format (\"yaml\"|\"json\")")
	}

	peerAddCmd.Flags().StringSliceVar(&peerIPs, "ip", nil, "address of a peer host, may be repeated")
	peerAddCmd.Flags().StringSliceVar(&peerNames, "name", nil, "name of the peer at the same position")
	peerAddCmd.Flags().StringVar(&peerSSH.SSHUsername, "ssh-username", "", "SSH user of the peer hosts")
	peerAddCmd.Flags().StringVar(&peerSSH.SSHPassword, "ssh-password", "", "SSH password of the peer hosts")
	peerAddCmd.Flags().StringVar(&peerSSH.SSHKeyPath, "ssh-key", "", "SSH private key of the peer hosts")
	peerAddCmd.Flags().StringVar(&peerChanID, "channel", "", "channel the new peers join")

	orgCmd.AddCommand(orgAddCmd, orgListCmd)
	peerCmd.AddCommand(peerAddCmd, peerListCmd)
	rootCmd.AddCommand(orgCmd)
	rootCmd.AddCommand(peerCmd)
}
