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
	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/chaincode"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/spf13/cobra"
)

var (
	ccUpload   chaincode.UploadRequest
	ccType     string
	ccPeers    []string
	ccDeploy   chaincode.DeployRequest
	ccUpgrade  bool
	ccChannel  string
	ccFunction string
	ccArgs     []string
)

var chaincodeCmd = &cobra.Command{
	Use:     "chaincode",
	Aliases: []string{"cc"},
	Short:   "Manage the chaincodes of a consortium",
}

// chaincodeRunE wraps a chaincode subcommand with the app lifecycle and
// prints whatever fn returns.
func chaincodeRunE(fn func(cmd *cobra.Command, a *app, args []string) (interface{}, error)) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := commandContext()
		cmd.SetContext(ctx)
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := fn(cmd, a, args)
		if res != nil {
			if perr := printResult(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
		}
		return err
	}
}

var chaincodeUploadCmd = &cobra.Command{
	Use:   "upload <consortium_id> <name> <version> <path>",
	Short: "Register a chaincode with a consortium",
	Args:  cobra.ExactArgs(4),
	RunE: chaincodeRunE(func(cmd *cobra.Command, a *app, args []string) (interface{}, error) {
		req := ccUpload
		req.ConsortiumID, req.Name, req.Version, req.Path = args[0], args[1], args[2], args[3]
		req.Type = fftypes.FFEnum(ccType)
		cc, err := a.chaincodes.Upload(cmd.Context(), &req)
		if err != nil {
			return nil, err
		}
		return cc, nil
	}),
}

var chaincodeInstallCmd = &cobra.Command{
	Use:   "install <chaincode_id>",
	Short: "Install a chaincode on peers",
	Long: `Install a chaincode on peers

Peers are grouped by organization and each group is installed with the
credentials of its organization admin. Without --peer the chaincode is
installed again on the peers it was recorded on.
`,
	Args: cobra.ExactArgs(1),
	RunE: chaincodeRunE(func(cmd *cobra.Command, a *app, args []string) (interface{}, error) {
		messages, err := a.chaincodes.Install(cmd.Context(), args[0], ccPeers)
		if messages == nil {
			return nil, err
		}
		return messages, err
	}),
}

var chaincodeDeployCmd = &cobra.Command{
	Use:   "deploy <chaincode_id> <channel_id>...",
	Short: "Instantiate or upgrade a chaincode on channels",
	Args:  cobra.MinimumNArgs(2),
	RunE: chaincodeRunE(func(cmd *cobra.Command, a *app, args []string) (interface{}, error) {
		req := ccDeploy
		req.ChaincodeID = args[0]
		req.ChannelIDs = args[1:]
		req.Op = types.ChaincodeOpInstantiate
		if ccUpgrade {
			req.Op = types.ChaincodeOpUpgrade
		}
		results := a.chaincodes.Deploy(cmd.Context(), &req)
		for _, r := range results {
			if err := r.Err(); err != nil {
				return results, err
			}
		}
		return results, nil
	}),
}

var chaincodeInvokeCmd = &cobra.Command{
	Use:   "invoke <chaincode_id>",
	Short: "Submit a chaincode transaction",
	Args:  cobra.ExactArgs(1),
	RunE: chaincodeRunE(func(cmd *cobra.Command, a *app, args []string) (interface{}, error) {
		res, err := a.chaincodes.Invoke(cmd.Context(), args[0], ccChannel, ccFunction, ccArgs)
		if err != nil {
			return nil, err
		}
		return res, nil
	}),
}

var chaincodeQueryCmd = &cobra.Command{
	Use:   "query <chaincode_id>",
	Short: "Evaluate a chaincode function without ordering",
	Args:  cobra.ExactArgs(1),
	RunE: chaincodeRunE(func(cmd *cobra.Command, a *app, args []string) (interface{}, error) {
		res, err := a.chaincodes.Query(cmd.Context(), args[0], ccChannel, ccFunction, ccArgs)
		if err != nil {
			return nil, err
		}
		return res, nil
	}),
}

var chaincodeRecordsCmd = &cobra.Command{
	Use:   "records <chaincode_id>",
	Short: "List the operation history of a chaincode",
	Args:  cobra.ExactArgs(1),
	RunE: chaincodeRunE(func(cmd *cobra.Command, a *app, args []string) (interface{}, error) {
		records, err := a.chaincodes.Records(cmd.Context(), args[0])
		if err != nil {
			return nil, err
		}
		return records, nil
	}),
}

func init() {
	chaincodeUploadCmd.Flags().StringVar(&ccType, "type", "golang", "chaincode language (\"golang\"|\"node\"|\"java\")")
	chaincodeUploadCmd.Flags().StringVar(&ccUpload.Desc, "desc", "", "free form description")

	chaincodeInstallCmd.Flags().StringSliceVar(&ccPeers, "peer", nil, "peer to install on, may be repeated")

	chaincodeDeployCmd.Flags().StringVar(&ccDeploy.Function, "function", "init", "function run at instantiation")
	chaincodeDeployCmd.Flags().StringSliceVar(&ccDeploy.Args, "arg", nil, "argument of the function, may be repeated")
	chaincodeDeployCmd.Flags().StringVar(&ccDeploy.PolicyType, "policy", types.PolicyMajority, "endorsement policy")
	chaincodeDeployCmd.Flags().BoolVar(&ccUpgrade, "upgrade", false, "upgrade instead of instantiate")

	for _, c := range []*cobra.Command{chaincodeInvokeCmd, chaincodeQueryCmd} {
		c.Flags().StringVar(&ccChannel, "channel", "", "channel id")
		c.Flags().StringVar(&ccFunction, "function", "", "function name")
		c.Flags().StringSliceVar(&ccArgs, "arg", nil, "argument of the function, may be repeated")
	}

	for _, c := range []*cobra.Command{chaincodeUploadCmd, chaincodeInstallCmd, chaincodeDeployCmd, chaincodeInvokeCmd, chaincodeQueryCmd, chaincodeRecordsCmd} {
		c.Flags().StringVarP(&output, "output", "o", "json", "output format (\"yaml\"|\"json\")")
		chaincodeCmd.AddCommand(c)
	}
	rootCmd.AddCommand(chaincodeCmd)
}
