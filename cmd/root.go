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
	"context"
	"fmt"
	"os"

	"github.com/hyperledger/leizu/internal/log"
	"github.com/mattn/go-isatty"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	logLevel  string

	fancyFeatures = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	logger        log.Logger = &log.StdoutLogger{LogLevel: log.Info}
)

var ExecutableName = "leizu"

var rootCmd = &cobra.Command{
	Use:   ExecutableName,
	Short: "Leizu provisions and operates Hyperledger Fabric consortiums",
	Long: `Leizu provisions and operates Hyperledger Fabric consortiums

It stands up certificate authorities, peers, orderers and the first channel
of a consortium from one network request, on local docker, on remote hosts
over SSH, or on cloud instances it allocates itself. Chaincodes are then
uploaded, installed, instantiated and invoked through the same tool.

To get started run: leizu provision -f network.yaml
	`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.leizu.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose log output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (\"text\"|\"json\")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (\"trace\"|\"debug\"|\"info\"|\"warn\"|\"error\")")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigName(".leizu")
	}

	viper.SetEnvPrefix("LEIZU")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogger picks the logger every command runs with. JSON output goes
// through logrus so that it can be shipped as is.
func initLogger() error {
	level, err := log.LogLevelFromString(logLevel)
	if err != nil {
		return err
	}
	if verbose {
		level = log.Debug
	}
	switch logFormat {
	case "json":
		base := logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.JSONFormatter{})
		logger = log.NewLogrusLogger(base, logrus.Fields{"app": ExecutableName})
	case "text":
		logger = &log.StdoutLogger{}
	default:
		return fmt.Errorf("\"%s\" is not a valid log format. valid options are: [text json]", logFormat)
	}
	logger.SetLogLevel(level)
	return nil
}

func commandContext() context.Context {
	ctx := log.WithVerbosity(context.Background(), verbose)
	return log.WithLogger(ctx, logger)
}
