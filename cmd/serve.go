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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperledger/leizu/internal/api"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	listenAddr      string
	shutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the provisioning REST API",
	Long: `Serve the provisioning REST API

Network requests, consortium extensions and chaincode operations are exposed
under /api/v1. /livez and /readyz report health, and /metrics is served when
metrics are enabled in the configuration.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := listenAddr
		if addr == "" {
			addr = a.cfg.API.Address
		}
		base := logrus.New()
		if logFormat == "json" {
			base.SetFormatter(&logrus.JSONFormatter{})
		}
		apiLogger := log.NewLogrusLogger(base, logrus.Fields{"app": ExecutableName, "component": "api"})
		level, _ := log.LogLevelFromString(logLevel)
		if verbose {
			level = log.Debug
		}
		apiLogger.SetLogLevel(level)

		srv := api.New(&api.ServerConfig{
			ListenAddr:               addr,
			GracefulShutdownDuration: shutdownTimeout,
			ReadTimeout:              time.Minute,
			WriteTimeout:             a.cfg.Wait.Timeout + a.cfg.Chain.Timeout,
		}, &api.Deps{
			Provisioner: a.orchestrator,
			Services:    a.services,
			Store:       a.store,
			Chaincodes:  a.chaincodes,
			Metrics:     a.metrics,
			Logger:      apiLogger,
		})
		srv.RunInBackground()

		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
		<-exit
		srv.Shutdown()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "address to listen on (default is api.address of the configuration)")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "time given to in-flight requests on shutdown")
	rootCmd.AddCommand(serveCmd)
}
