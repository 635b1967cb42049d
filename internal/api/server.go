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

// Package api is the HTTP front door of the provisioning service. Every
// answer is wrapped in the {code, status, data, msg} envelope.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperledger/leizu/internal/chaincode"
	"github.com/hyperledger/leizu/internal/fabric"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/internal/metrics"
	"github.com/hyperledger/leizu/internal/orchestrator"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

type ServerConfig struct {
	ListenAddr               string
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

// Deps are the components the handlers call into. Metrics is optional.
type Deps struct {
	Provisioner orchestrator.Provisioner
	Services    *fabric.Services
	Store       *store.Store
	Chaincodes  *chaincode.Manager
	Metrics     *metrics.Metrics
	Logger      *log.LogrusLogger
}

type Server struct {
	cfg     *ServerConfig
	deps    *Deps
	isReady atomic.Bool
	srv     *http.Server
}

func New(cfg *ServerConfig, deps *Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.NewLogrusLogger(nil, logrus.Fields{"component": "api"})
	}
	s := &Server{cfg: cfg, deps: deps}
	s.isReady.Store(true)
	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) Router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(s.requestLogger)

	mux.Get("/livez", s.handleLiveness)
	mux.Get("/readyz", s.handleReadiness)
	if s.deps.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	mux.Route("/api/v1", func(r chi.Router) {
		r.Post("/requests", s.handleProvision)
		r.Get("/requests/{id}", s.handleGetRequest)

		r.Get("/consortiums", s.handleListConsortiums)
		r.Get("/consortiums/{id}", s.handleGetConsortium)
		r.Get("/consortiums/{id}/organizations", s.handleListOrganizations)
		r.Post("/consortiums/{id}/organizations", s.handleAddOrganization)
		r.Get("/consortiums/{id}/channels", s.handleListChannels)
		r.Get("/consortiums/{id}/chaincodes", s.handleListChaincodes)

		r.Get("/organizations/{id}/peers", s.handleListPeers)
		r.Post("/organizations/{id}/peers", s.handleAddPeers)

		r.Post("/chaincodes", s.handleUploadChaincode)
		r.Get("/chaincodes/{id}", s.handleGetChaincode)
		r.Get("/chaincodes/{id}/records", s.handleChaincodeRecords)
		r.Post("/chaincodes/{id}/install", s.handleInstallChaincode)
		r.Post("/chaincodes/{id}/deploy", s.handleDeployChaincode)
		r.Post("/chaincodes/{id}/invoke", s.handleInvokeChaincode)
		r.Post("/chaincodes/{id}/query", s.handleQueryChaincode)
	})
	return mux
}

// requestLogger attaches a logger tagged with the request id, so that
// everything a handler triggers logs under it.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := s.deps.Logger.WithField("request", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(log.WithLogger(r.Context(), l)))
		l.Debug(fmt.Sprintf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond)))
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !s.isReady.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) RunInBackground() {
	go func() {
		s.deps.Logger.Info(fmt.Sprintf("starting HTTP server on %s", s.cfg.ListenAddr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Logger.Error(fmt.Errorf("HTTP server failed: %w", err))
		}
	}()
}

// Shutdown marks the server not ready, then waits for in-flight requests.
func (s *Server) Shutdown() {
	s.isReady.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.deps.Logger.Error(fmt.Errorf("graceful HTTP server shutdown failed: %w", err))
		return
	}
	s.deps.Logger.Info("HTTP server gracefully stopped")
}
