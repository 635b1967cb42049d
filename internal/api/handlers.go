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

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperledger/leizu/internal/chaincode"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/pkg/types"
)

type AddPeersRequest struct {
	Hosts     []*types.HostSpec `json:"hosts"`
	ChannelID string            `json:"channelId,omitempty"`
}

type InstallRequest struct {
	PeerIDs []string `json:"peerIds"`
}

type TransactionRequest struct {
	ChannelID string   `json:"channelId"`
	Function  string   `json:"function"`
	Args      []string `json:"args"`
}

// handleProvision runs the request synchronously. A failed pipeline still
// returns the request record, in error state, alongside the message.
func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req types.NetworkRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, nil)
		return
	}
	pr, err := s.deps.Provisioner.Provision(r.Context(), &req)
	if err != nil {
		fail(w, err, pr)
		return
	}
	respond(w, pr)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	pr, err := s.deps.Provisioner.Request(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, pr)
}

func (s *Server) handleListConsortiums(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Store.Consortiums.Find(r.Context(), store.Filter{})
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, list)
}

func (s *Server) handleGetConsortium(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Store.Consortiums.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, c)
}

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.deps.Services.Organizations.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, orgs)
}

func (s *Server) handleAddOrganization(w http.ResponseWriter, r *http.Request) {
	var spec types.OrgSpec
	if err := decode(r, &spec); err != nil {
		fail(w, err, nil)
		return
	}
	org, err := s.deps.Provisioner.AddOrganization(r.Context(), chi.URLParam(r, "id"), &spec)
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, org)
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.deps.Store.Channels.ListByConsortium(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, channels)
}

func (s *Server) handleListPeers(w http.ResponseWriter, r *http.Request) {
	peers, err := s.deps.Services.Peers.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, peers)
}

func (s *Server) handleAddPeers(w http.ResponseWriter, r *http.Request) {
	var req AddPeersRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, nil)
		return
	}
	nodes, err := s.deps.Provisioner.AddPeers(r.Context(), chi.URLParam(r, "id"), req.Hosts, req.ChannelID)
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, nodes)
}

func (s *Server) handleUploadChaincode(w http.ResponseWriter, r *http.Request) {
	var req chaincode.UploadRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, nil)
		return
	}
	cc, err := s.deps.Chaincodes.Upload(r.Context(), &req)
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, cc)
}

func (s *Server) handleGetChaincode(w http.ResponseWriter, r *http.Request) {
	cc, err := s.deps.Chaincodes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, cc)
}

func (s *Server) handleListChaincodes(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Chaincodes.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, list)
}

func (s *Server) handleChaincodeRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Chaincodes.Records(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, records)
}

func (s *Server) handleInstallChaincode(w http.ResponseWriter, r *http.Request) {
	var req InstallRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, nil)
		return
	}
	messages, err := s.deps.Chaincodes.Install(r.Context(), chi.URLParam(r, "id"), req.PeerIDs)
	if err != nil {
		fail(w, err, messages)
		return
	}
	respond(w, messages)
}

// handleDeployChaincode answers 200 only when every channel succeeded. The
// per channel results are returned either way.
func (s *Server) handleDeployChaincode(w http.ResponseWriter, r *http.Request) {
	var req chaincode.DeployRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, nil)
		return
	}
	req.ChaincodeID = chi.URLParam(r, "id")
	if len(req.ChannelIDs) == 0 {
		fail(w, errdefs.Invalidf("at least one channel is required"), nil)
		return
	}
	results := s.deps.Chaincodes.Deploy(r.Context(), &req)
	for _, res := range results {
		if err := res.Err(); err != nil {
			fail(w, err, results)
			return
		}
	}
	respond(w, results)
}

func (s *Server) handleInvokeChaincode(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, nil)
		return
	}
	res, err := s.deps.Chaincodes.Invoke(r.Context(), chi.URLParam(r, "id"), req.ChannelID, req.Function, req.Args)
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, res)
}

func (s *Server) handleQueryChaincode(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, nil)
		return
	}
	res, err := s.deps.Chaincodes.Query(r.Context(), chi.URLParam(r, "id"), req.ChannelID, req.Function, req.Args)
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, res)
}
