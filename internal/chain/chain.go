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

package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyperledger/leizu/pkg/types"
)

// Identity is the signing identity a call is submitted with.
type Identity struct {
	MSPID       string `json:"mspId"`
	Certificate string `json:"certificate"`
	PrivateKey  string `json:"privateKey"`
}

// Endpoint addresses a peer or orderer.
type Endpoint struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	TLSRootCert string `json:"tlsRootCert,omitempty"`
}

type AnchorPeer struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type ChannelOrganization struct {
	Name        string       `json:"name"`
	MSPID       string       `json:"mspId"`
	AnchorPeers []AnchorPeer `json:"anchorPeers"`
}

type CreateChannelRequest struct {
	Channel       string                 `json:"channel"`
	Consortium    string                 `json:"consortium"`
	Version       string                 `json:"version"`
	Organizations []*ChannelOrganization `json:"organizations"`
	Admin         Identity               `json:"admin"`
	Orderer       Endpoint               `json:"orderer"`
	// Profile is the configtx.yaml holding the channel creation profile.
	Profile string `json:"profile,omitempty"`
}

type JoinChannelRequest struct {
	Channel string     `json:"channel"`
	Admin   Identity   `json:"admin"`
	Orderer Endpoint   `json:"orderer"`
	Peers   []Endpoint `json:"peers"`
}

type UpdateChannelRequest struct {
	Channel      string               `json:"channel"`
	Organization *ChannelOrganization `json:"organization"`
	Signers      []Identity           `json:"signers"`
	Orderer      Endpoint             `json:"orderer"`
}

type InstallRequest struct {
	Admin   Identity   `json:"admin"`
	Peers   []Endpoint `json:"peers"`
	Name    string     `json:"name"`
	Version string     `json:"version"`
	Path    string     `json:"path"`
	Type    string     `json:"type"`
}

type DeployRequest struct {
	Channel  string                   `json:"channel"`
	Admin    Identity                 `json:"admin"`
	Peers    []Endpoint               `json:"peers"`
	Orderer  Endpoint                 `json:"orderer"`
	Name     string                   `json:"name"`
	Version  string                   `json:"version"`
	Type     string                   `json:"type"`
	Function string                   `json:"function"`
	Args     []string                 `json:"args"`
	Policy   *types.EndorsementPolicy `json:"endorsementPolicy"`
}

type TransactionRequest struct {
	Channel   string     `json:"channel"`
	Signer    Identity   `json:"signer"`
	Peers     []Endpoint `json:"peers"`
	Orderer   Endpoint   `json:"orderer"`
	Chaincode string     `json:"chaincode"`
	Function  string     `json:"function"`
	Args      []string   `json:"args"`
}

type TransactionResult struct {
	TxID    string `json:"txId,omitempty"`
	Payload string `json:"payload,omitempty"`
}

type LedgerQuery struct {
	Channel string   `json:"channel"`
	Signer  Identity `json:"signer"`
	Peer    Endpoint `json:"peer"`
}

type BlockchainInfo struct {
	Height            uint64 `json:"height"`
	CurrentBlockHash  string `json:"currentBlockHash"`
	PreviousBlockHash string `json:"previousBlockHash"`
}

// Client is the ledger-facing collaborator. Every call is made on behalf of an
// organization's admin identity against explicit peer/orderer endpoints.
type Client interface {
	CreateChannel(ctx context.Context, req *CreateChannelRequest) error
	JoinChannel(ctx context.Context, req *JoinChannelRequest) error
	UpdateChannelConfig(ctx context.Context, req *UpdateChannelRequest) error
	InstallChaincode(ctx context.Context, req *InstallRequest) (string, error)
	InstantiateChaincode(ctx context.Context, req *DeployRequest) (string, error)
	UpgradeChaincode(ctx context.Context, req *DeployRequest) (string, error)
	InvokeChaincode(ctx context.Context, req *TransactionRequest) (*TransactionResult, error)
	QueryChaincode(ctx context.Context, req *TransactionRequest) (*TransactionResult, error)
	QueryBlockchainInfo(ctx context.Context, q *LedgerQuery) (*BlockchainInfo, error)
	GetBlockByNumber(ctx context.Context, q *LedgerQuery, number uint64) (json.RawMessage, error)
	GetBlockByTxID(ctx context.Context, q *LedgerQuery, txID string) (json.RawMessage, error)
}

func AdminIdentity(org *types.Organization) Identity {
	return Identity{
		MSPID:       org.MSPID,
		Certificate: org.AdminCert,
		PrivateKey:  org.AdminKey,
	}
}

// NodeEndpoint addresses node by its registered location. With TLS the
// organization's TLS root is attached so the gateway can verify the node.
func NodeEndpoint(node *types.Node, org *types.Organization, tlsEnabled bool) Endpoint {
	scheme := "grpc"
	rootCert := ""
	if tlsEnabled {
		scheme = "grpcs"
		rootCert = org.TLSRootCert
	}
	return Endpoint{
		Name:        types.EnrollmentID(node.Name, org.DomainName),
		URL:         fmt.Sprintf("%s://%s", scheme, node.Location),
		TLSRootCert: rootCert,
	}
}

// ChannelOrganizationOf describes a peer organization with its peers as
// anchors.
func ChannelOrganizationOf(org *types.Organization, peers []*types.Node) (*ChannelOrganization, error) {
	co := &ChannelOrganization{Name: org.Name, MSPID: org.MSPID, AnchorPeers: []AnchorPeer{}}
	for _, p := range peers {
		host, port, err := p.HostPort()
		if err != nil {
			return nil, err
		}
		co.AnchorPeers = append(co.AnchorPeers, AnchorPeer{Host: host, Port: port})
	}
	return co, nil
}
