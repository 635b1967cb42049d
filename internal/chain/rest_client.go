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
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperledger/leizu/internal/core"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/pkg/errors"
)

// RESTClient talks to a Fabric gateway sidecar that exposes the ledger
// operations as JSON endpoints.
type RESTClient struct {
	baseURL string
	timeout time.Duration
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{baseURL: strings.TrimSuffix(baseURL, "/"), timeout: timeout}
}

type resultResponse struct {
	Result string `json:"result"`
}

func (c *RESTClient) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func (c *RESTClient) post(ctx context.Context, u string, body, result interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	err := core.Request(ctx, http.MethodPost, u, body, result, core.WithTimeout(c.timeout))
	if err == nil {
		return nil
	}
	if httpErr, ok := err.(*core.HTTPError); ok {
		msg := strings.TrimSpace(string(httpErr.Body))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(httpErr.Body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		switch {
		case httpErr.StatusCode == http.StatusNotFound:
			return errdefs.NotFoundf("%s", msg)
		case httpErr.StatusCode == http.StatusConflict:
			return errdefs.Conflictf("%s", msg)
		case httpErr.StatusCode >= 500:
			return errdefs.Fatalf("%s", msg)
		default:
			return errdefs.Invalidf("%s", msg)
		}
	}
	if ctx.Err() != nil {
		return errdefs.Timeoutf("%s: %s", u, ctx.Err())
	}
	return err
}

func (c *RESTClient) CreateChannel(ctx context.Context, req *CreateChannelRequest) error {
	return errors.Wrapf(c.post(ctx, c.url("channels"), req, nil), "failed to create channel %s", req.Channel)
}

func (c *RESTClient) JoinChannel(ctx context.Context, req *JoinChannelRequest) error {
	return errors.Wrapf(c.post(ctx, c.url("channels", req.Channel, "join"), req, nil), "failed to join channel %s", req.Channel)
}

func (c *RESTClient) UpdateChannelConfig(ctx context.Context, req *UpdateChannelRequest) error {
	return errors.Wrapf(c.post(ctx, c.url("channels", req.Channel, "config"), req, nil), "failed to update channel %s", req.Channel)
}

func (c *RESTClient) InstallChaincode(ctx context.Context, req *InstallRequest) (string, error) {
	var res resultResponse
	if err := c.post(ctx, c.url("chaincodes", "install"), req, &res); err != nil {
		return "", errors.Wrapf(err, "failed to install chaincode %s:%s", req.Name, req.Version)
	}
	return res.Result, nil
}

func (c *RESTClient) InstantiateChaincode(ctx context.Context, req *DeployRequest) (string, error) {
	return c.deploy(ctx, "instantiate", req)
}

func (c *RESTClient) UpgradeChaincode(ctx context.Context, req *DeployRequest) (string, error) {
	return c.deploy(ctx, "upgrade", req)
}

func (c *RESTClient) deploy(ctx context.Context, op string, req *DeployRequest) (string, error) {
	var res resultResponse
	if err := c.post(ctx, c.url("channels", req.Channel, "chaincodes", op), req, &res); err != nil {
		return "", errors.Wrapf(err, "failed to %s chaincode %s:%s on %s", op, req.Name, req.Version, req.Channel)
	}
	return res.Result, nil
}

func (c *RESTClient) InvokeChaincode(ctx context.Context, req *TransactionRequest) (*TransactionResult, error) {
	return c.transaction(ctx, "invoke", req)
}

func (c *RESTClient) QueryChaincode(ctx context.Context, req *TransactionRequest) (*TransactionResult, error) {
	return c.transaction(ctx, "query", req)
}

func (c *RESTClient) transaction(ctx context.Context, op string, req *TransactionRequest) (*TransactionResult, error) {
	var res TransactionResult
	if err := c.post(ctx, c.url("channels", req.Channel, "chaincodes", req.Chaincode, op), req, &res); err != nil {
		return nil, errors.Wrapf(err, "%s %s.%s failed", op, req.Chaincode, req.Function)
	}
	return &res, nil
}

func (c *RESTClient) QueryBlockchainInfo(ctx context.Context, q *LedgerQuery) (*BlockchainInfo, error) {
	var info BlockchainInfo
	if err := c.post(ctx, c.url("channels", q.Channel, "info"), q, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *RESTClient) GetBlockByNumber(ctx context.Context, q *LedgerQuery, number uint64) (json.RawMessage, error) {
	var block json.RawMessage
	if err := c.post(ctx, c.url("channels", q.Channel, "blocks", fmt.Sprint(number)), q, &block); err != nil {
		return nil, err
	}
	return block, nil
}

func (c *RESTClient) GetBlockByTxID(ctx context.Context, q *LedgerQuery, txID string) (json.RawMessage, error) {
	var block json.RawMessage
	if err := c.post(ctx, c.url("channels", q.Channel, "transactions", txID, "block"), q, &block); err != nil {
		return nil, err
	}
	return block, nil
}
