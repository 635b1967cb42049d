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

package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperledger/leizu/internal/core"
	"github.com/hyperledger/leizu/internal/errdefs"
)

// Authority is the subset of the fabric-ca-server REST API the provisioning
// core needs.
type Authority interface {
	Info(ctx context.Context) (*CAInfo, error)
	Enroll(ctx context.Context, enrollmentID, secret, profile string) (*Enrollment, error)
	Register(ctx context.Context, registrar *Enrollment, req *RegistrationRequest) (string, error)
	AddAffiliation(ctx context.Context, registrar *Enrollment, name string) error
	RemoveAffiliation(ctx context.Context, registrar *Enrollment, name string, force bool) error
}

type CAInfo struct {
	CAName  string
	CAChain string
	Version string
}

// Enrollment is a certificate issued by a CA together with its private key,
// all PEM encoded.
type Enrollment struct {
	Certificate     string `json:"certificate"`
	PrivateKey      string `json:"privateKey"`
	RootCertificate string `json:"rootCertificate"`
}

type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	ECert bool   `json:"ecert,omitempty"`
}

// ParseAttribute reads the name=value[:ecert] form used on the fabric-ca
// command line.
func ParseAttribute(name, value string) Attribute {
	if strings.HasSuffix(value, ":ecert") {
		return Attribute{Name: name, Value: strings.TrimSuffix(value, ":ecert"), ECert: true}
	}
	return Attribute{Name: name, Value: value}
}

type RegistrationRequest struct {
	Name           string      `json:"id"`
	Type           string      `json:"type"`
	Secret         string      `json:"secret,omitempty"`
	MaxEnrollments int         `json:"max_enrollments"`
	Affiliation    string      `json:"affiliation"`
	Attributes     []Attribute `json:"attrs,omitempty"`
	CAName         string      `json:"caname,omitempty"`
}

type caResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []caMessage     `json:"errors"`
}

type caMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type serverInfo struct {
	CAName  string `json:"CAName"`
	CAChain string `json:"CAChain"`
	Version string `json:"Version"`
}

// CAClient talks to one fabric-ca-server instance.
type CAClient struct {
	url     string
	caName  string
	timeout time.Duration
}

// NewCAClient opens a client for the CA at url. Every call is cut off after
// timeout, or core.DefaultRequestTimeout when it is zero.
func NewCAClient(url, caName string, timeout time.Duration) *CAClient {
	return &CAClient{url: strings.TrimSuffix(url, "/"), caName: caName, timeout: timeout}
}

func decodeB64(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// caError turns a non 2xx answer into an error that carries the messages
// reported by the CA.
func caError(op string, err error) error {
	httpErr, ok := err.(*core.HTTPError)
	if !ok {
		return err
	}
	var res caResponse
	msgs := []string{}
	if json.Unmarshal(httpErr.Body, &res) == nil {
		for _, e := range res.Errors {
			msgs = append(msgs, fmt.Sprintf("[%d] %s", e.Code, e.Message))
		}
	}
	if len(msgs) == 0 {
		msgs = append(msgs, string(httpErr.Body))
	}
	detail := strings.Join(msgs, "; ")
	switch {
	case httpErr.StatusCode == http.StatusNotFound || strings.Contains(detail, "not found") || strings.Contains(detail, "does not exist"):
		return errdefs.NotFoundf("%s: %s", op, detail)
	case strings.Contains(detail, "already registered") || strings.Contains(detail, "already exists"):
		return errdefs.Conflictf("%s: %s", op, detail)
	case httpErr.StatusCode >= 500:
		return errdefs.Unreachablef("%s: %s", op, detail)
	}
	return errdefs.Fatalf("%s: %s", op, detail)
}

func (c *CAClient) Info(ctx context.Context) (*CAInfo, error) {
	var res caResponse
	if err := core.Request(ctx, http.MethodGet, c.url+"/api/v1/cainfo", nil, &res, core.WithTimeout(c.timeout)); err != nil {
		return nil, caError("cainfo", err)
	}
	var info serverInfo
	if err := json.Unmarshal(res.Result, &info); err != nil {
		return nil, err
	}
	chain, err := decodeB64(info.CAChain)
	if err != nil {
		return nil, err
	}
	return &CAInfo{CAName: info.CAName, CAChain: chain, Version: info.Version}, nil
}

func (c *CAClient) Enroll(ctx context.Context, enrollmentID, secret, profile string) (*Enrollment, error) {
	keyPEM, csrPEM, err := newKeyAndCSR(enrollmentID)
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"certificate_request": csrPEM,
		"caname":              c.caName,
	}
	if profile != "" {
		body["profile"] = profile
	}
	var res caResponse
	if err := core.Request(ctx, http.MethodPost, c.url+"/api/v1/enroll", body, &res, core.WithBasicAuth(enrollmentID, secret), core.WithTimeout(c.timeout)); err != nil {
		return nil, caError(fmt.Sprintf("enroll %s", enrollmentID), err)
	}
	var result struct {
		Cert       string     `json:"Cert"`
		ServerInfo serverInfo `json:"ServerInfo"`
	}
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return nil, err
	}
	cert, err := decodeB64(result.Cert)
	if err != nil {
		return nil, err
	}
	root, err := decodeB64(result.ServerInfo.CAChain)
	if err != nil {
		return nil, err
	}
	return &Enrollment{Certificate: cert, PrivateKey: keyPEM, RootCertificate: root}, nil
}

// authorized sends a registrar request signed with the registrar's identity.
func (c *CAClient) authorized(ctx context.Context, registrar *Enrollment, method, path string, query url.Values, body interface{}, result interface{}) error {
	uri := path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	var raw []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		raw = b
	}
	token, err := authToken(registrar, method, uri, raw)
	if err != nil {
		return err
	}
	var payload interface{}
	if raw != nil {
		payload = raw
	}
	return core.Request(ctx, method, c.url+uri, payload, result, core.WithHeader("Authorization", token), core.WithTimeout(c.timeout))
}

func (c *CAClient) Register(ctx context.Context, registrar *Enrollment, req *RegistrationRequest) (string, error) {
	req.CAName = c.caName
	var res caResponse
	if err := c.authorized(ctx, registrar, http.MethodPost, "/api/v1/register", nil, req, &res); err != nil {
		return "", caError(fmt.Sprintf("register %s", req.Name), err)
	}
	var result struct {
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return "", err
	}
	return result.Secret, nil
}

func (c *CAClient) AddAffiliation(ctx context.Context, registrar *Enrollment, name string) error {
	body := map[string]string{"name": name, "caname": c.caName}
	query := url.Values{"force": []string{"true"}}
	if err := c.authorized(ctx, registrar, http.MethodPost, "/api/v1/affiliations", query, body, nil); err != nil {
		return caError(fmt.Sprintf("add affiliation %s", name), err)
	}
	return nil
}

func (c *CAClient) RemoveAffiliation(ctx context.Context, registrar *Enrollment, name string, force bool) error {
	query := url.Values{"force": []string{fmt.Sprintf("%t", force)}}
	if c.caName != "" {
		query.Set("ca", c.caName)
	}
	if err := c.authorized(ctx, registrar, http.MethodDelete, "/api/v1/affiliations/"+url.PathEscape(name), query, nil, nil); err != nil {
		return caError(fmt.Sprintf("remove affiliation %s", name), err)
	}
	return nil
}
