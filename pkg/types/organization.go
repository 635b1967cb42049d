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

package types

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
)

var (
	NodeTypePeer    = fftypes.FFEnumValue("nodetype", "peer")
	NodeTypeOrderer = fftypes.FFEnumValue("nodetype", "orderer")
)

type Organization struct {
	ID              string          `json:"id"`
	ConsortiumID    string          `json:"consortiumId"`
	Name            string          `json:"name"`
	DomainName      string          `json:"domainName"`
	MSPID           string          `json:"mspId"`
	Type            fftypes.FFEnum  `json:"type"`
	AdminKey        string          `json:"adminKey,omitempty"`
	AdminCert       string          `json:"adminCert,omitempty"`
	RootCert        string          `json:"rootCert,omitempty"`
	TLSRootCert     string          `json:"tlsRootCert,omitempty"`
	CredentialsPath string          `json:"credentialsPath,omitempty"`
	Created         *fftypes.FFTime `json:"created,omitempty"`
}

// Public returns a copy of the organization without private key material.
func (o *Organization) Public() *Organization {
	c := *o
	c.AdminKey = ""
	return &c
}

type CertAuthority struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	OrganizationID string `json:"organizationId"`
	ConsortiumID   string `json:"consortiumId"`
}

// MSPID derives the membership service provider id of an organization name.
func MSPID(orgName string) string {
	return Capitalize(orgName) + "MSP"
}

// OrgNameFromMSPID is the inverse of MSPID.
func OrgNameFromMSPID(mspID string) string {
	if i := strings.Index(mspID, "MSP"); i >= 0 {
		return mspID[:i]
	}
	return mspID
}

func Capitalize(s string) string {
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// DomainName is a pure function of the organization and consortium names, so
// every host of the consortium resolves the same names for an organization.
func DomainName(orgName, consortiumName, baseDomain string) string {
	return strings.ToLower(fmt.Sprintf("%s.%s.%s", orgName, consortiumName, baseDomain))
}

// CAName is the fabric-ca-server instance name used for an organization.
func CAName(orgName string) string {
	return fmt.Sprintf("ca-%s", orgName)
}
