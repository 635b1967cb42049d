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
	"net"
	"strconv"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
)

// Node is either a peer or an orderer. The owning organization's type decides
// which kinds of node may be created under it.
type Node struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organizationId"`
	ConsortiumID    string          `json:"consortiumId"`
	Name            string          `json:"name"`
	Type            fftypes.FFEnum  `json:"type"`
	Location        string          `json:"location"`
	SignKey         string          `json:"signKey,omitempty"`
	SignCert        string          `json:"signCert,omitempty"`
	TLSKey          string          `json:"tlsKey,omitempty"`
	TLSCert         string          `json:"tlsCert,omitempty"`
	CredentialsPath string          `json:"credentialsPath,omitempty"`
	Created         *fftypes.FFTime `json:"created,omitempty"`
}

func (n *Node) Public() *Node {
	c := *n
	c.SignKey = ""
	c.TLSKey = ""
	return &c
}

// HostPort splits the node location into host and port.
func (n *Node) HostPort() (string, int, error) {
	host, port, err := net.SplitHostPort(n.Location)
	if err != nil {
		return "", 0, err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in location %q", n.Location)
	}
	return host, p, nil
}

// NodeName builds the container and host name of a node from its logical name
// and the IP address it runs on.
func NodeName(name, host string) string {
	return fmt.Sprintf("%s-%s", name, strings.ReplaceAll(host, ".", "-"))
}

// EnrollmentID is the CA identity a node enrolls with.
func EnrollmentID(nodeName, domainName string) string {
	return fmt.Sprintf("%s.%s", nodeName, domainName)
}

// EnrollmentSecret is the CA secret registered for a node identity.
func EnrollmentSecret(nodeName string) string {
	return nodeName + "pw"
}
