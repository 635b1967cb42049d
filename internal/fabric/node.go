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

package fabric

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/identity"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/internal/transport"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

// PreparedNode is a node whose identity is enrolled and packaged but whose
// container does not run yet. Orderers are prepared before the genesis block
// exists, since raft consenters reference their TLS certificates.
type PreparedNode struct {
	Name            string
	Host            *types.HostSpec
	Org             *types.Organization
	Enrollment      *identity.NodeEnrollment
	CredentialsPath string
	Archive         string
}

// Domain returns the fully qualified name of the node.
func (n *PreparedNode) Domain() string {
	return types.EnrollmentID(n.Name, n.Org.DomainName)
}

// HostEntry resolves the node for containers started before it is stored.
func (n *PreparedNode) HostEntry() string {
	return HostEntry(n.Name, n.Org.DomainName, n.Host.IP)
}

func (d *Deps) prepareNode(ctx context.Context, org *types.Organization, host *types.HostSpec, defaultName string, role identity.Role) (*PreparedNode, error) {
	name := host.Name
	if name == "" {
		name = defaultName
	}
	nodeName := types.NodeName(name, host.IP)
	ca, err := d.Store.CertAuthorities.FindByOrganization(ctx, org.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "certificate authority of %s", org.Name)
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("enrolling %s %s with %s", role, nodeName, ca.Name))
	enrollment, err := d.Identity.EnrollNode(ctx, ca, org, nodeName, role)
	if err != nil {
		return nil, err
	}
	dir := identity.NodeCredentialDir(d.Identity.CryptoPath(), org.ConsortiumID, org.Name, nodeName)
	archive, err := identity.PackageCredentials(&identity.CredentialBundle{
		Dir:         dir,
		RootCert:    org.RootCert,
		TLSRootCert: org.TLSRootCert,
		AdminCert:   org.AdminCert,
		SignCert:    enrollment.ECert.Certificate,
		SignKey:     enrollment.ECert.PrivateKey,
		TLS:         enrollment.TLS,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "package credentials of %s", nodeName)
	}
	return &PreparedNode{
		Name:            nodeName,
		Host:            host,
		Org:             org,
		Enrollment:      enrollment,
		CredentialsPath: dir,
		Archive:         archive,
	}, nil
}

// nodeHostPath is where the material of a node lives on its host.
func (d *Deps) nodeHostPath(n *PreparedNode) string {
	return filepath.Join(d.Config.FabricHostPath(), n.Org.ConsortiumID, n.Org.Name, "peers", n.Name)
}

// deliver makes sure the container network exists on the node host and
// unpacks the node credentials there.
func (d *Deps) deliver(ctx context.Context, g transport.Gateway, n *PreparedNode) (string, error) {
	if err := g.CreateContainerNetwork(ctx, constants.DefaultNetworkName); err != nil {
		return "", err
	}
	cfgPath := d.nodeHostPath(n)
	if err := transport.DeliverArchive(ctx, g, n.Archive, cfgPath); err != nil {
		return "", errors.Wrapf(err, "deliver credentials of %s", n.Name)
	}
	return cfgPath, nil
}

func (d *Deps) nodeContainer(n *PreparedNode, image, cfgPath string, port int, extraHosts []string) *NodeContainer {
	return &NodeContainer{
		Image:      image,
		Hostname:   n.Domain(),
		MSPID:      n.Org.MSPID,
		HostIP:     n.Host.IP,
		Port:       port,
		CfgPath:    cfgPath,
		TLSEnabled: d.Config.TLSEnabled,
		LogLevel:   d.Config.FabricLogLevel,
		Metrics:    d.Config.MetricsEnabled,
		Local:      !d.Config.IsRemote(),
		ExtraHosts: extraHosts,
	}
}

// recordNode stores a node once its container answers.
func (d *Deps) recordNode(ctx context.Context, n *PreparedNode, nodeType fftypes.FFEnum, port int) (*types.Node, error) {
	node := &types.Node{
		ID:              fftypes.NewUUID().String(),
		OrganizationID:  n.Org.ID,
		ConsortiumID:    n.Org.ConsortiumID,
		Name:            n.Name,
		Type:            nodeType,
		Location:        fmt.Sprintf("%s:%d", n.Host.IP, port),
		SignKey:         n.Enrollment.ECert.PrivateKey,
		SignCert:        n.Enrollment.ECert.Certificate,
		TLSKey:          n.Enrollment.TLS.PrivateKey,
		TLSCert:         n.Enrollment.TLS.Certificate,
		CredentialsPath: n.CredentialsPath,
		Created:         fftypes.Now(),
	}
	if err := d.Store.Nodes.Create(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}
