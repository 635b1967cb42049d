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
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/identity"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

type OrganizationService struct {
	*Deps
}

type CreateOrganizationRequest struct {
	ConsortiumID string
	Name         string
	// Type defaults to peer.
	Type fftypes.FFEnum
	// CA is the host the certificate authority container runs on.
	CA *types.HostSpec
}

// Create starts the CA of a new organization, runs its credential chain and
// records the organization together with its CA. A name already used in the
// consortium is a Conflict and nothing is started.
func (s *OrganizationService) Create(ctx context.Context, req *CreateOrganizationRequest) (*types.Organization, error) {
	logger := log.LoggerFromContext(ctx)
	consortium, manifest, err := s.consortium(ctx, req.ConsortiumID)
	if err != nil {
		return nil, err
	}
	if req.CA == nil || req.CA.IP == "" {
		return nil, errdefs.Invalidf("organization %s has no CA host", req.Name)
	}
	if _, err := s.Store.Organizations.FindByName(ctx, consortium.ID, req.Name); err == nil {
		return nil, errdefs.Conflictf("organization %s already exists in consortium %s", req.Name, consortium.Name)
	} else if !errdefs.IsNotFound(err) {
		return nil, err
	}
	orgType := req.Type
	if orgType == "" {
		orgType = types.NodeTypePeer
	}

	caName := types.CAName(req.Name)
	logger.Info(fmt.Sprintf("starting certificate authority %s on %s", caName, req.CA.IP))
	g := s.Dialer.Gateway(req.CA)
	cfgPath := filepath.Join(s.Config.CAHostPath(), consortium.ID, req.Name)
	image := manifest.CA.GetDockerImageString()
	svc := CAContainer(image, caName, req.CA.IP, cfgPath, !s.Config.IsRemote(), s.Config.TLSEnabled)
	if _, err := s.startContainer(ctx, g, image, svc); err != nil {
		return nil, errors.Wrapf(err, "certificate authority of %s", req.Name)
	}

	ca := &types.CertAuthority{
		ID:           fftypes.NewUUID().String(),
		Name:         caName,
		URL:          fmt.Sprintf("http://%s:%d", req.CA.IP, constants.PortCA),
		ConsortiumID: consortium.ID,
	}
	admin, err := s.Identity.SetupOrganization(ctx, ca, consortium.ID, req.Name)
	if err != nil {
		return nil, err
	}

	org := &types.Organization{
		ID:           fftypes.NewUUID().String(),
		ConsortiumID: consortium.ID,
		Name:         req.Name,
		DomainName:   types.DomainName(req.Name, consortium.Name, s.Config.BaseDomain),
		MSPID:        types.MSPID(req.Name),
		Type:         orgType,
		AdminKey:     admin.PrivateKey,
		AdminCert:    admin.Certificate,
		RootCert:     admin.RootCertificate,
		TLSRootCert:  admin.RootCertificate,
		Created:      fftypes.Now(),
	}
	org.CredentialsPath = identity.OrgCredentialDir(s.Identity.CryptoPath(), consortium.ID, org.Name)
	archive, err := identity.PackageCredentials(&identity.CredentialBundle{
		Dir:         org.CredentialsPath,
		RootCert:    org.RootCert,
		TLSRootCert: org.TLSRootCert,
		AdminCert:   org.AdminCert,
		SignCert:    org.AdminCert,
		SignKey:     org.AdminKey,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "package credentials of %s", org.Name)
	}
	if err := s.Store.Organizations.Create(ctx, org); err != nil {
		return nil, err
	}
	ca.OrganizationID = org.ID
	if err := s.Store.CertAuthorities.Create(ctx, ca); err != nil {
		return nil, err
	}
	if err := s.archive(ctx, filepath.ToSlash(filepath.Join(consortium.ID, org.Name, "msp.zip")), archive); err != nil {
		logger.Warn(err.Error())
	}
	logger.Info(fmt.Sprintf("organization %s (%s) is ready", org.Name, org.MSPID))
	return org, nil
}

// Delete removes an organization and its CA record. Organizations that still
// own nodes are refused.
func (s *OrganizationService) Delete(ctx context.Context, orgID string) error {
	org, err := s.Store.Organizations.Get(ctx, orgID)
	if err != nil {
		return err
	}
	nodes, err := s.Store.Nodes.ListByOrganization(ctx, org.ID)
	if err != nil {
		return err
	}
	if len(nodes) > 0 {
		return errdefs.Conflictf("organization %s still has %d nodes", org.Name, len(nodes))
	}
	if ca, err := s.Store.CertAuthorities.FindByOrganization(ctx, org.ID); err == nil {
		if err := s.Store.CertAuthorities.Delete(ctx, ca.ID); err != nil {
			return err
		}
	} else if !errdefs.IsNotFound(err) {
		return err
	}
	return s.Store.Organizations.Delete(ctx, org.ID)
}

func (s *OrganizationService) List(ctx context.Context, consortiumID string) ([]*types.Organization, error) {
	orgs, err := s.Store.Organizations.ListByConsortium(ctx, consortiumID)
	if err != nil {
		return nil, err
	}
	public := make([]*types.Organization, len(orgs))
	for i, o := range orgs {
		public[i] = o.Public()
	}
	return public, nil
}
