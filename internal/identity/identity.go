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

// Package identity drives the credential chain of a consortium: bootstrap
// enrollment against a fresh CA, the affiliation tree, role registration,
// node enrollment and MSP packaging.
package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/core"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

type Role string

const (
	RolePeer    Role = "peer"
	RoleOrderer Role = "orderer"
	RoleUser    Role = "user"
	RoleClient  Role = "client"
)

// RoleForNodeType maps a node type onto the CA role its identity is
// registered with.
func RoleForNodeType(nodeType string) Role {
	if nodeType == types.NodeTypeOrderer.String() {
		return RoleOrderer
	}
	return RolePeer
}

var defaultAffiliations = []string{"org1", "org2"}

type Options struct {
	CryptoPath      string
	AffiliationRoot string
	Wait            core.WaitOptions
	RequestTimeout  time.Duration
}

type Service struct {
	opts Options
	// NewAuthority opens a client for a CA; tests replace it with a fake.
	NewAuthority func(url, caName string) Authority
}

func NewService(opts Options) *Service {
	if opts.AffiliationRoot == "" {
		opts.AffiliationRoot = constants.AffiliationRoot
	}
	return &Service{
		opts: opts,
		NewAuthority: func(url, caName string) Authority {
			return NewCAClient(url, caName, opts.RequestTimeout)
		},
	}
}

func (s *Service) CryptoPath() string {
	return s.opts.CryptoPath
}

func (s *Service) authority(ca *types.CertAuthority) Authority {
	return s.NewAuthority(ca.URL, ca.Name)
}

// AffiliationPath is the leaf affiliation of an organization.
func (s *Service) AffiliationPath(consortiumID, orgName string) string {
	return strings.Join([]string{s.opts.AffiliationRoot, consortiumID, orgName}, ".")
}

// BootstrapCA waits for a freshly started CA to answer and enrolls its
// bootstrap identity.
func (s *Service) BootstrapCA(ctx context.Context, ca *types.CertAuthority) (*Enrollment, error) {
	if err := core.WaitForHTTP(ctx, ca.URL+"/api/v1/cainfo", s.opts.Wait); err != nil {
		return nil, errors.Wrapf(err, "certificate authority %s", ca.Name)
	}
	return s.bootstrapEnroll(ctx, ca)
}

func (s *Service) bootstrapEnroll(ctx context.Context, ca *types.CertAuthority) (*Enrollment, error) {
	enrollment, err := s.authority(ca).Enroll(ctx, constants.BootstrapUser, constants.BootstrapSecret, "")
	if err != nil {
		return nil, errors.Wrapf(err, "bootstrap enrollment at %s", ca.Name)
	}
	return enrollment, nil
}

// EstablishAffiliationTree replaces the default affiliations of a CA with
// root, root.consortium and root.consortium.org, then registers the
// affiliation manager identity under the leaf.
func (s *Service) EstablishAffiliationTree(ctx context.Context, ca *types.CertAuthority, registrar *Enrollment, consortiumID, orgName string) error {
	logger := log.LoggerFromContext(ctx)
	client := s.authority(ca)
	for _, name := range defaultAffiliations {
		if err := client.RemoveAffiliation(ctx, registrar, name, true); err != nil && !errdefs.IsNotFound(err) {
			return err
		}
	}
	levels := []string{s.opts.AffiliationRoot, consortiumID, orgName}
	for i := range levels {
		name := strings.Join(levels[:i+1], ".")
		if err := client.AddAffiliation(ctx, registrar, name); err != nil {
			if !errdefs.IsConflict(err) {
				return err
			}
			logger.Debug(fmt.Sprintf("affiliation %s already exists", name))
		}
	}
	attrs := []Attribute{
		ParseAttribute("hf.Registrar.Roles", "*"),
		ParseAttribute("hf.Registrar.DelegateRoles", "*"),
		ParseAttribute("hf.Registrar.Attributes", "*"),
		ParseAttribute("hf.IntermediateCA", "true"),
		ParseAttribute("hf.Revoker", "true"),
		ParseAttribute("hf.AffiliationMgr", "true"),
		ParseAttribute("hf.GenCRL", "true"),
		ParseAttribute("role", "admin:ecert"),
		ParseAttribute("admin", "true:ecert"),
		ParseAttribute("abac.init", "true:ecert"),
	}
	_, err := client.Register(ctx, registrar, &RegistrationRequest{
		Name:        constants.AdminUser,
		Type:        string(RoleClient),
		Secret:      constants.AdminSecret,
		Affiliation: s.AffiliationPath(consortiumID, orgName),
		Attributes:  attrs,
	})
	if err != nil && !errdefs.IsConflict(err) {
		return err
	}
	return nil
}

// RegisterRole registers identity under the affiliation of its organization.
// An identity that is already registered is left as it is.
func (s *Service) RegisterRole(ctx context.Context, ca *types.CertAuthority, registrar *Enrollment, enrollmentID, secret, affiliation string, role Role) error {
	var roles string
	switch role {
	case RolePeer:
		roles = "peer,user"
	case RoleOrderer:
		roles = "orderer,user"
	case RoleUser:
		roles = "user"
	default:
		return errdefs.Invalidf("unknown identity role %s", role)
	}
	attrs := []Attribute{
		ParseAttribute("hf.Registrar.Roles", roles),
		ParseAttribute("hf.Registrar.DelegateRoles", "user"),
		ParseAttribute("hf.Registrar.Attributes", "*"),
		ParseAttribute("hf.IntermediateCA", "true"),
		ParseAttribute("hf.Revoker", "true"),
		ParseAttribute("hf.AffiliationMgr", "false"),
		ParseAttribute("hf.GenCRL", "true"),
	}
	_, err := s.authority(ca).Register(ctx, registrar, &RegistrationRequest{
		Name:        enrollmentID,
		Type:        string(role),
		Secret:      secret,
		Affiliation: affiliation,
		Attributes:  attrs,
	})
	if errdefs.IsConflict(err) {
		log.LoggerFromContext(ctx).Debug(fmt.Sprintf("%s is already registered at %s", enrollmentID, ca.Name))
		return nil
	}
	return err
}

// Enroll issues a certificate for an identity. profile is "" for an ecert
// or "tls".
func (s *Service) Enroll(ctx context.Context, ca *types.CertAuthority, enrollmentID, secret, profile string) (*Enrollment, error) {
	return s.authority(ca).Enroll(ctx, enrollmentID, secret, profile)
}

// SetupOrganization runs the whole chain for a new organization CA and
// returns the enrollment of the organization admin.
func (s *Service) SetupOrganization(ctx context.Context, ca *types.CertAuthority, consortiumID, orgName string) (*Enrollment, error) {
	registrar, err := s.BootstrapCA(ctx, ca)
	if err != nil {
		return nil, err
	}
	if err := s.EstablishAffiliationTree(ctx, ca, registrar, consortiumID, orgName); err != nil {
		return nil, err
	}
	return s.Enroll(ctx, ca, constants.AdminUser, constants.AdminSecret, "")
}

type NodeEnrollment struct {
	EnrollmentID string
	ECert        *Enrollment
	TLS          *Enrollment
}

// EnrollNode registers a peer or orderer identity and enrolls both its
// signing and TLS certificates. There is no retry.
func (s *Service) EnrollNode(ctx context.Context, ca *types.CertAuthority, org *types.Organization, nodeName string, role Role) (*NodeEnrollment, error) {
	registrar, err := s.bootstrapEnroll(ctx, ca)
	if err != nil {
		return nil, err
	}
	id := types.EnrollmentID(nodeName, org.DomainName)
	secret := types.EnrollmentSecret(nodeName)
	if err := s.RegisterRole(ctx, ca, registrar, id, secret, s.AffiliationPath(org.ConsortiumID, org.Name), role); err != nil {
		return nil, err
	}
	ecert, err := s.Enroll(ctx, ca, id, secret, "")
	if err != nil {
		return nil, errors.Wrapf(err, "enroll %s", nodeName)
	}
	tls, err := s.Enroll(ctx, ca, id, secret, "tls")
	if err != nil {
		return nil, errors.Wrapf(err, "enroll tls %s", nodeName)
	}
	return &NodeEnrollment{EnrollmentID: id, ECert: ecert, TLS: tls}, nil
}
