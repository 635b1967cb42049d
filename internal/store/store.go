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

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/pkg/types"
)

const (
	CollectionConsortiums     = "consortiums"
	CollectionOrganizations   = "organizations"
	CollectionNodes           = "nodes"
	CollectionChannels        = "channels"
	CollectionChaincodes      = "chaincodes"
	CollectionRecords         = "chaincode_records"
	CollectionRequests        = "requests"
	CollectionCertAuthorities = "cert_authorities"
	CollectionReservations    = "reservations"
)

// Store groups the repositories of every entity over one driver.
type Store struct {
	driver Driver

	Consortiums     *ConsortiumRepository
	Organizations   *OrganizationRepository
	Nodes           *NodeRepository
	Channels        *ChannelRepository
	Chaincodes      *ChaincodeRepository
	Records         *RecordRepository
	Requests        *Repository[types.ProvisioningRequest]
	CertAuthorities *CertAuthorityRepository
	Reservations    *ReservationRepository
}

func New(driver Driver) *Store {
	return &Store{
		driver: driver,
		Consortiums: &ConsortiumRepository{newRepository(driver, CollectionConsortiums, "consortium", func(c *types.Consortium) Document {
			return Document{ID: c.ID, ConsortiumID: c.ID, ParentID: c.RequestID, Name: c.Name}
		})},
		Organizations: &OrganizationRepository{newRepository(driver, CollectionOrganizations, "organization", func(o *types.Organization) Document {
			return Document{ID: o.ID, ConsortiumID: o.ConsortiumID, Name: o.Name, UniqueKey: uniqueKey(o.ConsortiumID, o.Name)}
		})},
		Nodes: &NodeRepository{newRepository(driver, CollectionNodes, "node", func(n *types.Node) Document {
			return Document{ID: n.ID, ConsortiumID: n.ConsortiumID, ParentID: n.OrganizationID, Name: n.Name, UniqueKey: uniqueKey(n.ConsortiumID, n.Name)}
		})},
		Channels: &ChannelRepository{newRepository(driver, CollectionChannels, "channel", func(c *types.Channel) Document {
			return Document{ID: c.ID, ConsortiumID: c.ConsortiumID, Name: c.Name, UniqueKey: uniqueKey(c.ConsortiumID, c.Name)}
		})},
		Chaincodes: &ChaincodeRepository{newRepository(driver, CollectionChaincodes, "chaincode", func(c *types.Chaincode) Document {
			return Document{ID: c.ID, ConsortiumID: c.ConsortiumID, Name: c.Name, UniqueKey: uniqueKey(c.ConsortiumID, c.Name, c.Version)}
		})},
		Records: &RecordRepository{newRepository(driver, CollectionRecords, "chaincode record", func(r *types.ChaincodeRecord) Document {
			return Document{ID: r.ID, ConsortiumID: r.ConsortiumID, ParentID: r.ChaincodeID, Name: r.Target}
		})},
		Requests: newRepository(driver, CollectionRequests, "request", func(r *types.ProvisioningRequest) Document {
			return Document{ID: r.ID, ConsortiumID: r.ConsortiumID, Name: r.Name}
		}),
		CertAuthorities: &CertAuthorityRepository{newRepository(driver, CollectionCertAuthorities, "certificate authority", func(ca *types.CertAuthority) Document {
			return Document{ID: ca.ID, ConsortiumID: ca.ConsortiumID, ParentID: ca.OrganizationID, Name: ca.Name, UniqueKey: ca.OrganizationID}
		})},
		Reservations: &ReservationRepository{newRepository(driver, CollectionReservations, "reservation", func(r *types.InstanceReservation) Document {
			return Document{ID: r.ID, ConsortiumID: r.ConsortiumID, Name: r.Class.String()}
		})},
	}
}

// DeleteConsortium removes a consortium and every record filed under it.
// Missing records are not an error, so an interrupted delete can be rerun.
func (s *Store) DeleteConsortium(ctx context.Context, consortiumID string) error {
	filter := Filter{ConsortiumID: consortiumID}
	for _, collection := range []string{
		CollectionRecords,
		CollectionChaincodes,
		CollectionChannels,
		CollectionNodes,
		CollectionCertAuthorities,
		CollectionOrganizations,
		CollectionReservations,
	} {
		docs, err := s.driver.Find(ctx, collection, filter)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if err := s.driver.Delete(ctx, collection, d.ID); err != nil && !errdefs.IsNotFound(err) {
				return fmt.Errorf("delete %s %s: %w", collection, d.ID, err)
			}
		}
	}
	if err := s.Consortiums.Delete(ctx, consortiumID); err != nil && !errdefs.IsNotFound(err) {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func uniqueKey(parts ...string) string {
	return strings.Join(parts, "/")
}

type ConsortiumRepository struct {
	*Repository[types.Consortium]
}

func (r *ConsortiumRepository) FindByRequestID(ctx context.Context, requestID string) (*types.Consortium, error) {
	return r.First(ctx, Filter{ParentID: requestID})
}

type OrganizationRepository struct {
	*Repository[types.Organization]
}

// ListByConsortium returns the organizations in registration order.
func (r *OrganizationRepository) ListByConsortium(ctx context.Context, consortiumID string) ([]*types.Organization, error) {
	return r.Find(ctx, Filter{ConsortiumID: consortiumID})
}

func (r *OrganizationRepository) FindByName(ctx context.Context, consortiumID, name string) (*types.Organization, error) {
	org, err := r.First(ctx, Filter{ConsortiumID: consortiumID, Name: name})
	if errdefs.IsNotFound(err) {
		return nil, errdefs.NotFoundf("organization %s", name)
	}
	return org, err
}

type NodeRepository struct {
	*Repository[types.Node]
}

func (r *NodeRepository) ListByOrganization(ctx context.Context, orgID string) ([]*types.Node, error) {
	return r.Find(ctx, Filter{ParentID: orgID})
}

func (r *NodeRepository) ListByConsortium(ctx context.Context, consortiumID string) ([]*types.Node, error) {
	return r.Find(ctx, Filter{ConsortiumID: consortiumID})
}

type ChannelRepository struct {
	*Repository[types.Channel]
}

func (r *ChannelRepository) FindByName(ctx context.Context, consortiumID, name string) (*types.Channel, error) {
	ch, err := r.First(ctx, Filter{ConsortiumID: consortiumID, Name: name})
	if errdefs.IsNotFound(err) {
		return nil, errdefs.NotFoundf("channel %s", name)
	}
	return ch, err
}

func (r *ChannelRepository) ListByConsortium(ctx context.Context, consortiumID string) ([]*types.Channel, error) {
	return r.Find(ctx, Filter{ConsortiumID: consortiumID})
}

type ChaincodeRepository struct {
	*Repository[types.Chaincode]
}

func (r *ChaincodeRepository) ListByConsortium(ctx context.Context, consortiumID string) ([]*types.Chaincode, error) {
	return r.Find(ctx, Filter{ConsortiumID: consortiumID})
}

type RecordRepository struct {
	*Repository[types.ChaincodeRecord]
}

// Append adds an audit entry. Records are never updated.
func (r *RecordRepository) Append(ctx context.Context, cc *types.Chaincode, opt types.ChaincodeState, target, message string) (*types.ChaincodeRecord, error) {
	record := &types.ChaincodeRecord{
		ID:           fftypes.NewUUID().String(),
		ConsortiumID: cc.ConsortiumID,
		ChaincodeID:  cc.ID,
		Opt:          opt,
		Target:       target,
		Message:      message,
		Date:         fftypes.Now(),
	}
	if err := r.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *RecordRepository) ListByChaincode(ctx context.Context, chaincodeID string) ([]*types.ChaincodeRecord, error) {
	return r.Find(ctx, Filter{ParentID: chaincodeID})
}

type CertAuthorityRepository struct {
	*Repository[types.CertAuthority]
}

func (r *CertAuthorityRepository) FindByOrganization(ctx context.Context, orgID string) (*types.CertAuthority, error) {
	ca, err := r.First(ctx, Filter{ParentID: orgID})
	if errdefs.IsNotFound(err) {
		return nil, errdefs.NotFoundf("certificate authority of organization %s", orgID)
	}
	return ca, err
}

type ReservationRepository struct {
	*Repository[types.InstanceReservation]
}

// Reserve claims count instances of class for a consortium. The number of
// reservations held plus count must not exceed limit, otherwise nothing is
// written and QuotaExceeded is returned.
func (r *ReservationRepository) Reserve(ctx context.Context, consortiumID string, class fftypes.FFEnum, count, limit int) ([]*types.InstanceReservation, error) {
	if count <= 0 {
		return nil, nil
	}
	reservations := make([]*types.InstanceReservation, count)
	docs := make([]*Document, count)
	for i := range reservations {
		reservations[i] = &types.InstanceReservation{
			ID:           fftypes.NewUUID().String(),
			ConsortiumID: consortiumID,
			Class:        class,
			Created:      fftypes.Now(),
		}
		doc, err := r.document(reservations[i])
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}
	filter := Filter{ConsortiumID: consortiumID, Name: class.String()}
	if err := r.driver.InsertWithLimit(ctx, filter, limit, docs...); err != nil {
		if errdefs.KindOf(err) == errdefs.ErrQuotaExceeded {
			return nil, errdefs.QuotaExceededf("%d %s instances requested for consortium %s, limit is %d", count, class, consortiumID, limit)
		}
		return nil, err
	}
	return reservations, nil
}

// Release deletes reservations. Already released ones are skipped.
func (r *ReservationRepository) Release(ctx context.Context, reservations []*types.InstanceReservation) error {
	for _, res := range reservations {
		if err := r.Delete(ctx, res.ID); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("release reservation %s: %w", res.ID, err)
		}
	}
	return nil
}

func (r *ReservationRepository) Count(ctx context.Context, consortiumID string, class fftypes.FFEnum) (int, error) {
	found, err := r.Find(ctx, Filter{ConsortiumID: consortiumID, Name: class.String()})
	return len(found), err
}
