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

package mocks

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync"
	"time"

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/identity"
)

// FakeAuthority is an in-process CA issuing real certificates signed by a
// throwaway root.
type FakeAuthority struct {
	mux          sync.Mutex
	Name         string
	rootKey      *ecdsa.PrivateKey
	rootCert     *x509.Certificate
	RootPEM      string
	Registered   map[string]*identity.RegistrationRequest
	Affiliations map[string]bool
	Enrolled     []string
	// EnrollErr makes the enrollment of an identity fail.
	EnrollErr map[string]error
}

func NewFakeAuthority(name string) *FakeAuthority {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		panic(err)
	}
	cert, _ := x509.ParseCertificate(der)
	return &FakeAuthority{
		Name:         name,
		rootKey:      key,
		rootCert:     cert,
		RootPEM:      string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		Registered:   map[string]*identity.RegistrationRequest{},
		Affiliations: map[string]bool{"org1": true, "org2": true},
		EnrollErr:    map[string]error{},
	}
}

func (f *FakeAuthority) Info(ctx context.Context) (*identity.CAInfo, error) {
	return &identity.CAInfo{CAName: f.Name, CAChain: f.RootPEM, Version: "1.4.9"}, nil
}

func (f *FakeAuthority) Enroll(ctx context.Context, enrollmentID, secret, profile string) (*identity.Enrollment, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	if err := f.EnrollErr[enrollmentID]; err != nil {
		return nil, err
	}
	switch {
	case enrollmentID == constants.BootstrapUser && secret == constants.BootstrapSecret:
	case f.Registered[enrollmentID] != nil && f.Registered[enrollmentID].Secret == secret:
	default:
		return nil, errdefs.Fatalf("enroll %s: authentication failure", enrollmentID)
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(int64(len(f.Enrolled) + 2)),
		Subject:      pkix.Name{CommonName: enrollmentID, OrganizationalUnit: []string{profile}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, f.rootCert, &key.PublicKey, f.rootKey)
	if err != nil {
		return nil, err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	f.Enrolled = append(f.Enrolled, enrollmentID+"/"+profile)
	return &identity.Enrollment{
		Certificate:     string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		PrivateKey:      string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})),
		RootCertificate: f.RootPEM,
	}, nil
}

func (f *FakeAuthority) Register(ctx context.Context, registrar *identity.Enrollment, req *identity.RegistrationRequest) (string, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	if _, ok := f.Registered[req.Name]; ok {
		return "", errdefs.Conflictf("register %s: identity is already registered", req.Name)
	}
	if req.Affiliation != "" && !f.Affiliations[req.Affiliation] {
		return "", errdefs.Fatalf("register %s: affiliation %s does not exist", req.Name, req.Affiliation)
	}
	copied := *req
	f.Registered[req.Name] = &copied
	return req.Secret, nil
}

func (f *FakeAuthority) AddAffiliation(ctx context.Context, registrar *identity.Enrollment, name string) error {
	f.mux.Lock()
	defer f.mux.Unlock()
	if f.Affiliations[name] {
		return errdefs.Conflictf("affiliation %s already exists", name)
	}
	f.Affiliations[name] = true
	return nil
}

func (f *FakeAuthority) RemoveAffiliation(ctx context.Context, registrar *identity.Enrollment, name string, force bool) error {
	f.mux.Lock()
	defer f.mux.Unlock()
	if !f.Affiliations[name] {
		return errdefs.NotFoundf("affiliation %s", name)
	}
	delete(f.Affiliations, name)
	return nil
}

// FakeAuthorities hands out one FakeAuthority per CA url.
type FakeAuthorities struct {
	mux   sync.Mutex
	byURL map[string]*FakeAuthority
}

func NewFakeAuthorities() *FakeAuthorities {
	return &FakeAuthorities{byURL: map[string]*FakeAuthority{}}
}

func (f *FakeAuthorities) NewAuthority(url, caName string) identity.Authority {
	return f.Get(url, caName)
}

func (f *FakeAuthorities) Get(url, caName string) *FakeAuthority {
	f.mux.Lock()
	defer f.mux.Unlock()
	a, ok := f.byURL[url]
	if !ok {
		a = NewFakeAuthority(caName)
		f.byURL[url] = a
	}
	return a
}
