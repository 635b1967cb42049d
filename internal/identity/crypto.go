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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
)

// newKeyAndCSR returns a fresh P-256 key in PKCS#8 PEM and a CSR for cn.
func newKeyAndCSR(cn string) (keyPEM string, csrPEM string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", err
	}
	csr, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:            pkix.Name{CommonName: cn},
		SignatureAlgorithm: x509.ECDSAWithSHA256,
	}, key)
	if err != nil {
		return "", "", err
	}
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	csrPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: csr}))
	return keyPEM, csrPEM, nil
}

func parseECKey(keyPEM string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, fmt.Errorf("no PEM block in private key")
	}
	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if ec, ok := k.(*ecdsa.PrivateKey); ok {
			return ec, nil
		}
		return nil, fmt.Errorf("private key is not an ECDSA key")
	}
	return x509.ParseECPrivateKey(block.Bytes)
}

type ecdsaSignature struct {
	R, S *big.Int
}

// signLowS signs digest and normalizes S into the lower half of the curve
// order, which fabric rejects otherwise.
func signLowS(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, key, digest)
	if err != nil {
		return nil, err
	}
	halfOrder := new(big.Int).Rsh(key.Params().N, 1)
	if s.Cmp(halfOrder) > 0 {
		s.Sub(key.Params().N, s)
	}
	return asn1.Marshal(ecdsaSignature{R: r, S: s})
}

// authToken builds the fabric-ca authorization header of a registrar call:
// b64(cert) "." b64(sig(method "." b64(uri) "." b64(body) "." b64(cert))).
func authToken(registrar *Enrollment, method, uri string, body []byte) (string, error) {
	key, err := parseECKey(registrar.PrivateKey)
	if err != nil {
		return "", err
	}
	b64Cert := base64.StdEncoding.EncodeToString([]byte(registrar.Certificate))
	payload := method + "." +
		base64.StdEncoding.EncodeToString([]byte(uri)) + "." +
		base64.StdEncoding.EncodeToString(body) + "." +
		b64Cert
	digest := sha256.Sum256([]byte(payload))
	sig, err := signLowS(key, digest[:])
	if err != nil {
		return "", err
	}
	return b64Cert + "." + base64.StdEncoding.EncodeToString(sig), nil
}

// keystoreName is the file name a private key gets in an MSP keystore.
func keystoreName(keyPEM string) string {
	h := sha1.Sum([]byte(keyPEM))
	return hex.EncodeToString(h[:]) + ".pem"
}
