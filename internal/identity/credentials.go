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
	"archive/zip"
	"io"
	"os"
	"path/filepath"
)

// CredentialBundle is the material of one MSP. TLS is only set for nodes.
type CredentialBundle struct {
	Dir         string
	RootCert    string
	TLSRootCert string
	AdminCert   string
	SignCert    string
	SignKey     string
	TLS         *Enrollment
}

// OrgCredentialDir is where an organization MSP is written.
func OrgCredentialDir(cryptoPath, consortiumID, orgName string) string {
	return filepath.Join(cryptoPath, consortiumID, orgName)
}

// NodeCredentialDir is where the MSP and TLS material of a node is written.
func NodeCredentialDir(cryptoPath, consortiumID, orgName, nodeName string) string {
	return filepath.Join(OrgCredentialDir(cryptoPath, consortiumID, orgName), "peers", nodeName)
}

// NodeTLSCertPath is the server certificate of a node, as referenced by raft
// consenters.
func NodeTLSCertPath(cryptoPath, consortiumID, orgName, nodeName string) string {
	return filepath.Join(NodeCredentialDir(cryptoPath, consortiumID, orgName, nodeName), "tls", "server.crt")
}

// PackageCredentials rewrites the msp (and tls) tree of b.Dir and zips it to
// b.Dir + ".zip". The zip is what gets transferred to node hosts.
func PackageCredentials(b *CredentialBundle) (string, error) {
	files := map[string]string{
		filepath.Join("msp", "cacerts", "ca-cert.pem"):       b.RootCert,
		filepath.Join("msp", "tlscacerts", "cert.pem"):       b.TLSRootCert,
		filepath.Join("msp", "admincerts", "admin-cert.pem"): b.AdminCert,
		filepath.Join("msp", "signcerts", "sign-cert.pem"):   b.SignCert,
	}
	files[filepath.Join("msp", "keystore", keystoreName(b.SignKey))] = b.SignKey
	subdirs := []string{"msp"}
	if b.TLS != nil {
		subdirs = append(subdirs, "tls")
		files[filepath.Join("tls", "server.crt")] = b.TLS.Certificate
		files[filepath.Join("tls", "server.key")] = b.TLS.PrivateKey
		files[filepath.Join("tls", "ca.pem")] = b.TLS.RootCertificate
	}
	for _, sub := range subdirs {
		if err := os.RemoveAll(filepath.Join(b.Dir, sub)); err != nil {
			return "", err
		}
	}
	for rel, content := range files {
		p := filepath.Join(b.Dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return "", err
		}
		if err := os.WriteFile(p, []byte(content), 0600); err != nil {
			return "", err
		}
	}
	archive := b.Dir + ".zip"
	if err := zipDirs(archive, b.Dir, subdirs); err != nil {
		return "", err
	}
	return archive, nil
}

// zipDirs writes the files under root/subdirs to archive. A failed archive
// is removed.
func zipDirs(archive, root string, subdirs []string) (err error) {
	f, err := os.Create(archive)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	defer func() {
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(archive)
		}
	}()
	for _, sub := range subdirs {
		err := filepath.Walk(filepath.Join(root, sub), func(p string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			w, err := zw.Create(filepath.ToSlash(rel))
			if err != nil {
				return err
			}
			src, err := os.Open(p)
			if err != nil {
				return err
			}
			defer src.Close()
			_, err = io.Copy(w, src)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
