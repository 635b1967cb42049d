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

package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/leizu/internal/docker"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// testSSHServer accepts password "secret" and answers exec requests.
type testSSHServer struct {
	addr     string
	mux      sync.Mutex
	commands []string
	stdin    map[string][]byte
	outputs  map[string]string
}

func newTestSSHServer(t *testing.T) *testSSHServer {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "root" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, errdefs.Invalidf("denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	s := &testSSHServer{addr: ln.Addr().String(), stdin: map[string][]byte{}, outputs: map[string]string{}}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn, cfg)
		}
	}()
	return s
}

func (s *testSSHServer) serve(conn net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)
	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			return
		}
		go func() {
			for req := range requests {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				_ = ssh.Unmarshal(req.Payload, &payload)
				_ = req.Reply(true, nil)
				s.exec(ch, payload.Command)
				return
			}
		}()
	}
}

func (s *testSSHServer) exec(ch ssh.Channel, command string) {
	defer ch.Close()
	status := uint32(0)
	s.mux.Lock()
	s.commands = append(s.commands, command)
	out, ok := s.outputs[command]
	s.mux.Unlock()
	if strings.Contains(command, "cat >") {
		b, _ := io.ReadAll(ch)
		s.mux.Lock()
		s.stdin[command] = b
		s.mux.Unlock()
	}
	switch {
	case ok:
		_, _ = ch.Write([]byte(out + "\n"))
	case strings.HasPrefix(command, "docker network create"):
		_, _ = ch.Stderr().Write([]byte("Error response from daemon: network with name fabric_network already exists\n"))
		status = 1
	}
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
}

func (s *testSSHServer) gateway(t *testing.T, password string) *SSHGateway {
	host, port, err := net.SplitHostPort(s.addr)
	require.NoError(t, err)
	p, _ := strconv.Atoi(port)
	return NewSSHGateway(SSHOptions{Host: host, Port: p, Username: "root", Password: password, Timeout: 5 * time.Second})
}

func TestSSHGatewayCreateContainer(t *testing.T) {
	s := newTestSSHServer(t)
	s.outputs["docker create --name consul-client consul:1.6.2 agent -client=0.0.0.0"] = "c0ffee"
	g := s.gateway(t, "secret")

	svc := dockerService("consul-client", "consul:1.6.2", "agent", "-client=0.0.0.0")
	id, err := g.CreateContainer(context.Background(), svc)
	require.NoError(t, err)
	assert.Equal(t, "c0ffee", id)
	assert.Equal(t, []string{
		"docker create --name consul-client consul:1.6.2 agent -client=0.0.0.0",
		"docker start c0ffee",
	}, s.commands)
}

func TestSSHGatewayNetworkExists(t *testing.T) {
	s := newTestSSHServer(t)
	g := s.gateway(t, "secret")
	assert.NoError(t, g.CreateContainerNetwork(context.Background(), "fabric_network"))
}

func TestSSHGatewayTransferFile(t *testing.T) {
	s := newTestSSHServer(t)
	g := s.gateway(t, "secret")
	local := filepath.Join(t.TempDir(), "org1.zip")
	require.NoError(t, os.WriteFile(local, []byte("PK-data"), 0644))

	err := g.TransferFile(context.Background(), local, "/etc/hyperledger/fabric/c1/org1.zip")
	require.NoError(t, err)
	cmd := "mkdir -p /etc/hyperledger/fabric/c1 && cat > /etc/hyperledger/fabric/c1/org1.zip"
	assert.Equal(t, []string{cmd}, s.commands)
	assert.Equal(t, "PK-data", string(s.stdin[cmd]))
}

func TestSSHGatewayExecQuotes(t *testing.T) {
	s := newTestSSHServer(t)
	s.outputs["bash -c 'unzip -o a.zip -d a'"] = "inflated"
	g := s.gateway(t, "secret")
	out, err := g.Exec(context.Background(), "unzip -o a.zip -d a")
	require.NoError(t, err)
	assert.Equal(t, "inflated", out)
}

func TestSSHGatewayAuthFailure(t *testing.T) {
	s := newTestSSHServer(t)
	g := s.gateway(t, "wrong")
	_, err := g.Exec(context.Background(), "date")
	assert.ErrorIs(t, err, errdefs.ErrUnreachable)
}

func TestSSHGatewayNoCredentials(t *testing.T) {
	g := NewSSHGateway(SSHOptions{Host: "10.0.0.1", Username: "root"})
	_, err := g.Exec(context.Background(), "date")
	assert.ErrorIs(t, err, errdefs.ErrInvalid)
}

func TestSSHGatewayUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()
	g := NewSSHGateway(SSHOptions{Host: "127.0.0.1", Port: addr.Port, Username: "root", Password: "pw", Timeout: time.Second})
	_, err = g.Exec(context.Background(), "date")
	assert.ErrorIs(t, err, errdefs.ErrUnreachable)
}

func dockerService(name, image string, command ...string) *docker.Service {
	return &docker.Service{ContainerName: name, Image: image, Command: command}
}
