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
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

type SSHOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	KeyPath  string
	Timeout  time.Duration
}

// SSHGateway drives the docker CLI of a remote host. Every call opens its own
// connection, so a gateway is safe to share between goroutines.
type SSHGateway struct {
	*containerHost
	opts SSHOptions
}

type sshDialer struct {
	port    int
	timeout time.Duration
}

func (d *sshDialer) Gateway(host *types.HostSpec) Gateway {
	port := host.SSHPort
	if port == 0 {
		port = d.port
	}
	return NewSSHGateway(SSHOptions{
		Host:     host.IP,
		Port:     port,
		Username: host.SSHUsername,
		Password: host.SSHPassword,
		KeyPath:  host.SSHKeyPath,
		Timeout:  d.timeout,
	})
}

func NewSSHGateway(opts SSHOptions) *SSHGateway {
	if opts.Port == 0 {
		opts.Port = constants.PortSSH
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	g := &SSHGateway{opts: opts}
	g.containerHost = &containerHost{runner: g, label: opts.Host}
	return g
}

func (g *SSHGateway) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if g.opts.KeyPath != "" {
		pem, err := os.ReadFile(g.opts.KeyPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read ssh key %s", g.opts.KeyPath)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, errdefs.Invalidf("invalid ssh key %s: %s", g.opts.KeyPath, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if g.opts.Password != "" {
		auth = append(auth, ssh.Password(g.opts.Password))
	}
	if len(auth) == 0 {
		return nil, errdefs.Invalidf("no ssh password or key configured for %s", g.opts.Host)
	}
	return &ssh.ClientConfig{
		User: g.opts.Username,
		Auth: auth,
		// Hosts are freshly provisioned and have no known_hosts entry.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         g.opts.Timeout,
	}, nil
}

func (g *SSHGateway) connect(ctx context.Context) (*ssh.Client, error) {
	cfg, err := g.clientConfig()
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(g.opts.Host, strconv.Itoa(g.opts.Port))
	dialer := &net.Dialer{Timeout: g.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errdefs.Unreachablef("ssh %s: %s", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, errdefs.Unreachablef("ssh handshake with %s: %s", addr, err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func (g *SSHGateway) run(ctx context.Context, stdin io.Reader, commandLine string) (string, error) {
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("[%s] %s", g.opts.Host, commandLine))
	client, err := g.connect(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", errors.Wrapf(err, "failed to open ssh session on %s", g.opts.Host)
	}
	defer session.Close()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(commandLine)
	}()
	select {
	case <-ctx.Done():
		client.Close()
		return "", errdefs.Timeoutf("command on %s interrupted: %s", g.opts.Host, ctx.Err())
	case err := <-done:
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = strings.TrimSpace(stdout.String())
			}
			return "", errors.Wrapf(err, "[%s] %s failed: %s", g.opts.Host, firstWord(commandLine), msg)
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (g *SSHGateway) runDocker(ctx context.Context, args ...string) (string, error) {
	return g.run(ctx, nil, "docker "+shellJoin(args))
}

func (g *SSHGateway) runShell(ctx context.Context, commandLine string) (string, error) {
	return g.run(ctx, nil, "bash -c "+shellQuote(commandLine))
}

// TransferFile streams the local file into `cat` on the remote side.
func (g *SSHGateway) TransferFile(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s", shellQuote(remoteDir(remotePath)), shellQuote(remotePath))
	if _, err := g.run(ctx, f, cmd); err != nil {
		return errors.Wrapf(err, "failed to transfer %s to %s:%s", localPath, g.opts.Host, remotePath)
	}
	return nil
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
