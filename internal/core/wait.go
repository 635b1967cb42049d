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

package core

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
)

// WaitOptions bound a readiness wait: nothing is checked during Delay, then
// the resource is polled every Interval until Timeout expires.
type WaitOptions struct {
	Delay    time.Duration
	Interval time.Duration
	Timeout  time.Duration
}

type readinessCheck func(ctx context.Context) error

// WaitForHTTP polls url until it answers with a 2xx status.
func WaitForHTTP(ctx context.Context, url string, opts WaitOptions) error {
	return waitOn(ctx, url, opts, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%s [%d]", url, resp.StatusCode)
		}
		return nil
	})
}

// WaitForTCP polls addr (host:port) until a connection is accepted.
func WaitForTCP(ctx context.Context, addr string, opts WaitOptions) error {
	return waitOn(ctx, "tcp:"+addr, opts, func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	})
}

// waitOn runs check until it succeeds or Timeout runs out. Each attempt is
// cut off after Interval, so a peer that accepts but never answers cannot
// hold the wait past its deadline.
func waitOn(ctx context.Context, resource string, opts WaitOptions, check readinessCheck) error {
	logger := log.LoggerFromContext(ctx)
	logger.Debug(fmt.Sprintf("waiting for %s", resource))
	if opts.Delay > 0 {
		select {
		case <-ctx.Done():
			return errdefs.Timeoutf("waiting for %s: %s", resource, ctx.Err())
		case <-time.After(opts.Delay):
		}
	}
	overall, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	for {
		attempt, cancelAttempt := context.WithTimeout(overall, opts.Interval)
		err := check(attempt)
		cancelAttempt()
		if err == nil {
			return nil
		}
		select {
		case <-overall.Done():
			if ctx.Err() != nil {
				return errdefs.Timeoutf("waiting for %s: %s", resource, ctx.Err())
			}
			return errdefs.Unreachablef("%s did not become ready within %s: %s", resource, opts.Timeout, err)
		case <-time.After(opts.Interval):
		}
	}
}
