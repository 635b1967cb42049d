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
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastWait = WaitOptions{Interval: 20 * time.Millisecond, Timeout: 200 * time.Millisecond}

func TestWaitForHTTP(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("GET", "http://ca:7054/api/v1/cainfo", func(req *http.Request) (*http.Response, error) {
		calls++
		if calls < 2 {
			return httpmock.NewStringResponse(500, ""), nil
		}
		return httpmock.NewStringResponse(200, "{}"), nil
	})
	assert.NoError(t, WaitForHTTP(context.Background(), "http://ca:7054/api/v1/cainfo", fastWait))
}

func TestWaitForHTTPTimesOut(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "http://ca:7054/api/v1/cainfo", httpmock.NewStringResponder(503, ""))
	err := WaitForHTTP(context.Background(), "http://ca:7054/api/v1/cainfo", fastWait)
	assert.ErrorIs(t, err, errdefs.ErrUnreachable)
}

// silentServer accepts connections and never answers on them.
func silentServer(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var mux sync.Mutex
	held := []net.Conn{}
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			mux.Lock()
			held = append(held, c)
			mux.Unlock()
		}
	}()
	t.Cleanup(func() {
		l.Close()
		mux.Lock()
		defer mux.Unlock()
		for _, c := range held {
			c.Close()
		}
	})
	return l.Addr().String()
}

func TestWaitForHTTPSilentServer(t *testing.T) {
	addr := silentServer(t)
	done := make(chan error, 1)
	go func() {
		done <- WaitForHTTP(context.Background(), "http://"+addr+"/api/v1/cainfo",
			WaitOptions{Interval: 50 * time.Millisecond, Timeout: 300 * time.Millisecond})
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, errdefs.ErrUnreachable)
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not give up on a server that never answers")
	}
}

func TestWaitForTCP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	assert.NoError(t, WaitForTCP(context.Background(), l.Addr().String(), fastWait))

	addr := l.Addr().String()
	l.Close()
	assert.ErrorIs(t, WaitForTCP(context.Background(), addr, fastWait), errdefs.ErrUnreachable)
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitForTCP(ctx, "127.0.0.1:1", WaitOptions{Delay: time.Second, Interval: time.Millisecond, Timeout: time.Second})
	assert.ErrorIs(t, err, errdefs.ErrTimeout)
}
