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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
)

// DefaultRequestTimeout bounds a single request when the caller does not
// pass WithTimeout.
const DefaultRequestTimeout = 30 * time.Second

// HTTPError is returned for any response outside of the 2xx range.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s [%d] %s", e.URL, e.StatusCode, e.Body)
}

type requestOptions struct {
	headers    map[string]string
	username   string
	password   string
	retries    int
	retryDelay time.Duration
	timeout    time.Duration
}

type RequestOption func(*requestOptions)

func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.headers[key] = value
	}
}

func WithBasicAuth(username, password string) RequestOption {
	return func(o *requestOptions) {
		o.username = username
		o.password = password
	}
}

// WithTimeout bounds each attempt of a request. Non-positive values keep
// DefaultRequestTimeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithRetries(retries int, delay time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.retries = retries
		o.retryDelay = delay
	}
}

// RequestWithRetry repeats a request while the server cannot be reached or
// answers with a 5xx. Client errors are returned straight away.
func RequestWithRetry(ctx context.Context, method, url string, body, result interface{}, opts ...RequestOption) error {
	o := &requestOptions{
		headers:    map[string]string{},
		retries:    30,
		retryDelay: 1 * time.Second,
		timeout:    DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	logger := log.LoggerFromContext(ctx)
	retries := o.retries
	for {
		err := request(ctx, method, url, body, result, o)
		if err == nil || retries <= 0 || !retryable(err) {
			return err
		}
		logger.Debug(fmt.Sprintf("%s - retrying request", err.Error()))
		retries--
		select {
		case <-ctx.Done():
			return errdefs.Timeoutf("%s %s: %s", method, url, ctx.Err())
		case <-time.After(o.retryDelay):
		}
	}
}

// Request performs a single JSON request. body may be a []byte, in which case
// it is sent untouched.
func Request(ctx context.Context, method, url string, body, result interface{}, opts ...RequestOption) error {
	o := &requestOptions{headers: map[string]string{}, timeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(o)
	}
	return request(ctx, method, url, body, result, o)
}

func retryable(err error) bool {
	if httpErr, ok := err.(*HTTPError); ok {
		return httpErr.StatusCode >= 500
	}
	return true
}

func request(ctx context.Context, method, url string, body, result interface{}, o *requestOptions) error {
	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		bodyReader = bytes.NewReader(b)
	default:
		requestBody, err := json.Marshal(b)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(requestBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}
	if o.username != "" {
		req.SetBasicAuth(o.username, o.password)
	}
	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return errdefs.Unreachablef("%s %s: %s", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var responseBytes []byte
		if resp.StatusCode != 204 {
			responseBytes, _ = io.ReadAll(resp.Body)
		}
		return &HTTPError{URL: url, StatusCode: resp.StatusCode, Body: responseBytes}
	}

	if resp.StatusCode == 204 || result == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
