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

package errdefs

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOfSurvivesWrapping(t *testing.T) {
	testCases := []struct {
		Name   string
		Err    error
		Kind   error
		Status int
	}{
		{Name: "not found", Err: NotFoundf("chaincode %s", "cc1"), Kind: ErrNotFound, Status: http.StatusNotFound},
		{Name: "conflict wrapped twice", Err: errors.Wrap(Conflictf("peer p1"), "install"), Kind: ErrConflict, Status: http.StatusConflict},
		{Name: "quota", Err: QuotaExceededf("normal"), Kind: ErrQuotaExceeded, Status: http.StatusTooManyRequests},
		{Name: "timeout", Err: Timeoutf("tcp:1.2.3.4:7051"), Kind: ErrTimeout, Status: http.StatusGatewayTimeout},
		{Name: "unreachable", Err: Unreachablef("ca"), Kind: ErrUnreachable, Status: http.StatusGatewayTimeout},
		{Name: "policy", Err: PolicyInvalidf("any"), Kind: ErrPolicyInvalid, Status: http.StatusBadRequest},
		{Name: "fmt wrapped", Err: fmt.Errorf("outer: %w", Invalidf("x")), Kind: ErrInvalid, Status: http.StatusBadRequest},
		{Name: "plain error", Err: fmt.Errorf("boom"), Kind: ErrFatal, Status: http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Kind, KindOf(tc.Err))
			assert.Equal(t, tc.Status, HTTPStatus(tc.Err))
		})
	}
}

func TestMessageKeepsContext(t *testing.T) {
	err := NotFoundf("the channel does not exist: %s", "ch1")
	assert.Equal(t, "the channel does not exist: ch1: not found", err.Error())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
}
