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

// Package errdefs classifies the failures of the provisioning core. Every error
// returned by the core wraps exactly one of the sentinel kinds below, so callers
// can branch with errors.Is or KindOf regardless of how much context was added.
package errdefs

import (
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrUnreachable    = errors.New("unreachable")
	ErrTimeout        = errors.New("timeout")
	ErrPolicyInvalid  = errors.New("policy invalid")
	ErrPartialFailure = errors.New("partial failure")
	ErrFatal          = errors.New("fatal")
	ErrInvalid        = errors.New("invalid")
)

var kinds = []error{
	ErrNotFound,
	ErrConflict,
	ErrQuotaExceeded,
	ErrUnreachable,
	ErrTimeout,
	ErrPolicyInvalid,
	ErrPartialFailure,
	ErrFatal,
	ErrInvalid,
}

func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

func Conflictf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

func QuotaExceededf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrQuotaExceeded, format, args...)
}

func Unreachablef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnreachable, format, args...)
}

func Timeoutf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrTimeout, format, args...)
}

func PolicyInvalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrPolicyInvalid, format, args...)
}

func PartialFailuref(format string, args ...interface{}) error {
	return errors.Wrapf(ErrPartialFailure, format, args...)
}

func Fatalf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrFatal, format, args...)
}

func Invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

// KindOf returns the sentinel kind wrapped by err, or ErrFatal when err does
// not carry a known kind.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrFatal
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// HTTPStatus maps an error onto the status code of the REST envelope.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrQuotaExceeded:
		return http.StatusTooManyRequests
	case ErrUnreachable, ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrInvalid, ErrPolicyInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
