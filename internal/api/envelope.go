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

package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/hyperledger/leizu/internal/errdefs"
)

const maxBodySize = 4 * 1024 * 1024

type Envelope struct {
	Code   int         `json:"code"`
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
	Msg    string      `json:"msg"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, &Envelope{Code: http.StatusOK, Status: "success", Data: data})
}

// fail answers with the status matching the kind of err. data may carry a
// partial result, such as a request that ended in error.
func fail(w http.ResponseWriter, err error, data interface{}) {
	code := errdefs.HTTPStatus(err)
	writeJSON(w, code, &Envelope{Code: code, Status: "error", Data: data, Msg: err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errdefs.Invalidf("reading request body: %s", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errdefs.Invalidf("request body is not valid JSON: %s", err)
	}
	return nil
}
