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

package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

var output = "json"

func printResult(out io.Writer, v interface{}) error {
	var (
		bytes []byte
		err   error
	)
	switch output {
	case "json":
		bytes, err = json.MarshalIndent(v, "", "  ")
	case "yaml":
		bytes, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("invalid output '%s'", output)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(bytes))
	return nil
}
