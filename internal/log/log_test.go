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

package log

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoggerFromContextFallsBack(t *testing.T) {
	ctx := context.Background()
	l := LoggerFromContext(ctx)
	assert.NotNil(t, l)
	l.Info("nobody listens")
	assert.False(t, VerbosityFromContext(ctx))

	stdout := &StdoutLogger{}
	ctx = WithVerbosity(WithLogger(ctx, stdout), true)
	assert.Same(t, stdout, LoggerFromContext(ctx))
	assert.True(t, VerbosityFromContext(ctx))
}

func TestStdoutLoggerLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	l := &StdoutLogger{Out: buf, LogLevel: Warn}
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error(fmt.Errorf("failed"))
	assert.Equal(t, "shown\nfailed\n", buf.String())

	l.SetLogLevel(Trace)
	l.Trace("trace")
	assert.Contains(t, buf.String(), "trace\n")
}

func TestLogLevelFromString(t *testing.T) {
	lvl, err := LogLevelFromString("DEBUG")
	assert.NoError(t, err)
	assert.Equal(t, Debug, lvl)
	assert.Equal(t, "debug", lvl.String())

	_, err = LogLevelFromString("loud")
	assert.Error(t, err)
}

func TestSpinnerLoggerSuffix(t *testing.T) {
	spin := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	l := NewSpinnerLogger(spin)
	l.Debug("hidden")
	assert.Equal(t, "", spin.Suffix)
	l.Info("provisioning peer")
	assert.Equal(t, " provisioning peer...", spin.Suffix)
	l.Error(fmt.Errorf("boom"))
	assert.Equal(t, " Error: boom...", spin.Suffix)
}

func TestLogrusLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	base := logrus.New()
	base.SetOutput(buf)
	base.SetFormatter(&logrus.JSONFormatter{})
	l := NewLogrusLogger(base, logrus.Fields{"component": "test"})
	l.SetLogLevel(Debug)
	l.WithField("request", "r1").Debug("running")
	assert.Contains(t, buf.String(), `"component":"test"`)
	assert.Contains(t, buf.String(), `"request":"r1"`)
	assert.Contains(t, buf.String(), `"msg":"running"`)
}
