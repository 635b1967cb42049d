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
	"fmt"

	"github.com/briandowns/spinner"
)

// SpinnerLogger shows the latest message as the suffix of a terminal spinner.
type SpinnerLogger struct {
	Spinner  *spinner.Spinner
	logLevel LogLevel
}

func NewSpinnerLogger(spin *spinner.Spinner) *SpinnerLogger {
	spin.FinalMSG = "done\n"
	return &SpinnerLogger{
		Spinner:  spin,
		logLevel: Info,
	}
}

func (l *SpinnerLogger) SetLogLevel(level LogLevel) {
	l.logLevel = level
}

func (l *SpinnerLogger) Trace(s string) {
	l.update(Trace, s)
}

func (l *SpinnerLogger) Debug(s string) {
	l.update(Debug, s)
}

func (l *SpinnerLogger) Info(s string) {
	l.update(Info, s)
}

func (l *SpinnerLogger) Warn(s string) {
	l.update(Warn, s)
}

func (l *SpinnerLogger) Error(e error) {
	l.update(Error, fmt.Sprintf("Error: %s", e.Error()))
}

func (l *SpinnerLogger) update(level LogLevel, s string) {
	if l.logLevel > level || l.Spinner == nil {
		return
	}
	l.Spinner.Lock()
	l.Spinner.Suffix = fmt.Sprintf(" %s...", s)
	l.Spinner.Unlock()
}
