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
	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus entry to Logger. The server uses it so request
// handling produces structured output.
type LogrusLogger struct {
	Entry *logrus.Entry
}

func NewLogrusLogger(l *logrus.Logger, fields logrus.Fields) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{Entry: l.WithFields(fields)}
}

func (l *LogrusLogger) SetLogLevel(level LogLevel) {
	var lvl logrus.Level
	switch level {
	case Trace:
		lvl = logrus.TraceLevel
	case Debug:
		lvl = logrus.DebugLevel
	case Warn:
		lvl = logrus.WarnLevel
	case Error:
		lvl = logrus.ErrorLevel
	default:
		lvl = logrus.InfoLevel
	}
	l.Entry.Logger.SetLevel(lvl)
}

// WithField returns a child logger that adds k=v to every entry.
func (l *LogrusLogger) WithField(k string, v interface{}) *LogrusLogger {
	return &LogrusLogger{Entry: l.Entry.WithField(k, v)}
}

func (l *LogrusLogger) Trace(s string) {
	l.Entry.Trace(s)
}

func (l *LogrusLogger) Debug(s string) {
	l.Entry.Debug(s)
}

func (l *LogrusLogger) Info(s string) {
	l.Entry.Info(s)
}

func (l *LogrusLogger) Warn(s string) {
	l.Entry.Warn(s)
}

func (l *LogrusLogger) Error(e error) {
	l.Entry.WithError(e).Error(e.Error())
}
