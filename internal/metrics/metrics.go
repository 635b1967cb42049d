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

// Package metrics exposes prometheus collectors for action dispatches,
// provisioning requests and chaincode operations. A nil *Metrics records
// nothing, so library code never has to check.
package metrics

import (
	"net/http"
	"time"

	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leizu"

type Metrics struct {
	registry       *prometheus.Registry
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	requests       *prometheus.CounterVec
	chaincode      *prometheus.CounterVec
}

// New registers every collector on a private registry, together with the
// process and go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Action dispatches by resource, verb and outcome.",
		}, []string{"resource", "verb", "outcome"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of action dispatches.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"resource", "verb"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioning_requests_total",
			Help:      "Provisioning requests by terminal status.",
		}, []string{"status"}),
		chaincode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chaincode_operations_total",
			Help:      "Chaincode lifecycle operations by outcome.",
		}, []string{"operation", "outcome"}),
	}
	m.registry.MustRegister(
		m.actions,
		m.actionDuration,
		m.requests,
		m.chaincode,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// outcome is "success", or the lower case error kind.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return errdefs.KindOf(err).Error()
}

func (m *Metrics) ObserveAction(resource, verb string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(resource, verb, outcome(err)).Inc()
	m.actionDuration.WithLabelValues(resource, verb).Observe(d.Seconds())
}

func (m *Metrics) ObserveRequest(status types.RequestStatus) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ObserveChaincode(operation string, err error) {
	if m == nil {
		return
	}
	m.chaincode.WithLabelValues(operation, outcome(err)).Inc()
}
