// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package codecmetrics is an optional set of prometheus counters for
// the engine (§6): messages decoded/encoded, overflow/underflow
// events, and protocol switches. Nothing here registers itself with
// prometheus.DefaultRegisterer — this module is meant to be embedded,
// and a library should never reach into a process-wide global on
// import. Call Collectors and register them with whatever registry
// the host application already uses.
package codecmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the counters this module can emit.
type Metrics struct {
	MessagesDecoded  *prometheus.CounterVec
	MessagesEncoded  *prometheus.CounterVec
	Overflows        *prometheus.CounterVec
	Underflows       *prometheus.CounterVec
	ProtocolSwitches *prometheus.CounterVec
}

// New constructs the counter vectors under the given namespace, unregistered.
func New(namespace string) *Metrics {
	return &Metrics{
		MessagesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_decoded_total",
			Help:      "Number of HTTP messages fully decoded.",
		}, []string{"role"}),
		MessagesEncoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_encoded_total",
			Help:      "Number of HTTP messages fully encoded.",
		}, []string{"role"}),
		Overflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_overflows_total",
			Help:      "Number of decode/encode calls that returned overflow.",
		}, []string{"direction"}),
		Underflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_underflows_total",
			Help:      "Number of decode/encode calls that returned underflow.",
		}, []string{"direction"}),
		ProtocolSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_switches_total",
			Help:      "Number of connections that switched away from HTTP/1.x.",
		}, []string{"protocol"}),
	}
}

// Collectors returns every collector in m, for a caller to pass to its
// own prometheus.Registerer.Register / MustRegister.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesDecoded,
		m.MessagesEncoded,
		m.Overflows,
		m.Underflows,
		m.ProtocolSwitches,
	}
}
