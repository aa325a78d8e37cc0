// go-meshbridge
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-meshbridge.
//
// go-meshbridge is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-meshbridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-meshbridge; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package metrics exports bridge counters to Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ZaparooProject/go-meshbridge"
	"github.com/ZaparooProject/go-meshbridge/link"
)

const namespace = "meshbridge"

// Source is a bridge whose counters are exported.
type Source interface {
	Port() string
	Metrics() meshbridge.Metrics
	Link() *link.Manager
}

var (
	framesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "frames_total"),
		"Frames carried over the backhaul.",
		[]string{"port", "direction"}, nil,
	)
	bytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "bytes_total"),
		"Bytes carried over the backhaul.",
		[]string{"port", "direction"}, nil,
	)
	frameErrorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "frame_errors_total"),
		"Frames rejected by kind: checksum, resync, decode or oversize.",
		[]string{"port", "kind"}, nil,
	)
	droppedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "packets_dropped_total"),
		"Packets not forwarded, by reason.",
		[]string{"port", "reason"}, nil,
	)
	inboundDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "inbound_packets_total"),
		"Packets handed to the mesh stack.",
		[]string{"port"}, nil,
	)
	transitionsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "link", "transitions_total"),
		"Link up and down transitions.",
		[]string{"port", "direction"}, nil,
	)
	connectFailuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "link", "connect_failures_total"),
		"Failed connection attempts.",
		[]string{"port"}, nil,
	)
	readyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "link", "ready"),
		"1 when frames can flow.",
		[]string{"port"}, nil,
	)
	stateDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "link", "state"),
		"Current link lifecycle state (1 for the active state).",
		[]string{"port", "state"}, nil,
	)
)

var linkStates = []link.State{link.StateIdle, link.StateDiscovering, link.StateConnecting, link.StateReady}

// Collector is a prometheus.Collector over a set of bridges. Values are read
// from the bridges on every scrape.
type Collector struct {
	sources []Source
	mu      sync.RWMutex
}

// NewCollector creates a collector for sources.
func NewCollector(sources ...Source) *Collector {
	return &Collector{sources: sources}
}

// Add starts exporting src.
func (c *Collector) Add(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, src)
}

// Describe implements prometheus.Collector.
func (*Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- framesDesc
	ch <- bytesDesc
	ch <- frameErrorsDesc
	ch <- droppedDesc
	ch <- inboundDesc
	ch <- transitionsDesc
	ch <- connectFailuresDesc
	ch <- readyDesc
	ch <- stateDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	sources := append([]Source(nil), c.sources...)
	c.mu.RUnlock()

	for _, src := range sources {
		collectSource(ch, src)
	}
}

func collectSource(ch chan<- prometheus.Metric, src Source) {
	port := src.Port()
	m := src.Metrics()

	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), append([]string{port}, labels...)...)
	}

	counter(framesDesc, m.FramesTx, "tx")
	counter(framesDesc, m.FramesRx, "rx")
	counter(bytesDesc, m.BytesTx, "tx")
	counter(bytesDesc, m.BytesRx, "rx")

	counter(frameErrorsDesc, m.ChecksumFailures, "checksum")
	counter(frameErrorsDesc, m.Resyncs, "resync")
	counter(frameErrorsDesc, m.DecodeErrors, "decode")
	counter(frameErrorsDesc, m.Oversize, "oversize")

	counter(droppedDesc, m.Dropped, "not_ready")
	counter(droppedDesc, m.Duplicates, "duplicate")
	counter(droppedDesc, m.Suppressed, "suppressed")
	counter(droppedDesc, m.PoolExhausted, "pool_exhausted")

	counter(inboundDesc, m.Inbound)
	counter(transitionsDesc, m.LinkUps, "up")
	counter(transitionsDesc, m.LinkDowns, "down")
	counter(connectFailuresDesc, m.ConnectFailures)

	lm := src.Link()
	ready := 0.0
	if lm.Ready() {
		ready = 1
	}
	ch <- prometheus.MustNewConstMetric(readyDesc, prometheus.GaugeValue, ready, port)

	current := lm.State()
	for _, s := range linkStates {
		v := 0.0
		if s == current {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, v, port, s.String())
	}
}

// NewRegistry returns a registry holding c plus the Go runtime and process
// collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
