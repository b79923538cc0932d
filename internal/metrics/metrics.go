// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics observes the pipeline without influencing it: events
// consumed per LineInfo kind, event-channel occupancy, tracked-bit counts
// and parse-error counts. It is a pure sideline, never on the hot path's
// control flow.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ClusterCockpit/vcdcov/internal/lexer"
)

// Collector is an indexer.Recorder and a pipeline channel-depth sampler,
// backed by a private Prometheus registry so a run never pollutes the
// default global registry.
type Collector struct {
	registry     *prometheus.Registry
	events       *prometheus.CounterVec
	parseErrors  prometheus.Counter
	trackedBits  prometheus.Gauge
	channelDepth prometheus.Gauge
}

// New returns a Collector with all series registered and zeroed.
func New() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vcdcov",
			Name:      "lexer_events_total",
			Help:      "Lexer events consumed by the indexer, by kind.",
		}, []string{"kind"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vcdcov",
			Name:      "parse_errors_total",
			Help:      "Fatal parsing errors encountered during indexing.",
		}),
		trackedBits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vcdcov",
			Name:      "tracked_bits",
			Help:      "Number of tracked signal bits after the Declarations phase.",
		}),
		channelDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vcdcov",
			Name:      "event_channel_depth",
			Help:      "Current occupancy of the bounded lexer-to-indexer event channel.",
		}),
	}
	registry.MustRegister(c.events, c.parseErrors, c.trackedBits, c.channelDepth)
	return c
}

// Event satisfies indexer.Recorder.
func (c *Collector) Event(kind lexer.EventKind) {
	c.events.WithLabelValues(kind.String()).Inc()
}

// ParseError satisfies indexer.Recorder.
func (c *Collector) ParseError() {
	c.parseErrors.Inc()
}

// TrackedBits satisfies indexer.Recorder.
func (c *Collector) TrackedBits(n int) {
	c.trackedBits.Set(float64(n))
}

// ObserveChannelDepth records the pipeline's current channel occupancy,
// sampled by the pipeline driver.
func (c *Collector) ObserveChannelDepth(n int) {
	c.channelDepth.Set(float64(n))
}

// Handler exposes the collector's registry for an optional diagnostics
// HTTP server (--metrics-addr).
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Summary renders a final one-line, human-readable tally; the CLI logs it
// after every successful run, whether or not --metrics-addr was given.
func (c *Collector) Summary() string {
	mfs, err := c.registry.Gather()
	if err != nil {
		return fmt.Sprintf("metrics: gather failed: %v", err)
	}
	var parseErrs, trackedBits float64
	var totalEvents float64
	for _, mf := range mfs {
		switch mf.GetName() {
		case "vcdcov_parse_errors_total":
			parseErrs = mf.GetMetric()[0].GetCounter().GetValue()
		case "vcdcov_tracked_bits":
			trackedBits = mf.GetMetric()[0].GetGauge().GetValue()
		case "vcdcov_lexer_events_total":
			for _, m := range mf.GetMetric() {
				totalEvents += m.GetCounter().GetValue()
			}
		}
	}
	return fmt.Sprintf("events=%.0f tracked_bits=%.0f parse_errors=%.0f",
		totalEvents, trackedBits, parseErrs)
}
