// SPDX-License-Identifier: EPL-2.0

// Package metrics exposes playback statistics to Prometheus. Values are read
// from the coordinator and producer counters at scrape time, so the device
// callback does no metric work.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ik5/audplay/internal/coordinator"
	"github.com/ik5/audplay/internal/logger"
	"github.com/ik5/audplay/internal/pipeline"
)

const namespace = "audplay"

// StatsSource supplies the current counters. Implementations return zero
// values while nothing is playing.
type StatsSource interface {
	BufferStats() coordinator.Stats
	ProducerStats() pipeline.Stats
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(coordinator.Stats, pipeline.Stats) float64
	kind  prometheus.ValueType
}

func newDesc(subsystem, name, help string, kind prometheus.ValueType, value func(coordinator.Stats, pipeline.Stats) float64) counterDesc {
	return counterDesc{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
		value: value,
		kind:  kind,
	}
}

// Collector is a prometheus.Collector over a StatsSource.
type Collector struct {
	src   StatsSource
	descs []counterDesc
}

func NewCollector(src StatsSource) *Collector {
	g, c := prometheus.GaugeValue, prometheus.CounterValue
	type (
		bs = coordinator.Stats
		ps = pipeline.Stats
	)

	return &Collector{
		src: src,
		descs: []counterDesc{
			newDesc("buffer", "capacity_bytes", "Playback buffer capacity.", g,
				func(b bs, _ ps) float64 { return float64(b.Capacity) }),
			newDesc("buffer", "fill_bytes", "Bytes waiting in the playback buffer.", g,
				func(b bs, _ ps) float64 { return float64(b.Fill) }),
			newDesc("buffer", "high_water_bytes", "Fill level that throttles the producer.", g,
				func(b bs, _ ps) float64 { return float64(b.HighWater) }),
			newDesc("buffer", "low_water_bytes", "Fill level that wakes the producer.", g,
				func(b bs, _ ps) float64 { return float64(b.LowWater) }),
			newDesc("buffer", "written_bytes_total", "Bytes pushed by the producer.", c,
				func(b bs, _ ps) float64 { return float64(b.BytesWritten) }),
			newDesc("buffer", "read_bytes_total", "Real bytes delivered to the device.", c,
				func(b bs, _ ps) float64 { return float64(b.BytesRead) }),
			newDesc("buffer", "pulls_total", "Device callback pulls.", c,
				func(b bs, _ ps) float64 { return float64(b.Pulls) }),
			newDesc("buffer", "underruns_total", "Pulls short of data before end of stream.", c,
				func(b bs, _ ps) float64 { return float64(b.Underruns) }),
			newDesc("buffer", "silence_bytes_total", "Zero bytes inserted on underrun.", c,
				func(b bs, _ ps) float64 { return float64(b.SilenceBytes) }),
			newDesc("buffer", "tail_silence_bytes_total", "Zero bytes delivered after end of stream.", c,
				func(b bs, _ ps) float64 { return float64(b.TailSilenceBytes) }),
			newDesc("buffer", "throttle_waits_total", "Producer waits at the high-water mark.", c,
				func(b bs, _ ps) float64 { return float64(b.ThrottleWaits) }),
			newDesc("buffer", "throttle_timeouts_total", "Producer waits that hit the timeout.", c,
				func(b bs, _ ps) float64 { return float64(b.ThrottleTimeouts) }),
			newDesc("buffer", "overflows_total", "Pushes that did not fit after waiting.", c,
				func(b bs, _ ps) float64 { return float64(b.Overflows) }),
			newDesc("buffer", "dropped_bytes_total", "Bytes discarded by the overflow policy.", c,
				func(b bs, _ ps) float64 { return float64(b.DroppedBytes) }),
			newDesc("buffer", "grows_total", "Capacity increases by the grow policy.", c,
				func(b bs, _ ps) float64 { return float64(b.Grows) }),
			newDesc("producer", "chunks_total", "Chunks accepted by the buffer.", c,
				func(_ bs, p ps) float64 { return float64(p.Chunks) }),
			newDesc("producer", "decode_errors_total", "Decode errors skipped.", c,
				func(_ bs, p ps) float64 { return float64(p.DecodeErrors) }),
			newDesc("producer", "overflow_retries_total", "Pushes retried after overflow.", c,
				func(_ bs, p ps) float64 { return float64(p.OverflowRetries) }),
			newDesc("producer", "dropped_chunks_total", "Chunks given up on after overflow.", c,
				func(_ bs, p ps) float64 { return float64(p.DroppedChunks) }),
		},
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d.desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	b, p := c.src.BufferStats(), c.src.ProducerStats()
	for _, d := range c.descs {
		ch <- prometheus.MustNewConstMetric(d.desc, d.kind, d.value(b, p))
	}
}

// Metrics owns the registry served on /metrics.
type Metrics struct {
	registry *prometheus.Registry
	log      logger.Logger
}

// New creates a registry with the Go runtime and process collectors and a
// Collector over src. A nil log discards handler errors.
func New(src StatsSource, log logger.Logger) (*Metrics, error) {
	if log == nil {
		log = logger.NewDiscard()
	}

	registry := prometheus.NewRegistry()

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewCollector(src),
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Metrics{registry: registry, log: log.Module("metrics")}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      errorLog{m.log},
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// errorLog routes promhttp errors to the module logger.
type errorLog struct {
	log logger.Logger
}

func (e errorLog) Println(v ...any) {
	e.log.Error("metrics handler error", logger.String("error", fmt.Sprint(v...)))
}
