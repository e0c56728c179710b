// SPDX-License-Identifier: EPL-2.0

package metrics

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audplay/internal/coordinator"
	"github.com/ik5/audplay/internal/logger"
	"github.com/ik5/audplay/internal/pipeline"
)

type fixedStats struct {
	b coordinator.Stats
	p pipeline.Stats
}

func (f fixedStats) BufferStats() coordinator.Stats { return f.b }
func (f fixedStats) ProducerStats() pipeline.Stats  { return f.p }

var sample = fixedStats{
	b: coordinator.Stats{Capacity: 4096, Fill: 1500, Underruns: 3, BytesRead: 9000},
	p: pipeline.Stats{Chunks: 7, DecodeErrors: 1},
}

func TestCollector(t *testing.T) {
	t.Parallel()

	c := NewCollector(sample)
	assert.Equal(t, 19, testutil.CollectAndCount(c))

	expected := `
# HELP audplay_buffer_fill_bytes Bytes waiting in the playback buffer.
# TYPE audplay_buffer_fill_bytes gauge
audplay_buffer_fill_bytes 1500
# HELP audplay_buffer_underruns_total Pulls short of data before end of stream.
# TYPE audplay_buffer_underruns_total counter
audplay_buffer_underruns_total 3
# HELP audplay_producer_chunks_total Chunks accepted by the buffer.
# TYPE audplay_producer_chunks_total counter
audplay_producer_chunks_total 7
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"audplay_buffer_fill_bytes", "audplay_buffer_underruns_total", "audplay_producer_chunks_total"))
}

func TestMetrics_Gather(t *testing.T) {
	t.Parallel()

	m, err := New(sample, nil)
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	capFamily, ok := byName["audplay_buffer_capacity_bytes"]
	require.True(t, ok)
	assert.Equal(t, dto.MetricType_GAUGE, capFamily.GetType())
	assert.InDelta(t, 4096, capFamily.GetMetric()[0].GetGauge().GetValue(), 0)

	read, ok := byName["audplay_buffer_read_bytes_total"]
	require.True(t, ok)
	assert.InDelta(t, 9000, read.GetMetric()[0].GetCounter().GetValue(), 0)

	_, ok = byName["go_goroutines"]
	assert.True(t, ok, "runtime collector registered")
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m, err := New(sample, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "audplay_producer_decode_errors_total 1")
}

// brokenCollector yields a metric that fails to encode.
type brokenCollector struct {
	desc *prometheus.Desc
}

func (b brokenCollector) Describe(ch chan<- *prometheus.Desc) { ch <- b.desc }

func (b brokenCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.NewInvalidMetric(b.desc, errors.New("sensor unplugged"))
}

func TestMetrics_HandlerErrorsGoToLogger(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	m, err := New(sample, logger.New(&out, logger.Options{Level: "error", JSON: true}))
	require.NoError(t, err)
	require.NoError(t, m.Registry().Register(brokenCollector{
		desc: prometheus.NewDesc("audplay_test_broken", "Always fails.", nil, nil),
	}))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, out.String(), "sensor unplugged")
	assert.Contains(t, out.String(), `"module":"metrics"`)
}
