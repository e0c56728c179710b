// SPDX-License-Identifier: EPL-2.0

package telemetry

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audplay/internal/errors"
)

// mockTransport records events instead of sending them.
type mockTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (*mockTransport) Configure(sentry.ClientOptions) {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (*mockTransport) Flush(time.Duration) bool              { return true }
func (*mockTransport) FlushWithContext(context.Context) bool { return true }
func (*mockTransport) Close()                                {}

func (t *mockTransport) Events() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func newTestReporter(t *testing.T) (*Reporter, *mockTransport) {
	t.Helper()

	tr := &mockTransport{}
	r, err := New(Config{Environment: "test", SampleRate: 1, Transport: tr}, nil)
	require.NoError(t, err)
	return r, tr
}

func TestReportError_HighPriority(t *testing.T) {
	t.Parallel()

	r, tr := newTestReporter(t)
	require.True(t, r.IsEnabled())

	ee := errors.New(stderrors.New("device vanished")).
		Component("device").
		Category(errors.CategoryAudioDevice).
		Priority(errors.PriorityHigh).
		Context("backend", "alsa").
		Build()
	r.ReportError(ee)
	r.Flush(time.Second)

	events := tr.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "device", events[0].Tags["component"])
	assert.Equal(t, string(errors.CategoryAudioDevice), events[0].Tags["category"])
	assert.Equal(t, sentry.LevelError, events[0].Level)
	require.NotEmpty(t, events[0].Exception)
	assert.Equal(t, "device vanished", events[0].Exception[len(events[0].Exception)-1].Value)
}

func TestReportError_SkipsLowPriority(t *testing.T) {
	t.Parallel()

	r, tr := newTestReporter(t)

	r.ReportError(errors.New(stderrors.New("decode glitch")).
		Component("pipeline").
		Priority(errors.PriorityLow).
		Build())
	r.ReportError(errors.New(stderrors.New("no priority")).Build())

	assert.Empty(t, tr.Events())
}

func TestReportError_CriticalIsFatal(t *testing.T) {
	t.Parallel()

	r, tr := newTestReporter(t)
	r.ReportError(errors.New(stderrors.New("boom")).Priority(errors.PriorityCritical).Build())

	events := tr.Events()
	require.Len(t, events, 1)
	assert.Equal(t, sentry.LevelFatal, events[0].Level)
}

// Not parallel: installs the global reporter.
func TestInstall(t *testing.T) {
	r, tr := newTestReporter(t)

	uninstall := r.Install()
	_ = errors.New(stderrors.New("open failed")).
		Component("player").
		Priority(errors.PriorityHigh).
		Build()
	uninstall()

	_ = errors.New(stderrors.New("after uninstall")).Priority(errors.PriorityHigh).Build()

	require.Len(t, tr.Events(), 1)
}
