// SPDX-License-Identifier: EPL-2.0

package errors

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu      sync.Mutex
	enabled bool
	got     []*EnhancedError
}

func (r *recordingReporter) IsEnabled() bool { return r.enabled }

func (r *recordingReporter) ReportError(err *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, err)
}

func TestBuilder_WrapsCause(t *testing.T) {
	t.Parallel()

	err := New(io.ErrUnexpectedEOF).
		Component("pipeline").
		Category(CategoryAudioSource).
		Context("path", "song.mp3").
		Build()

	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "pipeline", err.Component)
	assert.Equal(t, CategoryAudioSource, err.Category)
	assert.Equal(t, "song.mp3", err.GetContext()["path"])
	assert.Equal(t, io.ErrUnexpectedEOF.Error(), err.Error())
}

func TestBuilder_Defaults(t *testing.T) {
	t.Parallel()

	err := New(nil).Context("error", "device stopped").Build()

	assert.Equal(t, "device stopped", err.Error())
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, "unknown", err.Component)
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	inner := New(io.EOF).Category(CategoryFileIO).Build()
	outer := New(inner).Category(CategoryAudioDevice).Build()

	assert.True(t, IsCategory(outer, CategoryAudioDevice))
	assert.True(t, IsCategory(outer, CategoryFileIO))
	assert.False(t, IsCategory(outer, CategoryBuffer))
	assert.False(t, IsCategory(io.EOF, CategoryFileIO))
	assert.True(t, Is(outer, &EnhancedError{Category: CategoryAudioDevice}))
}

// Not parallel: it swaps the global reporter.
func TestReporterHook(t *testing.T) {
	rep := &recordingReporter{enabled: true}
	SetReporter(rep)
	t.Cleanup(func() { SetReporter(nil) })

	_ = New(io.EOF).Priority(PriorityCritical).Build()
	rep.enabled = false
	_ = New(io.EOF).Build()

	require.Len(t, rep.got, 1)
	assert.Equal(t, PriorityCritical, rep.got[0].Priority)
}
