// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Source is a stream of interleaved float32 samples in [-1, 1].
type Source interface {
	// SampleRate of the PCM stream in Hz.
	SampleRate() int
	// Channels count (e.g., 1=mono, 2=stereo).
	Channels() int
	// ReadSamples fills dst with interleaved samples and returns the number of
	// float32 values written, not frames. io.EOF ends the stream and may come
	// together with a final n > 0.
	ReadSamples(dst []float32) (n int, err error)

	// BufSize is the preferred read size in samples.
	BufSize() int

	// Close releases any resources.
	Close() error
}

// Decoder constructs a Source from an input reader.
type Decoder interface {
	Decode(r io.Reader) (Source, error)
}

// Magic matches a file header to a format.
type Magic func(header []byte) bool

type entry struct {
	decoder Decoder
	exts    []string
	magic   Magic
}

// Registry maps format names ("wav", "mp3", "vorbis") to decoders and detects
// the format of an input by file extension or header bytes.
type Registry struct {
	mtx    sync.RWMutex
	codecs map[string]entry
	exts   map[string]string
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]entry),
		exts:   make(map[string]string),
	}
}

// Register adds or replaces the decoder for format. exts are file extensions
// without the dot; magic may be nil.
func (r *Registry) Register(format string, d Decoder, magic Magic, exts ...string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.codecs[format]; !ok {
		r.order = append(r.order, format)
	}

	normalized := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		r.exts[ext] = format
		normalized = append(normalized, ext)
	}

	r.codecs[format] = entry{decoder: d, exts: normalized, magic: magic}
}

func (r *Registry) Get(format string) (Decoder, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	e, ok := r.codecs[format]
	return e.decoder, ok
}

// Formats lists the registered format names in registration order.
func (r *Registry) Formats() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	return slices.Clone(r.order)
}

// Extensions returns the file extensions registered for format.
func (r *Registry) Extensions(format string) []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	return slices.Clone(r.codecs[format].exts)
}

// Detect picks the format for an input named name whose first bytes are
// header. The extension wins when it is registered; otherwise the header is
// matched against each format's magic in registration order.
func (r *Registry) Detect(name string, header []byte) (string, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if format, ok := r.exts[ext]; ok {
		return format, nil
	}

	for _, format := range r.order {
		if m := r.codecs[format].magic; m != nil && m(header) {
			return format, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// HeaderSize is the number of leading bytes Detect needs.
const HeaderSize = 12

// Prefix returns a Magic matching a fixed prefix at offset.
func Prefix(offset int, prefix string) Magic {
	return func(h []byte) bool {
		return len(h) >= offset+len(prefix) && bytes.Equal(h[offset:offset+len(prefix)], []byte(prefix))
	}
}

// All returns a Magic matching only when every m matches.
func All(m ...Magic) Magic {
	return func(h []byte) bool {
		for _, f := range m {
			if !f(h) {
				return false
			}
		}
		return true
	}
}
