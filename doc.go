// SPDX-License-Identifier: EPL-2.0

// Package audplay opens audio files and shapes them for a playback device.
//
// # Supported Formats
//
// DefaultRegistry knows the following formats:
//   - WAV (integer PCM 8/16/24/32-bit) via formats/wav
//   - MP3 via formats/mp3
//   - Ogg Vorbis via formats/vorbis
//   - AIFF (integer PCM) via formats/aiff
//   - FLAC via formats/flac
//
// A file is matched by its extension first and by its leading bytes when the
// extension is missing or unknown.
//
// # Quick Start
//
//	src, err := audplay.OpenFile("song.flac")
//	if err != nil {
//		return err
//	}
//	defer src.Close()
//
//	// 48 kHz stereo float32, ready for the device.
//	out := audplay.ForDevice(src, 48000, 2)
//
// RenderS16 drains a source into an io.Writer as signed 16-bit little endian
// PCM, which is handy for offline conversion and for tests:
//
//	n, err := audplay.RenderS16(src, 8000, 1, w)
//
// For finer control build the chain from the audio subpackage:
// audio.NewResampler, audio.NewChannelMapper and audio.NewPCM16Reader.
package audplay
