// SPDX-License-Identifier: EPL-2.0

package utils

import "encoding/binary"

// Float32ToInt16 scales x by 32768 and clamps to the int16 range, so that
// samples decoded from 16-bit PCM encode back to the same value.
func Float32ToInt16(x float32) int16 {
	v := x * 32768
	switch {
	case v >= 32767:
		return 32767
	case v <= -32768:
		return -32768
	}
	return int16(v)
}

// Int16ToFloat32 is the inverse of Float32ToInt16.
func Int16ToFloat32(v int16) float32 {
	return float32(v) / 32768
}

// IntToFloat32 normalizes a signed PCM sample of the given bit depth.
// Unknown depths are treated as 16-bit.
func IntToFloat32(v int, bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return float32(v) / 128
	case 24:
		return float32(v) / 8388608
	case 32:
		return float32(v) / 2147483648
	default:
		return float32(v) / 32768
	}
}

// EncodeS16LE writes src as signed 16-bit little endian into dst and returns
// the number of bytes written. dst must hold 2*len(src) bytes.
func EncodeS16LE(dst []byte, src []float32) int {
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(Float32ToInt16(v)))
	}
	return 2 * len(src)
}

// DecodeS16LE converts little endian 16-bit samples in src into dst and
// returns the number of samples written.
func DecodeS16LE(dst []float32, src []byte) int {
	n := min(len(dst), len(src)/2)
	for i := range n {
		dst[i] = Int16ToFloat32(int16(binary.LittleEndian.Uint16(src[2*i:])))
	}
	return n
}
