package modem

import (
	"encoding/binary"
	"math"
)

// sampleSizeBytes returns the size of one sample, or 0 for undefined formats.
func sampleSizeBytes(f SampleFormat) int {
	switch f {
	case FormatU8, FormatI8:
		return 1
	case FormatU16, FormatI16:
		return 2
	case FormatF32:
		return 4
	default:
		return 0
	}
}

// bytesToSamples converts raw little-endian PCM to float samples in [-1, 1].
// Trailing bytes that do not form a whole sample are ignored.
func bytesToSamples(raw []byte, f SampleFormat) []float32 {
	size := sampleSizeBytes(f)
	n := len(raw) / size
	out := make([]float32, n)

	for i := 0; i < n; i++ {
		chunk := raw[i*size:]
		switch f {
		case FormatU8:
			out[i] = (float32(chunk[0]) - 128) / 128
		case FormatI8:
			out[i] = float32(int8(chunk[0])) / 128
		case FormatU16:
			v := binary.LittleEndian.Uint16(chunk)
			out[i] = (float32(v) - 32768) / 32768
		case FormatI16:
			out[i] = float32(int16(binary.LittleEndian.Uint16(chunk))) / 32768
		case FormatF32:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(chunk))
		}
	}
	return out
}

// samplesToBytes renders float samples into the requested PCM format.
// Conversion to integer formats saturates at the type range.
func samplesToBytes(samples []float32, f SampleFormat) []byte {
	size := sampleSizeBytes(f)
	out := make([]byte, len(samples)*size)

	for i, s := range samples {
		chunk := out[i*size:]
		switch f {
		case FormatU8:
			chunk[0] = byte(clampInt(float64(s)*128+128, 0, 255))
		case FormatI8:
			chunk[0] = byte(int8(clampInt(float64(s)*128, -128, 127)))
		case FormatU16:
			binary.LittleEndian.PutUint16(chunk, uint16(clampInt(float64(s)*32768+32768, 0, 65535)))
		case FormatI16:
			binary.LittleEndian.PutUint16(chunk, uint16(int16(clampInt(float64(s)*32768, -32768, 32767))))
		case FormatF32:
			binary.LittleEndian.PutUint32(chunk, math.Float32bits(s))
		}
	}
	return out
}

func clampInt(v, lo, hi float64) int {
	if v < lo {
		return int(lo)
	}
	if v > hi {
		return int(hi)
	}
	return int(v)
}
