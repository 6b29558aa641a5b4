package modem

import (
	"errors"
	"sync"
)

// The handle registry is a thin C-style surface: modem instances are looked
// up by integer handle in a process-global table. Failures are reported as
// negative counts rather than errors, matching the foreign ABI it mirrors.

const (
	// StatusError signals a failed registry operation.
	StatusError = -1
	// StatusBufferTooSmall signals that the caller's output buffer cannot
	// hold the decoded payload.
	StatusBufferTooSmall = -2
)

var (
	registryMu sync.Mutex
	registry   = make(map[int]*Modem)
	nextHandle int
)

// Open creates a modem instance and returns its handle, or StatusError when
// the parameters are invalid.
func Open(params Parameters) int {
	m, err := New(params, nil)
	if err != nil {
		return StatusError
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	h := nextHandle
	nextHandle++
	registry[h] = m
	return h
}

// Lookup returns the modem behind a handle.
func Lookup(handle int) (*Modem, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	m, ok := registry[handle]
	return m, ok
}

// Free releases a handle. Unknown handles are ignored.
func Free(handle int) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, handle)
}

// Encode query flags.
const (
	QueryNone    = 0 // perform the encoding
	QueryBytes   = 1 // return the waveform size in bytes
	QuerySamples = 2 // return the waveform size in samples
)

// HandleEncode encodes payload through the handle's modem. With QueryNone
// the waveform is written to out and the byte count returned; the query
// flags only report the expected size. Returns StatusError on failure.
func HandleEncode(handle int, payload []byte, id ProtocolID, volume int, out []byte, query int) int {
	m, ok := Lookup(handle)
	if !ok {
		return StatusError
	}

	if err := m.InitTx(payload, id, volume); err != nil {
		return StatusError
	}

	switch query {
	case QueryBytes:
		return m.EncodeSizeBytes()
	case QueryNone:
	default:
		return m.EncodeSizeSamples()
	}

	n := 0
	overflow := false
	err := m.Encode(func(data []byte) {
		if n+len(data) > len(out) {
			overflow = true
			return
		}
		n += copy(out[n:], data)
	})
	if err != nil || overflow {
		return StatusError
	}
	return n
}

// HandleDecode feeds a waveform to the handle's modem and, when a payload
// was recovered, copies it into out and returns its length. Returns 0 when
// nothing was decoded and StatusError on failure.
func HandleDecode(handle int, waveform, out []byte) int {
	return handleDecode(handle, waveform, out, false)
}

// HandleNDecode is the sized variant of HandleDecode: for an output buffer
// too short for the payload it returns StatusBufferTooSmall, where
// HandleDecode returns StatusError.
func HandleNDecode(handle int, waveform, out []byte) int {
	return handleDecode(handle, waveform, out, true)
}

func handleDecode(handle int, waveform, out []byte, sized bool) int {
	m, ok := Lookup(handle)
	if !ok {
		return StatusError
	}

	off := 0
	err := m.Decode(func(dst []byte) int {
		n := copy(dst, waveform[off:])
		off += n
		return n
	})
	if err != nil {
		return StatusError
	}

	n, err := m.TakeRxData(out)
	if errors.Is(err, ErrOutputBufferTooSmall) {
		if sized {
			return StatusBufferTooSmall
		}
		return StatusError
	}
	return n
}

// HandleToggleRxProtocol enables or disables one Rx protocol on the handle's
// modem. Unknown handles are ignored.
func HandleToggleRxProtocol(handle int, id ProtocolID, enabled bool) {
	if m, ok := Lookup(handle); ok {
		m.EnableRxProtocol(id, enabled)
	}
}
