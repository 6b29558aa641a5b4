package modem

import "errors"

var (
	// ErrInvalidParameters is returned by New when the parameter record is
	// out of range or inconsistent.
	ErrInvalidParameters = errors.New("modem: invalid parameters")

	// ErrTxDisabled is returned when a transmit operation is attempted on an
	// instance created without the Tx operating mode.
	ErrTxDisabled = errors.New("modem: transmitting is disabled")

	// ErrRxDisabled is returned when Decode is called on an instance created
	// without the Rx operating mode.
	ErrRxDisabled = errors.New("modem: receiving is disabled")

	// ErrPayloadTooLong is returned when the payload exceeds the limit of the
	// current length mode.
	ErrPayloadTooLong = errors.New("modem: payload too long")

	// ErrUnknownProtocol is returned for protocol ids with no definition.
	ErrUnknownProtocol = errors.New("modem: unknown protocol")

	// ErrEncodeFailed is returned when waveform generation fails.
	ErrEncodeFailed = errors.New("modem: encode failed")

	// ErrReceiveFailed is returned by Decode only for corrupt input samples
	// (NaN or Inf); demodulation failures resync silently.
	ErrReceiveFailed = errors.New("modem: receive failed")

	// ErrOutputBufferTooSmall is returned when a caller-provided buffer
	// cannot hold the result.
	ErrOutputBufferTooSmall = errors.New("modem: output buffer too small")
)
