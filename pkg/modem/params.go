package modem

// SampleFormat identifies the PCM encoding of audio exchanged through the
// I/O callbacks. Multi-byte formats are little-endian.
type SampleFormat int

const (
	FormatUndefined SampleFormat = iota
	FormatU8
	FormatI8
	FormatU16
	FormatI16
	FormatF32
)

// String returns the short name of the format
func (f SampleFormat) String() string {
	switch f {
	case FormatU8:
		return "U8"
	case FormatI8:
		return "I8"
	case FormatU16:
		return "U16"
	case FormatI16:
		return "I16"
	case FormatF32:
		return "F32"
	default:
		return "UNDEFINED"
	}
}

// OperatingMode is a bitset controlling which halves of a modem instance are
// enabled. Disabled halves allocate no buffers.
type OperatingMode int

const (
	ModeRx OperatingMode = 1 << 1
	ModeTx OperatingMode = 1 << 2

	ModeRxAndTx = ModeRx | ModeTx

	// ModeTxOnlyTones computes the waveform tone list without rendering PCM.
	ModeTxOnlyTones OperatingMode = 1 << 3
)

// Limits and defaults of the modulation scheme.
const (
	SampleRateMin = 1000.0
	SampleRateMax = 96000.0

	DefaultSampleRate      = 48000.0
	DefaultSamplesPerFrame = 1024
	DefaultVolume          = 10

	DefaultSoundMarkerThreshold = 3.0

	defaultMarkerFrames      = 16
	defaultEncodedDataOffset = 3

	MaxSamplesPerFrame = 1024
	MaxDataSize        = 256
	MaxLengthVariable  = 140
	MaxLengthFixed     = 16

	maxSpectrumHistory = 4
	maxRecordedFrames  = 2048
)

// Parameters describes a modem instance.
//
// If PayloadLength > 0 the instance operates in fixed-length mode: no sound
// markers are emitted and the receiver assumes every transmission carries
// exactly that many payload bytes. Otherwise the length is variable and the
// transmission is bracketed by start/end markers.
//
// Captured audio is resampled from SampleRateInp to SampleRate when the two
// differ; transmitted audio is resampled from SampleRate to SampleRateOut.
type Parameters struct {
	PayloadLength int

	SampleRateInp float64
	SampleRateOut float64
	SampleRate    float64

	SamplesPerFrame int

	SoundMarkerThreshold float64

	SampleFormatInp SampleFormat
	SampleFormatOut SampleFormat

	OperatingMode OperatingMode
}

// DefaultParameters returns the canonical parameter record: 48 kHz floats,
// 1024-sample frames, variable length, Rx and Tx enabled.
func DefaultParameters() Parameters {
	return Parameters{
		PayloadLength:        -1,
		SampleRateInp:        DefaultSampleRate,
		SampleRateOut:        DefaultSampleRate,
		SampleRate:           DefaultSampleRate,
		SamplesPerFrame:      DefaultSamplesPerFrame,
		SoundMarkerThreshold: DefaultSoundMarkerThreshold,
		SampleFormatInp:      FormatF32,
		SampleFormatOut:      FormatF32,
		OperatingMode:        ModeRxAndTx,
	}
}

func (p Parameters) validate() error {
	for _, rate := range []float64{p.SampleRateInp, p.SampleRateOut, p.SampleRate} {
		if rate < SampleRateMin || rate > SampleRateMax {
			return ErrInvalidParameters
		}
	}
	if p.SamplesPerFrame <= 0 || p.SamplesPerFrame > MaxSamplesPerFrame {
		return ErrInvalidParameters
	}
	if sampleSizeBytes(p.SampleFormatInp) == 0 || sampleSizeBytes(p.SampleFormatOut) == 0 {
		return ErrInvalidParameters
	}
	if p.OperatingMode&(ModeRx|ModeTx|ModeTxOnlyTones) == 0 {
		return ErrInvalidParameters
	}
	if p.PayloadLength > MaxLengthFixed {
		return ErrInvalidParameters
	}
	if p.SoundMarkerThreshold <= 0 {
		return ErrInvalidParameters
	}
	return nil
}
