package modem

import (
	"fmt"
	"math"

	"github.com/dougsko/waved/pkg/dsp"
	"github.com/dougsko/waved/pkg/logging"
)

// OutputCallback receives rendered PCM during Encode. The slice is only
// valid for the duration of the call.
type OutputCallback func(data []byte)

// InputCallback fills dst with captured PCM during Decode and returns the
// number of bytes written. Returning 0 ends the current Decode call; the
// modem keeps its receive state for the next one.
type InputCallback func(dst []byte) int

// Tone is one entry of the waveform tone list.
type Tone struct {
	FreqHz     float64
	DurationMs float64
}

type rxState int

const (
	rxIdle rxState = iota
	rxListening
	rxMarkerFound
	rxAnalyzing
)

// Modem encodes payloads into multi-tone FSK waveforms and decodes such
// waveforms back to payloads. All methods must be called from a single
// goroutine; audio is exchanged exclusively through the caller-supplied
// callbacks, which run synchronously inside Encode and Decode.
type Modem struct {
	params Parameters
	log    *logging.Logger

	sampleRate      float64
	samplesPerFrame int
	hzPerBin        float64

	sampleSizeInp int
	sampleSizeOut int

	fixedLength   bool
	payloadLength int

	rxEnabled   bool
	txEnabled   bool
	txOnlyTones bool

	resamplerInp *dsp.Resampler
	resamplerOut *dsp.Resampler

	// Tx state
	hasTxData    bool
	txProtocolID ProtocolID
	txProtocol   Protocol
	txVolume     int
	dataEncoded  []byte
	txBlocks     []txBlock
	txFrames     int
	tones        [][]Tone

	// Rx state
	rxProtocolEnabled [protocolCount]bool
	state             rxState
	pending           []float32
	spectrumHist      [][]float32
	background        [protocolCount]float64
	markerCount       int
	candidates        []*rxCandidate
	recordedFrames    int

	fixedRing     [][]float32
	fixedCooldown int
	noiseFloor    float64

	lastSpectrum     []float32
	lastAmplitude    []float32
	freshSpectrum    bool
	freshAmplitude   bool
	lastRxData       []byte
	lastRxProtocolID ProtocolID
	lastRxCorrected  int
	freshRxData      bool

	stopRequested bool
}

// txBlock is a run of frames sharing one set of active tones: a marker or a
// data symbol.
type txBlock struct {
	bins   []int
	frames int
}

// New creates a modem instance from the parameter record. The logger sink
// may be nil, in which case the process-wide default logger is used.
func New(params Parameters, log *logging.Logger) (*Modem, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.GetGlobalLogger()
	}

	m := &Modem{
		params:          params,
		log:             log,
		sampleRate:      params.SampleRate,
		samplesPerFrame: params.SamplesPerFrame,
		hzPerBin:        params.SampleRate / float64(params.SamplesPerFrame),
		sampleSizeInp:   sampleSizeBytes(params.SampleFormatInp),
		sampleSizeOut:   sampleSizeBytes(params.SampleFormatOut),
		fixedLength:     params.PayloadLength > 0,
		payloadLength:   params.PayloadLength,
		rxEnabled:       params.OperatingMode&ModeRx != 0,
		txEnabled:       params.OperatingMode&(ModeTx|ModeTxOnlyTones) != 0,
		txOnlyTones:     params.OperatingMode&ModeTxOnlyTones != 0,
	}

	if params.SampleRateInp != params.SampleRate {
		m.resamplerInp = dsp.NewResampler()
	}
	if params.SampleRateOut != params.SampleRate {
		m.resamplerOut = dsp.NewResampler()
	}

	if m.rxEnabled {
		for id, p := range Protocols() {
			if p.fitsSpectrum(m.samplesPerFrame) {
				m.rxProtocolEnabled[id] = true
			}
		}
		m.pending = make([]float32, 0, 2*m.samplesPerFrame)
		m.state = rxIdle
	}

	m.log.Debugf("modem", "instance created: rate=%.0f frame=%d fixed=%v",
		m.sampleRate, m.samplesPerFrame, m.fixedLength)
	return m, nil
}

// Params returns the parameter record the instance was created with.
func (m *Modem) Params() Parameters { return m.params }

// SamplesPerFrame returns the FFT size.
func (m *Modem) SamplesPerFrame() int { return m.samplesPerFrame }

// SampleSizeBytesInp returns the input sample size in bytes.
func (m *Modem) SampleSizeBytesInp() int { return m.sampleSizeInp }

// SampleSizeBytesOut returns the output sample size in bytes.
func (m *Modem) SampleSizeBytesOut() int { return m.sampleSizeOut }

// HasTxData reports whether InitTx has prepared a transmission.
func (m *Modem) HasTxData() bool { return m.hasTxData }

// EnableRxProtocol toggles one protocol in the receiver's candidate set.
func (m *Modem) EnableRxProtocol(id ProtocolID, enabled bool) error {
	if id < 0 || id >= protocolCount {
		return ErrUnknownProtocol
	}
	if enabled {
		p, ok := GetProtocol(id)
		if !ok {
			return ErrUnknownProtocol
		}
		if !p.fitsSpectrum(m.samplesPerFrame) {
			return ErrInvalidParameters
		}
	}
	m.rxProtocolEnabled[id] = enabled
	return nil
}

// IsReceiving reports whether the receiver is past the marker gate.
func (m *Modem) IsReceiving() bool {
	return m.state == rxMarkerFound || m.state == rxAnalyzing
}

// IsAnalyzing reports whether the receiver is demodulating payload frames.
func (m *Modem) IsAnalyzing() bool { return m.state == rxAnalyzing }

// FramesToAnalyze returns the expected length of the active reception in
// frames, or 0 when no reception is in flight or the length is not yet known.
func (m *Modem) FramesToAnalyze() int {
	for _, c := range m.candidates {
		if c.haveLength {
			return 2*defaultMarkerFrames + c.framesData
		}
	}
	return 0
}

// FramesLeftToAnalyze returns how many frames of the active reception are
// still outstanding.
func (m *Modem) FramesLeftToAnalyze() int {
	total := m.FramesToAnalyze()
	if total == 0 {
		return 0
	}
	left := total - defaultMarkerFrames - m.markerCount - m.recordedFrames
	if left < 0 {
		left = 0
	}
	return left
}

// StopReceiving aborts the active synchronization. The reset is observed at
// the start of the next Decode call. It reports whether a reception was
// actually in flight.
func (m *Modem) StopReceiving() bool {
	active := m.IsReceiving()
	m.stopRequested = true
	return active
}

// LastRxDataLength returns the length of the most recently decoded payload.
func (m *Modem) LastRxDataLength() int { return len(m.lastRxData) }

// RxData returns the most recently decoded payload. The result is a copy and
// is not null-terminated.
func (m *Modem) RxData() []byte {
	out := make([]byte, len(m.lastRxData))
	copy(out, m.lastRxData)
	return out
}

// RxProtocolID returns the protocol of the most recent decode.
func (m *Modem) RxProtocolID() ProtocolID { return m.lastRxProtocolID }

// RxProtocol returns the protocol descriptor of the most recent decode.
func (m *Modem) RxProtocol() Protocol {
	p, _ := GetProtocol(m.lastRxProtocolID)
	return p
}

// RxCorrected returns how many bytes the FEC repaired in the most recent
// decode.
func (m *Modem) RxCorrected() int { return m.lastRxCorrected }

// TakeRxData moves the most recent payload into dst and clears the fresh
// flag. It returns the payload length, 0 when nothing new was decoded, or an
// error when dst is too small.
func (m *Modem) TakeRxData(dst []byte) (int, error) {
	if !m.freshRxData {
		return 0, nil
	}
	if len(dst) < len(m.lastRxData) {
		return 0, ErrOutputBufferTooSmall
	}
	m.freshRxData = false
	return copy(dst, m.lastRxData), nil
}

// TakeRxSpectrum returns the most recent magnitude spectrum, or nil when no
// new frame arrived since the last call.
func (m *Modem) TakeRxSpectrum() []float32 {
	if !m.freshSpectrum {
		return nil
	}
	m.freshSpectrum = false
	out := make([]float32, len(m.lastSpectrum))
	copy(out, m.lastSpectrum)
	return out
}

// TakeRxAmplitude returns the most recent frame of float samples, or nil
// when no new frame arrived since the last call.
func (m *Modem) TakeRxAmplitude() []float32 {
	if !m.freshAmplitude {
		return nil
	}
	m.freshAmplitude = false
	out := make([]float32, len(m.lastAmplitude))
	copy(out, m.lastAmplitude)
	return out
}

// WaveformTones returns the per-symbol tone list of the last prepared
// transmission.
func (m *Modem) WaveformTones() [][]Tone {
	out := make([][]Tone, len(m.tones))
	for i, group := range m.tones {
		out[i] = append([]Tone(nil), group...)
	}
	return out
}

// EncodeSizeSamples returns the expected waveform length of the prepared
// transmission in output samples. When the output rate differs from the
// operating rate the result overestimates by the resampler slack.
func (m *Modem) EncodeSizeSamples() int {
	if !m.hasTxData {
		return 0
	}
	n := m.txFrames * m.samplesPerFrame
	if m.resamplerOut == nil {
		return n
	}
	scaled := float64(n) * m.params.SampleRateOut / m.sampleRate
	return int(math.Ceil(scaled)) + dsp.ResamplerTaps
}

// EncodeSizeBytes returns EncodeSizeSamples in output-format bytes.
func (m *Modem) EncodeSizeBytes() int {
	return m.EncodeSizeSamples() * m.sampleSizeOut
}

// Decode pulls PCM from cb until it returns 0, advancing the receive state
// machine one frame at a time. Demodulation failures resync silently; the
// only error reported to the caller is corrupt (NaN/Inf) input.
func (m *Modem) Decode(cb InputCallback) error {
	if !m.rxEnabled {
		return ErrRxDisabled
	}

	if m.stopRequested {
		m.stopRequested = false
		m.resetRx()
		m.state = rxIdle
	}
	if m.state == rxIdle {
		m.state = rxListening
	}

	buf := make([]byte, m.samplesPerFrame*m.sampleSizeInp)
	for {
		n := cb(buf)
		if n == 0 {
			return nil
		}

		samples := bytesToSamples(buf[:n], m.params.SampleFormatInp)
		for _, s := range samples {
			if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
				return fmt.Errorf("%w: corrupt input sample", ErrReceiveFailed)
			}
		}

		if m.resamplerInp != nil {
			samples = m.resamplerInp.Resample(m.params.SampleRateInp/m.sampleRate, samples)
		}

		m.pending = append(m.pending, samples...)
		for len(m.pending) >= m.samplesPerFrame {
			frame := make([]float32, m.samplesPerFrame)
			copy(frame, m.pending[:m.samplesPerFrame])
			m.pending = m.pending[:copy(m.pending, m.pending[m.samplesPerFrame:])]
			m.processFrame(frame)
		}
	}
}
