package modem

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/waved/pkg/dsp"
)

func newTestModem(t *testing.T, mutate func(*Parameters)) *Modem {
	t.Helper()
	params := DefaultParameters()
	if mutate != nil {
		mutate(&params)
	}
	m, err := New(params, nil)
	require.NoError(t, err)
	return m
}

func encodeWaveform(t *testing.T, m *Modem) []byte {
	t.Helper()
	var wave []byte
	require.NoError(t, m.Encode(func(data []byte) {
		wave = append(wave, data...)
	}))
	require.NotEmpty(t, wave)
	return wave
}

func feedWaveform(t *testing.T, m *Modem, wave []byte) {
	t.Helper()
	off := 0
	err := m.Decode(func(dst []byte) int {
		n := copy(dst, wave[off:])
		off += n
		return n
	})
	require.NoError(t, err)
}

func silenceF32(frames, samplesPerFrame int) []byte {
	return make([]byte, frames*samplesPerFrame*4)
}

func takePayload(t *testing.T, m *Modem) []byte {
	t.Helper()
	buf := make([]byte, MaxDataSize)
	n, err := m.TakeRxData(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestRoundTripAllProtocols(t *testing.T) {
	payload := []byte("hello world")

	for id, proto := range Protocols() {
		if id >= ProtocolCustom0 {
			continue
		}
		id, proto := id, proto
		t.Run(proto.Name, func(t *testing.T) {
			m := newTestModem(t, nil)

			require.NoError(t, m.InitTx(payload, id, 25))
			wave := encodeWaveform(t, m)
			feedWaveform(t, m, wave)

			assert.Equal(t, payload, takePayload(t, m))
			assert.Equal(t, id, m.RxProtocolID())
			assert.Equal(t, 0, m.RxCorrected())
		})
	}
}

func TestScenarioHello(t *testing.T) {
	m := newTestModem(t, nil)

	require.NoError(t, m.InitTx([]byte("hello"), ProtocolAudibleFast, 25))
	wave := encodeWaveform(t, m)
	feedWaveform(t, m, wave)

	assert.Equal(t, []byte("hello"), takePayload(t, m))
	assert.Equal(t, ProtocolAudibleFast, m.RxProtocolID())
	assert.Equal(t, "Fast", m.RxProtocol().Name)
}

func TestScenarioMaxLengthPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{0xaa}, MaxLengthVariable)

	m := newTestModem(t, nil)
	require.NoError(t, m.InitTx(payload, ProtocolAudibleNormal, 25))
	wave := encodeWaveform(t, m)
	feedWaveform(t, m, wave)

	assert.Equal(t, payload, takePayload(t, m))
	assert.Equal(t, ProtocolAudibleNormal, m.RxProtocolID())
}

func TestScenarioFixedLength(t *testing.T) {
	m := newTestModem(t, func(p *Parameters) {
		p.PayloadLength = 3
	})

	require.NoError(t, m.InitTx([]byte("xyz"), ProtocolDTFastest, 25))

	// Fixed mode emits no sound markers: every tone group is a data symbol
	tones := m.WaveformTones()
	expectSymbols := streamLenFixed(3, 1)
	require.Len(t, tones, expectSymbols)

	wave := encodeWaveform(t, m)
	feedWaveform(t, m, wave)

	assert.Equal(t, []byte("xyz"), takePayload(t, m))
	assert.Equal(t, ProtocolDTFastest, m.RxProtocolID())
}

func TestScenarioResampleRoundTrip(t *testing.T) {
	m := newTestModem(t, nil)

	require.NoError(t, m.InitTx([]byte("ping"), ProtocolUltrasoundFast, 25))
	wave := encodeWaveform(t, m)

	// Take the waveform through 44.1 kHz and back, as a playback/capture
	// chain with mismatched clocks would
	samples := bytesToSamples(wave, FormatF32)
	samples = append(samples, make([]float32, dsp.ResamplerTaps)...)

	down := dsp.NewResampler()
	mid := down.Resample(48000.0/44100.0, samples)
	mid = append(mid, make([]float32, dsp.ResamplerTaps)...)

	up := dsp.NewResampler()
	back := up.Resample(44100.0/48000.0, mid)

	feedWaveform(t, m, samplesToBytes(back, FormatF32))
	feedWaveform(t, m, silenceF32(4, m.SamplesPerFrame()))

	assert.Equal(t, []byte("ping"), takePayload(t, m))
	assert.Equal(t, ProtocolUltrasoundFast, m.RxProtocolID())
	assert.LessOrEqual(t, m.RxCorrected(), 1)
}

func TestScenarioCorruptedByteIsCorrected(t *testing.T) {
	m := newTestModem(t, nil)

	require.NoError(t, m.InitTx([]byte("data"), ProtocolAudibleFast, 25))

	// Flip one byte inside the payload block and re-render
	m.dataEncoded[defaultEncodedDataOffset+1] ^= 0xff
	m.buildTxBlocks()

	wave := encodeWaveform(t, m)
	feedWaveform(t, m, wave)

	assert.Equal(t, []byte("data"), takePayload(t, m))
	assert.Equal(t, 1, m.RxCorrected())
}

func TestScenarioTruncatedWaveform(t *testing.T) {
	m := newTestModem(t, nil)

	require.NoError(t, m.InitTx([]byte("hello"), ProtocolAudibleFast, 25))
	wave := encodeWaveform(t, m)

	feedWaveform(t, m, wave[:len(wave)/2])
	feedWaveform(t, m, silenceF32(64, m.SamplesPerFrame()))

	buf := make([]byte, MaxDataSize)
	n, err := m.TakeRxData(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "truncated transmission must not produce a payload")
	assert.False(t, m.IsReceiving(), "receiver must return to listening")
}

func TestRxSilenceIsIdempotent(t *testing.T) {
	m := newTestModem(t, nil)

	feedWaveform(t, m, silenceF32(100, m.SamplesPerFrame()))

	assert.Equal(t, 0, m.LastRxDataLength())
	assert.False(t, m.IsReceiving())
	assert.False(t, m.IsAnalyzing())
}

func TestRxProtocolGating(t *testing.T) {
	m := newTestModem(t, nil)
	for id := ProtocolID(0); id < protocolCount; id++ {
		require.NoError(t, m.EnableRxProtocol(id, false))
	}

	require.NoError(t, m.InitTx([]byte("hello"), ProtocolAudibleFast, 25))
	wave := encodeWaveform(t, m)
	feedWaveform(t, m, wave)

	assert.Equal(t, 0, m.LastRxDataLength())
	assert.False(t, m.IsReceiving())
}

func TestEncodeSizeBounds(t *testing.T) {
	m := newTestModem(t, nil)
	require.NoError(t, m.InitTx([]byte("sized"), ProtocolAudibleFast, 25))

	wave := encodeWaveform(t, m)
	assert.Equal(t, m.EncodeSizeBytes(), len(wave),
		"size query must be exact when rates match")
	assert.Equal(t, m.EncodeSizeSamples()*4, len(wave))

	// With resampling the query may only overestimate
	m44 := newTestModem(t, func(p *Parameters) {
		p.SampleRateOut = 44100
	})
	require.NoError(t, m44.InitTx([]byte("sized"), ProtocolAudibleFast, 25))
	wave44 := encodeWaveform(t, m44)
	assert.GreaterOrEqual(t, m44.EncodeSizeBytes(), len(wave44))
}

func TestStopReceivingAbortsSync(t *testing.T) {
	m := newTestModem(t, nil)

	require.NoError(t, m.InitTx([]byte("hello"), ProtocolAudibleFast, 25))
	wave := encodeWaveform(t, m)

	// Feed the start marker plus a little data, then abort
	feedWaveform(t, m, wave[:20*m.SamplesPerFrame()*4])
	require.True(t, m.IsReceiving())

	assert.True(t, m.StopReceiving())
	feedWaveform(t, m, silenceF32(2, m.SamplesPerFrame()))

	assert.False(t, m.IsReceiving())
	assert.Equal(t, 0, m.LastRxDataLength())
}

func TestTonesOnlyMode(t *testing.T) {
	m := newTestModem(t, func(p *Parameters) {
		p.OperatingMode = ModeTxOnlyTones
	})

	require.NoError(t, m.InitTx([]byte("hi"), ProtocolAudibleFast, 25))

	called := false
	require.NoError(t, m.Encode(func([]byte) { called = true }))
	assert.False(t, called, "tones-only mode must not render PCM")

	tones := m.WaveformTones()
	require.NotEmpty(t, tones)

	// The first group is the start marker: even data bits only
	proto, _ := GetProtocol(ProtocolAudibleFast)
	require.Len(t, tones[0], proto.DataBitsPerTx()/2)
	hzPerBin := DefaultSampleRate / DefaultSamplesPerFrame
	assert.InDelta(t, float64(proto.FreqStart)*hzPerBin, tones[0][0].FreqHz, 1e-6)
}

func TestWaveformTonesMatchPlan(t *testing.T) {
	m := newTestModem(t, nil)
	require.NoError(t, m.InitTx([]byte("ab"), ProtocolDTFast, 25))

	proto, _ := GetProtocol(ProtocolDTFast)
	nSymbols := streamLenVariable(2, proto.BytesPerTx) / proto.BytesPerTx
	assert.Len(t, m.WaveformTones(), nSymbols+2, "markers bracket the data symbols")
}

func TestInitTxValidation(t *testing.T) {
	m := newTestModem(t, nil)

	err := m.InitTx(bytes.Repeat([]byte{1}, MaxLengthVariable+1), ProtocolAudibleFast, 25)
	assert.ErrorIs(t, err, ErrPayloadTooLong)

	err = m.InitTx(nil, ProtocolAudibleFast, 25)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	err = m.InitTx([]byte("x"), ProtocolCustom3, 25)
	assert.ErrorIs(t, err, ErrUnknownProtocol)

	err = m.InitTx([]byte("x"), ProtocolAudibleFast, 150)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestOperatingModeGates(t *testing.T) {
	rxOnly := newTestModem(t, func(p *Parameters) {
		p.OperatingMode = ModeRx
	})
	assert.ErrorIs(t, rxOnly.InitTx([]byte("x"), ProtocolAudibleFast, 25), ErrTxDisabled)
	assert.ErrorIs(t, rxOnly.Encode(nil), ErrTxDisabled)

	txOnly := newTestModem(t, func(p *Parameters) {
		p.OperatingMode = ModeTx
	})
	err := txOnly.Decode(func([]byte) int { return 0 })
	assert.ErrorIs(t, err, ErrRxDisabled)
}

func TestNewRejectsBadParameters(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Parameters)
	}{
		{"low input rate", func(p *Parameters) { p.SampleRateInp = 500 }},
		{"high operating rate", func(p *Parameters) { p.SampleRate = 200000 }},
		{"oversized frame", func(p *Parameters) { p.SamplesPerFrame = 2048 }},
		{"zero frame", func(p *Parameters) { p.SamplesPerFrame = 0 }},
		{"undefined format", func(p *Parameters) { p.SampleFormatInp = FormatUndefined }},
		{"no operating mode", func(p *Parameters) { p.OperatingMode = 0 }},
		{"fixed length too long", func(p *Parameters) { p.PayloadLength = MaxLengthFixed + 1 }},
		{"bad threshold", func(p *Parameters) { p.SoundMarkerThreshold = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultParameters()
			tc.mutate(&params)
			_, err := New(params, nil)
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

func TestDecodeRejectsCorruptSamples(t *testing.T) {
	m := newTestModem(t, nil)

	bad := samplesToBytes([]float32{0, float32(nan()), 0}, FormatF32)
	off := 0
	err := m.Decode(func(dst []byte) int {
		n := copy(dst, bad[off:])
		off += n
		return n
	})
	assert.ErrorIs(t, err, ErrReceiveFailed)
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestRxStatePreservedAcrossDecodeCalls(t *testing.T) {
	m := newTestModem(t, nil)

	require.NoError(t, m.InitTx([]byte("split"), ProtocolAudibleFast, 25))
	wave := encodeWaveform(t, m)

	// One continuous stream delivered over many Decode calls
	chunk := 3 * m.SamplesPerFrame() // deliberately not frame-aligned in bytes
	for off := 0; off < len(wave); off += chunk {
		end := off + chunk
		if end > len(wave) {
			end = len(wave)
		}
		feedWaveform(t, m, wave[off:end])
	}

	assert.Equal(t, []byte("split"), takePayload(t, m))
}

func TestSpectrumAndAmplitudeSnapshots(t *testing.T) {
	m := newTestModem(t, nil)

	require.NoError(t, m.InitTx([]byte("snap"), ProtocolAudibleFast, 25))
	wave := encodeWaveform(t, m)
	feedWaveform(t, m, wave)

	spec := m.TakeRxSpectrum()
	require.Len(t, spec, m.SamplesPerFrame()/2)
	assert.Nil(t, m.TakeRxSpectrum(), "snapshot is consumed on take")

	amp := m.TakeRxAmplitude()
	require.Len(t, amp, m.SamplesPerFrame())
	assert.Nil(t, m.TakeRxAmplitude())

	assert.NotEmpty(t, m.SpectrumHistory())
}
