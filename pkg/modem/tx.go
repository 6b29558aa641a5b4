package modem

import (
	"fmt"
	"math"

	"github.com/dougsko/waved/pkg/dsp"
	"github.com/dougsko/waved/pkg/fec"
)

// InitTx prepares a transmission: the payload is length-prefixed (variable
// mode), FEC-encoded and mapped to tone sets. The waveform itself is
// rendered by Encode. Volume is a percentage; values above 50 risk clipping
// on integer output formats.
func (m *Modem) InitTx(payload []byte, id ProtocolID, volume int) error {
	if !m.txEnabled {
		return ErrTxDisabled
	}
	if volume < 0 || volume > 100 {
		return ErrInvalidParameters
	}

	proto, ok := GetProtocol(id)
	if !ok {
		return ErrUnknownProtocol
	}
	if !proto.fitsSpectrum(m.samplesPerFrame) {
		return fmt.Errorf("%w: protocol %q does not fit below Nyquist", ErrInvalidParameters, proto.Name)
	}

	maxLen := MaxLengthVariable
	if m.fixedLength {
		maxLen = m.payloadLength
	}
	if len(payload) == 0 {
		return ErrInvalidParameters
	}
	if len(payload) > maxLen {
		return ErrPayloadTooLong
	}

	stream, err := m.buildEncodedStream(payload, proto)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	m.txProtocolID = id
	m.txProtocol = proto
	m.txVolume = volume
	m.dataEncoded = stream
	m.buildTxBlocks()
	m.hasTxData = true

	m.log.Debugf("modem", "tx ready: %d payload bytes, %d encoded, %d frames, protocol %q",
		len(payload), len(stream), m.txFrames, proto.Name)
	return nil
}

// buildEncodedStream produces the FEC-protected byte stream for the payload.
func (m *Modem) buildEncodedStream(payload []byte, proto Protocol) ([]byte, error) {
	if m.fixedLength {
		padded := make([]byte, m.payloadLength)
		copy(padded, payload)

		nsym := eccBytesFixed(m.payloadLength, proto.BytesPerTx)
		return fec.NewCodec(nsym).Encode(padded)
	}

	lenBlock, err := fec.NewCodec(lengthParityBytes).Encode([]byte{byte(len(payload))})
	if err != nil {
		return nil, err
	}

	nsym := eccBytesVariable(len(payload), proto.BytesPerTx)
	payloadBlock, err := fec.NewCodec(nsym).Encode(payload)
	if err != nil {
		return nil, err
	}

	return append(lenBlock, payloadBlock...), nil
}

// buildTxBlocks turns the encoded stream into the frame plan and the
// matching tone list: markers (variable mode) plus one block per symbol.
func (m *Modem) buildTxBlocks() {
	proto := m.txProtocol
	m.txBlocks = m.txBlocks[:0]
	m.tones = m.tones[:0]

	if !m.fixedLength {
		m.txBlocks = append(m.txBlocks, txBlock{bins: markerBins(proto, false), frames: defaultMarkerFrames})
	}

	for off := 0; off < len(m.dataEncoded); off += proto.BytesPerTx {
		chunk := m.dataEncoded[off : off+proto.BytesPerTx]
		var bins []int
		for b := 0; b < proto.DataBitsPerTx(); b++ {
			if chunk[b/8]&(1<<(b%8)) != 0 {
				bins = append(bins, proto.binForBit(b))
			}
		}
		m.txBlocks = append(m.txBlocks, txBlock{bins: bins, frames: proto.FramesPerTx})
	}

	if !m.fixedLength {
		m.txBlocks = append(m.txBlocks, txBlock{bins: markerBins(proto, true), frames: defaultMarkerFrames})
	}

	m.txFrames = 0
	frameMs := 1000 * float64(m.samplesPerFrame) / m.sampleRate
	for _, blk := range m.txBlocks {
		m.txFrames += blk.frames

		group := make([]Tone, 0, len(blk.bins))
		for _, bin := range blk.bins {
			group = append(group, Tone{
				FreqHz:     float64(bin) * m.hzPerBin,
				DurationMs: float64(blk.frames) * frameMs,
			})
		}
		m.tones = append(m.tones, group)
	}
}

// Encode renders the prepared transmission and hands the PCM to cb. In the
// tones-only operating mode no PCM is rendered; the result of InitTx is
// available through WaveformTones. On error the callback is never invoked.
func (m *Modem) Encode(cb OutputCallback) error {
	if !m.txEnabled {
		return ErrTxDisabled
	}
	if !m.hasTxData {
		return fmt.Errorf("%w: no tx data prepared", ErrEncodeFailed)
	}
	if m.txOnlyTones {
		return nil
	}

	samples := m.renderWaveform()

	if m.resamplerOut != nil {
		m.resamplerOut.Reset()
		// Trailing zeros flush the kernel tail through the resampler
		samples = append(samples, make([]float32, dsp.ResamplerTaps)...)
		samples = m.resamplerOut.Resample(m.sampleRate/m.params.SampleRateOut, samples)
	}

	if cb != nil {
		cb(samplesToBytes(samples, m.params.SampleFormatOut))
	}
	return nil
}

// renderWaveform synthesizes the waveform at the operating rate. Each frame
// sums unit sines at the block's active bins; the first and last frame of
// every block carry a raised-cosine fade to limit spectral splatter.
func (m *Modem) renderWaveform() []float32 {
	n := m.samplesPerFrame
	amp := float64(m.txVolume) / 100
	out := make([]float32, 0, m.txFrames*n)

	idx := 0
	for _, blk := range m.txBlocks {
		omegas := make([]float64, len(blk.bins))
		for i, bin := range blk.bins {
			omegas[i] = 2 * math.Pi * float64(bin) * m.hzPerBin / m.sampleRate
		}

		for f := 0; f < blk.frames; f++ {
			for i := 0; i < n; i++ {
				var v float64
				for _, w := range omegas {
					v += math.Sin(w * float64(idx))
				}

				env := 1.0
				if f == 0 {
					env *= 0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(n)))
				}
				if f == blk.frames-1 {
					env *= 0.5 * (1 + math.Cos(math.Pi*float64(i)/float64(n)))
				}

				out = append(out, float32(amp*env*v))
				idx++
			}
		}
	}
	return out
}
