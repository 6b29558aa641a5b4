package modem

import (
	"github.com/dougsko/waved/pkg/dsp"
	"github.com/dougsko/waved/pkg/fec"
)

// rxGateEpsilon keeps the marker gate strictly positive over dead silence.
const rxGateEpsilon = 1e-6

// rxCandidate is one live protocol hypothesis during a variable-length
// reception. All enabled protocols that pass the start-marker gate on the
// same frame run in parallel over the same spectrum stream; the first to
// survive length decode, end-marker check and payload FEC wins.
type rxCandidate struct {
	id    ProtocolID
	proto Protocol

	acc       []float64
	accFrames int
	accUsed   int

	bytes      []byte
	dataFrames int

	haveLength bool
	payloadLen int
	eccLen     int
	totalBytes int
	framesData int
}

func newRxCandidate(id ProtocolID, proto Protocol, nBins int) *rxCandidate {
	return &rxCandidate{
		id:    id,
		proto: proto,
		acc:   make([]float64, nBins),
	}
}

// processFrame advances the receive state machine by one operating-rate
// frame.
func (m *Modem) processFrame(frame []float32) {
	spec := dsp.MagnitudeSpectrum(frame)

	m.lastAmplitude = frame
	m.lastSpectrum = spec
	m.freshAmplitude = true
	m.freshSpectrum = true
	m.pushSpectrumHist(spec)

	if m.fixedLength {
		m.processFrameFixed(spec)
		return
	}
	m.processFrameVariable(spec)
}

func (m *Modem) pushSpectrumHist(spec []float32) {
	m.spectrumHist = append(m.spectrumHist, spec)
	if len(m.spectrumHist) > maxSpectrumHistory {
		m.spectrumHist = m.spectrumHist[1:]
	}
}

// SpectrumHistory returns the most recent magnitude spectra, oldest first.
func (m *Modem) SpectrumHistory() [][]float32 {
	out := make([][]float32, len(m.spectrumHist))
	for i, s := range m.spectrumHist {
		out[i] = append([]float32(nil), s...)
	}
	return out
}

func (m *Modem) processFrameVariable(spec []float32) {
	switch m.state {
	case rxIdle, rxListening:
		m.listenForMarker(spec)

	case rxMarkerFound:
		m.markerCount++
		if m.markerCount >= defaultMarkerFrames {
			m.state = rxAnalyzing
		}

	case rxAnalyzing:
		m.recordedFrames++
		if m.recordedFrames > maxRecordedFrames {
			m.log.Debugf("modem", "reception exceeded the frame budget, resyncing")
			m.resetRx()
			return
		}

		keep := m.candidates[:0]
		for _, c := range m.candidates {
			done, published := m.advanceCandidate(c, spec)
			if published {
				return
			}
			if !done {
				keep = append(keep, c)
			}
		}
		m.candidates = keep

		if len(m.candidates) == 0 {
			m.log.Debugf("modem", "all protocol hypotheses failed, resyncing")
			m.resetRx()
		}
	}
}

// listenForMarker scores every enabled protocol's start-marker bins against
// its running background level. Protocols passing the gate on this frame
// become reception candidates.
func (m *Modem) listenForMarker(spec []float32) {
	for id := ProtocolID(0); id < protocolCount; id++ {
		if !m.rxProtocolEnabled[id] {
			continue
		}
		proto, ok := GetProtocol(id)
		if !ok {
			continue
		}

		score := markerScore(spec, proto, false)
		gate := m.params.SoundMarkerThreshold * (m.background[id] + rxGateEpsilon)
		if score > gate {
			m.candidates = append(m.candidates, newRxCandidate(id, proto, len(spec)))
		}

		// Slow exponential average tracks the ambient level in these bins
		m.background[id] += (score - m.background[id]) / 64
	}

	if len(m.candidates) > 0 {
		m.state = rxMarkerFound
		m.markerCount = 1
		m.recordedFrames = 0
		m.log.Debugf("modem", "start marker detected, %d candidate protocol(s)", len(m.candidates))
	}
}

// advanceCandidate feeds one spectrum to a protocol hypothesis. It returns
// done when the candidate finished (published or dropped) and published when
// a payload was delivered to the caller.
func (m *Modem) advanceCandidate(c *rxCandidate, spec []float32) (done, published bool) {
	if c.haveLength && c.dataFrames == c.framesData {
		// This frame must be the first end-marker frame: odd bins hot,
		// even bins quiet.
		endScore := markerScore(spec, c.proto, true)
		startScore := markerScore(spec, c.proto, false)
		gate := m.params.SoundMarkerThreshold * (m.background[c.id] + rxGateEpsilon)
		if endScore <= gate || startScore > endScore/2 {
			return true, false
		}

		payload, corrected, err := c.decodePayload()
		if err != nil {
			m.log.Debugf("modem", "payload block uncorrectable for protocol %q", c.proto.Name)
			return true, false
		}

		m.publish(payload, c.id, corrected)
		return true, true
	}

	// The first and last frame of a symbol are faded for splatter control;
	// average only the clean interior.
	use := true
	if c.proto.FramesPerTx >= 2 && c.accFrames == 0 {
		use = false
	}
	if c.proto.FramesPerTx >= 3 && c.accFrames == c.proto.FramesPerTx-1 {
		use = false
	}
	if use {
		for i := range c.acc {
			c.acc[i] += float64(spec[i])
		}
		c.accUsed++
	}
	c.accFrames++
	c.dataFrames++

	if c.accFrames < c.proto.FramesPerTx {
		return false, false
	}

	avg := make([]float32, len(c.acc))
	for i := range avg {
		avg[i] = float32(c.acc[i] / float64(c.accUsed))
		c.acc[i] = 0
	}
	c.accFrames = 0
	c.accUsed = 0

	c.bytes = append(c.bytes, demodSymbol(avg, c.proto, m.params.SoundMarkerThreshold)...)

	if !c.haveLength && len(c.bytes) >= defaultEncodedDataOffset {
		if !c.decodeLength() {
			m.log.Debugf("modem", "length block uncorrectable for protocol %q", c.proto.Name)
			return true, false
		}
	}
	return false, false
}

// decodeLength recovers the payload length from the first bytes of the
// stream and derives the reception geometry from it.
func (c *rxCandidate) decodeLength() bool {
	block := c.bytes[:defaultEncodedDataOffset]
	data, _, err := fec.NewCodec(lengthParityBytes).Decode(block)
	if err != nil {
		return false
	}

	n := int(data[0])
	if n < 1 || n > MaxLengthVariable {
		return false
	}

	c.payloadLen = n
	c.eccLen = eccBytesVariable(n, c.proto.BytesPerTx)
	c.totalBytes = streamLenVariable(n, c.proto.BytesPerTx)
	c.framesData = c.totalBytes / c.proto.BytesPerTx * c.proto.FramesPerTx
	c.haveLength = true
	return true
}

func (c *rxCandidate) decodePayload() ([]byte, int, error) {
	block := c.bytes[defaultEncodedDataOffset : defaultEncodedDataOffset+c.payloadLen+c.eccLen]
	return fec.NewCodec(c.eccLen).Decode(block)
}

func (m *Modem) publish(payload []byte, id ProtocolID, corrected int) {
	m.lastRxData = payload
	m.lastRxProtocolID = id
	m.lastRxCorrected = corrected
	m.freshRxData = true

	proto, _ := GetProtocol(id)
	m.log.Infof("modem", "received %d bytes via %q (%d corrected)", len(payload), proto.Name, corrected)
	m.resetRx()
}

// resetRx returns the state machine to Listening. Decoded results and the
// pending sample remainder survive the reset.
func (m *Modem) resetRx() {
	m.state = rxListening
	m.markerCount = 0
	m.recordedFrames = 0
	m.candidates = nil
	m.background = [protocolCount]float64{}
	m.fixedRing = nil
	m.fixedCooldown = 0
	m.noiseFloor = 0
}

// processFrameFixed runs the fixed-length decoding scheme: keep a ring of
// recent spectra sized for the configured payload and attempt a tentative
// decode at every frame boundary.
func (m *Modem) processFrameFixed(spec []float32) {
	maxNeed := 0
	for id := ProtocolID(0); id < protocolCount; id++ {
		if !m.rxProtocolEnabled[id] {
			continue
		}
		proto, ok := GetProtocol(id)
		if !ok {
			continue
		}
		if need := m.fixedFrames(proto); need > maxNeed {
			maxNeed = need
		}
	}
	if maxNeed == 0 {
		return
	}

	m.fixedRing = append(m.fixedRing, spec)
	if len(m.fixedRing) > maxNeed {
		m.fixedRing = m.fixedRing[1:]
	}

	if m.fixedCooldown > 0 {
		m.fixedCooldown--
		m.updateNoiseFloor(spec)
		return
	}

	for id := ProtocolID(0); id < protocolCount; id++ {
		if !m.rxProtocolEnabled[id] {
			continue
		}
		proto, ok := GetProtocol(id)
		if !ok {
			continue
		}

		need := m.fixedFrames(proto)
		if len(m.fixedRing) < need {
			continue
		}

		payload, corrected, ok := m.tryDecodeFixed(proto, m.fixedRing[len(m.fixedRing)-need:])
		if ok {
			m.lastRxData = payload
			m.lastRxProtocolID = id
			m.lastRxCorrected = corrected
			m.freshRxData = true
			m.fixedCooldown = proto.FramesPerTx

			m.log.Infof("modem", "received %d fixed-length bytes via %q (%d corrected)",
				len(payload), proto.Name, corrected)
			break
		}
	}

	m.updateNoiseFloor(spec)
}

// fixedFrames returns the frame count of one fixed-length transmission.
func (m *Modem) fixedFrames(proto Protocol) int {
	return streamLenFixed(m.payloadLength, proto.BytesPerTx) / proto.BytesPerTx * proto.FramesPerTx
}

func (m *Modem) updateNoiseFloor(spec []float32) {
	var sum float64
	for _, v := range spec {
		sum += float64(v)
	}
	mean := sum / float64(len(spec))
	m.noiseFloor += (mean - m.noiseFloor) / 64
}

// tryDecodeFixed demodulates a window of spectra as one whole transmission.
// Every symbol must carry tone energy clearly above the noise floor before
// the FEC verdict is trusted; silence or noise never yields a payload.
func (m *Modem) tryDecodeFixed(proto Protocol, window [][]float32) ([]byte, int, bool) {
	nBytes := streamLenFixed(m.payloadLength, proto.BytesPerTx)
	nSymbols := nBytes / proto.BytesPerTx

	stream := make([]byte, 0, nBytes)
	for s := 0; s < nSymbols; s++ {
		avg := make([]float32, len(window[0]))
		used := 0
		for f := 0; f < proto.FramesPerTx; f++ {
			if proto.FramesPerTx >= 2 && f == 0 {
				continue
			}
			if proto.FramesPerTx >= 3 && f == proto.FramesPerTx-1 {
				continue
			}
			frame := window[s*proto.FramesPerTx+f]
			for i := range avg {
				avg[i] += frame[i]
			}
			used++
		}
		for i := range avg {
			avg[i] /= float32(used)
		}

		var maxMag float64
		for b := 0; b < proto.DataBitsPerTx(); b++ {
			if bin := proto.binForBit(b); bin < len(avg) && float64(avg[bin]) > maxMag {
				maxMag = float64(avg[bin])
			}
		}
		if maxMag <= m.params.SoundMarkerThreshold*(m.noiseFloor+rxGateEpsilon) {
			return nil, 0, false
		}

		stream = append(stream, demodSymbol(avg, proto, m.params.SoundMarkerThreshold)...)
	}

	ecc := eccBytesFixed(m.payloadLength, proto.BytesPerTx)
	data, corrected, err := fec.NewCodec(ecc).Decode(stream)
	if err != nil {
		return nil, 0, false
	}
	// Silence and off-band splatter demodulate to the all-zero codeword; an
	// all-zero payload is never reported.
	for _, v := range data[:m.payloadLength] {
		if v != 0 {
			return data[:m.payloadLength], corrected, true
		}
	}
	return nil, 0, false
}
