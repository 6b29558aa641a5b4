package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/dougsko/waved/pkg/audio"
	"github.com/dougsko/waved/pkg/config"
	"github.com/dougsko/waved/pkg/dsp"
	"github.com/dougsko/waved/pkg/logging"
	"github.com/dougsko/waved/pkg/modem"
	"github.com/dougsko/waved/pkg/protocol"
	"github.com/dougsko/waved/pkg/storage"
)

// Engine wires the modem to the audio system and the message store: it runs
// the continuous receive loop, queues transmissions and fans decoded
// payloads out to subscribers.
type Engine struct {
	cfg   *config.Config
	log   *logging.Logger
	store *storage.MessageStore

	mu    sync.Mutex // serializes access to the single-threaded modem
	modem *modem.Modem
	audio *audio.System

	txProtocol modem.ProtocolID
	volume     int

	subMu       sync.Mutex
	subscribers []func(protocol.Message)

	stop      chan struct{}
	wg        sync.WaitGroup
	startTime time.Time
}

// New builds an engine from the daemon configuration
func New(cfg *config.Config, log *logging.Logger, store *storage.MessageStore) (*Engine, error) {
	if log == nil {
		log = logging.GetGlobalLogger()
	}

	formatInp, err := protocol.ParseSampleFormat(cfg.Audio.FormatInp)
	if err != nil {
		return nil, fmt.Errorf("input format: %w", err)
	}
	formatOut, err := protocol.ParseSampleFormat(cfg.Audio.FormatOut)
	if err != nil {
		return nil, fmt.Errorf("output format: %w", err)
	}
	txProtocol, err := protocol.ParseProtocolName(cfg.Modem.Protocol)
	if err != nil {
		return nil, fmt.Errorf("tx protocol: %w", err)
	}

	params := modem.DefaultParameters()
	params.PayloadLength = cfg.Modem.PayloadLength
	params.SampleRate = cfg.Modem.SampleRate
	params.SampleRateInp = cfg.Audio.SampleRateInp
	params.SampleRateOut = cfg.Audio.SampleRateOut
	params.SamplesPerFrame = cfg.Modem.SamplesPerFrame
	params.SoundMarkerThreshold = cfg.Modem.SoundMarkerThreshold
	params.SampleFormatInp = formatInp
	params.SampleFormatOut = formatOut

	m, err := modem.New(params, log)
	if err != nil {
		return nil, fmt.Errorf("modem: %w", err)
	}

	// An explicit rx_protocols list restricts the decoder's hypotheses
	if len(cfg.Modem.RxProtocols) > 0 {
		for id := range modem.Protocols() {
			if err := m.EnableRxProtocol(id, false); err != nil {
				return nil, err
			}
		}
		for _, name := range cfg.Modem.RxProtocols {
			id, err := protocol.ParseProtocolName(name)
			if err != nil {
				return nil, fmt.Errorf("rx protocol: %w", err)
			}
			if err := m.EnableRxProtocol(id, true); err != nil {
				return nil, err
			}
		}
	}

	sys := audio.NewSystem(audio.Config{
		InputDevice:  cfg.Audio.InputDevice,
		OutputDevice: cfg.Audio.OutputDevice,
		SampleRate:   cfg.Audio.SampleRateInp,
		SampleSize:   m.SampleSizeBytesInp(),
		BufferSize:   cfg.Audio.BufferSize,
	}, log)

	return &Engine{
		cfg:        cfg,
		log:        log,
		store:      store,
		modem:      m,
		audio:      sys,
		txProtocol: txProtocol,
		volume:     cfg.Modem.Volume,
		stop:       make(chan struct{}),
		startTime:  time.Now(),
	}, nil
}

// Start brings up the audio system and the receive loop
func (e *Engine) Start() error {
	if err := e.audio.Initialize(); err != nil {
		return err
	}
	if err := e.audio.StartInput(); err != nil {
		return err
	}
	if err := e.audio.StartOutput(); err != nil {
		return err
	}

	e.wg.Add(1)
	go e.rxLoop()

	e.log.Info("engine", "started")
	return nil
}

// Stop shuts the engine down
func (e *Engine) Stop() error {
	close(e.stop)
	e.wg.Wait()
	return e.audio.Close()
}

// Subscribe registers a callback invoked for every message that crosses the
// link, received or transmitted.
func (e *Engine) Subscribe(fn func(protocol.Message)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

func (e *Engine) broadcast(msg protocol.Message) {
	e.subMu.Lock()
	subs := append([]func(protocol.Message){}, e.subscribers...)
	e.subMu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
}

// rxLoop feeds captured PCM to the modem, one buffer per Decode call
func (e *Engine) rxLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stop:
			return
		case pcm := <-e.audio.InputBuffers():
			if msg := e.feed(pcm); msg != nil {
				e.record(*msg)
			}
		}
	}
}

// feed pushes one capture buffer through the modem and returns a decoded
// message, if any completed on this buffer.
func (e *Engine) feed(pcm []byte) *protocol.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	off := 0
	err := e.modem.Decode(func(dst []byte) int {
		n := copy(dst, pcm[off:])
		off += n
		return n
	})
	if err != nil {
		e.log.Warnf("engine", "decode: %v", err)
		return nil
	}

	buf := make([]byte, modem.MaxDataSize)
	n, err := e.modem.TakeRxData(buf)
	if err != nil || n == 0 {
		return nil
	}

	return &protocol.Message{
		Timestamp: time.Now(),
		Payload:   buf[:n],
		Protocol:  protocol.ProtocolName(e.modem.RxProtocolID()),
		Direction: "RX",
		Corrected: e.modem.RxCorrected(),
	}
}

func (e *Engine) record(msg protocol.Message) {
	if e.store != nil {
		if err := e.store.StoreMessage(&msg); err != nil {
			e.log.Errorf("engine", "store message: %v", err)
		}
	}
	e.log.Infof("engine", "%s %d bytes via %s", msg.Direction, len(msg.Payload), msg.Protocol)
	e.broadcast(msg)
}

// Send encodes a payload and queues the waveform for playback. An empty
// protocol name selects the configured default.
func (e *Engine) Send(payload []byte, protocolName string) (*protocol.Message, error) {
	id := e.txProtocol
	if protocolName != "" {
		parsed, err := protocol.ParseProtocolName(protocolName)
		if err != nil {
			return nil, err
		}
		id = parsed
	}

	var wave []byte
	e.mu.Lock()
	err := e.modem.InitTx(payload, id, e.volume)
	if err == nil {
		err = e.modem.Encode(func(data []byte) {
			wave = append(wave, data...)
		})
	}
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := e.audio.Play(wave); err != nil {
		return nil, err
	}

	msg := protocol.Message{
		Timestamp: time.Now(),
		Payload:   payload,
		Protocol:  protocol.ProtocolName(id),
		Direction: "TX",
	}
	e.record(msg)
	return &msg, nil
}

// InjectAudio pushes PCM into the capture path (loopback and tests)
func (e *Engine) InjectAudio(pcm []byte) {
	e.audio.Inject(pcm)
}

// Spectrum returns the latest magnitude spectrum snapshot, or nil
func (e *Engine) Spectrum() []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modem.TakeRxSpectrum()
}

// Waterfall returns a Hann-windowed display spectrum in dB computed from the
// latest captured frame, or nil when no new frame arrived.
func (e *Engine) Waterfall() []float32 {
	e.mu.Lock()
	amp := e.modem.TakeRxAmplitude()
	e.mu.Unlock()

	if amp == nil {
		return nil
	}
	return dsp.DisplaySpectrum(amp)
}

// Status reports the engine state
func (e *Engine) Status() protocol.Status {
	e.mu.Lock()
	receiving := e.modem.IsReceiving()
	e.mu.Unlock()

	return protocol.Status{
		Station:    e.cfg.Station.Name,
		Receiving:  receiving,
		Protocol:   protocol.ProtocolName(e.txProtocol),
		SampleRate: e.cfg.Modem.SampleRate,
		Uptime:     time.Since(e.startTime).Round(time.Second).String(),
		StartTime:  e.startTime,
	}
}
