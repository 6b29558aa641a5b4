package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/dougsko/waved/pkg/logging"
)

// Config represents audio system configuration
type Config struct {
	InputDevice  string
	OutputDevice string
	SampleRate   float64
	SampleSize   int // bytes per sample
	BufferSize   int // samples per buffer
}

// System shuttles raw PCM between the platform audio devices and the modem
// callbacks. Real capture/playback backends are out of scope; the system
// runs mock workers that pace buffers at the configured sample rate, which
// is also what the tests use.
type System struct {
	config Config
	log    *logging.Logger

	recording bool
	playing   bool
	mutex     sync.RWMutex

	inputBuffers  chan []byte
	outputBuffers chan []byte
}

// NewSystem creates a new audio system
func NewSystem(config Config, log *logging.Logger) *System {
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	return &System{
		config:        config,
		log:           log,
		inputBuffers:  make(chan []byte, 16),
		outputBuffers: make(chan []byte, 16),
	}
}

// Initialize initializes the audio system
func (a *System) Initialize() error {
	a.log.Infof("audio", "input device: %s", a.config.InputDevice)
	a.log.Infof("audio", "output device: %s", a.config.OutputDevice)
	a.log.Infof("audio", "sample rate: %.0f Hz, buffer %d samples", a.config.SampleRate, a.config.BufferSize)
	return nil
}

// StartInput starts audio input capture
func (a *System) StartInput() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.recording {
		return fmt.Errorf("audio input already started")
	}
	a.recording = true

	go a.mockInputWorker()

	a.log.Info("audio", "input started")
	return nil
}

// StopInput stops audio input capture
func (a *System) StopInput() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.recording = false
	a.log.Info("audio", "input stopped")
	return nil
}

// StartOutput starts audio output
func (a *System) StartOutput() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.playing {
		return fmt.Errorf("audio output already started")
	}
	a.playing = true

	go a.mockOutputWorker()

	a.log.Info("audio", "output started")
	return nil
}

// StopOutput stops audio output
func (a *System) StopOutput() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.playing = false
	a.log.Info("audio", "output stopped")
	return nil
}

// Play queues PCM bytes for output
func (a *System) Play(pcm []byte) error {
	if !a.isPlaying() {
		return fmt.Errorf("audio output not started")
	}

	select {
	case a.outputBuffers <- pcm:
		return nil
	default:
		return fmt.Errorf("audio output buffer full")
	}
}

// InputBuffers returns the channel delivering captured PCM
func (a *System) InputBuffers() <-chan []byte {
	return a.inputBuffers
}

// Inject feeds PCM into the capture path, as if it arrived from the
// microphone. Used by loopback setups and tests.
func (a *System) Inject(pcm []byte) {
	select {
	case a.inputBuffers <- pcm:
	default:
		// drop when the consumer is behind
	}
}

// Close shuts down the audio system
func (a *System) Close() error {
	a.StopInput()
	a.StopOutput()
	a.log.Info("audio", "closed")
	return nil
}

// mockInputWorker paces empty capture buffers at the configured rate
func (a *System) mockInputWorker() {
	interval := time.Duration(float64(a.config.BufferSize) / a.config.SampleRate * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for a.isRecording() {
		<-ticker.C
		a.Inject(make([]byte, a.config.BufferSize*a.config.SampleSize))
	}
}

// mockOutputWorker consumes queued buffers in real time
func (a *System) mockOutputWorker() {
	for a.isPlaying() {
		select {
		case pcm := <-a.outputBuffers:
			samples := len(pcm) / a.config.SampleSize
			duration := time.Duration(float64(samples) / a.config.SampleRate * float64(time.Second))
			a.log.Debugf("audio", "playing %d samples (%.0fms)", samples, duration.Seconds()*1000)
			time.Sleep(duration)

		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (a *System) isRecording() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.recording
}

func (a *System) isPlaying() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.playing
}

// IsRecording returns whether audio input is active
func (a *System) IsRecording() bool { return a.isRecording() }

// IsPlaying returns whether audio output is active
func (a *System) IsPlaying() bool { return a.isPlaying() }

// SampleRate returns the configured sample rate
func (a *System) SampleRate() float64 { return a.config.SampleRate }

// BufferSize returns the configured buffer size in samples
func (a *System) BufferSize() int { return a.config.BufferSize }
