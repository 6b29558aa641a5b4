package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/dougsko/waved/pkg/logging"
)

// Config represents the waved configuration
type Config struct {
	Station struct {
		Name string `yaml:"name"`
	} `yaml:"station"`

	Modem struct {
		SampleRate           float64 `yaml:"sample_rate"`
		SamplesPerFrame      int     `yaml:"samples_per_frame"`
		PayloadLength        int     `yaml:"payload_length"`
		SoundMarkerThreshold float64 `yaml:"sound_marker_threshold"`
		Volume               int     `yaml:"volume"`
		Protocol             string  `yaml:"protocol"`
		RxProtocols          []string `yaml:"rx_protocols"`
	} `yaml:"modem"`

	Audio struct {
		InputDevice   string  `yaml:"input_device"`
		OutputDevice  string  `yaml:"output_device"`
		SampleRateInp float64 `yaml:"sample_rate_inp"`
		SampleRateOut float64 `yaml:"sample_rate_out"`
		FormatInp     string  `yaml:"format_inp"`
		FormatOut     string  `yaml:"format_out"`
		BufferSize    int     `yaml:"buffer_size"`
	} `yaml:"audio"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
		MaxMessages  int    `yaml:"max_messages"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults
	if config.Modem.SampleRate == 0 {
		config.Modem.SampleRate = 48000
	}
	if config.Modem.SamplesPerFrame == 0 {
		config.Modem.SamplesPerFrame = 1024
	}
	if config.Modem.PayloadLength == 0 {
		config.Modem.PayloadLength = -1
	}
	if config.Modem.SoundMarkerThreshold == 0 {
		config.Modem.SoundMarkerThreshold = 3.0
	}
	if config.Modem.Volume == 0 {
		config.Modem.Volume = 25
	}
	if config.Modem.Protocol == "" {
		config.Modem.Protocol = "audible-fast"
	}
	if config.Audio.SampleRateInp == 0 {
		config.Audio.SampleRateInp = config.Modem.SampleRate
	}
	if config.Audio.SampleRateOut == 0 {
		config.Audio.SampleRateOut = config.Modem.SampleRate
	}
	if config.Audio.FormatInp == "" {
		config.Audio.FormatInp = "f32"
	}
	if config.Audio.FormatOut == "" {
		config.Audio.FormatOut = "f32"
	}
	if config.Audio.BufferSize == 0 {
		config.Audio.BufferSize = 1024
	}
	if config.Audio.InputDevice == "" {
		config.Audio.InputDevice = "default"
	}
	if config.Audio.OutputDevice == "" {
		config.Audio.OutputDevice = "default"
	}
	if config.Web.Port == 0 {
		config.Web.Port = 8080
	}
	if config.Web.BindAddress == "" {
		config.Web.BindAddress = "0.0.0.0"
	}
	if config.Storage.DatabasePath == "" {
		config.Storage.DatabasePath = "./waved.db"
	}
	if config.Storage.MaxMessages == 0 {
		config.Storage.MaxMessages = 10000
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Modem.SampleRate < 1000 || c.Modem.SampleRate > 96000 {
		return fmt.Errorf("modem sample rate %.0f out of range [1000, 96000]", c.Modem.SampleRate)
	}
	if c.Modem.SamplesPerFrame < 1 || c.Modem.SamplesPerFrame > 1024 {
		return fmt.Errorf("samples per frame %d out of range [1, 1024]", c.Modem.SamplesPerFrame)
	}
	if c.Modem.Volume < 0 || c.Modem.Volume > 100 {
		return fmt.Errorf("volume %d out of range [0, 100]", c.Modem.Volume)
	}
	if c.Modem.Volume > 50 {
		return fmt.Errorf("volume %d risks clipping; keep it at or below 50", c.Modem.Volume)
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port %d out of range", c.Web.Port)
	}
	return nil
}

// LoggingOptions converts the logging section into logger options
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Logging.Level,
		File:       c.Logging.File,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
		Compress:   c.Logging.Compress,
		Console:    c.Logging.Console,
		Structured: c.Logging.Structured,
	}
}
