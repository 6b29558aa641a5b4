package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "waved.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "station:\n  name: bench\n"))
	require.NoError(t, err)

	assert.Equal(t, "bench", cfg.Station.Name)
	assert.Equal(t, 48000.0, cfg.Modem.SampleRate)
	assert.Equal(t, 1024, cfg.Modem.SamplesPerFrame)
	assert.Equal(t, -1, cfg.Modem.PayloadLength)
	assert.Equal(t, 3.0, cfg.Modem.SoundMarkerThreshold)
	assert.Equal(t, 25, cfg.Modem.Volume)
	assert.Equal(t, "audible-fast", cfg.Modem.Protocol)
	assert.Equal(t, 48000.0, cfg.Audio.SampleRateInp)
	assert.Equal(t, "f32", cfg.Audio.FormatInp)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, 10000, cfg.Storage.MaxMessages)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
station:
  name: attic
modem:
  sample_rate: 24000
  samples_per_frame: 512
  payload_length: 8
  protocol: dt-fastest
  rx_protocols: [dt-fastest, dt-fast]
audio:
  sample_rate_inp: 44100
  format_inp: i16
web:
  port: 9090
`))
	require.NoError(t, err)

	assert.Equal(t, 24000.0, cfg.Modem.SampleRate)
	assert.Equal(t, 512, cfg.Modem.SamplesPerFrame)
	assert.Equal(t, 8, cfg.Modem.PayloadLength)
	assert.Equal(t, "dt-fastest", cfg.Modem.Protocol)
	assert.Equal(t, []string{"dt-fastest", "dt-fast"}, cfg.Modem.RxProtocols)
	assert.Equal(t, 44100.0, cfg.Audio.SampleRateInp)
	assert.Equal(t, "i16", cfg.Audio.FormatInp)
	assert.Equal(t, 48000.0, cfg.Audio.SampleRateOut, "unset output rate follows the operating rate")
	assert.Equal(t, 9090, cfg.Web.Port)

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := "station:\n  name: bench\n"

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate too low", func(c *Config) { c.Modem.SampleRate = 500 }},
		{"frame too large", func(c *Config) { c.Modem.SamplesPerFrame = 4096 }},
		{"volume out of range", func(c *Config) { c.Modem.Volume = 101 }},
		{"volume clips", func(c *Config) { c.Modem.Volume = 80 }},
		{"bad port", func(c *Config) { c.Web.Port = 70000 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, base))
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/waved.yaml")
	assert.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "station: [unbalanced"))
	assert.Error(t, err)
}
