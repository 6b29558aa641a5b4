package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/dougsko/waved/pkg/modem"
	"github.com/dougsko/waved/pkg/protocol"
)

func main() {
	var (
		payload      = flag.String("payload", "", "Payload to encode")
		protoName    = flag.String("protocol", "audible-fast", "Transmission protocol")
		rate         = flag.Float64("rate", 48000, "Output sample rate")
		volume       = flag.Int("volume", 25, "Volume [0, 100]; above 50 risks clipping")
		fixedLength  = flag.Int("fixed", -1, "Fixed payload length (-1 for variable with markers)")
		output       = flag.String("output", "", "Output WAV file (16-bit mono)")
		showTones    = flag.Bool("tones", false, "Show the waveform tone list")
	)
	flag.Parse()

	if *payload == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -payload \"hello\" [options]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	id, err := protocol.ParseProtocolName(*protoName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Protocol error: %v\n", err)
		os.Exit(1)
	}

	params := modem.DefaultParameters()
	params.PayloadLength = *fixedLength
	params.SampleRateOut = *rate
	params.SampleFormatOut = modem.FormatI16
	params.OperatingMode = modem.ModeTx

	m, err := modem.New(params, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Modem error: %v\n", err)
		os.Exit(1)
	}

	if err := m.InitTx([]byte(*payload), id, *volume); err != nil {
		fmt.Fprintf(os.Stderr, "Encoding failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Encoding payload\n")
	fmt.Printf("================\n")
	fmt.Printf("Payload:  %q (%d bytes)\n", *payload, len(*payload))
	fmt.Printf("Protocol: %s\n", *protoName)
	fmt.Printf("Rate:     %.0f Hz\n", *rate)
	fmt.Printf("Expected: %d samples\n", m.EncodeSizeSamples())
	fmt.Printf("\n")

	if *showTones {
		fmt.Printf("Tone list:\n")
		fmt.Printf("==========\n")
		for i, group := range m.WaveformTones() {
			fmt.Printf("%3d:", i)
			for _, tone := range group {
				fmt.Printf(" %.0fHz/%.0fms", tone.FreqHz, tone.DurationMs)
			}
			fmt.Println()
		}
		fmt.Println()
	}

	var pcm []byte
	if err := m.Encode(func(data []byte) {
		pcm = append(pcm, data...)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Encoding failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Rendered %d samples (%.2fs)\n", len(pcm)/2, float64(len(pcm)/2)/(*rate))

	if *output != "" {
		if err := writeWAV(*output, pcm, int(*rate)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *output, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *output)
	}
}

// writeWAV wraps 16-bit mono PCM in a RIFF/WAVE container
func writeWAV(path string, pcm []byte, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 44)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+len(pcm)))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:], 1) // mono
	binary.LittleEndian.PutUint32(header[24:], uint32(rate))
	binary.LittleEndian.PutUint32(header[28:], uint32(rate*2))
	binary.LittleEndian.PutUint16(header[32:], 2)  // block align
	binary.LittleEndian.PutUint16(header[34:], 16) // bits per sample
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(len(pcm)))

	if _, err := f.Write(header); err != nil {
		return err
	}
	_, err = f.Write(pcm)
	return err
}
