package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dougsko/waved/pkg/modem"
)

// Message represents one payload that crossed the acoustic link
type Message struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   []byte    `json:"payload"`
	Protocol  string    `json:"protocol"`
	Direction string    `json:"direction"` // RX or TX
	Corrected int       `json:"corrected"` // bytes repaired by the FEC
}

// Status represents the current daemon status
type Status struct {
	Station    string    `json:"station"`
	Receiving  bool      `json:"receiving"`
	Protocol   string    `json:"protocol"`
	SampleRate float64   `json:"sample_rate"`
	Uptime     string    `json:"uptime"`
	StartTime  time.Time `json:"start_time"`
	Version    string    `json:"version"`
}

// Response represents a generic API response
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// String converts a Response to JSON
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// protocolNames maps the configuration/API spelling to protocol ids
var protocolNames = map[string]modem.ProtocolID{
	"audible-normal":      modem.ProtocolAudibleNormal,
	"audible-fast":        modem.ProtocolAudibleFast,
	"audible-fastest":     modem.ProtocolAudibleFastest,
	"ultrasound-normal":   modem.ProtocolUltrasoundNormal,
	"ultrasound-fast":     modem.ProtocolUltrasoundFast,
	"ultrasound-fastest":  modem.ProtocolUltrasoundFastest,
	"dt-normal":           modem.ProtocolDTNormal,
	"dt-fast":             modem.ProtocolDTFast,
	"dt-fastest":          modem.ProtocolDTFastest,
}

// ParseProtocolName resolves a protocol name used in configuration and API
// requests. Custom slots are addressed as custom-0 through custom-9.
func ParseProtocolName(name string) (modem.ProtocolID, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := protocolNames[key]; ok {
		return id, nil
	}

	var slot int
	if _, err := fmt.Sscanf(key, "custom-%d", &slot); err == nil && slot >= 0 && slot <= 9 {
		return modem.ProtocolCustom0 + modem.ProtocolID(slot), nil
	}

	return 0, fmt.Errorf("unknown protocol name %q", name)
}

// ProtocolName returns the API spelling of a protocol id
func ProtocolName(id modem.ProtocolID) string {
	for name, candidate := range protocolNames {
		if candidate == id {
			return name
		}
	}
	if id >= modem.ProtocolCustom0 && id <= modem.ProtocolCustom9 {
		return fmt.Sprintf("custom-%d", id-modem.ProtocolCustom0)
	}
	return "unknown"
}

// ParseSampleFormat resolves a PCM format name from configuration
func ParseSampleFormat(name string) (modem.SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "u8":
		return modem.FormatU8, nil
	case "i8":
		return modem.FormatI8, nil
	case "u16":
		return modem.FormatU16, nil
	case "i16":
		return modem.FormatI16, nil
	case "f32":
		return modem.FormatF32, nil
	default:
		return modem.FormatUndefined, fmt.Errorf("unknown sample format %q", name)
	}
}
