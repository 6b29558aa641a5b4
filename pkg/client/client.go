package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dougsko/waved/pkg/protocol"
)

// Client talks to a running waved daemon over its HTTP API
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the daemon at baseURL, e.g. "http://localhost:8080"
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Status fetches the daemon status
func (c *Client) Status() (*protocol.Status, error) {
	var status protocol.Status
	if err := c.getJSON("/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Messages fetches the most recent messages
func (c *Client) Messages(limit int) ([]protocol.Message, error) {
	var out struct {
		Messages []protocol.Message `json:"messages"`
		Count    int                `json:"count"`
	}
	path := fmt.Sprintf("/api/messages?limit=%d", limit)
	if err := c.getJSON(path, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Send queues a payload for transmission. An empty protocol name selects the
// daemon's configured default.
func (c *Client) Send(payload []byte, protocolName string) (*protocol.Message, error) {
	req := struct {
		Payload  []byte `json:"payload"`
		Protocol string `json:"protocol,omitempty"`
	}{Payload: payload, Protocol: protocolName}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Post(c.baseURL+"/api/send", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var out struct {
		Status  string           `json:"status"`
		Message protocol.Message `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out.Message, nil
}

// Spectrum fetches the latest magnitude spectrum snapshot
func (c *Client) Spectrum() ([]float32, error) {
	var out struct {
		Spectrum []float32 `json:"spectrum"`
	}
	if err := c.getJSON("/api/spectrum", &out); err != nil {
		return nil, err
	}
	return out.Spectrum, nil
}

func (c *Client) getJSON(path string, dst interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.Error != "" {
		return fmt.Errorf("daemon error: %s", out.Error)
	}
	return fmt.Errorf("daemon returned status %d", resp.StatusCode)
}
