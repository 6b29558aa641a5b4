package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/waved/pkg/modem"
	"github.com/dougsko/waved/pkg/protocol"
)

// handleGetStatus returns daemon status
func (d *Daemon) handleGetStatus(c *gin.Context) {
	status := d.engine.Status()
	status.Version = Version
	c.JSON(http.StatusOK, status)
}

// handleGetMessages returns recent messages
func (d *Daemon) handleGetMessages(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		limit = 50
	}

	messages, err := d.store.GetMessages(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// handleSendMessage queues a payload for transmission
func (d *Daemon) handleSendMessage(c *gin.Context) {
	var req struct {
		Payload  []byte `json:"payload" binding:"required"`
		Protocol string `json:"protocol"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := d.engine.Send(req.Payload, req.Protocol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "queued",
		"message": msg,
	})
}

// handleGetProtocols lists the defined protocols
func (d *Daemon) handleGetProtocols(c *gin.Context) {
	type entry struct {
		Name        string `json:"name"`
		FreqStart   int    `json:"freq_start"`
		FramesPerTx int    `json:"frames_per_tx"`
		BytesPerTx  int    `json:"bytes_per_tx"`
	}

	out := make(map[string]entry)
	for id, p := range modem.Protocols() {
		out[protocol.ProtocolName(id)] = entry{
			Name:        p.Name,
			FreqStart:   p.FreqStart,
			FramesPerTx: p.FramesPerTx,
			BytesPerTx:  p.BytesPerTx,
		}
	}
	c.JSON(http.StatusOK, gin.H{"protocols": out})
}

// handleGetSpectrum returns the latest magnitude spectrum snapshot
func (d *Daemon) handleGetSpectrum(c *gin.Context) {
	spectrum := d.engine.Spectrum()
	if spectrum == nil {
		spectrum = []float32{}
	}
	c.JSON(http.StatusOK, gin.H{"spectrum": spectrum})
}

// handleGetWaterfall returns a windowed display spectrum in dB
func (d *Daemon) handleGetWaterfall(c *gin.Context) {
	spectrum := d.engine.Waterfall()
	if spectrum == nil {
		spectrum = []float32{}
	}
	c.JSON(http.StatusOK, gin.H{"waterfall": spectrum})
}

// handleWebSocket upgrades the connection and registers the client for
// message broadcasts
func (d *Daemon) handleWebSocket(c *gin.Context) {
	conn, err := d.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	d.wsMu.Lock()
	d.wsClients[conn] = true
	d.wsMu.Unlock()

	// Drain control frames until the client goes away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				d.wsMu.Lock()
				delete(d.wsClients, conn)
				d.wsMu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}
