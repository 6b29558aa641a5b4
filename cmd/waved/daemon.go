package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/waved/pkg/config"
	"github.com/dougsko/waved/pkg/engine"
	"github.com/dougsko/waved/pkg/logging"
	"github.com/dougsko/waved/pkg/protocol"
	"github.com/dougsko/waved/pkg/storage"
)

// Daemon ties the engine, the message store and the web surface together
type Daemon struct {
	config *config.Config
	wg     sync.WaitGroup

	engine    *engine.Engine
	store     *storage.MessageStore
	webServer *http.Server

	upgrader  websocket.Upgrader
	wsMu      sync.Mutex
	wsClients map[*websocket.Conn]bool
}

// NewDaemon creates a new daemon instance
func NewDaemon(cfg *config.Config) (*Daemon, error) {
	store, err := storage.NewMessageStore(cfg.Storage.DatabasePath, cfg.Storage.MaxMessages, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open message store: %w", err)
	}

	eng, err := engine.New(cfg, nil, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	daemon := &Daemon{
		config:    cfg,
		engine:    eng,
		store:     store,
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		wsClients: make(map[*websocket.Conn]bool),
	}

	daemon.engine.Subscribe(daemon.broadcastMessage)
	daemon.setupWebServer()
	return daemon, nil
}

// setupWebServer wires the gin routes
func (d *Daemon) setupWebServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/messages", d.handleGetMessages)
		api.POST("/send", d.handleSendMessage)
		api.GET("/protocols", d.handleGetProtocols)
		api.GET("/spectrum", d.handleGetSpectrum)
		api.GET("/waterfall", d.handleGetWaterfall)
	}
	router.GET("/ws", d.handleWebSocket)

	d.webServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port),
		Handler: router,
	}
}

// Start starts the daemon
func (d *Daemon) Start() error {
	if err := d.engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logging.Infof("daemon", "web server listening on %s", d.webServer.Addr)
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("daemon", "web server: %v", err)
		}
	}()

	return nil
}

// Stop stops the daemon gracefully
func (d *Daemon) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.webServer.Shutdown(ctx); err != nil {
		logging.Warnf("daemon", "web server shutdown: %v", err)
	}

	d.wsMu.Lock()
	for conn := range d.wsClients {
		conn.Close()
	}
	d.wsClients = make(map[*websocket.Conn]bool)
	d.wsMu.Unlock()

	if err := d.engine.Stop(); err != nil {
		return err
	}
	d.wg.Wait()
	return d.store.Close()
}

// broadcastMessage pushes a decoded or transmitted message to WebSocket
// clients
func (d *Daemon) broadcastMessage(msg protocol.Message) {
	d.wsMu.Lock()
	defer d.wsMu.Unlock()

	for conn := range d.wsClients {
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			delete(d.wsClients, conn)
		}
	}
}
