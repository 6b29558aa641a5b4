package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dougsko/waved/pkg/config"
	"github.com/dougsko/waved/pkg/logging"
)

var (
	configPath = flag.String("config", "config.yaml", "Configuration file path")
	version    = flag.Bool("version", false, "Show version information")
)

const (
	Version = "0.1.0-dev"
	Build   = "development"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("waved version %s (%s)\n", Version, Build)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logging system
	if err := logging.InitGlobalLogger(cfg.LoggingOptions()); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	logging.Info("main", fmt.Sprintf("waved version %s starting...", Version))
	logging.Info("main", fmt.Sprintf("Station: %s", cfg.Station.Name))
	logging.Info("main", fmt.Sprintf("Web interface: http://%s:%d", cfg.Web.BindAddress, cfg.Web.Port))

	daemon, err := NewDaemon(cfg)
	if err != nil {
		logging.Error("main", fmt.Sprintf("Failed to create daemon: %v", err))
		os.Exit(1)
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := daemon.Start(); err != nil {
		logging.Error("main", fmt.Sprintf("Failed to start daemon: %v", err))
		os.Exit(1)
	}

	logging.Info("main", "waved started successfully")

	<-sigChan
	logging.Info("main", "Shutting down...")

	if err := daemon.Stop(); err != nil {
		logging.Error("main", fmt.Sprintf("Error during shutdown: %v", err))
	}

	logging.Info("main", "waved stopped")
}
