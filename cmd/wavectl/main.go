package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dougsko/waved/pkg/client"
)

var (
	server = flag.String("server", "http://localhost:8080", "Daemon base URL")
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		showHelp()
		return
	}

	c := client.New(*server)

	var err error
	switch args[0] {
	case "status":
		err = showStatus(c)
	case "messages":
		limit := 20
		if len(args) > 1 {
			fmt.Sscanf(args[1], "%d", &limit)
		}
		err = showMessages(c, limit)
	case "send":
		if len(args) < 2 {
			err = fmt.Errorf("send requires a payload argument")
			break
		}
		protocolName := ""
		if len(args) > 2 {
			protocolName = args[2]
		}
		err = sendPayload(c, args[1], protocolName)
	default:
		err = fmt.Errorf("unknown command %q", args[0])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func showStatus(c *client.Client) error {
	status, err := c.Status()
	if err != nil {
		return err
	}

	fmt.Printf("Station:     %s\n", status.Station)
	fmt.Printf("Version:     %s\n", status.Version)
	fmt.Printf("Protocol:    %s\n", status.Protocol)
	fmt.Printf("Sample rate: %.0f Hz\n", status.SampleRate)
	fmt.Printf("Receiving:   %v\n", status.Receiving)
	fmt.Printf("Uptime:      %s\n", status.Uptime)
	return nil
}

func showMessages(c *client.Client, limit int) error {
	messages, err := c.Messages(limit)
	if err != nil {
		return err
	}

	if len(messages) == 0 {
		fmt.Println("No messages")
		return nil
	}

	for _, msg := range messages {
		fmt.Printf("%s  %-2s  %-18s  %q", msg.Timestamp.Format("2006-01-02 15:04:05"),
			msg.Direction, msg.Protocol, msg.Payload)
		if msg.Corrected > 0 {
			fmt.Printf("  (%d corrected)", msg.Corrected)
		}
		fmt.Println()
	}
	return nil
}

func sendPayload(c *client.Client, payload, protocolName string) error {
	msg, err := c.Send([]byte(payload), protocolName)
	if err != nil {
		return err
	}
	fmt.Printf("Queued %d bytes via %s\n", len(msg.Payload), msg.Protocol)
	return nil
}

func showHelp() {
	help := strings.TrimSpace(`
wavectl - waved control tool

Usage:
  wavectl [options] <command>

Options:
  -server <url>    Daemon base URL (default: http://localhost:8080)

Commands:
  status                      Show daemon status
  messages [limit]            Show recent messages
  send <payload> [protocol]   Transmit a payload (e.g. send hello audible-fast)
`)
	fmt.Println(help)
}
