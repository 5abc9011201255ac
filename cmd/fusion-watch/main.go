package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fusionwatch/fusionwatch/internal/monitor"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/stream", "WebSocket stream of a running fusion-agent")
	flag.Parse()

	if err := monitor.Run(*url); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
