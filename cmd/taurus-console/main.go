package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/NotCreative21/taurus/internal/client"
	"github.com/NotCreative21/taurus/internal/console"
	"github.com/NotCreative21/taurus/internal/logging"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:8080/lupus", "relay websocket URL")
	logFile := flag.String("log", "", "write debug logs to this file")
	flag.Parse()

	// The terminal belongs to the UI; logs go to a file or nowhere.
	var out io.Writer = io.Discard
	if *logFile != "" {
		f, err := tea.LogToFile(*logFile, "taurus-console")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logging.Init("text", "debug", out)

	m := console.New(client.New(*wsURL))
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
