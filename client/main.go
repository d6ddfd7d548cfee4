package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	host := flag.String("host", "localhost:8080", "server host:port")
	mute := flag.Bool("mute", false, "disable all audio")
	flag.Parse()

	if os.Getenv("MORSE_DEBUG") != "" {
		f, err := tea.LogToFile("client.log", "debug")
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		defer f.Close()
	}

	settings := NewSettingsStore(settingsPath())
	if err := settings.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v (using defaults)\n", err)
	}

	var sounder Sounder = beepSounder{}
	if *mute {
		sounder = silentSounder{}
	}

	net := NewNetwork()
	defer net.Disconnect()

	p := tea.NewProgram(initialModel(net, *host, settings, sounder), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}

func settingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "settings.json"
	}
	return filepath.Join(dir, "morse-trainer", "settings.json")
}
