package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"dashtui/api"
	"dashtui/config"
	"dashtui/storage"
	"dashtui/ui"
)

const (
	Version = "v0.1.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize debug logging after config is loaded
	config.InitDebugLog(cfg.DataDir())

	client, err := api.NewClient(cfg.ServerURL)
	if err != nil {
		fmt.Printf("Invalid server configuration: %v\n", err)
		os.Exit(1)
	}

	// The cache is an optimization; a broken cache must not block the app.
	cache, err := storage.NewConversationCache(cfg.DataDir())
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[main] cache init failed: %v (running without cache)", err)
		}
		cache = nil
	}

	p := tea.NewProgram(
		ui.NewAppView(cfg, client, cache, Version),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running dashtui: %v\n", err)
		os.Exit(1)
	}
}
