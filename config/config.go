package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// PipelineConfig declares one pipeline shown on the dashboard.
type PipelineConfig struct {
	Name        string `toml:"name"`
	Description string `toml:"description,omitempty"`
	Input       string `toml:"input,omitempty"`
}

// Settings is the on-disk shape of settings.toml.
type Settings struct {
	Server struct {
		URL  string `toml:"url"`
		Area string `toml:"area,omitempty"`
	} `toml:"server"`
	System struct {
		DataDirectory string `toml:"data_directory"`
	} `toml:"system"`
	Pipelines []PipelineConfig `toml:"pipeline"`
}

// Config is the resolved runtime configuration.
type Config struct {
	ServerURL     string
	AssistantArea string
	DataDirectory string
	Pipelines     []PipelineConfig
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if u := os.Getenv("DASHTUI_SERVER_URL"); u != "" {
		c.ServerURL = u
	}
	if area := os.Getenv("DASHTUI_AREA"); area != "" {
		c.AssistantArea = area
	}
	if dataDir := os.Getenv("DASHTUI_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv("DASHTUI_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - the log may contain message content
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (DASHTUI_DEBUG=%s) ===", os.Getenv("DASHTUI_DEBUG"))
}

// Load reads settings.toml (creating a default file on first run), then lets
// environment variables override individual values.
func Load() (*Config, error) {
	settings, err := LoadSettings()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerURL:     settings.Server.URL,
		AssistantArea: settings.Server.Area,
		DataDirectory: settings.System.DataDirectory,
		Pipelines:     settings.Pipelines,
	}
	cfg.applyEnvOverrides()

	if cfg.DataDirectory == "" {
		cfg.DataDirectory = GetDefaultDataDir()
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}
