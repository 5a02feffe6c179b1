package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const defaultSettingsTemplate = `# dashtui settings

[server]
# Base URL of the dashboard backend.
url = "http://localhost:8080"
# Optional assistant context area (sent as a query parameter on the stream).
area = ""

[system]
data_directory = "~/.local/share/dashtui"

# Pipelines shown on the dashboard. One block per pipeline.
# [[pipeline]]
# name = "email-digest"
# description = "Summarize unread email"
`

// DefaultSettings returns the built-in defaults used before any file exists.
func DefaultSettings() *Settings {
	s := &Settings{}
	s.Server.URL = "http://localhost:8080"
	s.System.DataDirectory = "~/.local/share/dashtui"
	return s
}

// LoadSettings reads settings.toml, writing the default template first if the
// file does not exist yet.
func LoadSettings() (*Settings, error) {
	settingsPath := GetSettingsFilePath()

	if !FileExists(settingsPath) {
		if err := CreateDefaultSettings(); err != nil {
			return nil, fmt.Errorf("failed to create settings: %w", err)
		}
		return DefaultSettings(), nil
	}

	cfg := DefaultSettings()
	if _, err := toml.DecodeFile(settingsPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	return cfg, nil
}

// SaveSettings writes settings.toml with user-only permissions.
func SaveSettings(cfg *Settings) error {
	configDir := GetConfigDir()
	if err := EnsureDir(configDir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settingsPath := GetSettingsFilePath()
	f, err := os.OpenFile(settingsPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	return nil
}

// CreateDefaultSettings writes the commented default template on first run.
func CreateDefaultSettings() error {
	configDir := GetConfigDir()
	if err := EnsureDir(configDir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settingsPath := GetSettingsFilePath()
	if FileExists(settingsPath) {
		return nil
	}

	if err := os.WriteFile(settingsPath, []byte(defaultSettingsTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}
