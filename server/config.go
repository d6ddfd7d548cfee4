package main

import (
	"encoding/json"
	"os"
	"sync"
)

type Config struct {
	ServerName     string `json:"server_name"`
	Host           string `json:"host"`
	Port           string `json:"port"`
	HistoryLimit   int    `json:"history_limit"`
	CallsignPrefix string `json:"callsign_prefix"`
	mu             sync.RWMutex
	configFile     string
}

func NewConfig(filename string) *Config {
	if filename == "" {
		filename = "server_config.json"
	}
	return &Config{
		configFile: filename,
		// Defaults
		ServerName:     "Morse Trainer Server",
		Host:           "",
		Port:           "8080",
		HistoryLimit:   100,
		CallsignPrefix: "HAM-",
	}
}

func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.configFile); os.IsNotExist(err) {
		// Create default config if not exists
		return c.saveInternal()
	}

	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 100
	}
	if c.CallsignPrefix == "" {
		c.CallsignPrefix = "HAM-"
	}

	// Auto-update config file with any missing fields (defaults)
	return c.saveInternal()
}

func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveInternal()
}

func (c *Config) saveInternal() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.configFile, data, 0644)
}
