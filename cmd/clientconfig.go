/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lostfound-board/apiserver/internal/client"
	"gopkg.in/yaml.v3"
)

const defaultServerURL = "http://localhost:8080"

// clientConfig is what login persists for the client commands.
type clientConfig struct {
	ServerURL string `yaml:"server_url"`
	Token     string `yaml:"token"`
	Username  string `yaml:"username,omitempty"`
}

var clientConfigPathOverride string

func clientConfigPath() (string, error) {
	if clientConfigPathOverride != "" {
		return clientConfigPathOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "lostfound", "config.yaml"), nil
}

func loadClientConfig() (clientConfig, error) {
	path, err := clientConfigPath()
	if err != nil {
		return clientConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return clientConfig{}, nil
		}
		return clientConfig{}, fmt.Errorf("reading config: %w", err)
	}
	var cfg clientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return clientConfig{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func saveClientConfig(cfg clientConfig) error {
	path, err := clientConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// serverURL resolves the API address: --server, then LOSTFOUND_SERVER_URL,
// then the saved config, then localhost.
func serverURL(cfg clientConfig) string {
	if serverFlag != "" {
		return serverFlag
	}
	if v := os.Getenv("LOSTFOUND_SERVER_URL"); v != "" {
		return v
	}
	if cfg.ServerURL != "" {
		return cfg.ServerURL
	}
	return defaultServerURL
}

func newAPIClient() (*client.Client, error) {
	cfg, err := loadClientConfig()
	if err != nil {
		return nil, err
	}
	token := cfg.Token
	if v := os.Getenv("LOSTFOUND_TOKEN"); v != "" {
		token = v
	}
	return client.New(serverURL(cfg), token), nil
}
